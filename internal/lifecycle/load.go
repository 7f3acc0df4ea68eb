package lifecycle

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/k8ika0s/wheel-resolver/internal/strategy"
)

// ConfigManifest is the on-disk YAML shape config ingestion reads: a map
// of strategy_name to a map of instance_id to that instance's raw
// override config. It is the data-only half of what the original's config
// ingestion step consumes (the class/factory half must still be compiled
// in via RegisterStrategyClass, since YAML cannot carry executable code).
//
// Grounded on internal/util/strategy.py's config ingestion step and on
// the teacher's own YAML-manifest config loading idiom
// (gopkg.in/yaml.v3), generalized from single-document worker config to a
// per-strategy-instance map.
type ConfigManifest struct {
	Strategies map[string]struct {
		Instances map[string]map[string]any `yaml:"instances"`
	} `yaml:"strategies"`
}

// LoadConfigManifest reads and parses a YAML config manifest from path.
func LoadConfigManifest(path string) (map[string]*RawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: read config manifest: %w", err)
	}
	var doc ConfigManifest
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("lifecycle: parse config manifest: %w", err)
	}
	out := make(map[string]*RawConfig, len(doc.Strategies))
	for name, entry := range doc.Strategies {
		out[name] = &RawConfig{StrategyName: name, Instances: entry.Instances}
	}
	return out, nil
}

// Load runs the complete lifecycle pipeline described in spec.md §4.2 over
// every strategy class registered in reg: planning, enablement,
// dependency validation, imperative-closure enforcement, stable
// topological ordering, and instantiation. rawConfigs maps strategy_name
// to its ingested RawConfig; a class absent from rawConfigs is planned
// with zero bound instances (triggering the builtin-default-synthesis or
// entrypoint-opts-out-by-default behavior in buildStrategyPlans).
func Load(reg *Registry, rawConfigs map[string]*RawConfig) ([]strategy.Strategy, error) {
	var allPlans []*StrategyPlan

	classNames := make([]string, 0, len(reg.strategyClasses))
	for name := range reg.strategyClasses {
		classNames = append(classNames, name)
	}
	sort.Strings(classNames)

	for _, name := range classNames {
		class := reg.strategyClasses[name]
		raw, ok := rawConfigs[name]
		if !ok {
			raw = &RawConfig{StrategyName: name}
		}
		plans, err := buildStrategyPlans(reg, class, raw)
		if err != nil {
			return nil, err
		}
		allPlans = append(allPlans, plans...)
	}

	// Any configured strategy_name with no matching registered class is a
	// fatal configuration error (spec.md §4.2's "unknown strategy name").
	for name := range rawConfigs {
		if _, ok := reg.classInfoByName(name); !ok {
			return nil, configErrorf("config references unknown strategy %q", name)
		}
	}

	var enabled []*StrategyPlan
	for _, p := range allPlans {
		ep, err := enablePlan(p)
		if err != nil {
			return nil, err
		}
		if ep == nil {
			continue // disabled
		}
		enabled = append(enabled, ep)
	}

	if err := validateDependencies(enabled); err != nil {
		return nil, err
	}
	if err := enforceImperativeClosure(enabled); err != nil {
		return nil, err
	}

	ordered, err := topoSortPlans(enabled)
	if err != nil {
		return nil, err
	}

	return instantiatePlans(ordered)
}

// BucketByKind groups instantiated strategies by their declared
// strategy.Typed.Kind(), each bucket sorted by (precedence, instance_id)
// for direct use as a chain.Resolver's strategy list. A strategy not
// implementing strategy.Typed is skipped — the lifecycle has no opinion
// on what kind it serves.
func BucketByKind(instances []strategy.Strategy) map[strategy.Kind][]strategy.Strategy {
	out := make(map[strategy.Kind][]strategy.Strategy)
	for _, s := range instances {
		typed, ok := s.(strategy.Typed)
		if !ok {
			continue
		}
		out[typed.Kind()] = append(out[typed.Kind()], s)
	}
	for kind, bucket := range out {
		sorted := append([]strategy.Strategy(nil), bucket...)
		sort.Slice(sorted, func(i, j int) bool {
			if sorted[i].Precedence() != sorted[j].Precedence() {
				return sorted[i].Precedence() < sorted[j].Precedence()
			}
			return sorted[i].InstanceID() < sorted[j].InstanceID()
		})
		out[kind] = sorted
	}
	return out
}
