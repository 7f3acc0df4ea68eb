package lifecycle

import (
	"fmt"
	"sort"

	"github.com/k8ika0s/wheel-resolver/internal/strategy"
)

// reservedCtorKeys are config keys the planner consumes itself and strips
// before the remainder is offered to a strategy's constructor, matching
// the original's RESERVED_KEYS set.
var reservedCtorKeys = map[string]bool{
	"strategy_name": true,
	"instance_id":   true,
	"precedence":    true,
	"criticality":   true,
}

// RawConfig is one ingested configuration entry: a strategy name plus
// zero or more per-instance override maps keyed by instance_id, mirroring
// the original's two-level "strategy_name -> {instance_id -> cfg}" shape.
type RawConfig struct {
	StrategyName string
	Instances    map[string]map[string]any
}

// buildStrategyPlans runs the full planning stage (spec.md §4.2 "Planning")
// for one strategy: default-config synthesis for unconfigured builtins,
// singleton-policy enforcement, default merge, and invocation of the
// strategy's ConfigSpec.
func buildStrategyPlans(reg *Registry, class *ClassInfo, raw *RawConfig) ([]*StrategyPlan, error) {
	instances := raw.Instances
	if len(instances) == 0 {
		switch class.Origin {
		case OriginEntrypoint:
			// Entrypoint-origin strategies with no bound instance_ids produce
			// no plans: nothing opted them in.
			return nil, nil
		default:
			// Builtins with no config are synthesized with instance_id ==
			// strategy_name, exactly per spec.md §4.2.
			instances = map[string]map[string]any{
				class.Name: {},
			}
		}
	}

	if class.InstantiationPolicy == strategy.Singleton {
		if _, ok := instances[class.Name]; !ok || len(instances) != 1 {
			return nil, configErrorf(
				"strategy %q is singleton but bound instance ids are %v (expected exactly [%q])",
				class.Name, sortedKeys(instances), class.Name)
		}
	}

	spec := reg.configSpecFor(class.Name)
	defaults := spec.Defaults()

	var out []*StrategyPlan
	for _, instanceID := range sortedKeys(instances) {
		override := instances[instanceID]
		merged := make(map[string]any, len(defaults)+len(override))
		for k, v := range defaults {
			merged[k] = v
		}
		for k, v := range override {
			merged[k] = v
		}
		merged["strategy_name"] = class.Name

		plans, err := spec.Plan(instanceID, merged)
		if err != nil {
			return nil, fmt.Errorf("lifecycle: planning %s/%s: %w", class.Name, instanceID, err)
		}
		for _, p := range plans {
			p.Class = class
			if p.StrategyName == "" {
				p.StrategyName = class.Name
			}
			out = append(out, p)
		}
	}
	return out, nil
}

func sortedKeys(m map[string]map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// enablePlan normalizes one raw plan: resolves effective precedence and
// criticality (config wins over class defaults), strips reserved ctor
// keys, and scans the remaining ctor args for embedded StrategyRef values.
// It returns (nil, nil) for a plan whose effective criticality is Disabled
// — dropped, not an error — matching spec.md §4.2's enablement step.
func enablePlan(plan *StrategyPlan) (*StrategyPlan, error) {
	precedence := plan.Class.DefaultPrecedence
	if v, ok := plan.CtorArgs["precedence"]; ok {
		p, err := toInt(v)
		if err != nil {
			return nil, configErrorf("instance %q: precedence: %v", plan.InstanceID, err)
		}
		precedence = p
	}

	criticality := plan.Class.DefaultCriticality
	if v, ok := plan.CtorArgs["criticality"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, configErrorf("instance %q: criticality must be a string", plan.InstanceID)
		}
		criticality = strategy.ParseCriticality(s)
	}
	if criticality == "" {
		criticality = strategy.Optional
	}

	plan.Precedence = precedence
	plan.Criticality = criticality

	if criticality == strategy.Disabled {
		return nil, nil
	}

	ctorArgs := make(map[string]any, len(plan.CtorArgs))
	for k, v := range plan.CtorArgs {
		if reservedCtorKeys[k] {
			continue
		}
		ctorArgs[k] = v
	}
	plan.CtorArgs = ctorArgs

	dependsOn := make(map[string]bool)
	scanForRefs(ctorArgs, dependsOn)
	plan.DependsOn = dependsOn

	if !plan.Class.AcceptsExtraKwargs && plan.Class.AllowedCtorKeys != nil {
		for k := range ctorArgs {
			if !plan.Class.AllowedCtorKeys[k] {
				return nil, configErrorf("instance %q: unknown constructor argument %q for strategy %q",
					plan.InstanceID, k, plan.StrategyName)
			}
		}
	}

	return plan, nil
}

// scanForRefs walks v recursively (maps and slices), collecting the
// normalized instance_id of every embedded StrategyRef into deps.
func scanForRefs(v any, deps map[string]bool) {
	switch t := v.(type) {
	case StrategyRef:
		deps[t.NormalizedInstanceID()] = true
	case *StrategyRef:
		if t != nil {
			deps[t.NormalizedInstanceID()] = true
		}
	case map[string]any:
		for _, vv := range t {
			scanForRefs(vv, deps)
		}
	case []any:
		for _, vv := range t {
			scanForRefs(vv, deps)
		}
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}

// validateDependencies ensures every plan's DependsOn names an enabled
// plan's instance_id, and that no two enabled plans share an instance_id.
func validateDependencies(plans []*StrategyPlan) error {
	byID := make(map[string]*StrategyPlan, len(plans))
	for _, p := range plans {
		if _, dup := byID[p.InstanceID]; dup {
			return configErrorf("duplicate instance_id %q among enabled plans", p.InstanceID)
		}
		byID[p.InstanceID] = p
	}
	for _, p := range plans {
		for dep := range p.DependsOn {
			if _, ok := byID[dep]; !ok {
				return configErrorf("plan %q depends on unknown or disabled instance_id %q", p.InstanceID, dep)
			}
		}
	}
	return nil
}

// enforceImperativeClosure ensures that every dependency reachable from an
// imperative plan is itself imperative, per spec.md §4.2's "imperative
// closure": an imperative strategy silently depending on a best-effort one
// would make failures disappear unexpectedly.
func enforceImperativeClosure(plans []*StrategyPlan) error {
	byID := make(map[string]*StrategyPlan, len(plans))
	for _, p := range plans {
		byID[p.InstanceID] = p
	}
	for _, p := range plans {
		if p.Criticality != strategy.Imperative {
			continue
		}
		visited := map[string]bool{p.InstanceID: true}
		stack := []string{p.InstanceID}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			curPlan := byID[cur]
			for dep := range curPlan.DependsOn {
				if visited[dep] {
					continue
				}
				visited[dep] = true
				depPlan := byID[dep]
				if depPlan.Criticality != strategy.Imperative {
					return configErrorf(
						"imperative plan %q transitively depends on non-imperative plan %q (criticality=%s)",
						p.InstanceID, dep, depPlan.Criticality)
				}
				stack = append(stack, dep)
			}
		}
	}
	return nil
}
