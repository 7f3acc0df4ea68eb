// Package lifecycle implements the strategy lifecycle: discovery of
// strategy classes and config specs, config ingestion, per-strategy
// planning, plan enablement and normalization, dependency validation,
// imperative-closure enforcement, stable topological ordering, and
// dependency-injected instantiation.
//
// Grounded on original_source's internal/util/strategy.py, the single
// largest and most load-bearing file in the original implementation.
// Python's dynamic class/package discovery (pkgutil.walk_packages,
// importlib.metadata.entry_points) has no Go analogue, so it becomes an
// explicit Registry that callers populate through RegisterStrategyClass
// (builtins via builtinstrategies.RegisterAll), per spec.md §9's "adopt a
// plugin registry that accepts factory callables at program start". The
// YAML manifest read by load.go carries instance configuration only,
// never strategy classes.
package lifecycle

import (
	"fmt"

	"github.com/k8ika0s/wheel-resolver/internal/strategy"
)

// Origin records where a strategy class or config spec was registered
// from, mirroring the original's builtin/entrypoint provenance tracking.
type Origin string

const (
	OriginBuiltin    Origin = "builtin"
	OriginEntrypoint Origin = "entrypoint"
)

// StrategyRef is a deferred-binding reference to another plan by
// normalized instance_id, embeddable anywhere inside a StrategyPlan's
// CtorArgs tree (maps, slices). The instantiator rewrites every StrategyRef
// it finds into the already-constructed strategy.Strategy it names.
type StrategyRef struct {
	StrategyName string
	InstanceID   string
}

// NormalizedInstanceID returns InstanceID if set, else StrategyName —
// matching the original's normalized_instance_id().
func (r StrategyRef) NormalizedInstanceID() string {
	if r.InstanceID != "" {
		return r.InstanceID
	}
	return r.StrategyName
}

// StrategyFactory constructs a live strategy.Strategy from a finalized
// plan and its ctor args with every StrategyRef already resolved to a
// constructed instance. It plays the role of the original's dynamic
// constructor-kwarg binding against a dataclass __init__.
type StrategyFactory func(plan *StrategyPlan, resolvedArgs map[string]any) (strategy.Strategy, error)

// ConfigSpec is the planning contract a strategy's configuration
// declares: default values merged under raw user config, and a Plan
// function producing zero or more StrategyPlans from one ingested config
// entry.
//
// Grounded on BaseArtifactResolutionStrategyConfig / DefaultStrategyConfig.
type ConfigSpec interface {
	Defaults() map[string]any
	Plan(instanceID string, cfg map[string]any) ([]*StrategyPlan, error)
}

// ClassInfo is what the registry tracks per strategy class: how to build
// it, its defaults, and whether its constructor accepts unknown keys
// (a catch-all variadic in the original).
type ClassInfo struct {
	Name               string
	Origin             Origin
	Factory            StrategyFactory
	DefaultPrecedence  int
	DefaultCriticality strategy.Criticality
	Kind               strategy.Kind
	// AllowedCtorKeys, if non-nil, is the exhaustive set of ctor argument
	// keys this strategy accepts; AcceptsExtraKwargs bypasses this check
	// entirely (the original's "class accepts a catch-all variadic").
	AllowedCtorKeys    map[string]bool
	AcceptsExtraKwargs bool
	InstantiationPolicy strategy.InstantiationPolicy
}

// StrategyPlan is the planner's output: a not-yet-instantiated strategy
// binding, possibly depending on other plans via StrategyRef values
// embedded in CtorArgs.
//
// Grounded on the original's StrategyPlan dataclass.
type StrategyPlan struct {
	StrategyName string
	InstanceID   string
	Class        *ClassInfo
	CtorArgs     map[string]any
	DependsOn    map[string]bool
	Precedence   int
	Criticality  strategy.Criticality
}

// ConfigError is the lifecycle's configuration-error kind (spec.md §7:
// "unknown strategy name, duplicate discovery, singleton policy
// violations, dependency references to missing/disabled plans, dependency
// cycles, imperative-closure violations, unknown config keys, value-type
// mismatches, constructor kwarg mismatch, instance_id mismatch after
// construction, unknown repository id, malformed plugin entry point").
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "lifecycle: " + e.Msg }

func configErrorf(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// Registry holds every discovered strategy class and config spec,
// distinguished by origin for duplicate-name detection exactly as
// spec.md §4.2's "Discovery" step requires ("Duplicate strategy_name
// across sources is fatal").
type Registry struct {
	strategyClasses map[string]*ClassInfo
	configSpecs     map[string]ConfigSpec
	configOrigins   map[string]Origin
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategyClasses: make(map[string]*ClassInfo),
		configSpecs:     make(map[string]ConfigSpec),
		configOrigins:   make(map[string]Origin),
	}
}

// RegisterStrategyClass adds a strategy class under name. A duplicate
// name (regardless of origin) is fatal.
func (r *Registry) RegisterStrategyClass(info *ClassInfo) error {
	if info.Name == "" {
		return configErrorf("strategy class registered with empty name")
	}
	if _, exists := r.strategyClasses[info.Name]; exists {
		return configErrorf("duplicate strategy class name %q", info.Name)
	}
	r.strategyClasses[info.Name] = info
	return nil
}

// RegisterConfigSpec adds a config spec for strategyName. A duplicate is
// fatal, mirroring discover_config_specs' behavior.
func (r *Registry) RegisterConfigSpec(strategyName string, origin Origin, spec ConfigSpec) error {
	if _, exists := r.configSpecs[strategyName]; exists {
		return configErrorf("duplicate config spec for strategy %q", strategyName)
	}
	r.configSpecs[strategyName] = spec
	r.configOrigins[strategyName] = origin
	return nil
}

// classInfoByName looks up a registered strategy class.
func (r *Registry) classInfoByName(name string) (*ClassInfo, bool) {
	c, ok := r.strategyClasses[name]
	return c, ok
}

// configSpecFor returns the registered config spec for a strategy name,
// falling back to DefaultConfigSpec when none was registered — matching
// the original's use of DefaultStrategyConfig as the implicit planner for
// strategies without a bespoke config class.
func (r *Registry) configSpecFor(name string) ConfigSpec {
	if spec, ok := r.configSpecs[name]; ok {
		return spec
	}
	return DefaultConfigSpec{}
}

// DefaultConfigSpec is the fallback planner used for any strategy with no
// registered bespoke ConfigSpec: it emits exactly one StrategyPlan built
// directly from the raw config and the strategy class's own defaults.
//
// Grounded on the original's DefaultStrategyConfig.
type DefaultConfigSpec struct{}

func (DefaultConfigSpec) Defaults() map[string]any { return nil }

func (DefaultConfigSpec) Plan(instanceID string, cfg map[string]any) ([]*StrategyPlan, error) {
	plan := &StrategyPlan{
		InstanceID: instanceID,
		CtorArgs:   cfg,
	}
	if sn, ok := cfg["strategy_name"].(string); ok && sn != "" {
		plan.StrategyName = sn
	} else {
		plan.StrategyName = instanceID
	}
	return []*StrategyPlan{plan}, nil
}
