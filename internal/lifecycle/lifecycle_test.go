package lifecycle

import (
	"context"
	"testing"

	"github.com/k8ika0s/wheel-resolver/internal/artifact"
	"github.com/k8ika0s/wheel-resolver/internal/strategy"
)

type fakeStrategy struct {
	strategy.Base
	dep strategy.Strategy
}

func (f *fakeStrategy) Resolve(ctx context.Context, key artifact.Key, destinationURI string) (*artifact.Record, error) {
	return nil, strategy.ErrNotApplicable
}

func registerFake(t *testing.T, reg *Registry, name string, precedence int, crit strategy.Criticality, takesDep bool) {
	t.Helper()
	allowed := map[string]bool{}
	if takesDep {
		allowed["upstream"] = true
	}
	err := reg.RegisterStrategyClass(&ClassInfo{
		Name:               name,
		Origin:             OriginBuiltin,
		DefaultPrecedence:  precedence,
		DefaultCriticality: crit,
		AllowedCtorKeys:    allowed,
		InstantiationPolicy: strategy.Singleton,
		Factory: func(plan *StrategyPlan, args map[string]any) (strategy.Strategy, error) {
			fs := &fakeStrategy{Base: strategy.NewBase(plan.StrategyName, plan.InstanceID, plan.Precedence, plan.Criticality, artifact.SourceOther)}
			if dep, ok := args["upstream"].(strategy.Strategy); ok {
				fs.dep = dep
			}
			return fs, nil
		},
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
}

func TestLoadOrdersByPrecedenceAndInstantiatesDependencies(t *testing.T) {
	reg := NewRegistry()
	registerFake(t, reg, "low", 10, strategy.Optional, false)
	registerFake(t, reg, "high", 100, strategy.Optional, true)

	raw := map[string]*RawConfig{
		"high": {Instances: map[string]map[string]any{
			"high": {"upstream": StrategyRef{StrategyName: "low"}},
		}},
	}

	instances, err := Load(reg, raw)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(instances) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(instances))
	}
	if instances[0].InstanceID() != "low" {
		t.Fatalf("expected low to be constructed first (dependency order), got %s", instances[0].InstanceID())
	}
	high := instances[1].(*fakeStrategy)
	if high.dep == nil || high.dep.InstanceID() != "low" {
		t.Fatalf("expected high's upstream ref resolved to low, got %+v", high.dep)
	}
}

func TestLoadSynthesizesDefaultInstanceForUnconfiguredBuiltin(t *testing.T) {
	reg := NewRegistry()
	registerFake(t, reg, "solo", 50, strategy.Required, false)

	instances, err := Load(reg, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(instances) != 1 || instances[0].InstanceID() != "solo" {
		t.Fatalf("expected one synthesized instance named 'solo', got %+v", instances)
	}
}

func TestLoadDropsDisabledInstance(t *testing.T) {
	reg := NewRegistry()
	registerFake(t, reg, "maybe", 50, strategy.Optional, false)

	raw := map[string]*RawConfig{
		"maybe": {Instances: map[string]map[string]any{
			"maybe": {"criticality": "disabled"},
		}},
	}
	instances, err := Load(reg, raw)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(instances) != 0 {
		t.Fatalf("expected disabled instance to be dropped, got %+v", instances)
	}
}

func TestLoadRejectsMissingDependency(t *testing.T) {
	reg := NewRegistry()
	registerFake(t, reg, "needsDep", 50, strategy.Optional, true)

	raw := map[string]*RawConfig{
		"needsDep": {Instances: map[string]map[string]any{
			"needsDep": {"upstream": StrategyRef{StrategyName: "ghost"}},
		}},
	}
	if _, err := Load(reg, raw); err == nil {
		t.Fatalf("expected error for dependency on unknown instance")
	}
}

func TestLoadRejectsImperativeDependingOnOptional(t *testing.T) {
	reg := NewRegistry()
	registerFake(t, reg, "base", 10, strategy.Optional, false)
	registerFake(t, reg, "top", 100, strategy.Imperative, true)

	raw := map[string]*RawConfig{
		"top": {Instances: map[string]map[string]any{
			"top": {"upstream": StrategyRef{StrategyName: "base"}},
		}},
	}
	if _, err := Load(reg, raw); err == nil {
		t.Fatalf("expected imperative-closure violation error")
	}
}

func TestLoadRejectsUnknownStrategyName(t *testing.T) {
	reg := NewRegistry()
	registerFake(t, reg, "known", 10, strategy.Optional, false)

	raw := map[string]*RawConfig{
		"unknown": {Instances: map[string]map[string]any{"x": {}}},
	}
	if _, err := Load(reg, raw); err == nil {
		t.Fatalf("expected error for config referencing unknown strategy")
	}
}

func TestBucketByKindSortsWithinBucket(t *testing.T) {
	s1 := &fakeStrategy{Base: strategy.NewBase("a", "a", 20, strategy.Optional, artifact.SourceOther)}
	s2 := &fakeStrategy{Base: strategy.NewBase("b", "b", 10, strategy.Optional, artifact.SourceOther)}
	typed1 := &typedFake{fakeStrategy: s1, kind: strategy.KindWheelFile}
	typed2 := &typedFake{fakeStrategy: s2, kind: strategy.KindWheelFile}

	buckets := BucketByKind([]strategy.Strategy{typed1, typed2})
	bucket := buckets[strategy.KindWheelFile]
	if len(bucket) != 2 || bucket[0].InstanceID() != "b" {
		t.Fatalf("expected lower-precedence 'b' first, got %+v", bucket)
	}
}

type typedFake struct {
	*fakeStrategy
	kind strategy.Kind
}

func (t *typedFake) Kind() strategy.Kind { return t.kind }
