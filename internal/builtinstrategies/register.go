package builtinstrategies

import (
	"fmt"

	"github.com/k8ika0s/wheel-resolver/internal/lifecycle"
	"github.com/k8ika0s/wheel-resolver/internal/strategy"
)

// RegisterAll binds every builtin strategy class into reg under its
// builtin origin. Go has no runtime package-walk to discover these the
// way the original's load_strategies does (pkgutil.walk_packages over
// BUILTIN_STRATEGY_PACKAGE); calling this explicitly from the facade
// before lifecycle.Load stands in for that discovery step, matching
// spec.md §9's "adopt a plugin registry that accepts factory callables at
// program start" redesign guidance.
func RegisterAll(reg *lifecycle.Registry) error {
	classes := []*lifecycle.ClassInfo{
		{
			Name:               "pep691_http",
			Origin:             lifecycle.OriginBuiltin,
			DefaultPrecedence:  50,
			DefaultCriticality: strategy.Required,
			Kind:               strategy.KindIndexMetadata,
			AcceptsExtraKwargs: true,
			InstantiationPolicy: strategy.Singleton,
			Factory: func(plan *lifecycle.StrategyPlan, _ map[string]any) (strategy.Strategy, error) {
				return NewPep691IndexHTTPStrategy(plan.InstanceID, plan.Precedence, plan.Criticality), nil
			},
		},
		{
			Name:               "pep658_http",
			Origin:             lifecycle.OriginBuiltin,
			DefaultPrecedence:  50,
			DefaultCriticality: strategy.Required,
			Kind:               strategy.KindCoreMetadata,
			AcceptsExtraKwargs: true,
			InstantiationPolicy: strategy.Singleton,
			Factory: func(plan *lifecycle.StrategyPlan, _ map[string]any) (strategy.Strategy, error) {
				return NewPep658CoreMetadataHTTPStrategy(plan.InstanceID, plan.Precedence, plan.Criticality), nil
			},
		},
		{
			Name:               "wheel_http",
			Origin:             lifecycle.OriginBuiltin,
			DefaultPrecedence:  50,
			DefaultCriticality: strategy.Required,
			Kind:               strategy.KindWheelFile,
			AcceptsExtraKwargs: true,
			InstantiationPolicy: strategy.Singleton,
			Factory: func(plan *lifecycle.StrategyPlan, _ map[string]any) (strategy.Strategy, error) {
				return NewHTTPWheelFileStrategy(plan.InstanceID, plan.Precedence, plan.Criticality), nil
			},
		},
		{
			Name:               "uri_wheel_file",
			Origin:             lifecycle.OriginBuiltin,
			DefaultPrecedence:  40,
			DefaultCriticality: strategy.Required,
			Kind:               strategy.KindWheelFile,
			AcceptsExtraKwargs: true,
			InstantiationPolicy: strategy.Singleton,
			Factory: func(plan *lifecycle.StrategyPlan, _ map[string]any) (strategy.Strategy, error) {
				return NewDirectURIWheelFileStrategy(plan.InstanceID, plan.Precedence, plan.Criticality), nil
			},
		},
		{
			Name:               "wheel_extracted_metadata",
			Origin:             lifecycle.OriginBuiltin,
			DefaultPrecedence:  90,
			DefaultCriticality: strategy.Optional,
			Kind:               strategy.KindCoreMetadata,
			AllowedCtorKeys:    map[string]bool{"wheel_strategy": true},
			InstantiationPolicy: strategy.Singleton,
			Factory: func(plan *lifecycle.StrategyPlan, resolvedArgs map[string]any) (strategy.Strategy, error) {
				raw, ok := resolvedArgs["wheel_strategy"]
				if !ok {
					return nil, fmt.Errorf("builtinstrategies: wheel_extracted_metadata requires a wheel_strategy reference")
				}
				wheelStrategy, ok := raw.(strategy.Strategy)
				if !ok {
					return nil, fmt.Errorf("builtinstrategies: wheel_extracted_metadata's wheel_strategy must resolve to a strategy.Strategy, got %T", raw)
				}
				return NewWheelExtractedCoreMetadataStrategy(plan.InstanceID, plan.Precedence, plan.Criticality, wheelStrategy), nil
			},
		},
	}

	for _, c := range classes {
		if err := reg.RegisterStrategyClass(c); err != nil {
			return err
		}
	}

	return reg.RegisterConfigSpec("wheel_extracted_metadata", lifecycle.OriginBuiltin, wheelExtractedMetadataConfigSpec{})
}

// wheelExtractedMetadataConfigSpec synthesizes the one bespoke default the
// builtin package needs: wheel_extracted_metadata's wheel_strategy
// defaults to a StrategyRef naming the builtin HTTP wheel strategy,
// exactly as the original's field default does
// (wheel_strategy: WheelFileStrategy = field(kw_only=True) bound by the
// caller, here defaulted instead since Go has no keyword-only dataclass
// field injection to lean on).
type wheelExtractedMetadataConfigSpec struct{}

func (wheelExtractedMetadataConfigSpec) Defaults() map[string]any {
	return map[string]any{
		"wheel_strategy": lifecycle.StrategyRef{StrategyName: "wheel_http"},
	}
}

func (wheelExtractedMetadataConfigSpec) Plan(instanceID string, cfg map[string]any) ([]*lifecycle.StrategyPlan, error) {
	return []*lifecycle.StrategyPlan{{
		StrategyName: "wheel_extracted_metadata",
		InstanceID:   instanceID,
		CtorArgs:     cfg,
	}}, nil
}
