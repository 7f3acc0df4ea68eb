package lifecycle

import (
	"github.com/k8ika0s/wheel-resolver/internal/strategy"
)

// instantiatePlans walks plans in the already-topo-sorted order,
// constructing each in turn and rewriting every StrategyRef in its ctor
// args into the already-constructed instance it names, per spec.md
// §4.2's "Instantiation" step.
//
// Grounded on the original's instantiate_plans / _resolve_ctor_kwargs /
// _apply_plan_metadata.
func instantiatePlans(plans []*StrategyPlan) ([]strategy.Strategy, error) {
	built := make(map[string]strategy.Strategy, len(plans))
	out := make([]strategy.Strategy, 0, len(plans))

	for _, p := range plans {
		resolvedArgs, err := resolveRefs(p.CtorArgs, built)
		if err != nil {
			return nil, configErrorf("instantiating %q: %v", p.InstanceID, err)
		}

		instance, err := p.Class.Factory(p, resolvedArgs)
		if err != nil {
			return nil, configErrorf("constructing %q (%s): %v", p.InstanceID, p.StrategyName, err)
		}
		if instance.InstanceID() != p.InstanceID {
			return nil, configErrorf(
				"strategy %q constructed with instance_id %q, expected %q",
				p.StrategyName, instance.InstanceID(), p.InstanceID)
		}

		built[p.InstanceID] = instance
		out = append(out, instance)
	}
	return out, nil
}

// resolveRefs deep-copies v, replacing every StrategyRef with the
// already-constructed strategy it names. A reference to an instance_id
// not yet present in built (i.e. the topo sort did not order it first) is
// a bug in the caller, surfaced as an error rather than a panic.
func resolveRefs(v any, built map[string]strategy.Strategy) (any, error) {
	switch t := v.(type) {
	case StrategyRef:
		inst, ok := built[t.NormalizedInstanceID()]
		if !ok {
			return nil, configErrorf("reference to %q not yet constructed", t.NormalizedInstanceID())
		}
		return inst, nil
	case *StrategyRef:
		if t == nil {
			return nil, nil
		}
		return resolveRefs(*t, built)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			rv, err := resolveRefs(vv, built)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			rv, err := resolveRefs(vv, built)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}
