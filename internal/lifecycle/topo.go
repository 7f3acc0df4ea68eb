package lifecycle

import "sort"

// topoSortPlans produces a stable dependency order over plans: a Kahn's
// algorithm walk where the ready queue is, at every step, re-sorted by
// (precedence, instance_id) before its head is popped, so that among
// plans with no remaining unresolved dependency the lower-precedence
// (and then lexicographically earlier) instance always goes first.
//
// Grounded on the original's topo_sort_plans /
// _build_dependency_graph / _initialize_ready_queue /
// _process_topological_order.
func topoSortPlans(plans []*StrategyPlan) ([]*StrategyPlan, error) {
	byID := make(map[string]*StrategyPlan, len(plans))
	indegree := make(map[string]int, len(plans))
	dependents := make(map[string][]string, len(plans))

	for _, p := range plans {
		byID[p.InstanceID] = p
		if _, ok := indegree[p.InstanceID]; !ok {
			indegree[p.InstanceID] = 0
		}
	}
	for _, p := range plans {
		for dep := range p.DependsOn {
			indegree[p.InstanceID]++
			dependents[dep] = append(dependents[dep], p.InstanceID)
		}
	}

	ready := make([]string, 0, len(plans))
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}

	var out []*StrategyPlan
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			pi, pj := byID[ready[i]], byID[ready[j]]
			if pi.Precedence != pj.Precedence {
				return pi.Precedence < pj.Precedence
			}
			return pi.InstanceID < pj.InstanceID
		})
		next := ready[0]
		ready = ready[1:]
		out = append(out, byID[next])

		for _, child := range dependents[next] {
			indegree[child]--
			if indegree[child] == 0 {
				ready = append(ready, child)
			}
		}
	}

	if len(out) != len(plans) {
		return nil, configErrorf("dependency cycle detected among strategy plans")
	}
	return out, nil
}
