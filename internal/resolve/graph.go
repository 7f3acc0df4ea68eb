package resolve

import (
	"fmt"
	"sort"

	"github.com/k8ika0s/wheel-resolver/internal/artifact"
	"github.com/k8ika0s/wheel-resolver/internal/pep440"
)

// ResolvedNode is a pinned WheelKey together with the accessor properties
// original_source's model/graph.py derives from it, supplemented into
// this module beyond spec.md's explicit scope per SPEC_FULL.md §9 since
// the original ships a resolved dependency graph type alongside the
// requirements-text renderer and nothing in spec.md's Non-goals excludes
// it.
type ResolvedNode struct {
	WheelKey *artifact.WheelKey
}

func (n ResolvedNode) Name() string    { return n.WheelKey.Name() }
func (n ResolvedNode) Version() string { return n.WheelKey.Version() }
func (n ResolvedNode) Tag() string     { return n.WheelKey.Tag() }

// DependencyIDs returns the node's write-once dependency identifiers, or
// nil if never set.
func (n ResolvedNode) DependencyIDs() []string {
	ids, _ := n.WheelKey.DependencyIDs()
	return ids
}

// ResolvedGraph is the full dependency tree produced by one environment's
// resolution: its roots and a canonical identifier -> node mapping,
// grounded on model/graph.py's ResolvedGraph.
type ResolvedGraph struct {
	SupportedPythonBand pep440.SpecifierSet
	Roots               []*artifact.WheelKey
	Nodes               map[string]ResolvedNode // keyed by WheelKey.Identifier()
}

// NewResolvedGraph validates and constructs a ResolvedGraph, standing in
// for the original's __post_init__ topology checks: every root must have
// a node, and every dependency id named by a node must resolve to an
// existing node.
func NewResolvedGraph(pythonBand pep440.SpecifierSet, roots []*artifact.WheelKey, nodes map[string]ResolvedNode) (*ResolvedGraph, error) {
	var missingRoots []string
	for _, r := range roots {
		if _, ok := nodes[r.Identifier()]; !ok {
			missingRoots = append(missingRoots, r.Identifier())
		}
	}
	if len(missingRoots) > 0 {
		sort.Strings(missingRoots)
		return nil, fmt.Errorf("resolve: root nodes without metadata: %v", missingRoots)
	}

	var missingDeps []string
	for _, node := range nodes {
		for _, depID := range node.DependencyIDs() {
			if _, ok := nodes[depID]; !ok {
				missingDeps = append(missingDeps, depID)
			}
		}
	}
	if len(missingDeps) > 0 {
		sort.Strings(missingDeps)
		return nil, fmt.Errorf("resolve: dependencies refer to missing nodes: %v", missingDeps)
	}

	sortedRoots := append([]*artifact.WheelKey(nil), roots...)
	sort.Slice(sortedRoots, func(i, j int) bool { return sortedRoots[i].Less(sortedRoots[j]) })

	return &ResolvedGraph{SupportedPythonBand: pythonBand, Roots: sortedRoots, Nodes: nodes}, nil
}
