package resolve

import (
	"testing"

	"github.com/k8ika0s/wheel-resolver/internal/artifact"
	"github.com/k8ika0s/wheel-resolver/internal/pep440"
)

func TestNewResolvedGraphValid(t *testing.T) {
	root := wk("app", "1.0")
	dep := wk("lib", "1.0")
	if err := dep.SetDependencyIDs(nil); err != nil {
		t.Fatalf("SetDependencyIDs: %v", err)
	}
	if err := root.SetDependencyIDs([]string{dep.Identifier()}); err != nil {
		t.Fatalf("SetDependencyIDs: %v", err)
	}

	nodes := map[string]ResolvedNode{
		root.Identifier(): {WheelKey: root},
		dep.Identifier():  {WheelKey: dep},
	}

	g, err := NewResolvedGraph(pep440.SpecifierSet{}, []*artifact.WheelKey{root}, nodes)
	if err != nil {
		t.Fatalf("NewResolvedGraph: %v", err)
	}
	if len(g.Roots) != 1 || g.Roots[0] != root {
		t.Fatalf("unexpected roots: %v", g.Roots)
	}
	if got := g.Nodes[root.Identifier()].DependencyIDs(); len(got) != 1 || got[0] != dep.Identifier() {
		t.Fatalf("unexpected dependency ids: %v", got)
	}
}

func TestNewResolvedGraphMissingRootIsError(t *testing.T) {
	root := wk("app", "1.0")
	_, err := NewResolvedGraph(pep440.SpecifierSet{}, []*artifact.WheelKey{root}, map[string]ResolvedNode{})
	if err == nil {
		t.Fatal("expected an error for a root absent from nodes")
	}
}

func TestNewResolvedGraphMissingDependencyIsError(t *testing.T) {
	root := wk("app", "1.0")
	if err := root.SetDependencyIDs([]string{"ghost-1.0-py3-none-any"}); err != nil {
		t.Fatalf("SetDependencyIDs: %v", err)
	}
	nodes := map[string]ResolvedNode{root.Identifier(): {WheelKey: root}}

	_, err := NewResolvedGraph(pep440.SpecifierSet{}, []*artifact.WheelKey{root}, nodes)
	if err == nil {
		t.Fatal("expected an error for a dependency id with no matching node")
	}
}
