package resolve

import (
	"errors"
	"testing"

	"github.com/k8ika0s/wheel-resolver/internal/artifact"
	"github.com/k8ika0s/wheel-resolver/internal/pep440"
)

// fakeProvider is a hand-wired, in-memory Provider over a tiny fixed
// universe of name -> candidate versions and a static dependency map,
// letting these tests exercise the solver without any index/core metadata
// plumbing.
type fakeProvider struct {
	candidatesByName map[string][]*ResolverCandidate
	depsByCandidate   map[string][]*ResolverRequirement
}

func wk(name, version string) *artifact.WheelKey {
	return artifact.NewWheelKey(name, version, "py3-none-any", []string{"py3-none-any"})
}

func (p *fakeProvider) FindMatches(identifier string, requirements []*ResolverRequirement, _ map[[3]string]bool) ([]*ResolverCandidate, error) {
	return p.candidatesByName[identifier], nil
}

func (p *fakeProvider) IsSatisfiedBy(r *ResolverRequirement, c *ResolverCandidate) bool {
	if r.Name() != c.Name() {
		return false
	}
	if !r.WheelSpec.HasVersion {
		return true
	}
	v, err := pep440.ParseVersion(c.WheelKey.Version())
	if err != nil {
		return false
	}
	return r.WheelSpec.Version.Contains(v, true)
}

func (p *fakeProvider) GetDependencies(c *ResolverCandidate) ([]*ResolverRequirement, error) {
	return p.depsByCandidate[c.WheelKey.Identifier()], nil
}

func (p *fakeProvider) GetPreference(identifier string, resolutions map[string]*ResolverCandidate, criteria map[string]*Criterion, backtrackCauses []RequirementInformation) Preference {
	return Preference{Identifier: identifier}
}

func reqPlain(name string) *ResolverRequirement {
	return &ResolverRequirement{WheelSpec: WheelSpec{Name: name}}
}

func reqPinned(t *testing.T, name, version string) *ResolverRequirement {
	t.Helper()
	set, err := pep440.ParseSpecifierSet("==" + version)
	if err != nil {
		t.Fatalf("ParseSpecifierSet: %v", err)
	}
	return &ResolverRequirement{WheelSpec: WheelSpec{Name: name, HasVersion: true, Version: set}}
}

func TestResolverDiamond(t *testing.T) {
	// app -> a (any), app -> b (any); a -> lib==1.0; b -> lib==1.0.
	// Expect lib pinned once at 1.0, no conflict.
	appCand := &ResolverCandidate{WheelKey: wk("app", "1.0")}
	aCand := &ResolverCandidate{WheelKey: wk("a", "1.0")}
	bCand := &ResolverCandidate{WheelKey: wk("b", "1.0")}
	libCand := &ResolverCandidate{WheelKey: wk("lib", "1.0")}

	p := &fakeProvider{
		candidatesByName: map[string][]*ResolverCandidate{
			"app": {appCand},
			"a":   {aCand},
			"b":   {bCand},
			"lib": {libCand},
		},
		depsByCandidate: map[string][]*ResolverRequirement{
			appCand.WheelKey.Identifier(): {reqPlain("a"), reqPlain("b")},
			aCand.WheelKey.Identifier():   {reqPinned(t, "lib", "1.0")},
			bCand.WheelKey.Identifier():   {reqPinned(t, "lib", "1.0")},
		},
	}

	solver := NewResolver(p)
	result, err := solver.Resolve([]*ResolverRequirement{reqPlain("app")})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := result.Mapping["lib"].WheelKey.Version(); got != "1.0" {
		t.Fatalf("lib pinned to %q, want 1.0", got)
	}
	if len(result.Mapping) != 4 {
		t.Fatalf("expected 4 pinned identifiers, got %d: %v", len(result.Mapping), result.Mapping)
	}
}

func TestResolverConflictIsImpossible(t *testing.T) {
	// app -> a (any), app -> b (any); a -> lib==1.0; b -> lib==2.0, but lib
	// only ever has a 1.0 candidate in this fixture, so b's pin can never
	// be satisfied: resolution must fail.
	appCand := &ResolverCandidate{WheelKey: wk("app", "1.0")}
	aCand := &ResolverCandidate{WheelKey: wk("a", "1.0")}
	bCand := &ResolverCandidate{WheelKey: wk("b", "1.0")}
	libCand := &ResolverCandidate{WheelKey: wk("lib", "1.0")}

	p := &fakeProvider{
		candidatesByName: map[string][]*ResolverCandidate{
			"app": {appCand},
			"a":   {aCand},
			"b":   {bCand},
			"lib": {libCand},
		},
		depsByCandidate: map[string][]*ResolverRequirement{
			appCand.WheelKey.Identifier(): {reqPlain("a"), reqPlain("b")},
			aCand.WheelKey.Identifier():   {reqPinned(t, "lib", "1.0")},
			bCand.WheelKey.Identifier():   {reqPinned(t, "lib", "2.0")},
		},
	}

	solver := NewResolver(p)
	_, err := solver.Resolve([]*ResolverRequirement{reqPlain("app")})
	var impossible *ResolutionImpossibleError
	if !errors.As(err, &impossible) {
		t.Fatalf("expected ResolutionImpossibleError, got %v", err)
	}
}

func TestResolverEmptyCandidateSetIsImpossible(t *testing.T) {
	p := &fakeProvider{candidatesByName: map[string][]*ResolverCandidate{"missing": nil}}
	solver := NewResolver(p)
	_, err := solver.Resolve([]*ResolverRequirement{reqPlain("missing")})
	var impossible *ResolutionImpossibleError
	if !errors.As(err, &impossible) {
		t.Fatalf("expected ResolutionImpossibleError, got %v", err)
	}
}
