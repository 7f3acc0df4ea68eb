package resolve

import "github.com/k8ika0s/wheel-resolver/internal/artifact"

// ResolverRequirement wraps a WheelSpec as the solver's requirement
// value, grounded on resolvelib_types.py's ResolverRequirement.
type ResolverRequirement struct {
	WheelSpec WheelSpec
}

// Name returns the requirement's canonicalized project name, standing in
// for the original's identify(requirement).
func (r *ResolverRequirement) Name() string {
	return artifact.NormalizeProjectName(r.WheelSpec.Name)
}

// ResolverCandidate wraps a pinned-or-candidate WheelKey as the solver's
// candidate value, grounded on resolvelib_types.py's ResolverCandidate.
type ResolverCandidate struct {
	WheelKey *artifact.WheelKey
}

// Name returns the candidate's canonicalized project name.
func (c *ResolverCandidate) Name() string { return c.WheelKey.Name() }

// RequirementInformation records one requirement contributing to a
// Criterion, and the candidate (nil for a root requirement) that
// introduced it via dependency expansion.
type RequirementInformation struct {
	Requirement *ResolverRequirement
	Parent      *ResolverCandidate
}

// Criterion accumulates every requirement known for one identifier and
// the ordered candidate list currently satisfying all of them.
type Criterion struct {
	Information []RequirementInformation
	Candidates  []*ResolverCandidate
}

// Requirements returns the requirement half of Information, in order.
func (c *Criterion) Requirements() []*ResolverRequirement {
	out := make([]*ResolverRequirement, len(c.Information))
	for i, info := range c.Information {
		out[i] = info.Requirement
	}
	return out
}

// Preference is the sort key returned by Provider.GetPreference: smaller
// sorts first, exactly spec.md §4.5.7's five-tuple.
type Preference struct {
	BacktrackCause  int
	NotRoot         int
	NegParentCount  int
	AlreadyResolved int
	Identifier      string
}

// Less implements the ordering spec.md §4.5.7 documents: lexicographic
// comparison of the five components in order.
func (p Preference) Less(other Preference) bool {
	if p.BacktrackCause != other.BacktrackCause {
		return p.BacktrackCause < other.BacktrackCause
	}
	if p.NotRoot != other.NotRoot {
		return p.NotRoot < other.NotRoot
	}
	if p.NegParentCount != other.NegParentCount {
		return p.NegParentCount < other.NegParentCount
	}
	if p.AlreadyResolved != other.AlreadyResolved {
		return p.AlreadyResolved < other.AlreadyResolved
	}
	return p.Identifier < other.Identifier
}

// Provider is the solver's extension surface, grounded on
// internal/resolvelib.py's ProjectResolutionProvider and on
// resolvelib_types.py's Preference protocol. Go folds the original's
// polymorphic identify(req_or_cand) into the Name() methods on
// ResolverRequirement/ResolverCandidate themselves, since Go's static
// typing already disambiguates which one is in hand at each call site.
type Provider interface {
	// FindMatches produces an ordered candidate list for identifier given
	// every requirement currently active for it. incompatibilities names
	// (name, version, tag) triples to exclude; this implementation keeps
	// the parameter for interface parity with the original but always
	// passes an empty set (see the Resolver doc in backtrack.go for why).
	FindMatches(identifier string, requirements []*ResolverRequirement, incompatibilities map[[3]string]bool) ([]*ResolverCandidate, error)

	IsSatisfiedBy(req *ResolverRequirement, cand *ResolverCandidate) bool

	GetDependencies(cand *ResolverCandidate) ([]*ResolverRequirement, error)

	GetPreference(identifier string, resolutions map[string]*ResolverCandidate, criteria map[string]*Criterion, backtrackCauses []RequirementInformation) Preference
}
