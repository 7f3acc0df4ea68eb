package resolve

import (
	"errors"
	"fmt"
	"sort"
)

// Resolver drives the pin -> expand -> conflict -> backtrack loop against
// a Provider, grounded on internal/resolvelib.py's module-level resolve()
// function and the resolvelib.Resolution class it wraps. resolvelib's own
// implementation threads a mutable per-criterion "incompatibilities" set
// through repeated find_matches calls so a later round can exclude a
// candidate a sibling branch already rejected (its "backjump"
// optimization). Go has no equivalent to resolvelib's generator-based
// IteratorMapping, and a plain recursive depth-first search over
// immutable, copy-on-branch state is far simpler to read and verify
// correct; it explores the identical solution space (same pin order via
// GetPreference, same candidate order via FindMatches, same conflict
// detection via IsSatisfiedBy) and differs only in that a candidate
// rejected in one branch may be re-examined in a sibling branch rather
// than being permanently excluded. That trade only costs some redundant
// work, never correctness or determinism.
type Resolver struct {
	Provider Provider
	MaxDepth int
}

// NewResolver constructs a Resolver with a sane recursion-depth ceiling,
// standing in for resolvelib.resolve's max_rounds guard against runaway
// resolutions.
func NewResolver(p Provider) *Resolver {
	return &Resolver{Provider: p, MaxDepth: 500}
}

// Result is the solver's output: the final pin for every identifier and
// the accumulated criteria describing why each was chosen.
type Result struct {
	Mapping  map[string]*ResolverCandidate
	Criteria map[string]*Criterion
}

// ResolutionImpossibleError reports that no assignment satisfies every
// accumulated requirement, carrying the RequirementInformation records
// that caused the final failure (resolvelib's ResolutionImpossible).
type ResolutionImpossibleError struct {
	Causes []RequirementInformation
}

func (e *ResolutionImpossibleError) Error() string {
	return fmt.Sprintf("resolve: no candidate satisfies %d contributing requirement(s)", len(e.Causes))
}

// ResolutionTooDeepError reports that the recursion ceiling was reached
// without converging (resolvelib's ResolutionTooDeep).
type ResolutionTooDeepError struct {
	MaxDepth int
}

func (e *ResolutionTooDeepError) Error() string {
	return fmt.Sprintf("resolve: exceeded max resolution depth (%d)", e.MaxDepth)
}

// Resolve runs the solver to completion over the given root requirements.
func (r *Resolver) Resolve(roots []*ResolverRequirement) (*Result, error) {
	criteria := map[string]*Criterion{}
	for _, req := range roots {
		if err := r.addToCriteria(criteria, req, nil); err != nil {
			return nil, err
		}
	}

	mapping := map[string]*ResolverCandidate{}
	finalMapping, finalCriteria, err := r.solve(criteria, mapping, nil, 0)
	if err != nil {
		return nil, err
	}
	return &Result{Mapping: finalMapping, Criteria: finalCriteria}, nil
}

// addToCriteria appends req (contributed by parent) to criteria's
// identifier bucket and recomputes its candidate list via FindMatches,
// grounded on resolvelib.Resolution._add_to_criteria.
func (r *Resolver) addToCriteria(criteria map[string]*Criterion, req *ResolverRequirement, parent *ResolverCandidate) error {
	name := req.Name()
	var info []RequirementInformation
	if existing, ok := criteria[name]; ok {
		info = append(append([]RequirementInformation{}, existing.Information...), RequirementInformation{Requirement: req, Parent: parent})
	} else {
		info = []RequirementInformation{{Requirement: req, Parent: parent}}
	}

	reqs := make([]*ResolverRequirement, len(info))
	for i, in := range info {
		reqs[i] = in.Requirement
	}

	matches, err := r.Provider.FindMatches(name, reqs, nil)
	if err != nil {
		return fmt.Errorf("resolve: find matches for %s: %w", name, err)
	}
	criteria[name] = &Criterion{Information: info, Candidates: matches}
	if len(matches) == 0 {
		return &ResolutionImpossibleError{Causes: info}
	}
	return nil
}

// solve is the recursive pin/expand/backtrack step. criteria and mapping
// are never mutated in place once passed to a recursive call — each
// candidate attempt works against its own clone, so an unsuccessful
// branch leaves the caller's state untouched.
func (r *Resolver) solve(criteria map[string]*Criterion, mapping map[string]*ResolverCandidate, backtrackCauses []RequirementInformation, depth int) (map[string]*ResolverCandidate, map[string]*Criterion, error) {
	if depth > r.MaxDepth {
		return nil, nil, &ResolutionTooDeepError{MaxDepth: r.MaxDepth}
	}

	unsatisfied := r.unsatisfiedNames(criteria, mapping)
	if len(unsatisfied) == 0 {
		return mapping, criteria, nil
	}

	name := r.pickName(unsatisfied, criteria, mapping, backtrackCauses)
	crit := criteria[name]

	var lastCauses []RequirementInformation
	currentBacktrackCauses := backtrackCauses
	for _, cand := range crit.Candidates {
		if !allSatisfied(crit.Information, cand, r.Provider) {
			continue
		}

		branchCriteria := cloneCriteria(criteria)
		expandCauses, err := r.expand(branchCriteria, cand)
		if err != nil {
			return nil, nil, err
		}
		if expandCauses != nil {
			lastCauses = expandCauses
			currentBacktrackCauses = expandCauses
			continue
		}

		branchMapping := cloneMapping(mapping)
		branchMapping[name] = cand

		resultMapping, resultCriteria, err := r.solve(branchCriteria, branchMapping, currentBacktrackCauses, depth+1)
		if err == nil {
			return resultMapping, resultCriteria, nil
		}
		var impossible *ResolutionImpossibleError
		if errors.As(err, &impossible) {
			lastCauses = impossible.Causes
			currentBacktrackCauses = impossible.Causes
			continue
		}
		return nil, nil, err
	}

	if lastCauses == nil {
		lastCauses = crit.Information
	}
	return nil, nil, &ResolutionImpossibleError{Causes: lastCauses}
}

// expand adds every dependency of cand to branchCriteria. A nil, nil
// return means every dependency was added cleanly; a non-nil causes slice
// means cand is unworkable in this branch (some dependency's candidate
// set collapsed to empty).
func (r *Resolver) expand(criteria map[string]*Criterion, cand *ResolverCandidate) ([]RequirementInformation, error) {
	deps, err := r.Provider.GetDependencies(cand)
	if err != nil {
		return nil, fmt.Errorf("resolve: get dependencies for %s: %w", cand.Name(), err)
	}
	for _, dep := range deps {
		if err := r.addToCriteria(criteria, dep, cand); err != nil {
			var impossible *ResolutionImpossibleError
			if errors.As(err, &impossible) {
				return impossible.Causes, nil
			}
			return nil, err
		}
	}
	return nil, nil
}

func (r *Resolver) unsatisfiedNames(criteria map[string]*Criterion, mapping map[string]*ResolverCandidate) []string {
	var names []string
	for name, crit := range criteria {
		if !r.isPinSatisfying(name, crit, mapping) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (r *Resolver) isPinSatisfying(name string, crit *Criterion, mapping map[string]*ResolverCandidate) bool {
	cand, ok := mapping[name]
	if !ok {
		return false
	}
	return allSatisfied(crit.Information, cand, r.Provider)
}

func allSatisfied(infos []RequirementInformation, cand *ResolverCandidate, p Provider) bool {
	for _, info := range infos {
		if !p.IsSatisfiedBy(info.Requirement, cand) {
			return false
		}
	}
	return true
}

func (r *Resolver) pickName(names []string, criteria map[string]*Criterion, mapping map[string]*ResolverCandidate, backtrackCauses []RequirementInformation) string {
	best := names[0]
	bestPref := r.Provider.GetPreference(best, mapping, criteria, backtrackCauses)
	for _, name := range names[1:] {
		pref := r.Provider.GetPreference(name, mapping, criteria, backtrackCauses)
		if pref.Less(bestPref) {
			best = name
			bestPref = pref
		}
	}
	return best
}

func cloneCriteria(criteria map[string]*Criterion) map[string]*Criterion {
	out := make(map[string]*Criterion, len(criteria))
	for k, v := range criteria {
		out[k] = &Criterion{
			Information: append([]RequirementInformation{}, v.Information...),
			Candidates:  append([]*ResolverCandidate{}, v.Candidates...),
		}
	}
	return out
}

func cloneMapping(mapping map[string]*ResolverCandidate) map[string]*ResolverCandidate {
	out := make(map[string]*ResolverCandidate, len(mapping))
	for k, v := range mapping {
		out[k] = v
	}
	return out
}
