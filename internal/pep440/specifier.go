package pep440

import (
	"fmt"
	"regexp"
	"strings"
)

// Operator is one of PEP 440's comparison operators.
type Operator string

const (
	OpEqual            Operator = "=="
	OpNotEqual         Operator = "!="
	OpLessEqual        Operator = "<="
	OpGreaterEqual     Operator = ">="
	OpLess             Operator = "<"
	OpGreater          Operator = ">"
	OpCompatible       Operator = "~="
	OpArbitraryEqual   Operator = "==="
)

// Specifier is a single "<op><version>" clause, e.g. ">=1.0".
type Specifier struct {
	Op      Operator
	Raw     string // the version string as written, wildcards included
	Version Version
	wildcard bool
}

var specifierPattern = regexp.MustCompile(`^\s*(~=|===|==|!=|<=|>=|<|>)\s*(.+?)\s*$`)

// ParseSpecifier parses one "<op><version>" clause.
func ParseSpecifier(raw string) (Specifier, error) {
	m := specifierPattern.FindStringSubmatch(raw)
	if m == nil {
		return Specifier{}, fmt.Errorf("pep440: invalid specifier %q", raw)
	}
	op := Operator(m[1])
	verRaw := m[2]
	wildcard := strings.HasSuffix(verRaw, ".*")
	s := Specifier{Op: op, Raw: verRaw, wildcard: wildcard}
	if op == OpArbitraryEqual {
		s.Version = Version{original: verRaw}
		return s, nil
	}
	trimmed := strings.TrimSuffix(verRaw, ".*")
	v, err := ParseVersion(trimmed)
	if err != nil {
		return Specifier{}, err
	}
	s.Version = v
	return s, nil
}

// Contains reports whether candidate satisfies this one specifier.
// allowPrerelease governs whether a prerelease candidate is accepted when
// the specifier itself does not pin an exact prerelease version.
func (s Specifier) Contains(candidate Version, allowPrerelease bool) bool {
	if s.Op != OpArbitraryEqual && s.Version.Local == "" {
		candidate.Local = ""
	}
	if candidate.IsPrerelease() && !allowPrerelease && !s.Version.IsPrerelease() {
		return false
	}
	switch s.Op {
	case OpEqual:
		if s.wildcard {
			return releasePrefixMatch(candidate, s.Version)
		}
		return candidate.Compare(s.Version) == 0 && candidate.Local == s.Version.Local
	case OpNotEqual:
		if s.wildcard {
			return !releasePrefixMatch(candidate, s.Version)
		}
		return !(candidate.Compare(s.Version) == 0 && candidate.Local == s.Version.Local)
	case OpLessEqual:
		return candidate.Compare(s.Version) <= 0
	case OpGreaterEqual:
		return candidate.Compare(s.Version) >= 0
	case OpLess:
		return candidate.Compare(s.Version) < 0
	case OpGreater:
		return candidate.Compare(s.Version) > 0
	case OpCompatible:
		return compatibleRelease(candidate, s.Version)
	case OpArbitraryEqual:
		return strings.TrimSpace(candidate.original) == strings.TrimSpace(s.Raw) ||
			candidate.String() == s.Raw
	default:
		return false
	}
}

// releasePrefixMatch implements "==X.Y.*" style wildcard matching: the
// candidate's release segment must share the specifier's release prefix.
func releasePrefixMatch(candidate, spec Version) bool {
	if candidate.Epoch != spec.Epoch {
		return false
	}
	for i, n := range spec.Release {
		if candidate.releaseAt(i) != n {
			return false
		}
	}
	return true
}

// compatibleRelease implements "~=X.Y[.Z]": equivalent to ">=X.Y.Z,
// ==X.Y.*" (drop the last release segment for the prefix match, require
// the full version to be >= the specifier).
func compatibleRelease(candidate, spec Version) bool {
	if len(spec.Release) < 2 {
		return false
	}
	prefix := Version{Epoch: spec.Epoch, Release: spec.Release[:len(spec.Release)-1]}
	return candidate.Compare(spec) >= 0 && releasePrefixMatch(candidate, prefix)
}

// SpecifierSet is the conjunction ("AND") of zero or more Specifiers.
type SpecifierSet struct {
	Specifiers []Specifier
}

// ParseSpecifierSet parses a comma-separated list of specifier clauses. An
// empty string yields an empty (always-satisfied) set.
func ParseSpecifierSet(raw string) (SpecifierSet, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SpecifierSet{}, nil
	}
	parts := strings.Split(raw, ",")
	set := SpecifierSet{Specifiers: make([]Specifier, 0, len(parts))}
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		s, err := ParseSpecifier(p)
		if err != nil {
			return SpecifierSet{}, err
		}
		set.Specifiers = append(set.Specifiers, s)
	}
	return set, nil
}

// Contains reports whether candidate satisfies every specifier in the set.
func (s SpecifierSet) Contains(candidate Version, allowPrerelease bool) bool {
	for _, sp := range s.Specifiers {
		if !sp.Contains(candidate, allowPrerelease) {
			return false
		}
	}
	return true
}

// Empty reports whether the set has no clauses (i.e. unconstrained).
func (s SpecifierSet) Empty() bool { return len(s.Specifiers) == 0 }

// String renders the comma-joined specifier clauses.
func (s SpecifierSet) String() string {
	parts := make([]string, len(s.Specifiers))
	for i, sp := range s.Specifiers {
		parts[i] = string(sp.Op) + sp.Raw
	}
	return strings.Join(parts, ",")
}

// Combine returns the conjunction of all given specifier sets (used to
// build the "combined spec" across every requirement for one identifier,
// per spec.md §4.5.1).
func Combine(sets ...SpecifierSet) SpecifierSet {
	var out SpecifierSet
	for _, s := range sets {
		out.Specifiers = append(out.Specifiers, s.Specifiers...)
	}
	return out
}

// HasExplicitPrerelease reports whether any clause in the set pins to a
// specific prerelease version, which under PEP 440's "implicit opt-in"
// rule allows prereleases to satisfy the set even under a default policy.
func (s SpecifierSet) HasExplicitPrerelease() bool {
	for _, sp := range s.Specifiers {
		if sp.Version.IsPrerelease() {
			return true
		}
	}
	return false
}
