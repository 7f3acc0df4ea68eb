// Package pep440 implements PEP 440 version parsing, ordering, and the
// specifier-set grammar (==, !=, <=, >=, <, >, ~=, ===) used throughout the
// resolution engine's candidate filtering and ordering.
//
// No example repository in the retrieved pack vendors a PEP 440 parser
// (the closest analogues, Masterminds/semver and deps.dev/util/semver,
// implement SemVer, an incompatible grammar), so this package is
// hand-written directly from the published PEP 440 grammar.
package pep440

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version is a parsed PEP 440 version: epoch, release segment, an optional
// pre-release, post-release, and dev-release marker, and an optional local
// version label (ignored for ordering purposes against specifiers that
// don't carry one themselves, per PEP 440 local-version matching rules).
type Version struct {
	Epoch   int
	Release []int
	Pre     *preRelease
	Post    *int
	Dev     *int
	Local   string

	original string
}

type preRelease struct {
	Phase string // "a", "b", or "rc" (normalized)
	Num   int
}

var versionPattern = regexp.MustCompile(`(?i)^\s*v?` +
	`(?:(?P<epoch>[0-9]+)!)?` +
	`(?P<release>[0-9]+(?:\.[0-9]+)*)` +
	`(?P<pre>[-_.]?(?P<pre_l>a|b|c|rc|alpha|beta|pre|preview)[-_.]?(?P<pre_n>[0-9]+)?)?` +
	`(?P<post>(?:-(?P<post_n1>[0-9]+))|(?:[-_.]?(?P<post_l>post|rev|r)[-_.]?(?P<post_n2>[0-9]+)?))?` +
	`(?P<dev>[-_.]?dev[-_.]?(?P<dev_n>[0-9]+)?)?` +
	`(?:\+(?P<local>[a-z0-9]+(?:[-_.][a-z0-9]+)*))?` +
	`\s*$`)

// ErrInvalidVersion is returned when a string does not match PEP 440's
// version grammar.
type ErrInvalidVersion struct{ Raw string }

func (e *ErrInvalidVersion) Error() string { return fmt.Sprintf("pep440: invalid version %q", e.Raw) }

// ParseVersion parses a PEP 440 version string.
func ParseVersion(raw string) (Version, error) {
	m := versionPattern.FindStringSubmatch(raw)
	if m == nil {
		return Version{}, &ErrInvalidVersion{Raw: raw}
	}
	names := versionPattern.SubexpNames()
	groups := make(map[string]string, len(names))
	for i, n := range names {
		if n != "" && i < len(m) {
			groups[n] = m[i]
		}
	}

	v := Version{original: raw}
	if groups["epoch"] != "" {
		v.Epoch, _ = strconv.Atoi(groups["epoch"])
	}
	for _, seg := range strings.Split(groups["release"], ".") {
		n, _ := strconv.Atoi(seg)
		v.Release = append(v.Release, n)
	}
	if groups["pre_l"] != "" {
		phase := normalizePrePhase(groups["pre_l"])
		num := 0
		if groups["pre_n"] != "" {
			num, _ = strconv.Atoi(groups["pre_n"])
		}
		v.Pre = &preRelease{Phase: phase, Num: num}
	}
	if groups["post"] != "" {
		n := 0
		if groups["post_n1"] != "" {
			n, _ = strconv.Atoi(groups["post_n1"])
		} else if groups["post_n2"] != "" {
			n, _ = strconv.Atoi(groups["post_n2"])
		}
		v.Post = &n
	}
	if groups["dev"] != "" {
		n := 0
		if groups["dev_n"] != "" {
			n, _ = strconv.Atoi(groups["dev_n"])
		}
		v.Dev = &n
	}
	v.Local = strings.ToLower(groups["local"])
	return v, nil
}

func normalizePrePhase(raw string) string {
	switch strings.ToLower(raw) {
	case "alpha", "a":
		return "a"
	case "beta", "b":
		return "b"
	case "c", "rc", "pre", "preview":
		return "rc"
	default:
		return strings.ToLower(raw)
	}
}

// IsPrerelease reports whether the version carries a pre-release or dev
// marker, matching packaging.version.Version.is_prerelease.
func (v Version) IsPrerelease() bool { return v.Pre != nil || v.Dev != nil }

// String renders the canonical PEP 440 form.
func (v Version) String() string {
	var b strings.Builder
	if v.Epoch != 0 {
		fmt.Fprintf(&b, "%d!", v.Epoch)
	}
	segs := make([]string, len(v.Release))
	for i, n := range v.Release {
		segs[i] = strconv.Itoa(n)
	}
	b.WriteString(strings.Join(segs, "."))
	if v.Pre != nil {
		fmt.Fprintf(&b, "%s%d", v.Pre.Phase, v.Pre.Num)
	}
	if v.Post != nil {
		fmt.Fprintf(&b, ".post%d", *v.Post)
	}
	if v.Dev != nil {
		fmt.Fprintf(&b, ".dev%d", *v.Dev)
	}
	if v.Local != "" {
		fmt.Fprintf(&b, "+%s", v.Local)
	}
	return b.String()
}

// releaseAt returns the i-th release component, treating missing trailing
// components as zero so releases of differing lengths compare correctly
// (1.0 == 1.0.0).
func (v Version) releaseAt(i int) int {
	if i < len(v.Release) {
		return v.Release[i]
	}
	return 0
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than
// other, per PEP 440 ordering: epoch, then release (zero-extended), then
// pre/dev/post phase ordering (dev < pre-release < release < post-release),
// then local version (presence sorts higher, then lexicographic by
// segment).
func (v Version) Compare(other Version) int {
	if v.Epoch != other.Epoch {
		return cmpInt(v.Epoch, other.Epoch)
	}
	maxLen := len(v.Release)
	if len(other.Release) > maxLen {
		maxLen = len(other.Release)
	}
	for i := 0; i < maxLen; i++ {
		if c := cmpInt(v.releaseAt(i), other.releaseAt(i)); c != 0 {
			return c
		}
	}
	if c := comparePrePostDev(v, other); c != 0 {
		return c
	}
	return compareLocal(v.Local, other.Local)
}

// phaseRank orders: dev-only < pre-release < final release < post-release.
func phaseRank(v Version) (rank int, preNum int, postNum int, devNum int) {
	switch {
	case v.Pre != nil:
		rank = 1
		switch v.Pre.Phase {
		case "a":
			preNum = v.Pre.Num
		case "b":
			preNum = 1000 + v.Pre.Num
		case "rc":
			preNum = 2000 + v.Pre.Num
		}
	case v.Post == nil && v.Dev != nil:
		rank = 0
	default:
		rank = 2
	}
	if v.Post != nil {
		rank = 3
		postNum = *v.Post
	}
	if v.Dev != nil {
		devNum = *v.Dev
	} else {
		devNum = -1 // no dev marker sorts after any dev marker at the same rank
	}
	return
}

func comparePrePostDev(v, other Version) int {
	vRank, vPre, vPost, vDev := phaseRank(v)
	oRank, oPre, oPost, oDev := phaseRank(other)
	if vRank != oRank {
		return cmpInt(vRank, oRank)
	}
	if vRank == 1 {
		if c := cmpInt(vPre, oPre); c != 0 {
			return c
		}
	}
	if vRank == 3 {
		if c := cmpInt(vPost, oPost); c != 0 {
			return c
		}
	}
	// within the same rank, presence of a dev marker sorts earlier.
	vHasDev := v.Dev != nil
	oHasDev := other.Dev != nil
	if vHasDev != oHasDev {
		if vHasDev {
			return -1
		}
		return 1
	}
	if vHasDev {
		return cmpInt(vDev, oDev)
	}
	return 0
}

func compareLocal(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return -1
	}
	if b == "" {
		return 1
	}
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		var av, bv string
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		if av == bv {
			continue
		}
		if av == "" {
			return -1
		}
		if bv == "" {
			return 1
		}
		an, aerr := strconv.Atoi(av)
		bn, berr := strconv.Atoi(bv)
		if aerr == nil && berr == nil {
			return cmpInt(an, bn)
		}
		if aerr == nil {
			return 1 // numeric segments sort after alphanumeric ones
		}
		if berr == nil {
			return -1
		}
		return strings.Compare(av, bv)
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
