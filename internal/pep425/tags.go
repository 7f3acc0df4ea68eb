// Package pep425 implements wheel filename parsing (including expansion of
// compressed compatibility-tag sets) and the environment tag-universe
// expansion used to build a ResolutionEnv's supported_tags_ordered.
//
// Grounded on the teacher's internal/plan/plan.go (parseWheelFilename,
// isCompatible, normalizePyTag), generalized here to full PEP 425
// compressed-tag-set expansion (spec.md §4.5.3), and on
// original_source's internal/resolvelib.py _expand_tags_for_context.
package pep425

import (
	"fmt"
	"regexp"
	"strings"
)

// WheelFilename is the parsed structure of a wheel's filename.
type WheelFilename struct {
	Distribution string
	Version      string
	BuildTag     string
	Tags         []string // every (pytag, abitag, plattag) combination, "-"-joined
}

var wheelNamePattern = regexp.MustCompile(
	`^(?P<name>[^-]+(?:_[^-]+)*)-(?P<version>[^-]+)` +
		`(?:-(?P<build>[0-9][^-]*))?` +
		`-(?P<pytag>[^-]+)-(?P<abitag>[^-]+)-(?P<plattag>[^-]+)\.whl$`)

// ParseWheelFilename parses a wheel filename (case-insensitive on the
// ".whl" suffix), expanding dot-compressed tag components into the full
// cross product of (python tag, abi tag, platform tag) triples.
func ParseWheelFilename(filename string) (WheelFilename, error) {
	base := filename
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	m := wheelNamePattern.FindStringSubmatch(base)
	if m == nil {
		return WheelFilename{}, fmt.Errorf("pep425: not a wheel filename: %q", filename)
	}
	names := wheelNamePattern.SubexpNames()
	g := make(map[string]string, len(names))
	for i, n := range names {
		if n != "" && i < len(m) {
			g[n] = m[i]
		}
	}

	pyTags := strings.Split(g["pytag"], ".")
	abiTags := strings.Split(g["abitag"], ".")
	platTags := strings.Split(g["plattag"], ".")

	var tags []string
	for _, py := range pyTags {
		for _, abi := range abiTags {
			for _, plat := range platTags {
				tags = append(tags, py+"-"+abi+"-"+plat)
			}
		}
	}

	return WheelFilename{
		Distribution: strings.ReplaceAll(g["name"], "_", "-"),
		Version:      g["version"],
		BuildTag:     g["build"],
		Tags:         tags,
	}, nil
}

var cpInterpreterPattern = regexp.MustCompile(`^cp[0-9]+$`)

// ExpandEnvironmentTags builds the compatibility-tag universe for an
// environment given its Python version ("3.11") and a single seed context
// tag (e.g. "cp311-cp311-manylinux2014_s390x", the interpreter's own
// native tag). The tags are spec.md §4.5.3's documented universe, ordered
// most-specific-first:
//
//	the seed context tag, then — if the seed interpreter matches
//	cp{digits} — {cp}-abi3-{plat} and {cp}-none-{plat}, then
//	py{MAJ}{MIN}-none-{plat}, py{MAJ}-none-{plat}, py{MAJ}{MIN}-none-any,
//	and py{MAJ}-none-any. Duplicates keep their first position.
func ExpandEnvironmentTags(pythonVersion, contextTag string) []string {
	major, minor := splitPythonVersion(pythonVersion)
	parts := strings.SplitN(contextTag, "-", 3)
	plat := "any"
	interpreter := ""
	if len(parts) == 3 {
		interpreter = parts[0]
		plat = parts[2]
	}

	var tags []string
	add := func(t string) {
		for _, existing := range tags {
			if existing == t {
				return
			}
		}
		tags = append(tags, t)
	}

	if contextTag != "" {
		add(contextTag)
	}
	if cpInterpreterPattern.MatchString(interpreter) {
		add(fmt.Sprintf("%s-abi3-%s", interpreter, plat))
		add(fmt.Sprintf("%s-none-%s", interpreter, plat))
	}
	if minor != "" {
		add(fmt.Sprintf("py%s%s-none-%s", major, minor, plat))
	}
	add(fmt.Sprintf("py%s-none-%s", major, plat))
	if minor != "" {
		add(fmt.Sprintf("py%s%s-none-any", major, minor))
	}
	add(fmt.Sprintf("py%s-none-any", major))
	return tags
}

func splitPythonVersion(v string) (major, minor string) {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) >= 1 {
		major = parts[0]
	}
	if len(parts) >= 2 {
		minor = parts[1]
	}
	return
}

// BestTag returns the first tag in orderedPreference (most preferred
// first) that appears in fileTags, matching spec.md §4.5.3's "best tag"
// rule. An empty orderedPreference matches nothing: there is no fallback
// to an unordered tag set, so the caller always gets ("", false) then.
func BestTag(orderedPreference []string, fileTags []string) (string, bool) {
	fileSet := make(map[string]bool, len(fileTags))
	for _, t := range fileTags {
		fileSet[t] = true
	}
	for _, pref := range orderedPreference {
		if fileSet[pref] {
			return pref, true
		}
	}
	return "", false
}
