package pep508

import (
	"fmt"
	"strings"

	"github.com/k8ika0s/wheel-resolver/internal/pep440"
)

// Requirement is a parsed PEP 508 dependency specification: a project
// name, optional extras, either a version specifier set or a direct URL
// (mutually exclusive per PEP 508's name_req/url_req grammar split), and
// an optional environment marker.
//
// Grounded on other_examples/…AlexanderEkdahl-rope…pep508.go's
// text/scanner-free, cursor-based tokenizing style, extended to cover the
// marker sub-grammar and direct URL requirements that file explicitly does
// not support (it returns ErrUrlNotSupported and has no marker parsing at
// all).
type Requirement struct {
	Name      string
	Extras    []string
	Specifier pep440.SpecifierSet
	URL       string
	Marker    *Marker
}

// ParseRequirement parses one PEP 508 dependency string, e.g.
// `requests[socks]>=2.0,<3.0; python_version>="3.7"` or
// `foo @ https://example.com/foo-1.0-py3-none-any.whl`.
func ParseRequirement(raw string) (*Requirement, error) {
	s := strings.TrimSpace(raw)
	markerRaw := ""
	if idx := findTopLevelSemicolon(s); idx >= 0 {
		markerRaw = strings.TrimSpace(s[idx+1:])
		s = strings.TrimSpace(s[:idx])
	}

	r := &Requirement{}
	pos := 0
	name, next, err := scanIdentifier(s, pos)
	if err != nil {
		return nil, fmt.Errorf("pep508: %w", err)
	}
	r.Name = name
	pos = next
	pos = skipSpace(s, pos)

	if pos < len(s) && s[pos] == '[' {
		extras, next, err := scanExtras(s, pos)
		if err != nil {
			return nil, fmt.Errorf("pep508: %w", err)
		}
		r.Extras = extras
		pos = next
	}
	pos = skipSpace(s, pos)

	if pos < len(s) && s[pos] == '@' {
		pos++
		pos = skipSpace(s, pos)
		r.URL = strings.TrimSpace(s[pos:])
		pos = len(s)
	} else if pos < len(s) {
		specRaw := strings.TrimSpace(s[pos:])
		specRaw = strings.TrimPrefix(specRaw, "(")
		specRaw = strings.TrimSuffix(specRaw, ")")
		set, err := pep440.ParseSpecifierSet(specRaw)
		if err != nil {
			return nil, fmt.Errorf("pep508: invalid version specifier in %q: %w", raw, err)
		}
		r.Specifier = set
	}

	if markerRaw != "" {
		m, err := ParseMarker(markerRaw)
		if err != nil {
			return nil, fmt.Errorf("pep508: invalid marker in %q: %w", raw, err)
		}
		r.Marker = m
	}
	return r, nil
}

func findTopLevelSemicolon(s string) int {
	depth := 0
	for i, c := range s {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		case ';':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func skipSpace(s string, pos int) int {
	for pos < len(s) && (s[pos] == ' ' || s[pos] == '\t') {
		pos++
	}
	return pos
}

func scanIdentifier(s string, pos int) (string, int, error) {
	pos = skipSpace(s, pos)
	start := pos
	for pos < len(s) && isNameChar(rune(s[pos])) {
		pos++
	}
	if pos == start {
		return "", pos, fmt.Errorf("expected project name at %d in %q", pos, s)
	}
	return s[start:pos], pos, nil
}

func isNameChar(r rune) bool {
	return r == '-' || r == '_' || r == '.' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func scanExtras(s string, pos int) ([]string, int, error) {
	if s[pos] != '[' {
		return nil, pos, fmt.Errorf("expected '[' at %d", pos)
	}
	pos++
	var extras []string
	for {
		pos = skipSpace(s, pos)
		if pos < len(s) && s[pos] == ']' {
			pos++
			return extras, pos, nil
		}
		name, next, err := scanIdentifier(s, pos)
		if err != nil {
			return nil, pos, fmt.Errorf("in extras list: %w", err)
		}
		extras = append(extras, name)
		pos = skipSpace(s, next)
		if pos < len(s) && s[pos] == ',' {
			pos++
			continue
		}
		if pos < len(s) && s[pos] == ']' {
			pos++
			return extras, pos, nil
		}
		return nil, pos, fmt.Errorf("expected ',' or ']' in extras at %d", pos)
	}
}
