// Package pep658 parses PEP 658 core-metadata sidecars: the subset of a
// wheel's RFC 822 METADATA file needed for dependency resolution (Name,
// Version, Requires-Python, and the repeatable Requires-Dist header).
//
// Grounded on original_source's model/pep.py (Pep658Metadata.
// from_core_metadata_text, built on Python's email.parser.Parser); here
// decoded with net/textproto's tolerant MIME-header reader, the closest
// stdlib equivalent to an RFC 822 header parser, per spec.md §9's "use a
// tolerant header parser; Requires-Dist may occur zero or more times;
// empty values are skipped".
package pep658

import (
	"bufio"
	"net/textproto"
	"strings"
)

// Metadata is the parsed subset of a wheel's core metadata needed for
// dependency expansion.
type Metadata struct {
	Name            string
	Version         string
	RequiresPython  string
	RequiresDist    []string
}

// ParseCoreMetadataText parses RFC 822 header text (a wheel's
// {dist}-{version}.dist-info/METADATA contents, or the smaller PEP 658
// sidecar) into a Metadata value.
func ParseCoreMetadataText(text string) (Metadata, error) {
	reader := textproto.NewReader(bufio.NewReader(strings.NewReader(normalizeLineEndings(text))))
	header, err := reader.ReadMIMEHeader()
	if err != nil && len(header) == 0 {
		return Metadata{}, err
	}
	m := Metadata{
		Name:           header.Get("Name"),
		Version:        header.Get("Version"),
		RequiresPython: header.Get("Requires-Python"),
	}
	for _, v := range header.Values("Requires-Dist") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		m.RequiresDist = append(m.RequiresDist, v)
	}
	return m, nil
}

// normalizeLineEndings ensures consistent CRLF line terminators, since
// METADATA files in the wild may use bare LF.
func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "\r\n")
	if !strings.HasSuffix(s, "\r\n\r\n") {
		s += "\r\n"
	}
	return s
}
