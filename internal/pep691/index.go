// Package pep691 models the JSON rendering of the PEP 691 "simple" package
// index: one document per project, listing candidate files with their
// hashes, yanked status, and optional core-metadata sidecar availability.
//
// Grounded on original_source's model/pep.py (Pep691FileMetadata,
// Pep691Metadata); decoded with encoding/json, the teacher's own choice
// throughout internal/plan for structured payloads.
package pep691

import "encoding/json"

// File is one candidate distribution file listed for a project.
type File struct {
	Filename              string            `json:"filename"`
	URL                   string            `json:"url"`
	Hashes                map[string]string `json:"hashes"`
	RequiresPython        string            `json:"requires-python,omitempty"`
	Yanked                bool              `json:"-"`
	CoreMetadata          bool              `json:"-"`
	DataDistInfoMetadata  bool              `json:"-"`
}

// rawFile mirrors the wire shape, where "yanked" and the two
// metadata-availability fields may each be a bool OR a map of hash
// algorithm to digest (meaning "available, here are its hashes").
type rawFile struct {
	Filename             string            `json:"filename"`
	URL                  string            `json:"url"`
	Hashes               map[string]string `json:"hashes"`
	RequiresPython       string            `json:"requires-python,omitempty"`
	Yanked               json.RawMessage   `json:"yanked,omitempty"`
	CoreMetadata         json.RawMessage   `json:"core-metadata,omitempty"`
	DataDistInfoMetadata json.RawMessage   `json:"data-dist-info-metadata,omitempty"`
}

// coerceField implements Python's _coerce_field: dict passthrough (truthy),
// bool passthrough, anything else (including absence) is false.
func coerceField(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err == nil {
		return true
	}
	return false
}

func (f *File) UnmarshalJSON(data []byte) error {
	var raw rawFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.Filename = raw.Filename
	f.URL = raw.URL
	f.Hashes = raw.Hashes
	f.RequiresPython = raw.RequiresPython
	f.Yanked = coerceField(raw.Yanked)
	f.CoreMetadata = coerceField(raw.CoreMetadata)
	f.DataDistInfoMetadata = coerceField(raw.DataDistInfoMetadata)
	return nil
}

// Metadata is a project's full PEP 691 document.
type Metadata struct {
	Name       string `json:"name"`
	Files      []File `json:"files"`
	LastSerial int64  `json:"last-serial,omitempty"`
}

// Parse decodes a PEP 691 JSON document.
func Parse(data []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, err
	}
	return m, nil
}
