// Package artifact defines the typed artifact identities the resolution
// core acquires and materializes: index metadata, core metadata, and wheel
// files. Keys are immutable after construction except for WheelKey's
// write-once dependency/origin/hash fields, which are finalized once the
// solver pins a candidate.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/k8ika0s/wheel-resolver/internal/pep440"
)

// Kind distinguishes the three artifact identities the core knows about.
type Kind string

const (
	KindIndexMetadata Kind = "index_metadata"
	KindCoreMetadata  Kind = "core_metadata"
	KindWheel         Kind = "wheel"
)

// Source tags where a materialized ArtifactRecord came from.
type Source string

const (
	SourceHTTPPep691    Source = "http_pep691"
	SourceHTTPPep658    Source = "http_pep658"
	SourceHTTPWheel     Source = "http_wheel"
	SourceURIWheel      Source = "uri_wheel"
	SourceWheelExtracted Source = "wheel_extracted"
	SourceOther         Source = "other"
)

// Key is the sum type over the three ArtifactKey variants. CacheKey returns
// a stable string identity suitable for use as a repository map key; it is
// NOT the same thing as WheelKey equality (name, version, tag), which
// governs solver-level candidate identity rather than repository storage
// identity.
type Key interface {
	Kind() Kind
	CacheKey() string
}

// IndexMetadataKey identifies a PEP 691 simple-index JSON document for one
// project against one index base URL.
type IndexMetadataKey struct {
	Project   string
	IndexBase string
}

func (k IndexMetadataKey) Kind() Kind { return KindIndexMetadata }

func (k IndexMetadataKey) CacheKey() string {
	return digestFields("index_metadata", k.IndexBase, k.Project)
}

// CoreMetadataKey identifies a PEP 658 core-metadata sidecar for one
// specific wheel file URL.
type CoreMetadataKey struct {
	Name    string
	Version string
	Tag     string
	FileURL string
}

func (k CoreMetadataKey) Kind() Kind { return KindCoreMetadata }

func (k CoreMetadataKey) CacheKey() string {
	return digestFields("core_metadata", k.Name, k.Version, k.Tag, k.FileURL)
}

var (
	sha256Re = regexp.MustCompile(`^[0-9a-f]{64}$`)
	sha384Re = regexp.MustCompile(`^[0-9a-f]{96}$`)
	sha512Re = regexp.MustCompile(`^[0-9a-f]{128}$`)
)

// ErrAlreadySet is returned by WheelKey's write-once setters when the field
// has already been finalized.
var ErrAlreadySet = errors.New("artifact: field already set")

// ErrMissingField is returned when rendering a requirement string requires
// a field that was never populated.
var ErrMissingField = errors.New("artifact: required field not set")

// WheelKey is the identity of a single wheel candidate: name, version, and
// tag drive equality and ordering; everything else (hash, dependency
// edges, origin URI) is descriptive metadata finalized over the object's
// lifetime. WheelKey is always used by pointer so that the two-phase
// "construct, then finalize after pinning" lifecycle can share identity
// across the solver's bookkeeping maps, mirroring the original's mutable
// frozen-dataclass-with-object.__setattr__ escape hatch.
type WheelKey struct {
	name           string
	version        string
	tag            string
	requiresPython string
	satisfiedTags  []string
	marker         string
	extras         []string

	dependencyIDs    []string
	dependencyIDsSet bool

	originURI    string
	originURISet bool

	contentHash    string
	hashAlgorithm  string
	contentHashSet bool
}

// NewWheelKey constructs a WheelKey, canonicalizing name (PEP 503) and
// normalizing version under PEP 440 when it parses. An unparseable version
// is kept verbatim rather than rejected, matching the original's tolerance
// of InvalidVersion for display-only identifiers.
func NewWheelKey(name, version, tag string, satisfiedTags []string) *WheelKey {
	k := &WheelKey{
		name: NormalizeProjectName(name),
		tag:  tag,
	}
	if v, err := pep440.ParseVersion(version); err == nil {
		k.version = v.String()
	} else {
		k.version = version
	}
	if len(satisfiedTags) > 0 {
		sorted := append([]string(nil), satisfiedTags...)
		sort.Strings(sorted)
		k.satisfiedTags = sorted
	}
	return k
}

func (k *WheelKey) Kind() Kind { return KindWheel }

func (k *WheelKey) CacheKey() string {
	return digestFields("wheel", k.name, k.version, k.tag)
}

func (k *WheelKey) Name() string              { return k.name }
func (k *WheelKey) Version() string           { return k.version }
func (k *WheelKey) Tag() string               { return k.tag }
func (k *WheelKey) RequiresPython() string    { return k.requiresPython }
func (k *WheelKey) SatisfiedTags() []string   { return append([]string(nil), k.satisfiedTags...) }
func (k *WheelKey) Marker() string            { return k.marker }
func (k *WheelKey) Extras() []string          { return append([]string(nil), k.extras...) }
func (k *WheelKey) OriginURI() string         { return k.originURI }
func (k *WheelKey) HasOriginURI() bool        { return k.originURISet }
func (k *WheelKey) ContentHash() (alg, hexHash string, ok bool) {
	return k.hashAlgorithm, k.contentHash, k.contentHashSet
}
func (k *WheelKey) DependencyIDs() ([]string, bool) {
	if !k.dependencyIDsSet {
		return nil, false
	}
	return append([]string(nil), k.dependencyIDs...), true
}

// SetRequiresPython and SetMarker/SetExtras are plain (non-write-once)
// descriptive setters used while a candidate is still being assembled,
// before it is handed to the solver as immutable identity.
func (k *WheelKey) SetRequiresPython(v string)  { k.requiresPython = v }
func (k *WheelKey) SetMarker(v string)          { k.marker = v }
func (k *WheelKey) SetExtras(extras []string) {
	sorted := append([]string(nil), extras...)
	sort.Strings(sorted)
	k.extras = sorted
}

// SetOriginURI is write-once: subsequent calls fail with ErrAlreadySet.
func (k *WheelKey) SetOriginURI(uri string) error {
	if k.originURISet {
		return fmt.Errorf("set origin_uri on %s: %w", k.Identifier(), ErrAlreadySet)
	}
	k.originURI = uri
	k.originURISet = true
	return nil
}

// SetContentHash is write-once and validates the hex digest length against
// the named algorithm (64/96/128 hex chars for sha256/sha384/sha512).
func (k *WheelKey) SetContentHash(algorithm, hexDigest string) error {
	if k.contentHashSet {
		return fmt.Errorf("set content_hash on %s: %w", k.Identifier(), ErrAlreadySet)
	}
	lower := strings.ToLower(hexDigest)
	switch algorithm {
	case "sha256":
		if !sha256Re.MatchString(lower) {
			return fmt.Errorf("artifact: sha256 hash must be 64 hex chars, got %d", len(lower))
		}
	case "sha384":
		if !sha384Re.MatchString(lower) {
			return fmt.Errorf("artifact: sha384 hash must be 96 hex chars, got %d", len(lower))
		}
	case "sha512":
		if !sha512Re.MatchString(lower) {
			return fmt.Errorf("artifact: sha512 hash must be 128 hex chars, got %d", len(lower))
		}
	default:
		return fmt.Errorf("artifact: unsupported hash algorithm %q", algorithm)
	}
	k.hashAlgorithm = algorithm
	k.contentHash = lower
	k.contentHashSet = true
	return nil
}

// SetDependencyIDs is write-once; ids are stored sorted so downstream
// rendering (requirements text, req_txt_block dependency comment) is
// deterministic regardless of pin order.
func (k *WheelKey) SetDependencyIDs(ids []string) error {
	if k.dependencyIDsSet {
		return fmt.Errorf("set dependency_ids on %s: %w", k.Identifier(), ErrAlreadySet)
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	k.dependencyIDs = sorted
	k.dependencyIDsSet = true
	return nil
}

// AsTuple returns the identity triple driving equality and ordering.
func (k *WheelKey) AsTuple() (name, version, tag string) { return k.name, k.version, k.tag }

// Less orders two WheelKeys by (name, version, tag) lexicographically. Note
// this is a coarse tie-break used only for deterministic output ordering
// (e.g. requirements-text rendering); candidate *selection* ordering is
// governed by internal/resolve's version-aware comparator, not this method.
func (k *WheelKey) Less(other *WheelKey) bool {
	if k.name != other.name {
		return k.name < other.name
	}
	if k.version != other.version {
		return k.version < other.version
	}
	return k.tag < other.tag
}

// Identifier renders "{name_with_underscores}-{version}-{tag}".
func (k *WheelKey) Identifier() string {
	return fmt.Sprintf("%s-%s-%s", strings.ReplaceAll(k.name, "-", "_"), k.version, k.tag)
}

// RequirementString renders "{name} @ {origin_uri} --hash={alg}:{hex}".
// It is an error to call this before origin_uri and content_hash are set.
func (k *WheelKey) RequirementString() (string, error) {
	if !k.originURISet {
		return "", fmt.Errorf("requirement string for %s: origin_uri: %w", k.Identifier(), ErrMissingField)
	}
	if !k.contentHashSet {
		return "", fmt.Errorf("requirement string for %s: content_hash: %w", k.Identifier(), ErrMissingField)
	}
	return fmt.Sprintf("%s @ %s --hash=%s:%s", k.name, k.originURI, k.hashAlgorithm, k.contentHash), nil
}

// ReqTxtBlock renders the full comment-plus-requirement block documented in
// spec.md §6 ("Requirements-text format").
func (k *WheelKey) ReqTxtBlock() (string, error) {
	reqLine, err := k.RequirementString()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# name: %s\n", k.name)
	fmt.Fprintf(&b, "# version: %s\n", k.version)
	fmt.Fprintf(&b, "# tag: %s\n", k.tag)
	if k.requiresPython != "" {
		fmt.Fprintf(&b, "# requires_python: %s\n", k.requiresPython)
	}
	if len(k.satisfiedTags) > 0 {
		fmt.Fprintf(&b, "# satisfied_tags: %s\n", strings.Join(k.satisfiedTags, ","))
	}
	if deps, ok := k.DependencyIDs(); ok && len(deps) > 0 {
		fmt.Fprintf(&b, "# dependencies: %s\n", strings.Join(deps, ","))
	}
	fmt.Fprintf(&b, "# origin_uri: %s\n", k.originURI)
	if k.marker != "" {
		fmt.Fprintf(&b, "# marker: %s\n", k.marker)
	}
	if len(k.extras) > 0 {
		fmt.Fprintf(&b, "# extras: %s\n", strings.Join(k.extras, ","))
	}
	b.WriteString(reqLine)
	return b.String(), nil
}

// NormalizeProjectName applies PEP 503 name canonicalization: runs of
// [-_.] collapse to a single "-", lowercased.
func NormalizeProjectName(name string) string {
	var b strings.Builder
	lastWasSep := false
	for _, r := range strings.ToLower(name) {
		if r == '-' || r == '_' || r == '.' {
			if !lastWasSep {
				b.WriteByte('-')
			}
			lastWasSep = true
			continue
		}
		b.WriteRune(r)
		lastWasSep = false
	}
	return b.String()
}

func digestFields(kind string, fields ...string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	for _, f := range fields {
		h.Write([]byte{0})
		h.Write([]byte(f))
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

// shortHash mirrors the workspace layout's hash16(): first 16 hex chars of
// sha256(utf8(s)).
func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

// bestHash picks the preferred hash algorithm from a PEP 691 hashes map,
// preferring sha256, then sha512, then sha384 (the order both the original
// source and spec.md §4.5.2 specify).
func bestHash(hashes map[string]string) (alg, hexDigest string, ok bool) {
	for _, alg := range []string{"sha256", "sha512", "sha384"} {
		if h, present := hashes[alg]; present && h != "" {
			return alg, h, true
		}
	}
	return "", "", false
}
