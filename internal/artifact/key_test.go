package artifact

import (
	"errors"
	"testing"
)

func TestNormalizeProjectNameCollapsesSeparatorRuns(t *testing.T) {
	cases := map[string]string{
		"Foo_Bar":   "foo-bar",
		"foo..bar":  "foo-bar",
		"FOO---BAR": "foo-bar",
		"foo.-_bar": "foo-bar",
		"-foo":      "-foo",
		"foo-":      "foo-",
	}
	for in, want := range cases {
		if got := NormalizeProjectName(in); got != want {
			t.Errorf("NormalizeProjectName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIndexMetadataKeyCacheKeyDependsOnBothFields(t *testing.T) {
	a := IndexMetadataKey{Project: "pkg", IndexBase: "https://index.example/a"}
	b := IndexMetadataKey{Project: "pkg", IndexBase: "https://index.example/b"}
	c := IndexMetadataKey{Project: "other", IndexBase: "https://index.example/a"}
	if a.CacheKey() == b.CacheKey() {
		t.Fatal("expected different index base to change the cache key")
	}
	if a.CacheKey() == c.CacheKey() {
		t.Fatal("expected different project to change the cache key")
	}
	if a.Kind() != KindIndexMetadata {
		t.Fatalf("unexpected kind: %v", a.Kind())
	}
}

func TestCoreMetadataKeyCacheKeyDependsOnFileURL(t *testing.T) {
	a := CoreMetadataKey{Name: "pkg", Version: "1.0", Tag: "py3-none-any", FileURL: "https://example/a.whl"}
	b := CoreMetadataKey{Name: "pkg", Version: "1.0", Tag: "py3-none-any", FileURL: "https://example/b.whl"}
	if a.CacheKey() == b.CacheKey() {
		t.Fatal("expected different file URL to change the cache key")
	}
	if a.Kind() != KindCoreMetadata {
		t.Fatalf("unexpected kind: %v", a.Kind())
	}
}

func TestNewWheelKeyCanonicalizesNameAndNormalizesVersion(t *testing.T) {
	k := NewWheelKey("Foo_Bar", "1.0", "py3-none-any", []string{"py3-none-any", "py2-none-any"})
	if k.Name() != "foo-bar" {
		t.Fatalf("expected canonicalized name, got %q", k.Name())
	}
	if k.Version() != "1.0" {
		t.Fatalf("expected normalized version \"1.0\", got %q", k.Version())
	}
	if k.Kind() != KindWheel {
		t.Fatalf("unexpected kind: %v", k.Kind())
	}
	tags := k.SatisfiedTags()
	if len(tags) != 2 || tags[0] != "py2-none-any" || tags[1] != "py3-none-any" {
		t.Fatalf("expected sorted satisfied tags, got %v", tags)
	}
}

func TestNewWheelKeyKeepsUnparseableVersionVerbatim(t *testing.T) {
	k := NewWheelKey("pkg", "not-a-version", "py3-none-any", nil)
	if k.Version() != "not-a-version" {
		t.Fatalf("expected verbatim version, got %q", k.Version())
	}
}

func TestWheelKeySetOriginURIWriteOnce(t *testing.T) {
	k := NewWheelKey("pkg", "1.0", "py3-none-any", nil)
	if k.HasOriginURI() {
		t.Fatal("expected no origin_uri before SetOriginURI")
	}
	if err := k.SetOriginURI("https://example/pkg-1.0.whl"); err != nil {
		t.Fatalf("first SetOriginURI: %v", err)
	}
	if !k.HasOriginURI() || k.OriginURI() != "https://example/pkg-1.0.whl" {
		t.Fatalf("origin_uri not persisted: %q", k.OriginURI())
	}
	err := k.SetOriginURI("https://example/other.whl")
	if !errors.Is(err, ErrAlreadySet) {
		t.Fatalf("expected ErrAlreadySet on second call, got %v", err)
	}
	if k.OriginURI() != "https://example/pkg-1.0.whl" {
		t.Fatal("second SetOriginURI must not overwrite the first value")
	}
}

func TestWheelKeySetContentHashWriteOnceAndValidated(t *testing.T) {
	k := NewWheelKey("pkg", "1.0", "py3-none-any", nil)
	validSHA256 := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	if err := k.SetContentHash("sha256", validSHA256); err != nil {
		t.Fatalf("first SetContentHash: %v", err)
	}
	alg, hexHash, ok := k.ContentHash()
	if !ok || alg != "sha256" || hexHash != validSHA256 {
		t.Fatalf("content hash not persisted: alg=%q hash=%q ok=%v", alg, hexHash, ok)
	}
	err := k.SetContentHash("sha256", validSHA256)
	if !errors.Is(err, ErrAlreadySet) {
		t.Fatalf("expected ErrAlreadySet on second call, got %v", err)
	}
}

func TestWheelKeySetContentHashRejectsWrongLength(t *testing.T) {
	k := NewWheelKey("pkg", "1.0", "py3-none-any", nil)
	if err := k.SetContentHash("sha256", "deadbeef"); err == nil {
		t.Fatal("expected an error for a too-short sha256 digest")
	}
	if _, _, ok := k.ContentHash(); ok {
		t.Fatal("a rejected SetContentHash must not mark the field set")
	}
}

func TestWheelKeySetContentHashRejectsUnknownAlgorithm(t *testing.T) {
	k := NewWheelKey("pkg", "1.0", "py3-none-any", nil)
	if err := k.SetContentHash("md5", "d41d8cd98f00b204e9800998ecf8427e"); err == nil {
		t.Fatal("expected an error for an unsupported hash algorithm")
	}
}

func TestWheelKeySetDependencyIDsWriteOnceAndSorted(t *testing.T) {
	k := NewWheelKey("pkg", "1.0", "py3-none-any", nil)
	if _, ok := k.DependencyIDs(); ok {
		t.Fatal("expected no dependency_ids before SetDependencyIDs")
	}
	if err := k.SetDependencyIDs([]string{"zeta-1-tag", "alpha-1-tag"}); err != nil {
		t.Fatalf("first SetDependencyIDs: %v", err)
	}
	ids, ok := k.DependencyIDs()
	if !ok || len(ids) != 2 || ids[0] != "alpha-1-tag" || ids[1] != "zeta-1-tag" {
		t.Fatalf("expected sorted dependency ids, got %v (ok=%v)", ids, ok)
	}
	err := k.SetDependencyIDs([]string{"other-1-tag"})
	if !errors.Is(err, ErrAlreadySet) {
		t.Fatalf("expected ErrAlreadySet on second call, got %v", err)
	}
}

func TestWheelKeyRequirementStringRequiresOriginAndHash(t *testing.T) {
	k := NewWheelKey("pkg", "1.0", "py3-none-any", nil)
	if _, err := k.RequirementString(); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField before origin_uri is set, got %v", err)
	}
	validSHA256 := "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	if err := k.SetOriginURI("https://example/pkg-1.0.whl"); err != nil {
		t.Fatalf("SetOriginURI: %v", err)
	}
	if _, err := k.RequirementString(); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField before content_hash is set, got %v", err)
	}
	if err := k.SetContentHash("sha256", validSHA256); err != nil {
		t.Fatalf("SetContentHash: %v", err)
	}
	req, err := k.RequirementString()
	if err != nil {
		t.Fatalf("RequirementString: %v", err)
	}
	want := "pkg @ https://example/pkg-1.0.whl --hash=sha256:" + validSHA256
	if req != want {
		t.Fatalf("RequirementString = %q, want %q", req, want)
	}
}

func TestWheelKeyLessOrdersByNameVersionTag(t *testing.T) {
	a := NewWheelKey("pkg-a", "1.0", "py3-none-any", nil)
	b := NewWheelKey("pkg-b", "1.0", "py3-none-any", nil)
	if !a.Less(b) || b.Less(a) {
		t.Fatal("expected pkg-a < pkg-b")
	}
}
