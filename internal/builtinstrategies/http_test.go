package builtinstrategies

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/k8ika0s/wheel-resolver/internal/artifact"
	"github.com/k8ika0s/wheel-resolver/internal/strategy"
)

func TestDirectURIWheelFileStrategyCopiesLocalFile(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.whl")
	if err := os.WriteFile(srcPath, []byte("wheel bytes"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}

	wk := artifact.NewWheelKey("pkg", "1.0", "py3-none-any", []string{"py3-none-any"})
	if err := wk.SetOriginURI("file://" + srcPath); err != nil {
		t.Fatalf("SetOriginURI: %v", err)
	}

	destPath := filepath.Join(dir, "dest.whl")
	s := NewDirectURIWheelFileStrategy("uri_wheel_file", 40, strategy.Required)

	rec, err := s.Resolve(context.Background(), wk, "file://"+destPath)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(got) != "wheel bytes" {
		t.Fatalf("dest content = %q, want %q", got, "wheel bytes")
	}
	if rec.ContentSHA256 == "" {
		t.Fatal("expected a non-empty content hash")
	}
}

func TestDirectURIWheelFileStrategyNotApplicableForHTTPOrigin(t *testing.T) {
	wk := artifact.NewWheelKey("pkg", "1.0", "py3-none-any", []string{"py3-none-any"})
	if err := wk.SetOriginURI("https://example.org/pkg-1.0.whl"); err != nil {
		t.Fatalf("SetOriginURI: %v", err)
	}
	s := NewDirectURIWheelFileStrategy("uri_wheel_file", 40, strategy.Required)

	_, err := s.Resolve(context.Background(), wk, "file:///tmp/ignored.whl")
	if err != strategy.ErrNotApplicable {
		t.Fatalf("expected ErrNotApplicable, got %v", err)
	}
}

// fakeWheelStrategy writes a minimal wheel archive containing a single
// dist-info/METADATA member, standing in for the real HTTP wheel strategy
// when testing WheelExtractedCoreMetadataStrategy's extraction logic in
// isolation.
type fakeWheelStrategy struct{ metadataBody string }

func (f *fakeWheelStrategy) Name() string                 { return "fake_wheel" }
func (f *fakeWheelStrategy) InstanceID() string            { return "fake_wheel" }
func (f *fakeWheelStrategy) Precedence() int                { return 1 }
func (f *fakeWheelStrategy) Criticality() strategy.Criticality { return strategy.Required }
func (f *fakeWheelStrategy) Source() artifact.Source        { return artifact.SourceHTTPWheel }

func (f *fakeWheelStrategy) Resolve(_ context.Context, _ artifact.Key, destinationURI string) (*artifact.Record, error) {
	path := destinationURI[len("file://"):]
	zf, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer zf.Close()
	zw := zip.NewWriter(zf)
	w, err := zw.Create("pkg-1.0.dist-info/METADATA")
	if err != nil {
		return nil, err
	}
	if _, err := w.Write([]byte(f.metadataBody)); err != nil {
		return nil, err
	}
	return nil, zw.Close()
}

func TestWheelExtractedCoreMetadataStrategyExtractsMetadata(t *testing.T) {
	dir := t.TempDir()
	destPath := filepath.Join(dir, "core.metadata")

	wheelStrategy := &fakeWheelStrategy{metadataBody: "Metadata-Version: 2.1\nName: pkg\nVersion: 1.0\n"}
	s := NewWheelExtractedCoreMetadataStrategy("wheel_extracted_metadata", 90, strategy.Optional, wheelStrategy)

	key := artifact.CoreMetadataKey{Name: "pkg", Version: "1.0", Tag: "py3-none-any", FileURL: "https://example.org/pkg-1.0.whl"}
	rec, err := s.Resolve(context.Background(), key, "file://"+destPath)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(got) != wheelStrategy.metadataBody {
		t.Fatalf("extracted metadata = %q, want %q", got, wheelStrategy.metadataBody)
	}
	if rec.OriginURI != key.FileURL {
		t.Fatalf("OriginURI = %q, want %q", rec.OriginURI, key.FileURL)
	}
}
