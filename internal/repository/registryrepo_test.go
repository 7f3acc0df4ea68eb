package repository

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/k8ika0s/wheel-resolver/internal/artifact"
)

// fakeZot is a minimal in-memory OCI-registry HTTP server: enough of the
// manifest-HEAD / blob-GET / blob-upload-POST+PUT surface for
// RegistryRepository to round-trip a Put through it into a second
// repository instance that has never seen the record locally.
func fakeZot(t *testing.T) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	blobs := map[string][]byte{}

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/wheel-resolver/manifests/", func(w http.ResponseWriter, r *http.Request) {
		digest := strings.TrimPrefix(r.URL.Path, "/v2/wheel-resolver/manifests/")
		mu.Lock()
		_, ok := blobs[digest]
		mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v2/wheel-resolver/blobs/uploads/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Location", "/v2/wheel-resolver/blobs/uploads/session1")
			w.WriteHeader(http.StatusAccepted)
			return
		}
		digest := r.URL.Query().Get("digest")
		body := make([]byte, r.ContentLength)
		_, _ = readFullBody(r, body)
		mu.Lock()
		blobs[digest] = body
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/v2/wheel-resolver/blobs/", func(w http.ResponseWriter, r *http.Request) {
		digest := strings.TrimPrefix(r.URL.Path, "/v2/wheel-resolver/blobs/")
		mu.Lock()
		data, ok := blobs[digest]
		mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func readFullBody(r *http.Request, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Body.Read(buf[total:])
		total += n
		if err != nil {
			return total, nil
		}
	}
	return total, nil
}

func TestRegistryRepositoryPutThenGetAcrossInstances(t *testing.T) {
	ts := fakeZot(t)
	cfg := RegistryRepositoryConfig{BaseURL: ts.URL, Repo: "wheel-resolver"}

	writer, err := NewRegistryRepository(cfg)
	if err != nil {
		t.Fatalf("new writer repo: %v", err)
	}
	defer writer.Close()

	key := artifact.CoreMetadataKey{Name: "pkg", Version: "1.0", Tag: "py3-none-any", FileURL: "https://example.test/pkg-1.0.whl"}
	dest, err := writer.AllocateDestinationURI(key)
	if err != nil {
		t.Fatalf("allocate destination: %v", err)
	}
	path := strings.TrimPrefix(dest, "file://")
	if err := os.WriteFile(path, []byte("Metadata-Version: 2.1\n"), 0o644); err != nil {
		t.Fatalf("write content: %v", err)
	}
	rec := &artifact.Record{Key: key, DestinationURI: dest, Source: artifact.SourceHTTPPep658, Size: 23}
	if err := writer.Put(rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	reader, err := NewRegistryRepository(cfg)
	if err != nil {
		t.Fatalf("new reader repo: %v", err)
	}
	defer reader.Close()

	got, err := reader.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected a record fetched from the registry, got none")
	}
	if got.Source != artifact.SourceHTTPPep658 {
		t.Fatalf("unexpected source: %v", got.Source)
	}
	gotPath := strings.TrimPrefix(got.DestinationURI, "file://")
	data, err := os.ReadFile(gotPath)
	if err != nil {
		t.Fatalf("read fetched content: %v", err)
	}
	if string(data) != "Metadata-Version: 2.1\n" {
		t.Fatalf("unexpected fetched content: %q", string(data))
	}
}

func TestRegisterRegistryFactoryRequiresBaseURL(t *testing.T) {
	reg := NewRegistry()
	if err := RegisterRegistryFactory(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := reg.Open("zot", map[string]any{}); err == nil {
		t.Fatal("expected an error when base_url is missing")
	}
	if _, err := reg.Open("zot", map[string]any{"base_url": "http://example.test", "repo": "custom-repo"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
