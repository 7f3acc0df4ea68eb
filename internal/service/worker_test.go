package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/k8ika0s/wheel-resolver/internal/artifact"
	"github.com/k8ika0s/wheel-resolver/internal/cas"
	"github.com/k8ika0s/wheel-resolver/internal/lifecycle"
	"github.com/k8ika0s/wheel-resolver/internal/queue"
	"github.com/k8ika0s/wheel-resolver/internal/repository"
	"github.com/k8ika0s/wheel-resolver/internal/resolve"
	"github.com/k8ika0s/wheel-resolver/internal/strategy"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

// fakeCoreMetadataStrategy always succeeds with fixed core metadata text
// carrying no Requires-Dist lines, so a test resolution terminates
// without needing a working wheel-fetch chain.
type fakeCoreMetadataStrategy struct{ strategy.Base }

func (fakeCoreMetadataStrategy) Kind() strategy.Kind { return strategy.KindCoreMetadata }

func (fakeCoreMetadataStrategy) Resolve(_ context.Context, key artifact.Key, destinationURI string) (*artifact.Record, error) {
	path := destinationURI[len("file://"):]
	body := "Metadata-Version: 2.1\nName: pkg\nVersion: 1.0\n"
	if err := writeFile(path, body); err != nil {
		return nil, err
	}
	return &artifact.Record{Key: key, DestinationURI: destinationURI, Source: artifact.SourceHTTPPep658}, nil
}

// fakeResultRegistry is a minimal in-memory OCI-registry HTTP server,
// just enough of the manifest-HEAD / blob-upload-POST+PUT surface for a
// Worker to push a finished job's record through cas.Pusher/cas.ZotStore
// without touching a real Zot instance.
func fakeResultRegistry(t *testing.T) *httptest.Server {
	t.Helper()
	blobs := map[string][]byte{}

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/results/manifests/", func(w http.ResponseWriter, r *http.Request) {
		digest := r.URL.Path[len("/v2/results/manifests/"):]
		if _, ok := blobs[digest]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v2/results/blobs/uploads/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Location", "/v2/results/blobs/uploads/session1")
			w.WriteHeader(http.StatusAccepted)
			return
		}
		digest := r.URL.Query().Get("digest")
		body := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(body)
		blobs[digest] = body
		w.WriteHeader(http.StatusCreated)
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func testEngine(t *testing.T) *resolve.Engine {
	t.Helper()
	strategies := lifecycle.NewRegistry()
	err := strategies.RegisterStrategyClass(&lifecycle.ClassInfo{
		Name:               "fake_core_metadata",
		Origin:             lifecycle.OriginBuiltin,
		DefaultPrecedence:  50,
		DefaultCriticality: strategy.Required,
		Kind:               strategy.KindCoreMetadata,
		InstantiationPolicy: strategy.Singleton,
		Factory: func(plan *lifecycle.StrategyPlan, _ map[string]any) (strategy.Strategy, error) {
			return fakeCoreMetadataStrategy{Base: strategy.NewBase("fake_core_metadata", plan.InstanceID, plan.Precedence, plan.Criticality, artifact.SourceHTTPPep658)}, nil
		},
	})
	if err != nil {
		t.Fatalf("register fake strategy class: %v", err)
	}

	repos := repository.NewRegistry()
	if err := repository.RegisterBuiltins(repos); err != nil {
		t.Fatalf("register builtin repositories: %v", err)
	}
	return resolve.NewEngine(strategies, repos)
}

func TestWorkerResolveSyncPinsDirectURIRoot(t *testing.T) {
	dir := t.TempDir()
	wheelPath := filepath.Join(dir, "pkg-1.0-py3-none-any.whl")
	if err := writeFile(wheelPath, "not a real zip, unused by this chain"); err != nil {
		t.Fatalf("write fixture wheel: %v", err)
	}

	w := &Worker{
		Cfg:    Config{DefaultRepoID: "ephemeral"},
		Engine: testEngine(t),
		Queue:  queue.NewFileQueue(filepath.Join(dir, "queue.json")),
	}

	req := queue.Request{
		JobID:        "job-1",
		Requirements: []string{"pkg @ file://" + wheelPath},
		Environments: []queue.EnvSpec{{
			Identifier:        "cpython-3.11-linux",
			MarkerEnvironment: map[string]string{"python_version": "3.11"},
		}},
	}

	result, err := w.ResolveSync(context.Background(), req)
	if err != nil {
		t.Fatalf("ResolveSync: %v", err)
	}
	text, ok := result.RequirementsByEnv["cpython-3.11-linux"]
	if !ok {
		t.Fatalf("missing requirements for target env, got %+v", result.RequirementsByEnv)
	}
	if !contains(text, "pkg") {
		t.Fatalf("requirements text %q does not mention pkg", text)
	}
}

func TestWorkerDrainStoresJobRecord(t *testing.T) {
	dir := t.TempDir()
	wheelPath := filepath.Join(dir, "pkg-1.0-py3-none-any.whl")
	if err := writeFile(wheelPath, "unused"); err != nil {
		t.Fatalf("write fixture wheel: %v", err)
	}

	ts := fakeResultRegistry(t)
	fq := queue.NewFileQueue(filepath.Join(dir, "queue.json"))
	req := queue.Request{
		JobID:        "job-2",
		Requirements: []string{"pkg @ file://" + wheelPath},
		Environments: []queue.EnvSpec{{Identifier: "env", MarkerEnvironment: map[string]string{"python_version": "3.11"}}},
	}
	if err := fq.Enqueue(context.Background(), req); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	w := &Worker{
		Cfg:      Config{ResolvePoolSize: 4, ResultRegistryURL: ts.URL, ResultRegistryRepo: "results"},
		Engine:   testEngine(t),
		Queue:    fq,
		Results:  cas.Pusher{BaseURL: ts.URL, Repo: "results"},
		Registry: cas.ZotStore{BaseURL: ts.URL, Repo: "results"},
	}
	ran, err := w.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if !ran {
		t.Fatal("expected drain to run")
	}

	digest := digestForJob(req.JobID)
	exists, err := w.Registry.Has(context.Background(), digest)
	if err != nil {
		t.Fatalf("check published record: %v", err)
	}
	if !exists {
		t.Fatal("expected job record to be pushed to the result registry")
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
