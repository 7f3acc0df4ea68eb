package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/k8ika0s/wheel-resolver/internal/artifact"
)

// Ephemeral is the default ArtifactRepository: a tempdir-backed workspace
// with an in-memory index keyed by each artifact.Key's CacheKey(). It is
// scoped to a single resolution run and deletes its workspace on Close.
//
// Grounded on original_source's EphemeralArtifactRepository.
type Ephemeral struct {
	mu    sync.Mutex
	root  string
	index map[string]*artifact.Record
}

// NewEphemeral creates a fresh temporary workspace under os.TempDir.
func NewEphemeral() (*Ephemeral, error) {
	root, err := os.MkdirTemp("", "wheel-resolver-ephemeral-")
	if err != nil {
		return nil, fmt.Errorf("repository: create workspace: %w", err)
	}
	return &Ephemeral{root: root, index: make(map[string]*artifact.Record)}, nil
}

// RootPath is the workspace root directory.
func (e *Ephemeral) RootPath() string { return e.root }

// Get returns the stored record if present. If the record points at a
// file:// destination that no longer exists on disk, the entry is evicted
// and (nil, nil) is returned — matching spec.md §4.4's "if the record
// references a file:// path under the workspace and that path no longer
// exists, evict the entry and return none".
func (e *Ephemeral) Get(key artifact.Key) (*artifact.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.index[key.CacheKey()]
	if !ok {
		return nil, nil
	}
	if path, isFile := fileURIPath(rec.DestinationURI); isFile {
		if _, err := os.Stat(path); err != nil {
			delete(e.index, key.CacheKey())
			return nil, nil
		}
	}
	return rec, nil
}

// Put unconditionally inserts or overwrites the record for its key.
func (e *Ephemeral) Put(record *artifact.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.index[record.Key.CacheKey()] = record
	return nil
}

// Delete removes the index entry and best-effort unlinks the underlying
// file if it lies under the workspace root.
func (e *Ephemeral) Delete(key artifact.Key) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.index[key.CacheKey()]
	if !ok {
		return nil
	}
	delete(e.index, key.CacheKey())
	if path, isFile := fileURIPath(rec.DestinationURI); isFile {
		abs, err := filepath.Abs(path)
		if err == nil && e.isUnderRoot(abs) {
			_ = os.Remove(abs)
		}
	}
	return nil
}

// AllocateDestinationURI returns a deterministic file:// URI for key,
// partitioned per spec.md §6's workspace file layout, and ensures the
// parent directory exists.
func (e *Ephemeral) AllocateDestinationURI(key artifact.Key) (string, error) {
	path, err := e.pathForKey(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("repository: allocate destination: %w", err)
	}
	return "file://" + path, nil
}

// Close clears the index and removes the workspace tree.
func (e *Ephemeral) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.index = make(map[string]*artifact.Record)
	return os.RemoveAll(e.root)
}

func (e *Ephemeral) isUnderRoot(path string) bool {
	rel, err := filepath.Rel(e.root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (e *Ephemeral) pathForKey(key artifact.Key) (string, error) {
	switch k := key.(type) {
	case artifact.IndexMetadataKey:
		return filepath.Join(e.root, "index_metadata", hash16(k.IndexBase), safe(k.Project)+".json"), nil
	case artifact.CoreMetadataKey:
		return filepath.Join(e.root, "core_metadata", safe(k.Name), safe(k.Version), safe(k.Tag),
			hash16(k.FileURL)+".metadata"), nil
	case *artifact.WheelKey:
		if !k.HasOriginURI() {
			return "", fmt.Errorf("repository: WheelKey must have an origin_uri to allocate a destination")
		}
		urlHash := hash16(k.OriginURI())
		base := urlBasename(k.OriginURI())
		var filename string
		if base != "" && strings.HasSuffix(strings.ToLower(base), ".whl") {
			filename = urlHash + "-" + safe(base)
		} else {
			filename = urlHash + ".whl"
		}
		return filepath.Join(e.root, "wheels", safe(k.Name()), safe(k.Version()), safe(k.Tag()), filename), nil
	default:
		return "", fmt.Errorf("repository: unsupported artifact key type %T", key)
	}
}

func fileURIPath(uri string) (string, bool) {
	if !strings.HasPrefix(uri, "file://") {
		return "", false
	}
	return strings.TrimPrefix(uri, "file://"), true
}
