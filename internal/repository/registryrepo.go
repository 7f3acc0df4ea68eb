package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/k8ika0s/wheel-resolver/internal/artifact"
	"github.com/k8ika0s/wheel-resolver/internal/cas"
)

// RegistryRepository is a second ArtifactRepository implementation: like
// Ephemeral it owns a local tempdir workspace for file:// destinations
// (a strategy still materializes bytes onto local disk), but every Put
// additionally pushes the record's metadata and content as OCI-style
// blobs to a Zot-compatible registry, and a Get miss against the local
// index falls back to fetching those blobs before reporting a miss —
// giving resolution runs on different machines (or different ephemeral
// workspaces) a shared, durable cache.
//
// Grounded on the teacher's internal/cas package (Fetcher/Pusher/ZotStore,
// an OCI blob/manifest HTTP client) adapted from caching build artifacts
// to caching resolved wheel-acquisition artifacts.
type RegistryRepository struct {
	local *Ephemeral

	fetcher cas.Fetcher
	pusher  cas.Pusher
	zot     cas.ZotStore

	mu sync.Mutex
}

// RegistryRepositoryConfig is the keyword-style config RegisterRegistryFactory
// expects, matching spec.md §6's Factory contract.
type RegistryRepositoryConfig struct {
	BaseURL  string
	Repo     string
	Username string
	Password string
}

// NewRegistryRepository constructs a RegistryRepository backed by a fresh
// local tempdir workspace and the given registry endpoint.
func NewRegistryRepository(cfg RegistryRepositoryConfig) (*RegistryRepository, error) {
	local, err := NewEphemeral()
	if err != nil {
		return nil, err
	}
	client := &RegistryRepository{
		local:   local,
		fetcher: cas.Fetcher{BaseURL: cfg.BaseURL, Repo: cfg.Repo, Username: cfg.Username, Password: cfg.Password},
		pusher:  cas.Pusher{BaseURL: cfg.BaseURL, Repo: cfg.Repo, Username: cfg.Username, Password: cfg.Password},
		zot:     cas.ZotStore{BaseURL: cfg.BaseURL, Repo: cfg.Repo, Username: cfg.Username, Password: cfg.Password},
	}
	return client, nil
}

// RegisterRegistryFactory installs the "zot" factory into reg, reading
// base_url/repo/username/password out of the plugin config map.
func RegisterRegistryFactory(reg *Registry) error {
	return reg.Register("zot", func(config map[string]any) (ArtifactRepository, error) {
		cfg := RegistryRepositoryConfig{Repo: "wheel-resolver"}
		if v, ok := config["base_url"].(string); ok {
			cfg.BaseURL = v
		}
		if v, ok := config["repo"].(string); ok && v != "" {
			cfg.Repo = v
		}
		if v, ok := config["username"].(string); ok {
			cfg.Username = v
		}
		if v, ok := config["password"].(string); ok {
			cfg.Password = v
		}
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("repository: zot factory requires a base_url")
		}
		return NewRegistryRepository(cfg)
	})
}

// metaRecord is the JSON shape persisted as the metadata blob; it mirrors
// artifact.Record exactly but is declared locally so the registry's wire
// format is decoupled from the in-process type's own json tags.
type metaRecord struct {
	DestinationURI  string            `json:"destination_uri"`
	OriginURI       string            `json:"origin_uri"`
	Source          artifact.Source   `json:"source"`
	ContentSHA256   string            `json:"content_sha256"`
	Size            int64             `json:"size"`
	CreatedAtEpochS int64             `json:"created_at_epoch_s"`
	ContentHashes   map[string]string `json:"content_hashes,omitempty"`
}

// digestFor derives a full sha256 OCI-style digest from a repository
// CacheKey, distinct from repository.go's hash16 (which truncates to 16
// hex chars for filesystem path shortness, not registry digest identity).
func digestFor(s string) string {
	sum := sha256.Sum256([]byte(s))
	return "sha256:" + hex.EncodeToString(sum[:])
}

func (r *RegistryRepository) Get(key artifact.Key) (*artifact.Record, error) {
	if rec, err := r.local.Get(key); err != nil || rec != nil {
		return rec, err
	}
	return r.fetchFromRegistry(key)
}

func (r *RegistryRepository) fetchFromRegistry(key artifact.Key) (*artifact.Record, error) {
	ctx := context.Background()
	metaDigest := digestFor(key.CacheKey() + ":meta")
	ok, err := r.zot.Has(ctx, metaDigest)
	if err != nil {
		return nil, fmt.Errorf("repository: zot has: %w", err)
	}
	if !ok {
		return nil, nil
	}

	metaPath := filepath.Join(r.local.RootPath(), "registry-meta", strings.TrimPrefix(metaDigest, "sha256:")+".json")
	if err := r.fetcher.Fetch(ctx, metaDigest, metaPath); err != nil {
		return nil, fmt.Errorf("repository: fetch metadata blob: %w", err)
	}
	raw, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("repository: read fetched metadata: %w", err)
	}
	var meta metaRecord
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("repository: decode fetched metadata: %w", err)
	}

	dest, err := r.local.AllocateDestinationURI(key)
	if err != nil {
		return nil, err
	}
	destPath, isFile := fileURIPath(dest)
	if isFile {
		contentDigest := digestFor(key.CacheKey() + ":content")
		if err := r.fetcher.Fetch(ctx, contentDigest, destPath); err != nil {
			return nil, fmt.Errorf("repository: fetch content blob: %w", err)
		}
	}

	rec := &artifact.Record{
		Key:             key,
		DestinationURI:  dest,
		OriginURI:       meta.OriginURI,
		Source:          meta.Source,
		ContentSHA256:   meta.ContentSHA256,
		Size:            meta.Size,
		CreatedAtEpochS: meta.CreatedAtEpochS,
		ContentHashes:   meta.ContentHashes,
	}
	if err := r.local.Put(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *RegistryRepository) Put(record *artifact.Record) error {
	if err := r.local.Put(record); err != nil {
		return err
	}
	return r.pushToRegistry(record)
}

func (r *RegistryRepository) pushToRegistry(record *artifact.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctx := context.Background()

	meta := metaRecord{
		DestinationURI:  record.DestinationURI,
		OriginURI:       record.OriginURI,
		Source:          record.Source,
		ContentSHA256:   record.ContentSHA256,
		Size:            record.Size,
		CreatedAtEpochS: record.CreatedAtEpochS,
		ContentHashes:   record.ContentHashes,
	}
	if meta.CreatedAtEpochS == 0 {
		meta.CreatedAtEpochS = time.Now().Unix()
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("repository: marshal metadata: %w", err)
	}
	metaDigest := digestFor(record.Key.CacheKey() + ":meta")
	if _, err := r.pusher.Push(ctx, metaDigest, metaJSON, "application/json"); err != nil {
		return fmt.Errorf("repository: push metadata blob: %w", err)
	}

	if path, isFile := fileURIPath(record.DestinationURI); isFile {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("repository: read content for push: %w", err)
		}
		contentDigest := digestFor(record.Key.CacheKey() + ":content")
		if _, err := r.pusher.Push(ctx, contentDigest, content, "application/octet-stream"); err != nil {
			return fmt.Errorf("repository: push content blob: %w", err)
		}
	}
	return nil
}

func (r *RegistryRepository) Delete(key artifact.Key) error {
	return r.local.Delete(key)
}

func (r *RegistryRepository) AllocateDestinationURI(key artifact.Key) (string, error) {
	return r.local.AllocateDestinationURI(key)
}

func (r *RegistryRepository) Close() error {
	return r.local.Close()
}

var _ ArtifactRepository = (*RegistryRepository)(nil)
