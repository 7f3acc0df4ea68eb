// Package repository implements the content-addressed artifact repository
// and the coordinator that composes it with a chain resolver for
// get-or-fetch semantics.
//
// Grounded on original_source's internal/builtin_repository.py
// (EphemeralArtifactRepository) for the ephemeral implementation, and
// internal/repositories/registry.py for the plugin-factory registry;
// path-safety helpers (safe()/hash16()) follow spec.md §6 exactly.
package repository

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/k8ika0s/wheel-resolver/internal/artifact"
)

// ArtifactRepository is the contract spec.md §4.4 describes: an
// in-memory index over an owned workspace, with deterministic destination
// URI allocation and eviction-on-missing-file semantics.
type ArtifactRepository interface {
	Get(key artifact.Key) (*artifact.Record, error)
	Put(record *artifact.Record) error
	Delete(key artifact.Key) error
	AllocateDestinationURI(key artifact.Key) (string, error)
	Close() error
}

// safe implements spec.md §6's safe(s): strip, collapse characters outside
// [A-Za-z0-9._-] to '_', truncate to 160 chars, replace empty with "_".
func safe(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '.' || r == '_' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := b.String()
	if len(out) > 160 {
		out = out[:160]
	}
	if out == "" {
		out = "_"
	}
	return out
}

// hash16 implements spec.md §6's hash16(s): first 16 hex chars of
// sha256(utf8(s)).
func hash16(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

// urlBasename returns the final path segment of a URL-shaped string, or
// "" if none is discernible.
func urlBasename(uri string) string {
	trimmed := strings.TrimRight(uri, "/")
	idx := strings.LastIndexByte(trimmed, '/')
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+1:]
}

// Factory is the repository plugin contract (spec.md §6): a keyword-style
// config factory returning an ArtifactRepository. The core never accepts
// a bare type/constructor; authors wrap their constructor in a Factory
// value, mirroring the original's rejection of class objects
// (_validate_repo_factory_callable).
type Factory func(config map[string]any) (ArtifactRepository, error)

// Registry holds named repository factories. It records only the name of
// each factory; it does not track whether a factory is a builtin or was
// registered externally.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a named factory. Registering an existing name is an
// error, matching the lifecycle's general "duplicate is fatal" stance.
func (r *Registry) Register(id string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("repository: nil factory for %q", id)
	}
	if _, exists := r.factories[id]; exists {
		return fmt.Errorf("repository: duplicate repository id %q", id)
	}
	r.factories[id] = factory
	return nil
}

// Open constructs a repository by id, per spec.md §4.4's
// "open_repository(repo_id, config)".
func (r *Registry) Open(id string, config map[string]any) (ArtifactRepository, error) {
	factory, ok := r.factories[id]
	if !ok {
		return nil, fmt.Errorf("repository: unknown repository id %q", id)
	}
	return factory(config)
}
