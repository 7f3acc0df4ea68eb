package repository

import (
	"context"
	"fmt"

	"github.com/k8ika0s/wheel-resolver/internal/artifact"
)

// Resolver is the narrow interface a Coordinator needs from a chain
// resolver: resolve one key at a pre-allocated destination.
type Resolver interface {
	Resolve(ctx context.Context, key artifact.Key, destinationURI string) (*artifact.Record, error)
}

// Coordinator composes a repository with a resolver for one artifact
// kind, implementing get-or-fetch: a repository hit short-circuits, a
// miss allocates a destination, invokes the resolver, and persists the
// result.
//
// Grounded on original_source's internal/orchestration.py
// (ArtifactCoordinator).
type Coordinator struct {
	Repo     ArtifactRepository
	Resolver Resolver
}

// NewCoordinator constructs a Coordinator over a repository and resolver.
func NewCoordinator(repo ArtifactRepository, resolver Resolver) *Coordinator {
	return &Coordinator{Repo: repo, Resolver: resolver}
}

// Resolve returns the cached record for key if present, else allocates a
// destination, invokes the chain resolver, and persists the result before
// returning it.
func (c *Coordinator) Resolve(ctx context.Context, key artifact.Key) (*artifact.Record, error) {
	if rec, err := c.Repo.Get(key); err != nil {
		return nil, fmt.Errorf("coordinator: repository get: %w", err)
	} else if rec != nil {
		return rec, nil
	}

	dest, err := c.Repo.AllocateDestinationURI(key)
	if err != nil {
		return nil, fmt.Errorf("coordinator: allocate destination: %w", err)
	}

	rec, err := c.Resolver.Resolve(ctx, key, dest)
	if err != nil {
		return nil, err
	}
	if err := c.Repo.Put(rec); err != nil {
		return nil, fmt.Errorf("coordinator: put record: %w", err)
	}
	return rec, nil
}
