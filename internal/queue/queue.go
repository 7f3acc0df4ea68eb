package queue

import "context"

// EnvSpec is the queue-wire shape of a resolve.ResolutionEnv: just enough
// to rebuild one on the consuming side (internal/service/engine.go does
// that), since pep425/pep508 types don't themselves need to survive a
// JSON round-trip.
type EnvSpec struct {
	Identifier        string            `json:"identifier"`
	MarkerEnvironment map[string]string `json:"marker_environment,omitempty"`
	SupportedTags     []string          `json:"supported_tags,omitempty"` // most-specific first
}

// Request is an asynchronous resolution job: a set of root requirement
// strings (PEP 508 syntax) to resolve against a set of target
// environments, adapted from the teacher's build-retry Request (which
// carried a single package/version/recipes job) to a resolution job
// carrying a whole root set, since one resolve call already fans a batch
// of roots out across environments internally.
type Request struct {
	JobID        string    `json:"job_id,omitempty"`
	Requirements []string  `json:"requirements"`
	Environments []EnvSpec `json:"environments"`
	RepoID       string    `json:"repo_id,omitempty"`
	Mode         string    `json:"mode,omitempty"`
	EnqueuedAt   int64     `json:"enqueued_at,omitempty"`
	Attempts     int       `json:"attempts,omitempty"`
}

// Backend defines operations for the queue.
type Backend interface {
	Enqueue(ctx context.Context, req Request) error
	List(ctx context.Context) ([]Request, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
	Pop(ctx context.Context, max int) ([]Request, error)
}

// Stats summarizes queue depth and oldest item age.
type Stats struct {
	Length    int   `json:"length"`
	OldestAge int64 `json:"oldest_age_seconds"`
}
