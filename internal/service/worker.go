package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/k8ika0s/wheel-resolver/internal/cas"
	"github.com/k8ika0s/wheel-resolver/internal/queue"
	"github.com/k8ika0s/wheel-resolver/internal/resolve"
)

// Worker owns the queue backend, result-publication registry client, and
// resolve.Engine a running resolver process needs, mirroring the
// teacher's own Worker struct shape (Cfg plus the backends BuildWorker
// wires) adapted from build-job execution to resolution-job execution.
//
// Results are published straight through the teacher's own OCI/Zot
// registry client (internal/cas.Pusher), the same one
// internal/repository.RegistryRepository uses to cache acquired
// artifacts — a finished job's record is just another content-addressed
// blob, so there is no need for a second, separate object-store
// abstraction alongside it.
type Worker struct {
	Cfg      Config
	Engine   *resolve.Engine
	Queue    queue.Backend
	Results  cas.Pusher
	Registry cas.ZotStore

	activeResolutions atomic.Int32
	draining          atomic.Bool
}

// BuildWorker constructs a Worker from cfg: the queue backend selected by
// cfg.QueueBackend (mirroring the teacher's own switch in its
// BuildWorker), a cas.Pusher/cas.ZotStore pair pointed at the configured
// result registry (a no-op Pusher/ZotStore if no registry URL is set, in
// which case Put/Has are simply never reached since runAndStore only
// calls them when cfg.ResultRegistryURL is non-empty), and a fresh
// resolve.Engine.
func BuildWorker(cfg Config) (*Worker, error) {
	var q queue.Backend
	switch cfg.QueueBackend {
	case "redis":
		q = queue.NewRedisQueue(cfg.RedisURL, cfg.RedisKey)
	case "kafka":
		q = queue.NewKafkaQueue(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		q = queue.NewFileQueue(cfg.QueueFile)
	}

	engine, err := buildEngine()
	if err != nil {
		return nil, fmt.Errorf("build worker: %w", err)
	}

	pusher := cas.Pusher{BaseURL: cfg.ResultRegistryURL, Repo: cfg.ResultRegistryRepo, Username: cfg.ResultRegistryUsername, Password: cfg.ResultRegistryPassword}
	zot := cas.ZotStore{BaseURL: cfg.ResultRegistryURL, Repo: cfg.ResultRegistryRepo, Username: cfg.ResultRegistryUsername, Password: cfg.ResultRegistryPassword}

	return &Worker{Cfg: cfg, Engine: engine, Queue: q, Results: pusher, Registry: zot}, nil
}

// ResolveSync runs one job's resolution synchronously and returns its
// result, for the HTTP /resolve handler's request/response path.
func (w *Worker) ResolveSync(ctx context.Context, req queue.Request) (*resolve.ResolutionResult, error) {
	params, err := paramsFromRequest(w.Cfg, req)
	if err != nil {
		return nil, err
	}
	w.activeResolutions.Add(1)
	defer w.activeResolutions.Add(-1)
	return w.Engine.Resolve(ctx, params)
}

// Drain pops a batch of queued jobs and resolves each one, publishing its
// result to the configured result registry. It reports false without
// popping anything if a drain is already in flight, mirroring the
// teacher's own already-running guard around its build drain.
func (w *Worker) Drain(ctx context.Context) (bool, error) {
	if !w.draining.CompareAndSwap(false, true) {
		return false, nil
	}
	defer w.draining.Store(false)

	batch := w.Cfg.ResolvePoolSize
	if batch <= 0 {
		batch = 1
	}
	reqs, err := w.Queue.Pop(ctx, batch)
	if err != nil {
		return true, err
	}
	for _, req := range reqs {
		if err := w.runAndStore(ctx, req); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (w *Worker) runAndStore(ctx context.Context, req queue.Request) error {
	result, resolveErr := w.ResolveSync(ctx, req)
	record := jobRecord{JobID: req.JobID, CompletedAt: time.Now().Unix()}
	if resolveErr != nil {
		record.Error = resolveErr.Error()
	} else {
		record.Result = result
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal job record: %w", err)
	}
	if w.Cfg.ResultRegistryURL == "" {
		return nil
	}
	digest := digestForJob(req.JobID)
	exists, err := w.Registry.Has(ctx, digest)
	if err != nil {
		return fmt.Errorf("check result registry: %w", err)
	}
	if exists {
		return nil
	}
	_, err = w.Results.Push(ctx, digest, data, "application/json")
	if err != nil {
		return fmt.Errorf("push job record: %w", err)
	}
	return nil
}

type jobRecord struct {
	JobID       string                    `json:"job_id"`
	CompletedAt int64                     `json:"completed_at"`
	Result      *resolve.ResolutionResult `json:"result,omitempty"`
	Error       string                    `json:"error,omitempty"`
}

// digestForJob derives the content-address a finished job's record is
// pushed under: jobs rerun under the same ID are expected to resolve to
// the same environment and requirement set, so keying on the job ID
// (rather than the record bytes) gives every attempt of one job the same
// digest. runAndStore skips the push when that digest already exists, so
// the first published record for a job ID is the one kept.
func digestForJob(jobID string) string {
	if jobID == "" {
		jobID = uuid.NewString()
	}
	sum := sha256.Sum256([]byte(jobID))
	return "sha256:" + hex.EncodeToString(sum[:])
}
