package service

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/k8ika0s/wheel-resolver/internal/queue"
)

// Run starts the resolver HTTP server: synchronous resolution, async job
// submission backed by the configured queue, and a background drain loop,
// mirroring the teacher's own Run (HTTP mux + background pollers) adapted
// from build-job orchestration to resolution-job orchestration.
func Run() error {
	cfg := overlayFromFile(fromEnv())
	w, err := BuildWorker(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerID := defaultWorkerID()
	runID := uuid.NewString()
	go heartbeatLoop(ctx, cfg, &w.activeResolutions, workerID, runID)
	go resolveLoop(ctx, cfg, w.Drain)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(wr http.ResponseWriter, r *http.Request) {
		writeJSON(wr, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/ready", func(wr http.ResponseWriter, r *http.Request) {
		writeJSON(wr, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.HandleFunc("/resolve", func(wr http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			wr.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !authorized(cfg, r) {
			wr.WriteHeader(http.StatusForbidden)
			return
		}
		var req queue.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(wr, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if req.JobID == "" {
			req.JobID = uuid.NewString()
		}
		resolveCtx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
		defer cancel()
		result, err := w.ResolveSync(resolveCtx, req)
		if err != nil {
			writeJSON(wr, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(wr, http.StatusOK, result)
	})
	mux.HandleFunc("/enqueue", func(wr http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			wr.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !authorized(cfg, r) {
			wr.WriteHeader(http.StatusForbidden)
			return
		}
		var req queue.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(wr, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if req.JobID == "" {
			req.JobID = uuid.NewString()
		}
		if err := w.Queue.Enqueue(r.Context(), req); err != nil {
			writeJSON(wr, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(wr, http.StatusAccepted, map[string]string{"job_id": req.JobID})
	})
	mux.HandleFunc("/trigger", func(wr http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			wr.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !authorized(cfg, r) {
			wr.WriteHeader(http.StatusForbidden)
			return
		}
		triggerCtx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
		defer cancel()
		ran, err := w.Drain(triggerCtx)
		if err != nil {
			writeJSON(wr, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(wr, http.StatusOK, map[string]bool{"ran": ran})
	})
	mux.HandleFunc("/queue/stats", func(wr http.ResponseWriter, r *http.Request) {
		stats, err := w.Queue.Stats(r.Context())
		if err != nil {
			writeJSON(wr, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(wr, http.StatusOK, stats)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	log.Printf("starting resolver on %s", srv.Addr)
	return srv.ListenAndServe()
}

func authorized(cfg Config, r *http.Request) bool {
	if cfg.WorkerToken == "" {
		return true
	}
	tok := r.Header.Get("X-Worker-Token")
	if tok == "" {
		tok = r.URL.Query().Get("token")
	}
	return tok == cfg.WorkerToken
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
