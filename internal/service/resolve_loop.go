package service

import (
	"context"
	"log"
	"time"
)

// resolveLoop polls the queue and drains a batch of jobs on each tick,
// mirroring the teacher's own buildLoop poll-and-drain shape adapted from
// build jobs to resolution jobs.
func resolveLoop(ctx context.Context, cfg Config, runDrain func(context.Context) (bool, error)) {
	interval := time.Duration(cfg.PollIntervalSec) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		runCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
		ran, err := runDrain(runCtx)
		cancel()
		if err != nil {
			log.Printf("resolve loop: %v", err)
		} else if !ran {
			log.Printf("resolve loop: skip (drain already running)")
		}
		timer.Reset(interval)
	}
}
