package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"pos.GO/autosync"
	"pos.GO/edge"
)

// Wired at boot; the job functions no-op until Bind runs so the cron
// table in config can reference them statically.
var (
	mu        sync.RWMutex
	monitor   *edge.Monitor
	scheduler *autosync.Scheduler
)

// Bind attaches the runtime components the jobs drive.
func Bind(m *edge.Monitor, s *autosync.Scheduler) {
	mu.Lock()
	monitor = m
	scheduler = s
	mu.Unlock()
}

// EdgePollJob polls both agents' edge health. The monitor applies its own
// per-agent backoff, so running this on a short interval is safe.
func EdgePollJob(args ...string) {
	mu.RLock()
	m := monitor
	mu.RUnlock()
	if m == nil {
		log.Println("jobs: edge poll skipped, monitor not bound")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	m.PollAll(ctx)
}

// AutoSyncJob is one scheduler tick. The scheduler's own guards (busy,
// hidden, backoff) decide whether anything actually runs.
func AutoSyncJob(args ...string) {
	mu.RLock()
	s := scheduler
	mu.RUnlock()
	if s == nil {
		log.Println("jobs: auto-sync skipped, scheduler not bound")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	s.Tick(ctx)
}
