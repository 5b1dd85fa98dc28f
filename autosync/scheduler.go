package autosync

import (
	"context"
	"log"
	"sync"
	"time"

	"pos.GO/agent"
	"pos.GO/catalog"
	"pos.GO/core/backoff"
	"pos.GO/edge"
)

// Gate exposes the register state the scheduler must respect: it defers
// while a payment or manual sync action is in flight and while the page
// is hidden.
type Gate interface {
	Busy() bool
	Visible() bool
}

// Sync backoff shape: base 10s, doubling, cap 5min.
const (
	syncBackoffBase = 10 * time.Second
	syncBackoffCap  = 5 * time.Minute
	syncFailureCap  = 8
)

// Scheduler runs a best-effort catalog pull-refresh across both agents on
// a fixed interval, plus reactively on edge recovery and on visibility
// regained. It never returns errors to callers; failures are absorbed
// into its backoff state because nobody is watching.
type Scheduler struct {
	agents  *agent.Registry
	loader  *catalog.Loader
	monitor *edge.Monitor
	gate    Gate

	mu  sync.Mutex
	bo  backoff.Backoff
	now func() time.Time

	// lastOutcome is kept for the status surface.
	lastRun     time.Time
	lastSuccess time.Time
}

func NewScheduler(reg *agent.Registry, loader *catalog.Loader, monitor *edge.Monitor, gate Gate) *Scheduler {
	return &Scheduler{
		agents:  reg,
		loader:  loader,
		monitor: monitor,
		gate:    gate,
		bo:      backoff.New(syncBackoffBase, syncBackoffCap, syncFailureCap),
		now:     time.Now,
	}
}

// SetClock overrides the time source (tests).
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// Failures returns the consecutive failed-run count.
func (s *Scheduler) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bo.Failures()
}

// LastSuccess returns when a run last refreshed at least one agent.
func (s *Scheduler) LastSuccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSuccess
}

// Kick requests an immediate refresh attempt (edge recovery, visibility
// regained). Same guards as the interval tick.
func (s *Scheduler) Kick(ctx context.Context) {
	s.Tick(ctx)
}

// Tick is one eligible-run attempt. Guards, in order: a high-risk action
// in flight, the page hidden, the backoff window still open. Eligible
// agents (last edge status not offline) are pulled in parallel; one
// success refreshes catalogs and resets the backoff.
func (s *Scheduler) Tick(ctx context.Context) {
	if s.gate != nil && (s.gate.Busy() || !s.gate.Visible()) {
		return
	}
	s.mu.Lock()
	now := s.now()
	if !s.bo.Ready(now) {
		s.mu.Unlock()
		return
	}
	s.lastRun = now
	s.mu.Unlock()

	var eligible []agent.Key
	for _, k := range agent.Keys {
		if !s.monitor.Offline(k) {
			eligible = append(eligible, k)
		}
	}
	if len(eligible) == 0 {
		return
	}

	var wg sync.WaitGroup
	results := make([]error, len(eligible))
	for i, k := range eligible {
		wg.Add(1)
		go func(i int, k agent.Key) {
			defer wg.Done()
			results[i] = s.agents.PostJSON(ctx, k, "/api/sync/pull", nil, nil)
		}(i, k)
	}
	wg.Wait()

	var pulled []agent.Key
	for i, err := range results {
		if err == nil {
			pulled = append(pulled, eligible[i])
		}
	}

	if len(pulled) == 0 {
		s.mu.Lock()
		s.bo.RecordFailure(s.now())
		next := s.bo.NextEligible()
		s.mu.Unlock()
		log.Printf("autosync: pull failed for all eligible agents (next attempt after %s)", next.Format(time.TimeOnly))
		return
	}

	s.loader.Reload(ctx, pulled...)
	s.mu.Lock()
	s.bo.Reset()
	s.lastSuccess = s.now()
	s.mu.Unlock()
}
