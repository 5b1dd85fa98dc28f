package edge

import (
	"context"
	"log"
	"sync"
	"time"

	"pos.GO/agent"
	"pos.GO/core/backoff"
)

// State of one agent's upstream (edge) connectivity as last observed.
type State int

const (
	Unknown State = iota
	OK
	Offline
)

func (s State) String() string {
	switch s {
	case OK:
		return "ok"
	case Offline:
		return "offline"
	}
	return "unknown"
}

// Status is the last observed edge health for one agent.
type Status struct {
	State         State     `json:"state"`
	LatencyMs     float64   `json:"latency_ms"`
	PendingOutbox int       `json:"pending_outbox"`
	AuthOK        bool      `json:"auth_ok"`
	AuthStatus    int       `json:"auth_status"`
	EdgeURL       string    `json:"edge_url"`
	LastError     string    `json:"last_error"`
	CheckedAt     time.Time `json:"checked_at"`
}

// statusResponse mirrors the agent's /api/edge/status body.
type statusResponse struct {
	EdgeOK        bool    `json:"edge_ok"`
	EdgeLatencyMs float64 `json:"edge_latency_ms"`
	OutboxPending int     `json:"outbox_pending"`
	EdgeURL       string  `json:"edge_url"`
	EdgeError     string  `json:"edge_error"`
	EdgeAuthOK    bool    `json:"edge_auth_ok"`
	EdgeAuthStat  int     `json:"edge_auth_status"`
	EdgeAuthError string  `json:"edge_auth_error"`
	EdgeAuthURL   string  `json:"edge_auth_url"`
}

// Poll backoff shape: base 3s, doubling, cap 60s, failure count cap 8.
const (
	pollBackoffBase = 3 * time.Second
	pollBackoffCap  = 60 * time.Second
	pollFailureCap  = 8
)

// Monitor polls each agent's /api/edge/status and keeps a per-agent
// {unknown, ok, offline} state machine. A poll for an agent is skipped
// while that agent's backoff window has not elapsed. The offline→ok
// transition fires the recovery hook (auto-sync uses it to refresh
// catalogs the moment connectivity returns).
type Monitor struct {
	agents *agent.Registry

	mu       sync.Mutex
	statuses [2]Status
	backoffs [2]backoff.Backoff

	onRecover func(agent.Key)
	now       func() time.Time
}

func NewMonitor(reg *agent.Registry) *Monitor {
	m := &Monitor{agents: reg, now: time.Now}
	for i := range m.backoffs {
		m.backoffs[i] = backoff.New(pollBackoffBase, pollBackoffCap, pollFailureCap)
	}
	return m
}

// OnRecover registers the offline→ok transition hook.
func (m *Monitor) OnRecover(fn func(agent.Key)) { m.onRecover = fn }

// SetClock overrides the time source (tests).
func (m *Monitor) SetClock(now func() time.Time) { m.now = now }

// Status returns the last observed status for an agent.
func (m *Monitor) Status(k agent.Key) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[k]
}

// Offline reports whether the agent was offline at its last poll. Unknown
// is not offline: an agent that has never been polled is still eligible
// for sync attempts.
func (m *Monitor) Offline(k agent.Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[k].State == Offline
}

// NextEligible returns when the agent's next poll is allowed.
func (m *Monitor) NextEligible(k agent.Key) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backoffs[k].NextEligible()
}

// Failures returns the agent's consecutive poll failure count.
func (m *Monitor) Failures(k agent.Key) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backoffs[k].Failures()
}

// ResetBackoff clears both agents' poll backoff so the next Poll runs
// immediately. Used by the manual reconnect action.
func (m *Monitor) ResetBackoff() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range agent.Keys {
		m.backoffs[k].Reset()
	}
}

// PollAll polls both agents concurrently. Each agent is fault-isolated.
func (m *Monitor) PollAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, k := range agent.Keys {
		wg.Add(1)
		go func(k agent.Key) {
			defer wg.Done()
			m.Poll(ctx, k)
		}(k)
	}
	wg.Wait()
}

// Poll checks one agent unless its backoff window is still open. Returns
// true if a poll was attempted.
func (m *Monitor) Poll(ctx context.Context, k agent.Key) bool {
	m.mu.Lock()
	if !m.backoffs[k].Ready(m.now()) {
		m.mu.Unlock()
		return false
	}
	prev := m.statuses[k].State
	m.mu.Unlock()

	start := m.now()
	// Decode through a map: agents report latency as int, float, or null
	// depending on version.
	var raw map[string]interface{}
	err := m.agents.GetJSON(ctx, k, "/api/edge/status", &raw)
	checkedAt := m.now()

	var resp statusResponse
	if err == nil {
		err = agent.Decode(raw, &resp)
	}

	m.mu.Lock()
	if err != nil {
		m.statuses[k] = Status{
			State:     Offline,
			LastError: err.Error(),
			CheckedAt: checkedAt,
		}
		m.backoffs[k].RecordFailure(checkedAt)
		m.mu.Unlock()
		if prev != Offline {
			log.Printf("edge: %s agent offline: %v", k, err)
		}
		return true
	}

	latency := resp.EdgeLatencyMs
	if latency == 0 {
		latency = float64(checkedAt.Sub(start).Milliseconds())
	}
	state := OK
	if !resp.EdgeOK {
		// The agent answered but its upstream is down. Not a poll failure:
		// the agent stays pollable at full cadence so recovery is seen fast.
		state = Offline
	}
	m.statuses[k] = Status{
		State:         state,
		LatencyMs:     latency,
		PendingOutbox: resp.OutboxPending,
		AuthOK:        resp.EdgeAuthOK,
		AuthStatus:    resp.EdgeAuthStat,
		EdgeURL:       resp.EdgeURL,
		LastError:     resp.EdgeError,
		CheckedAt:     checkedAt,
	}
	m.backoffs[k].Reset()
	recover := prev == Offline && state == OK
	m.mu.Unlock()

	if recover {
		log.Printf("edge: %s agent back online", k)
		if m.onRecover != nil {
			m.onRecover(k)
		}
	}
	return true
}
