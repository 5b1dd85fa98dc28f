package edge

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"pos.GO/agent"
)

func okBody(pending int) string {
	return fmt.Sprintf(`{"edge_ok":true,"edge_latency_ms":12.5,"outbox_pending":%d,"edge_auth_ok":true,"edge_auth_status":200,"edge_url":"https://edge.example"}`, pending)
}

func TestPoll_OKRecordsLatencyAndOutbox(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(okBody(3)))
	}))
	defer srv.Close()

	m := NewMonitor(agent.NewRegistry(srv.URL, srv.URL))
	if !m.Poll(context.Background(), agent.Official) {
		t.Fatal("poll skipped")
	}
	st := m.Status(agent.Official)
	if st.State != OK {
		t.Fatalf("state = %v, want ok", st.State)
	}
	if st.LatencyMs != 12.5 || st.PendingOutbox != 3 || !st.AuthOK {
		t.Errorf("status = %+v", st)
	}
}

func TestPoll_TransportFailureGoesOffline(t *testing.T) {
	m := NewMonitor(agent.NewRegistry("http://127.0.0.1:1", "http://127.0.0.1:1"))
	m.Poll(context.Background(), agent.Unofficial)
	st := m.Status(agent.Unofficial)
	if st.State != Offline {
		t.Fatalf("state = %v, want offline", st.State)
	}
	if st.LastError == "" {
		t.Error("LastError empty")
	}
	if m.Failures(agent.Unofficial) != 1 {
		t.Errorf("failures = %d, want 1", m.Failures(agent.Unofficial))
	}
}

func TestPoll_EdgeDownButAgentUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"edge_ok":false,"edge_error":"dial timeout","outbox_pending":7}`))
	}))
	defer srv.Close()

	m := NewMonitor(agent.NewRegistry(srv.URL, srv.URL))
	m.Poll(context.Background(), agent.Official)
	st := m.Status(agent.Official)
	if st.State != Offline {
		t.Fatalf("state = %v, want offline", st.State)
	}
	if st.PendingOutbox != 7 || st.LastError != "dial timeout" {
		t.Errorf("status = %+v", st)
	}
	// Agent answered: full poll cadence is kept.
	if m.Failures(agent.Official) != 0 {
		t.Errorf("failures = %d, want 0", m.Failures(agent.Official))
	}
}

func TestPoll_BackoffSkipsAndResets(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, `{"error":"boom"}`, http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(okBody(0)))
	}))
	defer srv.Close()

	m := NewMonitor(agent.NewRegistry(srv.URL, srv.URL))
	now := time.Unix(1000, 0)
	m.SetClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		// step past the previous backoff window so each attempt runs
		now = m.NextEligible(agent.Official).Add(time.Millisecond)
		if !m.Poll(context.Background(), agent.Official) {
			t.Fatalf("poll %d skipped", i)
		}
	}
	if m.Failures(agent.Official) != 3 {
		t.Fatalf("failures = %d, want 3", m.Failures(agent.Official))
	}
	if !m.NextEligible(agent.Official).After(now) {
		t.Error("next eligible poll not in the future after 3 failures")
	}
	if m.Poll(context.Background(), agent.Official) {
		t.Error("poll ran inside backoff window")
	}

	fail.Store(false)
	now = m.NextEligible(agent.Official).Add(time.Millisecond)
	if !m.Poll(context.Background(), agent.Official) {
		t.Fatal("poll skipped after window elapsed")
	}
	if m.Failures(agent.Official) != 0 {
		t.Errorf("failures = %d after success, want 0", m.Failures(agent.Official))
	}
}

func TestPoll_RecoveryHookFiresOnOfflineToOK(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, `{"error":"down"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(okBody(0)))
	}))
	defer srv.Close()

	m := NewMonitor(agent.NewRegistry(srv.URL, srv.URL))
	now := time.Unix(1000, 0)
	m.SetClock(func() time.Time { return now })

	var recovered []agent.Key
	m.OnRecover(func(k agent.Key) { recovered = append(recovered, k) })

	m.Poll(context.Background(), agent.Unofficial)
	if len(recovered) != 0 {
		t.Fatal("recovery fired on first failure")
	}

	fail.Store(false)
	now = m.NextEligible(agent.Unofficial).Add(time.Millisecond)
	m.Poll(context.Background(), agent.Unofficial)
	if len(recovered) != 1 || recovered[0] != agent.Unofficial {
		t.Errorf("recovered = %v, want [unofficial]", recovered)
	}

	// ok → ok must not fire again
	m.Poll(context.Background(), agent.Unofficial)
	if len(recovered) != 1 {
		t.Errorf("recovery fired on ok→ok (%v)", recovered)
	}
}

func TestStatus_UnknownBeforeFirstPoll(t *testing.T) {
	m := NewMonitor(agent.NewRegistry("http://x", "http://x"))
	if st := m.Status(agent.Official); st.State != Unknown {
		t.Errorf("state = %v, want unknown", st.State)
	}
	if m.Offline(agent.Official) {
		t.Error("unknown must not count as offline")
	}
}
