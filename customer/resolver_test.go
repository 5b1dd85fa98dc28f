package customer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pos.GO/agent"
)

func customerAgent(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/customers/by-id", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("customer_id") == "C-100" {
			w.Write([]byte(`{"customer":{"id":"C-100","name":"Walk-in Plus"}}`))
			return
		}
		w.Write([]byte(`{"customer":null}`))
	})
	mux.HandleFunc("/api/customers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("query") == "wal" {
			w.Write([]byte(`{"customers":[{"id":"C-100","name":"Walk-in Plus"},{"id":"C-101","name":"Walid"}]}`))
			return
		}
		w.Write([]byte(`{"customers":[]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestResolve_Found(t *testing.T) {
	srv := customerAgent(t)
	r := NewResolver(agent.NewRegistry(srv.URL, srv.URL))
	ref, err := r.Resolve(context.Background(), agent.Official, "C-100")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ref.Name != "Walk-in Plus" {
		t.Errorf("ref = %+v", ref)
	}
}

func TestResolve_NullCustomerIsNotFound(t *testing.T) {
	srv := customerAgent(t)
	r := NewResolver(agent.NewRegistry(srv.URL, srv.URL))
	_, err := r.Resolve(context.Background(), agent.Unofficial, "C-999")
	var nf *ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want *ErrNotFound", err)
	}
	if nf.Agent != agent.Unofficial || nf.ID != "C-999" {
		t.Errorf("ErrNotFound = %+v", nf)
	}
}

func TestResolve_TransportErrorPassedThrough(t *testing.T) {
	r := NewResolver(agent.NewRegistry("http://127.0.0.1:1", "http://127.0.0.1:1"))
	_, err := r.Resolve(context.Background(), agent.Official, "C-100")
	if err == nil {
		t.Fatal("expected transport error")
	}
	var nf *ErrNotFound
	if errors.As(err, &nf) {
		t.Error("transport error must not look like not-found")
	}
}

func TestSearch(t *testing.T) {
	srv := customerAgent(t)
	r := NewResolver(agent.NewRegistry(srv.URL, srv.URL))
	refs, err := r.Search(context.Background(), agent.Official, "wal", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(refs) != 2 || refs[1].ID != "C-101" {
		t.Errorf("refs = %+v", refs)
	}
}

func TestSearch_RepeatHitsCache(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"customers":[{"id":"C-1","name":"Regular"}]}`))
	}))
	defer srv.Close()

	r := NewResolver(agent.NewRegistry(srv.URL, srv.URL))
	for i := 0; i < 3; i++ {
		if _, err := r.Search(context.Background(), agent.Official, "reg", 10); err != nil {
			t.Fatalf("Search: %v", err)
		}
	}
	if hits != 1 {
		t.Errorf("agent hits = %d, want 1 (cached)", hits)
	}

	// Different agent misses the cache.
	if _, err := r.Search(context.Background(), agent.Unofficial, "reg", 10); err != nil {
		t.Fatal(err)
	}
	if hits != 2 {
		t.Errorf("agent hits = %d, want 2", hits)
	}
}

func TestSeqGuard_StaleTicketDropped(t *testing.T) {
	var g SeqGuard
	first := g.Next()
	second := g.Next()
	if g.Current(first) {
		t.Error("stale ticket still current")
	}
	if !g.Current(second) {
		t.Error("latest ticket not current")
	}
	third := g.Next()
	if g.Current(second) || !g.Current(third) {
		t.Error("ticket ordering broken")
	}
}
