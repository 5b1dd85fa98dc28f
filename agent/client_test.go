package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseKey(t *testing.T) {
	k, err := ParseKey(" Official ")
	if err != nil || k != Official {
		t.Fatalf("ParseKey(Official) = %v, %v", k, err)
	}
	k, err = ParseKey("unofficial")
	if err != nil || k != Unofficial {
		t.Fatalf("ParseKey(unofficial) = %v, %v", k, err)
	}
	if _, err := ParseKey("both"); err == nil {
		t.Fatal("ParseKey(both) should fail")
	}
}

func TestRegistry_BaseURLRereadAfterSet(t *testing.T) {
	r := NewRegistry("http://127.0.0.1:7070/", "http://127.0.0.1:7071")
	if got := r.BaseURL(Official); got != "http://127.0.0.1:7070" {
		t.Errorf("BaseURL(Official) = %q (trailing slash not stripped?)", got)
	}
	r.SetBaseURL(Unofficial, "http://192.168.1.50:7071/")
	if got := r.BaseURL(Unofficial); got != "http://192.168.1.50:7071" {
		t.Errorf("BaseURL(Unofficial) = %q after SetBaseURL", got)
	}
}

func TestGetJSON_DecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/api/items" {
			t.Errorf("path = %s", req.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"id":"i1","sku":"MILK-1L"}]}`))
	}))
	defer srv.Close()

	r := NewRegistry(srv.URL, srv.URL)
	var out struct {
		Items []struct {
			ID  string `json:"id"`
			SKU string `json:"sku"`
		} `json:"items"`
	}
	if err := r.GetJSON(context.Background(), Official, "/api/items", &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if len(out.Items) != 1 || out.Items[0].SKU != "MILK-1L" {
		t.Errorf("decoded %+v", out)
	}
}

func TestPostJSON_ErrorDetailSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, `{"detail":"empty cart"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	r := NewRegistry(srv.URL, srv.URL)
	err := r.PostJSON(context.Background(), Unofficial, "/api/sale", map[string]interface{}{}, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "empty cart" {
		t.Errorf("APIError = %+v", apiErr)
	}
	if apiErr.Agent != Unofficial {
		t.Errorf("Agent = %v, want Unofficial", apiErr.Agent)
	}
}

func TestPostJSON_ErrorFieldFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, `{"error":"edge_offline"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := NewRegistry(srv.URL, srv.URL)
	err := r.PostJSON(context.Background(), Official, "/api/sale", nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Message != "edge_offline" {
		t.Errorf("Message = %q, want edge_offline", apiErr.Message)
	}
}

func TestDecode_WeakTyping(t *testing.T) {
	in := map[string]interface{}{
		"edge_ok":         true,
		"edge_latency_ms": "42",
		"outbox_pending":  3.0,
	}
	var out struct {
		EdgeOK        bool    `json:"edge_ok"`
		EdgeLatencyMs float64 `json:"edge_latency_ms"`
		OutboxPending int     `json:"outbox_pending"`
	}
	if err := Decode(in, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !out.EdgeOK || out.EdgeLatencyMs != 42 || out.OutboxPending != 3 {
		t.Errorf("decoded %+v", out)
	}
}
