package pos

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"pos.GO/agent"
	"pos.GO/api"
	"pos.GO/cart"
	"pos.GO/catalog"
	"pos.GO/checkout"
	"pos.GO/customer"
	"pos.GO/edge"
	"pos.GO/register"
	"pos.GO/store"
)

func agentStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/sale":
			w.Write([]byte(`{"event_id":"evt-api"}`))
		case "/api/customers":
			w.Write([]byte(`{"customers":[{"id":"C-1","name":"Regular"}]}`))
		case "/api/customers/by-id":
			if r.URL.Query().Get("customer_id") == "C-1" {
				w.Write([]byte(`{"customer":{"id":"C-1","name":"Regular"}}`))
				return
			}
			w.Write([]byte(`{"customer":null}`))
		default:
			w.Write([]byte(`{}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T) (*echo.Echo, *register.Session) {
	t.Helper()
	stub := agentStub(t)
	reg := agent.NewRegistry(stub.URL, stub.URL)

	ix := catalog.NewIndex()
	ix.Rebuild(agent.Official, []catalog.Item{
		{ID: "o1", SKU: "MILK-1L", Name: "Milk 1L", Barcode: "100", PriceUSD: 1.00},
	}, nil)
	ix.Rebuild(agent.Unofficial, []catalog.Item{
		{ID: "u2", SKU: "SODA", Name: "Soda Can", Barcode: "300", PriceUSD: 0.35},
	}, nil)

	st, err := store.Open(filepath.Join(t.TempDir(), "pos.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	crt := cart.New()
	mon := edge.NewMonitor(reg)
	resolver := customer.NewResolver(reg)
	orch := checkout.NewOrchestrator(reg, crt, resolver, mon, nil, st)
	orch.Push = func(agent.Key) {}
	s := register.NewSession(register.Deps{
		Agents:   reg,
		Index:    ix,
		Engine:   catalog.NewEngine(ix),
		Loader:   catalog.NewLoader(reg, ix, st),
		Cart:     crt,
		Monitor:  mon,
		Resolver: resolver,
		Orch:     orch,
		Store:    st,
	})

	e := echo.New()
	api.ApplyModules(e.Group("/api"), s)
	return e, s
}

func do(t *testing.T, e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	out := map[string]interface{}{}
	if rec.Body.Len() > 0 {
		json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func TestLookupEndpoint(t *testing.T) {
	e, _ := newTestServer(t)

	rec, out := do(t, e, http.MethodGet, "/api/pos/lookup?q=100", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if out["count"].(float64) != 1 {
		t.Errorf("count = %v", out["count"])
	}

	rec, _ = do(t, e, http.MethodGet, "/api/pos/lookup?q=", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty query status = %d", rec.Code)
	}
}

func TestCartFlow(t *testing.T) {
	e, s := newTestServer(t)

	rec, _ := do(t, e, http.MethodPost, "/api/pos/cart/add", `{"company":"unofficial","item_id":"u2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("add status = %d", rec.Code)
	}
	rec, _ = do(t, e, http.MethodPost, "/api/pos/cart/add", `{"company":"unofficial","item_id":"nope"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown item status = %d", rec.Code)
	}

	key := cart.LineKey(agent.Unofficial, "u2")
	rec, out := do(t, e, http.MethodPost, "/api/pos/cart/qty", `{"key":"`+key+`","delta":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("qty status = %d", rec.Code)
	}
	line := out["line"].(map[string]interface{})
	if line["qty"].(float64) != 3 {
		t.Errorf("qty = %v", line["qty"])
	}

	rec, _ = do(t, e, http.MethodPost, "/api/pos/cart/remove", `{"key":"`+key+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove status = %d", rec.Code)
	}
	if !s.Cart().Empty() {
		t.Error("cart not empty after remove")
	}
}

func TestModeAndFlagEndpoints(t *testing.T) {
	e, s := newTestServer(t)

	rec, _ := do(t, e, http.MethodPost, "/api/pos/mode", `{"mode":"official"}`)
	if rec.Code != http.StatusOK || s.Mode() != checkout.ModeOfficial {
		t.Errorf("status = %d mode = %v", rec.Code, s.Mode())
	}
	rec, _ = do(t, e, http.MethodPost, "/api/pos/mode", `{"mode":"bogus"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus mode status = %d", rec.Code)
	}

	do(t, e, http.MethodPost, "/api/pos/flag", `{"on":true}`)
	if !s.Flag() {
		t.Error("flag not set")
	}
}

func TestCheckoutEndpoint(t *testing.T) {
	e, s := newTestServer(t)
	s.AddItem(agent.Unofficial, "u2")

	rec, out := do(t, e, http.MethodPost, "/api/pos/checkout", `{"payment":"cash"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %v", rec.Code, out)
	}
	res := out["result"].(map[string]interface{})
	if res["kind"] != "simple" {
		t.Errorf("kind = %v", res["kind"])
	}
	if !s.Cart().Empty() {
		t.Error("cart not cleared")
	}
}

func TestCheckoutEndpoint_ValidationIs422(t *testing.T) {
	e, _ := newTestServer(t)

	rec, out := do(t, e, http.MethodPost, "/api/pos/checkout", `{"payment":"cash"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty cart status = %d body = %v", rec.Code, out)
	}
}

func TestCustomerSearchEndpoint(t *testing.T) {
	e, _ := newTestServer(t)

	rec, out := do(t, e, http.MethodGet, "/api/pos/customers?company=official&query=reg", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if refs := out["customers"].([]interface{}); len(refs) != 1 {
		t.Errorf("customers = %v", refs)
	}
	if out["stale"] != false {
		t.Errorf("stale = %v, want false for a sequential query", out["stale"])
	}
}

func TestCustomerBindEndpoint(t *testing.T) {
	e, s := newTestServer(t)

	rec, _ := do(t, e, http.MethodPost, "/api/pos/customers/bind", `{"company":"official","customer_id":"C-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("bind status = %d", rec.Code)
	}
	if c := s.Customer(); c == nil || c.ID != "C-1" {
		t.Errorf("bound customer = %+v", c)
	}

	rec, _ = do(t, e, http.MethodPost, "/api/pos/customers/bind", `{"company":"official","customer_id":"C-404"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown customer status = %d", rec.Code)
	}

	do(t, e, http.MethodPost, "/api/pos/customers/clear", "")
	if s.Customer() != nil {
		t.Error("customer binding survived clear")
	}
}

func TestStatusEndpoint(t *testing.T) {
	e, _ := newTestServer(t)

	rec, out := do(t, e, http.MethodGet, "/api/pos/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	agents := out["agents"].(map[string]interface{})
	for _, name := range []string{"official", "unofficial"} {
		st := agents[name].(map[string]interface{})
		if st["state"] != "unknown" {
			t.Errorf("%s state before any poll = %v", name, st["state"])
		}
	}
}

func TestRecentSalesEndpoint(t *testing.T) {
	e, s := newTestServer(t)
	s.AddItem(agent.Unofficial, "u2")
	do(t, e, http.MethodPost, "/api/pos/checkout", `{"payment":"cash"}`)

	rec, out := do(t, e, http.MethodGet, "/api/pos/sales/recent", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	sales := out["sales"].([]interface{})
	if len(sales) != 1 {
		t.Errorf("sales = %d, want 1", len(sales))
	}
}
