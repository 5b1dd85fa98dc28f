package customer

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"pos.GO/agent"
	"pos.GO/core/cache"
)

// Ref is an agent-scoped customer. The same id string may exist under one
// agent and not the other, or resolve to different names.
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ErrNotFound is returned when the agent answers but knows no such id.
type ErrNotFound struct {
	Agent agent.Key
	ID    string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("customer %q not found under %s agent", e.ID, e.Agent)
}

// Resolver verifies customer ids against a specific agent. Credit sales
// hard-require a successful resolution; cash/card degrade to a guest sale
// when resolution fails. A misattributed credit sale hits a receivables
// ledger, a cash sale does not.
type Resolver struct {
	agents *agent.Registry

	// Typeahead results repeat as the cashier types; cache them briefly.
	searches  *cache.Cache
	searchTTL time.Duration
}

func NewResolver(reg *agent.Registry) *Resolver {
	return &Resolver{
		agents:    reg,
		searches:  cache.NewCache(),
		searchTTL: 10 * time.Second,
	}
}

// Resolve looks a customer id up under one agent. A nil customer in a 2xx
// response means "agent answered: no such id" and maps to *ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, k agent.Key, id string) (*Ref, error) {
	var resp struct {
		Customer *Ref `json:"customer"`
	}
	path := "/api/customers/by-id?customer_id=" + url.QueryEscape(id)
	if err := r.agents.GetJSON(ctx, k, path, &resp); err != nil {
		return nil, err
	}
	if resp.Customer == nil || resp.Customer.ID == "" {
		return nil, &ErrNotFound{Agent: k, ID: id}
	}
	return resp.Customer, nil
}

// Search queries an agent's typeahead endpoint. Results are cached for a
// few seconds keyed by agent and query.
func (r *Resolver) Search(ctx context.Context, k agent.Key, query string, limit int) ([]Ref, error) {
	if limit <= 0 {
		limit = 20
	}
	key := fmt.Sprintf("%s|%s|%d", k, query, limit)
	if v, ok := r.searches.Get(key); ok {
		return v.([]Ref), nil
	}

	var resp struct {
		Customers []Ref `json:"customers"`
	}
	path := fmt.Sprintf("/api/customers?query=%s&limit=%d", url.QueryEscape(query), limit)
	if err := r.agents.GetJSON(ctx, k, path, &resp); err != nil {
		return nil, err
	}
	r.searches.Set(key, resp.Customers, r.searchTTL)
	return resp.Customers, nil
}

// Create registers a new customer under one agent.
func (r *Resolver) Create(ctx context.Context, k agent.Key, ref Ref) (*Ref, error) {
	var resp struct {
		Customer *Ref `json:"customer"`
	}
	if err := r.agents.PostJSON(ctx, k, "/api/customers/create", ref, &resp); err != nil {
		return nil, err
	}
	if resp.Customer == nil {
		return &ref, nil
	}
	return resp.Customer, nil
}

// SeqGuard cancels stale typeahead results: each issued request takes a
// ticket, and a response is applied only if its ticket is still the
// latest. No in-flight cancellation is needed; late responses are simply
// dropped.
type SeqGuard struct {
	seq atomic.Uint64
}

// Next issues a new ticket, invalidating all earlier ones.
func (g *SeqGuard) Next() uint64 {
	return g.seq.Add(1)
}

// Current reports whether a ticket is still the latest.
func (g *SeqGuard) Current(ticket uint64) bool {
	return g.seq.Load() == ticket
}
