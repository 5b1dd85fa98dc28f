package register

import (
	"context"
	"strings"
	"sync"

	"pos.GO/agent"
	"pos.GO/cart"
	"pos.GO/catalog"
	"pos.GO/checkout"
	"pos.GO/customer"
	"pos.GO/edge"
	"pos.GO/store"
)

// Action names a register operation that must not overlap with an
// automatic catalog refresh.
type Action string

const (
	ActionPay       Action = "pay"
	ActionSyncPull  Action = "sync-pull"
	ActionSyncPush  Action = "sync-push"
	ActionReconnect Action = "reconnect"
)

// Session is the per-register state: both agents, the catalog index and
// match engine, the cart, the checkout mode and flag toggle, the bound
// customer and the latest scan results. Every component receives it
// explicitly; nothing closes over package-level state.
type Session struct {
	agents   *agent.Registry
	index    *catalog.Index
	engine   *catalog.Engine
	loader   *catalog.Loader
	cart     *cart.Cart
	monitor  *edge.Monitor
	resolver *customer.Resolver
	orch     *checkout.Orchestrator
	store    *store.Store

	searchSeq customer.SeqGuard

	mu          sync.Mutex
	mode        checkout.Mode
	flag        bool
	boundCust   *customer.Ref
	matches     []catalog.Match
	busy        map[Action]struct{}
	visible     bool
	onVisible   func()
	onBusyClear func()
}

type Deps struct {
	Agents   *agent.Registry
	Index    *catalog.Index
	Engine   *catalog.Engine
	Loader   *catalog.Loader
	Cart     *cart.Cart
	Monitor  *edge.Monitor
	Resolver *customer.Resolver
	Orch     *checkout.Orchestrator
	Store    *store.Store
}

func NewSession(d Deps) *Session {
	return &Session{
		agents:   d.Agents,
		index:    d.Index,
		engine:   d.Engine,
		loader:   d.Loader,
		cart:     d.Cart,
		monitor:  d.Monitor,
		resolver: d.Resolver,
		orch:     d.Orch,
		store:    d.Store,
		mode:     checkout.ModeAuto,
		busy:     map[Action]struct{}{},
		visible:  true,
	}
}

func (s *Session) Cart() *cart.Cart             { return s.cart }
func (s *Session) Agents() *agent.Registry      { return s.agents }
func (s *Session) Monitor() *edge.Monitor       { return s.monitor }
func (s *Session) Resolver() *customer.Resolver { return s.resolver }
func (s *Session) Store() *store.Store          { return s.store }

func (s *Session) Mode() checkout.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) SetMode(m checkout.Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

func (s *Session) Flag() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flag
}

func (s *Session) SetFlag(on bool) {
	s.mu.Lock()
	s.flag = on
	s.mu.Unlock()
}

// Customer returns the bound customer, or nil.
func (s *Session) Customer() *customer.Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.boundCust == nil {
		return nil
	}
	c := *s.boundCust
	return &c
}

func (s *Session) BindCustomer(ref customer.Ref) {
	s.mu.Lock()
	s.boundCust = &ref
	s.mu.Unlock()
}

func (s *Session) ClearCustomer() {
	s.mu.Lock()
	s.boundCust = nil
	s.mu.Unlock()
}

// PreferredOrder is the deterministic tie-break for ambiguous matches.
// Cart composition wins over mode: a single-company cart keeps resolving
// new scans to the company it already committed to. An empty or mixed
// cart falls back to the forced mode agent, then to Unofficial.
func (s *Session) PreferredOrder() [2]agent.Key {
	if comps := s.cart.Companies(); len(comps) == 1 {
		return [2]agent.Key{comps[0], comps[0].Other()}
	}
	if forced, ok := s.Mode().Forced(); ok {
		return [2]agent.Key{forced, forced.Other()}
	}
	return [2]agent.Key{agent.Unofficial, agent.Official}
}

// Lookup resolves a scanned or typed query and keeps the result as the
// session's scan state until the next lookup, an add, or a sale.
func (s *Session) Lookup(query string) []catalog.Match {
	ms := s.engine.Lookup(query, s.PreferredOrder())
	s.mu.Lock()
	s.matches = ms
	s.mu.Unlock()
	return ms
}

// Matches returns the latest lookup results.
func (s *Session) Matches() []catalog.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matches
}

func (s *Session) ClearScan() {
	s.mu.Lock()
	s.matches = nil
	s.mu.Unlock()
}

// AddMatch puts a resolved match into the cart and clears the scan state.
func (s *Session) AddMatch(m catalog.Match) cart.Line {
	ln := s.cart.Add(m.Company, m.Item)
	s.ClearScan()
	return ln
}

// AddItem adds a catalog item by id under the given company. The bool is
// false when the id is not in that company's index.
func (s *Session) AddItem(k agent.Key, itemID string) (cart.Line, bool) {
	item, ok := s.index.ItemByID(k, itemID)
	if !ok {
		return cart.Line{}, false
	}
	ln := s.cart.Add(k, item)
	s.ClearScan()
	return ln, true
}

// SearchCustomers proxies a typeahead query to one agent and guards
// against out-of-order responses: each call takes a ticket, and a
// response that lands after a newer query's ticket is reported stale so
// the caller discards it instead of rendering results for an old
// keystroke.
func (s *Session) SearchCustomers(ctx context.Context, k agent.Key, query string, limit int) (refs []customer.Ref, stale bool, err error) {
	ticket := s.searchSeq.Next()
	refs, err = s.resolver.Search(ctx, k, query, limit)
	if err != nil {
		return nil, false, err
	}
	if !s.searchSeq.Current(ticket) {
		return nil, true, nil
	}
	return refs, false, nil
}

// Busy reports whether any register action is in flight. The auto-sync
// scheduler consults this before pulling.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.busy) > 0
}

func (s *Session) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// SetVisible records UI visibility. Regaining visibility fires the
// onVisible hook so a deferred catalog refresh can run promptly.
func (s *Session) SetVisible(v bool) {
	s.mu.Lock()
	regained := v && !s.visible
	s.visible = v
	fn := s.onVisible
	s.mu.Unlock()
	if regained && fn != nil {
		fn()
	}
}

// OnVisible registers the visibility-regained hook (the scheduler's Kick).
func (s *Session) OnVisible(fn func()) {
	s.mu.Lock()
	s.onVisible = fn
	s.mu.Unlock()
}

func (s *Session) beginAction(a Action) {
	s.mu.Lock()
	s.busy[a] = struct{}{}
	s.mu.Unlock()
}

func (s *Session) endAction(a Action) {
	s.mu.Lock()
	delete(s.busy, a)
	clear := len(s.busy) == 0
	fn := s.onBusyClear
	s.mu.Unlock()
	if clear && fn != nil {
		fn()
	}
}

// OnBusyClear registers a hook fired when the last in-flight action ends.
func (s *Session) OnBusyClear(fn func()) {
	s.mu.Lock()
	s.onBusyClear = fn
	s.mu.Unlock()
}

// Pay runs checkout with the session's mode, flag and bound customer.
// The busy flag covers the whole submission. A fully successful sale
// clears the scan state and the customer binding.
func (s *Session) Pay(ctx context.Context, payment checkout.PaymentMethod, note string) (*checkout.Result, error) {
	s.beginAction(ActionPay)
	defer s.endAction(ActionPay)

	s.mu.Lock()
	req := checkout.Request{
		Mode:           s.mode,
		FlagToOfficial: s.flag,
		Payment:        payment,
		Note:           strings.TrimSpace(note),
	}
	if s.boundCust != nil {
		req.CustomerID = s.boundCust.ID
	}
	s.mu.Unlock()

	res, err := s.orch.Checkout(ctx, req)
	if err == nil {
		s.ClearScan()
		s.ClearCustomer()
	}
	return res, err
}

// SyncPull triggers an immediate edge pull on both agents and reloads
// the catalogs for the agents that pulled. Manual, so it reports errors
// instead of absorbing them.
func (s *Session) SyncPull(ctx context.Context) map[agent.Key]error {
	s.beginAction(ActionSyncPull)
	defer s.endAction(ActionSyncPull)

	errs := make(map[agent.Key]error, len(agent.Keys))
	var pulled []agent.Key
	for _, k := range agent.Keys {
		if err := s.agents.PostJSON(ctx, k, "/api/sync/pull", nil, nil); err != nil {
			errs[k] = err
			continue
		}
		pulled = append(pulled, k)
	}
	if len(pulled) > 0 {
		for k, err := range s.loader.Reload(ctx, pulled...) {
			if err != nil {
				errs[k] = err
			}
		}
	}
	return errs
}

// SyncPush flushes both agents' outboxes toward the edge.
func (s *Session) SyncPush(ctx context.Context) map[agent.Key]error {
	s.beginAction(ActionSyncPush)
	defer s.endAction(ActionSyncPush)

	errs := make(map[agent.Key]error, len(agent.Keys))
	for _, k := range agent.Keys {
		if err := s.agents.PostJSON(ctx, k, "/api/sync/push", nil, nil); err != nil {
			errs[k] = err
		}
	}
	return errs
}

// Reconnect forces an immediate health poll of both agents, bypassing
// the poll backoff.
func (s *Session) Reconnect(ctx context.Context) {
	s.beginAction(ActionReconnect)
	defer s.endAction(ActionReconnect)
	s.monitor.ResetBackoff()
	s.monitor.PollAll(ctx)
}
