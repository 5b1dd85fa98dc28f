package checkout

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"pos.GO/agent"
	"pos.GO/cart"
	"pos.GO/customer"
	"pos.GO/edge"
)

// saleLine is the wire shape of one cart line in POST /api/sale.
type saleLine struct {
	ID       string  `json:"id"`
	SKU      string  `json:"sku"`
	Name     string  `json:"name"`
	Barcode  string  `json:"barcode"`
	PriceUSD float64 `json:"price_usd"`
	PriceLBP float64 `json:"price_lbp"`
	Qty      int     `json:"qty"`
}

type receiptMeta struct {
	Pilot PilotMeta `json:"pilot"`
}

type saleRequest struct {
	Cart            []saleLine  `json:"cart"`
	CustomerID      string      `json:"customer_id,omitempty"`
	PaymentMethod   string      `json:"payment_method"`
	PricingCurrency string      `json:"pricing_currency,omitempty"`
	ExchangeRate    float64     `json:"exchange_rate,omitempty"`
	ReceiptMeta     receiptMeta `json:"receipt_meta"`
	SkipStockMoves  bool        `json:"skip_stock_moves"`
}

type saleResponse struct {
	EventID      string `json:"event_id"`
	EdgeAccepted *bool  `json:"edge_accepted"`
}

// SaleRecord is the local journal row written after a committed
// submission (end-of-day review; the agents hold the authoritative
// invoices).
type SaleRecord struct {
	EventID      string
	Company      string
	Kind         string
	Mode         string
	Payment      string
	CustomerID   string
	CrossCompany bool
	Flagged      bool
	SplitGroupID string
	LineCount    int
	TotalUSD     float64
	TotalLBP     float64
}

// Journal persists SaleRecords. The local store implements it; nil
// disables journaling.
type Journal interface {
	RecordSale(rec SaleRecord) error
}

// Orchestrator drives the checkout decision procedure: given the cart,
// the agent-selection mode, the flag toggle and live edge health, it
// decides between one invoice, two split invoices, or a flagged
// cross-company invoice, and runs the submissions.
type Orchestrator struct {
	agents   *agent.Registry
	cart     *cart.Cart
	resolver *customer.Resolver
	monitor  *edge.Monitor
	window   ReceiptWindow
	journal  Journal

	// Passed through to the agents; they fall back to their own config
	// when zero.
	PricingCurrency string
	ExchangeRate    float64

	// Push flushes an agent's outbox after a committed sale. Best effort
	// and non-blocking: the sale already succeeded locally, the agent's
	// own outbox retries if this push fails. Replaceable in tests.
	Push func(k agent.Key)

	newGroupID func() string
}

func NewOrchestrator(reg *agent.Registry, crt *cart.Cart, resolver *customer.Resolver,
	monitor *edge.Monitor, window ReceiptWindow, journal Journal) *Orchestrator {
	o := &Orchestrator{
		agents:     reg,
		cart:       crt,
		resolver:   resolver,
		monitor:    monitor,
		window:     window,
		journal:    journal,
		newGroupID: uuid.NewString,
	}
	if o.window == nil {
		o.window = NopReceiptWindow{}
	}
	o.Push = func(k agent.Key) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := reg.PostJSON(ctx, k, "/api/sync/push", nil, nil); err != nil {
				log.Printf("checkout: post-sale push to %s failed (outbox will retry): %v", k, err)
			}
		}()
	}
	return o
}

// Checkout runs the decision procedure in strict order: guard, flag mode,
// split, cross-company, simple. Validation failures return before any
// network call with the cart untouched.
func (o *Orchestrator) Checkout(ctx context.Context, req Request) (*Result, error) {
	if o.cart.Empty() {
		return nil, ErrEmptyCart
	}
	if req.Payment == PayCredit && strings.TrimSpace(req.CustomerID) == "" {
		return nil, ErrCreditNeedsCustomer
	}

	if req.FlagToOfficial {
		return o.flagged(ctx, req)
	}

	companies := o.cart.Companies()
	if len(companies) > 1 {
		if req.Payment == PayCredit {
			return nil, ErrCreditSplit
		}
		return o.split(ctx, req)
	}

	owner := companies[0]
	target := owner
	if forced, ok := req.Mode.Forced(); ok {
		target = forced
	}
	if target != owner {
		if req.Payment == PayCredit {
			return nil, ErrCreditCrossCompany
		}
		return o.cross(ctx, req, owner, target)
	}
	return o.simple(ctx, req, owner)
}

// flagged: exactly one invoice against Official, whatever the lines'
// owners. Foreign (unofficial) lines suppress stock moves (moving
// physical stock between independent ledgers is a downstream
// reconciliation task) and mark the invoice for adjustment review.
func (o *Orchestrator) flagged(ctx context.Context, req Request) (*Result, error) {
	lines := o.cart.Lines()
	lineCompanies := companyNames(o.cart.Companies())
	foreign := false
	for _, ln := range lines {
		if ln.CompanyKey() != agent.Official {
			foreign = true
			break
		}
	}

	sub := o.submit(ctx, req, leg{
		kind:           KindFlagged,
		target:         agent.Official,
		resolveAgainst: agent.Official,
		lines:          lines,
		skipStock:      foreign,
		meta: PilotMeta{
			Mode:                 req.Mode.String(),
			InvoiceCompany:       agent.Official.String(),
			LineCompanies:        lineCompanies,
			CrossCompany:         foreign,
			FlaggedForAdjustment: foreign,
			Note:                 req.Note,
		},
	})
	res := &Result{Kind: KindFlagged, Submissions: []Submission{sub}}
	res.collectWarnings()
	if sub.Err != nil {
		return res, res.Err()
	}
	o.cart.Clear()
	return res, nil
}

// split: one company-pure invoice per agent, correlated by a shared
// split_group_id. Legs are independent business transactions with no
// shared rollback: each successful leg's lines leave the cart
// immediately, a failed leg's lines stay for an explicit retry.
func (o *Orchestrator) split(ctx context.Context, req Request) (*Result, error) {
	part := o.cart.Partition()
	res := &Result{Kind: KindSplit, SplitGroupID: o.newGroupID()}

	for _, k := range agent.Keys {
		lines := part[k]
		if len(lines) == 0 {
			continue
		}
		sub := o.submit(ctx, req, leg{
			kind:           KindSplit,
			target:         k,
			resolveAgainst: k,
			lines:          lines,
			meta: PilotMeta{
				Mode:           req.Mode.String(),
				InvoiceCompany: k.String(),
				LineCompanies:  []string{k.String()},
				SplitGroupID:   res.SplitGroupID,
				Note:           req.Note,
			},
		})
		res.Submissions = append(res.Submissions, sub)
		if sub.Err == nil {
			o.cart.RemoveCompany(k)
		}
	}
	res.collectWarnings()
	return res, res.Err()
}

// cross: the forced agent differs from the cart's sole owner. One invoice
// on the target with stock moves suppressed and the mismatch recorded.
func (o *Orchestrator) cross(ctx context.Context, req Request, owner, target agent.Key) (*Result, error) {
	sub := o.submit(ctx, req, leg{
		kind:           KindCross,
		target:         target,
		resolveAgainst: target,
		lines:          o.cart.Lines(),
		skipStock:      true,
		meta: PilotMeta{
			Mode:                 req.Mode.String(),
			InvoiceCompany:       target.String(),
			LineCompanies:        []string{owner.String()},
			CrossCompany:         true,
			FlaggedForAdjustment: true,
			Note:                 req.Note,
		},
	})
	res := &Result{Kind: KindCross, Submissions: []Submission{sub}}
	res.collectWarnings()
	if sub.Err != nil {
		return res, res.Err()
	}
	o.cart.Clear()
	return res, nil
}

// simple: single-company cart, mode matches owner. No flags, stock moves
// proceed normally.
func (o *Orchestrator) simple(ctx context.Context, req Request, owner agent.Key) (*Result, error) {
	sub := o.submit(ctx, req, leg{
		kind:           KindSimple,
		target:         owner,
		resolveAgainst: owner,
		lines:          o.cart.Lines(),
		meta: PilotMeta{
			Mode:           req.Mode.String(),
			InvoiceCompany: owner.String(),
			LineCompanies:  []string{owner.String()},
			Note:           req.Note,
		},
	})
	res := &Result{Kind: KindSimple, Submissions: []Submission{sub}}
	res.collectWarnings()
	if sub.Err != nil {
		return res, res.Err()
	}
	o.cart.Clear()
	return res, nil
}

// leg is one planned submission. kind carries the decision already made
// by Checkout so the journal never has to reconstruct it from the meta.
type leg struct {
	kind           Kind
	target         agent.Key
	resolveAgainst agent.Key
	lines          []cart.Line
	skipStock      bool
	meta           PilotMeta
}

// submit runs one sale submission end to end: credit/edge guard, customer
// resolution, receipt pre-open, the sale call, receipt navigation, the
// best-effort push, and journaling.
func (o *Orchestrator) submit(ctx context.Context, req Request, l leg) Submission {
	sub := Submission{Company: l.target}

	if req.Payment == PayCredit && o.monitor != nil && o.monitor.Offline(l.target) {
		sub.Err = ErrCreditEdgeOffline
		sub.Meta = l.meta
		return sub
	}

	applied := ""
	if id := strings.TrimSpace(req.CustomerID); id != "" && o.resolver != nil {
		ref, err := o.resolver.Resolve(ctx, l.resolveAgainst, id)
		switch {
		case err == nil:
			applied = ref.ID
		case req.Payment == PayCredit:
			sub.Err = fmt.Errorf("customer resolution for credit failed: %w", err)
			sub.Meta = l.meta
			return sub
		default:
			sub.GuestFallback = true
		}
	}
	sub.CustomerApplied = applied
	l.meta.CustomerIDRequested = strings.TrimSpace(req.CustomerID)
	l.meta.CustomerIDApplied = applied
	sub.Meta = l.meta

	handle, werr := o.window.PreOpen(l.target)
	if werr != nil || handle == nil {
		sub.ReceiptBlocked = true
		handle = nil
	}

	payload := saleRequest{
		Cart:            toSaleLines(l.lines),
		CustomerID:      applied,
		PaymentMethod:   string(req.Payment),
		PricingCurrency: o.PricingCurrency,
		ExchangeRate:    o.ExchangeRate,
		ReceiptMeta:     receiptMeta{Pilot: l.meta},
		SkipStockMoves:  l.skipStock,
	}
	var resp saleResponse
	if err := o.agents.PostJSON(ctx, l.target, "/api/sale", payload, &resp); err != nil {
		if handle != nil {
			handle.Close()
		}
		sub.Err = err
		return sub
	}
	sub.EventID = resp.EventID
	sub.EdgeAccepted = resp.EdgeAccepted

	if handle != nil {
		handle.Navigate(o.agents.BaseURL(l.target) + "/receipt/last")
	}
	if o.Push != nil {
		o.Push(l.target)
	}
	if o.journal != nil {
		var usd, lbp float64
		for _, ln := range l.lines {
			usd += ln.PriceUSD * float64(ln.Qty)
			lbp += ln.PriceLBP * float64(ln.Qty)
		}
		rec := SaleRecord{
			EventID:      sub.EventID,
			Company:      l.target.String(),
			Kind:         string(l.kind),
			Mode:         l.meta.Mode,
			Payment:      string(req.Payment),
			CustomerID:   applied,
			CrossCompany: l.meta.CrossCompany,
			Flagged:      l.meta.FlaggedForAdjustment,
			SplitGroupID: l.meta.SplitGroupID,
			LineCount:    len(l.lines),
			TotalUSD:     usd,
			TotalLBP:     lbp,
		}
		if err := o.journal.RecordSale(rec); err != nil {
			log.Printf("checkout: journal write failed for %s: %v", sub.EventID, err)
		}
	}
	return sub
}

func (r *Result) collectWarnings() {
	for _, s := range r.Submissions {
		if s.GuestFallback {
			r.Warnings = append(r.Warnings,
				fmt.Sprintf("customer not found under %s; sold as guest", s.Company))
		}
		if s.ReceiptBlocked && s.Err == nil {
			r.Warnings = append(r.Warnings,
				fmt.Sprintf("receipt popup blocked for %s; the sale itself succeeded", s.Company))
		}
	}
}

func companyNames(keys []agent.Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

func toSaleLines(lines []cart.Line) []saleLine {
	out := make([]saleLine, len(lines))
	for i, ln := range lines {
		out[i] = saleLine{
			ID:       ln.ID,
			SKU:      ln.SKU,
			Name:     ln.Name,
			Barcode:  ln.Barcode,
			PriceUSD: ln.PriceUSD,
			PriceLBP: ln.PriceLBP,
			Qty:      ln.Qty,
		}
	}
	return out
}
