package cart

import (
	"fmt"
	"sync"

	"pos.GO/agent"
	"pos.GO/catalog"
)

// VATRate is the flat display-only VAT estimate. The authoritative tax
// figure is computed agent-side at sale time.
const VATRate = 0.11

// Line is one cart row, owned by exactly one agent.
type Line struct {
	Key      string  `json:"key"`
	Company  string  `json:"company"`
	ID       string  `json:"id"`
	SKU      string  `json:"sku"`
	Name     string  `json:"name"`
	Barcode  string  `json:"barcode"`
	PriceUSD float64 `json:"price_usd"`
	PriceLBP float64 `json:"price_lbp"`
	Qty      int     `json:"qty"`

	company agent.Key
}

// CompanyKey returns the owning agent.
func (l Line) CompanyKey() agent.Key { return l.company }

// LineKey builds the identity key for a (company, item) pair.
func LineKey(k agent.Key, itemID string) string {
	return fmt.Sprintf("%s:%s", k, itemID)
}

// Totals is the display total breakdown: overall and per company.
type Totals struct {
	SubtotalUSD float64 `json:"subtotal_usd"`
	VATUSD      float64 `json:"vat_usd"`
	TotalUSD    float64 `json:"total_usd"`
	SubtotalLBP float64 `json:"subtotal_lbp"`
	TotalLBP    float64 `json:"total_lbp"`

	PerCompany map[string]CompanyTotals `json:"per_company"`
	LineCount  int                      `json:"line_count"`
	UnitCount  int                      `json:"unit_count"`
}

type CompanyTotals struct {
	SubtotalUSD float64 `json:"subtotal_usd"`
	VATUSD      float64 `json:"vat_usd"`
	TotalUSD    float64 `json:"total_usd"`
	SubtotalLBP float64 `json:"subtotal_lbp"`
	TotalLBP    float64 `json:"total_lbp"`
	LineCount   int     `json:"line_count"`
}

// Cart is the in-memory transaction: an ordered list of lines, merged by
// (company, item id). It never survives a process restart.
type Cart struct {
	mu       sync.Mutex
	lines    []*Line
	onChange func()
}

func New() *Cart {
	return &Cart{}
}

// OnChange registers a hook fired after every mutation (the presentation
// layer re-renders and re-derives credit eligibility from it). The hook
// runs outside the cart lock, so it may call back into the cart.
func (c *Cart) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Add merges onto an existing line when (company, item id) matches,
// otherwise appends a new line with qty 1.
func (c *Cart) Add(k agent.Key, it catalog.Item) Line {
	c.mu.Lock()
	key := LineKey(k, it.ID)
	for _, ln := range c.lines {
		if ln.Key == key {
			ln.Qty++
			out, fn := *ln, c.onChange
			c.mu.Unlock()
			fire(fn)
			return out
		}
	}
	ln := &Line{
		Key:      key,
		Company:  k.String(),
		ID:       it.ID,
		SKU:      it.SKU,
		Name:     it.Name,
		Barcode:  it.Barcode,
		PriceUSD: it.PriceUSD,
		PriceLBP: it.PriceLBP,
		Qty:      1,
		company:  k,
	}
	c.lines = append(c.lines, ln)
	out, fn := *ln, c.onChange
	c.mu.Unlock()
	fire(fn)
	return out
}

// Remove deletes a line unconditionally. Returns false if the key is not
// in the cart.
func (c *Cart) Remove(key string) bool {
	c.mu.Lock()
	for i, ln := range c.lines {
		if ln.Key == key {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			fn := c.onChange
			c.mu.Unlock()
			fire(fn)
			return true
		}
	}
	c.mu.Unlock()
	return false
}

// AdjustQty changes a line's quantity by delta, clamped to a minimum of 1.
// Removal is explicit via Remove; this operation never deletes a line.
func (c *Cart) AdjustQty(key string, delta int) (Line, bool) {
	c.mu.Lock()
	for _, ln := range c.lines {
		if ln.Key == key {
			ln.Qty += delta
			if ln.Qty < 1 {
				ln.Qty = 1
			}
			out, fn := *ln, c.onChange
			c.mu.Unlock()
			fire(fn)
			return out, true
		}
	}
	c.mu.Unlock()
	return Line{}, false
}

// Lines returns a copy of the cart in insertion order.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Line, len(c.lines))
	for i, ln := range c.lines {
		out[i] = *ln
	}
	return out
}

// Partition splits the cart by owning agent, preserving line order.
func (c *Cart) Partition() map[agent.Key][]Line {
	out := make(map[agent.Key][]Line)
	for _, ln := range c.Lines() {
		out[ln.company] = append(out[ln.company], ln)
	}
	return out
}

// Companies returns the distinct owning agents, Official first.
func (c *Cart) Companies() []agent.Key {
	part := c.Partition()
	var out []agent.Key
	for _, k := range agent.Keys {
		if len(part[k]) > 0 {
			out = append(out, k)
		}
	}
	return out
}

// RemoveCompany drops every line owned by one agent (split checkout clears
// a leg only after that leg's submission succeeds).
func (c *Cart) RemoveCompany(k agent.Key) {
	c.mu.Lock()
	kept := c.lines[:0]
	for _, ln := range c.lines {
		if ln.company != k {
			kept = append(kept, ln)
		}
	}
	c.lines = kept
	fn := c.onChange
	c.mu.Unlock()
	fire(fn)
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	c.lines = nil
	fn := c.onChange
	c.mu.Unlock()
	fire(fn)
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

// Totals computes the display totals, overall and per company.
func (c *Cart) Totals() Totals {
	t := Totals{PerCompany: make(map[string]CompanyTotals)}
	for _, ln := range c.Lines() {
		usd := ln.PriceUSD * float64(ln.Qty)
		lbp := ln.PriceLBP * float64(ln.Qty)
		t.SubtotalUSD += usd
		t.SubtotalLBP += lbp
		t.LineCount++
		t.UnitCount += ln.Qty

		ct := t.PerCompany[ln.Company]
		ct.SubtotalUSD += usd
		ct.SubtotalLBP += lbp
		ct.LineCount++
		t.PerCompany[ln.Company] = ct
	}
	t.VATUSD = t.SubtotalUSD * VATRate
	t.TotalUSD = t.SubtotalUSD + t.VATUSD
	t.TotalLBP = t.SubtotalLBP * (1 + VATRate)
	for name, ct := range t.PerCompany {
		ct.VATUSD = ct.SubtotalUSD * VATRate
		ct.TotalUSD = ct.SubtotalUSD + ct.VATUSD
		ct.TotalLBP = ct.SubtotalLBP * (1 + VATRate)
		t.PerCompany[name] = ct
	}
	return t
}

func fire(fn func()) {
	if fn != nil {
		fn()
	}
}
