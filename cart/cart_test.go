package cart

import (
	"math"
	"testing"

	"pos.GO/agent"
	"pos.GO/catalog"
)

var (
	milkOfficial   = catalog.Item{ID: "o1", SKU: "MILK-1L", Name: "Milk 1L", PriceUSD: 1.00, PriceLBP: 90000}
	milkUnofficial = catalog.Item{ID: "u1", SKU: "MILK-1L", Name: "Milk 1L", PriceUSD: 0.95, PriceLBP: 85000}
	soda           = catalog.Item{ID: "u2", SKU: "SODA", Name: "Soda Can", PriceUSD: 0.35, PriceLBP: 31500}
)

func TestAdd_MergesSameCompanyItem(t *testing.T) {
	c := New()
	c.Add(agent.Official, milkOfficial)
	c.Add(agent.Official, milkOfficial)

	lines := c.Lines()
	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(lines))
	}
	if lines[0].Qty != 2 {
		t.Errorf("qty = %d, want 2", lines[0].Qty)
	}
}

func TestAdd_SameItemIDDifferentCompanyStaysSeparate(t *testing.T) {
	c := New()
	c.Add(agent.Official, milkOfficial)
	c.Add(agent.Unofficial, milkUnofficial)
	if len(c.Lines()) != 2 {
		t.Fatalf("lines = %d, want 2", len(c.Lines()))
	}
}

func TestAdjustQty_FloorsAtOne(t *testing.T) {
	c := New()
	ln := c.Add(agent.Unofficial, soda)
	got, ok := c.AdjustQty(ln.Key, -100)
	if !ok {
		t.Fatal("line not found")
	}
	if got.Qty != 1 {
		t.Errorf("qty = %d, want 1", got.Qty)
	}
}

func TestRemove_Unconditional(t *testing.T) {
	c := New()
	ln := c.Add(agent.Unofficial, soda)
	c.AdjustQty(ln.Key, 4)
	if !c.Remove(ln.Key) {
		t.Fatal("Remove returned false")
	}
	if !c.Empty() {
		t.Error("cart not empty after Remove")
	}
	if c.Remove(ln.Key) {
		t.Error("Remove of absent key returned true")
	}
}

func TestPartitionAndCompanies(t *testing.T) {
	c := New()
	c.Add(agent.Unofficial, soda)
	c.Add(agent.Official, milkOfficial)
	c.Add(agent.Unofficial, milkUnofficial)

	part := c.Partition()
	if len(part[agent.Official]) != 1 || len(part[agent.Unofficial]) != 2 {
		t.Errorf("partition sizes = %d/%d", len(part[agent.Official]), len(part[agent.Unofficial]))
	}
	comps := c.Companies()
	if len(comps) != 2 || comps[0] != agent.Official {
		t.Errorf("Companies() = %v", comps)
	}
}

func TestRemoveCompany(t *testing.T) {
	c := New()
	c.Add(agent.Official, milkOfficial)
	c.Add(agent.Unofficial, soda)
	c.RemoveCompany(agent.Official)

	lines := c.Lines()
	if len(lines) != 1 || lines[0].CompanyKey() != agent.Unofficial {
		t.Errorf("lines after RemoveCompany = %+v", lines)
	}
}

func TestTotals_SplitPerCompany(t *testing.T) {
	c := New()
	c.Add(agent.Official, milkOfficial) // 1.00
	c.Add(agent.Unofficial, soda)       // 0.35
	c.Add(agent.Unofficial, soda)       // merge, qty 2

	tot := c.Totals()
	if !close2(tot.SubtotalUSD, 1.70) {
		t.Errorf("subtotal = %v, want 1.70", tot.SubtotalUSD)
	}
	if !close2(tot.VATUSD, 1.70*0.11) {
		t.Errorf("vat = %v", tot.VATUSD)
	}
	if !close2(tot.TotalUSD, 1.70*1.11) {
		t.Errorf("total = %v", tot.TotalUSD)
	}
	if tot.LineCount != 2 || tot.UnitCount != 3 {
		t.Errorf("counts = %d lines / %d units", tot.LineCount, tot.UnitCount)
	}
	if !close2(tot.PerCompany["official"].SubtotalUSD, 1.00) {
		t.Errorf("official subtotal = %v", tot.PerCompany["official"].SubtotalUSD)
	}
	if !close2(tot.PerCompany["unofficial"].SubtotalUSD, 0.70) {
		t.Errorf("unofficial subtotal = %v", tot.PerCompany["unofficial"].SubtotalUSD)
	}
	// Each company carries its own VAT and grand total, not just a subtotal.
	off := tot.PerCompany["official"]
	if !close2(off.VATUSD, 1.00*0.11) || !close2(off.TotalUSD, 1.00*1.11) {
		t.Errorf("official vat/total = %v/%v", off.VATUSD, off.TotalUSD)
	}
	un := tot.PerCompany["unofficial"]
	if !close2(un.VATUSD, 0.70*0.11) || !close2(un.TotalUSD, 0.70*1.11) {
		t.Errorf("unofficial vat/total = %v/%v", un.VATUSD, un.TotalUSD)
	}
	if !close2(off.TotalUSD+un.TotalUSD, tot.TotalUSD) {
		t.Errorf("per-company totals %v+%v do not sum to %v", off.TotalUSD, un.TotalUSD, tot.TotalUSD)
	}
}

func TestOnChange_FiresPerMutation(t *testing.T) {
	c := New()
	n := 0
	c.OnChange(func() { n++ })

	ln := c.Add(agent.Official, milkOfficial) // 1
	c.AdjustQty(ln.Key, 1)                    // 2
	c.Remove(ln.Key)                          // 3
	c.Clear()                                 // 4
	if n != 4 {
		t.Errorf("onChange fired %d times, want 4", n)
	}
}

func TestOnChange_MayReadCart(t *testing.T) {
	c := New()
	var lastCount int
	c.OnChange(func() { lastCount = len(c.Lines()) })
	c.Add(agent.Official, milkOfficial)
	if lastCount != 1 {
		t.Errorf("hook saw %d lines, want 1", lastCount)
	}
}

func close2(a, b float64) bool { return math.Abs(a-b) < 1e-9 }
