package catalog

import (
	"sort"
	"strings"

	"pos.GO/agent"
)

// MatchReason says which stage of the lookup produced a match.
type MatchReason string

const (
	MatchBarcode MatchReason = "barcode"
	MatchSKU     MatchReason = "sku"
	MatchText    MatchReason = "text"
)

// Match is one candidate (agent, item) pair for a scanned/typed query.
type Match struct {
	Company agent.Key   `json:"company"`
	Item    Item        `json:"item"`
	Reason  MatchReason `json:"reason"`
	Score   int         `json:"score"`
}

// Score bands. Exact stages sit far above the fuzzy band so a barcode hit
// can never be outranked by a text match.
const (
	scoreBarcode     = 1000
	scoreSKUExact    = 900
	scoreFuzzySKU    = 500
	scoreSKUPrefix   = 400
	scoreNamePrefix  = 390
	scoreSKUContains = 300
	scoreNameContain = 200
	preferredBonus   = 1
)

const maxFuzzyMatches = 8

// Engine resolves a query string into a ranked list of candidate matches.
// The caller supplies the agent preference order (preferred agent first),
// computed from the current checkout mode and cart composition.
type Engine struct {
	index *Index
}

func NewEngine(ix *Index) *Engine {
	return &Engine{index: ix}
}

// Lookup ranks candidates for a query:
//  1. exact barcode hit in either agent (one match per agent is possible)
//  2. exact SKU hit, case-insensitive
//  3. fuzzy scan over names and SKUs, capped at 8 results
//
// Queries shorter than 2 characters with no exact hit return nothing;
// callers must not auto-add on an empty result.
func (e *Engine) Lookup(query string, order [2]agent.Key) []Match {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil
	}

	var out []Match
	for _, k := range order {
		if it, ok := e.index.barcodeHit(k, q); ok {
			out = append(out, Match{Company: k, Item: it, Reason: MatchBarcode, Score: scoreBarcode})
		}
	}
	if len(out) > 0 {
		return out
	}

	lower := strings.ToLower(q)
	for _, k := range order {
		if it, ok := e.index.skuHit(k, lower); ok {
			out = append(out, Match{Company: k, Item: it, Reason: MatchSKU, Score: scoreSKUExact})
		}
	}
	if len(out) > 0 {
		return out
	}

	if len([]rune(q)) < 2 {
		return nil
	}
	return e.fuzzy(lower, order)
}

func (e *Engine) fuzzy(lower string, order [2]agent.Key) []Match {
	var out []Match
	for pos, k := range order {
		bonus := 0
		if pos == 0 {
			bonus = preferredBonus
		}
		e.index.scan(k, func(it Item) {
			score := fuzzyScore(it, lower)
			if score == 0 {
				return
			}
			out = append(out, Match{Company: k, Item: it, Reason: MatchText, Score: score + bonus})
		})
	}

	orderIdx := map[agent.Key]int{order[0]: 0, order[1]: 1}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if orderIdx[out[i].Company] != orderIdx[out[j].Company] {
			return orderIdx[out[i].Company] < orderIdx[out[j].Company]
		}
		return out[i].Item.SKU < out[j].Item.SKU
	})
	if len(out) > maxFuzzyMatches {
		out = out[:maxFuzzyMatches]
	}
	return out
}

func fuzzyScore(it Item, lower string) int {
	sku := strings.ToLower(it.SKU)
	name := strings.ToLower(it.Name)
	switch {
	case sku == lower:
		return scoreFuzzySKU
	case strings.HasPrefix(sku, lower):
		return scoreSKUPrefix
	case strings.HasPrefix(name, lower):
		return scoreNamePrefix
	case strings.Contains(sku, lower):
		return scoreSKUContains
	case strings.Contains(name, lower):
		return scoreNameContain
	}
	return 0
}
