// Package merge folds ledger entries for the same instrument into composite
// positions.
package merge

import (
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/bobmcallan/novus/internal/models"
)

// Key groups holdings: marketable classes by tracking symbol (or upper-cased
// name), everything else by id.
func Key(h models.Holding) string {
	if !h.Type.Marketable() {
		return h.ID
	}
	ref := h.TrackingSymbol
	if ref == "" {
		ref = strings.ToUpper(h.Name)
	}
	return string(h.Type) + ":" + ref
}

// Holdings merges items by Key, preserving first-seen group order. Each
// result carries MemberIDs. Composites may be merged again: their MemberIDs
// are carried through, so merging is idempotent.
func Holdings(items []models.Holding) []models.Holding {
	var order []string
	groups := make(map[string][]models.Holding)
	for _, h := range items {
		k := Key(h)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], h)
	}

	out := make([]models.Holding, 0, len(order))
	for _, k := range order {
		out = append(out, fold(groups[k]))
	}
	return out
}

func memberIDs(h models.Holding) []string {
	if len(h.MemberIDs) > 0 {
		return h.MemberIDs
	}
	return []string{h.ID}
}

func fold(group []models.Holding) models.Holding {
	first := group[0].Clone()
	if len(group) == 1 {
		first.MemberIDs = append([]string(nil), memberIDs(group[0])...)
		return first
	}

	n := len(group)
	qty := make([]float64, n)
	invested := make([]float64, n)
	current := make([]float64, n)
	var ids []string
	var sipTotal float64
	out := first

	for i, h := range group {
		qty[i] = h.Quantity
		invested[i] = h.InvestedAmount
		current[i] = h.CurrentValue
		ids = append(ids, memberIDs(h)...)
		sipTotal += models.Deref(h.SipAmount)

		if i == 0 {
			continue
		}
		if dateBefore(h.PurchaseDate, out.PurchaseDate) {
			out.PurchaseDate = h.PurchaseDate
		}
		if dateBefore(out.LastUpdated, h.LastUpdated) {
			out.LastUpdated = h.LastUpdated
		}
		out.IsSip = out.IsSip || h.IsSip
	}

	totalQty := floats.Sum(qty)
	out.Quantity = totalQty
	out.InvestedAmount = floats.Sum(invested)
	out.CurrentValue = floats.Sum(current)
	if totalQty > 0 {
		out.PurchasePrice = out.InvestedAmount / totalQty
		out.PriceStartOfDay = weighted(group, qty, totalQty, func(h models.Holding) *float64 { return h.PriceStartOfDay })
		out.PriceStartOfWeek = weighted(group, qty, totalQty, func(h models.Holding) *float64 { return h.PriceStartOfWeek })
		out.PriceStartOfMonth = weighted(group, qty, totalQty, func(h models.Holding) *float64 { return h.PriceStartOfMonth })
	}
	out.SipAmount = nil
	if sipTotal != 0 {
		out.SipAmount = models.Float(sipTotal)
	}
	out.MemberIDs = ids
	return out
}

// weighted returns the quantity-weighted mean of a baseline, counting absent
// member baselines as zero. It is nil when no member has the baseline.
func weighted(group []models.Holding, qty []float64, totalQty float64, get func(models.Holding) *float64) *float64 {
	vals := make([]float64, len(group))
	found := false
	for i, h := range group {
		if p := get(h); p != nil {
			vals[i] = *p
			found = true
		}
	}
	if !found {
		return nil
	}
	return models.Float(floats.Dot(vals, qty) / totalQty)
}

func parseStamp(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(models.DateLayout, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// dateBefore reports a < b for dates or RFC 3339 stamps. Unparseable values
// never compare before anything.
func dateBefore(a, b string) bool {
	ta, okA := parseStamp(a)
	tb, okB := parseStamp(b)
	if !okA {
		return false
	}
	if !okB {
		return true
	}
	return ta.Before(tb)
}
