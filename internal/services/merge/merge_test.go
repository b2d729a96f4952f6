package merge

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/models"
)

func stock(id, symbol string, qty, invested, current float64, date string) models.Holding {
	return models.Holding{
		ID: id, Name: symbol, Type: models.AssetStocks, TrackingSymbol: symbol,
		Quantity: qty, InvestedAmount: invested, CurrentValue: current,
		PurchasePrice: invested / qty, PurchaseDate: date,
		LastUpdated: date + "T10:00:00Z",
	}
}

func TestHoldings_SameSymbol(t *testing.T) {
	a := stock("a", "TCS.NS", 10, 1000, 1200, "2023-05-01")
	b := stock("b", "TCS.NS", 5, 600, 650, "2022-01-15")
	a.PriceStartOfMonth = models.Float(100)
	b.PriceStartOfMonth = models.Float(130)

	out := Holdings([]models.Holding{a, b})
	require.Len(t, out, 1)
	m := out[0]

	assert.Equal(t, 15.0, m.Quantity)
	assert.Equal(t, 1600.0, m.InvestedAmount)
	assert.Equal(t, 1850.0, m.CurrentValue)
	assert.Equal(t, 106.67, common.Round2(m.PurchasePrice))
	assert.Equal(t, "2022-01-15", m.PurchaseDate)
	assert.Equal(t, "2023-05-01T10:00:00Z", m.LastUpdated)
	assert.InDelta(t, 110.0, *m.PriceStartOfMonth, 1e-9)
	assert.Nil(t, m.PriceStartOfDay)
	assert.Equal(t, []string{"a", "b"}, m.MemberIDs)
	assert.Equal(t, "a", m.ID)
}

func TestHoldings_MissingBaselineCountsAsZero(t *testing.T) {
	a := stock("a", "X", 10, 1000, 1000, "2023-01-01")
	b := stock("b", "X", 10, 1000, 1000, "2023-01-01")
	a.PriceStartOfDay = models.Float(100)

	out := Holdings([]models.Holding{a, b})
	require.Len(t, out, 1)
	assert.InDelta(t, 50.0, *out[0].PriceStartOfDay, 1e-9)
}

func TestHoldings_KeyByNameWhenNoSymbol(t *testing.T) {
	a := models.Holding{ID: "a", Name: "Axis Bluechip", Type: models.AssetMutualFunds, Quantity: 1, InvestedAmount: 10}
	b := models.Holding{ID: "b", Name: "axis bluechip", Type: models.AssetMutualFunds, Quantity: 1, InvestedAmount: 20}
	c := models.Holding{ID: "c", Name: "Axis Bluechip", Type: models.AssetStocks, Quantity: 1, InvestedAmount: 30}

	out := Holdings([]models.Holding{a, b, c})
	require.Len(t, out, 2)
	assert.Equal(t, []string{"a", "b"}, out[0].MemberIDs)
	assert.Equal(t, []string{"c"}, out[1].MemberIDs)
}

func TestHoldings_NonMarketableNeverMerge(t *testing.T) {
	g1 := models.Holding{ID: "g1", Name: "Gold", Type: models.AssetGold, Quantity: 2}
	g2 := models.Holding{ID: "g2", Name: "Gold", Type: models.AssetGold, Quantity: 3}
	fd := models.Holding{ID: "fd", Name: "Gold", Type: models.AssetFixedDeposit, Quantity: 1}

	out := Holdings([]models.Holding{g1, g2, fd})
	require.Len(t, out, 3)
	assert.Equal(t, 2.0, out[0].Quantity)
	assert.Equal(t, []string{"fd"}, out[2].MemberIDs)
}

func TestHoldings_SingleMemberUnchanged(t *testing.T) {
	a := stock("a", "INFY.NS", 3, 100, 120, "2023-01-01")
	a.PurchasePrice = 40 // deliberately not invested/qty

	out := Holdings([]models.Holding{a})
	require.Len(t, out, 1)
	assert.Equal(t, 40.0, out[0].PurchasePrice)
	assert.Equal(t, []string{"a"}, out[0].MemberIDs)
}

func TestHoldings_SipFlagsAndAmounts(t *testing.T) {
	a := models.Holding{ID: "a", Type: models.AssetMutualFunds, TrackingSymbol: "119551", Quantity: 1, IsSip: true, SipAmount: models.Float(500)}
	b := models.Holding{ID: "b", Type: models.AssetMutualFunds, TrackingSymbol: "119551", Quantity: 1, SipAmount: models.Float(1500)}
	c := models.Holding{ID: "c", Type: models.AssetMutualFunds, TrackingSymbol: "100001", Quantity: 1}
	d := models.Holding{ID: "d", Type: models.AssetMutualFunds, TrackingSymbol: "100001", Quantity: 1}

	out := Holdings([]models.Holding{a, b, c, d})
	require.Len(t, out, 2)
	assert.True(t, out[0].IsSip)
	assert.Equal(t, 2000.0, *out[0].SipAmount)
	assert.False(t, out[1].IsSip)
	assert.Nil(t, out[1].SipAmount)
}

func TestHoldings_Idempotent(t *testing.T) {
	raw := []models.Holding{
		stock("a", "TCS.NS", 10, 1000, 1200, "2023-05-01"),
		stock("b", "INFY.NS", 4, 400, 420, "2023-02-01"),
		stock("c", "TCS.NS", 5, 600, 650, "2022-01-15"),
		stock("d", "TCS.NS", 1, 90, 130, "2024-01-15"),
		{ID: "e", Type: models.AssetGold, Quantity: 2, InvestedAmount: 12000, CurrentValue: 13000},
	}
	raw[0].PriceStartOfDay = models.Float(118)
	raw[2].PriceStartOfDay = models.Float(128)

	once := Holdings(raw)
	twice := Holdings(once)
	require.Len(t, twice, len(once))

	for i := range once {
		sort.Strings(once[i].MemberIDs)
		sort.Strings(twice[i].MemberIDs)
	}
	assert.Equal(t, once, twice)

	// Conservation of quantity and invested amount.
	var qty, invested float64
	for _, h := range raw {
		qty += h.Quantity
		invested += h.InvestedAmount
	}
	var mQty, mInvested float64
	for _, h := range once {
		mQty += h.Quantity
		mInvested += h.InvestedAmount
	}
	assert.InDelta(t, qty, mQty, 1e-9)
	assert.InDelta(t, invested, mInvested, 1e-9)
}

func TestHoldings_DoesNotAliasInput(t *testing.T) {
	a := stock("a", "X", 1, 10, 10, "2023-01-01")
	a.PriceStartOfDay = models.Float(9)
	out := Holdings([]models.Holding{a})
	*out[0].PriceStartOfDay = 1
	assert.Equal(t, 9.0, *a.PriceStartOfDay)
}
