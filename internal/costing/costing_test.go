package costing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoscapeAi/internal/design"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{name: "plain dollars", raw: "$2,400", want: "2400", ok: true},
		{name: "bare number", raw: "1500", want: "1500", ok: true},
		{name: "decimal value", raw: "$12.50", want: "12.5", ok: true},
		{name: "range uses midpoint", raw: "$10 - $20", want: "15", ok: true},
		{name: "en dash range", raw: "$5,000–$10,000", want: "7500", ok: true},
		{name: "open-ended plus", raw: "$800+", want: "800", ok: true},
		{name: "embedded prose", raw: "around $350 installed", want: "350", ok: true},
		{name: "no digits", raw: "varies by region", want: "0", ok: false},
		{name: "empty string", raw: "", want: "0", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseAmount(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		low, high string
		ok        bool
	}{
		{name: "hyphen range", raw: "$10 - $20", low: "10", high: "20", ok: true},
		{name: "to keyword", raw: "5000 to 10000", low: "5000", high: "10000", ok: true},
		{name: "single amount", raw: "$800+", low: "800", high: "800", ok: true},
		{name: "inverted pair collapses", raw: "$20 - $10", low: "20", high: "20", ok: true},
		{name: "two numbers without separator", raw: "3 plants at $50", low: "3", high: "3", ok: true},
		{name: "no digits", raw: "cheap", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			low, high, ok := ParseRange(tt.raw)
			require.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.True(t, low.Equal(decimal.RequireFromString(tt.low)), "low %s", low)
			assert.True(t, high.Equal(decimal.RequireFromString(tt.high)), "high %s", high)
		})
	}
}

func TestReconcileModelTotalWins(t *testing.T) {
	estimate := Reconcile(RawEstimate{
		TotalCost: 12500,
		Materials: []design.MaterialLineItem{
			{Name: "Flagstone patio", TotalCost: "$4,000", Category: design.CategoryHardscape},
			{Name: "Labor & Installation", TotalCost: "$3,000", Category: design.CategoryLabor},
		},
	})

	assert.Equal(t, 12500.0, estimate.TotalCost)
	assert.Equal(t, "USD", estimate.Currency)
	assert.Len(t, estimate.Breakdown, 2)
}

func TestReconcileSumsBreakdownWhenTotalMissing(t *testing.T) {
	estimate := Reconcile(RawEstimate{
		Materials: []design.MaterialLineItem{
			{Name: "Lavender", TotalCost: "$150", Category: design.CategoryPlants},
			{Name: "Gravel path", TotalCost: "$1,200", Category: design.CategoryHardscape},
			{Name: "Labor", TotalCost: "$500", Category: design.CategoryLabor},
		},
	})

	assert.Equal(t, 1850.0, estimate.TotalCost)
}

func TestReconcileKeepsModelBreakdownUnamended(t *testing.T) {
	estimate := Reconcile(RawEstimate{
		Materials: []design.MaterialLineItem{
			{Name: "Boxwood hedge", TotalCost: "$100", Category: design.CategoryPlants},
			{Name: "Stone edging", TotalCost: "$50", Category: design.CategoryHardscape},
		},
	})

	// No line items beyond what the model reported, even without a labor
	// entry; the total is exactly the sum of the reported items.
	require.Len(t, estimate.Breakdown, 2)
	assert.Equal(t, "Boxwood hedge", estimate.Breakdown[0].Name)
	assert.Equal(t, "Stone edging", estimate.Breakdown[1].Name)
	for _, item := range estimate.Breakdown {
		assert.NotEqual(t, design.CategoryLabor, item.Category)
	}
	assert.Equal(t, 150.0, estimate.TotalCost)
}

func TestReconcileSynthesizesFromCategoryArrays(t *testing.T) {
	estimate := Reconcile(RawEstimate{
		Plants:    []string{"Japanese maple", "Hostas"},
		Hardscape: []string{"Paver patio"},
	})

	// Two plants, one hardscape, one labor line.
	require.Len(t, estimate.Breakdown, 4)
	assert.Equal(t, design.CategoryLabor, estimate.Breakdown[3].Category)
	// 2*50 + 1200 + 5000
	assert.Equal(t, 6300.0, estimate.TotalCost)
}

func TestReconcileEmptyEverythingUsesDefault(t *testing.T) {
	estimate := Reconcile(RawEstimate{})

	assert.Equal(t, float64(DefaultTotal), estimate.TotalCost)
	require.Len(t, estimate.Breakdown, 1)
	assert.Equal(t, design.CategoryLabor, estimate.Breakdown[0].Category)
}

func TestCheckBudget(t *testing.T) {
	tests := []struct {
		name     string
		total    float64
		budget   string
		wantNote bool
	}{
		{name: "within budget", total: 8000, budget: "$10,000", wantNote: false},
		{name: "over budget", total: 18000, budget: "$10,000", wantNote: true},
		{name: "over range upper bound", total: 12000, budget: "$5,000 - $10,000", wantNote: true},
		{name: "within range", total: 9000, budget: "$5,000 - $10,000", wantNote: false},
		{name: "unparseable budget", total: 50000, budget: "flexible", wantNote: false},
		{name: "empty budget", total: 50000, budget: "", wantNote: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			note, over := CheckBudget(tt.total, tt.budget)
			assert.Equal(t, tt.wantNote, over)
			assert.Equal(t, tt.wantNote, note != "")
		})
	}
}

func TestCheckBudgetNoteNamesOverage(t *testing.T) {
	note, over := CheckBudget(12000, "$10,000")
	require.True(t, over)
	assert.Contains(t, note, "$2000")
	assert.Contains(t, note, "$10,000")
}
