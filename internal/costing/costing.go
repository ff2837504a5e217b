// Package costing turns untrusted, string-typed model pricing into a stable
// cost estimate. The model gateway emits currency amounts as natural-language
// strings ("$2,400", "$10 - $20", "$800+"); everything here parses those
// defensively and reconciles them into a positive total.
package costing

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"autoscapeAi/internal/design"
)

// DefaultTotal is the placeholder estimate substituted when neither the
// model's reported total nor the breakdown yields a usable number. A visibly
// broken $0 estimate is worse than a generic one.
const DefaultTotal = 15000

// Fallback unit rates used when the model returns bare category arrays
// instead of priced materials.
const (
	plantUnitRate        = 50
	hardscapeSqftRate    = 12
	hardscapeDefaultSqft = 100
	featureUnitRate      = 200
	structureUnitRate    = 500
	furnitureUnitRate    = 150
	fallbackLaborCost    = 5000
)

var numberPattern = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// ParseAmount extracts a single numeric value from a currency-ish string.
// The stripping rule: take the first numeric token, discard thousands
// separators, keep the decimal point. Ranges resolve to their midpoint.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	low, high, ok := ParseRange(raw)
	if !ok {
		return decimal.Zero, false
	}
	if low.Equal(high) {
		return high, true
	}
	return low.Add(high).Div(decimal.NewFromInt(2)), true
}

// ParseRange extracts a low/high pair from strings like "$10 - $20",
// "$5,000–$10,000" or "$800+". Single amounts return an equal pair.
func ParseRange(raw string) (low, high decimal.Decimal, ok bool) {
	tokens := numberPattern.FindAllString(raw, 2)
	if len(tokens) == 0 {
		return decimal.Zero, decimal.Zero, false
	}

	first, err := decimal.NewFromString(strings.ReplaceAll(tokens[0], ",", ""))
	if err != nil {
		return decimal.Zero, decimal.Zero, false
	}

	separated := strings.ContainsAny(raw, "-–—") || strings.Contains(strings.ToLower(raw), " to ")
	if len(tokens) == 2 && separated {
		second, err := decimal.NewFromString(strings.ReplaceAll(tokens[1], ",", ""))
		if err == nil && second.GreaterThanOrEqual(first) {
			return first, second, true
		}
	}
	return first, first, true
}

// RawEstimate is the shape the cost analyst decodes from model output before
// reconciliation. Category arrays are the last-resort degradation inputs.
type RawEstimate struct {
	CurrentLayout     string                    `json:"currentLayout"`
	DesignConcept     string                    `json:"designConcept"`
	VisualDescription string                    `json:"visualDescription"`
	MaintenanceLevel  string                    `json:"maintenanceLevel"`
	TotalCost         float64                   `json:"totalCost"`
	Materials         []design.MaterialLineItem `json:"materials"`
	Plants            []string                  `json:"plants"`
	Hardscape         []string                  `json:"hardscape"`
	Features          []string                  `json:"features"`
	Structures        []string                  `json:"structures"`
	Furniture         []string                  `json:"furniture"`
}

// Reconcile applies the multi-tier total/breakdown policy:
//  1. a positive model-reported totalCost wins;
//  2. otherwise the parsed per-item totals are summed;
//  3. otherwise DefaultTotal is substituted.
//
// An empty materials array is synthesized from whatever category arrays are
// present, priced by the fixed unit-rate table plus a fixed labor line.
func Reconcile(raw RawEstimate) design.CostEstimate {
	// A model-supplied breakdown is taken as-is; labor inclusion is the
	// estimator prompt's job, and amending the list would make the summed
	// total disagree with the items shown to the user.
	breakdown := raw.Materials
	bareFallback := false
	if len(breakdown) == 0 {
		breakdown = synthesizeBreakdown(raw)
		// Only the fixed labor line means the model gave us nothing to price.
		bareFallback = len(breakdown) == 1
	}

	total := decimal.NewFromFloat(raw.TotalCost)
	if total.LessThanOrEqual(decimal.Zero) && !bareFallback {
		total = SumBreakdown(breakdown)
	}
	if total.LessThanOrEqual(decimal.Zero) {
		total = decimal.NewFromInt(DefaultTotal)
	}

	totalValue, _ := total.Round(2).Float64()
	return design.CostEstimate{
		TotalCost: totalValue,
		Currency:  "USD",
		Breakdown: breakdown,
	}
}

// SumBreakdown adds up the parseable per-item totals.
func SumBreakdown(items []design.MaterialLineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		if amount, ok := ParseAmount(item.TotalCost); ok {
			sum = sum.Add(amount)
		}
	}
	return sum
}

// CheckBudget compares a reconciled total against an unstructured budget
// string and returns a cost-saving note when the total exceeds the budget's
// upper bound. Line items are never truncated.
func CheckBudget(total float64, budget string) (string, bool) {
	_, high, ok := ParseRange(budget)
	if !ok || high.LessThanOrEqual(decimal.Zero) {
		return "", false
	}
	totalDec := decimal.NewFromFloat(total)
	if totalDec.LessThanOrEqual(high) {
		return "", false
	}
	over := totalDec.Sub(high).Round(0)
	return fmt.Sprintf("Estimated total exceeds the stated budget of %s by about $%s. Consider smaller container sizes, phased installation, or swapping premium hardscape for gravel.", strings.TrimSpace(budget), over.StringFixed(0)), true
}

func synthesizeBreakdown(raw RawEstimate) []design.MaterialLineItem {
	var items []design.MaterialLineItem

	for _, name := range raw.Plants {
		items = append(items, unitLine(name, design.CategoryPlants, "1", plantUnitRate))
	}
	for _, name := range raw.Hardscape {
		items = append(items, design.MaterialLineItem{
			Name:      name,
			Quantity:  fmt.Sprintf("%d sqft", hardscapeDefaultSqft),
			UnitCost:  fmt.Sprintf("$%d/sqft", hardscapeSqftRate),
			TotalCost: dollars(hardscapeSqftRate * hardscapeDefaultSqft),
			Notes:     "estimated from standard coverage",
			Category:  design.CategoryHardscape,
		})
	}
	for _, name := range raw.Features {
		items = append(items, unitLine(name, design.CategoryFeatures, "1", featureUnitRate))
	}
	for _, name := range raw.Structures {
		items = append(items, unitLine(name, design.CategoryStructures, "1", structureUnitRate))
	}
	for _, name := range raw.Furniture {
		items = append(items, unitLine(name, design.CategoryFurniture, "1", furnitureUnitRate))
	}

	items = append(items, design.MaterialLineItem{
		Name:      "Labor & Installation",
		Quantity:  "1",
		UnitCost:  dollars(fallbackLaborCost),
		TotalCost: dollars(fallbackLaborCost),
		Notes:     "flat estimate",
		Category:  design.CategoryLabor,
	})
	return items
}

func unitLine(name, category, quantity string, rate int) design.MaterialLineItem {
	return design.MaterialLineItem{
		Name:      name,
		Quantity:  quantity,
		UnitCost:  dollars(rate),
		TotalCost: dollars(rate),
		Notes:     "estimated unit rate",
		Category:  category,
	}
}

func dollars(v int) string {
	return "$" + decimal.NewFromInt(int64(v)).StringFixed(0)
}
