// Package tariff converts appliance usage into kWh and prices it against the
// progressive LT-I / LT-II slab tables.
//
// Everything here is a pure function of its inputs and an immutable *Tables,
// so an Engine may be shared by any number of goroutines.
package tariff

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	unitPlaces  = 3
	moneyPlaces = 2
)

// BillBreakdown is the cost of a single usage event.
type BillBreakdown struct {
	Units       float64 `json:"units"`
	RatePerUnit float64 `json:"rate_per_unit"`
	EnergyCost  float64 `json:"energy_cost"`
	FixedCharge float64 `json:"fixed_charge"`
	TotalCost   float64 `json:"total_cost"`
}

// CumulativeBill prices a consumer's total consumption across all saved
// usage events.
type CumulativeBill struct {
	TotalUnits  float64 `json:"total_units"`
	SlabLabel   string  `json:"slab_label"`
	RatePerUnit float64 `json:"rate_per_unit"`
	EnergyCost  float64 `json:"energy_cost"`
	FixedCharge float64 `json:"fixed_charge"`
	TotalCost   float64 `json:"total_cost"`
}

// Engine prices usage against a fixed set of tables.
type Engine struct {
	tables *Tables
}

// NewEngine returns an Engine over t. A nil t means the built-in tables.
func NewEngine(t *Tables) *Engine {
	if t == nil {
		t = DefaultTables()
	}
	return &Engine{tables: t}
}

var defaultEngine = &Engine{}

// DefaultEngine prices against DefaultTables.
func DefaultEngine() *Engine {
	return defaultEngine
}

// Tables exposes the engine's (read-only) tables.
func (e *Engine) Tables() *Tables {
	if e.tables == nil {
		return DefaultTables()
	}
	return e.tables
}

// ComputeUnits converts a power draw and duration into kWh rounded to three
// decimals. Inputs are not validated: negative values give negative units and
// non-finite values give NaN.
func ComputeUnits(powerWatts, hours, minutes float64) float64 {
	if !finite(powerWatts) || !finite(hours) || !finite(minutes) {
		return math.NaN()
	}
	totalMinutes := decimal.NewFromFloat(hours).Mul(decimal.NewFromInt(60)).Add(decimal.NewFromFloat(minutes))
	units := decimal.NewFromFloat(powerWatts).Mul(totalMinutes).Div(decimal.NewFromInt(60000))
	return units.Round(unitPlaces).InexactFloat64()
}

// Lookup resolves the slab for units in category together with its display
// label.
func (e *Engine) Lookup(units float64, category Category) (Slab, string) {
	s := e.Tables().table(category).lookup(units)
	return s, s.Label()
}

// ResolveSlab returns the slab whose bounds contain units.
func (e *Engine) ResolveSlab(units float64, category Category) Slab {
	s, _ := e.Lookup(units, category)
	return s
}

// LabelForSlab returns the display label of the slab containing units.
func (e *Engine) LabelForSlab(units float64, category Category) string {
	_, label := e.Lookup(units, category)
	return label
}

// ComputeBill prices one appliance usage event. Energy cost is rounded to
// two decimals before the fixed charge is added, and the sum is rounded
// again.
func (e *Engine) ComputeBill(powerWatts, hours, minutes float64, category Category) BillBreakdown {
	units := ComputeUnits(powerWatts, hours, minutes)
	slab := e.ResolveSlab(units, category)
	energy, total := price(units, slab)
	return BillBreakdown{
		Units:       units,
		RatePerUnit: slab.Rate,
		EnergyCost:  energy,
		FixedCharge: slab.FixedCharge,
		TotalCost:   total,
	}
}

// ComputeCumulativeBill prices the pre-summed units of all of a consumer's
// saved events. Zero units yields the lowest slab, so the bill is never less
// than its fixed charge.
func (e *Engine) ComputeCumulativeBill(totalUnits float64, category Category) CumulativeBill {
	slab, label := e.Lookup(totalUnits, category)
	energy, total := price(totalUnits, slab)
	return CumulativeBill{
		TotalUnits:  totalUnits,
		SlabLabel:   label,
		RatePerUnit: slab.Rate,
		EnergyCost:  energy,
		FixedCharge: slab.FixedCharge,
		TotalCost:   total,
	}
}

// price applies the two-stage rounding: round2(units*rate), then
// round2(energy+fixed).
func price(units float64, slab Slab) (energyCost, totalCost float64) {
	if !finite(units) {
		return math.NaN(), math.NaN()
	}
	energy := decimal.NewFromFloat(units).Mul(decimal.NewFromFloat(slab.Rate)).Round(moneyPlaces)
	total := energy.Add(decimal.NewFromFloat(slab.FixedCharge)).Round(moneyPlaces)
	return energy.InexactFloat64(), total.InexactFloat64()
}

// SumUnits adds per-event units without float drift.
func SumUnits(units ...float64) float64 {
	sum := decimal.Zero
	for _, u := range units {
		if !finite(u) {
			return math.NaN()
		}
		sum = sum.Add(decimal.NewFromFloat(u))
	}
	return sum.Round(unitPlaces).InexactFloat64()
}

// RoundMoney rounds v to two decimals, half away from zero.
func RoundMoney(v float64) float64 {
	if !finite(v) {
		return v
	}
	return decimal.NewFromFloat(v).Round(moneyPlaces).InexactFloat64()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ComputeBill prices a usage event against the built-in tables.
func ComputeBill(powerWatts, hours, minutes float64, category Category) BillBreakdown {
	return DefaultEngine().ComputeBill(powerWatts, hours, minutes, category)
}

// ComputeCumulativeBill prices total units against the built-in tables.
func ComputeCumulativeBill(totalUnits float64, category Category) CumulativeBill {
	return DefaultEngine().ComputeCumulativeBill(totalUnits, category)
}

// ResolveSlab resolves against the built-in tables.
func ResolveSlab(units float64, category Category) Slab {
	return DefaultEngine().ResolveSlab(units, category)
}

// LabelForSlab resolves a label against the built-in tables.
func LabelForSlab(units float64, category Category) string {
	return DefaultEngine().LabelForSlab(units, category)
}
