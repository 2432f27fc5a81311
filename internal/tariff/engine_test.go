package tariff

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeUnits(t *testing.T) {
	tests := []struct {
		name                  string
		power, hours, minutes float64
		want                  float64
	}{
		{"ac two hours", 1500, 2, 0, 3.000},
		{"heater full day", 2000, 24, 0, 48.000},
		{"led ten minutes", 10, 0, 10, 0.002},
		{"fan ninety minutes", 75, 1, 30, 0.113},
		{"rounds half up", 1, 0, 30, 0.001}, // 0.0005 kWh
		{"zero duration", 1500, 0, 0, 0},
		{"minutes past an hour", 60, 0, 90, 0.09},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeUnits(tt.power, tt.hours, tt.minutes))
		})
	}
}

func TestComputeUnits_PassesThroughInvalidInput(t *testing.T) {
	assert.Equal(t, -3.0, ComputeUnits(-1500, 2, 0))
	assert.True(t, math.IsNaN(ComputeUnits(math.NaN(), 1, 0)))
	assert.True(t, math.IsNaN(ComputeUnits(100, math.Inf(1), 0)))
}

func TestComputeBill_Scenarios(t *testing.T) {
	t.Run("residential ac", func(t *testing.T) {
		got := ComputeBill(1500, 2, 0, CategoryResidential)
		assert.Equal(t, BillBreakdown{
			Units:       3.000,
			RatePerUnit: 1.90,
			EnergyCost:  5.70,
			FixedCharge: 25,
			TotalCost:   30.70,
		}, got)
	})

	t.Run("commercial heater full day", func(t *testing.T) {
		got := ComputeBill(2000, 24, 0, CategoryCommercial)
		assert.Equal(t, BillBreakdown{
			Units:       48.000,
			RatePerUnit: 5.40,
			EnergyCost:  259.20,
			FixedCharge: 30,
			TotalCost:   289.20,
		}, got)
	})
}

func TestComputeBill_TotalIsRoundedSum(t *testing.T) {
	for _, c := range Categories() {
		for power := 10.0; power <= 2500; power += 137 {
			for hours := 0.0; hours <= 300; hours += 23 {
				for _, minutes := range []float64{0, 7, 29, 59} {
					b := ComputeBill(power, hours, minutes, c)
					require.Equal(t, RoundMoney(b.EnergyCost+b.FixedCharge), b.TotalCost,
						"power=%v hours=%v minutes=%v category=%s", power, hours, minutes, c)
					require.Equal(t, RoundMoney(b.EnergyCost), b.EnergyCost)
				}
			}
		}
	}
}

func TestComputeBill_Idempotent(t *testing.T) {
	first := ComputeBill(1234, 5, 17, CategoryCommercial)
	second := ComputeBill(1234, 5, 17, CategoryCommercial)
	assert.Equal(t, math.Float64bits(first.TotalCost), math.Float64bits(second.TotalCost))
	assert.Equal(t, first, second)
	assert.Equal(t, math.Float64bits(ComputeUnits(777, 3, 3)), math.Float64bits(ComputeUnits(777, 3, 3)))
}

func TestResolveSlab_ContainsUnits(t *testing.T) {
	for _, c := range Categories() {
		tbl := DefaultTables().Table(c)
		for units := 0.0; units <= 1200; units += 0.25 {
			s := ResolveSlab(units, c)
			require.LessOrEqual(t, units, s.Upper, "units=%v category=%s", units, c)

			// The slab either contains units outright or units sits in the
			// fractional gap just below its lower bound.
			if units < s.Lower {
				require.Greater(t, units, s.Lower-1, "units=%v category=%s slab=%s", units, c, s.Label())
			}

			matches := 0
			for _, candidate := range tbl.Slabs {
				if units >= candidate.Lower && units <= candidate.Upper {
					matches++
				}
			}
			require.LessOrEqual(t, matches, 1)
		}
	}
}

func TestResolveSlab_RateIsMonotonic(t *testing.T) {
	for _, c := range Categories() {
		prev := -1.0
		for units := 0.0; units <= 1000; units += 0.5 {
			rate := ResolveSlab(units, c).Rate
			require.GreaterOrEqual(t, rate, prev, "units=%v category=%s", units, c)
			prev = rate
		}
	}
}

func TestResolveSlab_Boundaries(t *testing.T) {
	tests := []struct {
		units    float64
		category Category
		rate     float64
		label    string
	}{
		{0, CategoryResidential, 1.90, "0-30 kWh"},
		{30.000, CategoryResidential, 1.90, "0-30 kWh"},
		{30.5, CategoryResidential, 3.00, "31-75 kWh"},
		{31, CategoryResidential, 3.00, "31-75 kWh"},
		{400, CategoryResidential, 8.75, "226-400 kWh"},
		{401, CategoryResidential, 9.75, "401+ kWh"},
		{1e9, CategoryResidential, 9.75, "401+ kWh"},
		{50, CategoryCommercial, 5.40, "0-50 kWh"},
		{50.001, CategoryCommercial, 7.65, "51-100 kWh"},
		{501, CategoryCommercial, 10.15, "501+ kWh"},
	}
	for _, tt := range tests {
		s, label := DefaultEngine().Lookup(tt.units, tt.category)
		assert.Equal(t, tt.rate, s.Rate, "units=%v category=%s", tt.units, tt.category)
		assert.Equal(t, tt.label, label)
		assert.Equal(t, label, LabelForSlab(tt.units, tt.category))
	}
}

func TestResolveSlab_FallsBackToLastSlab(t *testing.T) {
	bounded, err := NewTables(
		Table{Category: CategoryResidential, Slabs: []Slab{
			{Lower: 0, Upper: 10, Rate: 1, FixedCharge: 5},
			{Lower: 11, Upper: 20, Rate: 2, FixedCharge: 6},
		}},
		commercialTable(),
	)
	require.NoError(t, err)
	require.True(t, bounded.Table(CategoryResidential).Bounded())

	eng := NewEngine(bounded)
	assert.Equal(t, 2.0, eng.ResolveSlab(500, CategoryResidential).Rate)
	assert.Equal(t, 2.0, eng.ResolveSlab(math.NaN(), CategoryResidential).Rate)
}

func TestResolveSlab_UnknownCategoryUsesResidential(t *testing.T) {
	assert.Equal(t, 1.90, ResolveSlab(10, Category("LT-IX")).Rate)
}

func TestComputeCumulativeBill(t *testing.T) {
	t.Run("no saved events", func(t *testing.T) {
		assert.Equal(t, CumulativeBill{
			TotalUnits:  0,
			SlabLabel:   "0-30 kWh",
			RatePerUnit: 1.90,
			EnergyCost:  0,
			FixedCharge: 25,
			TotalCost:   25,
		}, ComputeCumulativeBill(0, CategoryResidential))
	})

	t.Run("residential above 400", func(t *testing.T) {
		assert.Equal(t, CumulativeBill{
			TotalUnits:  450,
			SlabLabel:   "401+ kWh",
			RatePerUnit: 9.75,
			EnergyCost:  4387.50,
			FixedCharge: 55,
			TotalCost:   4442.50,
		}, ComputeCumulativeBill(450.000, CategoryResidential))
	})

	t.Run("commercial zero", func(t *testing.T) {
		got := ComputeCumulativeBill(0, CategoryCommercial)
		assert.Equal(t, "0-50 kWh", got.SlabLabel)
		assert.Equal(t, 30.0, got.TotalCost)
	})
}

func TestSumUnits(t *testing.T) {
	assert.Equal(t, 0.3, SumUnits(0.1, 0.2))
	assert.Equal(t, 0.0, SumUnits())
	assert.Equal(t, 51.002, SumUnits(3, 48, 0.002))
}

func TestSlabJSON(t *testing.T) {
	data, err := ResolveSlab(500, CategoryResidential).MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"lower_kwh":401,"upper_kwh":null,"rate_per_unit":9.75,"fixed_charge":55,"label":"401+ kWh"}`, string(data))
}
