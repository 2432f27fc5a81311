package tariff

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTables(t *testing.T) {
	res := DefaultTables().Table(CategoryResidential)
	require.Len(t, res.Slabs, 6)
	assert.Equal(t, "401+ kWh", res.Slabs[5].Label())

	com := DefaultTables().Table(CategoryCommercial)
	require.Len(t, com.Slabs, 5)
	assert.Equal(t, 10.15, com.Slabs[4].Rate)

	assert.Same(t, DefaultTables(), DefaultTables())
}

func TestTables_AccessorsReturnCopies(t *testing.T) {
	tbl := DefaultTables().Table(CategoryResidential)
	tbl.Slabs[0].Rate = 99

	assert.Equal(t, 1.90, DefaultTables().Table(CategoryResidential).Slabs[0].Rate)
	assert.Equal(t, 1.90, ResolveSlab(1, CategoryResidential).Rate)
}

func TestTableValidate(t *testing.T) {
	tests := []struct {
		name  string
		slabs []Slab
	}{
		{"empty", nil},
		{"starts above zero", []Slab{{Lower: 1, Upper: math.Inf(1), Rate: 1}}},
		{"gap", []Slab{{Lower: 0, Upper: 30, Rate: 1}, {Lower: 35, Upper: math.Inf(1), Rate: 2}}},
		{"overlap", []Slab{{Lower: 0, Upper: 30, Rate: 1}, {Lower: 30, Upper: math.Inf(1), Rate: 2}}},
		{"rate drops", []Slab{{Lower: 0, Upper: 30, Rate: 2}, {Lower: 31, Upper: math.Inf(1), Rate: 1}}},
		{"negative charge", []Slab{{Lower: 0, Upper: math.Inf(1), Rate: 1, FixedCharge: -1}}},
		{"unbounded in middle", []Slab{{Lower: 0, Upper: math.Inf(1), Rate: 1}, {Lower: 31, Upper: 40, Rate: 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Table{Category: CategoryResidential, Slabs: tt.slabs}.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidTable))
		})
	}

	assert.NoError(t, residentialTable().Validate())
	assert.NoError(t, commercialTable().Validate())
}

func TestNewTables_RequiresEveryCategory(t *testing.T) {
	_, err := NewTables(residentialTable())
	assert.ErrorIs(t, err, ErrInvalidTable)

	_, err = NewTables(residentialTable(), residentialTable(), commercialTable())
	assert.ErrorIs(t, err, ErrInvalidTable)
}

func TestParseTablesYAML(t *testing.T) {
	data := []byte(`
categories:
  residential:
    - {min: 0, max: 100, rate: 2.5, fixed_charge: 20}
    - {min: 101, rate: 5, fixed_charge: 40}
`)
	tables, err := ParseTablesYAML(data)
	require.NoError(t, err)

	res := tables.Table(CategoryResidential)
	require.Len(t, res.Slabs, 2)
	assert.True(t, res.Slabs[1].Unbounded())
	assert.Equal(t, "101+ kWh", res.Slabs[1].Label())

	// LT-II is not in the file and keeps the built-in table.
	assert.Equal(t, DefaultTables().Table(CategoryCommercial), tables.Table(CategoryCommercial))

	eng := NewEngine(tables)
	assert.Equal(t, 270.0, eng.ComputeCumulativeBill(100, CategoryResidential).TotalCost)
}

func TestParseTablesYAML_Errors(t *testing.T) {
	_, err := ParseTablesYAML([]byte(`categories: {}`))
	assert.ErrorIs(t, err, ErrInvalidTable)

	_, err = ParseTablesYAML([]byte(`categories: {industrial: [{min: 0, rate: 1}]}`))
	assert.ErrorIs(t, err, ErrInvalidTable)

	_, err = ParseTablesYAML([]byte("categories: [\n"))
	assert.Error(t, err)
}

func TestParseTablesText(t *testing.T) {
	sample := `RETAIL SUPPLY TARIFF SCHEDULE
LT-I (Domestic)
Units (kWh)   Energy Rs/kWh   Customer Charge Rs/month
0 - 30        1.90            25
31 - 75       3.00            30
76 to 125     4.50            45
126-225       6.00            50
226 - 400     8.75            55
Above 400     9.75            55

LT-II Non-Domestic / Commercial
0 - 50        Rs. 5.40        Rs. 30
51 - 100      7.65            40
101 - 300     9.05            45
301 - 500     9.60            45
501 & above   10.15           45
`
	tables, err := ParseTablesText(sample)
	require.NoError(t, err)
	assert.Equal(t, DefaultTables().All(), tables.All())
}

func TestParseTablesText_NoRows(t *testing.T) {
	_, err := ParseTablesText("nothing to see here")
	assert.ErrorIs(t, err, ErrInvalidTable)
}

func TestLoadTablesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tariffs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
categories:
  LT-II:
    - {min: 0, max: 50, rate: 6, fixed_charge: 35}
    - {min: 51, rate: 8, fixed_charge: 45}
`), 0o600))

	tables, err := LoadTablesFile(path)
	require.NoError(t, err)
	assert.Equal(t, 6.0, tables.Table(CategoryCommercial).Slabs[0].Rate)

	_, err = LoadTablesFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestParseCategory(t *testing.T) {
	for _, in := range []string{"LT-I", "lt1", "Residential", "home", "A"} {
		c, err := ParseCategory(in)
		require.NoError(t, err, in)
		assert.Equal(t, CategoryResidential, c)
	}
	for _, in := range []string{"LT-II", "commercial", "Office", "b"} {
		c, err := ParseCategory(in)
		require.NoError(t, err, in)
		assert.Equal(t, CategoryCommercial, c)
	}
	_, err := ParseCategory("industrial")
	assert.Error(t, err)
}
