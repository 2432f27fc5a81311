package tariff

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
)

// ErrInvalidTable is returned when a slab table breaks the ordering or
// contiguity rules.
var ErrInvalidTable = errors.New("invalid tariff table")

// Slab is one consumption tier. Bounds are inclusive kWh values; Upper is
// +Inf for the open-ended last slab.
type Slab struct {
	Lower       float64
	Upper       float64
	Rate        float64
	FixedCharge float64
}

// MarshalJSON encodes an unbounded upper limit as null.
func (s Slab) MarshalJSON() ([]byte, error) {
	var upper *float64
	if !s.Unbounded() {
		u := s.Upper
		upper = &u
	}
	return json.Marshal(struct {
		Lower       float64  `json:"lower_kwh"`
		Upper       *float64 `json:"upper_kwh"`
		Rate        float64  `json:"rate_per_unit"`
		FixedCharge float64  `json:"fixed_charge"`
		Label       string   `json:"label"`
	}{s.Lower, upper, s.Rate, s.FixedCharge, s.Label()})
}

// Unbounded reports whether the slab has no upper limit.
func (s Slab) Unbounded() bool {
	return math.IsInf(s.Upper, 1)
}

// Label renders the slab bounds for display, e.g. "0-30 kWh" or "401+ kWh".
func (s Slab) Label() string {
	if s.Unbounded() {
		return formatKWh(s.Lower) + "+ kWh"
	}
	return formatKWh(s.Lower) + "-" + formatKWh(s.Upper) + " kWh"
}

func formatKWh(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Table is the ordered slab list for one category.
type Table struct {
	Category Category `json:"category"`
	Slabs    []Slab   `json:"slabs"`
}

// lookup returns the first slab whose upper bound covers units. Values below
// the first lower bound land in the first slab and anything no slab covers
// (NaN, or a table whose last slab is bounded) lands in the last one.
//
// Only the upper bound is checked. Fractional usage between two integer
// bounds, such as 30.5 kWh between 0-30 and 31-75, takes the next slab
// rather than the last-slab fallback a strict lower <= units <= upper match
// would give, so the rate never drops as usage grows.
func (t Table) lookup(units float64) Slab {
	for _, s := range t.Slabs {
		if units <= s.Upper {
			return s
		}
	}
	return t.Slabs[len(t.Slabs)-1]
}

// Bounded reports whether the last slab has a finite upper bound. Such a
// table still resolves every value through the last-slab fallback.
func (t Table) Bounded() bool {
	return len(t.Slabs) > 0 && !t.Slabs[len(t.Slabs)-1].Unbounded()
}

// Validate checks the slab ordering rules for a single table.
func (t Table) Validate() error {
	if !t.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidTable, t.Category)
	}
	if len(t.Slabs) == 0 {
		return fmt.Errorf("%w: %s has no slabs", ErrInvalidTable, t.Category)
	}
	if t.Slabs[0].Lower != 0 {
		return fmt.Errorf("%w: %s first slab starts at %v, want 0", ErrInvalidTable, t.Category, t.Slabs[0].Lower)
	}
	for i, s := range t.Slabs {
		if math.IsNaN(s.Lower) || math.IsNaN(s.Upper) || math.IsNaN(s.Rate) || math.IsNaN(s.FixedCharge) {
			return fmt.Errorf("%w: %s slab %d has NaN fields", ErrInvalidTable, t.Category, i)
		}
		if s.Rate < 0 || s.FixedCharge < 0 {
			return fmt.Errorf("%w: %s slab %s has negative rate or charge", ErrInvalidTable, t.Category, s.Label())
		}
		if s.Upper < s.Lower {
			return fmt.Errorf("%w: %s slab %d upper %v below lower %v", ErrInvalidTable, t.Category, i, s.Upper, s.Lower)
		}
		if s.Unbounded() && i != len(t.Slabs)-1 {
			return fmt.Errorf("%w: %s slab %s is unbounded but not last", ErrInvalidTable, t.Category, s.Label())
		}
		if i == 0 {
			continue
		}
		prev := t.Slabs[i-1]
		if s.Lower <= prev.Upper || s.Lower > prev.Upper+1 {
			return fmt.Errorf("%w: %s slab %s does not follow %s", ErrInvalidTable, t.Category, s.Label(), prev.Label())
		}
		if s.Rate < prev.Rate {
			return fmt.Errorf("%w: %s rate drops from %v to %v at %s", ErrInvalidTable, t.Category, prev.Rate, s.Rate, s.Label())
		}
	}
	return nil
}

func (t Table) clone() Table {
	out := Table{Category: t.Category, Slabs: make([]Slab, len(t.Slabs))}
	copy(out.Slabs, t.Slabs)
	return out
}

// Tables holds one validated table per category. It is read-only once built;
// accessors hand out copies.
type Tables struct {
	byCategory map[Category]Table
}

// NewTables validates and freezes the given tables. Every category must be
// present exactly once.
func NewTables(tables ...Table) (*Tables, error) {
	out := &Tables{byCategory: make(map[Category]Table, len(tables))}
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := out.byCategory[t.Category]; dup {
			return nil, fmt.Errorf("%w: duplicate table for %s", ErrInvalidTable, t.Category)
		}
		out.byCategory[t.Category] = t.clone()
	}
	for _, c := range Categories() {
		if _, ok := out.byCategory[c]; !ok {
			return nil, fmt.Errorf("%w: missing table for %s", ErrInvalidTable, c)
		}
	}
	return out, nil
}

// Table returns a copy of the table for c. Unknown categories get the
// residential table.
func (t *Tables) Table(c Category) Table {
	return t.table(c).clone()
}

// All returns copies of every table in category order.
func (t *Tables) All() []Table {
	out := make([]Table, 0, len(t.byCategory))
	for _, c := range Categories() {
		out = append(out, t.Table(c))
	}
	return out
}

func (t *Tables) table(c Category) Table {
	if tbl, ok := t.byCategory[c]; ok {
		return tbl
	}
	return t.byCategory[CategoryResidential]
}

var (
	defaultOnce   sync.Once
	defaultTables *Tables
)

// DefaultTables returns the built-in LT-I and LT-II tables, built once per
// process.
func DefaultTables() *Tables {
	defaultOnce.Do(func() {
		t, err := NewTables(residentialTable(), commercialTable())
		if err != nil {
			panic(fmt.Sprintf("tariff: built-in tables invalid: %v", err))
		}
		defaultTables = t
	})
	return defaultTables
}

func residentialTable() Table {
	return Table{
		Category: CategoryResidential,
		Slabs: []Slab{
			{Lower: 0, Upper: 30, Rate: 1.90, FixedCharge: 25},
			{Lower: 31, Upper: 75, Rate: 3.00, FixedCharge: 30},
			{Lower: 76, Upper: 125, Rate: 4.50, FixedCharge: 45},
			{Lower: 126, Upper: 225, Rate: 6.00, FixedCharge: 50},
			{Lower: 226, Upper: 400, Rate: 8.75, FixedCharge: 55},
			{Lower: 401, Upper: math.Inf(1), Rate: 9.75, FixedCharge: 55},
		},
	}
}

func commercialTable() Table {
	return Table{
		Category: CategoryCommercial,
		Slabs: []Slab{
			{Lower: 0, Upper: 50, Rate: 5.40, FixedCharge: 30},
			{Lower: 51, Upper: 100, Rate: 7.65, FixedCharge: 40},
			{Lower: 101, Upper: 300, Rate: 9.05, FixedCharge: 45},
			{Lower: 301, Upper: 500, Rate: 9.60, FixedCharge: 45},
			{Lower: 501, Upper: math.Inf(1), Rate: 10.15, FixedCharge: 45},
		},
	}
}
