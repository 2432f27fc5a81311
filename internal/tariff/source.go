package tariff

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	pdf "github.com/ledongthuc/pdf"
	"gopkg.in/yaml.v3"
)

type fileSlab struct {
	Min         float64  `yaml:"min"`
	Max         *float64 `yaml:"max"`
	Rate        float64  `yaml:"rate"`
	FixedCharge float64  `yaml:"fixed_charge"`
}

type tablesFile struct {
	Categories map[string][]fileSlab `yaml:"categories"`
}

// LoadTablesFile builds tables from a YAML override file or a published
// tariff schedule PDF, chosen by extension. Categories the source does not
// mention keep their built-in table.
func LoadTablesFile(path string) (*Tables, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return ParseTablesPDF(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tariff file: %w", err)
	}
	return ParseTablesYAML(data)
}

// ParseTablesYAML decodes the categories -> slab list format. A slab without
// max is open-ended.
func ParseTablesYAML(data []byte) (*Tables, error) {
	var f tablesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tariff yaml: %w", err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("%w: no categories in tariff file", ErrInvalidTable)
	}

	parsed := make(map[Category][]Slab, len(f.Categories))
	for key, rows := range f.Categories {
		c, err := ParseCategory(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
		}
		if _, dup := parsed[c]; dup {
			return nil, fmt.Errorf("%w: %s listed twice", ErrInvalidTable, c)
		}
		slabs := make([]Slab, 0, len(rows))
		for _, r := range rows {
			upper := math.Inf(1)
			if r.Max != nil {
				upper = *r.Max
			}
			slabs = append(slabs, Slab{Lower: r.Min, Upper: upper, Rate: r.Rate, FixedCharge: r.FixedCharge})
		}
		parsed[c] = slabs
	}
	return mergeWithDefaults(parsed)
}

// ParseTablesPDF extracts the text of a tariff schedule PDF and parses it
// with ParseTablesText.
func ParseTablesPDF(path string) (*Tables, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	rc, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}
	return ParseTablesText(buf.String())
}

var (
	headingRe = regexp.MustCompile(`(?i)\bLT[-\s]?(II|2|I|1)\b|\b(residential|domestic|commercial|non-domestic)\b`)

	num = `(\d+(?:\.\d+)?)`
	cur = `(?:rs\.?|₹)?\s*`

	closedRowRe = regexp.MustCompile(`(?i)^\s*` + num + `\s*(?:-|–|to)\s*` + num + `\s*(?:kwh|units)?\s+` + cur + num + `\s+` + cur + num)
	openRowRe   = regexp.MustCompile(`(?i)^\s*` + num + `\s*(?:\+|&\s*above|and\s+above)\s*(?:kwh|units)?\s+` + cur + num + `\s+` + cur + num)
	aboveRowRe  = regexp.MustCompile(`(?i)^\s*above\s+` + num + `\s*(?:kwh|units)?\s+` + cur + num + `\s+` + cur + num)
)

// ParseTablesText parses the slab rows of a tariff schedule. Rows belong to
// the most recent LT-I / LT-II (or residential / commercial) heading and look
// like "0 - 30  1.90  25", "401 & above 9.75 55" or "Above 400 9.75 55".
func ParseTablesText(text string) (*Tables, error) {
	parsed := make(map[Category][]Slab)
	var current Category

	for _, line := range strings.Split(text, "\n") {
		if s, ok := parseRow(line); ok {
			if current == "" {
				continue
			}
			parsed[current] = append(parsed[current], s)
			continue
		}
		if c, ok := parseHeading(line); ok {
			current = c
		}
	}

	if len(parsed) == 0 {
		return nil, fmt.Errorf("%w: no slab rows found", ErrInvalidTable)
	}
	return mergeWithDefaults(parsed)
}

func parseHeading(line string) (Category, bool) {
	m := headingRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	switch strings.ToLower(m[1] + m[2]) {
	case "ii", "2", "commercial", "non-domestic":
		return CategoryCommercial, true
	default:
		return CategoryResidential, true
	}
}

func parseRow(line string) (Slab, bool) {
	if m := closedRowRe.FindStringSubmatch(line); m != nil {
		return Slab{Lower: atof(m[1]), Upper: atof(m[2]), Rate: atof(m[3]), FixedCharge: atof(m[4])}, true
	}
	if m := openRowRe.FindStringSubmatch(line); m != nil {
		return Slab{Lower: atof(m[1]), Upper: math.Inf(1), Rate: atof(m[2]), FixedCharge: atof(m[3])}, true
	}
	if m := aboveRowRe.FindStringSubmatch(line); m != nil {
		return Slab{Lower: atof(m[1]) + 1, Upper: math.Inf(1), Rate: atof(m[2]), FixedCharge: atof(m[3])}, true
	}
	return Slab{}, false
}

func atof(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func mergeWithDefaults(parsed map[Category][]Slab) (*Tables, error) {
	defaults := DefaultTables()
	tables := make([]Table, 0, len(Categories()))
	for _, c := range Categories() {
		if slabs, ok := parsed[c]; ok {
			tables = append(tables, Table{Category: c, Slabs: slabs})
			continue
		}
		tables = append(tables, defaults.Table(c))
	}
	return NewTables(tables...)
}
