package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bher20/wattscope/internal/config"
	"github.com/bher20/wattscope/internal/tariff"
)

const boundedResidential = `categories:
  LT-I:
    - {min: 0, max: 50, rate: 2.0, fixed_charge: 20}
    - {min: 51, max: 100, rate: 3.5, fixed_charge: 40}
`

func TestLoadEngine_Default(t *testing.T) {
	eng, err := loadEngine(config.Config{})
	require.NoError(t, err)
	assert.Equal(t, 1.90, eng.ResolveSlab(10, tariff.CategoryResidential).Rate)
}

func TestLoadEngine_BoundedTableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tariffs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(boundedResidential), 0o600))

	cfg := config.Config{Tariff: config.TariffConfig{File: path}}
	eng, err := loadEngine(cfg)
	require.NoError(t, err)
	// Above the last bound the last slab applies.
	assert.Equal(t, 3.5, eng.ResolveSlab(250, tariff.CategoryResidential).Rate)

	tables, err := tariff.LoadTablesFile(path)
	require.NoError(t, err)
	assert.Equal(t, []tariff.Category{tariff.CategoryResidential}, boundedCategories(tables))
}

func TestBoundedCategories_DefaultsAreOpenEnded(t *testing.T) {
	assert.Empty(t, boundedCategories(tariff.DefaultTables()))
}

func TestLoadEngine_MissingFile(t *testing.T) {
	_, err := loadEngine(config.Config{Tariff: config.TariffConfig{File: filepath.Join(t.TempDir(), "nope.yaml")}})
	assert.Error(t, err)
}
