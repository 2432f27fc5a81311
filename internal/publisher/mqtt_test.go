package publisher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bher20/wattscope/internal/billing"
	"github.com/bher20/wattscope/internal/config"
	"github.com/bher20/wattscope/internal/tariff"
)

func TestTopic(t *testing.T) {
	assert.Equal(t, "wattscope/u1/bill", Topic("wattscope", "u1"))
	assert.Equal(t, "home/energy/u1/bill", Topic("home/energy/", "u1"))
}

func TestPayload(t *testing.T) {
	sum := billing.Summary{
		CumulativeBill: tariff.ComputeCumulativeBill(51, tariff.CategoryResidential),
		UserID:         "u1",
		Category:       tariff.CategoryResidential,
		Events:         2,
		GeneratedAt:    time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	data, err := Payload(sum)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"user_id": "u1",
		"category": "LT-I",
		"events": 2,
		"total_units": 51,
		"slab_label": "31-75 kWh",
		"rate_per_unit": 3,
		"energy_cost": 153,
		"fixed_charge": 30,
		"total_cost": 183,
		"updated_at": "2026-03-01T08:00:00Z"
	}`, string(data))
}

func TestNew_RequiresBroker(t *testing.T) {
	_, err := New(config.MQTTConfig{Enabled: true})
	assert.Error(t, err)
}
