package billing

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bher20/wattscope/internal/storage"
	"github.com/bher20/wattscope/internal/tariff"
)

type fakeNotifier struct {
	mu    sync.Mutex
	calls []Summary
	err   error
}

func (f *fakeNotifier) BillChanged(ctx context.Context, user storage.User, s Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s)
	return f.err
}

func newTestService(t *testing.T, category tariff.Category, opts ...Option) (*Service, *storage.MemoryStorage) {
	t.Helper()
	st := storage.NewMemory()
	require.NoError(t, st.CreateUser(context.Background(), storage.User{
		ID:       "u1",
		Email:    "u1@example.org",
		Category: string(category),
	}))
	return NewService(st, nil, opts...), st
}

func TestNormalize(t *testing.T) {
	u, err := Normalize(UsageInput{ApplianceID: "ac", Hours: 1, Minutes: 75})
	require.NoError(t, err)
	assert.Equal(t, "Air Conditioner", u.ApplianceName)
	assert.Equal(t, 1500.0, u.PowerWatts)
	assert.Equal(t, 2, u.Hours)
	assert.Equal(t, 15, u.Minutes)

	u, err = Normalize(UsageInput{PowerWatts: 60, Minutes: 30})
	require.NoError(t, err)
	assert.Equal(t, CustomApplianceName, u.ApplianceName)
}

func TestNormalize_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   UsageInput
	}{
		{"zero duration", UsageInput{PowerWatts: 100}},
		{"negative hours", UsageInput{PowerWatts: 100, Hours: -1, Minutes: 30}},
		{"negative minutes", UsageInput{PowerWatts: 100, Hours: 1, Minutes: -5}},
		{"zero power", UsageInput{Hours: 1}},
		{"negative power", UsageInput{PowerWatts: -100, Hours: 1}},
		{"nan power", UsageInput{PowerWatts: math.NaN(), Hours: 1}},
		{"infinite power", UsageInput{PowerWatts: math.Inf(1), Hours: 1}},
		{"unknown appliance", UsageInput{ApplianceID: "toaster", Hours: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.in)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestCalculate(t *testing.T) {
	svc, _ := newTestService(t, tariff.CategoryResidential)

	est, err := svc.Calculate(context.Background(), UsageInput{ApplianceID: "ac", Hours: 2}, tariff.CategoryResidential)
	require.NoError(t, err)
	assert.Equal(t, 3.0, est.Units)
	assert.Equal(t, 30.70, est.TotalCost)
	assert.Equal(t, "0-30 kWh", est.SlabLabel)

	est, err = svc.Calculate(context.Background(), UsageInput{ApplianceID: "heater", Hours: 24}, tariff.CategoryCommercial)
	require.NoError(t, err)
	assert.Equal(t, 289.20, est.TotalCost)

	_, err = svc.Calculate(context.Background(), UsageInput{ApplianceID: "ac", Hours: 2}, "LT-IX")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCumulative(t *testing.T) {
	svc, _ := newTestService(t, tariff.CategoryResidential)
	bill, err := svc.Cumulative(450, tariff.CategoryResidential)
	require.NoError(t, err)
	assert.Equal(t, 4442.50, bill.TotalCost)

	_, err = svc.Cumulative(-1, tariff.CategoryResidential)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSaveListDeleteSummary(t *testing.T) {
	ctx := context.Background()
	n := &fakeNotifier{}
	clock := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, tariff.CategoryResidential,
		WithNotifier(n),
		WithClock(func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}),
	)

	empty, err := svc.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Events)
	assert.Equal(t, "0-30 kWh", empty.SlabLabel)
	assert.Equal(t, 25.0, empty.TotalCost)

	ac, err := svc.SaveUsage(ctx, "u1", UsageInput{ApplianceID: "ac", Hours: 2})
	require.NoError(t, err)
	assert.Equal(t, 30.70, ac.TotalCost)
	heater, err := svc.SaveUsage(ctx, "u1", UsageInput{ApplianceID: "heater", Hours: 24})
	require.NoError(t, err)

	list, err := svc.ListUsage(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, heater.ID, list[0].ID)

	sum, err := svc.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Events)
	assert.Equal(t, 51.0, sum.TotalUnits)
	assert.Equal(t, "31-75 kWh", sum.SlabLabel)
	assert.Equal(t, 183.0, sum.TotalCost) // 51 * 3.00 + 30
	assert.Equal(t, tariff.RoundMoney(ac.TotalCost+heater.TotalCost), sum.SavedTotal)

	require.NoError(t, svc.DeleteUsage(ctx, "u1", heater.ID))
	assert.ErrorIs(t, svc.DeleteUsage(ctx, "u1", heater.ID), ErrNotFound)

	require.Len(t, n.calls, 3)
	assert.Equal(t, 1, n.calls[2].Events)
	assert.Equal(t, 3.0, n.calls[2].TotalUnits)
}

func TestSaveUsage_NotifierFailureIsNotReturned(t *testing.T) {
	n := &fakeNotifier{err: errors.New("broker down")}
	svc, _ := newTestService(t, tariff.CategoryCommercial, WithNotifier(n))
	_, err := svc.SaveUsage(context.Background(), "u1", UsageInput{PowerWatts: 100, Hours: 1})
	require.NoError(t, err)
	assert.Len(t, n.calls, 1)
}

func TestSaveUsage_Errors(t *testing.T) {
	svc, _ := newTestService(t, tariff.CategoryResidential)
	_, err := svc.SaveUsage(context.Background(), "ghost", UsageInput{PowerWatts: 100, Hours: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.SaveUsage(context.Background(), "u1", UsageInput{PowerWatts: 100})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDeleteUsage_OtherUsersEvent(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, tariff.CategoryResidential)
	require.NoError(t, st.CreateUser(ctx, storage.User{ID: "u2", Category: string(tariff.CategoryResidential)}))

	ev, err := svc.SaveUsage(ctx, "u1", UsageInput{PowerWatts: 100, Hours: 1})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.DeleteUsage(ctx, "u2", ev.ID), ErrNotFound)

	list, _ := svc.ListUsage(ctx, "u1")
	assert.Len(t, list, 1)
}

func TestSummary_SumsInDecimal(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, tariff.CategoryResidential)
	for i, units := range []float64{0.1, 0.2, 29.7} {
		require.NoError(t, st.CreateUsageEvent(ctx, storage.UsageEvent{
			ID:     string(rune('a' + i)),
			UserID: "u1",
			Units:  units,
		}))
	}
	sum, err := svc.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 30.0, sum.TotalUnits)
	assert.Equal(t, "0-30 kWh", sum.SlabLabel)
}
