package migrate

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bher20/wattscope/internal/storage"
)

func TestUpDownSQLite(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "wattscope.db")

	require.NoError(t, Up(ctx, "sqlite", dsn))
	v, err := Version(ctx, "sqlite", dsn)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	require.NoError(t, Down(ctx, "sqlite", dsn))
	v, err = Version(ctx, "sqlite", dsn)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestUnsupportedDriver(t *testing.T) {
	assert.Error(t, Up(context.Background(), "mysql", "x"))
}

func TestMigrationsEmbedded(t *testing.T) {
	for _, dir := range []string{"migrations/sqlite", "migrations/postgres"} {
		entries, err := embedMigrations.ReadDir(dir)
		require.NoError(t, err)
		assert.NotEmpty(t, entries, dir)
	}
}

func TestUpThenGormStorage(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "wattscope.db")
	require.NoError(t, Up(ctx, "sqlite", dsn))

	st, err := storage.Open(ctx, storage.Config{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	defer st.Close()

	now := time.Now().UTC()
	require.NoError(t, st.CreateUser(ctx, storage.User{
		ID: "u1", Email: "a@example.org", Category: "LT-I", PasswordHash: "x",
		Role: "consumer", CreatedAt: now, UpdatedAt: now,
	}))
	assert.ErrorIs(t, st.CreateUser(ctx, storage.User{
		ID: "u2", Email: "a@example.org", PasswordHash: "x", CreatedAt: now, UpdatedAt: now,
	}), storage.ErrDuplicate)

	require.NoError(t, st.CreateUsageEvent(ctx, storage.UsageEvent{
		ID: "e1", UserID: "u1", ApplianceName: "Fan", PowerWatts: 75, Hours: 8,
		Units: 0.6, RatePerUnit: 4.45, EnergyCost: 2.67, TotalCost: 2.67, CreatedAt: now,
	}))
	list, err := st.ListUsageEvents(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Fan", list[0].ApplianceName)

	v, err := Version(ctx, "sqlite", dsn)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}
