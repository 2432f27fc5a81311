package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLite(t *testing.T) *GormStorage {
	t.Helper()
	st, err := NewGormStorage("sqlite", filepath.Join(t.TempDir(), "wattscope.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestGorm_UsageEventsNewestFirst(t *testing.T) {
	ctx := context.Background()
	st := newSQLite(t)

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, st.CreateUsageEvent(ctx, UsageEvent{ID: "a", UserID: "u1", CreatedAt: at}))
	require.NoError(t, st.CreateUsageEvent(ctx, UsageEvent{ID: "b", UserID: "u1", CreatedAt: at.Add(time.Minute)}))
	// Same timestamp as b; ties break on id.
	require.NoError(t, st.CreateUsageEvent(ctx, UsageEvent{ID: "c", UserID: "u1", CreatedAt: at.Add(time.Minute)}))
	require.NoError(t, st.CreateUsageEvent(ctx, UsageEvent{ID: "x", UserID: "u2", CreatedAt: at}))

	list, err := st.ListUsageEvents(ctx, "u1")
	require.NoError(t, err)
	ids := make([]string, len(list))
	for i, ev := range list {
		ids[i] = ev.ID
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids)
}

func TestGorm_DeleteUsageEventChecksOwner(t *testing.T) {
	ctx := context.Background()
	st := newSQLite(t)
	require.NoError(t, st.CreateUsageEvent(ctx, UsageEvent{ID: "a", UserID: "u1", Units: 3, TotalCost: 30.7}))

	ok, err := st.DeleteUsageEvent(ctx, "u2", "a")
	require.NoError(t, err)
	assert.False(t, ok)

	ev, err := st.GetUsageEvent(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, 30.7, ev.TotalCost)

	ok, err = st.DeleteUsageEvent(ctx, "u1", "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ev, err = st.GetUsageEvent(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestGorm_LookupsReturnNilWhenMissing(t *testing.T) {
	ctx := context.Background()
	st := newSQLite(t)

	u, err := st.GetUser(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, u)

	u, err = st.GetUserByEmail(ctx, "nobody@example.org")
	assert.NoError(t, err)
	assert.Nil(t, u)

	tok, err := st.GetTokenByHash(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, tok)

	cfg, err := st.GetEmailConfig(ctx)
	assert.NoError(t, err)
	assert.Nil(t, cfg)

	job, err := st.GetScheduledJob(ctx, "digest")
	assert.NoError(t, err)
	assert.Nil(t, job)

	v, err := st.GetSetting(ctx, "missing")
	assert.NoError(t, err)
	assert.Empty(t, v)
}

func TestGorm_CreateUserRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	st := newSQLite(t)
	require.NoError(t, st.CreateUser(ctx, User{ID: "u1", Email: "a@example.org"}))

	assert.ErrorIs(t, st.CreateUser(ctx, User{ID: "u2", Email: "a@example.org"}), ErrDuplicate)

	users, err := st.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestGorm_DeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	st := newSQLite(t)
	require.NoError(t, st.CreateUser(ctx, User{ID: "u1", Email: "a@example.org"}))
	require.NoError(t, st.CreateUsageEvent(ctx, UsageEvent{ID: "e1", UserID: "u1"}))
	require.NoError(t, st.CreateToken(ctx, Token{ID: "t1", UserID: "u1", TokenHash: "h"}))

	require.NoError(t, st.DeleteUser(ctx, "u1"))

	list, err := st.ListUsageEvents(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
	tok, err := st.GetTokenByHash(ctx, "h")
	require.NoError(t, err)
	assert.Nil(t, tok)
}

func TestGorm_SettingsUpsert(t *testing.T) {
	ctx := context.Background()
	st := newSQLite(t)

	require.NoError(t, st.SetSetting(ctx, "digest_schedule", "0 8 1 * *"))
	require.NoError(t, st.SetSetting(ctx, "digest_schedule", "0 9 1 * *"))
	v, err := st.GetSetting(ctx, "digest_schedule")
	require.NoError(t, err)
	assert.Equal(t, "0 9 1 * *", v)

	require.NoError(t, st.SaveEmailConfig(ctx, EmailConfig{Provider: "smtp", Host: "mail", Port: 25, FromAddress: "a@example.org"}))
	require.NoError(t, st.SaveEmailConfig(ctx, EmailConfig{Provider: "sendgrid", APIKey: "SG.x", FromAddress: "b@example.org"}))
	cfg, err := st.GetEmailConfig(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "default", cfg.ID)
	assert.Equal(t, "sendgrid", cfg.Provider)
	assert.Equal(t, "b@example.org", cfg.FromAddress)
}

func TestGorm_CasbinRules(t *testing.T) {
	ctx := context.Background()
	st := newSQLite(t)
	rule := NewCasbinRule("p", []string{"consumer", "bills", "write"})
	require.NoError(t, st.AddCasbinRule(ctx, rule))
	require.NoError(t, st.AddCasbinRule(ctx, NewCasbinRule("g", []string{"u1", "admin"})))

	rules, err := st.LoadCasbinRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, []string{"consumer", "bills", "write"}, rules[0].Values())

	require.NoError(t, st.RemoveCasbinRule(ctx, rule))
	rules, err = st.LoadCasbinRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "g", rules[0].PType)
}

func TestGorm_AdvisoryLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	st := newSQLite(t)

	ok, err := st.AcquireAdvisoryLock(ctx, 42)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = st.AcquireAdvisoryLock(ctx, 42)
	assert.False(t, ok)

	released, err := st.ReleaseAdvisoryLock(ctx, 42)
	require.NoError(t, err)
	assert.True(t, released)
	released, _ = st.ReleaseAdvisoryLock(ctx, 42)
	assert.False(t, released)

	ok, _ = st.AcquireAdvisoryLock(ctx, 42)
	assert.True(t, ok)
}

// Runs only when a postgres DSN is provided.
func TestGorm_PostgresAdvisoryLockAcrossInstances(t *testing.T) {
	dsn := os.Getenv("WATTSCOPE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("WATTSCOPE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	a, err := NewGormStorage("postgres", dsn)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewGormStorage("postgres", dsn)
	require.NoError(t, err)
	defer b.Close()

	const key = 771001
	ok, err := a.AcquireAdvisoryLock(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)

	// Other pooled queries on a must not disturb the pinned session.
	for i := 0; i < 5; i++ {
		require.NoError(t, a.Ping(ctx))
	}
	ok, err = b.AcquireAdvisoryLock(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	released, err := a.ReleaseAdvisoryLock(ctx, key)
	require.NoError(t, err)
	assert.True(t, released)

	ok, err = b.AcquireAdvisoryLock(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	released, err = b.ReleaseAdvisoryLock(ctx, key)
	require.NoError(t, err)
	assert.True(t, released)
}

func TestGorm_ScheduledJobUpsert(t *testing.T) {
	ctx := context.Background()
	st := newSQLite(t)
	started := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, st.UpdateScheduledJob(ctx, "digest", started, 1500*time.Millisecond, false, "smtp down"))
	require.NoError(t, st.UpdateScheduledJob(ctx, "digest", started.Add(time.Hour), 200*time.Millisecond, true, ""))

	job, err := st.GetScheduledJob(ctx, "digest")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, int64(200), job.LastDurationMs)
	assert.True(t, job.LastSuccess)
	assert.Empty(t, job.LastError)
}

func TestGorm_PingAndStats(t *testing.T) {
	st := newSQLite(t)
	require.NoError(t, st.Ping(context.Background()))

	var reporter StatsReporter = st
	stats, err := reporter.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.InUse)
}

func TestGormLogConfig_IgnoresRecordNotFound(t *testing.T) {
	cfg := gormLogConfig()
	assert.True(t, cfg.IgnoreRecordNotFoundError)
	assert.False(t, cfg.Colorful)
}

func TestNewGormStorage_UnsupportedDriver(t *testing.T) {
	_, err := NewGormStorage("mysql", "x")
	assert.Error(t, err)
}
