package cron

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bher20/wattscope/internal/alerting"
	"github.com/bher20/wattscope/internal/billing"
	"github.com/bher20/wattscope/internal/storage"
	"github.com/bher20/wattscope/internal/tariff"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent map[string]string
	fail map[string]bool
}

func (m *fakeMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[to] {
		return errors.New("mailbox unavailable")
	}
	if m.sent == nil {
		m.sent = map[string]string{}
	}
	m.sent[to] = subject
	return nil
}

func seed(t *testing.T) (*storage.MemoryStorage, *billing.Service) {
	t.Helper()
	ctx := context.Background()
	st := storage.NewMemory()
	bill := billing.NewService(st, nil)
	for _, u := range []storage.User{
		{ID: "u1", Email: "one@example.org", Category: string(tariff.CategoryResidential)},
		{ID: "u2", Email: "two@example.org", Category: string(tariff.CategoryCommercial)},
		{ID: "u3", Email: "idle@example.org", Category: string(tariff.CategoryResidential)},
	} {
		require.NoError(t, st.CreateUser(ctx, u))
	}
	_, err := bill.SaveUsage(ctx, "u1", billing.UsageInput{ApplianceID: "ac", Hours: 2})
	require.NoError(t, err)
	_, err = bill.SaveUsage(ctx, "u2", billing.UsageInput{ApplianceID: "heater", Hours: 24})
	require.NoError(t, err)
	return st, bill
}

func TestRunOnce(t *testing.T) {
	ctx := context.Background()
	st, bill := seed(t)
	mailer := &fakeMailer{}

	res, err := NewDigest(st, bill, mailer, nil).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, res.Failures)
	assert.Equal(t, "Your bill so far: Rs 30.70 (0-30 kWh)", mailer.sent["one@example.org"])
	assert.Contains(t, mailer.sent["two@example.org"], "289.2")

	job, err := st.GetScheduledJob(ctx, DigestJobName)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.True(t, job.LastSuccess)
}

func TestRunOnce_FailuresAlert(t *testing.T) {
	ctx := context.Background()
	st, bill := seed(t)
	mailer := &fakeMailer{fail: map[string]bool{"two@example.org": true}}

	var alert map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
	}))
	defer srv.Close()

	d := NewDigest(st, bill, mailer, alerting.NewAlerter(alerting.AlertConfig{WebhookURL: srv.URL}))
	res, err := d.RunOnce(ctx)
	require.Error(t, err)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "u2", res.Failures[0].UserID)

	assert.Equal(t, DigestJobName, alert["job_name"])
	assert.Equal(t, float64(2), alert["total_count"])
	assert.Equal(t, float64(1), alert["failed_count"])

	job, _ := st.GetScheduledJob(ctx, DigestJobName)
	require.NotNil(t, job)
	assert.False(t, job.LastSuccess)
	assert.Contains(t, job.LastError, "1 of 3")
}

func TestRunOnce_LockHeld(t *testing.T) {
	ctx := context.Background()
	st, bill := seed(t)
	ok, err := st.AcquireAdvisoryLock(ctx, digestLockKey)
	require.NoError(t, err)
	require.True(t, ok)

	mailer := &fakeMailer{}
	res, err := NewDigest(st, bill, mailer, nil).RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, res.LockHeld)
	assert.Empty(t, mailer.sent)
}

func TestResolveSchedule(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	d := NewDigest(st, billing.NewService(st, nil), &fakeMailer{}, nil)

	s, err := d.ResolveSchedule(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultSchedule, s)

	s, err = d.ResolveSchedule(ctx, "@weekly")
	require.NoError(t, err)
	assert.Equal(t, "@weekly", s)

	require.NoError(t, st.SetSetting(ctx, ScheduleSetting, "30 7 * * 1"))
	s, err = d.ResolveSchedule(ctx, "@weekly")
	require.NoError(t, err)
	assert.Equal(t, "30 7 * * 1", s)

	require.NoError(t, st.SetSetting(ctx, ScheduleSetting, "not a schedule"))
	_, err = d.ResolveSchedule(ctx, "")
	assert.Error(t, err)
}
