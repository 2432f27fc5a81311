// Package alerting posts webhook alerts (Slack, Discord or a generic JSON
// body) when a scheduled job fails for some users.
package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bher20/wattscope/internal/logging"
)

// AlertConfig holds alerting configuration.
type AlertConfig struct {
	// WebhookURL is a Slack, Discord or custom endpoint.
	WebhookURL string
	// WebhookType is "slack", "discord" or "generic"; empty detects it from
	// the URL.
	WebhookType string
	// MinFailuresBeforeAlert is the failure count that triggers an alert.
	MinFailuresBeforeAlert int
	Timeout                time.Duration
}

// Enabled reports whether a webhook is configured.
func (c AlertConfig) Enabled() bool { return c.WebhookURL != "" }

func (c AlertConfig) webhookType() string {
	if c.WebhookType != "" {
		return c.WebhookType
	}
	switch {
	case strings.Contains(c.WebhookURL, "slack.com"):
		return "slack"
	case strings.Contains(c.WebhookURL, "discord.com"):
		return "discord"
	default:
		return "generic"
	}
}

// Alerter sends alerts to configured webhooks.
type Alerter struct {
	cfg    AlertConfig
	client *http.Client
	log    *zap.Logger
}

func NewAlerter(cfg AlertConfig) *Alerter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MinFailuresBeforeAlert <= 0 {
		cfg.MinFailuresBeforeAlert = 1
	}
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    logging.Named("alerting"),
	}
}

// JobAlert summarises one run of a per-user job.
type JobAlert struct {
	JobName       string
	TotalCount    int
	SuccessCount  int
	FailedCount   int
	Duration      time.Duration
	FailedDetails []UserFailure
	Timestamp     time.Time
}

// UserFailure is one user the job could not serve.
type UserFailure struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Error  string `json:"error"`
}

// SendJobAlert posts alert when enough users failed. It is a no-op when no
// webhook is configured.
func (a *Alerter) SendJobAlert(ctx context.Context, alert JobAlert) error {
	if !a.cfg.Enabled() {
		a.log.Debug("alerts disabled, skipping")
		return nil
	}
	if alert.FailedCount < a.cfg.MinFailuresBeforeAlert {
		a.log.Debug("failures below threshold, skipping",
			zap.Int("failed", alert.FailedCount), zap.Int("threshold", a.cfg.MinFailuresBeforeAlert))
		return nil
	}

	payload, err := BuildPayload(a.cfg.webhookType(), alert)
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	a.log.Info("sent job alert", zap.String("job", alert.JobName), zap.Int("failed", alert.FailedCount))
	return nil
}

// BuildPayload renders alert in the webhook's format.
func BuildPayload(webhookType string, alert JobAlert) ([]byte, error) {
	switch webhookType {
	case "slack":
		return buildSlackPayload(alert)
	case "discord":
		return buildDiscordPayload(alert)
	default:
		return buildGenericPayload(alert)
	}
}

func failureList(alert JobAlert, bold string) string {
	var b strings.Builder
	for _, f := range alert.FailedDetails {
		fmt.Fprintf(&b, "• %s%s%s: %s\n", bold, f.Email, bold, f.Error)
	}
	return b.String()
}

func buildSlackPayload(alert JobAlert) ([]byte, error) {
	emoji := ":warning:"
	if alert.FailedCount == alert.TotalCount {
		emoji = ":x:"
	}

	payload := map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]string{
					"type": "plain_text",
					"text": fmt.Sprintf("%s Job Alert: %s", emoji, alert.JobName),
				},
			},
			{
				"type": "section",
				"fields": []map[string]string{
					{"type": "mrkdwn", "text": fmt.Sprintf("*Status:*\n%d/%d failed", alert.FailedCount, alert.TotalCount)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Duration:*\n%s", alert.Duration.Round(time.Millisecond))},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Success:*\n%d", alert.SuccessCount)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Timestamp:*\n%s", alert.Timestamp.Format(time.RFC3339))},
				},
			},
			{
				"type": "section",
				"text": map[string]string{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Failed Users:*\n%s", failureList(alert, "*")),
				},
			},
		},
	}
	return json.Marshal(payload)
}

func buildDiscordPayload(alert JobAlert) ([]byte, error) {
	color := 16776960 // yellow
	if alert.FailedCount == alert.TotalCount {
		color = 16711680 // red
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       fmt.Sprintf("Job Alert: %s", alert.JobName),
				"description": fmt.Sprintf("%d/%d users failed", alert.FailedCount, alert.TotalCount),
				"color":       color,
				"fields": []map[string]interface{}{
					{"name": "Success", "value": fmt.Sprintf("%d", alert.SuccessCount), "inline": true},
					{"name": "Failed", "value": fmt.Sprintf("%d", alert.FailedCount), "inline": true},
					{"name": "Duration", "value": alert.Duration.Round(time.Millisecond).String(), "inline": true},
					{"name": "Failed Users", "value": failureList(alert, "**"), "inline": false},
				},
				"timestamp": alert.Timestamp.Format(time.RFC3339),
			},
		},
	}
	return json.Marshal(payload)
}

func buildGenericPayload(alert JobAlert) ([]byte, error) {
	payload := map[string]interface{}{
		"alert_type":     "job_failure",
		"job_name":       alert.JobName,
		"total_count":    alert.TotalCount,
		"success_count":  alert.SuccessCount,
		"failed_count":   alert.FailedCount,
		"duration_ms":    alert.Duration.Milliseconds(),
		"timestamp":      alert.Timestamp.Format(time.RFC3339),
		"failed_details": alert.FailedDetails,
	}
	return json.Marshal(payload)
}
