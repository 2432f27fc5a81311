// Package notification sends email through the provider configured in
// storage: plain SMTP (or Gmail), SendGrid or Resend.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/bher20/wattscope/internal/logging"
	"github.com/bher20/wattscope/internal/storage"
)

var ErrNotConfigured = errors.New("email not configured or disabled")

// ErrInvalidConfig is returned when an email configuration is incomplete.
var ErrInvalidConfig = errors.New("invalid email config")

const defaultResendURL = "https://api.resend.com/emails"

type Service struct {
	storage    storage.Storage
	httpClient *http.Client
	resendURL  string
	log        *zap.Logger
}

func NewService(s storage.Storage) *Service {
	return &Service{
		storage:    s,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		resendURL:  defaultResendURL,
		log:        logging.Named("notification"),
	}
}

func (s *Service) GetConfig(ctx context.Context) (*storage.EmailConfig, error) {
	return s.storage.GetEmailConfig(ctx)
}

// SaveConfig validates and stores the email configuration.
func (s *Service) SaveConfig(ctx context.Context, cfg storage.EmailConfig) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	return s.storage.SaveEmailConfig(ctx, cfg)
}

func validateConfig(cfg storage.EmailConfig) error {
	switch cfg.Provider {
	case "smtp", "gmail":
		if cfg.Host == "" || cfg.Port == 0 {
			return fmt.Errorf("%w: %s provider needs host and port", ErrInvalidConfig, cfg.Provider)
		}
	case "sendgrid", "resend":
		if cfg.APIKey == "" {
			return fmt.Errorf("%w: %s provider needs an api key", ErrInvalidConfig, cfg.Provider)
		}
	default:
		return fmt.Errorf("%w: unknown provider: %s", ErrInvalidConfig, cfg.Provider)
	}
	if cfg.FromAddress == "" {
		return fmt.Errorf("%w: from address is required", ErrInvalidConfig)
	}
	return nil
}

// SendEmail delivers an HTML message with the stored configuration.
func (s *Service) SendEmail(ctx context.Context, to, subject, body string) error {
	cfg, err := s.storage.GetEmailConfig(ctx)
	if err != nil {
		return err
	}
	if cfg == nil || !cfg.Enabled {
		return ErrNotConfigured
	}
	return s.send(ctx, cfg, to, subject, body)
}

// TestConfig sends a test message with cfg without saving it.
func (s *Service) TestConfig(ctx context.Context, cfg storage.EmailConfig, to string) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	return s.send(ctx, &cfg, to, "Test Email", "<p>This is a test email from WattScope.</p>")
}

func (s *Service) send(ctx context.Context, cfg *storage.EmailConfig, to, subject, body string) error {
	var err error
	switch cfg.Provider {
	case "smtp", "gmail":
		err = sendSMTP(cfg, to, subject, body)
	case "sendgrid":
		err = s.sendSendgrid(ctx, cfg, to, subject, body)
	case "resend":
		err = s.sendResend(ctx, cfg, to, subject, body)
	default:
		err = fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
	if err != nil {
		s.log.Warn("email send failed", zap.String("provider", cfg.Provider), zap.String("to", to), zap.Error(err))
		return err
	}
	s.log.Debug("email sent", zap.String("provider", cfg.Provider), zap.String("to", to))
	return nil
}

func (s *Service) sendSendgrid(ctx context.Context, cfg *storage.EmailConfig, to, subject, body string) error {
	from := mail.NewEmail(cfg.FromName, cfg.FromAddress)
	toEmail := mail.NewEmail("", to)
	message := mail.NewSingleEmail(from, subject, toEmail, stripTags(body), body)
	client := sendgrid.NewSendClient(cfg.APIKey)
	resp, err := client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: %d %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func (s *Service) sendResend(ctx context.Context, cfg *storage.EmailConfig, to, subject, body string) error {
	payload := map[string]string{
		"from":    fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress),
		"to":      to,
		"subject": subject,
		"html":    body,
	}
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.resendURL, bytes.NewReader(jsonPayload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("resend error: %d %s", resp.StatusCode, string(bodyBytes))
	}
	return nil
}

// stripTags gives a rough plain-text alternative of an HTML body.
func stripTags(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
