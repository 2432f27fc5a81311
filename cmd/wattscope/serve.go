package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bher20/wattscope/internal/alerting"
	"github.com/bher20/wattscope/internal/api"
	"github.com/bher20/wattscope/internal/auth"
	"github.com/bher20/wattscope/internal/billing"
	"github.com/bher20/wattscope/internal/config"
	"github.com/bher20/wattscope/internal/cron"
	"github.com/bher20/wattscope/internal/logging"
	"github.com/bher20/wattscope/internal/metrics"
	"github.com/bher20/wattscope/internal/migrate"
	"github.com/bher20/wattscope/internal/notification"
	"github.com/bher20/wattscope/internal/publisher"
	"github.com/bher20/wattscope/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// app is everything serve and worker share.
type app struct {
	cfg          config.Config
	storage      storage.Storage
	billing      *billing.Service
	notification *notification.Service
	publisher    *publisher.Publisher
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	eng, err := loadEngine(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Storage.AutoMigrate && (cfg.Storage.Driver == "sqlite" || cfg.Storage.Driver == "postgres") {
		if err := migrate.Up(ctx, cfg.Storage.Driver, cfg.Storage.DSN); err != nil {
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}
	st, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, storage: st, notification: notification.NewService(st)}

	var opts []billing.Option
	if cfg.MQTT.Enabled {
		pub, err := publisher.New(cfg.MQTT)
		if err != nil {
			st.Close()
			return nil, err
		}
		a.publisher = pub
		opts = append(opts, billing.WithNotifier(pub))
	}
	a.billing = billing.NewService(st, eng, opts...)
	return a, nil
}

func (a *app) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if err := a.storage.Close(); err != nil {
		logging.Warn("closing storage", zap.Error(err))
	}
	logging.Sync()
}

func (a *app) digest() *cron.Digest {
	alerter := alerting.NewAlerter(alerting.AlertConfig{
		WebhookURL:             a.cfg.Alerts.WebhookURL,
		WebhookType:            a.cfg.Alerts.WebhookType,
		MinFailuresBeforeAlert: a.cfg.Alerts.MinFailures,
	})
	return cron.NewDigest(a.storage, a.billing, a.notification, alerter)
}

// reportPoolStats refreshes the DB pool gauges until ctx is done.
func (a *app) reportPoolStats(ctx context.Context) {
	reporter, ok := a.storage.(storage.StatsReporter)
	if !ok {
		return
	}
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st, err := reporter.Stats()
			if err != nil {
				logging.Debug("pool stats unavailable", zap.Error(err))
				continue
			}
			metrics.UpdateDBPoolMetrics(a.cfg.Storage.Driver, st.Open, st.Idle, st.InUse, st.WaitCount)
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	authSvc, err := auth.NewService(a.storage, auth.Options{
		TokenTTL:   a.cfg.Auth.TokenTTL,
		AdminEmail: a.cfg.Auth.AdminEmail,
	})
	if err != nil {
		return err
	}

	go a.reportPoolStats(ctx)
	if a.cfg.Digest.Enabled {
		go func() {
			if err := a.digest().Run(ctx, a.cfg.Digest.Schedule); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error("digest worker stopped", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr: a.cfg.Server.Addr(),
		Handler: api.NewMux(api.Deps{
			Storage:      a.storage,
			Billing:      a.billing,
			Auth:         authSvc,
			Notification: a.notification,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("wattscope listening", zap.String("addr", srv.Addr), zap.String("storage", a.cfg.Storage.Driver))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
