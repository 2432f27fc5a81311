// Package api exposes the tariff engine, accounts and saved bills over
// HTTP/JSON.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bher20/wattscope/internal/api/swagger"
	"github.com/bher20/wattscope/internal/auth"
	"github.com/bher20/wattscope/internal/billing"
	"github.com/bher20/wattscope/internal/logging"
	"github.com/bher20/wattscope/internal/metrics"
	"github.com/bher20/wattscope/internal/notification"
	"github.com/bher20/wattscope/internal/storage"
	"github.com/bher20/wattscope/internal/ui"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Storage      storage.Storage
	Billing      *billing.Service
	Auth         *auth.Service
	Notification *notification.Service
}

type handlers struct {
	Deps
	log *zap.Logger
}

// NewMux constructs the HTTP mux with the JSON API, metrics, docs and health
// endpoints.
func NewMux(d Deps) *http.ServeMux {
	h := &handlers{Deps: d, log: logging.Named("api")}
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})
	mux.HandleFunc("GET /readyz", h.readyz)
	mux.Handle("GET /api/docs/", http.StripPrefix("/api/docs", swagger.Handler()))
	mux.Handle("GET /", ui.Handler())

	// Public calculator.
	h.handle(mux, "GET /api/v1/tariffs", h.listTariffs)
	h.handle(mux, "GET /api/v1/tariffs/{category}", h.getTariff)
	h.handle(mux, "GET /api/v1/appliances", h.listAppliances)
	h.handle(mux, "POST /api/v1/units", h.units)
	h.handle(mux, "POST /api/v1/cumulative", h.cumulative)
	// A bearer token, when present, supplies the category.
	h.handle(mux, "POST /api/v1/calculate", d.Auth.Middleware(http.HandlerFunc(h.calculate)).ServeHTTP)

	// Accounts.
	h.handle(mux, "POST /api/v1/auth/signup", h.signup)
	h.handle(mux, "POST /api/v1/auth/login", h.login)
	h.handle(mux, "POST /api/v1/auth/logout", h.protected("bills", "read", h.logout))
	h.handle(mux, "GET /api/v1/me", h.protected("bills", "read", h.me))

	// Saved usage.
	h.handle(mux, "GET /api/v1/bills", h.protected("bills", "read", h.listBills))
	h.handle(mux, "POST /api/v1/bills", h.protected("bills", "write", h.saveBill))
	h.handle(mux, "DELETE /api/v1/bills/{id}", h.protected("bills", "write", h.deleteBill))
	h.handle(mux, "GET /api/v1/bills/summary", h.protected("bills", "read", h.billSummary))
	h.handle(mux, "GET /api/v1/bills/export", h.protected("bills", "read", h.exportBills))

	// Admin settings.
	h.handle(mux, "GET /api/v1/settings/email", h.protected("settings", "read", h.getEmailSettings))
	h.handle(mux, "PUT /api/v1/settings/email", h.protected("settings", "write", h.putEmailSettings))
	h.handle(mux, "POST /api/v1/settings/email/test", h.protected("settings", "write", h.testEmailSettings))

	return mux
}

// protected requires a bearer token whose user may perform act on obj.
func (h *handlers) protected(obj, act string, fn http.HandlerFunc) http.HandlerFunc {
	return h.Auth.Middleware(h.Auth.RequirePermission(obj, act, fn)).ServeHTTP
}

// handle registers fn under pattern with request metrics.
func (h *handlers) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.HandleFunc(pattern, instrument(pattern, fn))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func instrument(route string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		metrics.RequestsTotal.WithLabelValues(route).Inc()

		fn(rec, r)

		metrics.RequestDurationSeconds.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		if rec.status >= 400 {
			metrics.RequestErrorsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		}
	}
}

func (h *handlers) readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.Storage.Ping(r.Context()); err != nil {
		h.log.Warn("readyz: storage ping failed", zap.Error(err))
		http.Error(w, "db not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
