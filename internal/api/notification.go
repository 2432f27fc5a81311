package api

import (
	"errors"
	"net/http"

	"github.com/bher20/wattscope/internal/billing"
	"github.com/bher20/wattscope/internal/notification"
	"github.com/bher20/wattscope/internal/storage"
)

// redact hides stored secrets from API responses.
func redact(cfg storage.EmailConfig) storage.EmailConfig {
	if cfg.Password != "" {
		cfg.Password = "********"
	}
	if cfg.APIKey != "" {
		cfg.APIKey = "********"
	}
	return cfg
}

// @Summary Email settings
// @Tags settings
// @Security BearerAuth
// @Produce json
// @Success 200 {object} storage.EmailConfig
// @Router /api/v1/settings/email [get]
func (h *handlers) getEmailSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Notification.GetConfig(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if cfg == nil {
		cfg = &storage.EmailConfig{}
	}
	writeJSON(w, http.StatusOK, redact(*cfg))
}

// @Summary Update email settings
// @Description Empty or redacted secrets keep their stored value.
// @Tags settings
// @Security BearerAuth
// @Accept json
// @Param body body storage.EmailConfig true "settings"
// @Success 204
// @Failure 400 {object} errorResponse
// @Router /api/v1/settings/email [put]
func (h *handlers) putEmailSettings(w http.ResponseWriter, r *http.Request) {
	var req storage.EmailConfig
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	existing, err := h.Notification.GetConfig(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if existing != nil {
		if req.Password == "" || req.Password == "********" {
			req.Password = existing.Password
		}
		if req.APIKey == "" || req.APIKey == "********" {
			req.APIKey = existing.APIKey
		}
		req.CreatedAt = existing.CreatedAt
	}

	if err := h.Notification.SaveConfig(r.Context(), req); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type testEmailRequest struct {
	Config storage.EmailConfig `json:"config"`
	To     string              `json:"to"`
}

// @Summary Send a test email with unsaved settings
// @Tags settings
// @Security BearerAuth
// @Accept json
// @Param body body testEmailRequest true "settings and recipient"
// @Success 204
// @Failure 400 {object} errorResponse
// @Failure 502 {object} errorResponse
// @Router /api/v1/settings/email/test [post]
func (h *handlers) testEmailSettings(w http.ResponseWriter, r *http.Request) {
	var req testEmailRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.To == "" {
		h.fail(w, r, billing.ErrInvalidArgument)
		return
	}
	err := h.Notification.TestConfig(r.Context(), req.Config, req.To)
	switch {
	case errors.Is(err, notification.ErrInvalidConfig):
		h.fail(w, r, err)
		return
	case err != nil:
		// The provider rejected the message; show why.
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
