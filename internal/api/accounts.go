package api

import (
	"net/http"
	"time"

	"github.com/bher20/wattscope/internal/auth"
	"github.com/bher20/wattscope/internal/storage"
)

// @Summary Create an account
// @Tags auth
// @Accept json
// @Produce json
// @Param body body auth.SignupInput true "signup form"
// @Success 201 {object} storage.User
// @Failure 400 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /api/v1/auth/signup [post]
func (h *handlers) signup(w http.ResponseWriter, r *http.Request) {
	var in auth.SignupInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.Auth.Signup(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	User      *storage.User `json:"user"`
}

// @Summary Log in with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param body body loginRequest true "credentials"
// @Success 200 {object} loginResponse
// @Failure 401 {object} errorResponse
// @Router /api/v1/auth/login [post]
func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	u, raw, tok, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: raw, ExpiresAt: tok.ExpiresAt, User: u})
}

// @Summary Revoke the current token
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Router /api/v1/auth/logout [post]
func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	tok, _ := auth.TokenFromContext(r.Context())
	if err := h.Auth.Logout(r.Context(), tok.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// @Summary Current user
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} storage.User
// @Router /api/v1/me [get]
func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, u)
}
