package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bher20/wattscope/internal/storage"
)

type contextKey string

const (
	UserContextKey  contextKey = "user"
	TokenContextKey contextKey = "token"
)

// Middleware resolves an optional bearer token and attaches the token and
// its user to the request context. Requests without a header pass through.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		scheme, value, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || value == "" {
			writeAuthError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		token, err := s.ValidateToken(r.Context(), value)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenExpired) {
				writeAuthError(w, http.StatusUnauthorized, err.Error())
				return
			}
			writeAuthError(w, http.StatusInternalServerError, "token lookup failed")
			return
		}

		user, err := s.storage.GetUser(r.Context(), token.UserID)
		if err != nil {
			writeAuthError(w, http.StatusInternalServerError, "user lookup failed")
			return
		}
		if user == nil {
			writeAuthError(w, http.StatusUnauthorized, ErrInvalidToken.Error())
			return
		}

		ctx := context.WithValue(r.Context(), TokenContextKey, token)
		ctx = context.WithValue(ctx, UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission rejects requests whose user may not perform act on obj.
func (s *Service) RequirePermission(obj, act string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := TokenFromContext(r.Context())
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		allowed, err := s.Enforce(token.UserID, obj, act)
		if err != nil {
			writeAuthError(w, http.StatusInternalServerError, "permission check failed")
			return
		}
		if !allowed {
			writeAuthError(w, http.StatusForbidden, "forbidden")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*storage.User, bool) {
	u, ok := ctx.Value(UserContextKey).(*storage.User)
	return u, ok && u != nil
}

// TokenFromContext returns the bearer token, if any.
func TokenFromContext(ctx context.Context) (*storage.Token, bool) {
	t, ok := ctx.Value(TokenContextKey).(*storage.Token)
	return t, ok && t != nil
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
