// Package auth handles consumer accounts, bearer tokens and role checks.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/bher20/wattscope/internal/logging"
	"github.com/bher20/wattscope/internal/storage"
	"github.com/bher20/wattscope/internal/tariff"
)

const (
	RoleConsumer = "consumer"
	RoleAdmin    = "admin"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (r.obj == p.obj || p.obj == "*") && (r.act == p.act || p.act == "*")
`

var defaultPolicies = [][]string{
	{RoleAdmin, "*", "*"},
	{RoleConsumer, "bills", "read"},
	{RoleConsumer, "bills", "write"},
	{RoleConsumer, "tariffs", "read"},
	{RoleConsumer, "appliances", "read"},
}

// Options tune token lifetime and admin bootstrap.
type Options struct {
	// TokenTTL is parsed by ParseExpirationDuration at login time.
	TokenTTL string
	// AdminEmail signs up with the admin role instead of consumer.
	AdminEmail string
}

type Service struct {
	storage  storage.Storage
	enforcer *casbin.SyncedEnforcer
	opts     Options
	log      *zap.Logger
}

func NewService(s storage.Storage, opts Options) (*Service, error) {
	if _, err := ParseExpirationDuration(opts.TokenTTL); err != nil {
		return nil, fmt.Errorf("token ttl: %w", err)
	}

	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewSyncedEnforcer(m, NewAdapter(s))
	if err != nil {
		return nil, err
	}

	// AddPolicy skips rules already loaded from storage.
	for _, p := range defaultPolicies {
		if _, err := e.AddPolicy(p[0], p[1], p[2]); err != nil {
			return nil, fmt.Errorf("seed policy %v: %w", p, err)
		}
	}

	return &Service{storage: s, enforcer: e, opts: opts, log: logging.Named("auth")}, nil
}

// SignupInput carries the fields of the signup form.
type SignupInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Category string `json:"category"`
}

// Signup registers a consumer. The email is the login identity and must be
// unique; the category is fixed for the account.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*storage.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email %q is not valid", ErrInvalidSignup, in.Email)
	}
	if len(in.Password) < 6 {
		return nil, fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidSignup)
	}
	category, err := tariff.ParseCategory(in.Category)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignup, err)
	}

	existing, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	role := RoleConsumer
	if s.opts.AdminEmail != "" && strings.EqualFold(s.opts.AdminEmail, email) {
		role = RoleAdmin
	}

	now := time.Now().UTC()
	u := storage.User{
		ID:           uuid.New().String(),
		Username:     strings.TrimSpace(in.Username),
		Email:        email,
		Phone:        strings.TrimSpace(in.Phone),
		Category:     string(category),
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if u.Username == "" {
		u.Username = email
	}

	// The lookup above is only a fast path; the store enforces uniqueness.
	if err := s.storage.CreateUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	if _, err := s.enforcer.AddGroupingPolicy(u.ID, role); err != nil {
		return nil, fmt.Errorf("assign role: %w", err)
	}

	s.log.Info("user signed up", zap.String("user_id", u.ID), zap.String("category", u.Category), zap.String("role", role))
	return &u, nil
}

// Authenticate checks an email/password pair.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*storage.User, error) {
	u, err := s.storage.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Login authenticates and issues a session token with the configured TTL.
// The raw token is only returned here; storage keeps its hash.
func (s *Service) Login(ctx context.Context, email, password string) (*storage.User, string, *storage.Token, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, "", nil, err
	}
	expiresAt, err := ParseExpirationDuration(s.opts.TokenTTL)
	if err != nil {
		return nil, "", nil, err
	}
	t, raw, err := s.CreateToken(ctx, u.ID, "login", u.Role, expiresAt)
	if err != nil {
		return nil, "", nil, err
	}
	return u, raw, t, nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (s *Service) CreateToken(ctx context.Context, userID, name, role string, expiresAt *time.Time) (*storage.Token, string, error) {
	rawToken := uuid.New().String() + uuid.New().String()

	t := storage.Token{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		TokenHash: hashToken(rawToken),
		Role:      role,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}

	if err := s.storage.CreateToken(ctx, t); err != nil {
		return nil, "", err
	}

	return &t, rawToken, nil
}

func (s *Service) ValidateToken(ctx context.Context, rawToken string) (*storage.Token, error) {
	t, err := s.storage.GetTokenByHash(ctx, hashToken(rawToken))
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrInvalidToken
	}
	if t.ExpiresAt != nil && t.ExpiresAt.Before(time.Now()) {
		return nil, ErrTokenExpired
	}

	if err := s.storage.UpdateTokenLastUsed(ctx, t.ID); err != nil {
		s.log.Warn("touch token failed", zap.String("token_id", t.ID), zap.Error(err))
	}
	return t, nil
}

// Logout revokes a token.
func (s *Service) Logout(ctx context.Context, tokenID string) error {
	return s.storage.DeleteToken(ctx, tokenID)
}

func (s *Service) Enforce(sub, obj, act string) (bool, error) {
	return s.enforcer.Enforce(sub, obj, act)
}

// HasRole reports whether the user was granted role.
func (s *Service) HasRole(userID, role string) (bool, error) {
	return s.enforcer.HasRoleForUser(userID, role)
}
