package storage

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicate is returned when a create would violate a unique key, such as
// a second user with the same email.
var ErrDuplicate = errors.New("storage: duplicate record")

// Storage abstracts persistence for consumers, their saved usage events and
// the auth/settings records around them. Lookups return (nil, nil) when the
// record does not exist.
type Storage interface {
	// Users
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]User, error)

	// Usage events
	CreateUsageEvent(ctx context.Context, ev UsageEvent) error
	GetUsageEvent(ctx context.Context, id string) (*UsageEvent, error)
	// ListUsageEvents returns a user's events, newest first.
	ListUsageEvents(ctx context.Context, userID string) ([]UsageEvent, error)
	// DeleteUsageEvent removes the event only if it belongs to userID and
	// reports whether anything was deleted.
	DeleteUsageEvent(ctx context.Context, userID, id string) (bool, error)

	// Tokens
	CreateToken(ctx context.Context, token Token) error
	GetTokenByHash(ctx context.Context, hash string) (*Token, error)
	ListTokens(ctx context.Context, userID string) ([]Token, error)
	DeleteToken(ctx context.Context, id string) error
	UpdateTokenLastUsed(ctx context.Context, id string) error

	// Casbin rules
	LoadCasbinRules(ctx context.Context) ([]CasbinRule, error)
	AddCasbinRule(ctx context.Context, rule CasbinRule) error
	RemoveCasbinRule(ctx context.Context, rule CasbinRule) error

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	GetEmailConfig(ctx context.Context) (*EmailConfig, error)
	SaveEmailConfig(ctx context.Context, config EmailConfig) error

	// Scheduled jobs
	AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error)
	UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error
	GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error)

	Ping(ctx context.Context) error
	// Close releases any resources (no-op for in-memory).
	Close() error
}

// PoolStats is a snapshot of the SQL connection pool.
type PoolStats struct {
	Open      int
	Idle      int
	InUse     int
	WaitCount int64
}

// StatsReporter is implemented by backends with a connection pool.
type StatsReporter interface {
	Stats() (PoolStats, error)
}
