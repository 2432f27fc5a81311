package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/bher20/wattscope/internal/logging"
)

// GormStorage implements Storage on SQLite or PostgreSQL through gorm.
type GormStorage struct {
	db *gorm.DB

	mu sync.Mutex
	// lockConns pins the connection holding each postgres session lock so
	// the unlock runs on the same session.
	lockConns map[int64]*sql.Conn
	// localLocks serve sqlite, which runs single-instance.
	localLocks map[int64]bool
}

// gormLogConfig keeps slow queries and errors but drops "record not found",
// which the lookups below treat as (nil, nil).
func gormLogConfig() logger.Config {
	return logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	}
}

func NewGormStorage(driver, dsn string) (*GormStorage, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.New(zap.NewStdLog(logging.Named("gorm")), gormLogConfig()),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	return &GormStorage{
		db:         db,
		lockConns:  make(map[int64]*sql.Conn),
		localLocks: make(map[int64]bool),
	}, nil
}

// Migrate creates or updates every table the backend needs.
func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&User{},
		&UsageEvent{},
		&Token{},
		&CasbinRule{},
		&Setting{},
		&EmailConfig{},
		&ScheduledJob{},
	)
}

func notFound[T any](v *T, err error) (*T, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

// Users

func (s *GormStorage) CreateUser(ctx context.Context, user User) error {
	return duplicate(s.db.WithContext(ctx).Create(&user).Error)
}

// duplicate maps unique-key violations to ErrDuplicate. Drivers without an
// error translator are matched on their message.
func duplicate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value") {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func (s *GormStorage) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	return notFound(&user, s.db.WithContext(ctx).First(&user, "id = ?", id).Error)
}

func (s *GormStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	return notFound(&user, s.db.WithContext(ctx).First(&user, "username = ?", username).Error)
}

func (s *GormStorage) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	return notFound(&user, s.db.WithContext(ctx).First(&user, "email = ?", email).Error)
}

func (s *GormStorage) UpdateUser(ctx context.Context, user User) error {
	return s.db.WithContext(ctx).Save(&user).Error
}

func (s *GormStorage) DeleteUser(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&UsageEvent{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&Token{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&User{}, "id = ?", id).Error
	})
}

func (s *GormStorage) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	result := s.db.WithContext(ctx).Order("created_at").Find(&users)
	return users, result.Error
}

// Usage events

func (s *GormStorage) CreateUsageEvent(ctx context.Context, ev UsageEvent) error {
	return s.db.WithContext(ctx).Create(&ev).Error
}

func (s *GormStorage) GetUsageEvent(ctx context.Context, id string) (*UsageEvent, error) {
	var ev UsageEvent
	return notFound(&ev, s.db.WithContext(ctx).First(&ev, "id = ?", id).Error)
}

func (s *GormStorage) ListUsageEvents(ctx context.Context, userID string) ([]UsageEvent, error) {
	var events []UsageEvent
	result := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Order("id desc").
		Find(&events)
	return events, result.Error
}

func (s *GormStorage) DeleteUsageEvent(ctx context.Context, userID, id string) (bool, error) {
	result := s.db.WithContext(ctx).Delete(&UsageEvent{}, "id = ? AND user_id = ?", id, userID)
	return result.RowsAffected > 0, result.Error
}

// Tokens

func (s *GormStorage) CreateToken(ctx context.Context, token Token) error {
	return s.db.WithContext(ctx).Create(&token).Error
}

func (s *GormStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	var token Token
	return notFound(&token, s.db.WithContext(ctx).First(&token, "token_hash = ?", hash).Error)
}

func (s *GormStorage) ListTokens(ctx context.Context, userID string) ([]Token, error) {
	var tokens []Token
	result := s.db.WithContext(ctx).Find(&tokens, "user_id = ?", userID)
	return tokens, result.Error
}

func (s *GormStorage) DeleteToken(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&Token{}, "id = ?", id).Error
}

func (s *GormStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&Token{}).Where("id = ?", id).Update("last_used_at", time.Now()).Error
}

// Casbin rules

func (s *GormStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	var rules []CasbinRule
	result := s.db.WithContext(ctx).Order("id").Find(&rules)
	return rules, result.Error
}

func (s *GormStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	rule.ID = 0
	return s.db.WithContext(ctx).Create(&rule).Error
}

func (s *GormStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	return s.db.WithContext(ctx).
		Where("ptype = ? AND v0 = ? AND v1 = ? AND v2 = ? AND v3 = ? AND v4 = ? AND v5 = ?",
			rule.PType, rule.V0, rule.V1, rule.V2, rule.V3, rule.V4, rule.V5).
		Delete(&CasbinRule{}).Error
}

// Settings

func (s *GormStorage) GetSetting(ctx context.Context, key string) (string, error) {
	var setting Setting
	result := s.db.WithContext(ctx).First(&setting, "key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", result.Error
	}
	return setting.Value, nil
}

func (s *GormStorage) SetSetting(ctx context.Context, key, value string) error {
	setting := Setting{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&setting).Error
}

// Email config

func (s *GormStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	var config EmailConfig
	return notFound(&config, s.db.WithContext(ctx).First(&config, "id = ?", "default").Error)
}

func (s *GormStorage) SaveEmailConfig(ctx context.Context, config EmailConfig) error {
	// Single row.
	config.ID = "default"
	now := time.Now()
	if config.CreatedAt.IsZero() {
		config.CreatedAt = now
	}
	config.UpdatedAt = now
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&config).Error
}

// Close & Ping

func (s *GormStorage) Close() error {
	s.mu.Lock()
	for key, conn := range s.lockConns {
		conn.Close()
		delete(s.lockConns, key)
	}
	s.mu.Unlock()

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Stats reports the connection pool state for the metrics collector.
func (s *GormStorage) Stats() (PoolStats, error) {
	sqlDB, err := s.db.DB()
	if err != nil {
		return PoolStats{}, err
	}
	st := sqlDB.Stats()
	return PoolStats{
		Open:      st.OpenConnections,
		Idle:      st.Idle,
		InUse:     st.InUse,
		WaitCount: st.WaitCount,
	}, nil
}

// Scheduled jobs & locking

// AcquireAdvisoryLock takes a postgres session lock on a connection it keeps
// out of the pool until ReleaseAdvisoryLock. On sqlite the lock is
// process-local.
func (s *GormStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db.Dialector.Name() != "postgres" {
		if s.localLocks[key] {
			return false, nil
		}
		s.localLocks[key] = true
		return true, nil
	}

	if _, held := s.lockConns[key]; held {
		return false, nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return false, err
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok); err != nil {
		conn.Close()
		return false, err
	}
	if !ok {
		conn.Close()
		return false, nil
	}
	s.lockConns[key] = conn
	return true, nil
}

// ReleaseAdvisoryLock unlocks on the pinned connection and returns it to the
// pool. It reports false when this instance did not hold the lock.
func (s *GormStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db.Dialector.Name() != "postgres" {
		held := s.localLocks[key]
		delete(s.localLocks, key)
		return held, nil
	}

	conn, held := s.lockConns[key]
	if !held {
		return false, nil
	}
	delete(s.lockConns, key)
	defer conn.Close()

	var ok bool
	err := conn.QueryRowContext(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
	if err != nil {
		// Drop the session instead of pooling it with the lock still held.
		_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		return false, err
	}
	return ok, nil
}

func (s *GormStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	job := ScheduledJob{
		Name:           name,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    success,
		LastError:      errMsg,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(&job).Error
}

func (s *GormStorage) GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error) {
	var job ScheduledJob
	return notFound(&job, s.db.WithContext(ctx).First(&job, "name = ?", name).Error)
}
