package storage

import "time"

// User is a registered consumer. Category is fixed at signup and selects the
// tariff table.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;column:id"`
	Username     string    `json:"username" gorm:"column:username"`
	Email        string    `json:"email" gorm:"uniqueIndex;column:email"`
	Phone        string    `json:"phone" gorm:"column:phone"`
	Category     string    `json:"category" gorm:"column:category"`
	PasswordHash string    `json:"-" gorm:"column:password_hash"`
	Role         string    `json:"role" gorm:"column:role"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// UsageEvent is one saved appliance usage with the breakdown computed when
// it was saved. Events are never edited, only deleted.
type UsageEvent struct {
	ID            string    `json:"id" gorm:"primaryKey;column:id"`
	UserID        string    `json:"user_id" gorm:"index;column:user_id"`
	ApplianceID   string    `json:"appliance_id,omitempty" gorm:"column:appliance_id"`
	ApplianceName string    `json:"appliance_name" gorm:"column:appliance_name"`
	ApplianceIcon string    `json:"appliance_icon,omitempty" gorm:"column:appliance_icon"`
	PowerWatts    float64   `json:"power_watts" gorm:"column:power_watts"`
	Hours         int       `json:"hours" gorm:"column:hours"`
	Minutes       int       `json:"minutes" gorm:"column:minutes"`
	Units         float64   `json:"units" gorm:"column:units"`
	RatePerUnit   float64   `json:"rate_per_unit" gorm:"column:rate_per_unit"`
	EnergyCost    float64   `json:"energy_cost" gorm:"column:energy_cost"`
	FixedCharge   float64   `json:"fixed_charge" gorm:"column:fixed_charge"`
	TotalCost     float64   `json:"total_cost" gorm:"column:total_cost"`
	CreatedAt     time.Time `json:"created_at" gorm:"column:created_at"`
}

// Token represents an API access token.
type Token struct {
	ID         string     `json:"id" gorm:"primaryKey;column:id"`
	UserID     string     `json:"user_id" gorm:"index;column:user_id"`
	Name       string     `json:"name" gorm:"column:name"`
	TokenHash  string     `json:"-" gorm:"uniqueIndex;column:token_hash"`
	Role       string     `json:"role" gorm:"column:role"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" gorm:"column:expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" gorm:"column:last_used_at"`
}

// CasbinRule represents a policy rule for RBAC.
type CasbinRule struct {
	ID    uint   `gorm:"primaryKey"`
	PType string `json:"ptype" gorm:"column:ptype"`
	V0    string `json:"v0" gorm:"column:v0"`
	V1    string `json:"v1" gorm:"column:v1"`
	V2    string `json:"v2" gorm:"column:v2"`
	V3    string `json:"v3" gorm:"column:v3"`
	V4    string `json:"v4" gorm:"column:v4"`
	V5    string `json:"v5" gorm:"column:v5"`
}

// Values returns the non-empty rule fields in order.
func (r CasbinRule) Values() []string {
	all := []string{r.V0, r.V1, r.V2, r.V3, r.V4, r.V5}
	n := len(all)
	for n > 0 && all[n-1] == "" {
		n--
	}
	return all[:n]
}

// NewCasbinRule packs a policy line into a CasbinRule.
func NewCasbinRule(ptype string, rule []string) CasbinRule {
	r := CasbinRule{PType: ptype}
	fields := []*string{&r.V0, &r.V1, &r.V2, &r.V3, &r.V4, &r.V5}
	for i, v := range rule {
		if i >= len(fields) {
			break
		}
		*fields[i] = v
	}
	return r
}

// Setting is a key/value runtime setting.
type Setting struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// ScheduledJob records the last run of a background job.
type ScheduledJob struct {
	Name           string    `json:"name" gorm:"primaryKey;column:name"`
	LastRunAt      time.Time `json:"last_run_at" gorm:"column:last_run_at"`
	LastDurationMs int64     `json:"last_duration_ms" gorm:"column:last_duration_ms"`
	LastSuccess    bool      `json:"last_success" gorm:"column:last_success"`
	LastError      string    `json:"last_error,omitempty" gorm:"column:last_error"`
}

// EmailConfig holds configuration for email notifications.
type EmailConfig struct {
	ID          string    `json:"id" gorm:"primaryKey;column:id"`
	Provider    string    `json:"provider" gorm:"column:provider"` // "smtp", "sendgrid", "gmail", "resend"
	Host        string    `json:"host,omitempty" gorm:"column:host"`
	Port        int       `json:"port,omitempty" gorm:"column:port"`
	Username    string    `json:"username,omitempty" gorm:"column:username"`
	Password    string    `json:"password,omitempty" gorm:"column:password"`
	FromAddress string    `json:"from_address" gorm:"column:from_address"`
	FromName    string    `json:"from_name" gorm:"column:from_name"`
	APIKey      string    `json:"api_key,omitempty" gorm:"column:api_key"`
	Encryption  string    `json:"encryption,omitempty" gorm:"column:encryption"` // "none", "ssl", "tls"
	Enabled     bool      `json:"enabled" gorm:"column:enabled"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`
}
