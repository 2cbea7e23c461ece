// Package model defines the GORM-mapped entities the relay persists.
package model

import "time"

// Agent is a server-side worker identified by an opaque agent_id.
type Agent struct {
	ID          string `gorm:"column:id;type:varchar(64);primaryKey"`
	DisplayName string `gorm:"column:display_name;type:varchar(255);not null"`
	SecretHash  string `gorm:"column:secret_hash;type:varchar(128);not null"`
	TenantID    string `gorm:"column:tenant_id;type:varchar(64);index"`
	LastSeenAt  int64  `gorm:"column:last_seen_at"`
	CreatedAt   int64  `gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt   int64  `gorm:"column:updated_at;autoUpdateTime:milli"`
}

func (Agent) TableName() string { return "agents" }

// Device is a paired browser instance bound to exactly one Agent.
type Device struct {
	ID         string `gorm:"column:id;type:varchar(64);primaryKey"`
	AgentID    string `gorm:"column:agent_id;type:varchar(64);not null;index"`
	Label      string `gorm:"column:label;type:varchar(255)"`
	TenantID   string `gorm:"column:tenant_id;type:varchar(64);index"`
	LastSeenAt int64  `gorm:"column:last_seen_at"`
	CreatedAt  int64  `gorm:"column:created_at;autoCreateTime:milli"`
}

func (Device) TableName() string { return "devices" }

// PairingCode is an ephemeral handle binding an agent to a future device.
type PairingCode struct {
	Code      string `gorm:"column:code;type:varchar(8);primaryKey"`
	AgentID   string `gorm:"column:agent_id;type:varchar(64);not null;uniqueIndex"`
	ExpiresAt int64  `gorm:"column:expires_at;not null"`
	Attempts  int    `gorm:"column:attempts;not null;default:0"`
}

func (PairingCode) TableName() string { return "pairings" }

// RefreshToken is stored only as a digest of the opaque bearer value.
type RefreshToken struct {
	TokenHash string `gorm:"column:token_hash;type:varchar(64);primaryKey"`
	DeviceID  string `gorm:"column:device_id;type:varchar(64);not null;index"`
	AgentID   string `gorm:"column:agent_id;type:varchar(64);not null"`
	ExpiresAt int64  `gorm:"column:expires_at;not null"`
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

// Account is a billing identity behind the freemium account layer.
type Account struct {
	ID                   string `gorm:"column:id;type:varchar(64);primaryKey"`
	Email                string `gorm:"column:email;type:varchar(255);not null;uniqueIndex"`
	Provider             string `gorm:"column:provider;type:varchar(32);not null"`
	StripeCustomerID     string `gorm:"column:stripe_customer_id;type:varchar(64)"`
	StripeSubscriptionID string `gorm:"column:stripe_subscription_id;type:varchar(64)"`
	Plan                 string `gorm:"column:plan;type:varchar(16);not null;default:free"`
	SubscriptionStatus   string `gorm:"column:subscription_status;type:varchar(32)"`
	CreatedAt            int64  `gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt            int64  `gorm:"column:updated_at;autoUpdateTime:milli"`
}

func (Account) TableName() string { return "accounts" }

// AccountSession is a browser login cookie, upserted on re-auth.
type AccountSession struct {
	TokenHash string `gorm:"column:token_hash;type:varchar(64);primaryKey"`
	AccountID string `gorm:"column:account_id;type:varchar(64);not null;index"`
	ExpiresAt int64  `gorm:"column:expires_at;not null"`
}

func (AccountSession) TableName() string { return "account_sessions" }

// AccountAgent links an account to an agent it has paired.
type AccountAgent struct {
	AccountID string `gorm:"column:account_id;type:varchar(64);primaryKey"`
	AgentID   string `gorm:"column:agent_id;type:varchar(64);primaryKey"`
	CreatedAt int64  `gorm:"column:created_at;autoCreateTime:milli"`
}

func (AccountAgent) TableName() string { return "account_agents" }

// RateCounter holds one row per key for its current fixed window, used for pairing
// attempts and token operations.
type RateCounter struct {
	Key         string `gorm:"column:key;type:varchar(128);primaryKey"`
	Count       int    `gorm:"column:count;not null;default:0"`
	WindowStart int64  `gorm:"column:window_start;not null"`
}

func (RateCounter) TableName() string { return "rate_counters" }

// All returns every model type, for AutoMigrate call sites.
func All() []interface{} {
	return []interface{}{
		&Agent{}, &Device{}, &PairingCode{}, &RefreshToken{},
		&Account{}, &AccountSession{}, &AccountAgent{}, &RateCounter{},
	}
}

// UnixMilli is a small helper kept next to the models it timestamps.
func UnixMilli(t time.Time) int64 { return t.UnixMilli() }
