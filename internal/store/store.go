// Package store is the relay's durable persistence layer: agents,
// devices, pairing codes, refresh tokens, accounts, and rate counters,
// backed by GORM with transactional batches where the spec requires
// atomicity.
package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"agentrelay/internal/apierr"
	"agentrelay/internal/model"
)

// Store is the single façade every other component talks to; it owns no
// business policy, only durable reads/writes.
type Store struct {
	db *gorm.DB
}

// New wraps an already-opened *gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open opens the configured database driver. Only sqlite is wired today;
// the driver switch exists so an operator can point GORM at a different
// dialect without touching relay logic.
func Open(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "", "sqlite":
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
}

// Migrate creates or updates every table the relay's models describe.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(model.All()...)
}

func (s *Store) withTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// DB exposes the underlying handle for tests that need to assert directly
// against the schema (e.g. the payload-opacity column scan).
func (s *Store) DB() *gorm.DB { return s.db }

// retryJitterMax bounds the backoff before retrying a transient failure on
// one of the idempotent operations (upsertAgent, touchAgentLastSeen,
// rateCheck), per spec.md's "retried once with jitter" requirement.
const retryJitterMax = 20 * time.Millisecond

// withRetry runs fn once, and again after a short jittered backoff if the
// first attempt failed with a transient error. *apierr.Error failures are
// domain/validation outcomes, not transport flakiness, so they return
// immediately without retrying.
func withRetry(fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		return err
	}
	time.Sleep(rand.N(retryJitterMax))
	return fn()
}
