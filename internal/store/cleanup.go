package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"agentrelay/internal/model"
)

// Cleanup deletes expired refresh tokens, expired pairing codes, and rate
// counters older than an hour. It is safe to call repeatedly; a background
// sweep driven by the Router's ticker is its usual caller.
func (s *Store) Cleanup(ctx context.Context, now time.Time) error {
	nowMillis := now.UnixMilli()
	hourAgo := now.Add(-time.Hour).UnixMilli()

	return s.withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Delete(&model.RefreshToken{}, "expires_at < ?", nowMillis).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.PairingCode{}, "expires_at < ?", nowMillis).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.RateCounter{}, "window_start < ?", hourAgo).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.AccountSession{}, "expires_at < ?", nowMillis).Error; err != nil {
			return err
		}
		return nil
	})
}
