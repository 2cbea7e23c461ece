package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"agentrelay/internal/model"
)

// RateCheck implements a fixed-window counter: the first hit for a key
// inserts a fresh window, a hit inside an expired window resets it, and
// anything else increments-and-compares against max.
func (s *Store) RateCheck(ctx context.Context, key string, max int, windowSeconds int, now time.Time) (bool, error) {
	allowed := false
	windowMillis := int64(windowSeconds) * 1000
	err := withRetry(func() error {
		return s.withTx(ctx, func(tx *gorm.DB) error {
			var rc model.RateCounter
			err := tx.First(&rc, "key = ?", key).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				rc = model.RateCounter{Key: key, Count: 1, WindowStart: now.UnixMilli()}
				allowed = true
				return tx.Create(&rc).Error
			case err != nil:
				return err
			}

			if now.UnixMilli()-rc.WindowStart > windowMillis {
				rc.Count = 1
				rc.WindowStart = now.UnixMilli()
				allowed = true
				return tx.Save(&rc).Error
			}

			if rc.Count >= max {
				allowed = false
				return nil
			}
			rc.Count++
			allowed = true
			return tx.Save(&rc).Error
		})
	})
	if err != nil {
		return false, err
	}
	return allowed, nil
}
