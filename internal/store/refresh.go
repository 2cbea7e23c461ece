package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"agentrelay/internal/model"
)

// StoreRefreshToken inserts a new refresh token digest.
func (s *Store) StoreRefreshToken(ctx context.Context, tokenHash, deviceID, agentID string, expiresAt time.Time) error {
	rt := model.RefreshToken{
		TokenHash: tokenHash,
		DeviceID:  deviceID,
		AgentID:   agentID,
		ExpiresAt: expiresAt.UnixMilli(),
	}
	return s.db.WithContext(ctx).Create(&rt).Error
}

// FindRefreshToken returns nil, nil when the digest is absent or expired;
// expired rows are not deleted here, that is cleanup's job.
func (s *Store) FindRefreshToken(ctx context.Context, tokenHash string, now time.Time) (*model.RefreshToken, error) {
	var rt model.RefreshToken
	err := s.db.WithContext(ctx).First(&rt, "token_hash = ?", tokenHash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rt.ExpiresAt < now.UnixMilli() {
		return nil, nil
	}
	return &rt, nil
}

// RotateRefreshToken deletes oldHash and inserts newHash in a single
// transaction, so the two digests are never both valid.
func (s *Store) RotateRefreshToken(ctx context.Context, oldHash, newHash, deviceID, agentID string, newExpires time.Time) error {
	return s.withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Delete(&model.RefreshToken{}, "token_hash = ?", oldHash).Error; err != nil {
			return err
		}
		rt := model.RefreshToken{
			TokenHash: newHash,
			DeviceID:  deviceID,
			AgentID:   agentID,
			ExpiresAt: newExpires.UnixMilli(),
		}
		return tx.Create(&rt).Error
	})
}
