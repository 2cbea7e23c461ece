package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"agentrelay/internal/model"
)

// CreateDevice records a newly paired browser instance.
func (s *Store) CreateDevice(ctx context.Context, deviceID, agentID, label, tenantID string, now time.Time) (*model.Device, error) {
	d := model.Device{
		ID:         deviceID,
		AgentID:    agentID,
		Label:      label,
		TenantID:   tenantID,
		LastSeenAt: now.UnixMilli(),
	}
	if err := s.db.WithContext(ctx).Create(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// FindDeviceByID returns nil, nil when no device exists with that id.
func (s *Store) FindDeviceByID(ctx context.Context, id string) (*model.Device, error) {
	var d model.Device
	err := s.db.WithContext(ctx).First(&d, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// TouchDeviceLastSeen is an idempotent field update.
func (s *Store) TouchDeviceLastSeen(ctx context.Context, id string, now time.Time) error {
	return s.db.WithContext(ctx).Model(&model.Device{}).
		Where("id = ?", id).
		Update("last_seen_at", now.UnixMilli()).Error
}

// RevokeDevice deletes a device and any refresh tokens bound to it, for
// admin-triggered revocation.
func (s *Store) RevokeDevice(ctx context.Context, deviceID string) error {
	return s.withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Delete(&model.RefreshToken{}, "device_id = ?", deviceID).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Device{}, "id = ?", deviceID).Error
	})
}
