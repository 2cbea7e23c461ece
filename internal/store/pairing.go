package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"agentrelay/internal/apierr"
	"agentrelay/internal/model"
)

// ErrPairingCollision signals a unique-constraint violation on the code
// column, letting the caller retry generation with a fresh code.
var ErrPairingCollision = errors.New("pairing code collision")

// IssuePairing atomically replaces any prior live code for agentID with a
// fresh one. A collision on the new code's primary key bubbles up as
// ErrPairingCollision so CredentialAuthority can regenerate.
func (s *Store) IssuePairing(ctx context.Context, agentID, code string, expiresAt time.Time) error {
	return s.withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Delete(&model.PairingCode{}, "agent_id = ?", agentID).Error; err != nil {
			return err
		}
		pc := model.PairingCode{Code: code, AgentID: agentID, ExpiresAt: expiresAt.UnixMilli()}
		if err := tx.Create(&pc).Error; err != nil {
			return ErrPairingCollision
		}
		return nil
	})
}

// ConsumePairing looks up a live code, increments its attempt counter,
// enforces the attempt and expiry bounds, and on success deletes the code
// and returns the bound agent snapshot.
func (s *Store) ConsumePairing(ctx context.Context, code string, now time.Time, maxAttempts int) (*model.Agent, error) {
	var agent *model.Agent
	// rejected carries a bounds failure out of the transaction, so the
	// transaction still commits the counted attempt and the row's deletion.
	var rejected *apierr.Error
	err := s.withTx(ctx, func(tx *gorm.DB) error {
		var pc model.PairingCode
		err := tx.First(&pc, "code = ?", code).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierr.New(apierr.PairingInvalid, "pairing code not found")
		}
		if err != nil {
			return err
		}

		pc.Attempts++
		if err := tx.Model(&model.PairingCode{}).Where("code = ?", code).Update("attempts", pc.Attempts).Error; err != nil {
			return err
		}

		if pc.Attempts > maxAttempts {
			rejected = apierr.New(apierr.PairingAttemptsOver, "pairing code attempts exceeded")
		} else if pc.ExpiresAt < now.UnixMilli() {
			rejected = apierr.New(apierr.PairingExpired, "pairing code expired")
		}
		if rejected != nil {
			return tx.Delete(&model.PairingCode{}, "code = ?", code).Error
		}

		var a model.Agent
		if err := tx.First(&a, "id = ?", pc.AgentID).Error; err != nil {
			return apierr.New(apierr.PairingInvalid, "bound agent no longer exists")
		}

		if err := tx.Delete(&model.PairingCode{}, "code = ?", code).Error; err != nil {
			return err
		}
		agent = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rejected != nil {
		return nil, rejected
	}
	return agent, nil
}
