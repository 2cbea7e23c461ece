package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"agentrelay/internal/apierr"
	"agentrelay/internal/model"
)

// UpsertAgent inserts a new agent or, if one already exists with the same
// id, updates its non-secret fields provided secretHash matches. A
// mismatched secret on an existing agent fails AGENT_SECRET_MISMATCH
// because secret_hash is write-once.
func (s *Store) UpsertAgent(ctx context.Context, id, displayName, secretHash, tenantID string) (*model.Agent, error) {
	var out *model.Agent
	err := withRetry(func() error {
		return s.withTx(ctx, func(tx *gorm.DB) error {
			var existing model.Agent
			err := tx.First(&existing, "id = ?", id).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				a := model.Agent{
					ID:          id,
					DisplayName: displayName,
					SecretHash:  secretHash,
					TenantID:    tenantID,
				}
				if err := tx.Create(&a).Error; err != nil {
					return err
				}
				out = &a
				return nil
			case err != nil:
				return err
			}

			if existing.SecretHash != secretHash {
				return apierr.New(apierr.AgentSecretMismatch, "agent secret does not match stored secret")
			}

			existing.DisplayName = displayName
			existing.TenantID = tenantID
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			out = &existing
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindAgentByID returns nil, nil when no agent exists with that id.
func (s *Store) FindAgentByID(ctx context.Context, id string) (*model.Agent, error) {
	var a model.Agent
	err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// TouchAgentLastSeen is an idempotent field update, safe to retry.
func (s *Store) TouchAgentLastSeen(ctx context.Context, id string, now time.Time) error {
	return withRetry(func() error {
		return s.db.WithContext(ctx).Model(&model.Agent{}).
			Where("id = ?", id).
			Update("last_seen_at", now.UnixMilli()).Error
	})
}

// AgentsByTenant lists every agent sharing tenantID, or every agent with a
// NULL/empty tenant when tenantID is empty (treated as its own group).
func (s *Store) AgentsByTenant(ctx context.Context, tenantID string) ([]model.Agent, error) {
	var agents []model.Agent
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("display_name").
		Find(&agents).Error
	return agents, err
}
