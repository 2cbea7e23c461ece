package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"agentrelay/internal/model"
)

func onConflictDoNothing() clause.OnConflict {
	return clause.OnConflict{DoNothing: true}
}

// FindAccountByEmail returns nil, nil when no account has that email.
func (s *Store) FindAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	var a model.Account
	err := s.db.WithContext(ctx).First(&a, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindAccountByStripeCustomerID supports webhook handlers that only carry
// a Stripe customer id, not an internal account id.
func (s *Store) FindAccountByStripeCustomerID(ctx context.Context, customerID string) (*model.Account, error) {
	var a model.Account
	err := s.db.WithContext(ctx).First(&a, "stripe_customer_id = ?", customerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAccount inserts a new billing identity, defaulting to the free plan.
func (s *Store) CreateAccount(ctx context.Context, id, email, provider string) (*model.Account, error) {
	a := model.Account{ID: id, Email: email, Provider: provider, Plan: "free"}
	if err := s.db.WithContext(ctx).Create(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// UpsertSession replaces any prior session digest for accountID and stores
// the new one, matching AccountSession's "upsert on re-auth" invariant.
func (s *Store) UpsertSession(ctx context.Context, tokenHash, accountID string, expiresAt time.Time) error {
	return s.withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Delete(&model.AccountSession{}, "account_id = ?", accountID).Error; err != nil {
			return err
		}
		sess := model.AccountSession{TokenHash: tokenHash, AccountID: accountID, ExpiresAt: expiresAt.UnixMilli()}
		return tx.Create(&sess).Error
	})
}

// ResolveSession returns nil, nil when the digest is absent or expired.
func (s *Store) ResolveSession(ctx context.Context, tokenHash string, now time.Time) (*model.Account, error) {
	var sess model.AccountSession
	err := s.db.WithContext(ctx).First(&sess, "token_hash = ?", tokenHash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if sess.ExpiresAt < now.UnixMilli() {
		return nil, nil
	}
	return s.FindAccountByID(ctx, sess.AccountID)
}

// FindAccountByID returns nil, nil when no account exists with that id.
func (s *Store) FindAccountByID(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// LinkAccountAgent is a no-op if the pair already exists.
func (s *Store) LinkAccountAgent(ctx context.Context, accountID, agentID string) error {
	link := model.AccountAgent{AccountID: accountID, AgentID: agentID}
	err := s.db.WithContext(ctx).Clauses(onConflictDoNothing()).Create(&link).Error
	return err
}

// CountAccountAgents reports how many distinct agents accountID has linked.
func (s *Store) CountAccountAgents(ctx context.Context, accountID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.AccountAgent{}).Where("account_id = ?", accountID).Count(&n).Error
	return n, err
}

// IsAgentLinked reports whether accountID already links agentID.
func (s *Store) IsAgentLinked(ctx context.Context, accountID, agentID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.AccountAgent{}).
		Where("account_id = ? AND agent_id = ?", accountID, agentID).Count(&n).Error
	return n > 0, err
}

// ReplaceAccountAgents atomically resets accountID's agent links to
// exactly agentIDs, used by the sync-agents billing endpoint.
func (s *Store) ReplaceAccountAgents(ctx context.Context, accountID string, agentIDs []string) error {
	return s.withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Delete(&model.AccountAgent{}, "account_id = ?", accountID).Error; err != nil {
			return err
		}
		for _, id := range agentIDs {
			link := model.AccountAgent{AccountID: accountID, AgentID: id}
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateAccountBilling applies a webhook-driven plan transition.
func (s *Store) UpdateAccountBilling(ctx context.Context, accountID, customerID, subscriptionID, plan, status string) error {
	updates := map[string]interface{}{
		"plan":                   plan,
		"subscription_status":    status,
	}
	if customerID != "" {
		updates["stripe_customer_id"] = customerID
	}
	if subscriptionID != "" {
		updates["stripe_subscription_id"] = subscriptionID
	}
	return s.db.WithContext(ctx).Model(&model.Account{}).Where("id = ?", accountID).Updates(updates).Error
}
