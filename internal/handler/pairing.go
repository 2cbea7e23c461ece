package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"agentrelay/internal/apierr"
	"agentrelay/internal/auth"
	"agentrelay/internal/middleware"
	"agentrelay/internal/store"
)

// validate runs the cross-field checks gin's binding tags can't express on
// their own, such as the pairing code's fixed-length alphanumeric shape.
var validate = validator.New()

// PairingHandler implements POST /api/pair/start and /api/pair/complete.
type PairingHandler struct {
	Deps
}

func NewPairingHandler(d Deps) *PairingHandler { return &PairingHandler{Deps: d} }

type pairStartRequest struct {
	AgentID     string `json:"agent_id" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
	TenantID    string `json:"tenant_id"`
}

// Start implements the pair-start contract from spec.md §4.2: rate-check,
// upsert the agent, issue a fresh code that replaces any previous one.
func (h *PairingHandler) Start(c *gin.Context) {
	secret := bearerSecret(c)
	if secret == "" {
		apierr.WriteHTTP(c, apierr.New(apierr.Unauthorized, "missing agent secret"))
		return
	}

	var req pairStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.WriteHTTP(c, apierr.New(apierr.InvalidCredentials, "invalid request body"))
		return
	}

	ctx := c.Request.Context()
	now := time.Now()

	existing, err := h.Store.FindAgentByID(ctx, req.AgentID)
	if err != nil {
		apierr.WriteHTTP(c, apierr.Internal(err))
		return
	}

	secretHash := auth.HashSecret(secret)
	if existing != nil {
		if !auth.VerifyAgentSecret(existing.SecretHash, secret, h.Cfg.AllowLegacyGlobalAgentSecret, h.Cfg.LegacyGlobalAgentSecret) {
			apierr.WriteHTTP(c, apierr.New(apierr.AgentSecretMismatch, "agent secret mismatch"))
			return
		}
		secretHash = existing.SecretHash
	}

	if _, err := h.Store.UpsertAgent(ctx, req.AgentID, req.DisplayName, secretHash, req.TenantID); err != nil {
		writeStoreError(c, err)
		return
	}

	code, expiresAt, err := h.issuePairingWithRetry(ctx, req.AgentID, now)
	if err != nil {
		apierr.WriteHTTP(c, apierr.Internal(err))
		return
	}

	c.JSON(200, gin.H{"code": code, "expires_at": expiresAt.Unix(), "agent_id": req.AgentID})
}

const pairingGenerationRetries = 3

// issuePairingWithRetry generates a fresh code and persists it, retrying
// generation up to pairingGenerationRetries times on a storage collision.
func (h *PairingHandler) issuePairingWithRetry(ctx context.Context, agentID string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(h.Cfg.PairingTTL())

	var lastErr error
	for attempt := 0; attempt <= pairingGenerationRetries; attempt++ {
		code, err := auth.GeneratePairingCode()
		if err != nil {
			return "", time.Time{}, err
		}

		err = h.Store.IssuePairing(ctx, agentID, code, expiresAt)
		if err == nil {
			return code, expiresAt, nil
		}
		if !errors.Is(err, store.ErrPairingCollision) {
			return "", time.Time{}, err
		}
		lastErr = err
	}
	return "", time.Time{}, lastErr
}

type pairCompleteRequest struct {
	Code        string `json:"code" binding:"required"`
	DeviceLabel string `json:"device_label"`
}

// Complete implements the pair-complete contract from spec.md §4.2.
func (h *PairingHandler) Complete(c *gin.Context) {
	var req pairCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.WriteHTTP(c, apierr.New(apierr.PairingInvalid, "invalid request body"))
		return
	}

	code := strings.ToUpper(req.Code)
	if err := validate.Var(code, "required,alphanum,len=8"); err != nil {
		apierr.WriteHTTP(c, apierr.New(apierr.PairingInvalid, "malformed pairing code"))
		return
	}

	ctx := c.Request.Context()
	now := time.Now()

	agent, err := h.Store.ConsumePairing(ctx, code, now, h.Cfg.PairingMaxAttempts)
	if err != nil {
		writeStoreError(c, err)
		return
	}

	accountID := middleware.AccountIDFromContext(c)
	if accountID != "" {
		if apiErr := h.enforceFreemium(ctx, accountID, agent.ID); apiErr != nil {
			apierr.WriteHTTP(c, apiErr)
			return
		}
	}

	deviceID := uuid.NewString()
	if _, err := h.Store.CreateDevice(ctx, deviceID, agent.ID, req.DeviceLabel, agent.TenantID, now); err != nil {
		apierr.WriteHTTP(c, apierr.Internal(err))
		return
	}

	refreshToken, refreshHash, err := auth.GenerateRefreshToken()
	if err != nil {
		apierr.WriteHTTP(c, apierr.Internal(err))
		return
	}
	if err := h.Store.StoreRefreshToken(ctx, refreshHash, deviceID, agent.ID, now.Add(h.Cfg.RefreshTTL())); err != nil {
		apierr.WriteHTTP(c, apierr.Internal(err))
		return
	}

	accessToken, expiresAt, err := h.TokenConfig.CreateToken(deviceID, agent.ID, agent.TenantID)
	if err != nil {
		apierr.WriteHTTP(c, apierr.Internal(err))
		return
	}

	if accountID != "" {
		if err := h.Store.LinkAccountAgent(ctx, accountID, agent.ID); err != nil {
			apierr.WriteHTTP(c, apierr.Internal(err))
			return
		}
	}

	c.JSON(200, gin.H{
		"access_token":       accessToken,
		"refresh_token":      refreshToken,
		"expires_in":         int(expiresAt.Sub(now).Seconds()),
		"agent_id":           agent.ID,
		"agent_display_name": agent.DisplayName,
		"device_id":          deviceID,
	})
}

// enforceFreemium refuses a pair-complete that would exceed the account's
// agent allowance, unless the agent is already linked to this account.
func (h *PairingHandler) enforceFreemium(ctx context.Context, accountID, agentID string) *apierr.Error {
	account, err := h.Store.FindAccountByID(ctx, accountID)
	if err != nil {
		return apierr.Internal(err)
	}
	if account == nil || isUnlimitedPlan(account.Plan, account.SubscriptionStatus) {
		return nil
	}

	alreadyLinked, err := h.Store.IsAgentLinked(ctx, accountID, agentID)
	if err != nil {
		return apierr.Internal(err)
	}
	if alreadyLinked {
		return nil
	}

	count, err := h.Store.CountAccountAgents(ctx, accountID)
	if err != nil {
		return apierr.Internal(err)
	}
	if int(count) >= h.Cfg.FreeAgentLimit {
		return apierr.New(apierr.FreePlanLimit, "free plan agent limit reached")
	}
	return nil
}

func isUnlimitedPlan(plan, status string) bool {
	if plan != "pro" {
		return false
	}
	switch status {
	case "active", "trialing", "past_due":
		return true
	default:
		return false
	}
}

func bearerSecret(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func writeStoreError(c *gin.Context, err error) {
	if apiErr, ok := err.(*apierr.Error); ok {
		apierr.WriteHTTP(c, apiErr)
		return
	}
	apierr.WriteHTTP(c, apierr.Internal(err))
}
