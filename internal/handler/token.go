package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"agentrelay/internal/apierr"
	"agentrelay/internal/auth"
)

// TokenHandler implements POST /api/token/refresh.
type TokenHandler struct {
	Deps
}

func NewTokenHandler(d Deps) *TokenHandler { return &TokenHandler{Deps: d} }

type tokenRefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh implements the token-refresh contract from spec.md §4.2: look
// up the presented token's digest, and if live, rotate it in one batch.
func (h *TokenHandler) Refresh(c *gin.Context) {
	var req tokenRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.WriteHTTP(c, apierr.New(apierr.Unauthorized, "invalid request body"))
		return
	}

	ctx := c.Request.Context()
	now := time.Now()
	oldHash := auth.HashOpaqueToken(req.RefreshToken)

	existing, err := h.Store.FindRefreshToken(ctx, oldHash, now)
	if err != nil {
		apierr.WriteHTTP(c, apierr.Internal(err))
		return
	}
	if existing == nil {
		apierr.WriteHTTP(c, apierr.New(apierr.Unauthorized, "refresh token absent, expired, or already rotated"))
		return
	}

	newToken, newHash, err := auth.GenerateRefreshToken()
	if err != nil {
		apierr.WriteHTTP(c, apierr.Internal(err))
		return
	}
	newExpiry := now.Add(h.Cfg.RefreshTTL())

	if err := h.Store.RotateRefreshToken(ctx, oldHash, newHash, existing.DeviceID, existing.AgentID, newExpiry); err != nil {
		apierr.WriteHTTP(c, apierr.Internal(err))
		return
	}

	device, err := h.Store.FindDeviceByID(ctx, existing.DeviceID)
	if err != nil {
		apierr.WriteHTTP(c, apierr.Internal(err))
		return
	}
	tenantID := ""
	if device != nil {
		tenantID = device.TenantID
	}

	accessToken, expiresAt, err := h.TokenConfig.CreateToken(existing.DeviceID, existing.AgentID, tenantID)
	if err != nil {
		apierr.WriteHTTP(c, apierr.Internal(err))
		return
	}

	c.JSON(200, gin.H{
		"access_token":  accessToken,
		"refresh_token": newToken,
		"expires_in":    int(expiresAt.Sub(now).Seconds()),
		"token_type":    "Bearer",
	})
}
