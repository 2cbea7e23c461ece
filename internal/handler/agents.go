package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"agentrelay/internal/apierr"
	"agentrelay/internal/middleware"
)

// presenceWindowSec mirrors spec.md §4.7's online heuristic: an agent is
// marked online if it has been seen within the last 300 seconds.
const presenceWindowSec = 300

// AgentsHandler implements GET /api/agents and the supplemental
// device-revocation endpoints.
type AgentsHandler struct {
	Deps
}

func NewAgentsHandler(d Deps) *AgentsHandler { return &AgentsHandler{Deps: d} }

// List returns every agent sharing the caller device's tenant_id.
func (h *AgentsHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := middleware.TenantIDFromContext(c)
	deviceID := middleware.DeviceIDFromContext(c)

	agents, err := h.Store.AgentsByTenant(ctx, tenantID)
	if err != nil {
		apierr.WriteHTTP(c, apierr.Internal(err))
		return
	}

	now := time.Now().Unix()
	out := make([]gin.H, 0, len(agents))
	for _, a := range agents {
		lastSeenSec := a.LastSeenAt / 1000
		online := h.Router.IsAgentLive(a.ID) || now-lastSeenSec <= presenceWindowSec
		entry := gin.H{
			"id":           a.ID,
			"display_name": a.DisplayName,
			"online":       online,
		}
		if a.LastSeenAt > 0 {
			entry["last_seen_at"] = lastSeenSec
		}
		out = append(out, entry)
	}

	c.JSON(200, gin.H{"agents": out, "device_id": deviceID, "tenant_id": tenantID})
}

// RevokeDevice implements POST /api/agents/:id/revoke-device and DELETE
// /api/agents/:id/devices/:device_id: deletes the device row and any of
// its refresh tokens, and closes a live client socket for it with
// CloseCodePolicy.
func (h *AgentsHandler) RevokeDevice(c *gin.Context) {
	agentID := c.Param("id")
	deviceID := c.Param("device_id")
	if deviceID == "" {
		var body struct {
			DeviceID string `json:"device_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			apierr.WriteHTTP(c, apierr.New(apierr.InvalidCredentials, "device_id required"))
			return
		}
		deviceID = body.DeviceID
	}

	// Revocation always reports success to avoid confirming which device
	// ids exist, per spec.md §7's anti-enumeration policy for token-revoke
	// operations.
	_ = h.Store.RevokeDevice(c.Request.Context(), deviceID)
	h.Router.CloseClient(agentID, deviceID)

	c.JSON(200, gin.H{"status": "ok"})
}
