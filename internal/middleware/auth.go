// Package middleware holds gin middleware shared across the HTTP
// surface: access-token/session authentication and per-key rate limits.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"agentrelay/internal/apierr"
	"agentrelay/internal/auth"
)

const (
	contextDeviceID = "device_id"
	contextAgentID  = "agent_id"
	contextTenantID = "tenant_id"
)

// RequireAccessToken validates the bearer access JWT and stores its
// claims on the gin context for downstream handlers.
func RequireAccessToken(tc auth.TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			apierr.WriteHTTP(c, apierr.New(apierr.Unauthorized, "missing access token"))
			return
		}

		claims, err := tc.VerifyToken(token)
		if err != nil {
			if apiErr, ok := err.(*apierr.Error); ok {
				apierr.WriteHTTP(c, apiErr)
				return
			}
			apierr.WriteHTTP(c, apierr.New(apierr.TokenInvalid, "access token invalid"))
			return
		}

		c.Set(contextDeviceID, claims.Subject)
		c.Set(contextAgentID, claims.AgentID)
		c.Set(contextTenantID, claims.TenantID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("access_token")
}

// DeviceIDFromContext returns the access token's subject claim.
func DeviceIDFromContext(c *gin.Context) string {
	v, _ := c.Get(contextDeviceID)
	s, _ := v.(string)
	return s
}

// AgentIDFromContext returns the access token's agent_id claim.
func AgentIDFromContext(c *gin.Context) string {
	v, _ := c.Get(contextAgentID)
	s, _ := v.(string)
	return s
}

// TenantIDFromContext returns the access token's tenant_id claim.
func TenantIDFromContext(c *gin.Context) string {
	v, _ := c.Get(contextTenantID)
	s, _ := v.(string)
	return s
}
