package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"agentrelay/internal/apierr"
	"agentrelay/internal/store"
)

// RateLimit gates a route with the Store's fixed-window RateCheck, keyed
// by keyFn(c) and bounded to max hits per windowSeconds.
func RateLimit(st *store.Store, max, windowSeconds int, keyFn func(c *gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := st.RateCheck(c.Request.Context(), keyFn(c), max, windowSeconds, time.Now())
		if err != nil {
			apierr.WriteHTTP(c, apierr.Internal(err))
			return
		}
		if !allowed {
			apierr.WriteHTTP(c, apierr.New(apierr.RateLimited, "rate limit exceeded"))
			return
		}
		c.Next()
	}
}

// PairingRateKey scopes the pairing rate limit to the caller's IP, per
// spec.md's "{ip}:pairing" key shape.
func PairingRateKey(c *gin.Context) string {
	return c.ClientIP() + ":pairing"
}
