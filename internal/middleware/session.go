package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"agentrelay/internal/apierr"
	"agentrelay/internal/auth"
	"agentrelay/internal/store"
)

const contextAccountID = "account_id"

// RequireAccountSession resolves the bearer account-session token against
// the Store and stores the resolved account id on the gin context.
func RequireAccountSession(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			apierr.WriteHTTP(c, apierr.New(apierr.Unauthorized, "missing account session"))
			return
		}

		account, err := st.ResolveSession(c.Request.Context(), auth.HashOpaqueToken(token), time.Now())
		if err != nil {
			apierr.WriteHTTP(c, apierr.Internal(err))
			return
		}
		if account == nil {
			apierr.WriteHTTP(c, apierr.New(apierr.Unauthorized, "account session invalid or expired"))
			return
		}

		c.Set(contextAccountID, account.ID)
		c.Next()
	}
}

// OptionalAccountSession resolves the bearer account-session token if
// present, but never fails the request when it is absent or invalid —
// used by pair-complete, where an account session is optional.
func OptionalAccountSession(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}
		account, err := st.ResolveSession(c.Request.Context(), auth.HashOpaqueToken(token), time.Now())
		if err == nil && account != nil {
			c.Set(contextAccountID, account.ID)
		}
		c.Next()
	}
}

// AccountIDFromContext returns the resolved account id, or "" if none.
func AccountIDFromContext(c *gin.Context) string {
	v, _ := c.Get(contextAccountID)
	s, _ := v.(string)
	return s
}
