package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"agentrelay/internal/apierr"
	"agentrelay/internal/auth"
	"agentrelay/internal/middleware"
)

// BillingHandler implements the account-auth and Stripe-backed billing
// endpoints under /api/billing.
type BillingHandler struct {
	Deps
	httpClient *http.Client
}

func NewBillingHandler(d Deps) *BillingHandler {
	return &BillingHandler{Deps: d, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

type authGoogleRequest struct {
	GoogleAccessToken string `json:"google_access_token" binding:"required"`
}

// AuthGoogle exchanges an already-obtained Google access token for an
// account session; the relay never drives the OAuth flow itself, it only
// calls Google's userinfo endpoint with the bearer the client already
// holds.
func (h *BillingHandler) AuthGoogle(c *gin.Context) {
	var req authGoogleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.WriteHTTP(c, apierr.New(apierr.InvalidCredentials, "invalid request body"))
		return
	}

	email, err := h.fetchGoogleEmail(req.GoogleAccessToken)
	if err != nil {
		apierr.WriteHTTP(c, apierr.New(apierr.InvalidCredentials, "could not verify google access token"))
		return
	}

	h.issueAccountSession(c, email, "google")
}

func (h *BillingHandler) fetchGoogleEmail(accessToken string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, "https://www.googleapis.com/oauth2/v3/userinfo", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", apierr.New(apierr.InvalidCredentials, "google userinfo request failed")
	}

	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.Email == "" {
		return "", apierr.New(apierr.InvalidCredentials, "google userinfo missing email")
	}
	return body.Email, nil
}

type authChromeProfileRequest struct {
	Email           string `json:"email" binding:"required"`
	ChromeProfileID string `json:"chrome_profile_id"`
}

// AuthChromeProfile is the lighter-weight login path for the extension's
// Chrome-profile identity, bypassing a full OAuth round trip.
func (h *BillingHandler) AuthChromeProfile(c *gin.Context) {
	var req authChromeProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.WriteHTTP(c, apierr.New(apierr.InvalidCredentials, "invalid request body"))
		return
	}
	h.issueAccountSession(c, req.Email, "chrome-profile")
}

func (h *BillingHandler) issueAccountSession(c *gin.Context, email, provider string) {
	ctx := c.Request.Context()
	now := time.Now()

	account, err := h.Store.FindAccountByEmail(ctx, email)
	if err != nil {
		apierr.WriteHTTP(c, apierr.Internal(err))
		return
	}
	if account == nil {
		account, err = h.Store.CreateAccount(ctx, uuid.NewString(), email, provider)
		if err != nil {
			apierr.WriteHTTP(c, apierr.Internal(err))
			return
		}
	}

	token, hash, err := auth.GenerateAccountSessionToken()
	if err != nil {
		apierr.WriteHTTP(c, apierr.Internal(err))
		return
	}
	expiresAt := now.Add(8 * time.Hour)
	if err := h.Store.UpsertSession(ctx, hash, account.ID, expiresAt); err != nil {
		apierr.WriteHTTP(c, apierr.Internal(err))
		return
	}

	c.JSON(200, gin.H{
		"session_token": token,
		"account": gin.H{
			"account_id": account.ID,
			"email":      account.Email,
			"plan":       account.Plan,
		},
		"expires_at": expiresAt.Unix(),
	})
}

// Me returns the signed-in account's billing snapshot.
func (h *BillingHandler) Me(c *gin.Context) {
	accountID := middleware.AccountIDFromContext(c)
	account, err := h.Store.FindAccountByID(c.Request.Context(), accountID)
	if err != nil {
		apierr.WriteHTTP(c, apierr.Internal(err))
		return
	}
	if account == nil {
		apierr.WriteHTTP(c, apierr.New(apierr.Unauthorized, "account not found"))
		return
	}
	c.JSON(200, gin.H{
		"account_id":           account.ID,
		"email":                account.Email,
		"plan":                 account.Plan,
		"subscription_status":  account.SubscriptionStatus,
	})
}

type syncAgentsRequest struct {
	AgentIDs []string `json:"agent_ids"`
}

// SyncAgents replaces the signed-in account's agent links wholesale.
func (h *BillingHandler) SyncAgents(c *gin.Context) {
	var req syncAgentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.WriteHTTP(c, apierr.New(apierr.InvalidCredentials, "invalid request body"))
		return
	}
	accountID := middleware.AccountIDFromContext(c)
	if err := h.Store.ReplaceAccountAgents(c.Request.Context(), accountID, req.AgentIDs); err != nil {
		apierr.WriteHTTP(c, apierr.Internal(err))
		return
	}
	c.JSON(200, gin.H{"status": "ok"})
}

// Checkout creates a Stripe Checkout Session for the signed-in account and
// returns its redirect URL. The payment provider is treated as an opaque
// HTTP API: the relay never imports a Stripe SDK, only calls the REST
// endpoint with the configured secret key.
func (h *BillingHandler) Checkout(c *gin.Context) {
	accountID := middleware.AccountIDFromContext(c)
	account, err := h.Store.FindAccountByID(c.Request.Context(), accountID)
	if err != nil {
		apierr.WriteHTTP(c, apierr.Internal(err))
		return
	}
	if account == nil {
		apierr.WriteHTTP(c, apierr.New(apierr.Unauthorized, "account not found"))
		return
	}

	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("line_items[0][price]", h.Cfg.StripePriceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("client_reference_id", account.ID)
	form.Set("customer_email", account.Email)
	if account.StripeCustomerID != "" {
		form.Set("customer", account.StripeCustomerID)
	}

	var session struct {
		URL string `json:"url"`
	}
	if err := h.stripePost("/v1/checkout/sessions", form, &session); err != nil {
		apierr.WriteHTTP(c, apierr.Internal(err))
		return
	}
	c.JSON(200, gin.H{"url": session.URL})
}

// Portal creates a Stripe billing portal session for the signed-in
// account and returns its redirect URL.
func (h *BillingHandler) Portal(c *gin.Context) {
	accountID := middleware.AccountIDFromContext(c)
	account, err := h.Store.FindAccountByID(c.Request.Context(), accountID)
	if err != nil {
		apierr.WriteHTTP(c, apierr.Internal(err))
		return
	}
	if account == nil || account.StripeCustomerID == "" {
		apierr.WriteHTTP(c, apierr.New(apierr.Unauthorized, "no billing customer on file"))
		return
	}

	form := url.Values{}
	form.Set("customer", account.StripeCustomerID)

	var session struct {
		URL string `json:"url"`
	}
	if err := h.stripePost("/v1/billing_portal/sessions", form, &session); err != nil {
		apierr.WriteHTTP(c, apierr.Internal(err))
		return
	}
	c.JSON(200, gin.H{"url": session.URL})
}

func (h *BillingHandler) stripePost(path string, form url.Values, out interface{}) error {
	req, err := http.NewRequest(http.MethodPost, "https://api.stripe.com"+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(h.Cfg.StripeSecretKey, "")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return apierr.New(apierr.InternalError, "stripe request failed")
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// webhookEvent is only the subset of Stripe's event envelope the relay
// cares about.
type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                 string `json:"id"`
			Customer           string `json:"customer"`
			Subscription       string `json:"subscription"`
			Status             string `json:"status"`
			ClientReferenceID  string `json:"client_reference_id"`
		} `json:"object"`
	} `json:"data"`
}

// WebhookStripe implements POST /api/billing/webhook/stripe: verifies the
// signature header before touching any state, per spec.md §4.5/§7.
func (h *BillingHandler) WebhookStripe(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		apierr.WriteHTTP(c, apierr.New(apierr.Unauthorized, "could not read request body"))
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	if !auth.VerifyWebhookSignature(sigHeader, string(body), h.Cfg.StripeWebhookSecret) {
		apierr.WriteHTTP(c, apierr.New(apierr.Unauthorized, "webhook signature mismatch"))
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		apierr.WriteHTTP(c, apierr.New(apierr.InvalidMessage, "malformed webhook body"))
		return
	}

	ctx := c.Request.Context()
	switch event.Type {
	case "checkout.session.completed":
		accountID := event.Data.Object.ClientReferenceID
		if accountID == "" {
			break
		}
		if err := h.Store.UpdateAccountBilling(ctx, accountID, event.Data.Object.Customer, event.Data.Object.Subscription, "pro", "active"); err != nil {
			apierr.WriteHTTP(c, apierr.Internal(err))
			return
		}
	case "customer.subscription.updated", "customer.subscription.deleted":
		account, err := h.Store.FindAccountByStripeCustomerID(ctx, event.Data.Object.Customer)
		if err != nil {
			apierr.WriteHTTP(c, apierr.Internal(err))
			return
		}
		if account == nil {
			break
		}
		plan := "free"
		if isUnlimitedPlan("pro", event.Data.Object.Status) {
			plan = "pro"
		}
		if err := h.Store.UpdateAccountBilling(ctx, account.ID, "", event.Data.Object.Subscription, plan, event.Data.Object.Status); err != nil {
			apierr.WriteHTTP(c, apierr.Internal(err))
			return
		}
	}

	c.JSON(200, gin.H{"received": true})
}

// Plans returns the static free/pro feature catalog billing UI references.
func (h *BillingHandler) Plans(c *gin.Context) {
	c.JSON(200, gin.H{
		"plans": []gin.H{
			{"id": "free", "agent_limit": strconv.Itoa(h.Cfg.FreeAgentLimit), "price": 0},
			{"id": "pro", "agent_limit": "unlimited", "price_id": h.Cfg.StripePriceID},
		},
	})
}
