package handlers

import (
	"errors"
	"log"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/go-realmgate/realmgate/internal/auth"
	"github.com/go-realmgate/realmgate/internal/core"
	"github.com/go-realmgate/realmgate/internal/handoff"
	"github.com/go-realmgate/realmgate/internal/middleware"
	"github.com/go-realmgate/realmgate/internal/models"
	"github.com/go-realmgate/realmgate/internal/otp"
	"github.com/go-realmgate/realmgate/internal/services"
)

// mobileRedirectScheme is the custom URI scheme that hands the encrypted
// API credential back to the mobile app.
const mobileRedirectScheme = "zulip://login"

// HandoffHandler consumes the signed token at the tenant-subdomain redirect
// target and finishes the federated login there.
type HandoffHandler struct {
	registry *auth.Registry
	users    *services.UserService
	bridge   *services.RegistrationBridge
	signer   *handoff.Signer
	recorder core.Recorder
}

func NewHandoffHandler(
	registry *auth.Registry,
	users *services.UserService,
	bridge *services.RegistrationBridge,
	signer *handoff.Signer,
	recorder core.Recorder,
) *HandoffHandler {
	return &HandoffHandler{
		registry: registry,
		users:    users,
		bridge:   bridge,
		signer:   signer,
		recorder: recorder,
	}
}

// Consume handles GET /accounts/login/subdomain/:token. Signature, expiry
// and subdomain violations each answer 400 with their own logged reason —
// never a 5xx.
func (h *HandoffHandler) Consume(c *gin.Context) {
	subdomain := middleware.SubdomainFromContext(c)

	payload, err := h.signer.Consume(c.Param("token"), subdomain)
	if err != nil {
		h.rejectToken(c, err)
		return
	}
	h.recorder.RecordHandoffConsumed("ok")

	// An already-authenticated session for a now-deactivated account is
	// reported distinctly from "not logged in".
	if current := sessionUser(c, h.users); current != nil && !current.Active {
		c.JSON(http.StatusForbidden, gin.H{
			"result": "error",
			"msg":    "Your account has been deactivated.",
		})
		return
	}

	realm := middleware.RealmFromContext(c)
	if realm == nil {
		loginFailed(c, payload.Backend, "no realm for subdomain "+subdomain)
		return
	}

	creds := auth.Credentials{Email: payload.Email, FullName: payload.FullName}
	result := h.registry.Authenticate(c.Request.Context(), payload.Backend, creds, realm)

	switch {
	case result.Ok():
		if payload.MobileOTP != "" {
			h.finishMobileLogin(c, result.User.ID, payload)
			return
		}
		completeLogin(c, h.users, result.User, payload.Backend, payload.Next)

	case result.NeedsRegistration():
		h.bridgeRegistration(c, result, realm, payload)

	case result.Err != nil:
		configError(c, payload.Backend, result.Err)

	default:
		loginFailed(c, payload.Backend, result.Reason)
	}
}

func (h *HandoffHandler) rejectToken(c *gin.Context, err error) {
	var reason string
	switch {
	case errors.Is(err, handoff.ErrExpired):
		reason = "expired"
	case errors.Is(err, handoff.ErrSubdomainMismatch):
		reason = "wrong_subdomain"
	default:
		reason = "bad_signature"
	}
	h.recorder.RecordHandoffConsumed(reason)
	log.Printf("[Handoff] Token rejected (%s): %v", reason, err)
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired login attempt"})
}

// bridgeRegistration routes a verified identity with no local account
// through the registration bridge's decision table.
func (h *HandoffHandler) bridgeRegistration(
	c *gin.Context,
	result *auth.Result,
	realm *models.Realm,
	payload *handoff.Payload,
) {
	decision, err := h.bridge.Decide(
		c.Request.Context(),
		result.PendingEmail, result.PendingName, payload.Backend,
		realm, payload.IsSignup, payload.MultiuseKey,
	)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmailNotAllowed):
			loginFailed(c, payload.Backend, "email not allowed: "+err.Error())
		case errors.Is(err, services.ErrRealmDeactivated):
			loginFailed(c, payload.Backend, "realm deactivated")
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	switch decision.Outcome {
	case services.OutcomeLogin:
		// The bridge resolved an existing account the backend did not;
		// it still has to pass the same policy rules as a direct login.
		backend, ok := h.registry.Get(payload.Backend)
		if !ok || !h.registry.Gate().Permits(realm, backend, decision.User) {
			loginFailed(c, payload.Backend, "existing account denied by policy")
			return
		}
		completeLogin(c, h.users, decision.User, payload.Backend, payload.Next)
	case services.OutcomeNoAccount:
		// Intermediate page offering registration; nothing was created.
		c.JSON(http.StatusOK, gin.H{
			"result":      "no_account",
			"msg":         "No account found for " + result.PendingEmail + ". Would you like to register?",
			"signup_path": "/accounts/login/oauth/" + payload.Backend + "?is_signup=true",
		})
	case services.OutcomeConfirm:
		c.Redirect(http.StatusFound,
			"/accounts/register?key="+url.QueryEscape(decision.Confirmation.Key))
	case services.OutcomeSignupPage:
		c.Redirect(http.StatusFound, "/accounts/register")
	}
}

// finishMobileLogin rotates the user's API key, seals it with the
// client-supplied pad and bounces into the app. The credential never
// crosses the redirect in cleartext.
func (h *HandoffHandler) finishMobileLogin(
	c *gin.Context,
	userID string,
	payload *handoff.Payload,
) {
	apiKey, err := h.users.RotateAPIKey(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	encrypted, err := otp.EncryptAPIKey(apiKey, payload.MobileOTP)
	if err != nil {
		// The pad was validated at flow start; reaching this means the
		// token was tampered with in a way the signature should catch.
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mobile_flow_otp"})
		return
	}

	query := url.Values{}
	query.Set("otp_encrypted_api_key", encrypted)
	query.Set("email", payload.Email)
	query.Set("realm", payload.Subdomain)
	c.Redirect(http.StatusFound, mobileRedirectScheme+"?"+query.Encode())
}
