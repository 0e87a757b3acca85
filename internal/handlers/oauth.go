package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/go-realmgate/realmgate/internal/auth"
	"github.com/go-realmgate/realmgate/internal/core"
	"github.com/go-realmgate/realmgate/internal/handoff"
	"github.com/go-realmgate/realmgate/internal/middleware"
	"github.com/go-realmgate/realmgate/internal/otp"
	"github.com/go-realmgate/realmgate/internal/util"
)

// Session keys for the in-flight OAuth handshake. The session cookie spans
// subdomains so state set on the realm subdomain is visible to the
// root-domain callback.
const (
	sessionOAuthState     = "oauth_state"
	sessionOAuthSubdomain = "oauth_subdomain"
	sessionOAuthSignup    = "oauth_is_signup"
	sessionOAuthNext      = "oauth_next"
	sessionOAuthInvite    = "oauth_invite"
	sessionOAuthOTP       = "oauth_otp"
)

// OAuthHandler drives the federated three-party handshake. The callback
// endpoint is tenant-agnostic (it lives on the root domain); the resolved
// identity travels to the tenant subdomain inside a signed handoff token.
type OAuthHandler struct {
	providers    map[string]auth.ProviderClient
	signer       *handoff.Signer
	recorder     core.Recorder
	externalHost string
}

func NewOAuthHandler(
	providers map[string]auth.ProviderClient,
	signer *handoff.Signer,
	recorder core.Recorder,
	externalHost string,
) *OAuthHandler {
	return &OAuthHandler{
		providers:    providers,
		signer:       signer,
		recorder:     recorder,
		externalHost: externalHost,
	}
}

// Start handles GET /accounts/login/oauth/:provider on a realm subdomain.
func (h *OAuthHandler) Start(c *gin.Context) {
	providerName := c.Param("provider")
	provider, ok := h.providers[providerName]
	if !ok {
		loginFailed(c, providerName, "unknown provider")
		return
	}
	subdomain := middleware.SubdomainFromContext(c)
	if subdomain == "" {
		loginFailed(c, providerName, "federated login must start on a realm subdomain")
		return
	}

	// The mobile pad is validated before anything else touches it;
	// malformed pads are a client error, not a redirect.
	mobileOTP := c.Query("mobile_flow_otp")
	if mobileOTP != "" && !otp.IsValid(mobileOTP) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mobile_flow_otp"})
		return
	}

	state, err := util.CryptoRandomString(32)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	session := sessions.Default(c)
	session.Set(sessionOAuthState, state)
	session.Set(sessionOAuthSubdomain, subdomain)
	session.Set(sessionOAuthSignup, c.Query("is_signup") == "true")
	session.Set(sessionOAuthNext, c.Query("next"))
	session.Set(sessionOAuthInvite, c.Query("multiuse_invite_key"))
	session.Set(sessionOAuthOTP, mobileOTP)
	if err := session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session error"})
		return
	}

	c.Redirect(http.StatusFound, provider.AuthCodeURL(state))
}

// Callback handles GET /complete/:provider on the root domain.
func (h *OAuthHandler) Callback(c *gin.Context) {
	providerName := c.Param("provider")
	provider, ok := h.providers[providerName]
	if !ok {
		loginFailed(c, providerName, "unknown provider")
		return
	}

	session := sessions.Default(c)
	expectedState, _ := session.Get(sessionOAuthState).(string)
	subdomain, _ := session.Get(sessionOAuthSubdomain).(string)
	isSignup, _ := session.Get(sessionOAuthSignup).(bool)
	next, _ := session.Get(sessionOAuthNext).(string)
	inviteKey, _ := session.Get(sessionOAuthInvite).(string)
	mobileOTP, _ := session.Get(sessionOAuthOTP).(string)
	clearOAuthSession(session)

	if expectedState == "" || c.Query("state") != expectedState {
		loginFailed(c, providerName, "state mismatch")
		return
	}
	if subdomain == "" {
		loginFailed(c, providerName, "no login context")
		return
	}

	ctx := c.Request.Context()

	start := time.Now()
	token, err := provider.Exchange(ctx, c.Query("code"))
	h.recorder.RecordProviderCall(providerName, "exchange", time.Since(start))
	if err != nil {
		loginFailed(c, providerName, "code exchange failed: "+err.Error())
		return
	}

	start = time.Now()
	providerUser, err := provider.FetchUser(ctx, token)
	h.recorder.RecordProviderCall(providerName, "user_info", time.Since(start))
	if err != nil {
		loginFailed(c, providerName, "user info fetch failed: "+err.Error())
		return
	}

	start = time.Now()
	emails, err := provider.FetchEmails(ctx, token)
	h.recorder.RecordProviderCall(providerName, "emails", time.Since(start))
	if err != nil {
		loginFailed(c, providerName, "email fetch failed: "+err.Error())
		return
	}

	if err := provider.CheckMembership(ctx, token, providerUser.Login); err != nil {
		if errors.Is(err, auth.ErrMembershipDenied) {
			// Logged distinctly from "no verified email"; same generic
			// outcome for the user.
			loginFailed(c, providerName, "membership gate: "+err.Error())
			return
		}
		loginFailed(c, providerName, "membership check failed: "+err.Error())
		return
	}

	selected, candidates, err := auth.SelectEmail(emails)
	if err != nil {
		// Descriptive internal reason, generic page for the user, never
		// a 5xx.
		loginFailed(c, providerName, err.Error())
		return
	}

	if selected == "" {
		// Multiple verified emails: suspend the pipeline in a signed
		// continuation token and ask.
		choiceToken, err := h.signer.IssueEmailChoice(handoff.ChoicePayload{
			Candidates:  candidates,
			FullName:    providerUser.FullName,
			Subdomain:   subdomain,
			Backend:     providerName,
			IsSignup:    isSignup,
			Next:        next,
			MultiuseKey: inviteKey,
			MobileOTP:   mobileOTP,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.Redirect(http.StatusFound, "/accounts/login/choose_email?token="+choiceToken)
		return
	}

	h.redirectWithHandoff(c, handoff.Payload{
		Email:       selected,
		FullName:    providerUser.FullName,
		Subdomain:   subdomain,
		Backend:     providerName,
		IsSignup:    isSignup,
		Next:        next,
		MultiuseKey: inviteKey,
		MobileOTP:   mobileOTP,
	})
}

// ChooseEmail handles the multi-email continuation. GET lists candidates;
// POST resumes with the user's selection, which must be one of the
// candidates sealed into the continuation token.
func (h *OAuthHandler) ChooseEmail(c *gin.Context) {
	token := c.Query("token")
	if c.Request.Method == http.MethodPost {
		token = c.PostForm("token")
	}
	choice, err := h.signer.ConsumeEmailChoice(token)
	if err != nil {
		log.Printf("[OAuth] Email-choice token rejected: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired login attempt"})
		return
	}

	if c.Request.Method == http.MethodGet {
		c.JSON(http.StatusOK, gin.H{
			"emails": choice.Candidates,
			"token":  token,
		})
		return
	}

	selected := c.PostForm("email")
	valid := false
	for _, candidate := range choice.Candidates {
		if candidate == selected {
			valid = true
			break
		}
	}
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email was not offered for this login"})
		return
	}

	h.redirectWithHandoff(c, handoff.Payload{
		Email:       selected,
		FullName:    choice.FullName,
		Subdomain:   choice.Subdomain,
		Backend:     choice.Backend,
		IsSignup:    choice.IsSignup,
		Next:        choice.Next,
		MultiuseKey: choice.MultiuseKey,
		MobileOTP:   choice.MobileOTP,
	})
}

func (h *OAuthHandler) redirectWithHandoff(c *gin.Context, payload handoff.Payload) {
	token, err := h.signer.Issue(payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.recorder.RecordHandoffIssued()

	scheme := "https"
	if c.Request.TLS == nil {
		scheme = "http"
	}
	host := util.RealmHost(payload.Subdomain, h.externalHost)
	c.Redirect(http.StatusFound,
		scheme+"://"+host+"/accounts/login/subdomain/"+token)
}

func clearOAuthSession(session sessions.Session) {
	for _, key := range []string{
		sessionOAuthState, sessionOAuthSubdomain, sessionOAuthSignup,
		sessionOAuthNext, sessionOAuthInvite, sessionOAuthOTP,
	} {
		session.Delete(key)
	}
	_ = session.Save()
}
