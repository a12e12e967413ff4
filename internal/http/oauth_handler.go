package http

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"sketchlab/internal/oauth"
	"sketchlab/internal/service"
)

const (
	oauthStateCookie = "oauthstate"
	oauthStateMaxAge = 600
)

// OAuthHandler maneja los redirects de consentimiento y los callbacks
// de Google y GitHub.
type OAuthHandler struct {
	logger      *zap.Logger
	providers   map[string]oauth.Provider
	accountServ *service.AccountService
	tokenServ   *service.TokenService
	frontendURL string
}

func NewOAuthHandler(logger *zap.Logger, providers map[string]oauth.Provider, accountServ *service.AccountService, tokenServ *service.TokenService, frontendURL string) *OAuthHandler {
	return &OAuthHandler{
		logger:      logger,
		providers:   providers,
		accountServ: accountServ,
		tokenServ:   tokenServ,
		frontendURL: frontendURL,
	}
}

// Begin maneja GET /auth/:provider. Genera el state anti-CSRF, lo deja
// en cookie y redirige al consentimiento del proveedor.
func (h *OAuthHandler) Begin(providerName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provider, ok := h.providers[providerName]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
			return
		}
		state := uuid.NewString()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(oauthStateCookie, state, oauthStateMaxAge, "/", "", false, true)
		c.Redirect(http.StatusFound, provider.AuthCodeURL(state))
	}
}

// Callback maneja GET /auth/:provider/callback. Canjea el codigo,
// reconcilia la identidad y redirige al frontend con ?token= o ?error=.
func (h *OAuthHandler) Callback(providerName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provider, ok := h.providers[providerName]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
			return
		}

		cookieState, err := c.Cookie(oauthStateCookie)
		if err != nil || cookieState == "" || c.Query("state") != cookieState {
			h.redirectError(c, "invalid_state")
			return
		}
		c.SetCookie(oauthStateCookie, "", -1, "/", "", false, true)

		code := c.Query("code")
		if code == "" {
			h.redirectError(c, "missing_code")
			return
		}

		assertion, err := provider.FetchProfile(c.Request.Context(), code)
		if err != nil {
			h.logger.Warn("oauth profile fetch failed", zap.String("provider", providerName), zap.Error(err))
			h.redirectError(c, "oauth_failed")
			return
		}

		account, err := h.accountServ.ReconcileOAuth(c.Request.Context(), assertion)
		if err != nil {
			if errors.Is(err, service.ErrIdentityConflict) {
				h.redirectError(c, "identity_conflict")
				return
			}
			h.logger.Error("oauth reconcile failed", zap.String("provider", providerName), zap.Error(err))
			h.redirectError(c, "oauth_failed")
			return
		}

		token, err := h.tokenServ.IssueSession(account)
		if err != nil {
			h.logger.Error("token issue failed", zap.Error(err))
			h.redirectError(c, "token_generation_failed")
			return
		}
		c.Redirect(http.StatusFound, h.frontendURL+"?token="+url.QueryEscape(token))
	}
}

func (h *OAuthHandler) redirectError(c *gin.Context, reason string) {
	c.Redirect(http.StatusFound, h.frontendURL+"?error="+url.QueryEscape(reason))
}
