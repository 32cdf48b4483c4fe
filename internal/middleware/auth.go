// internal/middleware/auth.go
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/licensegate/internal/i18n"
	"github.com/javajoker/licensegate/internal/services"
	"github.com/javajoker/licensegate/internal/utils"
)

// AccessDecisionKey holds the *services.AccessDecision set by AccessTokenRequired.
const AccessDecisionKey = "access_decision"

// AccessAuthorizer decides whether a token grants access to a URL.
type AccessAuthorizer interface {
	AuthorizeAccess(ctx context.Context, token, rawURL string) (*services.AccessDecision, error)
}

// BearerToken returns the token of an "Authorization: Bearer <token>" header.
func BearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// AdminRequired accepts requests bearing the configured admin API key, which
// may be configured as a bcrypt hash.
func AdminRequired(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		presented, ok := BearerToken(c)
		if !ok {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthRequired))
			c.Abort()
			return
		}
		if !utils.CompareAPIKey(apiKey, presented) {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidAdminKey))
			c.Abort()
			return
		}

		c.Set("admin", true)
		c.Next()
	}
}

// AccessTokenRequired admits requests whose bearer access token covers the
// URL returned by target. A missing token is only rejected when the URL is
// under a paid license.
func AccessTokenRequired(authz AccessAuthorizer, target func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)
		token, _ := BearerToken(c)

		rawURL := target(c)

		decision, err := authz.AuthorizeAccess(c.Request.Context(), token, rawURL)
		if err != nil {
			utils.AppErrorResponse(c, err)
			c.Abort()
			return
		}

		c.Set(AccessDecisionKey, decision)
		if !decision.Allowed {
			utils.ErrorResponse(c, http.StatusForbidden, "access_denied",
				i18n.T(lang, i18n.KeyAuthAccessDenied, rawURL), decision)
			c.Abort()
			return
		}
		c.Next()
	}
}
