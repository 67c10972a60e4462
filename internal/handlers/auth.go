package handlers

import (
	"net/http"
	"strings"

	casdoorsdk "github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/TechFest-2026/exam-session-service/internal/config"
	"github.com/TechFest-2026/exam-session-service/internal/utils"
)

const adminUserKey = "admin_user"

// TokenVerifier parses and verifies a Casdoor-issued JWT.
type TokenVerifier interface {
	ParseJwtToken(token string) (*casdoorsdk.Claims, error)
}

// NewCasdoorVerifier builds a verifier from the configured Casdoor
// application.
func NewCasdoorVerifier(cfg config.CasdoorConfig) TokenVerifier {
	return casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Certificate,
		cfg.Organization,
		cfg.Application,
	)
}

// AdminMiddleware authenticates proctor requests with a Casdoor bearer token
// and requires the admin flag on the account. Candidate routes stay
// unauthenticated; a session UUID is the candidate's capability.
func AdminMiddleware(verifier TokenVerifier, logger utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Missing bearer token",
			})
			return
		}

		claims, err := verifier.ParseJwtToken(token)
		if err != nil {
			logger.Warn("Rejected admin token", "error", err, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Invalid token",
			})
			return
		}
		if !claims.User.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Message: "Admin access required",
			})
			return
		}

		c.Set(adminUserKey, claims.User.Name)
		c.Next()
	}
}

// adminName returns the authenticated admin's account name, or "unknown"
// outside the admin middleware (e.g. in tests).
func adminName(c *gin.Context) string {
	if name, exists := c.Get(adminUserKey); exists {
		if s, ok := name.(string); ok {
			return s
		}
	}
	return "unknown"
}
