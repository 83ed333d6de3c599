package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/interview-slots/internal/service"
	appErrors "github.com/noah-isme/interview-slots/pkg/errors"
	"github.com/noah-isme/interview-slots/pkg/response"
)

// ContextCandidateKey is the gin context key storing candidate JWT claims.
const ContextCandidateKey = "currentCandidate"

// JWT protects routes by requiring a valid candidate token.
func JWT(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := tokens.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextCandidateKey, claims)
		c.Next()
	}
}
