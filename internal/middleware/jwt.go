package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/studyhelper/studyhelper-api/internal/service"
	appErrors "github.com/studyhelper/studyhelper-api/pkg/errors"
	"github.com/studyhelper/studyhelper-api/pkg/response"
)

// ContextActorKey is the gin context key storing JWT claims.
const ContextActorKey = "currentActor"

// JWT protects routes by requiring a valid access token.
func JWT(identity *service.IdentityService) gin.HandlerFunc {
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

		claims, err := identity.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextActorKey, claims)
		c.Next()
	}
}
