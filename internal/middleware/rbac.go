package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-api/internal/models"
	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
	"github.com/noah-isme/tutor-api/pkg/response"
)

// Require admits requests whose role passes check, e.g.
// Require(models.Role.CanBook).
func Require(check func(models.Role) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		if !check(claims.Role) {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}

// RequireRoles admits the listed roles only.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return Require(func(r models.Role) bool {
		_, ok := allowed[r]
		return ok
	})
}
