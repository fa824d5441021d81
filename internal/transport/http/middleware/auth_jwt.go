package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"face-attendance/internal/core/auth"
	"face-attendance/internal/domain"
	resp "face-attendance/internal/transport/http/response"
)

const (
	KeyClaims = "claims"
	KeyUserID = "userId"
	KeyUser   = "user"
)

// TokenParser 由 auth.JWTer 实现
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

func AuthJWT(j TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if !strings.HasPrefix(ah, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, resp.Error(http.StatusUnauthorized, "missing token"))
			return
		}
		claims, err := j.Parse(strings.TrimSpace(strings.TrimPrefix(ah, "Bearer ")))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, resp.Error(http.StatusUnauthorized, "invalid token"))
			return
		}
		c.Set(KeyClaims, claims)
		c.Set(KeyUserID, claims.UID)
		c.Next()
	}
}

func UserID(c *gin.Context) string { return c.GetString(KeyUserID) }

// UserLookup token 只带用户 ID，角色要回库查
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// RequireRole 必须挂在 AuthJWT 之后
func RequireRole(users UserLookup, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := users.GetUser(c.Request.Context(), UserID(c))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, resp.Error(http.StatusUnauthorized, "unknown user"))
				return
			}
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, resp.Error(http.StatusInternalServerError, ""))
			return
		}
		if u.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, resp.Error(http.StatusForbidden, "forbidden"))
			return
		}
		c.Set(KeyUser, u)
		c.Next()
	}
}
