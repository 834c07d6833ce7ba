package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/fplcoach/internal/app/service/account"
	"github.com/fatflowers/fplcoach/pkg/logctx"
	"github.com/fatflowers/fplcoach/pkg/response"
	"github.com/fatflowers/fplcoach/pkg/types"
)

// TokenParser verifies a bearer token.
type TokenParser interface {
	Parse(raw string) (*account.Claims, error)
}

// AuthMiddleware requires a valid bearer token and stores the user id and
// role in gin.Context and the request context. The request logger gains a
// user_id field.
func AuthMiddleware(parser TokenParser, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusOK, response.ErrorMsg(response.APIResponseCodeUnauthorized, "Please sign in to continue."))
			return
		}
		claims, err := parser.Parse(strings.TrimSpace(raw))
		if err != nil {
			logctx.FromGin(c, base).Infow("rejected bearer token", "err", err)
			c.AbortWithStatusJSON(http.StatusOK, response.ErrorMsg(response.APIResponseCodeUnauthorized, "Your session has expired. Please sign in again."))
			return
		}

		c.Set(string(logctx.UserIDKey), claims.Subject)
		c.Set(string(logctx.RoleKey), string(claims.Role))
		ctx := context.WithValue(c.Request.Context(), logctx.UserIDKey, claims.Subject)
		ctx = context.WithValue(ctx, logctx.RoleKey, string(claims.Role))
		c.Request = c.Request.WithContext(ctx)
		setLogger(c, logctx.FromGin(c, base).With("user_id", claims.Subject))
		c.Next()
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(string(logctx.RoleKey)) != string(types.UserRoleAdmin) {
			c.AbortWithStatusJSON(http.StatusOK, response.ErrorMsg(response.APIResponseCodeForbidden, "This area is for admins only."))
			return
		}
		c.Next()
	}
}
