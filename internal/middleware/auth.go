package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/ecograd-backend/internal/security"
)

// Context keys set by RequireAuth.
const (
	ContextUserID   = "uid"
	ContextUsername = "username"
)

type AuthMiddleware struct {
	tokens     *security.TokenService
	allowQuery bool
}

func NewAuthMiddleware(tokens *security.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// WithQueryToken returns a copy that also accepts ?token=, for browser
// WebSocket clients that cannot set headers.
func (m *AuthMiddleware) WithQueryToken() *AuthMiddleware {
	return &AuthMiddleware{tokens: m.tokens, allowQuery: true}
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"error": msg,
		"code":  "unauthorized",
	})
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenStr := ""
		if authz := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(authz, "Bearer ") {
			tokenStr = strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
		} else if m.allowQuery {
			tokenStr = c.QueryParam("token")
		}
		if tokenStr == "" {
			return unauthorized(c, "missing bearer token")
		}
		claims, err := m.tokens.Parse(tokenStr)
		if err != nil {
			return unauthorized(c, "invalid or expired token")
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		return next(c)
	}
}
