package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ContextKey represents keys for context values
type ContextKey string

const (
	// UserContextKey is where RequireAuth stores the authenticated user.
	UserContextKey ContextKey = "user"
)

// RequireAuth creates authentication middleware gating write and delete
// operations. Unauthenticated requests never reach the handler.
func RequireAuth(tokenService *TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Extract token from Authorization header
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header required")
			}

			// Check Bearer token format
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			user, err := tokenService.ValidateAccessToken(tokenParts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			// Add user to context
			c.Set(string(UserContextKey), user)

			return next(c)
		}
	}
}

// UserFromContext returns the authenticated user set by RequireAuth, or nil.
func UserFromContext(c echo.Context) *User {
	user, _ := c.Get(string(UserContextKey)).(*User)
	return user
}
