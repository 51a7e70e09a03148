package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/labstack/echo/v4"
)

const userContextKey = "user"

// AuthMiddleware resolves the bearer token to a user and stores it in the
// request context.
type AuthMiddleware struct {
	auth  services.AuthService
	users services.UserService
}

func NewAuthMiddleware(auth services.AuthService, users services.UserService) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, users: users}
}

func (m *AuthMiddleware) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString := ""
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader != "" {
				parts := strings.Split(authHeader, " ")
				if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
					return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header must be in Bearer format")
				}
				tokenString = parts[1]
			}

			// Browsers cannot set headers on websocket upgrades.
			if tokenString == "" {
				tokenString = c.QueryParam("token")
			}
			if tokenString == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
			}

			user, err := m.auth.Authenticate(c.Request().Context(), tokenString)
			if err != nil {
				return err
			}

			if m.users != nil {
				if err := m.users.TouchActivity(c.Request().Context(), user); err != nil {
					log.Printf("Failed to update lastActive for %s: %v", user.ID.Hex(), err)
				}
			}

			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// CurrentUser returns the user stored by RequireAuth, or nil.
func CurrentUser(c echo.Context) *models.User {
	user, _ := c.Get(userContextKey).(*models.User)
	return user
}

// SetCurrentUser is used by tests that bypass RequireAuth.
func SetCurrentUser(c echo.Context, user *models.User) {
	c.Set(userContextKey, user)
}
