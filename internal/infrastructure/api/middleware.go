package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/joacominatel/connections/internal/infrastructure/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// AdminContextKey is the context key for the validated admin claims.
	AdminContextKey contextKey = "admin_claims"
)

// AuthConfig holds authentication middleware configuration.
type AuthConfig struct {
	JWTManager *auth.JWTManager

	// Skipper defines a function to skip auth for certain routes.
	Skipper func(c echo.Context) bool
}

// AdminAuthMiddleware requires a valid admin bearer token.
// the validated claims are stored in context for downstream handlers.
func AdminAuthMiddleware(config AuthConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if config.Skipper != nil && config.Skipper(c) {
				return next(c)
			}

			claims, err := config.JWTManager.ValidateToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}

			c.Set(string(AdminContextKey), claims)
			return next(c)
		}
	}
}

// GetAdminClaims retrieves the authenticated admin from context.
// returns nil if the request was not authenticated.
func GetAdminClaims(c echo.Context) *auth.AdminClaims {
	if val := c.Get(string(AdminContextKey)); val != nil {
		if claims, ok := val.(*auth.AdminClaims); ok {
			return claims
		}
	}
	return nil
}

// PublicRoutesSkipper returns a skipper function that skips auth for public routes.
func PublicRoutesSkipper(publicPaths ...string) func(echo.Context) bool {
	pathSet := make(map[string]bool)
	for _, p := range publicPaths {
		pathSet[p] = true
	}

	return func(c echo.Context) bool {
		return pathSet[c.Path()]
	}
}

// EnabledMiddleware answers 503 while the module is switched off.
// skipped routes keep answering so health checks stay green.
func EnabledMiddleware(enabled bool, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if enabled || (skipper != nil && skipper(c)) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusServiceUnavailable, "connections module is disabled")
		}
	}
}
