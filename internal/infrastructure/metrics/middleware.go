package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// Middleware returns an Echo middleware that records HTTP request metrics.
func Middleware(m *Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// render the error here so the recorded status is the real one
			if err := next(c); err != nil {
				c.Error(err)
			}

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			m.RecordHTTPRequest(c.Request().Method, normalizePath(c), status, duration)

			return nil
		}
	}
}

// normalizePath extracts the route pattern rather than the actual path
// to prevent high cardinality labels from things like IDs.
// e.g. /api/connections/accounts/123 becomes /api/connections/accounts/:id
func normalizePath(c echo.Context) string {
	if path := c.Path(); path != "" {
		return path
	}
	// unmatched routes (404s, etc)
	return c.Request().URL.Path
}
