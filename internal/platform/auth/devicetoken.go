package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// deviceIngestPaths lists the endpoints field hardware posts to. They accept
// the shared device access token instead of a per-user JWT.
var deviceIngestPaths = map[string]bool{
	"/api/v1/devices/ingest":     true,
	"/api/v1/gateways/heartbeat": true,
}

// DeviceTokenMiddleware guards the telemetry ingest endpoints with the shared
// device access token. The token is read from the X-Device-Token header, with
// Authorization: Bearer as a fallback for gateways that can only set the
// standard header. Non-ingest paths pass through untouched.
func DeviceTokenMiddleware(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !deviceIngestPaths[c.Path()] {
				return next(c)
			}

			if token == "" {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "device ingest is not configured")
			}

			presented := extractDeviceToken(c)
			if presented == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing device token")
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid device token")
			}

			return next(c)
		}
	}
}

// extractDeviceToken returns the shared token from the request, checking the
// X-Device-Token header first and then the Authorization: Bearer header.
func extractDeviceToken(c echo.Context) string {
	if t := c.Request().Header.Get("X-Device-Token"); t != "" {
		return t
	}

	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
