package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that rejects the request unless the caller
// holds one of the listed roles. There is no implicit admin bypass: signing
// is restricted to doctors even when the caller is an admin, so the check is
// strict membership.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRole := RoleFromContext(c.Request().Context())
			for _, required := range roles {
				if userRole == required {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// RequireRealm returns middleware that rejects tokens issued for the other
// side of the system. An ERP token cannot call lab routes and vice versa.
func RequireRealm(realm string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRealm := RealmFromContext(c.Request().Context())
			if userRealm != realm {
				return echo.NewHTTPError(http.StatusForbidden,
					fmt.Sprintf("token not valid for this area: requires %s access", realm))
			}
			return next(c)
		}
	}
}
