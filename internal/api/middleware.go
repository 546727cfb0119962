package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Tyrowin/securetalk/internal/session"
)

const (
	contextKeyUsername = "username"
	contextKeyToken    = "token"
)

// Auth resolves the bearer token against the session store and injects the
// username into the request context. An unresolvable token is simply "not
// authenticated", never an internal error.
func Auth(sessions *session.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			username, ok := sessions.Resolve(parts[1])
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}

			c.Set(contextKeyUsername, username)
			c.Set(contextKeyToken, parts[1])

			return next(c)
		}
	}
}

func usernameFromContext(c echo.Context) string {
	username, _ := c.Get(contextKeyUsername).(string)
	return username
}

func tokenFromContext(c echo.Context) string {
	token, _ := c.Get(contextKeyToken).(string)
	return token
}
