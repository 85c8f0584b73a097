package httpapi

import (
	"github.com/labstack/echo/v4"

	"horse.fit/feedsift/internal/auth"
)

// requireToken guards mutating routes with the configured API token. With no
// token hash configured every request passes.
func (s *Server) requireToken() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if s.opts.APITokenHash == "" {
				return next(c)
			}

			token, found := auth.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !found {
				return failUnauthorized(c)
			}
			if !auth.VerifyToken(token, s.opts.APITokenHash) {
				s.logger.Warn().
					Str("method", c.Request().Method).
					Str("path", c.Path()).
					Str("remote_ip", c.RealIP()).
					Msg("rejected api token")
				return failUnauthorized(c)
			}
			return next(c)
		}
	}
}
