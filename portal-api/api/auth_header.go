package api

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"unsafe"

	"github.com/labstack/echo/v4"
)

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errBadAuthorization     = errors.New("bad auth header")
)

const (
	bearerScheme = "Bearer "
	ctxUserID    = "userID"
)

// RequireAuth rejects requests without a valid bearer token and stores the
// caller's subject on the context. Event streams may pass the token as the
// token query parameter since EventSource cannot set headers.
func RequireAuth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				if token := c.QueryParam("token"); token != "" {
					header = bearerScheme + token
				}
			}
			userID, err := auth.UserIDFromAuthHeader(header)
			if err != nil {
				if errors.Is(err, errNotAllowed) {
					return c.JSON(http.StatusForbidden, errorResponse{Error: err.Error()})
				}
				return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
			}
			c.Set(ctxUserID, userID)
			return next(c)
		}
	}
}

func userIDFrom(c echo.Context) string {
	id, _ := c.Get(ctxUserID).(string)
	return id
}

// bearerTokenFromString returns the compact JWT of a "Bearer <token>" header
// without copying it.
func bearerTokenFromString(raw string) ([]byte, error) {
	raw = strings.Trim(raw, " ")
	if raw == "" {
		return nil, errMissingAuthorization
	}
	if len(raw) <= len(bearerScheme) || !strings.EqualFold(raw[:len(bearerScheme)], bearerScheme) {
		return nil, errBadAuthorization
	}
	token := readOnlyBytes(strings.TrimLeft(raw[len(bearerScheme):], " "))
	if bytes.Count(token, []byte{'.'}) != 2 {
		return nil, errBadAuthorization
	}
	return token, nil
}

func readOnlyBytes(s string) []byte {
	if s == "" {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func readOnlyString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}
