package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/avdonin/reviewbase/internal/models"
	"github.com/avdonin/reviewbase/internal/policy"
	"github.com/avdonin/reviewbase/internal/tokens"
)

const (
	ctxUserID   = "userID"
	ctxUsername = "username"
	ctxRole     = "role"
)

type TokenService struct {
	DB        *gorm.DB
	JWTSecret []byte
}

// Optional resolves a Bearer token when one is present and leaves the
// request anonymous otherwise. Safe-method routes use it so public reads
// work with and without credentials.
func (t *TokenService) Optional(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, ok := bearerToken(c)
		if !ok {
			return next(c)
		}
		if err := t.resolve(c, raw); err != nil {
			return err
		}
		return next(c)
	}
}

// Require rejects the request with 401 unless a valid Bearer token resolves
// to an existing user.
func (t *TokenService) Require(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, ok := bearerToken(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		if err := t.resolve(c, raw); err != nil {
			return err
		}
		return next(c)
	}
}

// resolve re-reads the user row on every request so role changes and
// deletions take effect immediately instead of at token expiry.
func (t *TokenService) resolve(c echo.Context, raw string) error {
	claims, err := tokens.AccessClaimsFromToken(raw, t.JWTSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	id, err := claims.UserID()
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	var user models.User
	if err := t.DB.WithContext(c.Request().Context()).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	c.Set(ctxUserID, user.ID)
	c.Set(ctxUsername, user.Username)
	c.Set(ctxRole, user.Role)
	return nil
}

func bearerToken(c echo.Context) (string, bool) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// Caller reports the authenticated caller, or an anonymous one when the
// request carried no valid token.
func Caller(c echo.Context) policy.Caller {
	id, ok := c.Get(ctxUserID).(uint)
	if !ok {
		return policy.Caller{Role: policy.Anonymous}
	}
	role, _ := c.Get(ctxRole).(string)
	return policy.Caller{ID: id, Role: policy.RoleOf(role)}
}

// Username returns the authenticated caller's username, empty when anonymous.
func Username(c echo.Context) string {
	name, _ := c.Get(ctxUsername).(string)
	return name
}

// SetCaller primes the request context the way resolve does; handler tests
// use it in place of the middleware.
func SetCaller(c echo.Context, u *models.User) {
	c.Set(ctxUserID, u.ID)
	c.Set(ctxUsername, u.Username)
	c.Set(ctxRole, u.Role)
}
