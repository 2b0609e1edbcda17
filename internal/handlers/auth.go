package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/avdonin/reviewbase/internal/confirm"
	"github.com/avdonin/reviewbase/internal/logging"
	"github.com/avdonin/reviewbase/internal/mail"
	"github.com/avdonin/reviewbase/internal/models"
	"github.com/avdonin/reviewbase/internal/mykafka"
	"github.com/avdonin/reviewbase/internal/tokens"
)

type AuthHandler struct {
	DB            *gorm.DB
	Mailer        mail.Mailer
	JWTSecret     []byte
	RefreshSecret []byte
	ConfirmSecret []byte
	Producer      *mykafka.Producer
}

func (h *AuthHandler) publish(c echo.Context, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

// Signup creates (or re-uses) an inactive user and mails a confirmation
// code derived from the current row. Re-sending is idempotent: the same
// payload produces a code valid against the same state.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Username == "" {
		return fieldError(http.StatusBadRequest, "username", "username is required")
	}
	if req.Username == models.ReservedUsername {
		return fieldError(http.StatusBadRequest, "username", "this username is reserved")
	}
	if req.Email == "" {
		return fieldError(http.StatusBadRequest, "email", "email is required")
	}
	if !validEmail(req.Email) {
		return fieldError(http.StatusBadRequest, "email", "malformed email address")
	}

	ctx := c.Request().Context()

	var user models.User
	err := h.DB.WithContext(ctx).Where("username = ?", req.Username).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		var taken int64
		if err := h.DB.WithContext(ctx).Model(&models.User{}).
			Where("email = ?", req.Email).Count(&taken).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if taken > 0 {
			return fieldError(http.StatusBadRequest, "email", "email already in use")
		}
		user = models.User{Username: req.Username, Email: req.Email, Role: models.RoleUser}
		if err := h.DB.WithContext(ctx).Create(&user).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		h.publish(c, req.Username, map[string]any{
			"type":     "user_registered",
			"user_id":  user.ID,
			"username": user.Username,
		})
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	default:
		if user.Email != req.Email {
			return fieldError(http.StatusBadRequest, "username", "username already taken")
		}
	}

	code := confirm.MakeCode(h.ConfirmSecret, &user)
	if err := h.Mailer.SendConfirmationCode(user.Email, code); err != nil {
		logging.FromContext(ctx).Error("confirmation mail failed", "username", user.Username, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not send confirmation code")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"username": user.Username,
		"email":    user.Email,
	})
}

// Token exchanges a confirmation code for a signed token pair. Activation
// mutates the user state the code was derived from, so a code survives at
// most one successful exchange.
func (h *AuthHandler) Token(c echo.Context) error {
	var req struct {
		Username         string `json:"username"`
		ConfirmationCode string `json:"confirmation_code"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Username == "" {
		return fieldError(http.StatusBadRequest, "username", "username is required")
	}

	ctx := c.Request().Context()

	var user models.User
	if err := h.DB.WithContext(ctx).Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fieldError(http.StatusNotFound, "username", "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if !confirm.CheckCode(h.ConfirmSecret, &user, req.ConfirmationCode) {
		return fieldError(http.StatusBadRequest, "confirmation_code", "invalid confirmation code")
	}

	user.Active = true
	if err := h.DB.WithContext(ctx).Save(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	access, err := tokens.SignAccessToken(user.ID, user.Role, h.JWTSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create access token")
	}
	refresh, err := tokens.SignRefreshToken(user.ID, h.RefreshSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create refresh token")
	}

	h.publish(c, user.Username, map[string]any{
		"type":     "user_activated",
		"user_id":  user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"access":  access,
		"refresh": refresh,
	})
}

// Refresh trades a valid refresh token for a fresh access token. The user
// row is re-read so a deleted or demoted user cannot mint stale credentials.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Refresh == "" {
		return fieldError(http.StatusBadRequest, "refresh", "refresh token is required")
	}

	claims, err := tokens.RefreshClaimsFromToken(req.Refresh, h.RefreshSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}
	id, err := claims.UserID()
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}

	ctx := c.Request().Context()

	var user models.User
	if err := h.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !user.Active {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}

	access, err := tokens.SignAccessToken(user.ID, user.Role, h.JWTSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create access token")
	}
	return c.JSON(http.StatusOK, echo.Map{"access": access})
}
