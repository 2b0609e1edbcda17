package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	authmw "github.com/avdonin/reviewbase/internal/middleware/auth"
	"github.com/avdonin/reviewbase/internal/models"
	"github.com/avdonin/reviewbase/internal/policy"
	"github.com/avdonin/reviewbase/internal/util"
)

type UserHandler struct {
	DB *gorm.DB
}

type userResponse struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Bio       string `json:"bio"`
	Role      string `json:"role"`
}

func userToResponse(u *models.User) userResponse {
	return userResponse{
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Bio:       u.Bio,
		Role:      u.Role,
	}
}

type userPatch struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Bio       *string `json:"bio"`
	Role      *string `json:"role"`
}

func applyUserPatch(u *models.User, p *userPatch) *echo.HTTPError {
	if p.Email != nil {
		if !validEmail(*p.Email) {
			return fieldError(http.StatusBadRequest, "email", "malformed email address")
		}
		u.Email = *p.Email
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Bio != nil {
		u.Bio = *p.Bio
	}
	return nil
}

func validRole(role string) bool {
	return role == models.RoleUser || role == models.RoleModerator || role == models.RoleAdmin
}

func (h *UserHandler) List(c echo.Context) error {
	caller := authmw.Caller(c)
	if !policy.Allow(caller, policy.ActionRead, policy.ResourceUserAccount, 0) {
		return denied(caller)
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	ctx := c.Request().Context()

	var total int64
	if err := h.DB.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var users []models.User
	if err := h.DB.WithContext(ctx).Order("username ASC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	data := make([]userResponse, len(users))
	for i := range users {
		data[i] = userToResponse(&users[i])
	}

	return c.JSON(http.StatusOK, echo.Map{
		"data": data,
		"meta": listMeta(page, limit, offset, total),
	})
}

func (h *UserHandler) Create(c echo.Context) error {
	caller := authmw.Caller(c)
	if !policy.Allow(caller, policy.ActionCreate, policy.ResourceUserAccount, 0) {
		return denied(caller)
	}

	var req struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Bio       string `json:"bio"`
		Role      string `json:"role"`
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
	if !validEmail(req.Email) {
		return fieldError(http.StatusBadRequest, "email", "malformed email address")
	}
	if req.Role == "" {
		req.Role = models.RoleUser
	}
	if !validRole(req.Role) {
		return fieldError(http.StatusBadRequest, "role", "unknown role")
	}

	user := models.User{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Bio:       req.Bio,
		Role:      req.Role,
		Active:    true,
	}
	if err := h.DB.WithContext(c.Request().Context()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fieldError(http.StatusBadRequest, "username", "username or email already in use")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, userToResponse(&user))
}

func (h *UserHandler) byUsername(c echo.Context) (*models.User, error) {
	var user models.User
	err := h.DB.WithContext(c.Request().Context()).
		Where("username = ?", c.Param("username")).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fieldError(http.StatusNotFound, "username", "user not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return &user, nil
}

func (h *UserHandler) Get(c echo.Context) error {
	caller := authmw.Caller(c)
	if !policy.Allow(caller, policy.ActionRead, policy.ResourceUserAccount, 0) {
		return denied(caller)
	}
	user, err := h.byUsername(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userToResponse(user))
}

func (h *UserHandler) Patch(c echo.Context) error {
	caller := authmw.Caller(c)
	if !policy.Allow(caller, policy.ActionUpdate, policy.ResourceUserAccount, 0) {
		return denied(caller)
	}
	user, err := h.byUsername(c)
	if err != nil {
		return err
	}

	var req userPatch
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if httpErr := applyUserPatch(user, &req); httpErr != nil {
		return httpErr
	}
	// Role changes ride the admin path only; see Me for the self-service one.
	if req.Role != nil {
		if !validRole(*req.Role) {
			return fieldError(http.StatusBadRequest, "role", "unknown role")
		}
		user.Role = *req.Role
	}

	if err := h.DB.WithContext(c.Request().Context()).Save(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fieldError(http.StatusBadRequest, "email", "email already in use")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, userToResponse(user))
}

func (h *UserHandler) Delete(c echo.Context) error {
	caller := authmw.Caller(c)
	if !policy.Allow(caller, policy.ActionDelete, policy.ResourceUserAccount, 0) {
		return denied(caller)
	}
	user, err := h.byUsername(c)
	if err != nil {
		return err
	}
	if err := h.DB.WithContext(c.Request().Context()).Delete(user).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// Me serves the caller's own profile. The role field is accepted in the
// payload but never applied here; only admins change roles.
func (h *UserHandler) Me(c echo.Context) error {
	caller := authmw.Caller(c)
	if !policy.Allow(caller, policy.ActionRead, policy.ResourceProfile, caller.ID) {
		return denied(caller)
	}

	ctx := c.Request().Context()

	var user models.User
	if err := h.DB.WithContext(ctx).First(&user, caller.ID).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if c.Request().Method == http.MethodPatch {
		if !policy.Allow(caller, policy.ActionUpdate, policy.ResourceProfile, caller.ID) {
			return denied(caller)
		}
		var req userPatch
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if httpErr := applyUserPatch(&user, &req); httpErr != nil {
			return httpErr
		}
		if err := h.DB.WithContext(ctx).Save(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fieldError(http.StatusBadRequest, "email", "email already in use")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusOK, userToResponse(&user))
}
