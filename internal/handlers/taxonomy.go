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

// Genres and categories are create-list-destroy resources: no detail or
// update endpoints, writes are admin-only, listing is open.

type GenreHandler struct {
	DB *gorm.DB
}

type CategoryHandler struct {
	DB *gorm.DB
}

type slugRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (r *slugRequest) validate() *echo.HTTPError {
	if r.Name == "" {
		return fieldError(http.StatusBadRequest, "name", "name is required")
	}
	if r.Slug == "" {
		return fieldError(http.StatusBadRequest, "slug", "slug is required")
	}
	return nil
}

func (h *GenreHandler) List(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	ctx := c.Request().Context()

	var total int64
	if err := h.DB.WithContext(ctx).Model(&models.Genre{}).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var genres []models.Genre
	if err := h.DB.WithContext(ctx).Order("slug ASC").Offset(offset).Limit(limit).Find(&genres).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	data := make([]slugResponse, len(genres))
	for i, g := range genres {
		data[i] = slugResponse{Name: g.Name, Slug: g.Slug}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data": data,
		"meta": listMeta(page, limit, offset, total),
	})
}

func (h *GenreHandler) Create(c echo.Context) error {
	caller := authmw.Caller(c)
	if !policy.Allow(caller, policy.ActionCreate, policy.ResourceGenre, 0) {
		return denied(caller)
	}

	var req slugRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if httpErr := req.validate(); httpErr != nil {
		return httpErr
	}

	genre := models.Genre{Name: req.Name, Slug: req.Slug}
	if err := h.DB.WithContext(c.Request().Context()).Create(&genre).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fieldError(http.StatusBadRequest, "slug", "slug already in use")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, slugResponse{Name: genre.Name, Slug: genre.Slug})
}

func (h *GenreHandler) Delete(c echo.Context) error {
	caller := authmw.Caller(c)
	if !policy.Allow(caller, policy.ActionDelete, policy.ResourceGenre, 0) {
		return denied(caller)
	}

	ctx := c.Request().Context()

	var genre models.Genre
	if err := h.DB.WithContext(ctx).Where("slug = ?", c.Param("slug")).First(&genre).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fieldError(http.StatusNotFound, "slug", "genre not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.DB.WithContext(ctx).Delete(&genre).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CategoryHandler) List(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	ctx := c.Request().Context()

	var total int64
	if err := h.DB.WithContext(ctx).Model(&models.Category{}).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var categories []models.Category
	if err := h.DB.WithContext(ctx).Order("slug ASC").Offset(offset).Limit(limit).Find(&categories).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	data := make([]slugResponse, len(categories))
	for i, cat := range categories {
		data[i] = slugResponse{Name: cat.Name, Slug: cat.Slug}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data": data,
		"meta": listMeta(page, limit, offset, total),
	})
}

func (h *CategoryHandler) Create(c echo.Context) error {
	caller := authmw.Caller(c)
	if !policy.Allow(caller, policy.ActionCreate, policy.ResourceCategory, 0) {
		return denied(caller)
	}

	var req slugRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if httpErr := req.validate(); httpErr != nil {
		return httpErr
	}

	category := models.Category{Name: req.Name, Slug: req.Slug}
	if err := h.DB.WithContext(c.Request().Context()).Create(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fieldError(http.StatusBadRequest, "slug", "slug already in use")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, slugResponse{Name: category.Name, Slug: category.Slug})
}

// Delete removes a category; titles that referenced it keep existing with a
// null category (store-level SET NULL, never a cascade).
func (h *CategoryHandler) Delete(c echo.Context) error {
	caller := authmw.Caller(c)
	if !policy.Allow(caller, policy.ActionDelete, policy.ResourceCategory, 0) {
		return denied(caller)
	}

	ctx := c.Request().Context()

	var category models.Category
	if err := h.DB.WithContext(ctx).Where("slug = ?", c.Param("slug")).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fieldError(http.StatusNotFound, "slug", "category not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.DB.WithContext(ctx).Model(&models.Title{}).
		Where("category_id = ?", category.ID).
		Update("category_id", nil).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.DB.WithContext(ctx).Delete(&category).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
