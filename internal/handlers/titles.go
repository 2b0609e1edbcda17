package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/avdonin/reviewbase/internal/logging"
	authmw "github.com/avdonin/reviewbase/internal/middleware/auth"
	"github.com/avdonin/reviewbase/internal/models"
	"github.com/avdonin/reviewbase/internal/mykafka"
	"github.com/avdonin/reviewbase/internal/policy"
	"github.com/avdonin/reviewbase/internal/rating"
	"github.com/avdonin/reviewbase/internal/service/search"
	"github.com/avdonin/reviewbase/internal/util"
)

type TitleHandler struct {
	DB       *gorm.DB
	ES       *elasticsearch.Client
	ESIndex  string
	Producer *mykafka.Producer
}

type slugResponse struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type titleResponse struct {
	ID          uint           `json:"id"`
	Name        string         `json:"name"`
	Year        int            `json:"year"`
	Rating      *int           `json:"rating"`
	Description string         `json:"description"`
	Genres      []slugResponse `json:"genres"`
	Category    *slugResponse  `json:"category"`
}

func titleToResponse(t *models.Title, titleRating *int) titleResponse {
	resp := titleResponse{
		ID:          t.ID,
		Name:        t.Name,
		Year:        t.Year,
		Rating:      titleRating,
		Description: t.Description,
		Genres:      make([]slugResponse, len(t.Genres)),
	}
	for i, g := range t.Genres {
		resp.Genres[i] = slugResponse{Name: g.Name, Slug: g.Slug}
	}
	if t.Category != nil {
		resp.Category = &slugResponse{Name: t.Category.Name, Slug: t.Category.Slug}
	}
	return resp
}

func (h *TitleHandler) publish(c echo.Context, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "title_events", key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

func (h *TitleHandler) index(c echo.Context, title *models.Title) {
	if h.ES == nil {
		return
	}
	if err := search.IndexTitle(c.Request().Context(), h.ES, h.ESIndex, title); err != nil {
		logging.FromContext(c.Request().Context()).Error("title indexing failed", "title_id", title.ID, "error", err)
	}
}

func (h *TitleHandler) genresBySlugs(ctx context.Context, slugs []string) ([]models.Genre, *echo.HTTPError) {
	genres := make([]models.Genre, 0, len(slugs))
	for _, slug := range slugs {
		var genre models.Genre
		if err := h.DB.WithContext(ctx).Where("slug = ?", slug).First(&genre).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fieldError(http.StatusBadRequest, "genre", "unknown genre slug: "+slug)
			}
			return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		genres = append(genres, genre)
	}
	return genres, nil
}

func (h *TitleHandler) categoryBySlug(ctx context.Context, slug string) (*models.Category, *echo.HTTPError) {
	var category models.Category
	if err := h.DB.WithContext(ctx).Where("slug = ?", slug).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fieldError(http.StatusBadRequest, "category", "unknown category slug: "+slug)
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return &category, nil
}

func (h *TitleHandler) List(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	ctx := c.Request().Context()

	var total int64
	if err := h.DB.WithContext(ctx).Model(&models.Title{}).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var titles []models.Title
	if err := h.DB.WithContext(ctx).
		Preload("Genres").Preload("Category").
		Order("name ASC").Offset(offset).Limit(limit).
		Find(&titles).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	ids := make([]uint, len(titles))
	for i := range titles {
		ids[i] = titles[i].ID
	}
	ratings, err := rating.ForTitles(ctx, h.DB, ids)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	data := make([]titleResponse, len(titles))
	for i := range titles {
		var r *int
		if v, ok := ratings[titles[i].ID]; ok {
			val := v
			r = &val
		}
		data[i] = titleToResponse(&titles[i], r)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"data": data,
		"meta": listMeta(page, limit, offset, total),
	})
}

func (h *TitleHandler) byID(c echo.Context) (*models.Title, error) {
	id, err := strconv.Atoi(c.Param("title_id"))
	if err != nil {
		return nil, fieldError(http.StatusBadRequest, "title_id", "invalid title id")
	}

	var title models.Title
	if err := h.DB.WithContext(c.Request().Context()).
		Preload("Genres").Preload("Category").
		First(&title, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fieldError(http.StatusNotFound, "title_id", "title not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return &title, nil
}

func (h *TitleHandler) Get(c echo.Context) error {
	title, err := h.byID(c)
	if err != nil {
		return err
	}

	r, rerr := rating.ForTitle(c.Request().Context(), h.DB, title.ID)
	if rerr != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, rerr.Error())
	}
	return c.JSON(http.StatusOK, titleToResponse(title, r))
}

func (h *TitleHandler) Create(c echo.Context) error {
	caller := authmw.Caller(c)
	if !policy.Allow(caller, policy.ActionCreate, policy.ResourceTitle, 0) {
		return denied(caller)
	}

	var req struct {
		Name        string   `json:"name"`
		Year        int      `json:"year"`
		Description string   `json:"description"`
		Genres      []string `json:"genre"`
		Category    string   `json:"category"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return fieldError(http.StatusBadRequest, "name", "name is required")
	}
	if req.Year > time.Now().Year() {
		return fieldError(http.StatusBadRequest, "year", "year is in the future")
	}

	ctx := c.Request().Context()

	genres, httpErr := h.genresBySlugs(ctx, req.Genres)
	if httpErr != nil {
		return httpErr
	}

	title := models.Title{
		Name:        req.Name,
		Year:        req.Year,
		Description: req.Description,
		Genres:      genres,
	}
	if req.Category != "" {
		category, httpErr := h.categoryBySlug(ctx, req.Category)
		if httpErr != nil {
			return httpErr
		}
		title.CategoryID = &category.ID
		title.Category = category
	}

	if err := h.DB.WithContext(ctx).Create(&title).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.index(c, &title)
	h.publish(c, strconv.FormatUint(uint64(title.ID), 10), map[string]any{
		"type":     "title_created",
		"title_id": title.ID,
		"name":     title.Name,
	})

	return c.JSON(http.StatusCreated, titleToResponse(&title, nil))
}

func (h *TitleHandler) Patch(c echo.Context) error {
	caller := authmw.Caller(c)
	if !policy.Allow(caller, policy.ActionUpdate, policy.ResourceTitle, 0) {
		return denied(caller)
	}

	title, err := h.byID(c)
	if err != nil {
		return err
	}

	var req struct {
		Name        *string   `json:"name"`
		Year        *int      `json:"year"`
		Description *string   `json:"description"`
		Genres      *[]string `json:"genre"`
		Category    *string   `json:"category"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()

	if req.Name != nil {
		if *req.Name == "" {
			return fieldError(http.StatusBadRequest, "name", "name cannot be empty")
		}
		title.Name = *req.Name
	}
	if req.Year != nil {
		if *req.Year > time.Now().Year() {
			return fieldError(http.StatusBadRequest, "year", "year is in the future")
		}
		title.Year = *req.Year
	}
	if req.Description != nil {
		title.Description = *req.Description
	}
	if req.Category != nil {
		category, httpErr := h.categoryBySlug(ctx, *req.Category)
		if httpErr != nil {
			return httpErr
		}
		title.CategoryID = &category.ID
		title.Category = category
	}
	if req.Genres != nil {
		genres, httpErr := h.genresBySlugs(ctx, *req.Genres)
		if httpErr != nil {
			return httpErr
		}
		if err := h.DB.WithContext(ctx).Model(title).Association("Genres").Replace(genres); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		title.Genres = genres
	}

	if err := h.DB.WithContext(ctx).Save(title).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.index(c, title)
	h.publish(c, strconv.FormatUint(uint64(title.ID), 10), map[string]any{
		"type":     "title_updated",
		"title_id": title.ID,
		"name":     title.Name,
	})

	r, rerr := rating.ForTitle(ctx, h.DB, title.ID)
	if rerr != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, rerr.Error())
	}
	return c.JSON(http.StatusOK, titleToResponse(title, r))
}

// Put rejects full updates: titles support partial revision only.
func (h *TitleHandler) Put(c echo.Context) error {
	return echo.NewHTTPError(http.StatusMethodNotAllowed, "full update is not allowed, use PATCH")
}

func (h *TitleHandler) Delete(c echo.Context) error {
	caller := authmw.Caller(c)
	if !policy.Allow(caller, policy.ActionDelete, policy.ResourceTitle, 0) {
		return denied(caller)
	}

	title, err := h.byID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := h.DB.WithContext(ctx).Select("Genres").Delete(title).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if h.ES != nil {
		if err := search.DeleteTitle(ctx, h.ES, h.ESIndex, title.ID); err != nil {
			logging.FromContext(ctx).Error("title deindexing failed", "title_id", title.ID, "error", err)
		}
	}
	h.publish(c, strconv.FormatUint(uint64(title.ID), 10), map[string]any{
		"type":     "title_deleted",
		"title_id": title.ID,
	})

	return c.NoContent(http.StatusNoContent)
}
