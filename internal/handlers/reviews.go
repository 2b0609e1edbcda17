package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/avdonin/reviewbase/internal/logging"
	authmw "github.com/avdonin/reviewbase/internal/middleware/auth"
	"github.com/avdonin/reviewbase/internal/models"
	"github.com/avdonin/reviewbase/internal/mykafka"
	"github.com/avdonin/reviewbase/internal/policy"
	"github.com/avdonin/reviewbase/internal/util"
)

const (
	MinScore = 1
	MaxScore = 10
)

type ReviewHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

type reviewResponse struct {
	ID      uint      `json:"id"`
	Text    string    `json:"text"`
	Author  string    `json:"author"`
	Score   int       `json:"score"`
	PubDate time.Time `json:"pub_date"`
}

func reviewToResponse(r *models.Review) reviewResponse {
	return reviewResponse{
		ID:      r.ID,
		Text:    r.Text,
		Author:  r.Author.Username,
		Score:   r.Score,
		PubDate: r.PubDate,
	}
}

func validateScore(score int) *echo.HTTPError {
	if score < MinScore {
		return fieldError(http.StatusBadRequest, "score", "score must be at least 1")
	}
	if score > MaxScore {
		return fieldError(http.StatusBadRequest, "score", "score must be at most 10")
	}
	return nil
}

func (h *ReviewHandler) publish(c echo.Context, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "review_events", key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

func titleByParam(ctx context.Context, db *gorm.DB, param string) (*models.Title, error) {
	id, err := strconv.Atoi(param)
	if err != nil {
		return nil, fieldError(http.StatusBadRequest, "title_id", "invalid title id")
	}
	var title models.Title
	if err := db.WithContext(ctx).First(&title, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fieldError(http.StatusNotFound, "title_id", "title not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return &title, nil
}

func (h *ReviewHandler) byID(c echo.Context, title *models.Title) (*models.Review, error) {
	id, err := strconv.Atoi(c.Param("review_id"))
	if err != nil {
		return nil, fieldError(http.StatusBadRequest, "review_id", "invalid review id")
	}

	var review models.Review
	if err := h.DB.WithContext(c.Request().Context()).
		Preload("Author").
		Where("title_id = ?", title.ID).
		First(&review, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fieldError(http.StatusNotFound, "review_id", "review not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return &review, nil
}

func (h *ReviewHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	title, err := titleByParam(ctx, h.DB, c.Param("title_id"))
	if err != nil {
		return err
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.WithContext(ctx).Model(&models.Review{}).
		Where("title_id = ?", title.ID).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var reviews []models.Review
	if err := h.DB.WithContext(ctx).
		Preload("Author").
		Where("title_id = ?", title.ID).
		Order("pub_date ASC").Offset(offset).Limit(limit).
		Find(&reviews).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	data := make([]reviewResponse, len(reviews))
	for i := range reviews {
		data[i] = reviewToResponse(&reviews[i])
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data": data,
		"meta": listMeta(page, limit, offset, total),
	})
}

func (h *ReviewHandler) Get(c echo.Context) error {
	title, err := titleByParam(c.Request().Context(), h.DB, c.Param("title_id"))
	if err != nil {
		return err
	}
	review, err := h.byID(c, title)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reviewToResponse(review))
}

// Create enforces one review per (title, author). The lookup below is only
// a friendly pre-check; the composite unique index catches the race between
// concurrent duplicate submissions.
func (h *ReviewHandler) Create(c echo.Context) error {
	caller := authmw.Caller(c)
	if !policy.Allow(caller, policy.ActionCreate, policy.ResourceReview, 0) {
		return denied(caller)
	}

	ctx := c.Request().Context()

	title, err := titleByParam(ctx, h.DB, c.Param("title_id"))
	if err != nil {
		return err
	}

	var req struct {
		Text  string `json:"text"`
		Score int    `json:"score"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Text == "" {
		return fieldError(http.StatusBadRequest, "text", "text is required")
	}
	if httpErr := validateScore(req.Score); httpErr != nil {
		return httpErr
	}

	var existing int64
	if err := h.DB.WithContext(ctx).Model(&models.Review{}).
		Where("title_id = ? AND author_id = ?", title.ID, caller.ID).
		Count(&existing).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if existing > 0 {
		return echo.NewHTTPError(http.StatusConflict, "you have already reviewed this title")
	}

	review := models.Review{
		Text:     req.Text,
		Score:    req.Score,
		AuthorID: caller.ID,
		TitleID:  title.ID,
	}
	if err := h.DB.WithContext(ctx).Create(&review).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return echo.NewHTTPError(http.StatusConflict, "you have already reviewed this title")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	review.Author.Username = authmw.Username(c)
	h.publish(c, strconv.FormatUint(uint64(review.ID), 10), map[string]any{
		"type":     "review_created",
		"title_id": title.ID,
		"author":   review.Author.Username,
		"score":    review.Score,
	})

	return c.JSON(http.StatusCreated, reviewToResponse(&review))
}

func (h *ReviewHandler) Patch(c echo.Context) error {
	title, err := titleByParam(c.Request().Context(), h.DB, c.Param("title_id"))
	if err != nil {
		return err
	}
	review, err := h.byID(c, title)
	if err != nil {
		return err
	}

	caller := authmw.Caller(c)
	if !policy.Allow(caller, policy.ActionUpdate, policy.ResourceReview, review.AuthorID) {
		return denied(caller)
	}

	var req struct {
		Text  *string `json:"text"`
		Score *int    `json:"score"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Text != nil {
		if *req.Text == "" {
			return fieldError(http.StatusBadRequest, "text", "text cannot be empty")
		}
		review.Text = *req.Text
	}
	if req.Score != nil {
		if httpErr := validateScore(*req.Score); httpErr != nil {
			return httpErr
		}
		review.Score = *req.Score
	}

	if err := h.DB.WithContext(c.Request().Context()).Save(review).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, reviewToResponse(review))
}

func (h *ReviewHandler) Delete(c echo.Context) error {
	title, err := titleByParam(c.Request().Context(), h.DB, c.Param("title_id"))
	if err != nil {
		return err
	}
	review, err := h.byID(c, title)
	if err != nil {
		return err
	}

	caller := authmw.Caller(c)
	if !policy.Allow(caller, policy.ActionDelete, policy.ResourceReview, review.AuthorID) {
		return denied(caller)
	}

	ctx := c.Request().Context()
	if err := h.DB.WithContext(ctx).Where("review_id = ?", review.ID).Delete(&models.Comment{}).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.DB.WithContext(ctx).Delete(review).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, strconv.FormatUint(uint64(review.ID), 10), map[string]any{
		"type":      "review_deleted",
		"title_id":  title.ID,
		"review_id": review.ID,
	})

	return c.NoContent(http.StatusNoContent)
}
