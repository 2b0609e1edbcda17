package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	authmw "github.com/avdonin/reviewbase/internal/middleware/auth"
	"github.com/avdonin/reviewbase/internal/models"
	"github.com/avdonin/reviewbase/internal/policy"
	"github.com/avdonin/reviewbase/internal/util"
)

type CommentHandler struct {
	DB *gorm.DB
}

type commentResponse struct {
	ID      uint      `json:"id"`
	Text    string    `json:"text"`
	Author  string    `json:"author"`
	PubDate time.Time `json:"pub_date"`
}

func commentToResponse(cm *models.Comment) commentResponse {
	return commentResponse{
		ID:      cm.ID,
		Text:    cm.Text,
		Author:  cm.Author.Username,
		PubDate: cm.PubDate,
	}
}

// parentReview resolves the title/review pair from the path, 404 when the
// review does not belong to the title.
func (h *CommentHandler) parentReview(c echo.Context) (*models.Review, error) {
	ctx := c.Request().Context()

	title, err := titleByParam(ctx, h.DB, c.Param("title_id"))
	if err != nil {
		return nil, err
	}

	reviewID, aerr := strconv.Atoi(c.Param("review_id"))
	if aerr != nil {
		return nil, fieldError(http.StatusBadRequest, "review_id", "invalid review id")
	}

	var review models.Review
	if err := h.DB.WithContext(ctx).
		Where("title_id = ?", title.ID).
		First(&review, reviewID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fieldError(http.StatusNotFound, "review_id", "review not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return &review, nil
}

func (h *CommentHandler) byID(ctx context.Context, review *models.Review, param string) (*models.Comment, error) {
	id, err := strconv.Atoi(param)
	if err != nil {
		return nil, fieldError(http.StatusBadRequest, "id", "invalid comment id")
	}

	var comment models.Comment
	if err := h.DB.WithContext(ctx).
		Preload("Author").
		Where("review_id = ?", review.ID).
		First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fieldError(http.StatusNotFound, "id", "comment not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return &comment, nil
}

func (h *CommentHandler) List(c echo.Context) error {
	review, err := h.parentReview(c)
	if err != nil {
		return err
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	ctx := c.Request().Context()

	var total int64
	if err := h.DB.WithContext(ctx).Model(&models.Comment{}).
		Where("review_id = ?", review.ID).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var comments []models.Comment
	if err := h.DB.WithContext(ctx).
		Preload("Author").
		Where("review_id = ?", review.ID).
		Order("pub_date ASC").Offset(offset).Limit(limit).
		Find(&comments).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	data := make([]commentResponse, len(comments))
	for i := range comments {
		data[i] = commentToResponse(&comments[i])
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data": data,
		"meta": listMeta(page, limit, offset, total),
	})
}

func (h *CommentHandler) Get(c echo.Context) error {
	review, err := h.parentReview(c)
	if err != nil {
		return err
	}
	comment, err := h.byID(c.Request().Context(), review, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, commentToResponse(comment))
}

func (h *CommentHandler) Create(c echo.Context) error {
	caller := authmw.Caller(c)
	if !policy.Allow(caller, policy.ActionCreate, policy.ResourceComment, 0) {
		return denied(caller)
	}

	review, err := h.parentReview(c)
	if err != nil {
		return err
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Text == "" {
		return fieldError(http.StatusBadRequest, "text", "text is required")
	}

	comment := models.Comment{
		Text:     req.Text,
		AuthorID: caller.ID,
		ReviewID: review.ID,
	}
	if err := h.DB.WithContext(c.Request().Context()).Create(&comment).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	comment.Author.Username = authmw.Username(c)
	return c.JSON(http.StatusCreated, commentToResponse(&comment))
}

func (h *CommentHandler) Patch(c echo.Context) error {
	review, err := h.parentReview(c)
	if err != nil {
		return err
	}
	comment, err := h.byID(c.Request().Context(), review, c.Param("id"))
	if err != nil {
		return err
	}

	caller := authmw.Caller(c)
	if !policy.Allow(caller, policy.ActionUpdate, policy.ResourceComment, comment.AuthorID) {
		return denied(caller)
	}

	var req struct {
		Text *string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Text != nil {
		if *req.Text == "" {
			return fieldError(http.StatusBadRequest, "text", "text cannot be empty")
		}
		comment.Text = *req.Text
	}

	if err := h.DB.WithContext(c.Request().Context()).Save(comment).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, commentToResponse(comment))
}

func (h *CommentHandler) Delete(c echo.Context) error {
	review, err := h.parentReview(c)
	if err != nil {
		return err
	}
	comment, err := h.byID(c.Request().Context(), review, c.Param("id"))
	if err != nil {
		return err
	}

	caller := authmw.Caller(c)
	if !policy.Allow(caller, policy.ActionDelete, policy.ResourceComment, comment.AuthorID) {
		return denied(caller)
	}

	if err := h.DB.WithContext(c.Request().Context()).Delete(comment).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
