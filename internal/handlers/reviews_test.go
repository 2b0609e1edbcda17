package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/avdonin/reviewbase/internal/models"
)

func (env *testEnv) reviewRequest(method string, titleID, reviewID uint, payload any, user *models.User) (rec *httptest.ResponseRecorder, c echo.Context) {
	tid := strconv.FormatUint(uint64(titleID), 10)
	rid := strconv.FormatUint(uint64(reviewID), 10)
	path := "/api/v1/titles/" + tid + "/reviews"
	if reviewID != 0 {
		path += "/" + rid
		rec, c = env.newRequest(method, path, payload, user)
		c.SetParamNames("title_id", "review_id")
		c.SetParamValues(tid, rid)
		return rec, c
	}
	rec, c = env.newRequest(method, path, payload, user)
	c.SetParamNames("title_id")
	c.SetParamValues(tid)
	return rec, c
}

func TestReviewCreate(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("critic", models.RoleUser)
	title := env.createTitle("Reviewed", 1990)

	rec, c := env.reviewRequest(http.MethodPost, title.ID, 0,
		map[string]any{"text": "loved it", "score": 9}, user)
	require.NoError(t, env.Reviews.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp reviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "critic", resp.Author)
	require.Equal(t, 9, resp.Score)
}

func TestReviewCreateRequiresAuthentication(t *testing.T) {
	env := newTestEnv(t)
	title := env.createTitle("Reviewed", 1990)

	_, c := env.reviewRequest(http.MethodPost, title.ID, 0,
		map[string]any{"text": "drive-by", "score": 5}, nil)
	require.Equal(t, http.StatusUnauthorized, httpCode(t, env.Reviews.Create(c)))
}

func TestReviewSecondReviewConflicts(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("critic", models.RoleUser)
	title := env.createTitle("Reviewed", 1990)
	env.createReview(user, title, 6)

	_, c := env.reviewRequest(http.MethodPost, title.ID, 0,
		map[string]any{"text": "changed my mind", "score": 9}, user)
	require.Equal(t, http.StatusConflict, httpCode(t, env.Reviews.Create(c)))

	var count int64
	require.NoError(t, env.DB.Model(&models.Review{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestReviewScoreBounds(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("critic", models.RoleUser)
	title := env.createTitle("Reviewed", 1990)

	_, c := env.reviewRequest(http.MethodPost, title.ID, 0,
		map[string]any{"text": "too low", "score": 0}, user)
	he, ok := env.Reviews.Create(c).(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, he.Code)
	require.Contains(t, he.Message.(echo.Map)["error"], "at least")

	_, c = env.reviewRequest(http.MethodPost, title.ID, 0,
		map[string]any{"text": "too high", "score": 11}, user)
	he, ok = env.Reviews.Create(c).(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, he.Code)
	require.Contains(t, he.Message.(echo.Map)["error"], "at most")
}

func TestReviewCreateUnknownTitle(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("critic", models.RoleUser)

	_, c := env.reviewRequest(http.MethodPost, 999, 0,
		map[string]any{"text": "phantom", "score": 5}, user)
	require.Equal(t, http.StatusNotFound, httpCode(t, env.Reviews.Create(c)))
}

func TestReviewListAndGetArePublic(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("critic", models.RoleUser)
	title := env.createTitle("Reviewed", 1990)
	review := env.createReview(user, title, 8)

	rec, c := env.reviewRequest(http.MethodGet, title.ID, 0, nil, nil)
	require.NoError(t, env.Reviews.List(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []reviewResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, "critic", resp.Data[0].Author)

	rec, c = env.reviewRequest(http.MethodGet, title.ID, review.ID, nil, nil)
	require.NoError(t, env.Reviews.Get(c))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestReviewGetScopedToTitle(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("critic", models.RoleUser)
	title := env.createTitle("Reviewed", 1990)
	other := env.createTitle("Other", 1991)
	review := env.createReview(user, title, 8)

	_, c := env.reviewRequest(http.MethodGet, other.ID, review.ID, nil, nil)
	require.Equal(t, http.StatusNotFound, httpCode(t, env.Reviews.Get(c)))
}

func TestReviewPatchOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser("owner", models.RoleUser)
	other := env.createUser("other", models.RoleUser)
	moderator := env.createUser("mod", models.RoleModerator)
	title := env.createTitle("Reviewed", 1990)
	review := env.createReview(owner, title, 5)

	payload := map[string]any{"score": 10}

	_, c := env.reviewRequest(http.MethodPatch, title.ID, review.ID, payload, other)
	require.Equal(t, http.StatusForbidden, httpCode(t, env.Reviews.Patch(c)))

	rec, c := env.reviewRequest(http.MethodPatch, title.ID, review.ID, payload, owner)
	require.NoError(t, env.Reviews.Patch(c))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, c = env.reviewRequest(http.MethodPatch, title.ID, review.ID,
		map[string]any{"text": "trimmed by moderation"}, moderator)
	require.NoError(t, env.Reviews.Patch(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var stored models.Review
	require.NoError(t, env.DB.First(&stored, review.ID).Error)
	require.Equal(t, 10, stored.Score)
	require.Equal(t, "trimmed by moderation", stored.Text)
}

func TestReviewDeleteRemovesComments(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser("owner", models.RoleUser)
	title := env.createTitle("Reviewed", 1990)
	review := env.createReview(owner, title, 5)
	require.NoError(t, env.DB.Create(&models.Comment{
		Text: "first", AuthorID: owner.ID, ReviewID: review.ID,
	}).Error)

	rec, c := env.reviewRequest(http.MethodDelete, title.ID, review.ID, nil, owner)
	require.NoError(t, env.Reviews.Delete(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var comments int64
	require.NoError(t, env.DB.Model(&models.Comment{}).Count(&comments).Error)
	require.Zero(t, comments)
}
