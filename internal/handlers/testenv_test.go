package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	authmw "github.com/avdonin/reviewbase/internal/middleware/auth"
	"github.com/avdonin/reviewbase/internal/models"
	"github.com/avdonin/reviewbase/internal/mykafka"
)

type fakeMailer struct {
	To       string
	LastCode string
	Sent     int
	Err      error
}

func (m *fakeMailer) SendConfirmationCode(to, code string) error {
	if m.Err != nil {
		return m.Err
	}
	m.To = to
	m.LastCode = code
	m.Sent++
	return nil
}

type testEnv struct {
	T          *testing.T
	E          *echo.Echo
	DB         *gorm.DB
	Mailer     *fakeMailer
	Auth       *AuthHandler
	Users      *UserHandler
	Titles     *TitleHandler
	Genres     *GenreHandler
	Categories *CategoryHandler
	Reviews    *ReviewHandler
	Comments   *CommentHandler
}

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Genre{},
		&models.Title{},
		&models.Review{},
		&models.Comment{},
	); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	db := initTestDB(t)
	mailer := &fakeMailer{}
	producer := &mykafka.Producer{}

	return &testEnv{
		T:      t,
		E:      echo.New(),
		DB:     db,
		Mailer: mailer,
		Auth: &AuthHandler{
			DB:            db,
			Mailer:        mailer,
			JWTSecret:     []byte("test-jwt-secret"),
			RefreshSecret: []byte("test-refresh-secret"),
			ConfirmSecret: []byte("test-confirm-secret"),
			Producer:      producer,
		},
		Users:      &UserHandler{DB: db},
		Titles:     &TitleHandler{DB: db, Producer: producer},
		Genres:     &GenreHandler{DB: db},
		Categories: &CategoryHandler{DB: db},
		Reviews:    &ReviewHandler{DB: db, Producer: producer},
		Comments:   &CommentHandler{DB: db},
	}
}

// newRequest builds an echo context for a direct handler call. A nil user
// leaves the request anonymous; otherwise the context is primed the way the
// auth middleware would.
func (env *testEnv) newRequest(method, path string, payload any, user *models.User) (*httptest.ResponseRecorder, echo.Context) {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			env.T.Fatalf("failed to encode payload: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	if user != nil {
		authmw.SetCaller(c, user)
	}
	return rec, c
}

func (env *testEnv) createUser(username, role string) *models.User {
	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		Role:     role,
		Active:   true,
	}
	if err := env.DB.Create(&user).Error; err != nil {
		env.T.Fatalf("failed to create user %s: %v", username, err)
	}
	return &user
}

func (env *testEnv) createTitle(name string, year int) *models.Title {
	title := models.Title{Name: name, Year: year}
	if err := env.DB.Create(&title).Error; err != nil {
		env.T.Fatalf("failed to create title %s: %v", name, err)
	}
	return &title
}

func (env *testEnv) createReview(author *models.User, title *models.Title, score int) *models.Review {
	review := models.Review{
		Text:     "review text",
		Score:    score,
		AuthorID: author.ID,
		TitleID:  title.ID,
	}
	if err := env.DB.Create(&review).Error; err != nil {
		env.T.Fatalf("failed to create review: %v", err)
	}
	return &review
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	return he.Code
}
