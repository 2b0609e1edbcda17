package rating

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/avdonin/reviewbase/internal/models"
)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Title{}, &models.Review{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func TestRound(t *testing.T) {
	require.Equal(t, 8, Round(8.0))
	require.Equal(t, 8, Round(7.5))
	require.Equal(t, 7, Round(7.4))
	require.Equal(t, 8, Round(8.4))
	require.Equal(t, 1, Round(1.0))
}

func TestForTitle(t *testing.T) {
	db := initTestDB(t)
	ctx := context.Background()

	title := models.Title{Name: "The Master and Margarita", Year: 1967}
	require.NoError(t, db.Create(&title).Error)
	empty := models.Title{Name: "Dead Souls", Year: 1842}
	require.NoError(t, db.Create(&empty).Error)

	for i, score := range []int{8, 10, 6} {
		author := models.User{
			Username: fmt.Sprintf("reader%d", i),
			Email:    fmt.Sprintf("reader%d@example.com", i),
			Role:     models.RoleUser,
			Active:   true,
		}
		require.NoError(t, db.Create(&author).Error)
		require.NoError(t, db.Create(&models.Review{
			Text:     "review text",
			Score:    score,
			AuthorID: author.ID,
			TitleID:  title.ID,
		}).Error)
	}

	r, err := ForTitle(ctx, db, title.ID)
	require.NoError(t, err)
	require.NotNil(t, r)
	require.Equal(t, 8, *r)

	none, err := ForTitle(ctx, db, empty.ID)
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestForTitlesGrouped(t *testing.T) {
	db := initTestDB(t)
	ctx := context.Background()

	first := models.Title{Name: "First", Year: 2000}
	second := models.Title{Name: "Second", Year: 2001}
	third := models.Title{Name: "Third", Year: 2002}
	require.NoError(t, db.Create(&first).Error)
	require.NoError(t, db.Create(&second).Error)
	require.NoError(t, db.Create(&third).Error)

	author := models.User{Username: "reader", Email: "reader@example.com", Role: models.RoleUser, Active: true}
	require.NoError(t, db.Create(&author).Error)
	other := models.User{Username: "critic", Email: "critic@example.com", Role: models.RoleUser, Active: true}
	require.NoError(t, db.Create(&other).Error)

	require.NoError(t, db.Create(&models.Review{Text: "t", Score: 7, AuthorID: author.ID, TitleID: first.ID}).Error)
	require.NoError(t, db.Create(&models.Review{Text: "t", Score: 8, AuthorID: other.ID, TitleID: first.ID}).Error)
	require.NoError(t, db.Create(&models.Review{Text: "t", Score: 3, AuthorID: author.ID, TitleID: second.ID}).Error)

	ratings, err := ForTitles(ctx, db, []uint{first.ID, second.ID, third.ID})
	require.NoError(t, err)
	require.Equal(t, 8, ratings[first.ID])
	require.Equal(t, 3, ratings[second.ID])
	_, ok := ratings[third.ID]
	require.False(t, ok)
}
