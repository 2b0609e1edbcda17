// Package rating computes a title's rating from its review scores at read
// time. Nothing is stored or invalidated on writes; every read recomputes
// the aggregate.
package rating

import (
	"context"
	"math"

	"gorm.io/gorm"

	"github.com/avdonin/reviewbase/internal/models"
)

// Round converts a mean score to the displayed integer rating using
// round-half-up: 7.5 becomes 8, 7.4 becomes 7.
func Round(avg float64) int {
	return int(math.Floor(avg + 0.5))
}

// ForTitle returns the rounded mean score of a title's reviews, or nil when
// the title has no reviews.
func ForTitle(ctx context.Context, db *gorm.DB, titleID uint) (*int, error) {
	ratings, err := ForTitles(ctx, db, []uint{titleID})
	if err != nil {
		return nil, err
	}
	if r, ok := ratings[titleID]; ok {
		v := r
		return &v, nil
	}
	return nil, nil
}

// ForTitles computes ratings for a page of titles with a single grouped
// query. Titles without reviews are absent from the result map.
func ForTitles(ctx context.Context, db *gorm.DB, titleIDs []uint) (map[uint]int, error) {
	ratings := make(map[uint]int, len(titleIDs))
	if len(titleIDs) == 0 {
		return ratings, nil
	}

	var rows []struct {
		TitleID  uint
		AvgScore float64
	}
	if err := db.WithContext(ctx).
		Model(&models.Review{}).
		Select("title_id, AVG(score) AS avg_score").
		Where("title_id IN ?", titleIDs).
		Group("title_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		ratings[row.TitleID] = Round(row.AvgScore)
	}
	return ratings, nil
}
