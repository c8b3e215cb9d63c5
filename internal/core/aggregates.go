package core

import (
	"context"

	"tila/pkg/models"
)

// CategoryCounter supplies the user's item counts grouped by category
type CategoryCounter interface {
	CategoryCounts(ctx context.Context) (map[string]int, error)
}

// RecomputeCategoryCount writes the number of categories holding at least one item
func RecomputeCategoryCount(ctx context.Context, tx CategoryCounter, stats *models.UserStats) error {
	counts, err := tx.CategoryCounts(ctx)
	if err != nil {
		return err
	}

	n := 0
	for _, c := range counts {
		if c > 0 {
			n++
		}
	}
	stats.UniqueCategories = n
	return nil
}
