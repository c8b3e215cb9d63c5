package utils

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tila/pkg/models"
)

func TestValidateUserID(t *testing.T) {
	assert.NoError(t, ValidateUserID("8f14e45f-ceea-467f-a0e6-0b5d1c1c6a35"))

	for _, bad := range []string{"", "   ", "a\nb", strings.Repeat("x", MaxUserIDLength+1)} {
		err := ValidateUserID(bad)
		assert.ErrorIs(t, err, models.ErrInvalidInput, "%q", bad)
	}
}

func TestValidateItem(t *testing.T) {
	assert.NoError(t, ValidateItem(&models.Item{CategoryID: "go", Title: "Generics"}))

	assert.Error(t, ValidateItem(nil))
	assert.Error(t, ValidateItem(&models.Item{Title: "no category"}))
	assert.Error(t, ValidateItem(&models.Item{CategoryID: "go", Title: "  "}))
	assert.Error(t, ValidateItem(&models.Item{CategoryID: "go", Title: strings.Repeat("é", MaxTitleLength+1)}))
}

func TestTimeAgo(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

	cases := map[time.Duration]string{
		10 * time.Second:   "just now",
		time.Minute:        "1 minute ago",
		5 * time.Minute:    "5 minutes ago",
		3 * time.Hour:      "3 hours ago",
		30 * time.Hour:     "yesterday",
		4 * 24 * time.Hour: "4 days ago",
		8 * 24 * time.Hour: "1 week ago",
	}
	for ago, want := range cases {
		assert.Equal(t, want, TimeAgo(now.Add(-ago), now), ago.String())
	}
	assert.Equal(t, "2024-01-01", TimeAgo(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), now))
}

func TestIsContextError(t *testing.T) {
	assert.True(t, IsContextError(context.Canceled))
	assert.True(t, IsContextError(fmt.Errorf("query: %w", context.DeadlineExceeded)))
	assert.False(t, IsContextError(models.ErrUserNotFound))
	assert.False(t, IsContextError(nil))
}
