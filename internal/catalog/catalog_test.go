package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tila/pkg/models"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	require.Equal(t, 10, c.Len())

	all := c.All()
	assert.Equal(t, "first-steps", all[0].ID)
	assert.Equal(t, "advanced-mind", all[len(all)-1].ID)

	b, ok := c.Get("explorer")
	require.True(t, ok)
	assert.Equal(t, models.StatUniqueCategories, b.Criterion.Field)
	assert.Equal(t, 3, b.Criterion.Threshold)
	assert.Equal(t, 40, b.Points)
	assert.Equal(t, models.BadgeCategoryDiversity, b.Category)

	assert.Equal(t, 10+50+200+30+100+25+150+40+120+80, c.TotalPoints())
}

func TestAllReturnsCopy(t *testing.T) {
	c := Default()
	all := c.All()
	all[0].Points = 9999

	b, _ := c.Get("first-steps")
	assert.Equal(t, 10, b.Points)
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	cases := map[string]string{
		"empty": `badges: []`,
		"two criteria": `
badges:
  - {id: a, name: A, category: POINTS, criteria: {learnings: 1, total_points: 2}, points: 1}`,
		"unknown field": `
badges:
  - {id: a, name: A, category: POINTS, criteria: {karma: 1}, points: 1}`,
		"bad category": `
badges:
  - {id: a, name: A, category: FUN, criteria: {learnings: 1}, points: 1}`,
		"zero points": `
badges:
  - {id: a, name: A, category: POINTS, criteria: {learnings: 1}, points: 0}`,
		"duplicate id": `
badges:
  - {id: a, name: A, category: POINTS, criteria: {learnings: 1}, points: 1}
  - {id: a, name: B, category: POINTS, criteria: {learnings: 2}, points: 1}`,
		"negative threshold": `
badges:
  - {id: a, name: A, category: POINTS, criteria: {learnings: -1}, points: 1}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestParseAcceptsSnakeCaseKeys(t *testing.T) {
	c, err := Parse([]byte(`
badges:
  - {id: a, name: A, category: DIFFICULTY, criteria: {advanced_count: 2}, points: 5}`))
	require.NoError(t, err)

	b, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, models.StatAdvancedCount, b.Criterion.Field)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "badges.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
badges:
  - {id: solo, name: Solo, category: MILESTONES, criteria: {learnings: 1}, points: 3}`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	def, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10, def.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
