package localcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) (*Cache, string) {
	t.Helper()
	dir := t.TempDir()
	c := Open(dir)
	n := 0
	c.newID = func() string {
		n++
		return "gen-" + string(rune('0'+n))
	}
	return c, dir
}

func TestLoad_Empty(t *testing.T) {
	c, _ := openTest(t)
	items, err := c.Load()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLoad_NormalizesLegacyItems(t *testing.T) {
	c, dir := openTest(t)
	legacy := `[
		{"id": 1712345678901, "text": "old", "date": "2024-4-5"},
		{"text": "no id", "startDate": "2024-04-10", "endDate": "2024-04-01", "repeatDays": [6, 1, 9, 1]},
		{"id": "keep", "text": "fine", "done": true, "startDate": "2024-04-01", "endDate": "2024-04-03", "repeatDays": []},
		null
	]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, Key), []byte(legacy), 0o600))

	items, err := c.Load()
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, Item{ID: "1712345678901", Text: "old", StartDate: "2024-04-05", EndDate: "2024-04-05", RepeatDays: []int{}}, items[0])
	assert.Equal(t, Item{ID: "gen-1", Text: "no id", StartDate: "2024-04-10", EndDate: "2024-04-10", RepeatDays: []int{1, 6}}, items[1])
	assert.Equal(t, "keep", items[2].ID)
	assert.True(t, items[2].Done)

	// The normalized list was written back: loading again is stable.
	again, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, items, again)
}

func TestLoad_CorruptListIsEmpty(t *testing.T) {
	c, dir := openTest(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, Key), []byte("{not json"), 0o600))

	items, err := c.Load()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAddSaveClear(t *testing.T) {
	c, _ := openTest(t)

	added, err := c.Add(Item{Text: "a", StartDate: "2024-04-01", EndDate: "2024-04-01"})
	require.NoError(t, err)
	assert.Equal(t, "gen-1", added.ID)

	_, err = c.Add(Item{ID: "x", Text: "b"})
	require.NoError(t, err)

	items, err := c.Load()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "x", items[1].ID)

	require.NoError(t, c.Save([]Item{items[0]}))
	items, err = c.Load()
	require.NoError(t, err)
	assert.Len(t, items, 1)

	require.NoError(t, c.Clear())
	require.NoError(t, c.Clear())
	items, err = c.Load()
	require.NoError(t, err)
	assert.Empty(t, items)
}
