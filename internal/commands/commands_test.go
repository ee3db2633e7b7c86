package commands

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonenae10-blip/todo/internal/localcache"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := New()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLocalCommands(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, "--dir", dir, "local", "add", "buy", "milk", "--on", "2024-3-4")
	require.NoError(t, err)
	assert.Contains(t, out, "added ")

	_, err = run(t, "--dir", dir, "local", "add", "gym", "--on", "2024-03-04", "--until", "2024-03-31", "--repeat", "3,1,1")
	require.NoError(t, err)

	out, err = run(t, "--dir", dir, "local", "list")
	require.NoError(t, err)
	var items []localcache.Item
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 2)
	assert.Equal(t, "buy milk", items[0].Text)
	assert.Equal(t, "2024-03-04", items[0].EndDate)
	assert.Equal(t, []int{1, 3}, items[1].RepeatDays)
	assert.Equal(t, "2024-03-31", items[1].EndDate)

	_, err = run(t, "--dir", dir, "local", "clear")
	require.NoError(t, err)
	out, err = run(t, "--dir", dir, "local", "list")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestLocalAddValidation(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, "--dir", dir, "local", "add", "x", "--repeat", "7")
	assert.Error(t, err)

	_, err = run(t, "--dir", dir, "local", "add", "x", "--on", "someday-ish")
	assert.Error(t, err)

	_, err = run(t, "--dir", dir, "local", "add", " ")
	assert.Error(t, err)
}

func TestMigrateRequiresUID(t *testing.T) {
	_, err := run(t, "--dir", t.TempDir(), "migrate")
	assert.EqualError(t, err, "--uid is required")
}
