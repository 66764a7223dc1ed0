package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/fueltrack/internal/db"
)

func TestAddToGitignore(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".gitignore")
	require.NoError(t, os.WriteFile(path, []byte("node_modules"), 0644))

	addToGitignore(path, ".fuel/")
	addToGitignore(path, ".fuel/")

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "node_modules\n.fuel/\n", string(got))
}

func TestInitializeCreatesFirstAdmin(t *testing.T) {
	dir := t.TempDir()

	_, err := db.Open(dir)
	assert.ErrorIs(t, err, db.ErrNotInitialized)

	database, err := db.Initialize(dir)
	require.NoError(t, err)
	defer database.Close()

	created, err := database.EnsureAdminAccount()
	require.NoError(t, err)
	assert.True(t, created)

	created, err = database.EnsureAdminAccount()
	require.NoError(t, err)
	assert.False(t, created, "second run keeps the existing admin")

	a, err := database.Authenticate(db.DefaultAdminEmail, db.DefaultAdminCredential)
	require.NoError(t, err)
	assert.True(t, a.IsAdmin())
}
