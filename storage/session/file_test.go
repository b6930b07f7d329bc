package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kazi", "token")
	store := NewFileStore(path)

	t.Run("absent credential loads as empty", func(t *testing.T) {
		cred, err := store.Load()
		require.NoError(t, err)
		assert.Empty(t, cred)
	})

	t.Run("save then load round-trips the exact credential", func(t *testing.T) {
		require.NoError(t, store.Save("tok-1"))

		cred, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, "tok-1", cred)
	})

	t.Run("save overwrites the prior value", func(t *testing.T) {
		require.NoError(t, store.Save("tok-2"))

		cred, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, "tok-2", cred)
	})

	t.Run("load returns the exact bytes saved", func(t *testing.T) {
		require.NoError(t, store.Save("  tok-3\n"))

		cred, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, "  tok-3\n", cred)
	})

	t.Run("clear removes the credential", func(t *testing.T) {
		require.NoError(t, store.Clear())

		cred, err := store.Load()
		require.NoError(t, err)
		assert.Empty(t, cred)
	})

	t.Run("clearing an empty store is not an error", func(t *testing.T) {
		assert.NoError(t, store.Clear())
	})
}
