package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/texty/internal/config"
	"github.com/agenthands/texty/internal/store"
)

func TestWire_SQLite(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "app.db")
	cfg.LLM.APIKey = "test-key"

	a, err := Wire(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, a.Game)
	assert.IsType(t, &store.SQLiteStore{}, a.Store)

	games, err := a.Game.ListGames(context.Background())
	require.NoError(t, err)
	assert.Empty(t, games)

	require.NoError(t, a.Close(context.Background()))
}

func TestWire_UnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "app.db")
	cfg.LLM.Provider = "parrot"

	_, err := Wire(context.Background(), cfg)
	assert.ErrorContains(t, err, "unsupported llm provider")
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "floppy"
	_, err := OpenStore(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown storage backend")
}
