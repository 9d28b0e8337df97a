package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/aipm-identity/internal/config"
	"github.com/prn-tf/aipm-identity/internal/repository/recordstore"
)

func TestFactory_Open(t *testing.T) {
	ctx := context.Background()

	t.Run("file", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "auth")
		f := NewFactory(config.StorageConfig{Driver: DriverFile, Dir: dir}, zerolog.Nop())
		assert.False(t, f.IsSQL())

		backend, err := f.Open(ctx)
		require.NoError(t, err)
		defer backend.Close()

		assert.Equal(t, "file", backend.Name())
		assert.Nil(t, backend.Database)
		assert.NoError(t, backend.Health(ctx))
	})

	t.Run("sqlite", func(t *testing.T) {
		f := NewFactory(config.StorageConfig{
			Driver: DriverSQLite,
			SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "aipm.db")},
		}, zerolog.Nop())
		assert.True(t, f.IsSQL())

		backend, err := f.Open(ctx)
		require.NoError(t, err)
		defer backend.Close()

		assert.Equal(t, "sqlite", backend.Name())
		require.NoError(t, backend.Health(ctx))

		require.NoError(t, backend.Write(ctx, recordstore.CollectionUsers, []byte(`{"schema_version":1,"records":{}}`)))
		raw, err := backend.Read(ctx, recordstore.CollectionUsers)
		require.NoError(t, err)
		assert.JSONEq(t, `{"schema_version":1,"records":{}}`, string(raw))
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := NewFactory(config.StorageConfig{Driver: "mongo"}, zerolog.Nop()).Open(ctx)
		assert.Error(t, err)
	})
}
