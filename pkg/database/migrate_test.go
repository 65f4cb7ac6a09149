package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateDelegatesToGoose(t *testing.T) {
	original := RunMigrations
	t.Cleanup(func() { RunMigrations = original })

	var gotCommand, gotDir string
	var gotArgs []string
	RunMigrations = func(_ context.Context, command string, _ *sql.DB, dir string, args ...string) error {
		gotCommand, gotDir, gotArgs = command, dir, args
		return nil
	}

	fsys := fstest.MapFS{"00001_init.sql": {Data: []byte("-- +goose Up\nSELECT 1;")}}
	require.NoError(t, Migrate(context.Background(), nil, fsys, "up-to", "3"))
	assert.Equal(t, "up-to", gotCommand)
	assert.Equal(t, ".", gotDir)
	assert.Equal(t, []string{"3"}, gotArgs)
}

func TestMigrateWrapsError(t *testing.T) {
	original := RunMigrations
	t.Cleanup(func() { RunMigrations = original })

	RunMigrations = func(context.Context, string, *sql.DB, string, ...string) error {
		return errors.New("boom")
	}

	err := Migrate(context.Background(), nil, fstest.MapFS{}, "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate up: boom")
}
