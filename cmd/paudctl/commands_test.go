package main

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/paud-api/pkg/config"
	"github.com/noah-isme/paud-api/pkg/database"
)

func newTestEnv(t *testing.T) *env {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &env{
		cfg: &config.Config{
			APIPrefix: "/api/v1",
			Imports:   config.ImportsConfig{UploadDir: t.TempDir(), MaxFileSizeBytes: 1 << 20},
		},
		logger: zap.NewNop(),
		connect: func(config.DatabaseConfig) (*sqlx.DB, error) {
			return sqlx.NewDb(db, "sqlmock"), nil
		},
	}
}

func run(t *testing.T, e *env, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(e)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestImportRosterMissingFile(t *testing.T) {
	e := newTestEnv(t)
	missing := filepath.Join(t.TempDir(), "absent.csv")

	out, err := run(t, e, "import", "roster", missing)
	require.NoError(t, err)
	assert.Contains(t, out, "file not found")
	assert.Contains(t, out, `"successCount": 0`)

	_, err = run(t, newTestEnv(t), "import", "roster", missing, "--strict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 rows failed")
}

func TestMigrateRunsGooseCommand(t *testing.T) {
	original := database.RunMigrations
	t.Cleanup(func() { database.RunMigrations = original })
	var got string
	database.RunMigrations = func(ctx context.Context, command string, db *sql.DB, dir string, args ...string) error {
		got = command
		return nil
	}

	out, err := run(t, newTestEnv(t), "migrate", "status")
	require.NoError(t, err)
	assert.Equal(t, "status", got)
	assert.Contains(t, out, "migrate status: ok")
}

func TestMigrateRejectsUnknownCommand(t *testing.T) {
	_, err := run(t, newTestEnv(t), "migrate", "sideways")
	assert.Error(t, err)
}
