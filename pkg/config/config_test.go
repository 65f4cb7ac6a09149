package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("NARRATIVE_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 30*time.Second, cfg.Narrative.Timeout)
	assert.Equal(t, 200, cfg.Narrative.MaxOutputTokens)
	assert.False(t, cfg.Narrative.NarrativeEnabled())
	assert.Equal(t, "@hourly", cfg.Exports.CleanupSchedule)
	assert.Equal(t, int64(10*1024*1024), cfg.Imports.MaxFileSizeBytes)
}

func TestLoadOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("GEMINI_API_KEY", "key-123")
	t.Setenv("NARRATIVE_TIMEOUT", "5s")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Narrative.NarrativeEnabled())
	assert.Equal(t, 5*time.Second, cfg.Narrative.Timeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("bogus", time.Minute))
	assert.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
