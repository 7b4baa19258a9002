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

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 20.0, cfg.Bulletins.MaxGrade)
	assert.Equal(t, 4, cfg.Bulletins.WorkerConcurrency)
	assert.Equal(t, 30*time.Second, cfg.Bulletins.LockTTL)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("BULLETIN_MAX_GRADE", "100")
	t.Setenv("BULLETIN_WORKER_CONCURRENCY", "0")
	t.Setenv("BULLETIN_BATCH_TIMEOUT", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", "https://portal.example, ,https://admin.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100.0, cfg.Bulletins.MaxGrade)
	assert.Equal(t, 4, cfg.Bulletins.WorkerConcurrency)
	assert.Equal(t, 2*time.Minute, cfg.Bulletins.BatchTimeout)
	assert.Equal(t, []string{"https://portal.example", "https://admin.example"}, cfg.CORS.AllowedOrigins)
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
