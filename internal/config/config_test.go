package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  host: db
  user: exam
  dbname: exams
jwt:
  secret: file-secret-0123456789
exam:
  max_retries: 5
  timer_tick_sec: 60
`), 0o600))

	t.Setenv("JWT_SECRET", "env-secret-0123456789")
	t.Setenv("EXAM_RESTRICT_ON_COMPLETE", "false")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "env-secret-0123456789", cfg.JWT.Secret)
	assert.Equal(t, 5, cfg.Exam.MaxRetries)
	assert.False(t, cfg.Exam.RestrictOnComplete)

	access := cfg.Exam.AccessConfig()
	assert.Equal(t, 5, access.MaxRetries)
	assert.Equal(t, time.Minute, access.TimerTick)
	assert.Equal(t, 24*time.Hour, access.ProgressMaxAge)
	assert.Equal(t, 100, access.AccessLogCapacity)
	assert.False(t, access.RestrictOnComplete)
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("DATABASE_HOST", "db")
	t.Setenv("DATABASE_USER", "exam")
	t.Setenv("DATABASE_DBNAME", "exams")
	t.Setenv("JWT_SECRET", "")

	_, err := Load("")

	assert.Error(t, err)
}

func TestLoad_ResendNeedsSender(t *testing.T) {
	t.Setenv("DATABASE_HOST", "db")
	t.Setenv("DATABASE_USER", "exam")
	t.Setenv("DATABASE_DBNAME", "exams")
	t.Setenv("JWT_SECRET", "env-secret-0123456789")
	t.Setenv("RESEND_API_KEY", "re_123")
	t.Setenv("EMAIL_FROM", "")

	_, err := Load("")

	assert.Error(t, err)
}
