package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, []string{"ROOM", "FACULTY"}, cfg.Scheduling.BlockingTypes)
	assert.Equal(t, LockBackendMemory, cfg.Scheduling.LockBackend)
	assert.Equal(t, 5*time.Second, cfg.Scheduling.LockWait)
	assert.Equal(t, 10*time.Second, cfg.Scheduling.LockTTL)
	assert.True(t, cfg.Scheduling.ExportEnabled)
}

func TestLoadSchedulingOverrides(t *testing.T) {
	t.Setenv("SCHEDULING_BLOCKING_TYPES", "room, faculty, student")
	t.Setenv("SCHEDULING_LOCK_BACKEND", "Redis")
	t.Setenv("SCHEDULING_LOCK_WAIT", "750ms")
	t.Setenv("SCHEDULING_LOCK_TTL", "not-a-duration")
	t.Setenv("ENABLE_CONFLICT_EXPORT", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"room", "faculty", "student"}, cfg.Scheduling.BlockingTypes)
	assert.Equal(t, LockBackendRedis, cfg.Scheduling.LockBackend)
	assert.Equal(t, 750*time.Millisecond, cfg.Scheduling.LockWait)
	assert.Equal(t, 10*time.Second, cfg.Scheduling.LockTTL)
	assert.False(t, cfg.Scheduling.ExportEnabled)
}

func TestLoadUnknownLockBackendFallsBackToMemory(t *testing.T) {
	t.Setenv("SCHEDULING_LOCK_BACKEND", "etcd")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, LockBackendMemory, cfg.Scheduling.LockBackend)
}
