package daemon

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h2200080115/telegram-bot/internal/config"
	"github.com/h2200080115/telegram-bot/internal/logger"
)

func testDaemon(t *testing.T) *Daemon {
	t.Helper()

	log, err := logger.New(logger.Config{Level: "debug", Console: false})
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	return &Daemon{config: cfg, logger: log}
}

func TestPIDFile(t *testing.T) {
	d := testDaemon(t)
	pf := NewPIDFile(d.config.DataDir, d.logger.GetZerolog())

	t.Run("acquire writes own PID", func(t *testing.T) {
		require.NoError(t, pf.Acquire())

		data, err := os.ReadFile(filepath.Join(d.config.DataDir, "docbot.pid"))
		require.NoError(t, err)

		pid, err := strconv.Atoi(string(data))
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), pid)
	})

	t.Run("own PID counts as running", func(t *testing.T) {
		assert.True(t, pf.IsRunning())
	})

	t.Run("reacquire by the same process is allowed", func(t *testing.T) {
		assert.NoError(t, pf.Acquire())
	})

	t.Run("release removes PID file", func(t *testing.T) {
		require.NoError(t, pf.Release())

		_, err := os.Stat(filepath.Join(d.config.DataDir, "docbot.pid"))
		assert.True(t, os.IsNotExist(err))
		assert.False(t, pf.IsRunning())
	})

	t.Run("release is idempotent", func(t *testing.T) {
		assert.NoError(t, pf.Release())
	})
}

func TestPIDFile_TakesOverStaleFile(t *testing.T) {
	d := testDaemon(t)
	pf := NewPIDFile(d.config.DataDir, d.logger.GetZerolog())

	path := filepath.Join(d.config.DataDir, "docbot.pid")
	require.NoError(t, os.WriteFile(path, []byte("999999999"), 0o644))

	require.NoError(t, pf.Acquire())

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestDaemonStatus(t *testing.T) {
	d := testDaemon(t)

	st := d.Status()
	assert.False(t, st.Running)
	assert.Zero(t, st.Uptime)
}

func TestUnavailableRemover(t *testing.T) {
	_, err := unavailableRemover{}.Remove(context.Background(), []byte("img"))
	assert.Error(t, err)
}
