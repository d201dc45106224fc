package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// PIDFile records which process owns the bot's data directory. Acquire
// refuses to replace a live owner, so two instances never poll the same bot
// token; a stale file left by a crash is taken over silently.
type PIDFile struct {
	path   string
	logger zerolog.Logger
}

// NewPIDFile creates the PID file handle under dataDir.
func NewPIDFile(dataDir string, logger zerolog.Logger) *PIDFile {
	return &PIDFile{
		path:   filepath.Join(dataDir, "docbot.pid"),
		logger: logger.With().Str("component", "pidfile").Logger(),
	}
}

// Acquire records this process as the owner.
func (p *PIDFile) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if pid, err := p.Read(); err == nil && pid != os.Getpid() && processAlive(pid) {
		return fmt.Errorf("another instance is running (pid %d)", pid)
	}

	pid := os.Getpid()
	if err := os.WriteFile(p.path, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	p.logger.Info().Str("path", p.path).Int("pid", pid).Msg("PID file written")
	return nil
}

// Release removes the PID file. A missing file is not an error.
func (p *PIDFile) Release() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// Read returns the recorded owner PID.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file: %w", err)
	}
	return pid, nil
}

// IsRunning reports whether the recorded owner is alive.
func (p *PIDFile) IsRunning() bool {
	pid, err := p.Read()
	return err == nil && processAlive(pid)
}

// processAlive probes a PID with signal 0. FindProcess always succeeds on
// Unix; only the signal tells us anything.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(os.Signal(nil)) == nil
}
