package ledger

import (
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Janitor periodically sweeps the scratch directory for files older than a
// cutoff. The per-session release guarantee covers normal operation; the
// janitor covers files orphaned by a crash between track and release.
type Janitor struct {
	ledger *Ledger
	maxAge time.Duration
	logger zerolog.Logger
	cron   *cron.Cron
}

// NewJanitor creates a janitor for the ledger's scratch directory.
func NewJanitor(l *Ledger, maxAge time.Duration, logger zerolog.Logger) *Janitor {
	return &Janitor{
		ledger: l,
		maxAge: maxAge,
		logger: logger.With().Str("component", "janitor").Logger(),
		cron:   cron.New(),
	}
}

// Start schedules the sweep. schedule is a cron expression ("@hourly" by
// default at the call sites).
func (j *Janitor) Start(schedule string) error {
	if _, err := j.cron.AddFunc(schedule, func() {
		swept := j.Sweep()
		if swept > 0 {
			j.logger.Info().Int("swept", swept).Msg("Scratch sweep completed")
		}
	}); err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Info().Str("schedule", schedule).Dur("max_age", j.maxAge).Msg("Janitor started")
	return nil
}

// Stop stops the scheduled sweeps.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

// Sweep deletes untracked scratch files older than the cutoff and returns
// how many were removed. Tracked files are never touched: they belong to an
// in-flight session.
func (j *Janitor) Sweep() int {
	entries, err := os.ReadDir(j.ledger.Dir())
	if err != nil {
		j.logger.Warn().Err(err).Msg("Failed to read scratch directory")
		return 0
	}

	tracked := make(map[string]bool)
	j.ledger.mu.Lock()
	for _, refs := range j.ledger.byChat {
		for _, ref := range refs {
			tracked[ref.Path] = true
		}
	}
	j.ledger.mu.Unlock()

	cutoff := time.Now().Add(-j.maxAge)
	swept := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(j.ledger.Dir(), entry.Name())
		if tracked[path] {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			j.logger.Warn().Err(err).Str("path", path).Msg("Failed to sweep scratch file")
			continue
		}
		swept++
	}

	return swept
}
