package logger

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RotatingWriter appends to a single log file and rolls it aside once it
// passes the size limit. Rolled files get a timestamp suffix, are optionally
// gzipped, and are swept once older than keepDays. Writes are serialized:
// zerolog may log from any goroutine.
type RotatingWriter struct {
	path     string
	limit    int64
	keepDays int
	gzipOld  bool

	mu   sync.Mutex
	f    *os.File
	size int64
}

// NewRotatingWriter opens (or creates) the log file at path. maxSizeMB is the
// rotation threshold; keepDays <= 0 disables sweeping.
func NewRotatingWriter(path string, maxSizeMB, keepDays int, compress bool) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	w := &RotatingWriter{
		path:     path,
		limit:    int64(maxSizeMB) << 20,
		keepDays: keepDays,
		gzipOld:  compress,
		f:        f,
		size:     info.Size(),
	}
	w.sweep()
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(p)) > w.limit {
		if err := w.roll(); err != nil {
			return 0, err
		}
	}

	n, err := w.f.Write(p)
	w.size += int64(n)
	return n, err
}

// Close closes the active file. The writer must not be used afterwards.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

// roll renames the active file aside and starts a fresh one. Callers hold mu.
func (w *RotatingWriter) roll() error {
	if err := w.f.Close(); err != nil {
		return err
	}

	aside := w.path + "." + time.Now().Format("20060102T150405.000")
	if err := os.Rename(w.path, aside); err != nil {
		return err
	}
	if w.gzipOld {
		// A failed gzip keeps the plain file; the sweep still ages it out.
		if err := gzipFile(aside); err != nil {
			fmt.Fprintf(os.Stderr, "log rotation: gzip failed: %v\n", err)
		}
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.f = f
	w.size = 0

	w.sweep()
	return nil
}

// sweep deletes rolled files older than keepDays. The active file never
// matches: only timestamp-suffixed names do.
func (w *RotatingWriter) sweep() {
	if w.keepDays <= 0 {
		return
	}

	matches, err := filepath.Glob(w.path + ".*")
	if err != nil {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -w.keepDays)
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(m)
		}
	}
}

// gzipFile replaces path with path.gz.
func gzipFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		gz.Close()
		dst.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	return os.Remove(path)
}
