// Package ledger owns the lifecycle of scratch files created on behalf of a
// chat. Every upload, intermediate, and output artifact is registered here,
// and release is guaranteed to be idempotent: deleting a file that is already
// gone is not an error, and a failed delete is logged rather than escalated.
package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Kind classifies a tracked file.
type Kind string

const (
	KindUpload       Kind = "upload"
	KindIntermediate Kind = "intermediate"
	KindOutput       Kind = "output"
)

// FileRef is a registered scratch file. The ledger owns the underlying
// storage; sessions hold FileRefs by value only.
type FileRef struct {
	Path   string
	Kind   Kind
	ChatID int64
}

// Ledger tracks scratch files per chat. The scratch directory is shared
// across all chats, so paths are made collision-resistant with random names
// rather than chat-scoped subdirectories.
type Ledger struct {
	dir    string
	logger zerolog.Logger

	mu     sync.Mutex
	byChat map[int64][]FileRef
}

// New creates a ledger rooted at dir, creating the directory if needed.
func New(dir string, logger zerolog.Logger) (*Ledger, error) {
	if dir == "" {
		return nil, fmt.Errorf("scratch directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}

	return &Ledger{
		dir:    dir,
		logger: logger.With().Str("component", "ledger").Logger(),
		byChat: make(map[int64][]FileRef),
	}, nil
}

// Dir returns the scratch directory.
func (l *Ledger) Dir() string {
	return l.dir
}

// NewPath returns a fresh collision-resistant path in the scratch directory.
// ext should include the leading dot ("" for none).
func (l *Ledger) NewPath(ext string) string {
	return filepath.Join(l.dir, uuid.NewString()+ext)
}

// Track registers a file under a chat.
func (l *Ledger) Track(chatID int64, path string, kind Kind) FileRef {
	ref := FileRef{Path: path, Kind: kind, ChatID: chatID}

	l.mu.Lock()
	l.byChat[chatID] = append(l.byChat[chatID], ref)
	count := len(l.byChat[chatID])
	l.mu.Unlock()

	l.logger.Debug().
		Int64("chat_id", chatID).
		Str("path", path).
		Str("kind", string(kind)).
		Int("tracked", count).
		Msg("File tracked")

	return ref
}

// Tracked returns the files currently registered for a chat, in tracking
// order.
func (l *Ledger) Tracked(chatID int64) []FileRef {
	l.mu.Lock()
	defer l.mu.Unlock()

	refs := make([]FileRef, len(l.byChat[chatID]))
	copy(refs, l.byChat[chatID])
	return refs
}

// Count returns the total number of tracked files across all chats.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := 0
	for _, refs := range l.byChat {
		total += len(refs)
	}
	return total
}

// ReleaseAll deletes every tracked file for a chat and clears its registry
// entry. Missing files are tolerated; delete failures are logged and do not
// abort the remaining deletions.
func (l *Ledger) ReleaseAll(chatID int64) {
	l.mu.Lock()
	refs := l.byChat[chatID]
	delete(l.byChat, chatID)
	l.mu.Unlock()

	for _, ref := range refs {
		l.remove(ref.Path)
	}

	if len(refs) > 0 {
		l.logger.Debug().
			Int64("chat_id", chatID).
			Int("released", len(refs)).
			Msg("Session files released")
	}
}

// ReleaseOne removes a single entry by path and deletes its storage. Used
// when an intermediate artifact is consumed before the session finishes.
func (l *Ledger) ReleaseOne(path string) {
	l.mu.Lock()
	for chatID, refs := range l.byChat {
		for i, ref := range refs {
			if ref.Path == path {
				l.byChat[chatID] = append(refs[:i], refs[i+1:]...)
				l.mu.Unlock()
				l.remove(path)
				return
			}
		}
	}
	l.mu.Unlock()

	// Untracked paths are still deleted: callers use this for one-off
	// artifacts that never entered the registry.
	l.remove(path)
}

// Untrack forgets a single entry without touching storage. Used when a
// rejected upload was never written, or ownership moves elsewhere.
func (l *Ledger) Untrack(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for chatID, refs := range l.byChat {
		for i, ref := range refs {
			if ref.Path == path {
				l.byChat[chatID] = append(refs[:i], refs[i+1:]...)
				return
			}
		}
	}
}

func (l *Ledger) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		// Storage leak is degraded-mode, not fatal.
		l.logger.Warn().Err(err).Str("path", path).Msg("Failed to delete scratch file")
	}
}
