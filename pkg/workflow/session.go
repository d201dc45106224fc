package workflow

import (
	"sync"

	"github.com/h2200080115/telegram-bot/pkg/ledger"
)

// Session is one conversation's workflow context. Fields other than
// Processing are mutated only on the chat's queue lane, so they need no lock
// of their own.
type Session struct {
	ChatID       int64
	State        State
	Kind         WorkflowKind
	OrganizeMode OrganizeMode
	Files        []ledger.FileRef
	Settings     map[string]bool
	Processing   bool
}

// Store holds sessions keyed by chat ID. Sessions are created on first
// reference and dropped on the terminal transition, so the map only ever
// holds conversations with a workflow underway.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[int64]*Session)}
}

// Get returns the session for a chat, creating an idle one if none exists.
func (st *Store) Get(chatID int64) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[chatID]
	if !ok {
		s = &Session{
			ChatID:   chatID,
			State:    StateIdle,
			Settings: make(map[string]bool),
		}
		st.sessions[chatID] = s
	}
	return s
}

// IsProcessing reports whether the chat has a dispatch in flight.
func (st *Store) IsProcessing(chatID int64) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[chatID]
	return ok && s.Processing
}

// SetProcessing marks or clears the in-flight dispatch flag.
func (st *Store) SetProcessing(chatID int64, processing bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[chatID]; ok {
		s.Processing = processing
	}
}

// ActiveCount returns how many sessions are in a non-idle state.
func (st *Store) ActiveCount() int {
	st.mu.RLock()
	defer st.mu.RUnlock()

	active := 0
	for _, s := range st.sessions {
		if s.State != StateIdle {
			active++
		}
	}
	return active
}

// Remove drops a session entirely.
func (st *Store) Remove(chatID int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, chatID)
}
