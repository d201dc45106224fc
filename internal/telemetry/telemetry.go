// Package telemetry is the fire-and-forget usage log. Failures here are
// logged and swallowed; they must never affect a workflow's outcome.
package telemetry

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id INTEGER PRIMARY KEY,
	username TEXT,
	first_name TEXT,
	last_name TEXT,
	chat_id INTEGER,
	language_code TEXT,
	first_seen TIMESTAMP,
	last_seen TIMESTAMP
);
CREATE TABLE IF NOT EXISTS actions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER,
	action_type TEXT,
	details TEXT,
	file_name TEXT,
	timestamp TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_actions_user ON actions(user_id);
CREATE INDEX IF NOT EXISTS idx_actions_type ON actions(action_type);
`

// Store records users and their actions in a local sqlite database.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// User is one row of the users table.
type User struct {
	UserID    int64
	Username  string
	FirstName string
	LastSeen  time.Time
}

// ActionCount is an action type with its occurrence count.
type ActionCount struct {
	Action string
	Count  int
}

// Stats is the admin-facing usage summary.
type Stats struct {
	Users       int
	Actions     int
	RecentUsers []User
	TopActions  []ActionCount
}

// Open opens (creating if needed) the usage database at path.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create usage schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With().Str("component", "telemetry").Logger(),
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertUser records a sighting of a user. First sighting sets first_seen;
// every sighting refreshes last_seen and profile fields.
func (s *Store) UpsertUser(userID int64, username, firstName, lastName string, chatID int64, languageCode string) {
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO users (user_id, username, first_name, last_name, chat_id, language_code, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			chat_id = excluded.chat_id,
			language_code = excluded.language_code,
			last_seen = excluded.last_seen`,
		userID, username, firstName, lastName, chatID, languageCode, now, now)
	if err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("Failed to record user")
	}
}

// Action records one user action. Implements the workflow telemetry sink;
// in private chats the chat ID is the user ID.
func (s *Store) Action(chatID int64, action, detail, fileName string) {
	_, err := s.db.Exec(`
		INSERT INTO actions (user_id, action_type, details, file_name, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		chatID, action, detail, fileName, time.Now().UTC())
	if err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("Failed to record action")
	}
}

// Summary returns user and action counts, the most recently seen users, and
// the most common actions.
func (s *Store) Summary() (Stats, error) {
	var stats Stats

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&stats.Users); err != nil {
		return Stats{}, fmt.Errorf("failed to count users: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM actions`).Scan(&stats.Actions); err != nil {
		return Stats{}, fmt.Errorf("failed to count actions: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT user_id, COALESCE(username, ''), COALESCE(first_name, ''), last_seen
		FROM users ORDER BY last_seen DESC LIMIT 10`)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to query recent users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.UserID, &u.Username, &u.FirstName, &u.LastSeen); err != nil {
			return Stats{}, fmt.Errorf("failed to scan user: %w", err)
		}
		stats.RecentUsers = append(stats.RecentUsers, u)
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	actionRows, err := s.db.Query(`
		SELECT action_type, COUNT(*) AS n
		FROM actions GROUP BY action_type ORDER BY n DESC LIMIT 10`)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to query actions: %w", err)
	}
	defer actionRows.Close()
	for actionRows.Next() {
		var a ActionCount
		if err := actionRows.Scan(&a.Action, &a.Count); err != nil {
			return Stats{}, fmt.Errorf("failed to scan action: %w", err)
		}
		stats.TopActions = append(stats.TopActions, a)
	}
	return stats, actionRows.Err()
}

// ExportCSV dumps both tables as CSV files under dir and returns their
// paths. The caller owns the files.
func (s *Store) ExportCSV(dir string) (usersPath, actionsPath string, err error) {
	usersPath = filepath.Join(dir, "users.csv")
	if err := s.exportTable(usersPath,
		[]string{"user_id", "username", "first_name", "last_name", "chat_id", "language_code", "first_seen", "last_seen"},
		`SELECT user_id, COALESCE(username,''), COALESCE(first_name,''), COALESCE(last_name,''), chat_id, COALESCE(language_code,''), first_seen, last_seen FROM users`,
	); err != nil {
		return "", "", err
	}

	actionsPath = filepath.Join(dir, "actions.csv")
	if err := s.exportTable(actionsPath,
		[]string{"id", "user_id", "action_type", "details", "file_name", "timestamp"},
		`SELECT id, user_id, action_type, COALESCE(details,''), COALESCE(file_name,''), timestamp FROM actions`,
	); err != nil {
		return "", "", err
	}

	return usersPath, actionsPath, nil
}

func (s *Store) exportTable(path string, header []string, query string) error {
	rows, err := s.db.Query(query)
	if err != nil {
		return fmt.Errorf("failed to query export: %w", err)
	}
	defer rows.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}

	values := make([]any, len(header))
	ptrs := make([]any, len(header))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("failed to scan export row: %w", err)
		}
		record := make([]string, len(values))
		for i, v := range values {
			record[i] = formatValue(v)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}
