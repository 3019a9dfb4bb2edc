// Package store provides the document store shared by the orchestrator and
// sub-agents: agent configurations, conversation turns, the task audit log,
// and the domain collections fed by the background monitors.
//
// The store is an explicitly constructed handle with an Open/Close lifecycle
// and is passed to its consumers; nothing here is a process-wide singleton.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite document database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply store schema: %w", err)
	}
	return &Store{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS agent_configs (
	agent_id TEXT PRIMARY KEY,
	system_prompt TEXT NOT NULL,
	temperature REAL NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, id);

CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	agent TEXT NOT NULL,
	task TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'completed',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS wallets (
	address TEXT PRIMARY KEY,
	pnl TEXT NOT NULL DEFAULT '',
	discovered_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_wallets_discovered ON wallets(discovered_at DESC);

CREATE TABLE IF NOT EXISTS snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	address TEXT NOT NULL,
	account_value REAL NOT NULL DEFAULT 0,
	positions TEXT NOT NULL DEFAULT '[]',
	state_hash TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_snapshots_address ON snapshots(address, updated_at DESC);

CREATE TABLE IF NOT EXISTS insights (
	video_id TEXT PRIMARY KEY,
	channel TEXT NOT NULL,
	title TEXT NOT NULL,
	transcript TEXT NOT NULL DEFAULT '',
	published_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_insights_published ON insights(published_at DESC);
`

// Close closes the backing database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Turn is one entry of the append-only conversation log. A turn is never
// mutated after insert.
type Turn struct {
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SaveTurn appends a conversation turn.
func (s *Store) SaveTurn(sessionID, role, content string) error {
	_, err := s.db.Exec(
		`INSERT INTO turns (session_id, role, content) VALUES (?, ?, ?)`,
		sessionID, role, content,
	)
	if err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	return nil
}

// History returns the most recent limit turns for a session in time order.
func (s *Store) History(sessionID string, limit int) ([]Turn, error) {
	rows, err := s.db.Query(
		`SELECT session_id, role, content, created_at FROM (
			SELECT id, session_id, role, content, created_at FROM turns
			WHERE session_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.SessionID, &t.Role, &t.Content, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// TaskEntry is one row of the write-only task audit trail.
type TaskEntry struct {
	Agent     string    `json:"agent"`
	Task      string    `json:"task"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// LogTask records a delegated task for the audit trail.
func (s *Store) LogTask(agent, task, status string) error {
	_, err := s.db.Exec(
		`INSERT INTO tasks (agent, task, status) VALUES (?, ?, ?)`,
		agent, task, status,
	)
	if err != nil {
		return fmt.Errorf("log task: %w", err)
	}
	return nil
}

// RecentTasks returns the latest limit task-log entries, newest first.
func (s *Store) RecentTasks(limit int) ([]TaskEntry, error) {
	rows, err := s.db.Query(
		`SELECT agent, task, status, created_at FROM tasks ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch tasks: %w", err)
	}
	defer rows.Close()

	var entries []TaskEntry
	for rows.Next() {
		var e TaskEntry
		if err := rows.Scan(&e.Agent, &e.Task, &e.Status, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
