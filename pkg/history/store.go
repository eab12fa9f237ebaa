// Package history keeps a transcript of evaluated statements in SQLite.
// Variables themselves are never stored.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/antibyte/retrocalc/pkg/calc"
	"github.com/antibyte/retrocalc/pkg/logger"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Entry is one recorded statement
type Entry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Seq       int       `json:"seq"`
	Statement string    `json:"statement"`
	Value     *float64  `json:"value,omitempty"` // nil when the statement failed
	ErrorCode string    `json:"errorCode,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store wraps the transcript database
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema exists
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	logger.HistoryInfo("Transcript database opened: %s", path)
	return s, nil
}

func (s *Store) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS statements (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			statement TEXT NOT NULL,
			value REAL,
			error_code TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_statements_session ON statements(session_id, seq)`,
	}
	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// RecordStatement stores one evaluated statement.
// A non-nil evalErr is stored as its error code and the value is left NULL.
func (s *Store) RecordStatement(ctx context.Context, sessionID string, seq int, text string, value float64, evalErr error) error {
	var val sql.NullFloat64
	var code sql.NullString
	if evalErr == nil {
		val = sql.NullFloat64{Float64: value, Valid: true}
	} else {
		c := calc.ErrorCode(evalErr)
		if c == "" {
			c = "UNKNOWN"
		}
		code = sql.NullString{String: c, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO statements (id, session_id, seq, statement, value, error_code, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), sessionID, seq, text, val, code, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("record statement: %w", err)
	}
	logger.HistoryDebug("Recorded statement %d for session %s", seq, sessionID)
	return nil
}

// ListSession returns up to limit entries of a session ordered by sequence.
// A limit of zero or less returns all entries.
func (s *Store) ListSession(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, seq, statement, value, error_code, created_at
		 FROM statements WHERE session_id = ? ORDER BY seq LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list session: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var val sql.NullFloat64
		var code sql.NullString
		var created int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Seq, &e.Statement, &val, &code, &created); err != nil {
			return nil, fmt.Errorf("scan statement: %w", err)
		}
		if val.Valid {
			v := val.Float64
			e.Value = &v
		}
		e.ErrorCode = code.String
		e.CreatedAt = time.UnixMilli(created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Sessions lists the ids of all sessions with recorded statements
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM statements GROUP BY session_id ORDER BY MIN(created_at), session_id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return errors.New("store not open")
	}
	return s.db.Close()
}
