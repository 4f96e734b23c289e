package vm

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// TraceStore persists one row per executed instruction to a SQLite
// database, so a run can be inspected after the process has exited.
// It implements Tracer.
type TraceStore struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenTraceStore opens (creating if needed) a trace database at path.
func OpenTraceStore(path string) (*TraceStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening trace database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS trace (
		step     INTEGER NOT NULL,
		function TEXT NOT NULL,
		pc       INTEGER NOT NULL,
		env_id   TEXT NOT NULL,
		text     TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating trace table: %w", err)
	}
	return &TraceStore{db: db}, nil
}

// Trace appends one record. Records arrive in execution order; the
// machine serializes calls, the mutex only guards concurrent readers.
func (s *TraceStore) Trace(rec TraceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		"INSERT INTO trace (step, function, pc, env_id, text) VALUES (?, ?, ?, ?, ?)",
		rec.Step, rec.Function, rec.PC, rec.EnvID, rec.Text,
	)
	if err != nil {
		return fmt.Errorf("inserting trace record: %w", err)
	}
	return nil
}

// Recent returns up to limit of the most recently recorded instructions,
// oldest first.
func (s *TraceStore) Recent(limit int) ([]TraceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(
		"SELECT step, function, pc, env_id, text FROM trace ORDER BY rowid DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying trace records: %w", err)
	}
	defer rows.Close()

	var out []TraceRecord
	for rows.Next() {
		var rec TraceRecord
		if err := rows.Scan(&rec.Step, &rec.Function, &rec.PC, &rec.EnvID, &rec.Text); err != nil {
			return nil, fmt.Errorf("scanning trace record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading trace records: %w", err)
	}
	// Reverse into execution order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Count returns the number of recorded instructions.
func (s *TraceStore) Count() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM trace").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting trace records: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *TraceStore) Close() error {
	return s.db.Close()
}
