package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pavelanni/interviewer/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a single SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "interviewer.db"
	}
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &SQLiteStore{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS wrong_answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		record_id TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_wrong_answers_user ON wrong_answers(user_id, id);

	CREATE TABLE IF NOT EXISTS knowledge_bases (
		name TEXT PRIMARY KEY,
		content TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{}',
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) fail(op string, err error) error {
	return &StoreError{Op: op, Path: s.path, Err: err}
}

// AppendRecord stores rec as a JSON row. Insertion order is history order.
func (s *SQLiteStore) AppendRecord(ctx context.Context, userID string, rec model.EvaluationRecord) error {
	if err := checkName("user id", userID); err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return s.fail("encode", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO wrong_answers (user_id, record_id, payload, created_at) VALUES (?, ?, ?, ?)`,
		userID, rec.ID, string(payload), rec.CreatedAt.UTC(),
	)
	if err != nil {
		return s.fail("append", err)
	}
	return nil
}

// Records returns the user's history in insertion order.
func (s *SQLiteStore) Records(ctx context.Context, userID string) ([]model.EvaluationRecord, error) {
	if err := checkName("user id", userID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM wrong_answers WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, s.fail("read", err)
	}
	defer rows.Close()

	records := []model.EvaluationRecord{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, s.fail("read", err)
		}
		var rec model.EvaluationRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, s.fail("decode", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("read", err)
	}
	return records, nil
}
