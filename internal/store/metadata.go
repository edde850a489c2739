package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/pavelanni/interviewer/internal/model"
)

// SaveKnowledgeBase upserts a knowledge base row, replacing content and
// metadata together.
func (s *SQLiteStore) SaveKnowledgeBase(ctx context.Context, entry model.KnowledgeBaseEntry) error {
	if err := checkName("knowledge base", entry.Name); err != nil {
		return err
	}
	meta, err := encodeMetadata(entry.Metadata)
	if err != nil {
		return s.fail("encode", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO knowledge_bases (name, content, metadata, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(name) DO UPDATE SET content = excluded.content, metadata = excluded.metadata,
		 updated_at = CURRENT_TIMESTAMP`,
		entry.Name, entry.Content, meta,
	)
	if err != nil {
		return s.fail("save knowledge base", err)
	}
	return nil
}

// KnowledgeBase returns ErrNotFound when no row has the given name.
func (s *SQLiteStore) KnowledgeBase(ctx context.Context, name string) (model.KnowledgeBaseEntry, error) {
	if err := checkName("knowledge base", name); err != nil {
		return model.KnowledgeBaseEntry{}, err
	}
	entry := model.KnowledgeBaseEntry{Name: name}
	var meta string
	err := s.db.QueryRowContext(ctx,
		`SELECT content, metadata FROM knowledge_bases WHERE name = ?`, name,
	).Scan(&entry.Content, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return model.KnowledgeBaseEntry{}, ErrNotFound
	}
	if err != nil {
		return model.KnowledgeBaseEntry{}, s.fail("read knowledge base", err)
	}
	if entry.Metadata, err = decodeMetadata(meta); err != nil {
		return model.KnowledgeBaseEntry{}, s.fail("decode", err)
	}
	return entry, nil
}

func (s *SQLiteStore) ListKnowledgeBases(ctx context.Context) ([]model.KnowledgeBaseEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, metadata FROM knowledge_bases ORDER BY name`)
	if err != nil {
		return nil, s.fail("list knowledge bases", err)
	}
	defer rows.Close()

	out := []model.KnowledgeBaseEntry{}
	for rows.Next() {
		var name, meta string
		if err := rows.Scan(&name, &meta); err != nil {
			return nil, s.fail("list knowledge bases", err)
		}
		m, err := decodeMetadata(meta)
		if err != nil {
			return nil, s.fail("decode", err)
		}
		out = append(out, model.KnowledgeBaseEntry{Name: name, Metadata: m})
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list knowledge bases", err)
	}
	return out, nil
}

func (s *SQLiteStore) DeleteKnowledgeBase(ctx context.Context, name string) error {
	if err := checkName("knowledge base", name); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_bases WHERE name = ?`, name)
	if err != nil {
		return s.fail("delete knowledge base", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return s.fail("delete knowledge base", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeMetadata(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func decodeMetadata(s string) (map[string]any, error) {
	m := map[string]any{}
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}
