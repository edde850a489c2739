// Package store persists evaluation history and knowledge bases.
//
// Two backends implement Store: FileStore keeps one JSON document per user
// and one directory per knowledge base, SQLiteStore keeps the same data in a
// single database file.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pavelanni/interviewer/internal/model"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

var (
	// ErrNotFound is returned for a knowledge base that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidName is returned for user ids and knowledge base names that
	// cannot be used as a single path segment.
	ErrInvalidName = errors.New("invalid name")
)

// Store is the durable state of the service. Records are append-only; a
// knowledge base is replaced wholesale on save.
type Store interface {
	AppendRecord(ctx context.Context, userID string, rec model.EvaluationRecord) error
	// Records returns the user's history in append order. A user without
	// history gets an empty slice and no error.
	Records(ctx context.Context, userID string) ([]model.EvaluationRecord, error)

	SaveKnowledgeBase(ctx context.Context, entry model.KnowledgeBaseEntry) error
	KnowledgeBase(ctx context.Context, name string) (model.KnowledgeBaseEntry, error)
	// ListKnowledgeBases returns all knowledge bases sorted by name, with
	// Content left empty.
	ListKnowledgeBases(ctx context.Context) ([]model.KnowledgeBaseEntry, error)
	DeleteKnowledgeBase(ctx context.Context, name string) error

	Close() error
}

// StoreError reports a failed read or write of local storage.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Open returns the backend named kind. dataDir is used by the file backend,
// dbPath by the sqlite backend.
func Open(kind, dataDir, dbPath string) (Store, error) {
	switch kind {
	case "", BackendFile:
		return NewFileStore(dataDir)
	case BackendSQLite:
		return New(dbPath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", kind)
	}
}

// checkName rejects names that would escape their directory.
func checkName(kind, name string) error {
	switch {
	case strings.TrimSpace(name) == "", name == ".", name == "..":
		return fmt.Errorf("%w: empty %s", ErrInvalidName, kind)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("%w: %s %q", ErrInvalidName, kind, name)
	}
	return nil
}
