package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/pavelanni/interviewer/internal/model"
)

const (
	historyDir  = "wrong_answers"
	kbDir       = "vectors"
	contentFile = "content.txt"
	metaFile    = "metadata.json"
	lockSuffix  = ".lock"

	lockRetry = 10 * time.Millisecond
)

type historyDoc struct {
	WrongAnswers []model.EvaluationRecord `json:"wrong_answers"`
}

// FileStore keeps state as plain files under a data directory.
type FileStore struct {
	root  string
	locks sync.Map // key -> *sync.Mutex
}

// NewFileStore creates the directory layout under root.
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		root = "data"
	}
	for _, dir := range []string{filepath.Join(root, historyDir), filepath.Join(root, kbDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &StoreError{Op: "init", Path: dir, Err: err}
		}
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) Close() error { return nil }

// lock serializes writers of one key. A mutex orders goroutines of this
// process; an flock on lockPath orders every process sharing the data
// directory. Different keys never contend.
func (s *FileStore) lock(ctx context.Context, key, lockPath string) (func(), error) {
	m, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()

	fl := flock.New(lockPath)
	ok, err := fl.TryLockContext(ctx, lockRetry)
	if err == nil && !ok {
		err = ctx.Err()
	}
	if err != nil {
		mu.Unlock()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &StoreError{Op: "lock", Path: lockPath, Err: err}
	}
	return func() {
		_ = fl.Unlock()
		mu.Unlock()
	}, nil
}

func (s *FileStore) historyPath(userID string) string {
	return filepath.Join(s.root, historyDir, userID+".json")
}

func (s *FileStore) AppendRecord(ctx context.Context, userID string, rec model.EvaluationRecord) error {
	if err := checkName("user id", userID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.historyPath(userID)
	unlock, err := s.lock(ctx, "user:"+userID, path+lockSuffix)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := readHistory(path)
	if err != nil {
		return err
	}
	doc.WrongAnswers = append(doc.WrongAnswers, rec)
	return writeJSON(path, doc)
}

func (s *FileStore) Records(ctx context.Context, userID string) ([]model.EvaluationRecord, error) {
	if err := checkName("user id", userID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := readHistory(s.historyPath(userID))
	if err != nil {
		return nil, err
	}
	return doc.WrongAnswers, nil
}

func readHistory(path string) (historyDoc, error) {
	doc := historyDoc{WrongAnswers: []model.EvaluationRecord{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, &StoreError{Op: "read", Path: path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, &StoreError{Op: "decode", Path: path, Err: err}
	}
	if doc.WrongAnswers == nil {
		doc.WrongAnswers = []model.EvaluationRecord{}
	}
	return doc, nil
}

func (s *FileStore) SaveKnowledgeBase(ctx context.Context, entry model.KnowledgeBaseEntry) error {
	if err := checkName("knowledge base", entry.Name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Join(s.root, kbDir, entry.Name)
	unlock, err := s.lock(ctx, "kb:"+entry.Name, dir+lockSuffix)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &StoreError{Op: "mkdir", Path: dir, Err: err}
	}
	if err := writeFileAtomic(filepath.Join(dir, contentFile), []byte(entry.Content)); err != nil {
		return err
	}
	meta := entry.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return writeJSON(filepath.Join(dir, metaFile), meta)
}

func (s *FileStore) KnowledgeBase(ctx context.Context, name string) (model.KnowledgeBaseEntry, error) {
	if err := checkName("knowledge base", name); err != nil {
		return model.KnowledgeBaseEntry{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.KnowledgeBaseEntry{}, err
	}
	dir := filepath.Join(s.root, kbDir, name)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return model.KnowledgeBaseEntry{}, ErrNotFound
	} else if err != nil {
		return model.KnowledgeBaseEntry{}, &StoreError{Op: "stat", Path: dir, Err: err}
	}

	entry := model.KnowledgeBaseEntry{Name: name}
	content, err := os.ReadFile(filepath.Join(dir, contentFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return entry, &StoreError{Op: "read", Path: filepath.Join(dir, contentFile), Err: err}
	}
	entry.Content = string(content)

	meta, err := readMetadata(filepath.Join(dir, metaFile))
	if err != nil {
		return entry, err
	}
	entry.Metadata = meta
	return entry, nil
}

func readMetadata(path string) (map[string]any, error) {
	meta := map[string]any{}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return nil, &StoreError{Op: "read", Path: path, Err: err}
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, &StoreError{Op: "decode", Path: path, Err: err}
	}
	if meta == nil {
		meta = map[string]any{}
	}
	return meta, nil
}

func (s *FileStore) ListKnowledgeBases(ctx context.Context) ([]model.KnowledgeBaseEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root := filepath.Join(s.root, kbDir)
	dirents, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.KnowledgeBaseEntry{}, nil
	}
	if err != nil {
		return nil, &StoreError{Op: "list", Path: root, Err: err}
	}

	out := []model.KnowledgeBaseEntry{}
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}
		meta, err := readMetadata(filepath.Join(root, d.Name(), metaFile))
		if err != nil {
			return nil, err
		}
		out = append(out, model.KnowledgeBaseEntry{Name: d.Name(), Metadata: meta})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *FileStore) DeleteKnowledgeBase(ctx context.Context, name string) error {
	if err := checkName("knowledge base", name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Join(s.root, kbDir, name)
	unlock, err := s.lock(ctx, "kb:"+name, dir+lockSuffix)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err := os.RemoveAll(dir); err != nil {
		return &StoreError{Op: "delete", Path: dir, Err: err}
	}
	return nil
}

func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return &StoreError{Op: "encode", Path: path, Err: err}
	}
	return writeFileAtomic(path, buf.Bytes())
}

// writeFileAtomic replaces path so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return &StoreError{Op: "write", Path: path, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &StoreError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &StoreError{Op: "sync", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &StoreError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &StoreError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
