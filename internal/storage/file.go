package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/deusflow/rundown/internal/news"
)

// storedArticle is an article with the time it was recorded.
type storedArticle struct {
	news.Article
	SentAt time.Time `json:"sent_at"`
}

// FileStore keeps the article log in a JSON file, rewritten after every
// mutation so progress survives an interrupted run.
type FileStore struct {
	filePath string
	items    map[string][]storedArticle
	mu       sync.RWMutex
}

var _ Backend = (*FileStore)(nil)

// NewFileStore opens (or creates on first write) the JSON log at filePath.
func NewFileStore(filePath string) (*FileStore, error) {
	fs := &FileStore{
		filePath: filePath,
		items:    make(map[string][]storedArticle),
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) load() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read store file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, &fs.items); err != nil {
		return fmt.Errorf("failed to unmarshal store: %w", err)
	}
	return nil
}

// save must be called with fs.mu held.
func (fs *FileStore) save() error {
	data, err := json.MarshalIndent(fs.items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	if dir := filepath.Dir(fs.filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create store dir: %w", err)
		}
	}
	tmp := fs.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	return os.Rename(tmp, fs.filePath)
}

func (fs *FileStore) Find(_ context.Context, category string) ([]news.Article, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	stored := fs.items[category]
	out := make([]news.Article, 0, len(stored))
	for _, s := range stored {
		out = append(out, s.Article)
	}
	return out, nil
}

func (fs *FileStore) Insert(_ context.Context, article news.Article) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.items[article.Category] = append(fs.items[article.Category], storedArticle{
		Article: article,
		SentAt:  time.Now().UTC(),
	})
	return fs.save()
}

func (fs *FileStore) DeleteMany(_ context.Context, category string) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n := int64(len(fs.items[category]))
	if n == 0 {
		return 0, nil
	}
	delete(fs.items, category)
	return n, fs.save()
}

func (fs *FileStore) Close() error { return nil }
