package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/deusflow/rundown/internal/logger"
)

// FileRepository reads subscribers from a JSON array on disk.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

var _ Repository = (*FileRepository)(nil)

func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// Validated returns validated subscribers in file order. Old records are
// migrated and the file is rewritten once if anything changed.
func (f *FileRepository) Validated(_ context.Context) ([]Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return nil, err
	}

	changed := false
	var out []Subscriber
	for i, r := range records {
		migrated, c := Migrate(r)
		if c {
			records[i] = migrated
			changed = true
		}
		if migrated.Validated {
			out = append(out, migrated.ToSubscriber())
		}
	}

	if changed {
		if err := f.save(records); err != nil {
			logger.Error("failed to write migrated subscribers", err, "path", f.path)
		} else {
			logger.Info("migrated subscriber records", "path", f.path)
		}
	}
	return out, nil
}

// PruneUnvalidated drops records that never confirmed their address.
func (f *FileRepository) PruneUnvalidated(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return 0, err
	}
	kept := records[:0]
	for _, r := range records {
		if r.Validated {
			kept = append(kept, r)
		}
	}
	removed := len(records) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, f.save(kept)
}

func (f *FileRepository) load() ([]Record, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read subscribers: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode subscribers: %w", err)
	}
	return records, nil
}

func (f *FileRepository) save(records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
