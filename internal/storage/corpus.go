package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/mattetti/filebuffer"
)

const (
	BackendDisk   = "disk"
	BackendMemory = "memory"
)

var (
	ErrItemNotFound     = errors.New("corpus item not found")
	ErrChecksumMismatch = errors.New("corpus item checksum mismatch")
)

// Item is one ephemeral corpus member. Disk items have a Path; memory items
// live in a filebuffer.
type Item struct {
	ID         string    `json:"id"`
	Size       int       `json:"size"`
	Generation int       `json:"generation"`
	Path       string    `json:"path,omitempty"`
	Checksum   string    `json:"checksum"`
	CreatedAt  time.Time `json:"created_at"`

	buf *filebuffer.Buffer
}

// CorpusStore tracks every item it creates so that nothing outlives the run.
type CorpusStore struct {
	backend string
	baseDir string
	mu      sync.Mutex
	items   map[string]*Item
}

// NewCorpusStore creates a private run directory under parent for the disk
// backend. An empty parent means the system temp directory.
func NewCorpusStore(backend, parent string) (*CorpusStore, error) {
	cs := &CorpusStore{
		backend: backend,
		items:   make(map[string]*Item),
	}

	switch backend {
	case BackendDisk:
		if parent != "" {
			if err := os.MkdirAll(parent, 0755); err != nil {
				return nil, fmt.Errorf("failed to create corpus parent directory: %w", err)
			}
		}
		dir, err := os.MkdirTemp(parent, "cipherbench-corpus-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create corpus directory: %w", err)
		}
		cs.baseDir = dir
	case BackendMemory:
	default:
		return nil, fmt.Errorf("unsupported corpus backend: %s", backend)
	}

	return cs, nil
}

func (cs *CorpusStore) Backend() string { return cs.backend }

// Dir is empty for the memory backend.
func (cs *CorpusStore) Dir() string { return cs.baseDir }

// Put stores content as a new item.
func (cs *CorpusStore) Put(size, generation int, content []byte) (*Item, error) {
	hash := sha256.New()
	item := &Item{
		ID:         fmt.Sprintf("file_%d_%d", size, generation),
		Size:       size,
		Generation: generation,
		CreatedAt:  time.Now(),
	}

	switch cs.backend {
	case BackendDisk:
		item.Path = filepath.Join(cs.baseDir, item.ID+".bin")
		file, err := os.OpenFile(item.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to create corpus file: %w", err)
		}
		if _, err := io.MultiWriter(file, hash).Write(content); err != nil {
			file.Close()
			os.Remove(item.Path)
			return nil, fmt.Errorf("failed to write corpus file: %w", err)
		}
		if err := file.Close(); err != nil {
			os.Remove(item.Path)
			return nil, fmt.Errorf("failed to close corpus file: %w", err)
		}
	case BackendMemory:
		hash.Write(content)
		item.buf = filebuffer.New(append([]byte(nil), content...))
	}

	item.Checksum = hex.EncodeToString(hash.Sum(nil))

	cs.mu.Lock()
	cs.items[item.ID] = item
	cs.mu.Unlock()

	return item, nil
}

// Read loads an item and checks it against the checksum taken at write time.
func (cs *CorpusStore) Read(item *Item) ([]byte, error) {
	cs.mu.Lock()
	_, tracked := cs.items[item.ID]
	cs.mu.Unlock()
	if !tracked {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, item.ID)
	}

	var (
		data []byte
		err  error
	)
	switch cs.backend {
	case BackendDisk:
		data, err = os.ReadFile(item.Path)
	case BackendMemory:
		if _, err = item.buf.Seek(0, io.SeekStart); err == nil {
			data, err = io.ReadAll(item.buf)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus item %s: %w", item.ID, err)
	}

	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != item.Checksum {
		return nil, fmt.Errorf("%w: %s", ErrChecksumMismatch, item.ID)
	}
	return data, nil
}

// Remove deletes one item. Removing an unknown item is an error so that
// double deletion is visible.
func (cs *CorpusStore) Remove(item *Item) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, ok := cs.items[item.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, item.ID)
	}
	if err := cs.release(item); err != nil {
		return err
	}
	delete(cs.items, item.ID)
	return nil
}

func (cs *CorpusStore) release(item *Item) error {
	switch cs.backend {
	case BackendDisk:
		if err := os.Remove(item.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete corpus file: %w", err)
		}
	case BackendMemory:
		item.buf.Close()
		item.buf = nil
	}
	return nil
}

// Residual lists the IDs of items not yet removed, sorted.
func (cs *CorpusStore) Residual() []string {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	ids := make([]string, 0, len(cs.items))
	for id := range cs.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Cleanup removes every residual item and the run directory. It keeps going
// after individual failures and returns them joined.
func (cs *CorpusStore) Cleanup() (int, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	var errs []error
	removed := 0
	for id, item := range cs.items {
		if err := cs.release(item); err != nil {
			errs = append(errs, err)
			continue
		}
		delete(cs.items, id)
		removed++
	}

	if cs.baseDir != "" {
		if err := os.RemoveAll(cs.baseDir); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove corpus directory: %w", err))
		}
	}

	return removed, errors.Join(errs...)
}

// Stats reports the current footprint.
func (cs *CorpusStore) Stats() map[string]interface{} {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	var totalSize int64
	for _, item := range cs.items {
		totalSize += int64(item.Size)
	}

	return map[string]interface{}{
		"backend":     cs.backend,
		"total_items": len(cs.items),
		"total_size":  totalSize,
		"base_path":   cs.baseDir,
	}
}
