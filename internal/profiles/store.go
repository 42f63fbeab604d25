// Package profiles persists the fixed-size player profile record.
package profiles

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lox/doudizhu/internal/fileutil"
	"github.com/lox/doudizhu/internal/game"
)

// Store loads and saves one profile record per account. A missing account
// yields a zero-value profile, never an error.
type Store interface {
	Load(accountID uint32) (game.Profile, error)
	Save(accountID uint32, p game.Profile) error
}

// FileStore keeps one fixed-width record file per account under a directory.
// Writes go through an atomic rename so a crashed save never leaves a
// truncated record behind.
type FileStore struct {
	dir string
}

// NewFileStore creates the backing directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("profiles: create store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (fs *FileStore) path(accountID uint32) string {
	return filepath.Join(fs.dir, fmt.Sprintf("%d.profile", accountID))
}

func (fs *FileStore) Load(accountID uint32) (game.Profile, error) {
	var p game.Profile
	data, err := os.ReadFile(fs.path(accountID))
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("profiles: load account %d: %w", accountID, err)
	}
	if err := p.UnmarshalBinary(data); err != nil {
		return game.Profile{}, fmt.Errorf("profiles: load account %d: %w", accountID, err)
	}
	return p, nil
}

func (fs *FileStore) Save(accountID uint32, p game.Profile) error {
	data, err := p.MarshalBinary()
	if err != nil {
		return fmt.Errorf("profiles: save account %d: %w", accountID, err)
	}
	if err := fileutil.WriteFileAtomic(fs.path(accountID), data, 0o644); err != nil {
		return fmt.Errorf("profiles: save account %d: %w", accountID, err)
	}
	return nil
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu      sync.Mutex
	records map[uint32]game.Profile
}

func NewMemStore() *MemStore {
	return &MemStore{records: make(map[uint32]game.Profile)}
}

func (ms *MemStore) Load(accountID uint32) (game.Profile, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.records[accountID], nil
}

func (ms *MemStore) Save(accountID uint32, p game.Profile) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.records[accountID] = p
	return nil
}
