package cache

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// FileStore keeps each slot as a JSON file under a base directory.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	logger *log.Logger
}

// NewFileStore creates a file-backed cache rooted at dir, creating the
// directory when missing. A nil logger silences diagnostics.
func NewFileStore(dir string, logger *log.Logger) *FileStore {
	if logger == nil {
		logger = log.New(os.Stderr, "cache ", log.LstdFlags)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Printf("create cache dir %s: %v", dir, err)
	}
	return &FileStore{dir: dir, logger: logger}
}

// Save serializes v into the slot identified by key. Failures are logged
// and swallowed.
func (s *FileStore) Save(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Printf("cache save %s: marshal: %v", key, err)
		return
	}
	path := s.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.logger.Printf("cache save %s: write: %v", key, err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		s.logger.Printf("cache save %s: rename: %v", key, err)
	}
}

// Load decodes the slot into v. A missing or corrupt blob reads back as
// absent; corruption is logged and the stale file removed.
func (s *FileStore) Load(key string, v any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Printf("cache load %s: read: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Printf("cache load %s: corrupt blob dropped: %v", key, err)
		if rmErr := os.Remove(s.path(key)); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.Printf("cache load %s: remove corrupt blob: %v", key, rmErr)
		}
		return false
	}
	return true
}

// Remove deletes the slot.
func (s *FileStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		s.logger.Printf("cache remove %s: %v", key, err)
	}
}

func (s *FileStore) path(key string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, key)
	return filepath.Join(s.dir, name+".json")
}
