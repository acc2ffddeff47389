package recent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/rs/zerolog/log"
)

// FileStore keeps the list as a JSON array on disk. A corrupt file is treated
// as empty and overwritten on the next push.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Push(_ context.Context, e domain.RecentRoom) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.read()
	if err != nil {
		return err
	}
	next := cur.Push(e)

	b, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode recent rooms: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("recent rooms dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write recent rooms: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace recent rooms: %w", err)
	}
	return nil
}

func (s *FileStore) List(context.Context) (List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) read() (List, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return List{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read recent rooms: %w", err)
	}
	var l List
	if err := json.Unmarshal(b, &l); err != nil {
		log.Warn().Err(err).Str("module", "recent").Str("path", s.path).Msg("corrupt recent rooms file, starting empty")
		return List{}, nil
	}
	if len(l) > MaxEntries {
		l = l[:MaxEntries]
	}
	return l, nil
}
