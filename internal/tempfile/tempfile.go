package tempfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const namePrefix = "anyconvert_"

// Manager allocates uniquely named scratch files under a single writable
// directory. Names are random, so concurrent requests never collide and no
// locking is needed.
type Manager struct {
	dir string
}

func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return &Manager{dir: dir}, nil
}

func (m *Manager) Dir() string {
	return m.dir
}

// NewPath returns a fresh scratch path with the given extension. The file is
// not created; the caller owns it from here on.
func (m *Manager) NewPath(ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	name := namePrefix + uuid.New().String()
	if ext != "" {
		name += "." + ext
	}
	return filepath.Join(m.dir, name)
}

// Scope tracks every scratch path allocated for one request so that a single
// deferred Release covers all exit paths, including panics and early returns.
type Scope struct {
	m     *Manager
	paths []string
}

func (m *Manager) NewScope() *Scope {
	return &Scope{m: m}
}

// Path allocates a scratch path owned by this scope.
func (s *Scope) Path(ext string) string {
	p := s.m.NewPath(ext)
	s.paths = append(s.paths, p)
	return p
}

// Adopt places an externally created path under this scope's ownership.
func (s *Scope) Adopt(path string) {
	s.paths = append(s.paths, path)
}

// Dir allocates a scratch directory owned by this scope.
func (s *Scope) Dir() (string, error) {
	p := s.m.NewPath("")
	if err := os.Mkdir(p, 0755); err != nil {
		return "", err
	}
	s.paths = append(s.paths, p)
	return p, nil
}

// Release deletes every path the scope owns. Missing files are fine; the
// sweeper picks up anything a crashed request leaves behind.
func (s *Scope) Release() {
	for _, p := range s.paths {
		if err := os.RemoveAll(p); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("Failed to remove scratch file")
		}
	}
	s.paths = nil
}
