package container

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/xid"
)

// Scratch is a uniquely named staging directory owned by one document run.
// It implements Replacements over the parts staged in it.
type Scratch struct {
	dir string

	mu     sync.Mutex
	staged map[string]string // entry name -> file path
}

// NewScratch creates <root>/doctrans-<xid>. An empty root means os.TempDir().
func NewScratch(root string) (*Scratch, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScratchIO, err)
	}
	dir := filepath.Join(root, "doctrans-"+xid.New().String())
	if err := os.Mkdir(dir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScratchIO, err)
	}
	return &Scratch{dir: dir, staged: make(map[string]string)}, nil
}

// Dir returns the scratch directory.
func (s *Scratch) Dir() string { return s.dir }

// Stage writes the new content of entry name.
func (s *Scratch) Stage(name string, data []byte) error {
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return fmt.Errorf("%w: entry name %q escapes the scratch directory", ErrScratchIO, name)
	}
	path := filepath.Join(s.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("%w: %v", ErrScratchIO, err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("%w: %v", ErrScratchIO, err)
	}
	s.mu.Lock()
	s.staged[name] = path
	s.mu.Unlock()
	return nil
}

// Names implements Replacements.
func (s *Scratch) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.staged))
	for n := range s.staged {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Has implements Replacements.
func (s *Scratch) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.staged[name]
	return ok
}

// Open implements Replacements.
func (s *Scratch) Open(name string) (io.ReadCloser, error) {
	s.mu.Lock()
	path, ok := s.staged[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s is not staged", ErrScratchIO, name)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScratchIO, err)
	}
	return f, nil
}

// Remove deletes the scratch directory and everything staged in it.
func (s *Scratch) Remove() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("%w: %v", ErrScratchIO, err)
	}
	return nil
}
