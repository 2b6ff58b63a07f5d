// Package memo implements doctrans.memo, a translation memory that records
// the translation of every source string per language pair. Strings found
// in the memory are not sent to the translation service again.
//
// The memo is a YAML file; by default it lives next to .doctrans.yaml.
package memo

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileName is the default memo file name.
const FileName = "doctrans.memo"

// Version is the memo file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Memo represents the doctrans.memo file structure.
type Memo struct {
	Version int                          `yaml:"version"`
	Entries map[string]map[string]string `yaml:"entries"` // pair -> md5(source) -> translation

	mu    sync.Mutex `yaml:"-"`
	path  string     `yaml:"-"`
	dirty bool       `yaml:"-"`
}

// New returns an empty in-memory memo bound to path.
func New(path string) *Memo {
	return &Memo{
		Version: Version,
		Entries: make(map[string]map[string]string),
		path:    path,
	}
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads a memo file. Returns an empty memo if the file doesn't exist.
func Load(path string) (*Memo, error) {
	m := New(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if m.Version > Version {
		return nil, fmt.Errorf("%s: unsupported memo version %d", path, m.Version)
	}
	m.path = path
	if m.Entries == nil {
		m.Entries = make(map[string]map[string]string)
	}
	return m, nil
}

// Save writes the memo to disk if it changed since it was loaded. The file
// is written to a temporary name and renamed into place.
func (m *Memo) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.path == "" {
		return fmt.Errorf("memo path not set")
	}
	if !m.dirty {
		return nil
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling memo: %w", err)
	}

	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", tmp, err)
	}
	m.dirty = false
	return nil
}

// Path returns the memo file path.
func (m *Memo) Path() string {
	return m.path
}

// ---------------------------------------------------------------------------
// Lookups
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// Lookup returns the recorded translation of source for pair.
func (m *Memo) Lookup(pair, source string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tr, ok := m.Entries[pair][Hash(source)]
	return tr, ok
}

// Put records the translation of source for pair.
func (m *Memo) Put(pair, source, translation string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Entries[pair] == nil {
		m.Entries[pair] = make(map[string]string)
	}
	h := Hash(source)
	if old, ok := m.Entries[pair][h]; ok && old == translation {
		return
	}
	m.Entries[pair][h] = translation
	m.dirty = true
}

// RemovePair drops every translation recorded for pair.
func (m *Memo) RemovePair(pair string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Entries[pair]; ok {
		delete(m.Entries, pair)
		m.dirty = true
	}
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of language pairs and total entries.
func (m *Memo) Stats() (pairs, entries int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pairs = len(m.Entries)
	for _, e := range m.Entries {
		entries += len(e)
	}
	return
}

// Pairs returns the sorted list of language pairs.
func (m *Memo) Pairs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	pairs := make([]string, 0, len(m.Entries))
	for p := range m.Entries {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)
	return pairs
}

// Summary returns a human-readable summary string.
func (m *Memo) Summary() string {
	pairs, entries := m.Stats()
	if pairs == 0 {
		return "empty"
	}

	var parts []string
	for _, p := range m.Pairs() {
		m.mu.Lock()
		n := len(m.Entries[p])
		m.mu.Unlock()
		parts = append(parts, fmt.Sprintf("%s: %d", p, n))
	}
	return fmt.Sprintf("%d pairs, %d entries (%s)", pairs, entries, strings.Join(parts, ", "))
}
