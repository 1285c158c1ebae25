package pass

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
)

// Store persists the pass queue as a JSON array sorted ascending by start
// time, with no two entries sharing a uniqueness key. Every rewrite is
// crash-safe: the previous file is kept as a rolling backup, the new
// content goes to a temp file, and a rename makes it current.
type Store struct {
	path string
	log  *log.Logger
}

// NewStore returns a store persisting at path.
func NewStore(path string, logger *log.Logger) *Store {
	return &Store{path: path, log: logger}
}

// Path returns the canonical file location.
func (s *Store) Path() string { return s.path }

// Load reads the full queue. A missing file is an empty queue; a file that
// cannot be parsed is an error so the caller can trigger a rebuild instead
// of trusting corrupt data.
func (s *Store) Load() ([]Pass, error) {
	b, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pass store: read: %w", err)
	}

	var passes []Pass
	if err := json.Unmarshal(b, &passes); err != nil {
		return nil, fmt.Errorf("pass store: corrupt file: %w", err)
	}
	return passes, nil
}

// Merge inserts newly segmented passes into the queue. The union is keyed
// by Pass.Key with first-write-wins semantics: an incoming pass whose key
// already exists is dropped, preserving the original entry and its
// recorded state. The merged set is re-sorted and persisted.
func (s *Store) Merge(incoming []Pass) error {
	existing, err := s.Load()
	if err != nil {
		// Corrupt queue: merging rebuilds it from the incoming set.
		s.log.Printf("pass store: %v, rebuilding from %d new passes", err, len(incoming))
		existing = nil
	}

	seen := make(map[string]bool, len(existing))
	for _, p := range existing {
		seen[p.Key()] = true
	}

	merged := existing
	for _, p := range incoming {
		if seen[p.Key()] {
			continue
		}
		seen[p.Key()] = true
		merged = append(merged, p)
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Start.Before(merged[j].Start)
	})

	return s.save(merged)
}

// MarkRecorded sets the recorded flag on the entry with the given key and
// rewrites the store.
func (s *Store) MarkRecorded(key string) error {
	passes, err := s.Load()
	if err != nil {
		return err
	}

	for i := range passes {
		if passes[i].Key() == key {
			passes[i].Recorded = true
			return s.save(passes)
		}
	}
	return fmt.Errorf("pass store: no entry with key %s", key)
}

// Clear empties the queue at the start of a refresh cycle.
func (s *Store) Clear() error {
	return s.save([]Pass{})
}

// save performs the backup-then-temp-then-rename rewrite. The process may
// be killed mid-write (power loss on station hardware), so the canonical
// file must always be either the old or the new version.
func (s *Store) save(passes []Pass) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pass store: mkdir: %w", err)
	}

	// Rolling backup of the current version; best effort.
	if cur, err := os.ReadFile(s.path); err == nil {
		if err := os.WriteFile(s.path+".bak", cur, 0o644); err != nil {
			s.log.Printf("pass store: backup write failed: %v", err)
		}
	}

	b, err := json.MarshalIndent(passes, "", "  ")
	if err != nil {
		return fmt.Errorf("pass store: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "passes-*.tmp")
	if err != nil {
		return fmt.Errorf("pass store: temp file: %w", err)
	}

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("pass store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("pass store: close: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("pass store: rename: %w", err)
	}
	return nil
}
