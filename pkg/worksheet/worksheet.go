// Package worksheet persists saved SQL worksheets for the operator UI.
package worksheet

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/snowglobe-io/snowglobe/server/apierror"
)

// Worksheet is one saved SQL document. Context is the database.schema
// the statement should run under; Position orders tabs in the UI.
type Worksheet struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Context   string    `json:"context,omitempty"`
	Position  int       `json:"position"`
	Favorite  bool      `json:"favorite"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Fields carries the mutable worksheet attributes for Create and Update.
type Fields struct {
	Name     string
	Content  string
	Context  string
	Position int
	Favorite bool
}

// Store keeps worksheets in memory and mirrors every change to a JSON
// file, like the catalog snapshot.
type Store struct {
	mu    sync.Mutex
	path  string
	items map[string]*Worksheet
}

// New returns a store persisting to path; empty path keeps it in memory.
func New(path string) *Store {
	return &Store{path: path, items: map[string]*Worksheet{}}
}

// DefaultPath returns the worksheet file under a data directory.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "worksheets.json")
}

// Load reads the worksheet file; a missing file is an empty store.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	var items []*Worksheet
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range items {
		s.items[w.ID] = w
	}
	return nil
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	items := s.listLocked()
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Create stores a new worksheet and returns it.
func (s *Store) Create(f Fields) (*Worksheet, error) {
	if f.Name == "" {
		return nil, apierror.New(apierror.KindBadRequest, "worksheet name is required")
	}
	now := time.Now().UTC()
	w := &Worksheet{
		ID:        uuid.NewString(),
		Name:      f.Name,
		Content:   f.Content,
		Context:   f.Context,
		Position:  f.Position,
		Favorite:  f.Favorite,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[w.ID] = w
	if err := s.saveLocked(); err != nil {
		delete(s.items, w.ID)
		return nil, err
	}
	return w, nil
}

// Get returns one worksheet by id.
func (s *Store) Get(id string) (*Worksheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.items[id]
	if !ok {
		return nil, apierror.New(apierror.KindNotFound, "worksheet %s does not exist", id)
	}
	return w, nil
}

// Update replaces the mutable fields. An empty name keeps the old one.
func (s *Store) Update(id string, f Fields) (*Worksheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.items[id]
	if !ok {
		return nil, apierror.New(apierror.KindNotFound, "worksheet %s does not exist", id)
	}
	if f.Name != "" {
		w.Name = f.Name
	}
	w.Content = f.Content
	w.Context = f.Context
	w.Position = f.Position
	w.Favorite = f.Favorite
	w.UpdatedAt = time.Now().UTC()
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	return w, nil
}

// Delete removes a worksheet. A failed persist restores the entry so
// memory and file never diverge.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.items[id]
	if !ok {
		return apierror.New(apierror.KindNotFound, "worksheet %s does not exist", id)
	}
	delete(s.items, id)
	if err := s.saveLocked(); err != nil {
		s.items[id] = w
		return err
	}
	return nil
}

// List returns all worksheets, most recently updated first.
func (s *Store) List() []*Worksheet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked()
}

func (s *Store) listLocked() []*Worksheet {
	out := make([]*Worksheet, 0, len(s.items))
	for _, w := range s.items {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out
}
