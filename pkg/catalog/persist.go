package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/snowglobe-io/snowglobe/server/apierror"
)

// snapshot is the on-disk catalog format. Older files written before
// tombstones existed simply lack the dropped section and load as empty.
type snapshot struct {
	Databases map[string]*Database `json:"databases"`
	Dropped   *droppedSnapshot     `json:"dropped,omitempty"`
}

type droppedSnapshot struct {
	Databases map[string][]*Tombstone `json:"databases,omitempty"`
	Schemas   map[string][]*Tombstone `json:"schemas,omitempty"`
	Tables    map[string][]*Tombstone `json:"tables,omitempty"`
	Views     map[string][]*Tombstone `json:"views,omitempty"`
}

// persistLocked writes a full snapshot. Callers hold the write lock. The
// write goes through a temp file and rename so a crash mid-write leaves
// the previous snapshot intact.
func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	snap := snapshot{
		Databases: s.databases,
		Dropped: &droppedSnapshot{
			Databases: s.droppedDatabases,
			Schemas:   s.droppedSchemas,
			Tables:    s.droppedTables,
			Views:     s.droppedViews,
		},
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return apierror.New(apierror.KindInternalInconsistency, "encode catalog: %v", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apierror.New(apierror.KindInternalInconsistency, "write catalog snapshot: %v", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return apierror.New(apierror.KindInternalInconsistency, "replace catalog snapshot: %v", err)
	}
	return nil
}

// Load reads the snapshot at the configured path. A missing file is not
// an error; the catalog starts empty.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read catalog snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// A corrupted snapshot must not prevent startup; the catalog
		// starts empty and the next mutation rewrites the file.
		s.log.WithField("path", s.path).Warnf("catalog snapshot unreadable, starting empty: %v", err)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Databases != nil {
		s.databases = snap.Databases
	}
	if d := snap.Dropped; d != nil {
		if d.Databases != nil {
			s.droppedDatabases = d.Databases
		}
		if d.Schemas != nil {
			s.droppedSchemas = d.Schemas
		}
		if d.Tables != nil {
			s.droppedTables = d.Tables
		}
		if d.Views != nil {
			s.droppedViews = d.Views
		}
	}
	// maps inside loaded structs may be nil when the file was hand-edited
	for _, db := range s.databases {
		if db.Schemas == nil {
			db.Schemas = map[string]*Schema{}
		}
		for _, sc := range db.Schemas {
			if sc.Tables == nil {
				sc.Tables = map[string]*Table{}
			}
			if sc.Views == nil {
				sc.Views = map[string]*View{}
			}
		}
	}
	s.log.WithField("path", s.path).Info("catalog snapshot loaded")
	return nil
}

// Persist forces a snapshot write, used on shutdown.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

// DefaultPath returns the snapshot location under a data directory.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "catalog.json")
}
