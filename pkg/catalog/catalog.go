// Package catalog holds the warehouse object tree: databases, schemas,
// tables and views, plus per-kind tombstone stacks that back UNDROP.
// The catalog is pure metadata; relation data lives in the engine and is
// referenced through each table's relation identifier.
package catalog

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/snowglobe-io/snowglobe/server/apierror"
)

// ObjectKind discriminates tombstones and dropped-object listings.
type ObjectKind string

const (
	KindDatabase ObjectKind = "database"
	KindSchema   ObjectKind = "schema"
	KindTable    ObjectKind = "table"
	KindView     ObjectKind = "view"
)

// Column is one column of a table definition. Type is the Snowflake-side
// type name as written in the CREATE TABLE text.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Primary  bool   `json:"primary_key,omitempty"`
	Default  string `json:"default,omitempty"`
}

// Table binds a catalog name to an engine relation. Relation identifiers
// are unique per table instance, so a DROP leaves the relation intact and
// a later CREATE of the same name gets a fresh relation.
type Table struct {
	Name      string    `json:"name"`
	Columns   []Column  `json:"columns"`
	Relation  string    `json:"relation"`
	RowCount  int64     `json:"row_count"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// View stores the translated definition; the engine relation is created
// lazily on first reference.
type View struct {
	Name       string    `json:"name"`
	Definition string    `json:"definition"`
	Relation   string    `json:"relation"`
	Secure     bool      `json:"secure,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	Realized   bool      `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

type Schema struct {
	Name      string            `json:"name"`
	Tables    map[string]*Table `json:"tables"`
	Views     map[string]*View  `json:"views"`
	Comment   string            `json:"comment,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type Database struct {
	Name      string             `json:"name"`
	Schemas   map[string]*Schema `json:"schemas"`
	Comment   string             `json:"comment,omitempty"`
	Transient bool               `json:"transient,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// Tombstone is one dropped object with enough state to restore it.
// Database and schema tombstones carry their full subtree.
type Tombstone struct {
	Kind      ObjectKind `json:"kind"`
	DroppedAt time.Time  `json:"dropped_at"`
	Database  *Database  `json:"database,omitempty"`
	Schema    *Schema    `json:"schema,omitempty"`
	Table     *Table     `json:"table,omitempty"`
	View      *View      `json:"view,omitempty"`
}

// Store is the in-memory catalog. Every mutating operation persists a
// snapshot to disk before returning; see persist.go.
type Store struct {
	mu        sync.RWMutex
	path      string
	log       *logrus.Entry
	databases map[string]*Database

	// tombstone stacks keyed by fully qualified name, newest last
	droppedDatabases map[string][]*Tombstone
	droppedSchemas   map[string][]*Tombstone
	droppedTables    map[string][]*Tombstone
	droppedViews     map[string][]*Tombstone
}

// New returns an empty catalog persisting to path. Pass an empty path to
// keep the catalog memory-only (tests).
func New(path string, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.New()
	}
	return &Store{
		path:             path,
		log:              log.WithField("component", "catalog"),
		databases:        map[string]*Database{},
		droppedDatabases: map[string][]*Tombstone{},
		droppedSchemas:   map[string][]*Tombstone{},
		droppedTables:    map[string][]*Tombstone{},
		droppedViews:     map[string][]*Tombstone{},
	}
}

// NewRelation derives a fresh engine relation identifier for a table or
// view name. The random suffix keeps relations from colliding when a name
// is dropped and recreated.
func NewRelation(name string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return name + "_" + suffix
}

// CreateOptions modify object creation.
type CreateOptions struct {
	IfNotExists bool
	OrReplace   bool
	Transient   bool
	Comment     string
}

// DropOptions modify object removal.
type DropOptions struct {
	IfExists bool
	Cascade  bool
}

// ---- databases ----

// CreateDatabase creates a database with the default PUBLIC and
// INFORMATION_SCHEMA schemas, mirroring what a fresh Snowflake database
// contains.
func (s *Store) CreateDatabase(name string, opts CreateOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Normalize(name)
	if existing, ok := s.databases[key]; ok {
		if opts.IfNotExists {
			return nil
		}
		if !opts.OrReplace {
			return apierror.New(apierror.KindAlreadyExists, "database %s already exists", key)
		}
		s.pushTombstone(&Tombstone{Kind: KindDatabase, DroppedAt: time.Now().UTC(), Database: existing}, key)
		delete(s.databases, key)
	}

	now := time.Now().UTC()
	db := &Database{
		Name:      key,
		Schemas:   map[string]*Schema{},
		Comment:   opts.Comment,
		Transient: opts.Transient,
		CreatedAt: now,
	}
	for _, sc := range []string{"PUBLIC", "INFORMATION_SCHEMA"} {
		db.Schemas[sc] = &Schema{Name: sc, Tables: map[string]*Table{}, Views: map[string]*View{}, CreatedAt: now}
	}
	s.databases[key] = db
	s.log.WithField("database", key).Info("database created")
	return s.persistLocked()
}

// DropDatabase tombstones a database. Without cascade it refuses when any
// schema contains tables or views, or a non-default schema exists.
func (s *Store) DropDatabase(name string, opts DropOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Normalize(name)
	db, ok := s.databases[key]
	if !ok {
		if opts.IfExists {
			return nil
		}
		return apierror.New(apierror.KindNotFound, "database %s does not exist", key)
	}
	if !opts.Cascade && !databaseEmpty(db) {
		return apierror.New(apierror.KindNotEmpty, "database %s is not empty, use CASCADE to drop it anyway", key)
	}
	delete(s.databases, key)
	s.pushTombstone(&Tombstone{Kind: KindDatabase, DroppedAt: time.Now().UTC(), Database: db}, key)
	s.log.WithField("database", key).Info("database dropped")
	return s.persistLocked()
}

// UndropDatabase restores the most recently dropped database of that name.
func (s *Store) UndropDatabase(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Normalize(name)
	if _, live := s.databases[key]; live {
		return apierror.New(apierror.KindNameInUse, "database %s already exists, cannot undrop", key)
	}
	ts := s.popTombstone(KindDatabase, key)
	if ts == nil {
		return apierror.New(apierror.KindNotFound, "no dropped database named %s", key)
	}
	s.databases[key] = ts.Database
	s.log.WithField("database", key).Info("database undropped")
	return s.persistLocked()
}

func databaseEmpty(db *Database) bool {
	for name, sc := range db.Schemas {
		if name != "PUBLIC" && name != "INFORMATION_SCHEMA" {
			return false
		}
		if len(sc.Tables) > 0 || len(sc.Views) > 0 {
			return false
		}
	}
	return true
}

// ---- schemas ----

func (s *Store) CreateSchema(dbName, name string, opts CreateOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.database(dbName)
	if err != nil {
		return err
	}
	key := Normalize(name)
	if existing, ok := db.Schemas[key]; ok {
		if opts.IfNotExists {
			return nil
		}
		if !opts.OrReplace {
			return apierror.New(apierror.KindAlreadyExists, "schema %s.%s already exists", db.Name, key)
		}
		s.pushTombstone(&Tombstone{Kind: KindSchema, DroppedAt: time.Now().UTC(), Schema: existing}, FQN(db.Name, key))
		delete(db.Schemas, key)
	}
	db.Schemas[key] = &Schema{
		Name:      key,
		Tables:    map[string]*Table{},
		Views:     map[string]*View{},
		Comment:   opts.Comment,
		CreatedAt: time.Now().UTC(),
	}
	s.log.WithFields(logrus.Fields{"database": db.Name, "schema": key}).Info("schema created")
	return s.persistLocked()
}

func (s *Store) DropSchema(dbName, name string, opts DropOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.database(dbName)
	if err != nil {
		if opts.IfExists && apierror.KindOf(err) == apierror.KindNotFound {
			return nil
		}
		return err
	}
	key := Normalize(name)
	sc, ok := db.Schemas[key]
	if !ok {
		if opts.IfExists {
			return nil
		}
		return apierror.New(apierror.KindNotFound, "schema %s.%s does not exist", db.Name, key)
	}
	if !opts.Cascade && (len(sc.Tables) > 0 || len(sc.Views) > 0) {
		return apierror.New(apierror.KindNotEmpty, "schema %s.%s is not empty, use CASCADE to drop it anyway", db.Name, key)
	}
	delete(db.Schemas, key)
	s.pushTombstone(&Tombstone{Kind: KindSchema, DroppedAt: time.Now().UTC(), Schema: sc}, FQN(db.Name, key))
	s.log.WithFields(logrus.Fields{"database": db.Name, "schema": key}).Info("schema dropped")
	return s.persistLocked()
}

func (s *Store) UndropSchema(dbName, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.database(dbName)
	if err != nil {
		return err
	}
	key := Normalize(name)
	if _, live := db.Schemas[key]; live {
		return apierror.New(apierror.KindNameInUse, "schema %s.%s already exists, cannot undrop", db.Name, key)
	}
	ts := s.popTombstone(KindSchema, FQN(db.Name, key))
	if ts == nil {
		return apierror.New(apierror.KindNotFound, "no dropped schema named %s.%s", db.Name, key)
	}
	db.Schemas[key] = ts.Schema
	return s.persistLocked()
}

// ---- tables ----

// AddTable registers a table whose engine relation was already created.
// The executor sequences engine work before catalog work so a failure on
// either side can be unwound.
func (s *Store) AddTable(dbName, schemaName string, tbl *Table, opts CreateOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.schema(dbName, schemaName)
	if err != nil {
		return err
	}
	key := Normalize(tbl.Name)
	if existing, ok := sc.Tables[key]; ok {
		if opts.IfNotExists {
			return nil
		}
		if !opts.OrReplace {
			return apierror.New(apierror.KindAlreadyExists, "table %s already exists", FQN(Normalize(dbName), sc.Name, key))
		}
		s.pushTombstone(&Tombstone{Kind: KindTable, DroppedAt: time.Now().UTC(), Table: existing}, FQN(Normalize(dbName), sc.Name, key))
	}
	tbl.Name = key
	if tbl.CreatedAt.IsZero() {
		tbl.CreatedAt = time.Now().UTC()
	}
	sc.Tables[key] = tbl
	return s.persistLocked()
}

// HasTable reports whether the table exists and, when it conflicts with a
// pending create, whether the caller asked to tolerate or replace it.
func (s *Store) HasTable(dbName, schemaName, name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, err := s.schema(dbName, schemaName)
	if err != nil {
		return false
	}
	_, ok := sc.Tables[Normalize(name)]
	return ok
}

// Table looks up a live table.
func (s *Store) Table(dbName, schemaName, name string) (*Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, err := s.schema(dbName, schemaName)
	if err != nil {
		return nil, err
	}
	tbl, ok := sc.Tables[Normalize(name)]
	if !ok {
		return nil, apierror.New(apierror.KindNotFound, "table %s does not exist",
			FQN(Normalize(dbName), Normalize(schemaName), Normalize(name)))
	}
	return tbl, nil
}

// DropTable removes the table from the live tree and pushes a tombstone.
// The engine relation is intentionally left alone so UNDROP can bring the
// rows back.
func (s *Store) DropTable(dbName, schemaName, name string, opts DropOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.schema(dbName, schemaName)
	if err != nil {
		if opts.IfExists && apierror.KindOf(err) == apierror.KindNotFound {
			return nil
		}
		return err
	}
	key := Normalize(name)
	tbl, ok := sc.Tables[key]
	if !ok {
		if opts.IfExists {
			return nil
		}
		return apierror.New(apierror.KindNotFound, "table %s does not exist", FQN(Normalize(dbName), sc.Name, key))
	}
	delete(sc.Tables, key)
	s.pushTombstone(&Tombstone{Kind: KindTable, DroppedAt: time.Now().UTC(), Table: tbl}, FQN(Normalize(dbName), sc.Name, key))
	s.log.WithField("table", FQN(Normalize(dbName), sc.Name, key)).Info("table dropped")
	return s.persistLocked()
}

// UndropTable restores the most recent tombstone and returns the restored
// table so the executor can verify its relation.
func (s *Store) UndropTable(dbName, schemaName, name string) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.schema(dbName, schemaName)
	if err != nil {
		return nil, err
	}
	key := Normalize(name)
	if _, live := sc.Tables[key]; live {
		return nil, apierror.New(apierror.KindNameInUse, "table %s already exists, cannot undrop", FQN(Normalize(dbName), sc.Name, key))
	}
	fq := FQN(Normalize(dbName), sc.Name, key)
	ts := s.popTombstone(KindTable, fq)
	if ts == nil {
		return nil, apierror.New(apierror.KindNotFound, "no dropped table named %s", fq)
	}
	sc.Tables[key] = ts.Table
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return ts.Table, nil
}

// RenameTable moves a table to a new name in the same schema. The engine
// relation is renamed by the executor first; here we record the new name
// and relation.
func (s *Store) RenameTable(dbName, schemaName, oldName, newName, newRelation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.schema(dbName, schemaName)
	if err != nil {
		return err
	}
	oldKey, newKey := Normalize(oldName), Normalize(newName)
	tbl, ok := sc.Tables[oldKey]
	if !ok {
		return apierror.New(apierror.KindNotFound, "table %s does not exist", FQN(Normalize(dbName), sc.Name, oldKey))
	}
	if _, clash := sc.Tables[newKey]; clash {
		return apierror.New(apierror.KindAlreadyExists, "table %s already exists", FQN(Normalize(dbName), sc.Name, newKey))
	}
	delete(sc.Tables, oldKey)
	tbl.Name = newKey
	tbl.Relation = newRelation
	sc.Tables[newKey] = tbl
	return s.persistLocked()
}

// SetRowCount records the engine row count after a data mutation.
func (s *Store) SetRowCount(dbName, schemaName, name string, rows int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, err := s.schema(dbName, schemaName)
	if err != nil {
		return
	}
	if tbl, ok := sc.Tables[Normalize(name)]; ok {
		tbl.RowCount = rows
		_ = s.persistLocked()
	}
}

// ---- views ----

func (s *Store) AddView(dbName, schemaName string, v *View, opts CreateOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.schema(dbName, schemaName)
	if err != nil {
		return err
	}
	key := Normalize(v.Name)
	if existing, ok := sc.Views[key]; ok {
		if opts.IfNotExists {
			return nil
		}
		if !opts.OrReplace {
			return apierror.New(apierror.KindAlreadyExists, "view %s already exists", FQN(Normalize(dbName), sc.Name, key))
		}
		s.pushTombstone(&Tombstone{Kind: KindView, DroppedAt: time.Now().UTC(), View: existing}, FQN(Normalize(dbName), sc.Name, key))
	}
	v.Name = key
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	sc.Views[key] = v
	return s.persistLocked()
}

func (s *Store) View(dbName, schemaName, name string) (*View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, err := s.schema(dbName, schemaName)
	if err != nil {
		return nil, err
	}
	v, ok := sc.Views[Normalize(name)]
	if !ok {
		return nil, apierror.New(apierror.KindNotFound, "view %s does not exist",
			FQN(Normalize(dbName), Normalize(schemaName), Normalize(name)))
	}
	return v, nil
}

func (s *Store) DropView(dbName, schemaName, name string, opts DropOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.schema(dbName, schemaName)
	if err != nil {
		if opts.IfExists && apierror.KindOf(err) == apierror.KindNotFound {
			return nil
		}
		return err
	}
	key := Normalize(name)
	v, ok := sc.Views[key]
	if !ok {
		if opts.IfExists {
			return nil
		}
		return apierror.New(apierror.KindNotFound, "view %s does not exist", FQN(Normalize(dbName), sc.Name, key))
	}
	delete(sc.Views, key)
	s.pushTombstone(&Tombstone{Kind: KindView, DroppedAt: time.Now().UTC(), View: v}, FQN(Normalize(dbName), sc.Name, key))
	return s.persistLocked()
}

func (s *Store) UndropView(dbName, schemaName, name string) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.schema(dbName, schemaName)
	if err != nil {
		return nil, err
	}
	key := Normalize(name)
	if _, live := sc.Views[key]; live {
		return nil, apierror.New(apierror.KindNameInUse, "view %s already exists, cannot undrop", FQN(Normalize(dbName), sc.Name, key))
	}
	fq := FQN(Normalize(dbName), sc.Name, key)
	ts := s.popTombstone(KindView, fq)
	if ts == nil {
		return nil, apierror.New(apierror.KindNotFound, "no dropped view named %s", fq)
	}
	ts.View.Realized = false
	sc.Views[key] = ts.View
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return ts.View, nil
}

// MarkViewRealized flags a view's engine relation as created so lazy
// realization runs once per process.
func (s *Store) MarkViewRealized(dbName, schemaName, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc, err := s.schema(dbName, schemaName); err == nil {
		if v, ok := sc.Views[Normalize(name)]; ok {
			v.Realized = true
		}
	}
}

// ---- lookups and listings ----

func (s *Store) database(name string) (*Database, error) {
	db, ok := s.databases[Normalize(name)]
	if !ok {
		return nil, apierror.New(apierror.KindNotFound, "database %s does not exist", Normalize(name))
	}
	return db, nil
}

func (s *Store) schema(dbName, name string) (*Schema, error) {
	db, err := s.database(dbName)
	if err != nil {
		return nil, err
	}
	sc, ok := db.Schemas[Normalize(name)]
	if !ok {
		return nil, apierror.New(apierror.KindNotFound, "schema %s.%s does not exist", db.Name, Normalize(name))
	}
	return sc, nil
}

// HasDatabase reports whether a live database of that name exists.
func (s *Store) HasDatabase(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.databases[Normalize(name)]
	return ok
}

// HasSchema reports whether a live schema exists under the database.
func (s *Store) HasSchema(dbName, name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := s.schema(dbName, name)
	return err == nil
}

// DatabaseInfo is a listing row.
type DatabaseInfo struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Schemas   int       `json:"schemas"`
}

func (s *Store) ListDatabases() []DatabaseInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DatabaseInfo, 0, len(s.databases))
	for _, db := range s.databases {
		out = append(out, DatabaseInfo{Name: db.Name, CreatedAt: db.CreatedAt, Schemas: len(db.Schemas)})
	}
	sortByCreation(out, func(i DatabaseInfo) (time.Time, string) { return i.CreatedAt, i.Name })
	return out
}

// SchemaInfo is a listing row.
type SchemaInfo struct {
	Name      string    `json:"name"`
	Database  string    `json:"database"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) ListSchemas(dbName string) ([]SchemaInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.database(dbName)
	if err != nil {
		return nil, err
	}
	out := make([]SchemaInfo, 0, len(db.Schemas))
	for _, sc := range db.Schemas {
		out = append(out, SchemaInfo{Name: sc.Name, Database: db.Name, CreatedAt: sc.CreatedAt})
	}
	sortByCreation(out, func(i SchemaInfo) (time.Time, string) { return i.CreatedAt, i.Name })
	return out, nil
}

// TableInfo is a listing row.
type TableInfo struct {
	Name      string    `json:"name"`
	Database  string    `json:"database"`
	Schema    string    `json:"schema"`
	Rows      int64     `json:"rows"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) ListTables(dbName, schemaName string) ([]TableInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.database(dbName)
	if err != nil {
		return nil, err
	}
	sc, ok := db.Schemas[Normalize(schemaName)]
	if !ok {
		return nil, apierror.New(apierror.KindNotFound, "schema %s.%s does not exist", db.Name, Normalize(schemaName))
	}
	out := make([]TableInfo, 0, len(sc.Tables))
	for _, t := range sc.Tables {
		out = append(out, TableInfo{Name: t.Name, Database: db.Name, Schema: sc.Name, Rows: t.RowCount, CreatedAt: t.CreatedAt})
	}
	sortByCreation(out, func(i TableInfo) (time.Time, string) { return i.CreatedAt, i.Name })
	return out, nil
}

// ViewInfo is a listing row.
type ViewInfo struct {
	Name      string    `json:"name"`
	Database  string    `json:"database"`
	Schema    string    `json:"schema"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) ListViews(dbName, schemaName string) ([]ViewInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, err := s.schema(dbName, schemaName)
	if err != nil {
		return nil, err
	}
	out := make([]ViewInfo, 0, len(sc.Views))
	for _, v := range sc.Views {
		out = append(out, ViewInfo{Name: v.Name, Database: Normalize(dbName), Schema: sc.Name, CreatedAt: v.CreatedAt})
	}
	sortByCreation(out, func(i ViewInfo) (time.Time, string) { return i.CreatedAt, i.Name })
	return out, nil
}

// DroppedInfo is a dropped-object listing row for SHOW DROPPED and /api.
type DroppedInfo struct {
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Database  string    `json:"database,omitempty"`
	Schema    string    `json:"schema,omitempty"`
	DroppedAt time.Time `json:"dropped_on"`
}

// ListDropped returns tombstones of one kind, newest first. Empty db and
// schema match everything.
func (s *Store) ListDropped(kind ObjectKind, dbFilter, schemaFilter string) []DroppedInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stacks := s.stacksFor(kind)
	var out []DroppedInfo
	for fq, stack := range stacks {
		parts := strings.Split(fq, ".")
		var db, schema, name string
		switch len(parts) {
		case 1:
			name = parts[0]
		case 2:
			db, name = parts[0], parts[1]
		default:
			db, schema, name = parts[0], parts[1], parts[2]
		}
		if dbFilter != "" && db != Normalize(dbFilter) {
			continue
		}
		if schemaFilter != "" && schema != Normalize(schemaFilter) {
			continue
		}
		for _, ts := range stack {
			out = append(out, DroppedInfo{Name: name, Kind: string(kind), Database: db, Schema: schema, DroppedAt: ts.DroppedAt})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DroppedAt.Equal(out[j].DroppedAt) {
			return out[i].DroppedAt.After(out[j].DroppedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ---- tombstone plumbing ----

func (s *Store) stacksFor(kind ObjectKind) map[string][]*Tombstone {
	switch kind {
	case KindDatabase:
		return s.droppedDatabases
	case KindSchema:
		return s.droppedSchemas
	case KindTable:
		return s.droppedTables
	default:
		return s.droppedViews
	}
}

func (s *Store) pushTombstone(ts *Tombstone, fq string) {
	stacks := s.stacksFor(ts.Kind)
	stacks[fq] = append(stacks[fq], ts)
}

func (s *Store) popTombstone(kind ObjectKind, fq string) *Tombstone {
	stacks := s.stacksFor(kind)
	stack := stacks[fq]
	if len(stack) == 0 {
		return nil
	}
	ts := stack[len(stack)-1]
	if len(stack) == 1 {
		delete(stacks, fq)
	} else {
		stacks[fq] = stack[:len(stack)-1]
	}
	return ts
}

func sortByCreation[T any](items []T, key func(T) (time.Time, string)) {
	sort.Slice(items, func(i, j int) bool {
		ti, ni := key(items[i])
		tj, nj := key(items[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return ni < nj
	})
}

// Describe returns the column definitions of a table as (name, type,
// nullable) rows.
func (s *Store) Describe(dbName, schemaName, name string) ([]Column, error) {
	tbl, err := s.Table(dbName, schemaName, name)
	if err != nil {
		return nil, err
	}
	cols := make([]Column, len(tbl.Columns))
	copy(cols, tbl.Columns)
	return cols, nil
}

// Summary reports object counts for /api/stats style surfaces.
func (s *Store) Summary() (databases, schemas, tables, views int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	databases = len(s.databases)
	for _, db := range s.databases {
		schemas += len(db.Schemas)
		for _, sc := range db.Schemas {
			tables += len(sc.Tables)
			views += len(sc.Views)
		}
	}
	return
}

func (s *Store) String() string {
	d, sc, t, v := s.Summary()
	return fmt.Sprintf("catalog{databases=%d schemas=%d tables=%d views=%d}", d, sc, t, v)
}
