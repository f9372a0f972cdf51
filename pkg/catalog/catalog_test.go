package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/sirupsen/logrus"

	"github.com/snowglobe-io/snowglobe/server/apierror"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return New("", log)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"orders", "ORDERS"},
		{"Orders", "ORDERS"},
		{`"orders"`, "orders"},
		{`"Mixed Case"`, "Mixed Case"},
		{`"quo""ted"`, `quo"ted`},
		{"  padded ", "PADDED"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveParts(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		wantD string
		wantS string
		wantO string
	}{
		{"bare name uses session context", []string{"t"}, "DB1", "PUBLIC", "T"},
		{"two parts override schema", []string{"s2", "t"}, "DB1", "S2", "T"},
		{"three parts override both", []string{"db2", "s3", "t"}, "DB2", "S3", "T"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, s, o := ResolveParts(tt.parts, "db1", "public")
			if d != tt.wantD || s != tt.wantS || o != tt.wantO {
				t.Errorf("ResolveParts(%v) = (%s, %s, %s), want (%s, %s, %s)",
					tt.parts, d, s, o, tt.wantD, tt.wantS, tt.wantO)
			}
		})
	}
}

func TestCreateDatabaseDefaults(t *testing.T) {
	s := setupTestStore(t)
	if err := s.CreateDatabase("testdb", CreateOptions{}); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}

	schemas, err := s.ListSchemas("TESTDB")
	if err != nil {
		t.Fatalf("ListSchemas: %v", err)
	}
	var names []string
	for _, sc := range schemas {
		names = append(names, sc.Name)
	}
	want := []string{"INFORMATION_SCHEMA", "PUBLIC"}
	if diff := cmp.Diff(want, names, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Errorf("default schemas mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateDatabaseConflicts(t *testing.T) {
	s := setupTestStore(t)
	if err := s.CreateDatabase("db1", CreateOptions{}); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}

	if err := s.CreateDatabase("DB1", CreateOptions{}); apierror.KindOf(err) != apierror.KindAlreadyExists {
		t.Errorf("duplicate create: got %v, want AlreadyExists", err)
	}
	if err := s.CreateDatabase("db1", CreateOptions{IfNotExists: true}); err != nil {
		t.Errorf("IF NOT EXISTS should be a no-op, got %v", err)
	}
	if err := s.CreateDatabase("db1", CreateOptions{OrReplace: true}); err != nil {
		t.Errorf("OR REPLACE should succeed, got %v", err)
	}
	// the replaced database is restorable once the new one is gone
	if err := s.DropDatabase("db1", DropOptions{Cascade: true}); err != nil {
		t.Fatalf("DropDatabase: %v", err)
	}
	if err := s.UndropDatabase("db1"); err != nil {
		t.Errorf("undrop after replace+drop: %v", err)
	}
}

func TestDropDatabaseNotEmpty(t *testing.T) {
	s := setupTestStore(t)
	if err := s.CreateDatabase("db1", CreateOptions{}); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	tbl := &Table{Name: "T1", Relation: NewRelation("T1")}
	if err := s.AddTable("db1", "public", tbl, CreateOptions{}); err != nil {
		t.Fatalf("AddTable: %v", err)
	}

	err := s.DropDatabase("db1", DropOptions{})
	if apierror.KindOf(err) != apierror.KindNotEmpty {
		t.Errorf("drop of non-empty database: got %v, want NotEmpty", err)
	}
	if err := s.DropDatabase("db1", DropOptions{Cascade: true}); err != nil {
		t.Errorf("cascade drop: %v", err)
	}
}

func TestUndropTableStack(t *testing.T) {
	s := setupTestStore(t)
	if err := s.CreateDatabase("db1", CreateOptions{}); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}

	first := &Table{Name: "T", Relation: "T_aaaaaaaa", RowCount: 2}
	if err := s.AddTable("db1", "public", first, CreateOptions{}); err != nil {
		t.Fatalf("AddTable first: %v", err)
	}
	if err := s.DropTable("db1", "public", "t", DropOptions{}); err != nil {
		t.Fatalf("DropTable first: %v", err)
	}

	second := &Table{Name: "T", Relation: "T_bbbbbbbb", RowCount: 5}
	if err := s.AddTable("db1", "public", second, CreateOptions{}); err != nil {
		t.Fatalf("AddTable second: %v", err)
	}
	if err := s.DropTable("db1", "public", "t", DropOptions{}); err != nil {
		t.Fatalf("DropTable second: %v", err)
	}

	// top of stack comes back first
	got, err := s.UndropTable("db1", "public", "t")
	if err != nil {
		t.Fatalf("UndropTable: %v", err)
	}
	if got.Relation != "T_bbbbbbbb" {
		t.Errorf("restored relation = %s, want T_bbbbbbbb", got.Relation)
	}

	// live conflict blocks a second undrop
	if _, err := s.UndropTable("db1", "public", "t"); apierror.KindOf(err) != apierror.KindNameInUse {
		t.Errorf("undrop with live table: got %v, want NameInUse", err)
	}

	if err := s.DropTable("db1", "public", "t", DropOptions{}); err != nil {
		t.Fatalf("DropTable restored: %v", err)
	}
	got, err = s.UndropTable("db1", "public", "t")
	if err != nil {
		t.Fatalf("UndropTable second round: %v", err)
	}
	if got.Relation != "T_bbbbbbbb" {
		t.Errorf("restored relation = %s, want T_bbbbbbbb", got.Relation)
	}
}

func TestQuotedIdentifiersAreDistinct(t *testing.T) {
	s := setupTestStore(t)
	if err := s.CreateDatabase("db1", CreateOptions{}); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}

	upper := &Table{Name: Normalize("t"), Relation: NewRelation("T")}
	lower := &Table{Name: Normalize(`"t"`), Relation: NewRelation("t")}
	if err := s.AddTable("db1", "public", upper, CreateOptions{}); err != nil {
		t.Fatalf("AddTable upper: %v", err)
	}
	if err := s.AddTable("db1", "public", lower, CreateOptions{}); err != nil {
		t.Fatalf("AddTable lower: %v", err)
	}

	tables, err := s.ListTables("db1", "public")
	if err != nil {
		t.Fatalf("ListTables: %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("got %d tables, want 2 (quoted name must not fold)", len(tables))
	}
}

func TestDropIfExists(t *testing.T) {
	s := setupTestStore(t)
	if err := s.CreateDatabase("db1", CreateOptions{}); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}

	tests := []struct {
		name string
		fn   func() error
		want apierror.Kind
	}{
		{"drop missing table", func() error { return s.DropTable("db1", "public", "nope", DropOptions{}) }, apierror.KindNotFound},
		{"drop missing table if exists", func() error { return s.DropTable("db1", "public", "nope", DropOptions{IfExists: true}) }, ""},
		{"drop missing schema", func() error { return s.DropSchema("db1", "nope", DropOptions{}) }, apierror.KindNotFound},
		{"drop missing schema if exists", func() error { return s.DropSchema("db1", "nope", DropOptions{IfExists: true}) }, ""},
		{"drop missing database", func() error { return s.DropDatabase("nope", DropOptions{}) }, apierror.KindNotFound},
		{"drop missing database if exists", func() error { return s.DropDatabase("nope", DropOptions{IfExists: true}) }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			if tt.want == "" {
				if err != nil {
					t.Errorf("got %v, want nil", err)
				}
				return
			}
			if apierror.KindOf(err) != tt.want {
				t.Errorf("got %v, want kind %s", err, tt.want)
			}
		})
	}
}

func TestListDroppedFilter(t *testing.T) {
	s := setupTestStore(t)
	for _, db := range []string{"db1", "db2"} {
		if err := s.CreateDatabase(db, CreateOptions{}); err != nil {
			t.Fatalf("CreateDatabase %s: %v", db, err)
		}
	}
	for _, db := range []string{"db1", "db2"} {
		tbl := &Table{Name: "T", Relation: NewRelation("T")}
		if err := s.AddTable(db, "public", tbl, CreateOptions{}); err != nil {
			t.Fatalf("AddTable: %v", err)
		}
		if err := s.DropTable(db, "public", "t", DropOptions{}); err != nil {
			t.Fatalf("DropTable: %v", err)
		}
	}

	all := s.ListDropped(KindTable, "", "")
	if len(all) != 2 {
		t.Errorf("unfiltered: got %d tombstones, want 2", len(all))
	}
	one := s.ListDropped(KindTable, "db1", "")
	if len(one) != 1 || one[0].Database != "DB1" {
		t.Errorf("filtered: got %+v, want single DB1 entry", one)
	}
}

func TestPersistRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	s := New(path, log)
	if err := s.CreateDatabase("db1", CreateOptions{Comment: "primary"}); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	tbl := &Table{
		Name:     "ORDERS",
		Relation: "ORDERS_12ab34cd",
		Columns:  []Column{{Name: "ID", Type: "NUMBER", Nullable: false}, {Name: "NOTE", Type: "VARCHAR", Nullable: true}},
		RowCount: 3,
	}
	if err := s.AddTable("db1", "public", tbl, CreateOptions{}); err != nil {
		t.Fatalf("AddTable: %v", err)
	}
	if err := s.DropTable("db1", "public", "orders", DropOptions{}); err != nil {
		t.Fatalf("DropTable: %v", err)
	}

	reloaded := New(path, log)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reloaded.HasDatabase("db1") {
		t.Fatal("reloaded catalog lost database DB1")
	}
	got, err := reloaded.UndropTable("db1", "public", "orders")
	if err != nil {
		t.Fatalf("UndropTable after reload: %v", err)
	}
	if diff := cmp.Diff(tbl, got, cmpopts.IgnoreFields(Table{}, "CreatedAt")); diff != "" {
		t.Errorf("restored table mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadSnapshotWithoutDroppedSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	legacy := `{"databases": {"OLD": {"name": "OLD", "schemas": {"PUBLIC": {"name": "PUBLIC"}}}}}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("write legacy snapshot: %v", err)
	}

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	s := New(path, log)
	if err := s.Load(); err != nil {
		t.Fatalf("Load legacy snapshot: %v", err)
	}
	if !s.HasDatabase("OLD") {
		t.Error("legacy database not loaded")
	}
	if got := s.ListDropped(KindTable, "", ""); len(got) != 0 {
		t.Errorf("expected no tombstones, got %d", len(got))
	}
	// the repaired PUBLIC schema accepts new tables
	if err := s.AddTable("old", "public", &Table{Name: "T", Relation: "T_00000000"}, CreateOptions{}); err != nil {
		t.Errorf("AddTable into legacy schema: %v", err)
	}
}

func TestLoadCorruptSnapshotStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt snapshot: %v", err)
	}

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	s := New(path, log)
	if err := s.Load(); err != nil {
		t.Fatalf("Load of corrupt snapshot: %v", err)
	}
	if got := len(s.ListDatabases()); got != 0 {
		t.Fatalf("databases = %d, want empty catalog", got)
	}
	// the store stays usable and the next mutation rewrites the file
	if err := s.CreateDatabase("FRESH", CreateOptions{}); err != nil {
		t.Fatalf("CreateDatabase after corrupt load: %v", err)
	}
	reloaded := New(path, log)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.HasDatabase("FRESH") {
		t.Error("rewritten snapshot not loadable")
	}
}
