package executor

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/snowglobe-io/snowglobe/pkg/catalog"
	"github.com/snowglobe-io/snowglobe/pkg/engine"
	"github.com/snowglobe-io/snowglobe/pkg/session"
	"github.com/snowglobe-io/snowglobe/server/apierror"
)

type testEnv struct {
	x    *Executor
	sess *session.Session
}

func setupTestExecutor(t *testing.T) *testEnv {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	eng, err := engine.Open("", 30*time.Second, log)
	if err != nil {
		t.Fatalf("engine.Open: %v", err)
	}
	t.Cleanup(func() { eng.Close() })

	cat := catalog.New("", log)
	x := New(cat, eng, log, "0.1.0", "COMPUTE_WH")

	sm := session.NewManager(session.Defaults{
		Database: "SNOWGLOBE", Schema: "PUBLIC", Warehouse: "COMPUTE_WH", Role: "ACCOUNTADMIN",
	}, 0)
	sess := sm.Create("tester", "acct", "", "")

	env := &testEnv{x: x, sess: sess}
	env.mustExec(t, "CREATE DATABASE SNOWGLOBE")
	return env
}

func (e *testEnv) exec(t *testing.T, sql string) (*Response, error) {
	t.Helper()
	return e.x.Execute(context.Background(), e.sess, uuid.NewString(), sql)
}

func (e *testEnv) mustExec(t *testing.T, sql string) *Response {
	t.Helper()
	resp, err := e.exec(t, sql)
	if err != nil {
		t.Fatalf("Execute(%q): %v", sql, err)
	}
	return resp
}

func firstCell(t *testing.T, resp *Response) string {
	t.Helper()
	if len(resp.Rows) == 0 || len(resp.Rows[0]) == 0 || resp.Rows[0][0] == nil {
		t.Fatal("response has no first cell")
	}
	return *resp.Rows[0][0]
}

func TestCreateInsertSelectRoundTrip(t *testing.T) {
	env := setupTestExecutor(t)

	resp := env.mustExec(t, "CREATE TABLE users (id NUMBER, name STRING)")
	if got := firstCell(t, resp); got != "Table USERS successfully created." {
		t.Errorf("status = %q", got)
	}
	resp = env.mustExec(t, "INSERT INTO users VALUES (1, 'ada'), (2, 'grace')")
	if got := firstCell(t, resp); got != "2" {
		t.Errorf("inserted = %q, want 2", got)
	}
	if resp.Columns[0].Name != "number of rows inserted" {
		t.Errorf("column = %q", resp.Columns[0].Name)
	}

	resp = env.mustExec(t, "SELECT name FROM users ORDER BY id")
	if len(resp.Rows) != 2 || *resp.Rows[0][0] != "ada" || *resp.Rows[1][0] != "grace" {
		t.Errorf("rows = %v", resp.Rows)
	}
	if resp.Columns[0].SFType != "TEXT" {
		t.Errorf("name column type = %s, want TEXT", resp.Columns[0].SFType)
	}
}

func TestTranslationInPipeline(t *testing.T) {
	env := setupTestExecutor(t)
	env.mustExec(t, "CREATE TABLE t (a NUMBER, b NUMBER)")
	env.mustExec(t, "INSERT INTO t VALUES (NULL, 7)")

	resp := env.mustExec(t, "SELECT NVL(a, b) FROM t")
	if got := firstCell(t, resp); got != "7" {
		t.Errorf("NVL result = %q, want 7", got)
	}
	resp = env.mustExec(t, "SELECT IFF(1 > 0, 'yes', 'no')")
	if got := firstCell(t, resp); got != "yes" {
		t.Errorf("IFF result = %q, want yes", got)
	}
}

func TestDropUndropKeepsData(t *testing.T) {
	env := setupTestExecutor(t)
	env.mustExec(t, "CREATE TABLE events (id NUMBER)")
	env.mustExec(t, "INSERT INTO events VALUES (1), (2)")

	resp := env.mustExec(t, "DROP TABLE events")
	if got := firstCell(t, resp); got != "EVENTS successfully dropped." {
		t.Errorf("drop status = %q", got)
	}
	if _, err := env.exec(t, "SELECT * FROM events"); err == nil {
		t.Error("dropped table still queryable")
	}

	resp = env.mustExec(t, "UNDROP TABLE events")
	if got := firstCell(t, resp); got != "Table EVENTS successfully restored." {
		t.Errorf("undrop status = %q", got)
	}
	resp = env.mustExec(t, "SELECT COUNT(*) FROM events")
	if got := firstCell(t, resp); got != "2" {
		t.Errorf("count after undrop = %q, want 2", got)
	}
}

func TestCreateAfterDropThenUndropConflict(t *testing.T) {
	env := setupTestExecutor(t)
	env.mustExec(t, "CREATE TABLE t (x NUMBER)")
	env.mustExec(t, "DROP TABLE t")
	env.mustExec(t, "CREATE TABLE t (y STRING)")

	_, err := env.exec(t, "UNDROP TABLE t")
	if apierror.KindOf(err) != apierror.KindNameInUse {
		t.Errorf("undrop with live table: got %v, want NameInUse", err)
	}
}

func TestQuotedIdentifiers(t *testing.T) {
	env := setupTestExecutor(t)
	env.mustExec(t, `CREATE TABLE "lower" (x NUMBER)`)
	env.mustExec(t, "CREATE TABLE LOWER_T (x NUMBER)")
	env.mustExec(t, `INSERT INTO "lower" VALUES (5)`)

	resp := env.mustExec(t, `SELECT x FROM "lower"`)
	if got := firstCell(t, resp); got != "5" {
		t.Errorf("quoted table select = %q, want 5", got)
	}
}

func TestCreateTableAsSelect(t *testing.T) {
	env := setupTestExecutor(t)
	env.mustExec(t, "CREATE TABLE src (id NUMBER, name STRING)")
	env.mustExec(t, "INSERT INTO src VALUES (1, 'a'), (2, 'b'), (3, 'c')")

	env.mustExec(t, "CREATE TABLE dst AS SELECT * FROM src WHERE id > 1")
	resp := env.mustExec(t, "SELECT COUNT(*) FROM dst")
	if got := firstCell(t, resp); got != "2" {
		t.Errorf("CTAS row count = %q, want 2", got)
	}
}

func TestCloneTable(t *testing.T) {
	env := setupTestExecutor(t)
	env.mustExec(t, "CREATE TABLE orig (id NUMBER)")
	env.mustExec(t, "INSERT INTO orig VALUES (1), (2)")
	env.mustExec(t, "CREATE TABLE copy1 CLONE orig")

	// clone is independent of the source
	env.mustExec(t, "INSERT INTO orig VALUES (3)")
	resp := env.mustExec(t, "SELECT COUNT(*) FROM copy1")
	if got := firstCell(t, resp); got != "2" {
		t.Errorf("clone count = %q, want 2", got)
	}
}

func TestViewsLazyRealization(t *testing.T) {
	env := setupTestExecutor(t)
	env.mustExec(t, "CREATE TABLE base (id NUMBER)")
	env.mustExec(t, "INSERT INTO base VALUES (1), (2), (3)")

	resp := env.mustExec(t, "CREATE VIEW big AS SELECT id FROM base WHERE id > 1")
	if got := firstCell(t, resp); got != "View BIG successfully created." {
		t.Errorf("view status = %q", got)
	}
	resp = env.mustExec(t, "SELECT COUNT(*) FROM big")
	if got := firstCell(t, resp); got != "2" {
		t.Errorf("view count = %q, want 2", got)
	}
	env.mustExec(t, "DROP VIEW big")
	if _, err := env.exec(t, "SELECT * FROM big"); err == nil {
		t.Error("dropped view still queryable")
	}
}

func TestRenameTable(t *testing.T) {
	env := setupTestExecutor(t)
	env.mustExec(t, "CREATE TABLE old_name (x NUMBER)")
	env.mustExec(t, "INSERT INTO old_name VALUES (9)")

	env.mustExec(t, "ALTER TABLE old_name RENAME TO new_name")
	resp := env.mustExec(t, "SELECT x FROM new_name")
	if got := firstCell(t, resp); got != "9" {
		t.Errorf("select after rename = %q, want 9", got)
	}
	if _, err := env.exec(t, "SELECT * FROM old_name"); err == nil {
		t.Error("old name still resolves")
	}
}

func TestTruncate(t *testing.T) {
	env := setupTestExecutor(t)
	env.mustExec(t, "CREATE TABLE t (x NUMBER)")
	env.mustExec(t, "INSERT INTO t VALUES (1), (2)")
	env.mustExec(t, "TRUNCATE TABLE t")

	resp := env.mustExec(t, "SELECT COUNT(*) FROM t")
	if got := firstCell(t, resp); got != "0" {
		t.Errorf("count after truncate = %q, want 0", got)
	}
	// truncate never creates a tombstone
	if _, err := env.exec(t, "UNDROP TABLE t"); apierror.KindOf(err) != apierror.KindNameInUse {
		t.Errorf("undrop after truncate: got %v, want NameInUse for live table", err)
	}
}

func TestUseSwitchesContext(t *testing.T) {
	env := setupTestExecutor(t)
	env.mustExec(t, "CREATE DATABASE otherdb")
	env.mustExec(t, "USE DATABASE otherdb")

	if env.sess.Database() != "OTHERDB" || env.sess.Schema() != "PUBLIC" {
		t.Errorf("context = %s.%s", env.sess.Database(), env.sess.Schema())
	}
	env.mustExec(t, "CREATE SCHEMA staging")
	env.mustExec(t, "USE SCHEMA staging")
	env.mustExec(t, "CREATE TABLE t (x NUMBER)")

	env.mustExec(t, "USE DATABASE SNOWGLOBE")
	resp := env.mustExec(t, "SELECT COUNT(*) FROM otherdb.staging.t")
	if got := firstCell(t, resp); got != "0" {
		t.Errorf("qualified select = %q", got)
	}

	_, err := env.exec(t, "USE DATABASE missing")
	if apierror.KindOf(err) != apierror.KindNotFound {
		t.Errorf("USE missing database: got %v, want NotFound", err)
	}
}

func TestConstantSelects(t *testing.T) {
	env := setupTestExecutor(t)
	resp := env.mustExec(t, "SELECT CURRENT_DATABASE(), CURRENT_SCHEMA()")
	if *resp.Rows[0][0] != "SNOWGLOBE" || *resp.Rows[0][1] != "PUBLIC" {
		t.Errorf("row = %v", resp.Rows[0])
	}
	resp = env.mustExec(t, "SELECT CURRENT_VERSION()")
	if got := firstCell(t, resp); got != "0.1.0" {
		t.Errorf("version = %q", got)
	}
}

func TestSessionVariables(t *testing.T) {
	env := setupTestExecutor(t)
	env.mustExec(t, "SET threshold = 42")
	resp := env.mustExec(t, "SELECT $threshold")
	if got := firstCell(t, resp); got != "42" {
		t.Errorf("$threshold = %q, want 42", got)
	}
	env.mustExec(t, "SET greeting = 'hello'")
	resp = env.mustExec(t, "SELECT $greeting")
	if got := firstCell(t, resp); got != "hello" {
		t.Errorf("$greeting = %q, want hello", got)
	}
	env.mustExec(t, "UNSET threshold")
	if _, err := env.exec(t, "SELECT $threshold"); apierror.KindOf(err) != apierror.KindBadRequest {
		t.Errorf("unset variable: got %v, want BadRequest", err)
	}
}

func TestShowTablesAndDescribe(t *testing.T) {
	env := setupTestExecutor(t)
	env.mustExec(t, "CREATE TABLE a1 (id NUMBER NOT NULL, note STRING)")
	env.mustExec(t, "INSERT INTO a1 VALUES (1, 'x')")

	resp := env.mustExec(t, "SHOW TABLES")
	if len(resp.Rows) != 1 || *resp.Rows[0][0] != "A1" {
		t.Fatalf("SHOW TABLES rows = %v", resp.Rows)
	}
	if *resp.Rows[0][2] != "1" {
		t.Errorf("rows column = %q, want 1", *resp.Rows[0][2])
	}

	resp = env.mustExec(t, "DESCRIBE TABLE a1")
	if len(resp.Rows) != 2 {
		t.Fatalf("DESCRIBE rows = %v", resp.Rows)
	}
	if *resp.Rows[0][0] != "ID" || *resp.Rows[0][1] != "NUMBER" || *resp.Rows[0][2] != "N" {
		t.Errorf("first column = %v", resp.Rows[0])
	}
	if *resp.Rows[1][2] != "Y" {
		t.Errorf("note nullable = %q, want Y", *resp.Rows[1][2])
	}
}

func TestShowDroppedTables(t *testing.T) {
	env := setupTestExecutor(t)
	env.mustExec(t, "CREATE TABLE gone (x NUMBER)")
	env.mustExec(t, "DROP TABLE gone")

	resp := env.mustExec(t, "SHOW DROPPED TABLES")
	if len(resp.Rows) != 1 || *resp.Rows[0][0] != "GONE" {
		t.Fatalf("dropped rows = %v", resp.Rows)
	}
	if *resp.Rows[0][1] != "SNOWGLOBE" || *resp.Rows[0][2] != "PUBLIC" {
		t.Errorf("dropped scope = %v", resp.Rows[0])
	}
}

func TestErrorKinds(t *testing.T) {
	env := setupTestExecutor(t)
	env.mustExec(t, "CREATE TABLE t (x NUMBER)")

	tests := []struct {
		sql  string
		want apierror.Kind
	}{
		{"CREATE TABLE t (x NUMBER)", apierror.KindAlreadyExists},
		{"DROP TABLE missing", apierror.KindNotFound},
		{"UNDROP TABLE never_existed", apierror.KindNotFound},
		{"CREATE STAGE s", apierror.KindTranslation},
		{"SELECT NVL2(a)", apierror.KindTranslation},
		{"SELECT * FROM nowhere", apierror.KindEngine},
		{"", apierror.KindBadRequest},
	}
	for _, tt := range tests {
		_, err := env.exec(t, tt.sql)
		if apierror.KindOf(err) != tt.want {
			t.Errorf("Execute(%q): got %v, want kind %s", tt.sql, err, tt.want)
		}
	}
}

func TestIfVariants(t *testing.T) {
	env := setupTestExecutor(t)
	env.mustExec(t, "CREATE TABLE t (x NUMBER)")

	resp := env.mustExec(t, "CREATE TABLE IF NOT EXISTS t (x NUMBER)")
	if got := firstCell(t, resp); got != "Table T already exists, statement succeeded." {
		t.Errorf("status = %q", got)
	}
	resp = env.mustExec(t, "DROP TABLE IF EXISTS missing")
	if got := firstCell(t, resp); got != "Drop statement executed successfully (MISSING already dropped)." {
		t.Errorf("status = %q", got)
	}
}

func TestCreateOrReplacePushesTombstone(t *testing.T) {
	env := setupTestExecutor(t)
	env.mustExec(t, "CREATE TABLE t (x NUMBER)")
	env.mustExec(t, "INSERT INTO t VALUES (1)")
	env.mustExec(t, "CREATE OR REPLACE TABLE t (y STRING)")

	resp := env.mustExec(t, "SHOW DROPPED TABLES")
	if len(resp.Rows) != 1 {
		t.Fatalf("dropped rows = %v", resp.Rows)
	}
	// dropping the replacement exposes the original for undrop
	env.mustExec(t, "DROP TABLE t")
	env.mustExec(t, "UNDROP TABLE t")
	resp = env.mustExec(t, "SELECT y FROM t")
	if len(resp.Rows) != 0 {
		t.Errorf("restored replacement should be empty, rows = %v", resp.Rows)
	}
}

func TestAbortUnknownQuery(t *testing.T) {
	env := setupTestExecutor(t)
	if env.x.Abort(uuid.NewString()) {
		t.Error("abort of unknown query reported success")
	}
}

func TestDMLTargetParsing(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{"INSERT INTO t VALUES (1)", "t"},
		{"INSERT INTO db.s.t SELECT 1", "t"},
		{"UPDATE t SET x = 1", "t"},
		{"DELETE FROM t WHERE x = 1", "t"},
		{"SELECT * FROM t", ""},
	}
	for _, tt := range tests {
		parts := dmlTarget(tt.sql)
		got := ""
		if len(parts) > 0 {
			got = parts[len(parts)-1]
		}
		if got != tt.want {
			t.Errorf("dmlTarget(%q) = %v, want %q", tt.sql, parts, tt.want)
		}
	}
}

func TestParseColumns(t *testing.T) {
	cols, err := parseColumns("(id NUMBER(10,2) NOT NULL PRIMARY KEY, name STRING DEFAULT 'n/a', ok BOOLEAN)")
	if err != nil {
		t.Fatalf("parseColumns: %v", err)
	}
	if len(cols) != 3 {
		t.Fatalf("got %d columns, want 3", len(cols))
	}
	if cols[0].Name != "ID" || cols[0].Type != "NUMBER(10,2)" || cols[0].Nullable || !cols[0].Primary {
		t.Errorf("id column = %+v", cols[0])
	}
	if cols[1].Default != "'n/a'" {
		t.Errorf("name default = %q", cols[1].Default)
	}
	if !cols[2].Nullable {
		t.Error("ok column should be nullable")
	}
}

func TestConcurrentSessionsSerialized(t *testing.T) {
	env := setupTestExecutor(t)
	env.mustExec(t, "CREATE TABLE c (x NUMBER)")

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := env.x.Execute(context.Background(), env.sess, uuid.NewString(), "INSERT INTO c VALUES (1)")
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Errorf("concurrent insert: %v", err)
		}
	}
	resp := env.mustExec(t, "SELECT COUNT(*) FROM c")
	if got := firstCell(t, resp); got != fmt.Sprint(8) {
		t.Errorf("count = %q, want 8", got)
	}
}

func TestShowRolesAndUsers(t *testing.T) {
	env := setupTestExecutor(t)

	resp := env.mustExec(t, "SHOW ROLES")
	foundCurrent := false
	for _, row := range resp.Rows {
		if *row[0] == "ACCOUNTADMIN" && *row[1] == "Y" {
			foundCurrent = true
		}
	}
	if !foundCurrent {
		t.Errorf("expected ACCOUNTADMIN marked current, rows %v", resp.Rows)
	}

	resp = env.mustExec(t, "SHOW USERS")
	if len(resp.Rows) != 1 || *resp.Rows[0][0] != "tester" {
		t.Errorf("SHOW USERS rows = %v", resp.Rows)
	}
}

func TestShowColumns(t *testing.T) {
	env := setupTestExecutor(t)
	env.mustExec(t, "CREATE TABLE items (id NUMBER NOT NULL, label VARCHAR)")

	resp := env.mustExec(t, "SHOW COLUMNS IN items")
	if len(resp.Rows) != 2 {
		t.Fatalf("rows = %v", resp.Rows)
	}
	if *resp.Rows[0][1] != "ID" || *resp.Rows[0][3] != "N" {
		t.Errorf("id row = %v", resp.Rows[0])
	}
	if *resp.Rows[1][1] != "LABEL" || *resp.Rows[1][3] != "Y" {
		t.Errorf("label row = %v", resp.Rows[1])
	}
}

func TestShowGrantsAndParameters(t *testing.T) {
	env := setupTestExecutor(t)

	resp := env.mustExec(t, "SHOW GRANTS")
	if len(resp.Rows) != 1 || *resp.Rows[0][3] != "ACCOUNTADMIN" {
		t.Errorf("SHOW GRANTS rows = %v", resp.Rows)
	}

	resp = env.mustExec(t, "SHOW PARAMETERS")
	if len(resp.Rows) == 0 {
		t.Error("SHOW PARAMETERS returned no rows")
	}
}

func TestCurrentClient(t *testing.T) {
	env := setupTestExecutor(t)
	resp := env.mustExec(t, "SELECT CURRENT_CLIENT()")
	if got := firstCell(t, resp); got != "Snowglobe 0.1.0" {
		t.Errorf("CURRENT_CLIENT = %q", got)
	}
}

func TestDescribeView(t *testing.T) {
	env := setupTestExecutor(t)
	env.mustExec(t, "CREATE TABLE src (id NUMBER, label VARCHAR)")
	env.mustExec(t, "CREATE VIEW v AS SELECT id, label FROM src")

	resp := env.mustExec(t, "DESCRIBE VIEW v")
	if len(resp.Rows) != 2 {
		t.Fatalf("rows = %v", resp.Rows)
	}
	if *resp.Rows[0][0] != "id" && *resp.Rows[0][0] != "ID" {
		t.Errorf("first column = %q", *resp.Rows[0][0])
	}

	// bare DESCRIBE resolves views as well
	resp = env.mustExec(t, "DESCRIBE v")
	if len(resp.Rows) != 2 {
		t.Fatalf("bare DESCRIBE rows = %v", resp.Rows)
	}

	if _, err := env.exec(t, "DESCRIBE VIEW missing"); apierror.KindOf(err) != apierror.KindNotFound {
		t.Errorf("expected NotFound for missing view, got %v", err)
	}
}

func TestCurrentTimestampShortCircuits(t *testing.T) {
	env := setupTestExecutor(t)
	resp := env.mustExec(t, "SELECT CURRENT_TIMESTAMP()")
	if resp.Columns[0].Name != "CURRENT_TIMESTAMP()" {
		t.Errorf("column = %q", resp.Columns[0].Name)
	}
	got := firstCell(t, resp)
	if _, err := time.Parse("2006-01-02 15:04:05.000", got); err != nil {
		t.Errorf("value %q not in result time format: %v", got, err)
	}
}

func TestDataResponseCarriesExecutedSQL(t *testing.T) {
	env := setupTestExecutor(t)
	resp := env.mustExec(t, "SELECT NVL(NULL, 'x')")
	if !strings.Contains(resp.ExecutedSQL, "COALESCE") {
		t.Errorf("ExecutedSQL = %q, want translated text", resp.ExecutedSQL)
	}
}
