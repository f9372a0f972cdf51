package sqltrans

import (
	"strings"
	"testing"

	"github.com/snowglobe-io/snowglobe/server/apierror"
)

func mustTranslate(t *testing.T, sql string) string {
	t.Helper()
	out, err := Translate(sql)
	if err != nil {
		t.Fatalf("Translate(%q): %v", sql, err)
	}
	return out
}

func TestTranslateRewrites(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"nvl", "SELECT NVL(a, b) FROM t", "SELECT COALESCE(a, b) FROM t"},
		{"len", "SELECT LEN(name) FROM t", "SELECT LENGTH(name) FROM t"},
		{"listagg", "SELECT LISTAGG(x, ',') FROM t", "SELECT STRING_AGG(x, ',') FROM t"},
		{"object_construct", "SELECT OBJECT_CONSTRUCT('k', v) FROM t", "SELECT JSON_OBJECT('k', v) FROM t"},
		{"array_construct", "SELECT ARRAY_CONSTRUCT(1, 2)", "SELECT LIST_VALUE(1, 2)"},
		{"regexp_like", "SELECT * FROM t WHERE REGEXP_LIKE(s, 'a.*')", "SELECT * FROM t WHERE REGEXP_MATCHES(s, 'a.*')"},
		{"getdate", "SELECT GETDATE()", "SELECT NOW()"},
		{"iff", "SELECT IFF(x > 1, 'big', 'small')", "SELECT CASE WHEN (x > 1) THEN ('big') ELSE ('small') END"},
		{"nvl2", "SELECT NVL2(a, b, c)", "SELECT CASE WHEN (a) IS NOT NULL THEN (b) ELSE (c) END"},
		{"zeroifnull", "SELECT ZEROIFNULL(x)", "SELECT COALESCE(x, 0)"},
		{"nullifzero", "SELECT NULLIFZERO(x)", "SELECT NULLIF(x, 0)"},
		{"div0", "SELECT DIV0(a, b)", "SELECT CASE WHEN (b) = 0 THEN 0 ELSE (a) / (b) END"},
		{"equal_null", "SELECT EQUAL_NULL(a, b)", "SELECT ((a) IS NOT DISTINCT FROM (b))"},
		{"parse_json", "SELECT PARSE_JSON(doc)", "SELECT ((doc)::JSON)"},
		{"charindex swaps args", "SELECT CHARINDEX('x', s)", "SELECT STRPOS(s, 'x')"},
		{"dateadd", "SELECT DATEADD(day, 5, d)", "SELECT ((d) + INTERVAL (5) DAY)"},
		{"dateadd string unit", "SELECT DATEADD('month', n, d)", "SELECT ((d) + INTERVAL (n) MONTH)"},
		{"datediff", "SELECT DATEDIFF(day, a, b)", "SELECT DATE_DIFF('day', a, b)"},
		{"to_date", "SELECT TO_DATE(s)", "SELECT CAST(s AS DATE)"},
		{"to_timestamp format", "SELECT TO_TIMESTAMP(s, 'YYYY')", "SELECT CAST(STRPTIME(s, 'YYYY') AS TIMESTAMP)"},
		{"monthname", "SELECT MONTHNAME(d)", "SELECT STRFTIME(d, '%B')"},
		{"dayname", "SELECT DAYNAME(d)", "SELECT STRFTIME(d, '%A')"},
		{"identifier literal", "SELECT * FROM IDENTIFIER('orders')", "SELECT * FROM orders"},
		{"square", "SELECT SQUARE(x)", "SELECT POW(x, 2)"},
		{"time_slice", "SELECT TIME_SLICE(ts, 15, 'MINUTE')", "SELECT TIME_BUCKET(INTERVAL (15) MINUTE, ts)"},
		{"boolor_agg", "SELECT BOOLOR_AGG(f)", "SELECT BOOL_OR(f)"},
		{"booland_agg", "SELECT BOOLAND_AGG(f)", "SELECT BOOL_AND(f)"},
		{"decode", "SELECT DECODE(x, 1, 'one', 'other')",
			"SELECT CASE WHEN (x) IS NOT DISTINCT FROM (1) THEN ('one') ELSE ('other') END"},
		{"trailing semicolon", "SELECT 1;", "SELECT 1"},
		{"nested calls", "SELECT NVL(LEN(a), 0)", "SELECT COALESCE(LENGTH(a), 0)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustTranslate(t, tt.in); got != tt.want {
				t.Errorf("Translate(%q)\n got: %s\nwant: %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestTranslateTypeFolds(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"CREATE TABLE t (id NUMBER(10,2), s STRING, v VARIANT)", "CREATE TABLE t (id DECIMAL(10,2), s VARCHAR, v JSON)"},
		{"SELECT x::NUMBER FROM t", "SELECT x::DECIMAL FROM t"},
		{"CREATE TABLE t (ts TIMESTAMP_NTZ, lz TIMESTAMP_LTZ)", "CREATE TABLE t (ts TIMESTAMP, lz TIMESTAMPTZ)"},
		{"CREATE TABLE t (f FLOAT, g FLOAT8)", "CREATE TABLE t (f DOUBLE, g DOUBLE)"},
		// member access is a column reference, not a type
		{"SELECT a.NUMBER FROM t a", "SELECT a.NUMBER FROM t a"},
	}
	for _, tt := range tests {
		if got := mustTranslate(t, tt.in); got != tt.want {
			t.Errorf("Translate(%q)\n got: %s\nwant: %s", tt.in, got, tt.want)
		}
	}
}

func TestTranslateSample(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SELECT * FROM t SAMPLE (10)", "SELECT * FROM t USING SAMPLE 10 PERCENT (bernoulli)"},
		{"SELECT * FROM t SAMPLE (5 ROWS)", "SELECT * FROM t USING SAMPLE 5 ROWS"},
		{"SELECT * FROM t TABLESAMPLE (10)", "SELECT * FROM t USING SAMPLE 10 PERCENT (bernoulli)"},
	}
	for _, tt := range tests {
		if got := mustTranslate(t, tt.in); got != tt.want {
			t.Errorf("Translate(%q)\n got: %s\nwant: %s", tt.in, got, tt.want)
		}
	}
}

func TestTranslateLeavesLiteralsAlone(t *testing.T) {
	tests := []string{
		"SELECT 'NVL(a, b)' FROM t",
		"SELECT \"NVL\" FROM t",
		"SELECT 1 -- NVL(a, b)",
		"SELECT /* IFF(a,b,c) */ 1",
		"SELECT 'it''s a STRING literal'",
	}
	for _, sql := range tests {
		got := mustTranslate(t, sql)
		if got != sql {
			t.Errorf("Translate(%q) rewrote protected text: %s", sql, got)
		}
	}
}

// Translating a translation must be a no-op.
func TestTranslateIdempotent(t *testing.T) {
	inputs := []string{
		"SELECT NVL(a, b), IFF(c, d, e), DECODE(x, 1, 'a', 'b') FROM t",
		"SELECT DATEADD(day, 5, d), DATEDIFF('month', a, b)",
		"CREATE TABLE t (id NUMBER, s STRING, v VARIANT, ts TIMESTAMP_NTZ)",
		"SELECT * FROM t SAMPLE (10)",
		"SELECT CHARINDEX('x', s), TO_DATE(d), MONTHNAME(d)",
		"SELECT PARSE_JSON(doc), ZEROIFNULL(n)",
	}
	for _, sql := range inputs {
		once := mustTranslate(t, sql)
		twice := mustTranslate(t, once)
		if once != twice {
			t.Errorf("not idempotent for %q:\n once: %s\ntwice: %s", sql, once, twice)
		}
	}
}

func TestTranslateErrors(t *testing.T) {
	tests := []string{
		"SELECT NVL2(a, b)",
		"SELECT DATEADD(fortnight, 1, d)",
		"SELECT DIV0(a)",
		"SELECT IFF(a, b",
	}
	for _, sql := range tests {
		_, err := Translate(sql)
		if apierror.KindOf(err) != apierror.KindTranslation {
			t.Errorf("Translate(%q): got %v, want Translation error", sql, err)
		}
	}
}

func TestVerbAndStatementType(t *testing.T) {
	tests := []struct {
		sql      string
		wantVerb string
		wantType int64
	}{
		{"SELECT 1", "SELECT", StmtTypeSelect},
		{"  create table t (x int)", "CREATE", StmtTypeCreate},
		{"DROP TABLE t", "DROP", StmtTypeDrop},
		{"UNDROP TABLE t", "UNDROP", StmtTypeDrop},
		{"INSERT INTO t VALUES (1)", "INSERT", StmtTypeInsert},
		{"UPDATE t SET x = 1", "UPDATE", StmtTypeUpdate},
		{"DELETE FROM t", "DELETE", StmtTypeDelete},
		{"ALTER TABLE t RENAME TO u", "ALTER", StmtTypeAlter},
		{"TRUNCATE TABLE t", "TRUNCATE", StmtTypeTruncate},
		{"USE DATABASE d", "USE", StmtTypeUse},
		{"SHOW TABLES", "SHOW", StmtTypeShow},
		{"DESCRIBE TABLE t", "DESCRIBE", StmtTypeShow},
		{"WITH c AS (SELECT 1) SELECT * FROM c", "SELECT", StmtTypeSelect},
	}
	for _, tt := range tests {
		if got := Verb(tt.sql); got != tt.wantVerb {
			t.Errorf("Verb(%q) = %s, want %s", tt.sql, got, tt.wantVerb)
		}
		if got := StatementType(tt.sql); got != tt.wantType {
			t.Errorf("StatementType(%q) = %d, want %d", tt.sql, got, tt.wantType)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		sql  string
		want Class
	}{
		{"CREATE DATABASE d", ClassCatalog},
		{"DROP TABLE t", ClassCatalog},
		{"UNDROP TABLE t", ClassCatalog},
		{"TRUNCATE TABLE t", ClassCatalog},
		{"ALTER TABLE t RENAME TO u", ClassCatalog},
		{"USE SCHEMA s", ClassSession},
		{"SET v = 1", ClassSession},
		{"SHOW DATABASES", ClassShow},
		{"DESC TABLE t", ClassShow},
		{"SELECT * FROM t", ClassData},
		{"INSERT INTO t VALUES (1)", ClassData},
	}
	for _, tt := range tests {
		if got := Classify(tt.sql); got != tt.want {
			t.Errorf("Classify(%q) = %d, want %d", tt.sql, got, tt.want)
		}
	}
}

func TestConstantSelect(t *testing.T) {
	tests := []struct {
		sql  string
		want []string
	}{
		{"SELECT CURRENT_DATABASE()", []string{"CURRENT_DATABASE"}},
		{"select current_database(), current_schema()", []string{"CURRENT_DATABASE", "CURRENT_SCHEMA"}},
		{"SELECT CURRENT_VERSION", []string{"CURRENT_VERSION"}},
		{"SELECT CURRENT_TIMESTAMP()", []string{"CURRENT_TIMESTAMP"}},
		{"SELECT CURRENT_TIMESTAMP", []string{"CURRENT_TIMESTAMP"}},
		{"SELECT CURRENT_TIMESTAMP FROM t", nil},
		{"SELECT CURRENT_DATABASE(), 1", nil},
		{"SELECT * FROM t", nil},
	}
	for _, tt := range tests {
		got := ConstantSelect(tt.sql)
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("ConstantSelect(%q) = %v, want %v", tt.sql, got, tt.want)
		}
	}
}

func TestSessionVarSelect(t *testing.T) {
	if got := SessionVarSelect("SELECT $max_rows"); len(got) != 1 || got[0] != "MAX_ROWS" {
		t.Errorf("SessionVarSelect = %v, want [MAX_ROWS]", got)
	}
	if got := SessionVarSelect("SELECT $a, $b"); len(got) != 2 {
		t.Errorf("SessionVarSelect two vars = %v", got)
	}
	if got := SessionVarSelect("SELECT x"); got != nil {
		t.Errorf("SessionVarSelect non-var = %v, want nil", got)
	}
}

func TestLexRoundTrip(t *testing.T) {
	inputs := []string{
		"SELECT a || b, x::INT FROM \"My Table\" WHERE s = 'it''s' -- tail",
		"/* head */ SELECT 1.5e-3, .25, 42",
	}
	for _, sql := range inputs {
		if got := Render(Lex(sql)); got != sql {
			t.Errorf("Lex/Render round trip changed %q into %q", sql, got)
		}
	}
}
