// Package engine wraps the embedded DuckDB database. All statements are
// funneled through a single worker goroutine, so concurrent sessions see
// strict FIFO execution and DuckDB never handles two writes at once.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/sirupsen/logrus"

	"github.com/snowglobe-io/snowglobe/server/apierror"
)

// Column is one column of a result set with both the engine type and the
// Snowflake-side type name.
type Column struct {
	Name     string
	DuckType string
	SFType   string
}

// Result is a fully materialized statement result. Values are
// stringified; nil means SQL NULL.
type Result struct {
	Columns      []Column
	Rows         [][]*string
	RowsAffected int64
	Duration     time.Duration
}

type request struct {
	ctx      context.Context
	sql      string
	wantRows bool
	reply    chan reply
}

type reply struct {
	res *Result
	err error
}

// Engine owns the DuckDB handle and the worker that serializes access.
type Engine struct {
	db       *sql.DB
	log      *logrus.Entry
	deadline time.Duration
	requests chan request
	stopped  chan struct{}
}

// Open opens the DuckDB database at path ("" for in-memory) and starts
// the worker. deadline bounds each statement; zero means no limit.
func Open(path string, deadline time.Duration, log *logrus.Logger) (*Engine, error) {
	if log == nil {
		log = logrus.New()
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb at %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb at %q: %w", path, err)
	}
	// one connection keeps DuckDB happy under the serialized worker
	db.SetMaxOpenConns(1)

	e := &Engine{
		db:       db,
		log:      log.WithField("component", "engine"),
		deadline: deadline,
		requests: make(chan request),
		stopped:  make(chan struct{}),
	}
	go e.worker()
	return e, nil
}

// Close stops the worker and closes the database.
func (e *Engine) Close() error {
	close(e.requests)
	<-e.stopped
	return e.db.Close()
}

func (e *Engine) worker() {
	defer close(e.stopped)
	for req := range e.requests {
		start := time.Now()
		res, err := e.run(req)
		if err == nil {
			res.Duration = time.Since(start)
		}
		req.reply <- reply{res, err}
	}
}

func (e *Engine) run(req request) (*Result, error) {
	ctx := req.ctx
	if e.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.deadline)
		defer cancel()
	}
	if req.wantRows {
		rows, err := e.db.QueryContext(ctx, req.sql)
		if err != nil {
			return nil, e.classify(ctx, err)
		}
		defer rows.Close()
		res, err := materialize(rows)
		if err != nil {
			return nil, e.classify(ctx, err)
		}
		return res, nil
	}
	sr, err := e.db.ExecContext(ctx, req.sql)
	if err != nil {
		return nil, e.classify(ctx, err)
	}
	affected, _ := sr.RowsAffected()
	return &Result{RowsAffected: affected}, nil
}

func (e *Engine) classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apierror.New(apierror.KindTimeout, "statement exceeded the %s execution deadline", e.deadline)
	}
	if errors.Is(err, context.Canceled) {
		return apierror.New(apierror.KindTimeout, "statement was canceled")
	}
	return apierror.Wrap(apierror.KindEngine, err)
}

func (e *Engine) submit(ctx context.Context, sqlText string, wantRows bool) (*Result, error) {
	req := request{ctx: ctx, sql: sqlText, wantRows: wantRows, reply: make(chan reply, 1)}
	select {
	case e.requests <- req:
	case <-ctx.Done():
		return nil, apierror.New(apierror.KindTimeout, "statement was canceled while queued")
	}
	r := <-req.reply
	return r.res, r.err
}

// Query runs a row-returning statement.
func (e *Engine) Query(ctx context.Context, sqlText string) (*Result, error) {
	e.log.WithField("sql", sqlText).Debug("engine query")
	return e.submit(ctx, sqlText, true)
}

// Exec runs a statement for its side effect and returns affected rows.
func (e *Engine) Exec(ctx context.Context, sqlText string) (int64, error) {
	e.log.WithField("sql", sqlText).Debug("engine exec")
	res, err := e.submit(ctx, sqlText, false)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// EnsureSchema creates the engine schema when missing.
func (e *Engine) EnsureSchema(ctx context.Context, schemaName string) error {
	_, err := e.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+QuoteIdent(schemaName))
	return err
}

// DropRelation removes a table or view relation if present.
func (e *Engine) DropRelation(ctx context.Context, schemaName, relation string, isView bool) error {
	kind := "TABLE"
	if isView {
		kind = "VIEW"
	}
	_, err := e.Exec(ctx, fmt.Sprintf("DROP %s IF EXISTS %s", kind, RelationRef(schemaName, relation)))
	return err
}

// RenameRelation renames a table relation within its schema.
func (e *Engine) RenameRelation(ctx context.Context, schemaName, oldRel, newRel string) error {
	_, err := e.Exec(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
		RelationRef(schemaName, oldRel), QuoteIdent(newRel)))
	return err
}

// CountRows returns the current row count of a relation.
func (e *Engine) CountRows(ctx context.Context, schemaName, relation string) (int64, error) {
	res, err := e.Query(ctx, "SELECT COUNT(*) FROM "+RelationRef(schemaName, relation))
	if err != nil {
		return 0, err
	}
	if len(res.Rows) != 1 || len(res.Rows[0]) != 1 || res.Rows[0][0] == nil {
		return 0, apierror.New(apierror.KindInternalInconsistency, "row count query returned no value")
	}
	var n int64
	if _, err := fmt.Sscan(*res.Rows[0][0], &n); err != nil {
		return 0, apierror.New(apierror.KindInternalInconsistency, "row count %q is not a number", *res.Rows[0][0])
	}
	return n, nil
}

// materialize drains rows into the string form the wire protocol needs.
func materialize(rows *sql.Rows) (*Result, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	cols := make([]Column, len(colTypes))
	for i, ct := range colTypes {
		cols[i] = Column{
			Name:     ct.Name(),
			DuckType: ct.DatabaseTypeName(),
			SFType:   SnowflakeType(ct.DatabaseTypeName()),
		}
	}

	var out [][]*string
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]*string, len(cols))
		for i, v := range raw {
			row[i] = stringify(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &Result{Columns: cols, Rows: out}, nil
}

func stringify(v any) *string {
	if v == nil {
		return nil
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	case bool:
		if x {
			s = "TRUE"
		} else {
			s = "FALSE"
		}
	case time.Time:
		s = x.Format("2006-01-02 15:04:05.000")
	case float32, float64:
		s = fmt.Sprintf("%v", x)
	default:
		s = fmt.Sprint(x)
	}
	return &s
}
