// Package executor turns statements arriving on the wire into catalog
// operations, session changes, or translated engine SQL, and shapes the
// results for the protocol layer.
package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/snowglobe-io/snowglobe/pkg/catalog"
	"github.com/snowglobe-io/snowglobe/pkg/engine"
	"github.com/snowglobe-io/snowglobe/pkg/session"
	"github.com/snowglobe-io/snowglobe/pkg/sqltrans"
	"github.com/snowglobe-io/snowglobe/server/apierror"
)

const timeFormat = "2006-01-02 15:04:05.000"

// Response is a fully shaped statement result. ExecutedSQL is the text
// that actually ran on the engine (post-translation); empty for
// statements the executor answers without the engine.
type Response struct {
	Columns         []engine.Column
	Rows            [][]*string
	StatementTypeID int64
	ExecutedSQL     string
}

// Executor coordinates the catalog, the engine and session state.
type Executor struct {
	cat       *catalog.Store
	eng       *engine.Engine
	log       *logrus.Entry
	version   string
	warehouse string

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// New wires an executor. version feeds CURRENT_VERSION; warehouse is the
// name SHOW WAREHOUSES reports.
func New(cat *catalog.Store, eng *engine.Engine, log *logrus.Logger, version, warehouse string) *Executor {
	if log == nil {
		log = logrus.New()
	}
	return &Executor{
		cat:       cat,
		eng:       eng,
		log:       log.WithField("component", "executor"),
		version:   version,
		warehouse: warehouse,
		running:   map[string]context.CancelFunc{},
	}
}

// Abort cancels a running statement by query id. It reports whether the
// query was found.
func (x *Executor) Abort(queryID string) bool {
	x.mu.Lock()
	cancel, ok := x.running[queryID]
	x.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (x *Executor) track(queryID string, cancel context.CancelFunc) {
	x.mu.Lock()
	x.running[queryID] = cancel
	x.mu.Unlock()
}

func (x *Executor) untrack(queryID string) {
	x.mu.Lock()
	delete(x.running, queryID)
	x.mu.Unlock()
}

// Execute runs one statement on behalf of a session.
func (x *Executor) Execute(ctx context.Context, sess *session.Session, queryID, sqlText string) (*Response, error) {
	sqlText = strings.TrimSpace(sqlText)
	if sqlText == "" {
		return nil, apierror.New(apierror.KindBadRequest, "empty statement")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	x.track(queryID, cancel)
	defer x.untrack(queryID)

	stmtType := sqltrans.StatementType(sqlText)

	if funcs := sqltrans.ConstantSelect(sqlText); funcs != nil {
		return x.constantSelect(sess, funcs), nil
	}
	if vars := sqltrans.SessionVarSelect(sqlText); vars != nil {
		return x.variableSelect(sess, vars)
	}

	d, err := parseDirective(sqlText)
	if err != nil {
		return nil, err
	}
	if d != nil {
		return x.runDirective(ctx, sess, d, stmtType)
	}
	return x.runData(ctx, sess, sqlText, stmtType)
}

// ---- context functions and variables ----

func (x *Executor) constantSelect(sess *session.Session, funcs []string) *Response {
	resp := &Response{StatementTypeID: sqltrans.StmtTypeSelect}
	row := make([]*string, 0, len(funcs))
	for _, fn := range funcs {
		var v string
		switch fn {
		case "CURRENT_DATABASE":
			v = sess.Database()
		case "CURRENT_SCHEMA":
			v = sess.Schema()
		case "CURRENT_WAREHOUSE":
			v = sess.Warehouse()
		case "CURRENT_ROLE":
			v = sess.Role()
		case "CURRENT_USER":
			v = sess.User
		case "CURRENT_SESSION":
			v = sess.ID
		case "CURRENT_VERSION":
			v = x.version
		case "CURRENT_ACCOUNT":
			v = sess.Account
		case "CURRENT_REGION":
			v = "LOCAL"
		case "CURRENT_CLIENT":
			v = "Snowglobe " + x.version
		case "CURRENT_TIMESTAMP":
			v = time.Now().UTC().Format(timeFormat)
		}
		resp.Columns = append(resp.Columns, textCol(fn+"()"))
		val := v
		row = append(row, &val)
	}
	resp.Rows = [][]*string{row}
	return resp
}

func (x *Executor) variableSelect(sess *session.Session, names []string) (*Response, error) {
	resp := &Response{StatementTypeID: sqltrans.StmtTypeSelect}
	row := make([]*string, 0, len(names))
	for _, name := range names {
		v, ok := sess.Var(name)
		if !ok {
			return nil, apierror.New(apierror.KindBadRequest, "session variable '$%s' does not exist", name)
		}
		resp.Columns = append(resp.Columns, textCol("$"+name))
		val := v
		row = append(row, &val)
	}
	resp.Rows = [][]*string{row}
	return resp, nil
}

// ---- directives ----

func (x *Executor) runDirective(ctx context.Context, sess *session.Session, d *directive, stmtType int64) (*Response, error) {
	switch d.verb {
	case "CREATE":
		return x.runCreate(ctx, sess, d, stmtType)
	case "DROP":
		return x.runDrop(ctx, sess, d, stmtType)
	case "UNDROP":
		return x.runUndrop(sess, d, stmtType)
	case "TRUNCATE":
		return x.runTruncate(ctx, sess, d, stmtType)
	case "RENAME":
		return x.runRename(ctx, sess, d, stmtType)
	case "USE":
		return x.runUse(sess, d, stmtType)
	case "SET":
		sess.SetVar(d.varName, unquoteLiteral(d.tailSQL))
		return statusResponse("Statement executed successfully.", stmtType), nil
	case "UNSET":
		sess.UnsetVar(d.varName)
		return statusResponse("Statement executed successfully.", stmtType), nil
	case "SHOW":
		return x.runShow(sess, d, stmtType)
	case "DESCRIBE":
		return x.runDescribe(ctx, sess, d, stmtType)
	}
	return nil, apierror.New(apierror.KindTranslation, "unsupported statement %s", d.verb)
}

func (x *Executor) runCreate(ctx context.Context, sess *session.Session, d *directive, stmtType int64) (*Response, error) {
	opts := catalog.CreateOptions{IfNotExists: d.ifNotExists, OrReplace: d.orReplace, Transient: d.transient}
	switch d.objKind {
	case "DATABASE":
		name := d.name[len(d.name)-1]
		key := catalog.Normalize(name)
		if x.cat.HasDatabase(name) && d.ifNotExists {
			return statusResponse(fmt.Sprintf("Database %s already exists, statement succeeded.", key), stmtType), nil
		}
		if err := x.cat.CreateDatabase(name, opts); err != nil {
			return nil, err
		}
		return statusResponse(fmt.Sprintf("Database %s successfully created.", key), stmtType), nil

	case "SCHEMA":
		db, key := x.schemaTarget(sess, d.name)
		if x.cat.HasSchema(catalog.Requote(db), catalog.Requote(key)) && d.ifNotExists {
			return statusResponse(fmt.Sprintf("Schema %s already exists, statement succeeded.", key), stmtType), nil
		}
		if err := x.cat.CreateSchema(catalog.Requote(db), catalog.Requote(key), opts); err != nil {
			return nil, err
		}
		return statusResponse(fmt.Sprintf("Schema %s successfully created.", key), stmtType), nil

	case "TABLE":
		return x.runCreateTable(ctx, sess, d, stmtType, opts)

	case "VIEW":
		return x.runCreateView(sess, d, stmtType, opts)
	}
	return nil, apierror.New(apierror.KindTranslation, "unsupported CREATE object %s", d.objKind)
}

func (x *Executor) runCreateTable(ctx context.Context, sess *session.Session, d *directive, stmtType int64, opts catalog.CreateOptions) (*Response, error) {
	db, sc, name := x.resolve(sess, d.name)
	qd, qs, qn := catalog.Requote(db), catalog.Requote(sc), catalog.Requote(name)
	if !x.cat.HasSchema(qd, qs) {
		return nil, apierror.New(apierror.KindNotFound, "schema %s.%s does not exist", db, sc)
	}
	if x.cat.HasTable(qd, qs, qn) {
		if d.ifNotExists {
			return statusResponse(fmt.Sprintf("Table %s already exists, statement succeeded.", name), stmtType), nil
		}
		if !d.orReplace {
			return nil, apierror.New(apierror.KindAlreadyExists, "table %s already exists", catalog.FQN(db, sc, name))
		}
	}
	if len(d.cloneFrom) > 0 {
		return x.runClone(ctx, sess, d, stmtType, opts, db, sc, name)
	}

	schemaName := engine.SchemaName(db, sc)
	if err := x.eng.EnsureSchema(ctx, schemaName); err != nil {
		return nil, err
	}
	rel := catalog.NewRelation(name)
	ref := engine.RelationRef(schemaName, rel)

	var cols []catalog.Column
	switch {
	case d.columnsSQL != "":
		parsed, err := parseColumns(d.columnsSQL)
		if err != nil {
			return nil, err
		}
		cols = parsed
		body, err := sqltrans.Translate(d.columnsSQL)
		if err != nil {
			return nil, err
		}
		if _, err := x.eng.Exec(ctx, "CREATE TABLE "+ref+" "+body); err != nil {
			return nil, err
		}
		if d.tailSQL != "" {
			if err := x.insertQuery(ctx, sess, ref, d.tailSQL); err != nil {
				return nil, x.rollbackRelation(ctx, schemaName, rel, err)
			}
		}
	case d.tailSQL != "":
		sel, views, err := x.prepareData(sess, d.tailSQL)
		if err != nil {
			return nil, err
		}
		if err := x.realizeViews(ctx, views); err != nil {
			return nil, err
		}
		if _, err := x.eng.Exec(ctx, "CREATE TABLE "+ref+" AS SELECT * FROM ("+sel+") WHERE 1=0"); err != nil {
			return nil, err
		}
		if _, err := x.eng.Exec(ctx, "INSERT INTO "+ref+" "+sel); err != nil {
			return nil, x.rollbackRelation(ctx, schemaName, rel, err)
		}
		introspected, err := x.introspectColumns(ctx, ref)
		if err != nil {
			return nil, x.rollbackRelation(ctx, schemaName, rel, err)
		}
		cols = introspected
	}

	rows, err := x.eng.CountRows(ctx, schemaName, rel)
	if err != nil {
		return nil, x.rollbackRelation(ctx, schemaName, rel, err)
	}
	tbl := &catalog.Table{Name: qn, Columns: cols, Relation: rel, RowCount: rows}
	if err := x.cat.AddTable(qd, qs, tbl, opts); err != nil {
		return nil, x.rollbackRelation(ctx, schemaName, rel, err)
	}
	return statusResponse(fmt.Sprintf("Table %s successfully created.", name), stmtType), nil
}

// insertQuery runs INSERT INTO ref <translated query>.
func (x *Executor) insertQuery(ctx context.Context, sess *session.Session, ref, query string) error {
	sel, views, err := x.prepareData(sess, query)
	if err != nil {
		return err
	}
	if err := x.realizeViews(ctx, views); err != nil {
		return err
	}
	_, err = x.eng.Exec(ctx, "INSERT INTO "+ref+" "+sel)
	return err
}

// rollbackRelation drops a half-created relation. A failed rollback
// leaves the engine and catalog out of step, which is its own error.
func (x *Executor) rollbackRelation(ctx context.Context, schemaName, rel string, cause error) error {
	if err := x.eng.DropRelation(ctx, schemaName, rel, false); err != nil {
		x.log.WithError(err).WithField("relation", rel).Error("rollback failed, relation orphaned")
		return apierror.New(apierror.KindInternalInconsistency,
			"statement failed (%v) and rollback of relation %s also failed (%v)", cause, rel, err)
	}
	return cause
}

func (x *Executor) runClone(ctx context.Context, sess *session.Session, d *directive, stmtType int64, opts catalog.CreateOptions, db, sc, name string) (*Response, error) {
	sdb, ssc, sname := x.resolve(sess, d.cloneFrom)
	src, err := x.cat.Table(catalog.Requote(sdb), catalog.Requote(ssc), catalog.Requote(sname))
	if err != nil {
		return nil, err
	}
	srcRef := engine.RelationRef(engine.SchemaName(sdb, ssc), src.Relation)

	schemaName := engine.SchemaName(db, sc)
	if err := x.eng.EnsureSchema(ctx, schemaName); err != nil {
		return nil, err
	}
	rel := catalog.NewRelation(name)
	ref := engine.RelationRef(schemaName, rel)
	if _, err := x.eng.Exec(ctx, "CREATE TABLE "+ref+" AS SELECT * FROM "+srcRef+" LIMIT 0"); err != nil {
		return nil, err
	}
	if _, err := x.eng.Exec(ctx, "INSERT INTO "+ref+" SELECT * FROM "+srcRef); err != nil {
		return nil, x.rollbackRelation(ctx, schemaName, rel, err)
	}

	cols := make([]catalog.Column, len(src.Columns))
	copy(cols, src.Columns)
	tbl := &catalog.Table{Name: catalog.Requote(name), Columns: cols, Relation: rel, RowCount: src.RowCount}
	if err := x.cat.AddTable(catalog.Requote(db), catalog.Requote(sc), tbl, opts); err != nil {
		return nil, x.rollbackRelation(ctx, schemaName, rel, err)
	}
	return statusResponse(fmt.Sprintf("Table %s successfully created.", name), stmtType), nil
}

func (x *Executor) runCreateView(sess *session.Session, d *directive, stmtType int64, opts catalog.CreateOptions) (*Response, error) {
	db, sc, name := x.resolve(sess, d.name)
	qd, qs := catalog.Requote(db), catalog.Requote(sc)
	if !x.cat.HasSchema(qd, qs) {
		return nil, apierror.New(apierror.KindNotFound, "schema %s.%s does not exist", db, sc)
	}
	// the definition is stored translated and qualified; realization in
	// the engine is deferred until the view is first referenced
	def, _, err := x.prepareData(sess, d.tailSQL)
	if err != nil {
		return nil, err
	}
	v := &catalog.View{Name: catalog.Requote(name), Definition: def, Relation: catalog.NewRelation(name)}
	if err := x.cat.AddView(qd, qs, v, opts); err != nil {
		return nil, err
	}
	return statusResponse(fmt.Sprintf("View %s successfully created.", name), stmtType), nil
}

func (x *Executor) runDrop(ctx context.Context, sess *session.Session, d *directive, stmtType int64) (*Response, error) {
	opts := catalog.DropOptions{IfExists: d.ifExists, Cascade: d.cascade}
	switch d.objKind {
	case "DATABASE":
		name := d.name[len(d.name)-1]
		key := catalog.Normalize(name)
		if !x.cat.HasDatabase(name) && d.ifExists {
			return statusResponse(fmt.Sprintf("Drop statement executed successfully (%s already dropped).", key), stmtType), nil
		}
		if err := x.cat.DropDatabase(name, opts); err != nil {
			return nil, err
		}
		return statusResponse(fmt.Sprintf("%s successfully dropped.", key), stmtType), nil

	case "SCHEMA":
		db, key := x.schemaTarget(sess, d.name)
		if !x.cat.HasSchema(catalog.Requote(db), catalog.Requote(key)) && d.ifExists {
			return statusResponse(fmt.Sprintf("Drop statement executed successfully (%s already dropped).", key), stmtType), nil
		}
		if err := x.cat.DropSchema(catalog.Requote(db), catalog.Requote(key), opts); err != nil {
			return nil, err
		}
		return statusResponse(fmt.Sprintf("%s successfully dropped.", key), stmtType), nil

	case "TABLE":
		db, sc, name := x.resolve(sess, d.name)
		qd, qs, qn := catalog.Requote(db), catalog.Requote(sc), catalog.Requote(name)
		if !x.cat.HasTable(qd, qs, qn) && d.ifExists {
			return statusResponse(fmt.Sprintf("Drop statement executed successfully (%s already dropped).", name), stmtType), nil
		}
		// the engine relation stays behind so UNDROP can restore the rows
		if err := x.cat.DropTable(qd, qs, qn, opts); err != nil {
			return nil, err
		}
		return statusResponse(fmt.Sprintf("%s successfully dropped.", name), stmtType), nil

	case "VIEW":
		db, sc, name := x.resolve(sess, d.name)
		qd, qs, qn := catalog.Requote(db), catalog.Requote(sc), catalog.Requote(name)
		v, err := x.cat.View(qd, qs, qn)
		if err != nil {
			if d.ifExists && apierror.KindOf(err) == apierror.KindNotFound {
				return statusResponse(fmt.Sprintf("Drop statement executed successfully (%s already dropped).", name), stmtType), nil
			}
			return nil, err
		}
		if err := x.cat.DropView(qd, qs, qn, opts); err != nil {
			return nil, err
		}
		if v.Realized {
			if err := x.eng.DropRelation(ctx, engine.SchemaName(db, sc), v.Relation, true); err != nil {
				x.log.WithError(err).Warn("dropping realized view relation failed")
			}
		}
		return statusResponse(fmt.Sprintf("%s successfully dropped.", name), stmtType), nil
	}
	return nil, apierror.New(apierror.KindTranslation, "unsupported DROP object %s", d.objKind)
}

func (x *Executor) runUndrop(sess *session.Session, d *directive, stmtType int64) (*Response, error) {
	switch d.objKind {
	case "DATABASE":
		name := d.name[len(d.name)-1]
		if err := x.cat.UndropDatabase(name); err != nil {
			return nil, err
		}
		return statusResponse(fmt.Sprintf("Database %s successfully restored.", catalog.Normalize(name)), stmtType), nil
	case "SCHEMA":
		db, key := x.schemaTarget(sess, d.name)
		if err := x.cat.UndropSchema(catalog.Requote(db), catalog.Requote(key)); err != nil {
			return nil, err
		}
		return statusResponse(fmt.Sprintf("Schema %s successfully restored.", key), stmtType), nil
	case "TABLE":
		db, sc, name := x.resolve(sess, d.name)
		if _, err := x.cat.UndropTable(catalog.Requote(db), catalog.Requote(sc), catalog.Requote(name)); err != nil {
			return nil, err
		}
		return statusResponse(fmt.Sprintf("Table %s successfully restored.", name), stmtType), nil
	case "VIEW":
		db, sc, name := x.resolve(sess, d.name)
		if _, err := x.cat.UndropView(catalog.Requote(db), catalog.Requote(sc), catalog.Requote(name)); err != nil {
			return nil, err
		}
		return statusResponse(fmt.Sprintf("View %s successfully restored.", name), stmtType), nil
	}
	return nil, apierror.New(apierror.KindTranslation, "unsupported UNDROP object %s", d.objKind)
}

func (x *Executor) runTruncate(ctx context.Context, sess *session.Session, d *directive, stmtType int64) (*Response, error) {
	db, sc, name := x.resolve(sess, d.name)
	tbl, err := x.cat.Table(catalog.Requote(db), catalog.Requote(sc), catalog.Requote(name))
	if err != nil {
		if d.ifExists && apierror.KindOf(err) == apierror.KindNotFound {
			return statusResponse("Statement executed successfully.", stmtType), nil
		}
		return nil, err
	}
	schemaName := engine.SchemaName(db, sc)
	if _, err := x.eng.Exec(ctx, "DELETE FROM "+engine.RelationRef(schemaName, tbl.Relation)); err != nil {
		return nil, err
	}
	x.cat.SetRowCount(catalog.Requote(db), catalog.Requote(sc), catalog.Requote(name), 0)
	return statusResponse("Statement executed successfully.", stmtType), nil
}

func (x *Executor) runRename(ctx context.Context, sess *session.Session, d *directive, stmtType int64) (*Response, error) {
	db, sc, name := x.resolve(sess, d.name)
	qd, qs := catalog.Requote(db), catalog.Requote(sc)
	tbl, err := x.cat.Table(qd, qs, catalog.Requote(name))
	if err != nil {
		return nil, err
	}
	newKey := catalog.Normalize(d.newName)
	schemaName := engine.SchemaName(db, sc)
	oldRel := tbl.Relation
	newRel := catalog.NewRelation(newKey)
	if err := x.eng.RenameRelation(ctx, schemaName, oldRel, newRel); err != nil {
		return nil, err
	}
	if err := x.cat.RenameTable(qd, qs, catalog.Requote(name), catalog.Requote(newKey), newRel); err != nil {
		if rbErr := x.eng.RenameRelation(ctx, schemaName, newRel, oldRel); rbErr != nil {
			return nil, apierror.New(apierror.KindInternalInconsistency,
				"rename failed (%v) and engine rollback also failed (%v)", err, rbErr)
		}
		return nil, err
	}
	return statusResponse("Statement executed successfully.", stmtType), nil
}

func (x *Executor) runUse(sess *session.Session, d *directive, stmtType int64) (*Response, error) {
	switch d.objKind {
	case "DATABASE":
		name := d.name[len(d.name)-1]
		if !x.cat.HasDatabase(name) {
			return nil, apierror.New(apierror.KindNotFound, "database %s does not exist", catalog.Normalize(name))
		}
		sess.UseDatabase(catalog.Normalize(name))
	case "SCHEMA":
		db := sess.Database()
		if len(d.name) == 2 {
			db = catalog.Normalize(d.name[0])
		}
		key := catalog.Normalize(d.name[len(d.name)-1])
		if !x.cat.HasSchema(catalog.Requote(db), catalog.Requote(key)) {
			return nil, apierror.New(apierror.KindNotFound, "schema %s.%s does not exist", db, key)
		}
		if len(d.name) == 2 {
			sess.UseDatabase(db)
		}
		sess.UseSchema(key)
	case "WAREHOUSE":
		sess.UseWarehouse(catalog.Normalize(d.name[len(d.name)-1]))
	case "ROLE":
		sess.UseRole(catalog.Normalize(d.name[len(d.name)-1]))
	}
	return statusResponse("Statement executed successfully.", stmtType), nil
}

// ---- SHOW and DESCRIBE ----

func (x *Executor) runShow(sess *session.Session, d *directive, stmtType int64) (*Response, error) {
	switch d.objKind {
	case "DATABASES":
		if d.dropped {
			return droppedResponse(x.cat.ListDropped(catalog.KindDatabase, "", ""), stmtType), nil
		}
		resp := &Response{StatementTypeID: stmtType, Columns: []engine.Column{textCol("name"), textCol("created_on")}}
		for _, db := range x.cat.ListDatabases() {
			resp.Rows = append(resp.Rows, strRow(db.Name, db.CreatedAt.Format(timeFormat)))
		}
		return resp, nil

	case "SCHEMAS":
		db := sess.Database()
		if len(d.inScope) > 0 {
			db = catalog.Normalize(d.inScope[len(d.inScope)-1])
		}
		if d.dropped {
			return droppedResponse(x.cat.ListDropped(catalog.KindSchema, db, ""), stmtType), nil
		}
		schemas, err := x.cat.ListSchemas(catalog.Requote(db))
		if err != nil {
			return nil, err
		}
		resp := &Response{StatementTypeID: stmtType, Columns: []engine.Column{textCol("name"), textCol("database"), textCol("created_on")}}
		for _, sc := range schemas {
			resp.Rows = append(resp.Rows, strRow(sc.Name, sc.Database, sc.CreatedAt.Format(timeFormat)))
		}
		return resp, nil

	case "TABLES", "VIEWS":
		scopes, err := x.showScopes(sess, d)
		if err != nil {
			return nil, err
		}
		if d.dropped {
			kind := catalog.KindTable
			if d.objKind == "VIEWS" {
				kind = catalog.KindView
			}
			var all []catalog.DroppedInfo
			for _, s := range scopes {
				all = append(all, x.cat.ListDropped(kind, s[0], s[1])...)
			}
			return droppedResponse(all, stmtType), nil
		}
		if d.objKind == "VIEWS" {
			resp := &Response{StatementTypeID: stmtType, Columns: []engine.Column{textCol("name"), textCol("database"), textCol("schema"), textCol("created_on")}}
			for _, s := range scopes {
				views, err := x.cat.ListViews(catalog.Requote(s[0]), catalog.Requote(s[1]))
				if err != nil {
					return nil, err
				}
				for _, v := range views {
					resp.Rows = append(resp.Rows, strRow(v.Name, v.Database, v.Schema, v.CreatedAt.Format(timeFormat)))
				}
			}
			return resp, nil
		}
		resp := &Response{StatementTypeID: stmtType, Columns: []engine.Column{textCol("name"), textCol("created_on"), fixedCol("rows")}}
		for _, s := range scopes {
			tables, err := x.cat.ListTables(catalog.Requote(s[0]), catalog.Requote(s[1]))
			if err != nil {
				return nil, err
			}
			for _, tbl := range tables {
				resp.Rows = append(resp.Rows, strRow(tbl.Name, tbl.CreatedAt.Format(timeFormat), fmt.Sprint(tbl.Rows)))
			}
		}
		return resp, nil

	case "WAREHOUSES":
		resp := &Response{StatementTypeID: stmtType, Columns: []engine.Column{textCol("name"), textCol("state"), textCol("size")}}
		resp.Rows = append(resp.Rows, strRow(x.warehouse, "STARTED", "X-Small"))
		return resp, nil

	case "VARIABLES":
		resp := &Response{StatementTypeID: stmtType, Columns: []engine.Column{textCol("name"), textCol("value")}}
		// session variables come back through SELECT $name; listing them
		// all would need a session-side snapshot accessor
		return resp, nil

	case "ROLES":
		resp := &Response{StatementTypeID: stmtType, Columns: []engine.Column{textCol("name"), textCol("is_current")}}
		for _, role := range []string{"ACCOUNTADMIN", "SYSADMIN", "PUBLIC"} {
			cur := "N"
			if role == sess.Role() {
				cur = "Y"
			}
			resp.Rows = append(resp.Rows, strRow(role, cur))
		}
		return resp, nil

	case "USERS":
		resp := &Response{StatementTypeID: stmtType, Columns: []engine.Column{textCol("name"), textCol("login_name")}}
		resp.Rows = append(resp.Rows, strRow(sess.User, sess.User))
		return resp, nil

	case "GRANTS":
		resp := &Response{StatementTypeID: stmtType, Columns: []engine.Column{
			textCol("privilege"), textCol("granted_on"), textCol("granted_to"), textCol("grantee_name"),
		}}
		resp.Rows = append(resp.Rows, strRow("OWNERSHIP", "ACCOUNT", "ROLE", sess.Role()))
		return resp, nil

	case "PARAMETERS":
		resp := &Response{StatementTypeID: stmtType, Columns: []engine.Column{textCol("key"), textCol("value"), textCol("level")}}
		resp.Rows = append(resp.Rows,
			strRow("AUTOCOMMIT", "true", "SESSION"),
			strRow("TIMEZONE", "UTC", "SESSION"),
			strRow("QUERY_RESULT_FORMAT", "json", "SESSION"),
		)
		return resp, nil

	case "COLUMNS":
		if len(d.inScope) == 0 {
			return nil, apierror.New(apierror.KindBadRequest, "SHOW COLUMNS requires IN <table>")
		}
		db, sc, name := x.resolve(sess, d.inScope)
		cols, err := x.cat.Describe(catalog.Requote(db), catalog.Requote(sc), catalog.Requote(name))
		if err != nil {
			return nil, err
		}
		resp := &Response{StatementTypeID: stmtType, Columns: []engine.Column{
			textCol("table_name"), textCol("column_name"), textCol("data_type"), textCol("null?"),
		}}
		for _, col := range cols {
			nullable := "Y"
			if !col.Nullable {
				nullable = "N"
			}
			resp.Rows = append(resp.Rows, strRow(name, col.Name, col.Type, nullable))
		}
		return resp, nil
	}
	return nil, apierror.New(apierror.KindTranslation, "unsupported SHOW subject %s", d.objKind)
}

// showScopes expands the optional IN clause into (database, schema)
// pairs. IN DATABASE covers every schema of that database.
func (x *Executor) showScopes(sess *session.Session, d *directive) ([][2]string, error) {
	if len(d.inScope) == 0 {
		return [][2]string{{sess.Database(), sess.Schema()}}, nil
	}
	if d.scopeKind == "DATABASE" || (d.scopeKind == "" && len(d.inScope) == 1 && x.cat.HasDatabase(d.inScope[0])) {
		db := catalog.Normalize(d.inScope[len(d.inScope)-1])
		schemas, err := x.cat.ListSchemas(catalog.Requote(db))
		if err != nil {
			return nil, err
		}
		out := make([][2]string, 0, len(schemas))
		for _, sc := range schemas {
			out = append(out, [2]string{db, sc.Name})
		}
		return out, nil
	}
	db := sess.Database()
	sc := catalog.Normalize(d.inScope[len(d.inScope)-1])
	if len(d.inScope) >= 2 {
		db = catalog.Normalize(d.inScope[len(d.inScope)-2])
	}
	return [][2]string{{db, sc}}, nil
}

func droppedResponse(infos []catalog.DroppedInfo, stmtType int64) *Response {
	resp := &Response{
		StatementTypeID: stmtType,
		Columns:         []engine.Column{textCol("name"), textCol("database"), textCol("schema"), textCol("dropped_on")},
	}
	for _, d := range infos {
		resp.Rows = append(resp.Rows, strRow(d.Name, d.Database, d.Schema, d.DroppedAt.Format(timeFormat)))
	}
	return resp
}

func (x *Executor) runDescribe(ctx context.Context, sess *session.Session, d *directive, stmtType int64) (*Response, error) {
	db, sc, name := x.resolve(sess, d.name)
	var cols []catalog.Column
	var err error
	if d.objKind == "VIEW" {
		cols, err = x.describeView(ctx, db, sc, name)
	} else {
		cols, err = x.cat.Describe(catalog.Requote(db), catalog.Requote(sc), catalog.Requote(name))
		if apierror.KindOf(err) == apierror.KindNotFound {
			// bare DESCRIBE works on views too
			if vcols, verr := x.describeView(ctx, db, sc, name); verr == nil {
				cols, err = vcols, nil
			}
		}
	}
	if err != nil {
		return nil, err
	}
	resp := &Response{StatementTypeID: stmtType, Columns: []engine.Column{textCol("name"), textCol("type"), textCol("nullable")}}
	for _, c := range cols {
		nullable := "Y"
		if !c.Nullable {
			nullable = "N"
		}
		resp.Rows = append(resp.Rows, strRow(c.Name, c.Type, nullable))
	}
	return resp, nil
}

// describeView realizes the view if needed and reads its shape back out
// of the engine; views carry no declared column list in the catalog.
func (x *Executor) describeView(ctx context.Context, db, sc, name string) ([]catalog.Column, error) {
	v, err := x.cat.View(catalog.Requote(db), catalog.Requote(sc), catalog.Requote(name))
	if err != nil {
		return nil, err
	}
	if err := x.realizeViews(ctx, []viewRef{{db: db, schema: sc, view: v}}); err != nil {
		return nil, err
	}
	return x.introspectColumns(ctx, engine.RelationRef(engine.SchemaName(db, sc), v.Relation))
}

// ---- data statements ----

// prepareData translates and qualifies a data statement against the
// session context.
func (x *Executor) prepareData(sess *session.Session, sqlText string) (string, []viewRef, error) {
	translated, err := sqltrans.Translate(sqlText)
	if err != nil {
		return "", nil, err
	}
	db, sc := sess.Context()
	qualified, views := x.qualify(translated, db, sc)
	return qualified, views, nil
}

func (x *Executor) realizeViews(ctx context.Context, views []viewRef) error {
	for _, vr := range views {
		if vr.view.Realized {
			continue
		}
		schemaName := engine.SchemaName(vr.db, vr.schema)
		if err := x.eng.EnsureSchema(ctx, schemaName); err != nil {
			return err
		}
		ref := engine.RelationRef(schemaName, vr.view.Relation)
		if _, err := x.eng.Exec(ctx, "CREATE VIEW IF NOT EXISTS "+ref+" AS "+vr.view.Definition); err != nil {
			return err
		}
		x.cat.MarkViewRealized(catalog.Requote(vr.db), catalog.Requote(vr.schema), catalog.Requote(vr.view.Name))
	}
	return nil
}

func (x *Executor) runData(ctx context.Context, sess *session.Session, sqlText string, stmtType int64) (*Response, error) {
	prepared, views, err := x.prepareData(sess, sqlText)
	if err != nil {
		return nil, err
	}
	if err := x.realizeViews(ctx, views); err != nil {
		return nil, err
	}

	verb := sqltrans.Verb(sqlText)
	switch verb {
	case "INSERT", "UPDATE", "DELETE":
		affected, err := x.eng.Exec(ctx, prepared)
		if err != nil {
			return nil, err
		}
		x.refreshRowCount(ctx, sess, sqlText)
		noun := map[string]string{"INSERT": "inserted", "UPDATE": "updated", "DELETE": "deleted"}[verb]
		n := fmt.Sprint(affected)
		return &Response{
			StatementTypeID: stmtType,
			Columns:         []engine.Column{fixedCol("number of rows " + noun)},
			Rows:            [][]*string{{&n}},
			ExecutedSQL:     prepared,
		}, nil
	default:
		res, err := x.eng.Query(ctx, prepared)
		if err != nil {
			return nil, err
		}
		return &Response{StatementTypeID: stmtType, Columns: res.Columns, Rows: res.Rows, ExecutedSQL: prepared}, nil
	}
}

// refreshRowCount updates the catalog row count of a DML target. Best
// effort; listing staleness is not worth failing the statement over.
func (x *Executor) refreshRowCount(ctx context.Context, sess *session.Session, sqlText string) {
	parts := dmlTarget(sqlText)
	if len(parts) == 0 {
		return
	}
	db, sc, name := catalog.ResolveParts(parts, sess.Database(), sess.Schema())
	qd, qs, qn := catalog.Requote(db), catalog.Requote(sc), catalog.Requote(name)
	tbl, err := x.cat.Table(qd, qs, qn)
	if err != nil {
		return
	}
	rows, err := x.eng.CountRows(ctx, engine.SchemaName(db, sc), tbl.Relation)
	if err != nil {
		return
	}
	x.cat.SetRowCount(qd, qs, qn, rows)
}

// introspectColumns reads a relation's shape back out of the engine.
func (x *Executor) introspectColumns(ctx context.Context, ref string) ([]catalog.Column, error) {
	res, err := x.eng.Query(ctx, "SELECT * FROM "+ref+" LIMIT 0")
	if err != nil {
		return nil, err
	}
	cols := make([]catalog.Column, len(res.Columns))
	for i, c := range res.Columns {
		cols[i] = catalog.Column{Name: c.Name, Type: c.DuckType, Nullable: true}
	}
	return cols, nil
}

// ---- helpers ----

// resolve applies the session context to an object reference, returning
// normalized keys.
func (x *Executor) resolve(sess *session.Session, parts []string) (db, schema, obj string) {
	d, s := sess.Context()
	return catalog.ResolveParts(parts, d, s)
}

// schemaTarget resolves a 1- or 2-part schema reference.
func (x *Executor) schemaTarget(sess *session.Session, parts []string) (db, schema string) {
	db = sess.Database()
	if len(parts) >= 2 {
		db = catalog.Normalize(parts[len(parts)-2])
	}
	return db, catalog.Normalize(parts[len(parts)-1])
}

func statusResponse(msg string, stmtType int64) *Response {
	return &Response{
		Columns:         []engine.Column{textCol("status")},
		Rows:            [][]*string{{&msg}},
		StatementTypeID: stmtType,
	}
}

func textCol(name string) engine.Column {
	return engine.Column{Name: name, DuckType: "VARCHAR", SFType: "TEXT"}
}

func fixedCol(name string) engine.Column {
	return engine.Column{Name: name, DuckType: "BIGINT", SFType: "FIXED"}
}

func strRow(vals ...string) []*string {
	row := make([]*string, len(vals))
	for i := range vals {
		v := vals[i]
		row[i] = &v
	}
	return row
}

// unquoteLiteral strips the quotes off a single string literal; other
// values keep their SQL text.
func unquoteLiteral(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		return strings.ReplaceAll(v[1:len(v)-1], "''", "'")
	}
	return v
}
