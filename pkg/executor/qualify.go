package executor

import (
	"github.com/snowglobe-io/snowglobe/pkg/catalog"
	"github.com/snowglobe-io/snowglobe/pkg/engine"
	"github.com/snowglobe-io/snowglobe/pkg/sqltrans"
)

// viewRef identifies a view that a qualified statement references and
// that must exist in the engine before execution.
type viewRef struct {
	db, schema string
	view       *catalog.View
}

// qualify rewrites table and view references in translated SQL into
// engine relation references, using the session context for unqualified
// names. References that do not resolve to a catalog object are left
// untouched: they may be CTE names, table functions, or engine built-ins.
func (x *Executor) qualify(sql, curDB, curSchema string) (string, []viewRef) {
	toks := sqltrans.Lex(sql)
	var views []viewRef

	expectRef := false
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind == sqltrans.TokSpace || t.Kind == sqltrans.TokComment {
			continue
		}

		if t.Kind == sqltrans.TokWord {
			switch t.Upper() {
			case "FROM", "JOIN", "INTO", "UPDATE", "TABLE":
				expectRef = true
				continue
			}
		}
		if !expectRef {
			continue
		}
		// a comma continues a FROM list
		if t.Kind == sqltrans.TokOp && t.Text == "," {
			continue
		}
		if t.Kind != sqltrans.TokWord && t.Kind != sqltrans.TokQuoted {
			expectRef = false
			continue
		}

		// collect ident(.ident)* starting at i
		parts := []string{t.Text}
		end := i
		for {
			dot := nextIdx(toks, end+1)
			if dot < 0 || !(toks[dot].Kind == sqltrans.TokOp && toks[dot].Text == ".") {
				break
			}
			id := nextIdx(toks, dot+1)
			if id < 0 || (toks[id].Kind != sqltrans.TokWord && toks[id].Kind != sqltrans.TokQuoted) {
				break
			}
			parts = append(parts, toks[id].Text)
			end = id
		}

		repl, vr := x.resolveRef(parts, curDB, curSchema)
		if repl != "" {
			out := make([]sqltrans.Token, 0, len(toks))
			out = append(out, toks[:i]...)
			out = append(out, sqltrans.Token{Kind: sqltrans.TokWord, Text: repl})
			out = append(out, toks[end+1:]...)
			toks = out
			if vr != nil {
				views = append(views, *vr)
			}
		}
		expectRef = false
	}
	return sqltrans.Render(toks), views
}

func nextIdx(toks []sqltrans.Token, i int) int {
	for ; i < len(toks); i++ {
		if toks[i].Kind != sqltrans.TokSpace && toks[i].Kind != sqltrans.TokComment {
			return i
		}
	}
	return -1
}

// resolveRef maps a reference to its engine relation text, or "" when it
// is not a catalog object.
func (x *Executor) resolveRef(parts []string, curDB, curSchema string) (string, *viewRef) {
	if len(parts) > 3 {
		return "", nil
	}
	db, schema, obj := catalog.ResolveParts(parts, curDB, curSchema)
	schemaName := engine.SchemaName(db, schema)

	// keys are already normalized; requote so catalog lookups do not
	// fold them a second time
	qd, qs, qo := catalog.Requote(db), catalog.Requote(schema), catalog.Requote(obj)
	if tbl, err := x.cat.Table(qd, qs, qo); err == nil {
		return engine.RelationRef(schemaName, tbl.Relation), nil
	}
	if v, err := x.cat.View(qd, qs, qo); err == nil {
		return engine.RelationRef(schemaName, v.Relation), &viewRef{db: db, schema: schema, view: v}
	}
	return "", nil
}
