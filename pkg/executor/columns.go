package executor

import (
	"strings"

	"github.com/snowglobe-io/snowglobe/pkg/catalog"
	"github.com/snowglobe-io/snowglobe/pkg/sqltrans"
	"github.com/snowglobe-io/snowglobe/server/apierror"
)

// parseColumns extracts column definitions from a CREATE TABLE body,
// parentheses included. Types are kept as the user wrote them; the
// engine DDL is produced separately from the translated statement.
func parseColumns(body string) ([]catalog.Column, error) {
	toks := sqltrans.Significant(sqltrans.Lex(body))
	if len(toks) < 2 || toks[0].Text != "(" || toks[len(toks)-1].Text != ")" {
		return nil, apierror.New(apierror.KindBadRequest, "malformed column list")
	}
	defs := splitTopLevel(toks[1 : len(toks)-1])
	if len(defs) == 0 {
		return nil, apierror.New(apierror.KindBadRequest, "empty column list")
	}

	var cols []catalog.Column
	var pkNames []string
	for _, def := range defs {
		if len(def) == 0 {
			return nil, apierror.New(apierror.KindBadRequest, "empty column definition")
		}
		head := def[0]
		if head.Kind == sqltrans.TokWord {
			switch head.Upper() {
			case "PRIMARY":
				pkNames = append(pkNames, constraintColumns(def)...)
				continue
			case "UNIQUE", "FOREIGN", "CONSTRAINT", "CHECK":
				// table-level constraints carry no column metadata we track
				continue
			}
		}
		col, err := parseColumnDef(def)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	for _, name := range pkNames {
		for i := range cols {
			if cols[i].Name == name {
				cols[i].Primary = true
				cols[i].Nullable = false
			}
		}
	}
	return cols, nil
}

func parseColumnDef(def []sqltrans.Token) (catalog.Column, error) {
	name := def[0]
	if name.Kind != sqltrans.TokWord && name.Kind != sqltrans.TokQuoted {
		return catalog.Column{}, apierror.New(apierror.KindBadRequest, "invalid column name %q", name.Text)
	}
	col := catalog.Column{Name: catalog.Normalize(name.Text), Nullable: true}

	// the type runs until the first attribute keyword at depth zero
	i := 1
	start := i
	depth := 0
	for ; i < len(def); i++ {
		t := def[i]
		if t.Kind == sqltrans.TokOp {
			switch t.Text {
			case "(":
				depth++
			case ")":
				depth--
			}
			continue
		}
		if depth == 0 && t.Kind == sqltrans.TokWord {
			switch t.Upper() {
			case "NOT", "NULL", "DEFAULT", "PRIMARY", "UNIQUE", "COMMENT", "AUTOINCREMENT", "IDENTITY":
				goto attrs
			}
		}
	}
attrs:
	col.Type = strings.ToUpper(renderTight(def[start:i]))
	if col.Type == "" {
		return catalog.Column{}, apierror.New(apierror.KindBadRequest, "column %s is missing a type", col.Name)
	}

	for ; i < len(def); i++ {
		t := def[i]
		if t.Kind != sqltrans.TokWord {
			continue
		}
		switch t.Upper() {
		case "NOT":
			if i+1 < len(def) && def[i+1].Is("NULL") {
				col.Nullable = false
				i++
			}
		case "PRIMARY":
			if i+1 < len(def) && def[i+1].Is("KEY") {
				col.Primary = true
				col.Nullable = false
				i++
			}
		case "DEFAULT":
			j := i + 1
			d := 0
			for ; j < len(def); j++ {
				if def[j].Kind == sqltrans.TokOp {
					switch def[j].Text {
					case "(":
						d++
					case ")":
						d--
					}
					continue
				}
				if d == 0 && def[j].Kind == sqltrans.TokWord {
					switch def[j].Upper() {
					case "NOT", "NULL", "PRIMARY", "UNIQUE", "COMMENT":
						goto defaultDone
					}
				}
			}
		defaultDone:
			col.Default = renderTight(def[i+1 : j])
			i = j - 1
		}
	}
	return col, nil
}

// constraintColumns reads the names out of PRIMARY KEY (a, b).
func constraintColumns(def []sqltrans.Token) []string {
	var names []string
	inParen := false
	for _, t := range def {
		if t.Kind == sqltrans.TokOp {
			switch t.Text {
			case "(":
				inParen = true
			case ")":
				inParen = false
			}
			continue
		}
		if inParen && (t.Kind == sqltrans.TokWord || t.Kind == sqltrans.TokQuoted) {
			names = append(names, catalog.Normalize(t.Text))
		}
	}
	return names
}

// splitTopLevel splits significant tokens on depth-zero commas.
func splitTopLevel(toks []sqltrans.Token) [][]sqltrans.Token {
	var out [][]sqltrans.Token
	depth := 0
	start := 0
	for i, t := range toks {
		if t.Kind != sqltrans.TokOp {
			continue
		}
		switch t.Text {
		case "(":
			depth++
		case ")":
			depth--
		case ",":
			if depth == 0 {
				out = append(out, toks[start:i])
				start = i + 1
			}
		}
	}
	if start < len(toks) {
		out = append(out, toks[start:])
	}
	return out
}

// renderTight joins significant tokens with minimal spacing: words are
// separated, punctuation binds to its neighbors.
func renderTight(toks []sqltrans.Token) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 && wordsNeedGap(toks[i-1], t) {
			b.WriteByte(' ')
		}
		b.WriteString(t.Text)
	}
	return b.String()
}

func wordsNeedGap(a, b sqltrans.Token) bool {
	wordish := func(t sqltrans.Token) bool {
		return t.Kind == sqltrans.TokWord || t.Kind == sqltrans.TokQuoted ||
			t.Kind == sqltrans.TokNumber || t.Kind == sqltrans.TokString
	}
	return wordish(a) && wordish(b)
}
