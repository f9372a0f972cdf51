package executor

import (
	"strings"

	"github.com/snowglobe-io/snowglobe/pkg/sqltrans"
	"github.com/snowglobe-io/snowglobe/server/apierror"
)

// directive is a parsed catalog or session statement. Name parts keep
// their raw quoting; normalization happens at resolution time.
type directive struct {
	verb    string // CREATE, DROP, UNDROP, TRUNCATE, RENAME, USE, SET, UNSET, SHOW, DESCRIBE
	objKind string // DATABASE, SCHEMA, TABLE, VIEW, WAREHOUSE, ROLE, or SHOW subject

	orReplace   bool
	ifNotExists bool
	ifExists    bool
	cascade     bool
	transient   bool
	dropped     bool // SHOW DROPPED ...

	name      []string // object reference parts
	newName   string   // RENAME target
	inScope   []string // SHOW ... IN <scope>
	scopeKind string   // DATABASE or SCHEMA when named in the IN clause

	columnsSQL string // CREATE TABLE "( ... )" body, untranslated
	tailSQL    string // CTAS / CREATE VIEW definition, or SET value
	cloneFrom  []string
	varName    string
}

type cursor struct {
	toks []sqltrans.Token
	i    int
}

func newCursor(sql string) *cursor {
	c := &cursor{toks: sqltrans.Lex(sql)}
	c.skip()
	return c
}

func (c *cursor) skip() {
	for c.i < len(c.toks) {
		k := c.toks[c.i].Kind
		if k != sqltrans.TokSpace && k != sqltrans.TokComment {
			return
		}
		c.i++
	}
}

func (c *cursor) done() bool { return c.i >= len(c.toks) }

func (c *cursor) peek() sqltrans.Token {
	if c.done() {
		return sqltrans.Token{}
	}
	return c.toks[c.i]
}

func (c *cursor) next() sqltrans.Token {
	t := c.peek()
	c.i++
	c.skip()
	return t
}

// accept consumes the next token when it is the given bare word.
func (c *cursor) accept(kw string) bool {
	if c.peek().Is(kw) {
		c.next()
		return true
	}
	return false
}

// acceptSeq consumes a run of keywords, all or nothing.
func (c *cursor) acceptSeq(kws ...string) bool {
	save := c.i
	for _, kw := range kws {
		if !c.accept(kw) {
			c.i = save
			return false
		}
	}
	return true
}

func (c *cursor) isOp(text string) bool {
	t := c.peek()
	return t.Kind == sqltrans.TokOp && t.Text == text
}

// objectRef reads ident(.ident)* and returns the raw parts.
func (c *cursor) objectRef() []string {
	var parts []string
	for {
		t := c.peek()
		if t.Kind != sqltrans.TokWord && t.Kind != sqltrans.TokQuoted {
			break
		}
		parts = append(parts, t.Text)
		c.next()
		if !c.isOp(".") {
			break
		}
		c.next()
	}
	return parts
}

// rest renders everything from the cursor to the end of input.
func (c *cursor) rest() string {
	return strings.TrimSpace(sqltrans.Render(c.toks[c.i:]))
}

// parenBody consumes a balanced "(...)" group and returns its raw text
// including the parentheses.
func (c *cursor) parenBody() (string, bool) {
	if !c.isOp("(") {
		return "", false
	}
	depth := 0
	start := c.i
	for ; c.i < len(c.toks); c.i++ {
		t := c.toks[c.i]
		if t.Kind != sqltrans.TokOp {
			continue
		}
		switch t.Text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				c.i++
				body := sqltrans.Render(c.toks[start:c.i])
				c.skip()
				return body, true
			}
		}
	}
	return "", false
}

var objectKinds = map[string]bool{
	"DATABASE": true, "SCHEMA": true, "TABLE": true, "VIEW": true,
}

// parseDirective parses catalog, session and SHOW statements. It returns
// nil for data statements, which flow to the engine instead.
func parseDirective(sql string) (*directive, error) {
	c := newCursor(sql)
	t := c.peek()
	if t.Kind != sqltrans.TokWord {
		return nil, nil
	}

	switch t.Upper() {
	case "CREATE":
		return parseCreate(c)
	case "DROP":
		return parseDrop(c)
	case "UNDROP":
		return parseUndrop(c)
	case "TRUNCATE":
		return parseTruncate(c)
	case "ALTER":
		return parseAlter(c)
	case "USE":
		return parseUse(c)
	case "SET":
		return parseSet(c)
	case "UNSET":
		return parseUnset(c)
	case "SHOW":
		return parseShow(c)
	case "DESCRIBE", "DESC":
		return parseDescribe(c)
	}
	return nil, nil
}

func parseCreate(c *cursor) (*directive, error) {
	c.next() // CREATE
	d := &directive{verb: "CREATE"}
	d.orReplace = c.acceptSeq("OR", "REPLACE")
	d.transient = c.accept("TRANSIENT")
	c.accept("SECURE") // secure views behave like plain views here

	kind := c.peek()
	if kind.Kind != sqltrans.TokWord || !objectKinds[kind.Upper()] {
		return nil, apierror.New(apierror.KindTranslation, "unsupported CREATE object %q", kind.Text)
	}
	d.objKind = kind.Upper()
	c.next()

	d.ifNotExists = c.acceptSeq("IF", "NOT", "EXISTS")
	d.name = c.objectRef()
	if len(d.name) == 0 {
		return nil, apierror.New(apierror.KindBadRequest, "missing object name in CREATE %s", d.objKind)
	}

	switch d.objKind {
	case "TABLE":
		if c.accept("CLONE") {
			d.cloneFrom = c.objectRef()
			if len(d.cloneFrom) == 0 {
				return nil, apierror.New(apierror.KindBadRequest, "missing CLONE source table")
			}
			return d, nil
		}
		if body, ok := c.parenBody(); ok {
			d.columnsSQL = body
			if c.accept("AS") {
				d.tailSQL = c.rest()
			}
			return d, nil
		}
		if c.accept("AS") {
			d.tailSQL = c.rest()
			if d.tailSQL == "" {
				return nil, apierror.New(apierror.KindBadRequest, "CREATE TABLE AS requires a query")
			}
			return d, nil
		}
		return nil, apierror.New(apierror.KindBadRequest, "CREATE TABLE requires a column list, AS query, or CLONE source")
	case "VIEW":
		if !c.accept("AS") {
			return nil, apierror.New(apierror.KindBadRequest, "CREATE VIEW requires AS <query>")
		}
		d.tailSQL = c.rest()
		if d.tailSQL == "" {
			return nil, apierror.New(apierror.KindBadRequest, "CREATE VIEW requires a query")
		}
	}
	return d, nil
}

func parseDrop(c *cursor) (*directive, error) {
	c.next() // DROP
	d := &directive{verb: "DROP"}
	kind := c.peek()
	if kind.Kind != sqltrans.TokWord || !objectKinds[kind.Upper()] {
		return nil, apierror.New(apierror.KindTranslation, "unsupported DROP object %q", kind.Text)
	}
	d.objKind = kind.Upper()
	c.next()
	d.ifExists = c.acceptSeq("IF", "EXISTS")
	d.name = c.objectRef()
	if len(d.name) == 0 {
		return nil, apierror.New(apierror.KindBadRequest, "missing object name in DROP %s", d.objKind)
	}
	d.cascade = c.accept("CASCADE")
	c.accept("RESTRICT")
	return d, nil
}

func parseUndrop(c *cursor) (*directive, error) {
	c.next() // UNDROP
	d := &directive{verb: "UNDROP"}
	kind := c.peek()
	if kind.Kind != sqltrans.TokWord || !objectKinds[kind.Upper()] {
		return nil, apierror.New(apierror.KindTranslation, "unsupported UNDROP object %q", kind.Text)
	}
	d.objKind = kind.Upper()
	c.next()
	d.name = c.objectRef()
	if len(d.name) == 0 {
		return nil, apierror.New(apierror.KindBadRequest, "missing object name in UNDROP %s", d.objKind)
	}
	return d, nil
}

func parseTruncate(c *cursor) (*directive, error) {
	c.next() // TRUNCATE
	c.accept("TABLE")
	d := &directive{verb: "TRUNCATE", objKind: "TABLE"}
	d.ifExists = c.acceptSeq("IF", "EXISTS")
	d.name = c.objectRef()
	if len(d.name) == 0 {
		return nil, apierror.New(apierror.KindBadRequest, "missing table name in TRUNCATE")
	}
	return d, nil
}

// parseAlter only handles RENAME; other ALTER forms return nil and are
// sent to the engine untouched.
func parseAlter(c *cursor) (*directive, error) {
	c.next() // ALTER
	if !c.accept("TABLE") {
		return nil, nil
	}
	d := &directive{verb: "RENAME", objKind: "TABLE"}
	d.ifExists = c.acceptSeq("IF", "EXISTS")
	d.name = c.objectRef()
	if !c.acceptSeq("RENAME", "TO") {
		return nil, nil
	}
	target := c.objectRef()
	if len(d.name) == 0 || len(target) == 0 {
		return nil, apierror.New(apierror.KindBadRequest, "malformed ALTER TABLE RENAME")
	}
	d.newName = target[len(target)-1]
	return d, nil
}

func parseUse(c *cursor) (*directive, error) {
	c.next() // USE
	d := &directive{verb: "USE"}
	switch {
	case c.accept("DATABASE"):
		d.objKind = "DATABASE"
	case c.accept("SCHEMA"):
		d.objKind = "SCHEMA"
	case c.accept("WAREHOUSE"):
		d.objKind = "WAREHOUSE"
	case c.accept("ROLE"):
		d.objKind = "ROLE"
	default:
		// bare USE <name> selects a database
		d.objKind = "DATABASE"
	}
	d.name = c.objectRef()
	if len(d.name) == 0 {
		return nil, apierror.New(apierror.KindBadRequest, "missing name in USE %s", d.objKind)
	}
	return d, nil
}

func parseSet(c *cursor) (*directive, error) {
	c.next() // SET
	d := &directive{verb: "SET"}
	name := c.peek()
	if name.Kind != sqltrans.TokWord {
		return nil, apierror.New(apierror.KindBadRequest, "missing variable name in SET")
	}
	d.varName = strings.ToUpper(name.Text)
	c.next()
	if !c.isOp("=") {
		return nil, apierror.New(apierror.KindBadRequest, "SET requires <name> = <value>")
	}
	c.next()
	d.tailSQL = c.rest()
	if d.tailSQL == "" {
		return nil, apierror.New(apierror.KindBadRequest, "missing value in SET %s", d.varName)
	}
	return d, nil
}

func parseUnset(c *cursor) (*directive, error) {
	c.next() // UNSET
	d := &directive{verb: "UNSET"}
	name := c.peek()
	if name.Kind != sqltrans.TokWord {
		return nil, apierror.New(apierror.KindBadRequest, "missing variable name in UNSET")
	}
	d.varName = strings.ToUpper(name.Text)
	c.next()
	return d, nil
}

func parseShow(c *cursor) (*directive, error) {
	c.next() // SHOW
	d := &directive{verb: "SHOW"}
	d.dropped = c.accept("DROPPED")
	c.accept("TERSE")

	subject := c.peek()
	if subject.Kind != sqltrans.TokWord {
		return nil, apierror.New(apierror.KindBadRequest, "missing SHOW subject")
	}
	switch subject.Upper() {
	case "DATABASES", "SCHEMAS", "TABLES", "VIEWS", "WAREHOUSES", "VARIABLES",
		"ROLES", "USERS", "GRANTS", "PARAMETERS", "COLUMNS":
		d.objKind = subject.Upper()
	default:
		return nil, apierror.New(apierror.KindTranslation, "unsupported SHOW subject %q", subject.Text)
	}
	c.next()
	if c.accept("IN") {
		switch {
		case c.accept("DATABASE"):
			d.scopeKind = "DATABASE"
		case c.accept("SCHEMA"):
			d.scopeKind = "SCHEMA"
		case c.accept("TABLE"):
			d.scopeKind = "TABLE"
		}
		d.inScope = c.objectRef()
	}
	return d, nil
}

func parseDescribe(c *cursor) (*directive, error) {
	c.next() // DESCRIBE or DESC
	d := &directive{verb: "DESCRIBE", objKind: "TABLE"}
	if c.accept("VIEW") {
		d.objKind = "VIEW"
	} else {
		c.accept("TABLE")
	}
	d.name = c.objectRef()
	if len(d.name) == 0 {
		return nil, apierror.New(apierror.KindBadRequest, "missing object name in DESCRIBE")
	}
	return d, nil
}
