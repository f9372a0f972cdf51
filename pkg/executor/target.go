package executor

import (
	"github.com/blastrain/vitess-sqlparser/sqlparser"

	"github.com/snowglobe-io/snowglobe/pkg/sqltrans"
)

// dmlTarget finds the table an INSERT, UPDATE or DELETE statement
// modifies so its catalog row count can be refreshed afterwards. The AST
// parser handles the common shapes; statements it cannot parse fall back
// to a token scan, mirroring how translation degrades gracefully.
func dmlTarget(sql string) []string {
	if stmt, err := sqlparser.Parse(sql); err == nil {
		switch n := stmt.(type) {
		case *sqlparser.Insert:
			return tableNameParts(n.Table)
		case *sqlparser.Update:
			if parts := tableExprParts(n.TableExprs); parts != nil {
				return parts
			}
		case *sqlparser.Delete:
			if parts := tableExprParts(n.TableExprs); parts != nil {
				return parts
			}
		}
	}
	return scanTarget(sql)
}

func tableNameParts(t sqlparser.TableName) []string {
	if t.Name.IsEmpty() {
		return nil
	}
	if q := t.Qualifier.String(); q != "" {
		return []string{q, t.Name.String()}
	}
	return []string{t.Name.String()}
}

func tableExprParts(exprs sqlparser.TableExprs) []string {
	if len(exprs) != 1 {
		return nil
	}
	aliased, ok := exprs[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return nil
	}
	name, ok := aliased.Expr.(sqlparser.TableName)
	if !ok {
		return nil
	}
	return tableNameParts(name)
}

// scanTarget reads the reference following INSERT INTO, UPDATE or
// DELETE FROM at the token level.
func scanTarget(sql string) []string {
	c := newCursor(sql)
	t := c.peek()
	if t.Kind != sqltrans.TokWord {
		return nil
	}
	switch t.Upper() {
	case "INSERT":
		c.next()
		if !c.accept("INTO") {
			return nil
		}
	case "DELETE":
		c.next()
		if !c.accept("FROM") {
			return nil
		}
	case "UPDATE":
		c.next()
	default:
		return nil
	}
	parts := c.objectRef()
	if len(parts) == 0 {
		return nil
	}
	return parts
}
