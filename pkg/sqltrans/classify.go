package sqltrans

import "strings"

// StatementTypeID values reported to drivers; these match what the
// Snowflake service sends so client libraries classify results correctly.
const (
	StmtTypeSelect   int64 = 0x1000
	StmtTypeCreate   int64 = 0x2000
	StmtTypeDrop     int64 = 0x4000
	StmtTypeInsert   int64 = 0x8000
	StmtTypeUpdate   int64 = 0x10000
	StmtTypeDelete   int64 = 0x20000
	StmtTypeAlter    int64 = 0x40000
	StmtTypeTruncate int64 = 0x80000
	StmtTypeUse      int64 = 0x100000
	StmtTypeShow     int64 = 0x200000
)

// Verb returns the first significant keyword of a statement, upper-cased.
func Verb(sql string) string {
	sig := Significant(Lex(sql))
	if len(sig) == 0 {
		return ""
	}
	// skip a leading WITH clause down to the main verb
	if sig[0].Is("WITH") {
		depth := 0
		for _, t := range sig[1:] {
			if t.Kind == TokOp {
				switch t.Text {
				case "(":
					depth++
				case ")":
					depth--
				}
				continue
			}
			if depth == 0 && t.Kind == TokWord {
				switch t.Upper() {
				case "SELECT", "INSERT", "UPDATE", "DELETE":
					return t.Upper()
				}
			}
		}
		return "SELECT"
	}
	return sig[0].Upper()
}

// StatementType maps a statement to its wire statementTypeId.
func StatementType(sql string) int64 {
	switch Verb(sql) {
	case "SELECT", "WITH":
		return StmtTypeSelect
	case "CREATE":
		return StmtTypeCreate
	case "DROP", "UNDROP":
		return StmtTypeDrop
	case "INSERT":
		return StmtTypeInsert
	case "UPDATE":
		return StmtTypeUpdate
	case "DELETE":
		return StmtTypeDelete
	case "ALTER":
		return StmtTypeAlter
	case "TRUNCATE":
		return StmtTypeTruncate
	case "USE":
		return StmtTypeUse
	case "SHOW", "DESCRIBE", "DESC":
		return StmtTypeShow
	default:
		return StmtTypeSelect
	}
}

// Class is the coarse routing decision for a statement.
type Class int

const (
	// ClassData statements go through translation to the engine.
	ClassData Class = iota
	// ClassCatalog statements mutate or read the catalog directly.
	ClassCatalog
	// ClassSession statements change session state (USE, SET, UNSET).
	ClassSession
	// ClassShow statements read catalog listings (SHOW, DESCRIBE).
	ClassShow
)

// Classify routes a statement. CREATE/DROP of engine-level objects still
// counts as catalog because the catalog owns the object tree; the
// executor coordinates the engine side.
func Classify(sql string) Class {
	sig := Significant(Lex(sql))
	if len(sig) == 0 {
		return ClassData
	}
	switch sig[0].Upper() {
	case "CREATE", "DROP", "UNDROP", "TRUNCATE":
		return ClassCatalog
	case "ALTER":
		// only RENAME is a catalog operation; other ALTERs go to the engine
		for _, t := range sig {
			if t.Is("RENAME") {
				return ClassCatalog
			}
		}
		return ClassData
	case "USE", "SET", "UNSET":
		return ClassSession
	case "SHOW", "DESCRIBE", "DESC":
		return ClassShow
	default:
		return ClassData
	}
}

// ConstantFuncs are session-context functions answered without touching
// the engine. The value key names the session field to report.
var ConstantFuncs = map[string]string{
	"CURRENT_DATABASE":  "database",
	"CURRENT_SCHEMA":    "schema",
	"CURRENT_WAREHOUSE": "warehouse",
	"CURRENT_ROLE":      "role",
	"CURRENT_USER":      "user",
	"CURRENT_SESSION":   "session",
	"CURRENT_VERSION":   "version",
	"CURRENT_ACCOUNT":   "account",
	"CURRENT_REGION":    "region",
	"CURRENT_CLIENT":    "client",
	"CURRENT_TIMESTAMP": "timestamp",
}

// ConstantSelect recognizes `SELECT CURRENT_X()` style statements and
// returns the called function names in order, or nil when the statement
// is anything else.
func ConstantSelect(sql string) []string {
	sig := Significant(Lex(sql))
	if len(sig) == 0 || !sig[0].Is("SELECT") {
		return nil
	}
	var funcs []string
	i := 1
	for i < len(sig) {
		t := sig[i]
		if t.Kind != TokWord {
			return nil
		}
		if _, ok := ConstantFuncs[t.Upper()]; !ok {
			return nil
		}
		name := t.Upper()
		i++
		// optional empty parens
		if i+1 < len(sig) && sig[i].Kind == TokOp && sig[i].Text == "(" &&
			sig[i+1].Kind == TokOp && sig[i+1].Text == ")" {
			i += 2
		}
		funcs = append(funcs, name)
		if i < len(sig) {
			if !(sig[i].Kind == TokOp && sig[i].Text == ",") {
				return nil
			}
			i++
		}
	}
	if len(funcs) == 0 {
		return nil
	}
	return funcs
}

// SessionVarSelect recognizes `SELECT $name` and returns the variable
// names referenced, or nil.
func SessionVarSelect(sql string) []string {
	sig := Significant(Lex(sql))
	if len(sig) == 0 || !sig[0].Is("SELECT") {
		return nil
	}
	var names []string
	for i := 1; i < len(sig); i++ {
		t := sig[i]
		switch {
		case t.Kind == TokWord && strings.HasPrefix(t.Text, "$") && len(t.Text) > 1:
			names = append(names, strings.ToUpper(t.Text[1:]))
		case t.Kind == TokOp && t.Text == ",":
		default:
			return nil
		}
	}
	if len(names) == 0 {
		return nil
	}
	return names
}
