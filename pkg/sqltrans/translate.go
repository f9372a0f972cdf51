package sqltrans

import (
	"strings"

	"github.com/snowglobe-io/snowglobe/server/apierror"
)

// maxRewritePasses bounds the rescan loop; each rewrite removes its
// source function name so real statements converge in a handful of
// passes.
const maxRewritePasses = 1000

// Translate rewrites Snowflake SQL into DuckDB SQL. It is pure and
// idempotent: translating its own output returns it unchanged.
func Translate(sql string) (string, error) {
	toks := Lex(sql)
	toks = stripTrailingSemicolons(toks)

	var err error
	for pass := 0; pass < maxRewritePasses; pass++ {
		var changed bool
		toks, changed, err = rewriteOnce(toks)
		if err != nil {
			return "", err
		}
		if !changed {
			break
		}
	}
	toks = foldTypes(toks)
	toks = rewriteSample(toks)
	return Render(toks), nil
}

func stripTrailingSemicolons(toks []Token) []Token {
	for {
		i := prevSig(toks, len(toks))
		if i < 0 || !(toks[i].Kind == TokOp && toks[i].Text == ";") {
			return toks
		}
		toks = append(toks[:i:i], toks[i+1:]...)
	}
}

// renameFuncs are pure name swaps applied when the word heads a call.
var renameFuncs = map[string]string{
	"NVL":              "COALESCE",
	"LEN":              "LENGTH",
	"LISTAGG":          "STRING_AGG",
	"OBJECT_CONSTRUCT": "JSON_OBJECT",
	"ARRAY_CONSTRUCT":  "LIST_VALUE",
	"REGEXP_LIKE":      "REGEXP_MATCHES",
	"RLIKE":            "REGEXP_MATCHES",
	"GETDATE":          "NOW",
	"SYSDATE":          "NOW",
	"BOOLOR_AGG":       "BOOL_OR",
	"BOOLAND_AGG":      "BOOL_AND",
}

// rewriteOnce scans for the first applicable rewrite, applies it and
// reports whether anything changed.
func rewriteOnce(toks []Token) ([]Token, bool, error) {
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind != TokWord {
			continue
		}
		// member access like alias.NVL is a column, not a call
		if p := prevSig(toks, i); p >= 0 && toks[p].Kind == TokOp && toks[p].Text == "." {
			continue
		}
		open := nextSig(toks, i+1)
		headsCall := open >= 0 && toks[open].Kind == TokOp && toks[open].Text == "("
		name := t.Upper()

		if headsCall {
			if repl, ok := renameFuncs[name]; ok {
				out := append([]Token{}, toks...)
				out[i] = word(repl)
				return out, true, nil
			}
			if fn, ok := callRewrites[name]; ok {
				close := matchParen(toks, open)
				if close < 0 {
					return nil, false, apierror.New(apierror.KindTranslation, "unbalanced parentheses after %s", t.Text)
				}
				args := splitArgs(toks, open, close)
				repl, err := fn(args)
				if err != nil {
					return nil, false, err
				}
				out := make([]Token, 0, len(toks)-(close-i)+len(repl))
				out = append(out, toks[:i]...)
				out = append(out, repl...)
				out = append(out, toks[close+1:]...)
				return out, true, nil
			}
		}
	}
	return toks, false, nil
}

// callRewrites restructure a call's arguments. Each returns the full
// replacement token sequence for `NAME ( args )`.
var callRewrites = map[string]func(args [][]Token) ([]Token, error){
	"NVL2": func(args [][]Token) ([]Token, error) {
		if len(args) != 3 {
			return nil, apierror.New(apierror.KindTranslation, "NVL2 expects 3 arguments, got %d", len(args))
		}
		return caseWhen(wrap(args[0], word("IS"), space(), word("NOT"), space(), word("NULL")), args[1], args[2]), nil
	},
	"IFF": func(args [][]Token) ([]Token, error) {
		if len(args) != 3 {
			return nil, apierror.New(apierror.KindTranslation, "IFF expects 3 arguments, got %d", len(args))
		}
		return caseWhen(paren(args[0]), args[1], args[2]), nil
	},
	"DECODE": rewriteDecode,
	"DIV0": func(args [][]Token) ([]Token, error) {
		if len(args) != 2 {
			return nil, apierror.New(apierror.KindTranslation, "DIV0 expects 2 arguments, got %d", len(args))
		}
		cond := wrap(args[1], op("="), space(), Token{TokNumber, "0"})
		div := append(paren(args[0]), space(), op("/"), space())
		div = append(div, paren(args[1])...)
		return caseWhenTokens(cond, []Token{{TokNumber, "0"}}, div), nil
	},
	"NULLIFZERO": func(args [][]Token) ([]Token, error) {
		if len(args) != 1 {
			return nil, apierror.New(apierror.KindTranslation, "NULLIFZERO expects 1 argument, got %d", len(args))
		}
		out := []Token{word("NULLIF"), op("(")}
		out = append(out, args[0]...)
		out = append(out, op(","), space(), Token{TokNumber, "0"}, op(")"))
		return out, nil
	},
	"ZEROIFNULL": func(args [][]Token) ([]Token, error) {
		if len(args) != 1 {
			return nil, apierror.New(apierror.KindTranslation, "ZEROIFNULL expects 1 argument, got %d", len(args))
		}
		out := []Token{word("COALESCE"), op("(")}
		out = append(out, args[0]...)
		out = append(out, op(","), space(), Token{TokNumber, "0"}, op(")"))
		return out, nil
	},
	"EQUAL_NULL": func(args [][]Token) ([]Token, error) {
		if len(args) != 2 {
			return nil, apierror.New(apierror.KindTranslation, "EQUAL_NULL expects 2 arguments, got %d", len(args))
		}
		out := []Token{op("(")}
		out = append(out, paren(args[0])...)
		out = append(out, space(), word("IS"), space(), word("NOT"), space(), word("DISTINCT"), space(), word("FROM"), space())
		out = append(out, paren(args[1])...)
		out = append(out, op(")"))
		return out, nil
	},
	"PARSE_JSON": func(args [][]Token) ([]Token, error) {
		if len(args) != 1 {
			return nil, apierror.New(apierror.KindTranslation, "PARSE_JSON expects 1 argument, got %d", len(args))
		}
		out := []Token{op("(")}
		out = append(out, paren(args[0])...)
		out = append(out, op("::"), word("JSON"), op(")"))
		return out, nil
	},
	"CHARINDEX": func(args [][]Token) ([]Token, error) {
		if len(args) != 2 {
			return nil, apierror.New(apierror.KindTranslation, "CHARINDEX expects 2 arguments, got %d", len(args))
		}
		out := []Token{word("STRPOS"), op("(")}
		out = append(out, args[1]...)
		out = append(out, op(","), space())
		out = append(out, args[0]...)
		out = append(out, op(")"))
		return out, nil
	},
	"DATEADD": func(args [][]Token) ([]Token, error) {
		if len(args) != 3 {
			return nil, apierror.New(apierror.KindTranslation, "DATEADD expects 3 arguments, got %d", len(args))
		}
		unit, err := timeUnit(args[0])
		if err != nil {
			return nil, err
		}
		out := []Token{op("(")}
		out = append(out, paren(args[2])...)
		out = append(out, space(), op("+"), space(), word("INTERVAL"), space())
		out = append(out, paren(args[1])...)
		out = append(out, space(), word(unit), op(")"))
		return out, nil
	},
	"DATEDIFF": func(args [][]Token) ([]Token, error) {
		if len(args) != 3 {
			return nil, apierror.New(apierror.KindTranslation, "DATEDIFF expects 3 arguments, got %d", len(args))
		}
		unit, err := timeUnit(args[0])
		if err != nil {
			return nil, err
		}
		out := []Token{word("DATE_DIFF"), op("("), strTok("'" + strings.ToLower(unit) + "'"), op(","), space()}
		out = append(out, args[1]...)
		out = append(out, op(","), space())
		out = append(out, args[2]...)
		out = append(out, op(")"))
		return out, nil
	},
	"TO_DATE":      castRewrite("DATE"),
	"TO_TIMESTAMP": castRewrite("TIMESTAMP"),
	"MONTHNAME":    strftimeRewrite("'%B'"),
	"DAYNAME":      strftimeRewrite("'%A'"),
	"IDENTIFIER": func(args [][]Token) ([]Token, error) {
		if len(args) != 1 || len(args[0]) != 1 {
			return nil, apierror.New(apierror.KindTranslation, "IDENTIFIER expects a single literal argument")
		}
		arg := args[0][0]
		switch arg.Kind {
		case TokString:
			name := strings.Trim(arg.Text, "'")
			return Lex(name), nil
		case TokWord, TokQuoted:
			return []Token{arg}, nil
		default:
			return nil, apierror.New(apierror.KindTranslation, "IDENTIFIER argument must be a name or string literal")
		}
	},
	"TIME_SLICE": func(args [][]Token) ([]Token, error) {
		if len(args) != 3 {
			return nil, apierror.New(apierror.KindTranslation, "TIME_SLICE expects 3 arguments, got %d", len(args))
		}
		unit, err := timeUnit(args[2])
		if err != nil {
			return nil, err
		}
		out := []Token{word("TIME_BUCKET"), op("("), word("INTERVAL"), space()}
		out = append(out, paren(args[1])...)
		out = append(out, space(), word(unit), op(","), space())
		out = append(out, args[0]...)
		out = append(out, op(")"))
		return out, nil
	},
	"SQUARE": func(args [][]Token) ([]Token, error) {
		if len(args) != 1 {
			return nil, apierror.New(apierror.KindTranslation, "SQUARE expects 1 argument, got %d", len(args))
		}
		out := []Token{word("POW"), op("(")}
		out = append(out, args[0]...)
		out = append(out, op(","), space(), Token{TokNumber, "2"}, op(")"))
		return out, nil
	},
}

// castRewrite maps a one-argument conversion to CAST; the two-argument
// form with an explicit format string becomes STRPTIME.
func castRewrite(sqlType string) func(args [][]Token) ([]Token, error) {
	return func(args [][]Token) ([]Token, error) {
		switch len(args) {
		case 1:
			out := []Token{word("CAST"), op("(")}
			out = append(out, args[0]...)
			out = append(out, space(), word("AS"), space(), word(sqlType), op(")"))
			return out, nil
		case 2:
			out := []Token{word("CAST"), op("("), word("STRPTIME"), op("(")}
			out = append(out, args[0]...)
			out = append(out, op(","), space())
			out = append(out, args[1]...)
			out = append(out, op(")"), space(), word("AS"), space(), word(sqlType), op(")"))
			return out, nil
		default:
			return nil, apierror.New(apierror.KindTranslation, "conversion to %s expects 1 or 2 arguments, got %d", sqlType, len(args))
		}
	}
}

func strftimeRewrite(format string) func(args [][]Token) ([]Token, error) {
	return func(args [][]Token) ([]Token, error) {
		if len(args) != 1 {
			return nil, apierror.New(apierror.KindTranslation, "expected 1 argument, got %d", len(args))
		}
		out := []Token{word("STRFTIME"), op("(")}
		out = append(out, args[0]...)
		out = append(out, op(","), space(), strTok(format), op(")"))
		return out, nil
	}
}

func rewriteDecode(args [][]Token) ([]Token, error) {
	if len(args) < 3 {
		return nil, apierror.New(apierror.KindTranslation, "DECODE expects at least 3 arguments, got %d", len(args))
	}
	expr := args[0]
	pairs := args[1:]
	var dflt []Token
	if len(pairs)%2 == 1 {
		dflt = pairs[len(pairs)-1]
		pairs = pairs[:len(pairs)-1]
	}
	out := []Token{word("CASE"), space()}
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, word("WHEN"), space())
		out = append(out, paren(expr)...)
		// DECODE treats NULL as equal to NULL
		out = append(out, space(), word("IS"), space(), word("NOT"), space(), word("DISTINCT"), space(), word("FROM"), space())
		out = append(out, paren(pairs[i])...)
		out = append(out, space(), word("THEN"), space())
		out = append(out, paren(pairs[i+1])...)
		out = append(out, space())
	}
	if dflt != nil {
		out = append(out, word("ELSE"), space())
		out = append(out, paren(dflt)...)
		out = append(out, space())
	}
	out = append(out, word("END"))
	return out, nil
}

// timeUnit normalizes the first DATEADD/DATEDIFF argument, accepting a
// bare word or a string literal.
func timeUnit(arg []Token) (string, error) {
	if len(arg) != 1 {
		return "", apierror.New(apierror.KindTranslation, "invalid date part")
	}
	raw := arg[0].Text
	if arg[0].Kind == TokString {
		raw = strings.Trim(raw, "'")
	} else if arg[0].Kind != TokWord {
		return "", apierror.New(apierror.KindTranslation, "invalid date part %q", raw)
	}
	switch strings.ToUpper(raw) {
	case "YEAR", "YY", "YYYY":
		return "YEAR", nil
	case "QUARTER", "Q":
		return "QUARTER", nil
	case "MONTH", "MM", "MON":
		return "MONTH", nil
	case "WEEK", "WK":
		return "WEEK", nil
	case "DAY", "DD", "D":
		return "DAY", nil
	case "HOUR", "HH":
		return "HOUR", nil
	case "MINUTE", "MI":
		return "MINUTE", nil
	case "SECOND", "SS", "S":
		return "SECOND", nil
	default:
		return "", apierror.New(apierror.KindTranslation, "unsupported date part %q", raw)
	}
}

// caseWhen builds CASE WHEN cond THEN (a) ELSE (b) END with a and b
// parenthesized.
func caseWhen(cond []Token, a, b []Token) []Token {
	return caseWhenTokens(cond, paren(a), paren(b))
}

func caseWhenTokens(cond, thenT, elseT []Token) []Token {
	out := []Token{word("CASE"), space(), word("WHEN"), space()}
	out = append(out, cond...)
	out = append(out, space(), word("THEN"), space())
	out = append(out, thenT...)
	out = append(out, space(), word("ELSE"), space())
	out = append(out, elseT...)
	out = append(out, space(), word("END"))
	return out
}

// paren wraps an expression in parentheses.
func paren(expr []Token) []Token {
	out := make([]Token, 0, len(expr)+2)
	out = append(out, op("("))
	out = append(out, expr...)
	out = append(out, op(")"))
	return out
}

// wrap parenthesizes expr and appends a space plus the suffix tokens.
func wrap(expr []Token, suffix ...Token) []Token {
	out := paren(expr)
	out = append(out, space())
	out = append(out, suffix...)
	return out
}

// typeFolds maps Snowflake type names to the closest DuckDB type. Folds
// skip member access so alias.NUMBER style column references survive.
var typeFolds = map[string]string{
	"NUMBER":        "DECIMAL",
	"NUMERIC":       "DECIMAL",
	"FLOAT":         "DOUBLE",
	"FLOAT4":        "DOUBLE",
	"FLOAT8":        "DOUBLE",
	"STRING":        "VARCHAR",
	"TEXT":          "VARCHAR",
	"VARIANT":       "JSON",
	"TIMESTAMP_NTZ": "TIMESTAMP",
	"TIMESTAMP_LTZ": "TIMESTAMPTZ",
	"TIMESTAMP_TZ":  "TIMESTAMPTZ",
	"DATETIME":      "TIMESTAMP",
}

func foldTypes(toks []Token) []Token {
	out := append([]Token{}, toks...)
	for i, t := range out {
		if t.Kind != TokWord {
			continue
		}
		repl, ok := typeFolds[t.Upper()]
		if !ok {
			continue
		}
		if p := prevSig(out, i); p >= 0 && out[p].Kind == TokOp && out[p].Text == "." {
			continue
		}
		out[i] = word(repl)
	}
	return out
}

// rewriteSample converts the Snowflake SAMPLE clause to USING SAMPLE.
// SAMPLE (n) is a percentage, SAMPLE (n ROWS) a fixed row count.
func rewriteSample(toks []Token) []Token {
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind != TokWord {
			continue
		}
		u := t.Upper()
		if u != "SAMPLE" && u != "TABLESAMPLE" {
			continue
		}
		if p := prevSig(toks, i); p >= 0 && toks[p].Is("USING") {
			continue
		}
		open := nextSig(toks, i+1)
		if open < 0 || toks[open].Kind != TokOp || toks[open].Text != "(" {
			continue
		}
		close := matchParen(toks, open)
		if close < 0 {
			continue
		}
		inner := Significant(toks[open+1 : close])
		if len(inner) == 0 || inner[0].Kind != TokNumber {
			continue
		}
		repl := []Token{word("USING"), space(), word("SAMPLE"), space(), inner[0]}
		if len(inner) >= 2 && (inner[1].Is("ROWS") || inner[1].Is("ROW")) {
			repl = append(repl, space(), word("ROWS"))
		} else {
			repl = append(repl, space(), word("PERCENT"), space(), op("("), word("bernoulli"), op(")"))
		}
		out := make([]Token, 0, len(toks))
		out = append(out, toks[:i]...)
		out = append(out, repl...)
		out = append(out, toks[close+1:]...)
		toks = out
		i += len(repl)
	}
	return toks
}
