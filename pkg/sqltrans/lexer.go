// Package sqltrans converts Snowflake SQL text into the dialect the
// DuckDB engine executes. Translation is a pure function over a token
// stream: rules never fire inside string literals, quoted identifiers or
// comments, and translating already-translated text changes nothing.
package sqltrans

import "strings"

// TokenKind partitions the raw SQL text.
type TokenKind int

const (
	TokWord   TokenKind = iota // bare identifier or keyword
	TokQuoted                  // "double quoted" identifier
	TokString                  // 'single quoted' literal, '' escape kept
	TokNumber                  // numeric literal
	TokOp                      // operator or punctuation, one token each
	TokComment                 // -- line or /* block */ comment
	TokSpace                   // run of whitespace
)

// Token is one lexeme with its exact source text, so rendering the token
// slice reproduces the input byte for byte.
type Token struct {
	Kind TokenKind
	Text string
}

// Upper returns the folded text of a word token for keyword comparison.
func (t Token) Upper() string { return strings.ToUpper(t.Text) }

// Is reports whether the token is a bare word matching kw (case folded).
func (t Token) Is(kw string) bool {
	return t.Kind == TokWord && strings.EqualFold(t.Text, kw)
}

func isWordStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordPart(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// Lex splits SQL text into tokens. It never fails: unrecognized bytes
// become single-character operator tokens and flow through untouched.
func Lex(sql string) []Token {
	var toks []Token
	i := 0
	n := len(sql)
	for i < n {
		c := sql[i]
		switch {
		case isSpace(c):
			j := i
			for j < n && isSpace(sql[j]) {
				j++
			}
			toks = append(toks, Token{TokSpace, sql[i:j]})
			i = j

		case c == '-' && i+1 < n && sql[i+1] == '-':
			j := i
			for j < n && sql[j] != '\n' {
				j++
			}
			toks = append(toks, Token{TokComment, sql[i:j]})
			i = j

		case c == '/' && i+1 < n && sql[i+1] == '*':
			j := i + 2
			for j+1 < n && !(sql[j] == '*' && sql[j+1] == '/') {
				j++
			}
			if j+1 < n {
				j += 2
			} else {
				j = n
			}
			toks = append(toks, Token{TokComment, sql[i:j]})
			i = j

		case c == '\'':
			j := i + 1
			for j < n {
				if sql[j] == '\'' {
					if j+1 < n && sql[j+1] == '\'' {
						j += 2
						continue
					}
					j++
					break
				}
				j++
			}
			toks = append(toks, Token{TokString, sql[i:j]})
			i = j

		case c == '"':
			j := i + 1
			for j < n {
				if sql[j] == '"' {
					if j+1 < n && sql[j+1] == '"' {
						j += 2
						continue
					}
					j++
					break
				}
				j++
			}
			toks = append(toks, Token{TokQuoted, sql[i:j]})
			i = j

		case isDigit(c) || (c == '.' && i+1 < n && isDigit(sql[i+1])):
			j := i
			seenDot := false
			for j < n && (isDigit(sql[j]) || (sql[j] == '.' && !seenDot)) {
				if sql[j] == '.' {
					seenDot = true
				}
				j++
			}
			// exponent part
			if j < n && (sql[j] == 'e' || sql[j] == 'E') {
				k := j + 1
				if k < n && (sql[k] == '+' || sql[k] == '-') {
					k++
				}
				if k < n && isDigit(sql[k]) {
					for k < n && isDigit(sql[k]) {
						k++
					}
					j = k
				}
			}
			toks = append(toks, Token{TokNumber, sql[i:j]})
			i = j

		case isWordStart(c):
			j := i
			for j < n && isWordPart(sql[j]) {
				j++
			}
			toks = append(toks, Token{TokWord, sql[i:j]})
			i = j

		default:
			// two-character operators stay whole for readability
			if i+1 < n {
				pair := sql[i : i+2]
				switch pair {
				case "::", "<=", ">=", "<>", "!=", "||", "=>":
					toks = append(toks, Token{TokOp, pair})
					i += 2
					continue
				}
			}
			toks = append(toks, Token{TokOp, string(c)})
			i++
		}
	}
	return toks
}

// Render concatenates token text back into SQL.
func Render(toks []Token) string {
	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t.Text)
	}
	return b.String()
}

// nextSig returns the index of the next significant token at or after i,
// skipping whitespace and comments, or -1.
func nextSig(toks []Token, i int) int {
	for ; i < len(toks); i++ {
		if toks[i].Kind != TokSpace && toks[i].Kind != TokComment {
			return i
		}
	}
	return -1
}

// prevSig returns the index of the previous significant token before i,
// or -1.
func prevSig(toks []Token, i int) int {
	for i--; i >= 0; i-- {
		if toks[i].Kind != TokSpace && toks[i].Kind != TokComment {
			return i
		}
	}
	return -1
}

// Significant strips whitespace and comment tokens. Directive parsing
// works on the significant stream.
func Significant(toks []Token) []Token {
	out := make([]Token, 0, len(toks))
	for _, t := range toks {
		if t.Kind != TokSpace && t.Kind != TokComment {
			out = append(out, t)
		}
	}
	return out
}

// matchParen returns the index of the ')' balancing the '(' at open, or
// -1 when unbalanced.
func matchParen(toks []Token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		if toks[i].Kind != TokOp {
			continue
		}
		switch toks[i].Text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitArgs splits the tokens between '(' at open and its matching ')'
// into top-level comma-separated argument slices. The returned arg
// slices are trimmed of surrounding whitespace tokens.
func splitArgs(toks []Token, open, close int) [][]Token {
	var args [][]Token
	start := open + 1
	depth := 0
	for i := open + 1; i < close; i++ {
		if toks[i].Kind == TokOp {
			switch toks[i].Text {
			case "(":
				depth++
			case ")":
				depth--
			case ",":
				if depth == 0 {
					args = append(args, trimSpace(toks[start:i]))
					start = i + 1
				}
			}
		}
	}
	if start <= close {
		last := trimSpace(toks[start:close])
		if len(last) > 0 || len(args) > 0 {
			args = append(args, last)
		}
	}
	return args
}

func trimSpace(toks []Token) []Token {
	lo, hi := 0, len(toks)
	for lo < hi && (toks[lo].Kind == TokSpace || toks[lo].Kind == TokComment) {
		lo++
	}
	for hi > lo && (toks[hi-1].Kind == TokSpace || toks[hi-1].Kind == TokComment) {
		hi--
	}
	return toks[lo:hi]
}

func word(text string) Token  { return Token{TokWord, text} }
func op(text string) Token    { return Token{TokOp, text} }
func space() Token            { return Token{TokSpace, " "} }
func strTok(text string) Token { return Token{TokString, text} }
