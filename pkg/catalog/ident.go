package catalog

import "strings"

// Normalize folds an identifier the way Snowflake does: unquoted names are
// stored upper-case, quoted names keep their exact case with the doubled
// quote escape collapsed.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	if len(name) >= 2 && name[0] == '"' && name[len(name)-1] == '"' {
		inner := name[1 : len(name)-1]
		return strings.ReplaceAll(inner, `""`, `"`)
	}
	return strings.ToUpper(name)
}

// Requote turns a normalized key back into reference text that
// Normalize maps to the same key. Keys that look like plain upper-case
// identifiers pass through; anything else gets quoted.
func Requote(key string) string {
	plain := key != ""
	for i := 0; i < len(key); i++ {
		c := key[i]
		ok := c == '_' || (c >= 'A' && c <= 'Z') || (i > 0 && c >= '0' && c <= '9')
		if !ok {
			plain = false
			break
		}
	}
	if plain {
		return key
	}
	return `"` + strings.ReplaceAll(key, `"`, `""`) + `"`
}

// FQN joins already-normalized parts into a fully qualified name.
func FQN(parts ...string) string {
	return strings.Join(parts, ".")
}

// SplitQualified splits a dotted reference into its parts, respecting
// quoted segments. A malformed reference is returned as a single part.
func SplitQualified(ref string) []string {
	var parts []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		switch {
		case c == '"':
			inQuote = !inQuote
			cur.WriteByte(c)
		case c == '.' && !inQuote:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	parts = append(parts, cur.String())
	return parts
}

// ResolveParts applies the session context to a 1-, 2- or 3-part object
// reference and returns normalized database, schema and object names.
func ResolveParts(parts []string, curDB, curSchema string) (db, schema, obj string) {
	switch len(parts) {
	case 1:
		return Normalize(curDB), Normalize(curSchema), Normalize(parts[0])
	case 2:
		return Normalize(curDB), Normalize(parts[0]), Normalize(parts[1])
	default:
		n := len(parts)
		return Normalize(parts[n-3]), Normalize(parts[n-2]), Normalize(parts[n-1])
	}
}
