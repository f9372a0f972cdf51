package engine

import "strings"

// SnowflakeType maps a DuckDB column type to the type name Snowflake
// reports in result metadata. Drivers key their value conversion off
// these names.
func SnowflakeType(duckType string) string {
	t := strings.ToUpper(duckType)
	// strip precision arguments, DECIMAL(18,3) and friends
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	switch t {
	case "TINYINT", "SMALLINT", "INTEGER", "BIGINT", "HUGEINT",
		"UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT", "DECIMAL":
		return "FIXED"
	case "FLOAT", "DOUBLE", "REAL":
		return "REAL"
	case "VARCHAR", "CHAR", "BPCHAR", "STRING":
		return "TEXT"
	case "BOOLEAN":
		return "BOOLEAN"
	case "DATE":
		return "DATE"
	case "TIME":
		return "TIME"
	case "TIMESTAMP", "DATETIME":
		return "TIMESTAMP_NTZ"
	case "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE":
		return "TIMESTAMP_TZ"
	case "JSON":
		return "VARIANT"
	case "BLOB", "BYTEA":
		return "BINARY"
	default:
		if strings.HasSuffix(t, "[]") || strings.HasPrefix(t, "LIST") {
			return "ARRAY"
		}
		if strings.HasPrefix(t, "STRUCT") || strings.HasPrefix(t, "MAP") {
			return "OBJECT"
		}
		return "TEXT"
	}
}

// QuoteIdent double-quotes an identifier for engine SQL.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// SchemaName builds the engine schema holding one catalog
// database.schema pair. DuckDB has a single database, so the pair is
// flattened into one schema name.
func SchemaName(database, schema string) string {
	return database + "_" + schema
}

// RelationRef renders a fully qualified, quoted engine relation.
func RelationRef(schemaName, relation string) string {
	return QuoteIdent(schemaName) + "." + QuoteIdent(relation)
}
