// Package sqlutil provides SQL utility functions.
package sqlutil

import "strings"

// QuoteIdentifier quotes a SQL identifier (table name, column name, etc.)
// with backticks and escapes any backticks within the identifier.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// QualifyColumn returns a fully quoted qualifier.column reference.
// The qualifier is a table name or alias.
func QualifyColumn(qualifier, column string) string {
	return QuoteIdentifier(qualifier) + "." + QuoteIdentifier(column)
}

// AliasColumn returns a quoted "expr AS alias" select expression.
func AliasColumn(expr, alias string) string {
	return expr + " AS " + QuoteIdentifier(alias)
}
