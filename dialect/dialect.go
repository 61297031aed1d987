// Package dialect describes the SQL flavours statements are prepared for:
// how positional placeholders are spelled and how values are rendered for
// diagnostics.
package dialect

type Dialect interface {
	Name() string
	QuoteIdentifier(name string) string
	// Placeholder returns the positional marker for the n-th parameter,
	// counting from 1.
	Placeholder(n int) string
	// BackslashEscapes reports whether a backslash escapes the next
	// character inside quoted literals.
	BackslashEscapes() bool
	// RenderValue renders v as a literal. It is used for logging only; bound
	// statements never embed rendered values.
	RenderValue(v any) string
}

// ByName returns the dialect registered under name.
func ByName(name string) (Dialect, bool) {
	switch name {
	case "mysql", "":
		return NewMySQLDialect(), true
	case "tidb":
		return NewTiDBDialect(), true
	case "postgres", "postgresql", "pgx":
		return NewPostgresDialect(), true
	default:
		return nil, false
	}
}
