package dialect

import (
	"fmt"
	"strconv"
)

type Postgres struct{}

func NewPostgresDialect() Dialect {
	return &Postgres{}
}

func (p Postgres) Name() string {
	return "postgres"
}

func (p Postgres) QuoteIdentifier(name string) string {
	return `"` + name + `"`
}

func (p Postgres) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// BackslashEscapes is false: with standard_conforming_strings only E'...'
// literals treat a backslash as an escape.
func (p Postgres) BackslashEscapes() bool {
	return false
}

func (Postgres) RenderValue(v any) string {
	if s, ok := renderCommon(v); ok {
		return s
	}
	return fmt.Sprintf("'\\x%x'::bytea", v) // hex bytea literal
}
