package dialect

import "fmt"

type MySQL struct{}

func NewMySQLDialect() Dialect {
	return &MySQL{}
}

func (m MySQL) Name() string {
	return "mysql"
}

func (m MySQL) QuoteIdentifier(name string) string {
	return "`" + name + "`"
}

func (m MySQL) Placeholder(n int) string {
	return "?"
}

func (m MySQL) BackslashEscapes() bool {
	return true
}

func (m MySQL) RenderValue(v any) string {
	if s, ok := renderCommon(v); ok {
		return s
	}
	return fmt.Sprintf("X'%x'", v)
}
