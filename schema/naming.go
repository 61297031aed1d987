package schema

import (
	"strings"
	"unicode"
)

// NamingStrategy converts Go field names to column names for fields that do
// not name their column explicitly.
type NamingStrategy interface {
	ColumnName(fieldName string) string
}

// =========================================================================
// Column Naming Strategies
// =========================================================================

// ColumnNamingType represents different column naming conventions.
type ColumnNamingType int

const (
	ColumnSnakeCase  ColumnNamingType = iota // user_id, first_name, created_at
	ColumnCamelCase                          // userId, firstName, createdAt
	ColumnPascalCase                         // UserId, FirstName, CreatedAt
	ColumnVerbatim                           // UserID, FirstName, CreatedAt
)

type columnNamingStrategy struct {
	namingType ColumnNamingType
}

// NewNamingStrategy returns the strategy for namingType.
func NewNamingStrategy(namingType ColumnNamingType) NamingStrategy {
	return columnNamingStrategy{namingType: namingType}
}

// DefaultNamingStrategy returns the snake_case strategy.
func DefaultNamingStrategy() NamingStrategy {
	return NewNamingStrategy(ColumnSnakeCase)
}

func (c columnNamingStrategy) ColumnName(fieldName string) string {
	switch c.namingType {
	case ColumnCamelCase:
		return toCamelCase(fieldName)
	case ColumnPascalCase:
		return toPascalCase(fieldName)
	case ColumnVerbatim:
		return fieldName
	default:
		return toSnakeCase(fieldName)
	}
}

// =========================================================================
// Core Conversion Functions
// =========================================================================

var initialisms = map[string]string{
	"ID":     "id",
	"UUID":   "uuid",
	"ULID":   "ulid",
	"URL":    "url",
	"API":    "api",
	"JSON":   "json",
	"SQL":    "sql",
	"OAuth":  "o_auth",
	"OAuth2": "o_auth2",
}

// toSnakeCase converts any naming convention to snake_case. Runs of capitals
// are kept together: UserID -> user_id, HTTPServer -> http_server.
func toSnakeCase(name string) string {
	if name == "" {
		return ""
	}
	if s, ok := initialisms[name]; ok {
		return s
	}
	if strings.Contains(name, "_") && !hasUpperCase(name) {
		return name
	}

	var result strings.Builder
	result.Grow(len(name) + 4)

	runes := []rune(name)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			if unicode.IsLower(prev) || unicode.IsDigit(prev) ||
				(unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])) {
				result.WriteByte('_')
			}
		}
		result.WriteRune(unicode.ToLower(r))
	}
	return result.String()
}

func toCamelCase(name string) string {
	pascal := toPascalCase(name)
	if pascal == "" {
		return ""
	}
	r := []rune(pascal)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func toPascalCase(name string) string {
	var result strings.Builder
	for _, part := range strings.Split(toSnakeCase(name), "_") {
		if part == "" {
			continue
		}
		r := []rune(part)
		r[0] = unicode.ToUpper(r[0])
		result.WriteString(string(r))
	}
	return result.String()
}

func hasUpperCase(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}
