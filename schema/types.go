package schema

import (
	"reflect"
	"strings"

	"github.com/Konsultn-Engineering/stmtbind/codec"
)

// EntityMeta describes how a struct type maps to columns.
type EntityMeta struct {
	Type      reflect.Type
	Name      string
	Fields    []*FieldMeta
	FieldMap  map[string]*FieldMeta // Go field name -> FieldMeta
	ColumnMap map[string]*FieldMeta // column name -> FieldMeta
	// foldedMap is keyed by lower-cased column name.
	foldedMap     map[string]*FieldMeta
	caseSensitive bool
}

// FieldMeta describes one mapped struct field.
type FieldMeta struct {
	Name   string
	Column string
	Type   reflect.Type
	// TypeID is the codec type declared by the tag, empty when the type is
	// inferred from the Go type.
	TypeID     codec.TypeID
	SelectedBy string
	NotNull    bool
	Index      []int
	Tag        *ParsedTag
}

// Column returns the field mapped to column.
func (m *EntityMeta) Column(column string) (*FieldMeta, bool) {
	if fm, ok := m.ColumnMap[column]; ok {
		return fm, true
	}
	if m.caseSensitive {
		return nil, false
	}
	fm, ok := m.foldedMap[strings.ToLower(column)]
	return fm, ok
}

// Property returns the field addressed by name in a parameter path: the
// column name first, then the Go field name.
func (m *EntityMeta) Property(name string) (*FieldMeta, bool) {
	if fm, ok := m.Column(name); ok {
		return fm, true
	}
	fm, ok := m.FieldMap[name]
	return fm, ok
}
