package schema

import (
	"reflect"
	"strings"
)

// buildMeta constructs the column mapping of a struct type. Embedded structs
// are flattened; their fields are addressed through a multi-level index.
func (c *Context) buildMeta(t reflect.Type) (*EntityMeta, error) {
	meta := &EntityMeta{
		Type:          t,
		Name:          t.Name(),
		FieldMap:      make(map[string]*FieldMeta, t.NumField()),
		ColumnMap:     make(map[string]*FieldMeta, t.NumField()),
		foldedMap:     make(map[string]*FieldMeta, t.NumField()),
		caseSensitive: c.caseSensitive,
	}
	if err := c.collectFields(meta, t, nil); err != nil {
		return nil, err
	}
	for _, fm := range meta.Fields {
		if fm.SelectedBy == "" {
			continue
		}
		if _, ok := meta.FieldMap[fm.SelectedBy]; ok {
			continue
		}
		if _, ok := meta.Column(fm.SelectedBy); !ok {
			return nil, ErrInvalidTag.New(fm.Name, "selected_by names unknown field "+fm.SelectedBy)
		}
	}
	return meta, nil
}

func (c *Context) collectFields(meta *EntityMeta, t reflect.Type, prefix []int) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get(c.tagName)

		if f.Anonymous && tag == "" {
			ft := f.Type
			if ft.Kind() == reflect.Struct {
				if err := c.collectFields(meta, ft, appendIndex(prefix, i)); err != nil {
					return err
				}
				continue
			}
		}
		if !f.IsExported() {
			continue
		}

		parsedTag, err := c.parser.ParseTag(f.Name, tag)
		if err != nil {
			return err
		}
		if parsedTag.IsSkipped() {
			continue
		}

		fm := &FieldMeta{
			Name:       f.Name,
			Column:     parsedTag.ColumnName,
			Type:       f.Type,
			TypeID:     parsedTag.Type,
			SelectedBy: parsedTag.SelectedBy,
			NotNull:    parsedTag.NotNull,
			Index:      appendIndex(prefix, i),
			Tag:        parsedTag,
		}
		if _, dup := meta.ColumnMap[fm.Column]; dup {
			return ErrDuplicateColumn.New(meta.Name, fm.Column)
		}
		meta.Fields = append(meta.Fields, fm)
		meta.FieldMap[f.Name] = fm
		meta.ColumnMap[fm.Column] = fm
		folded := strings.ToLower(fm.Column)
		if _, taken := meta.foldedMap[folded]; !taken {
			meta.foldedMap[folded] = fm
		}
	}
	return nil
}

func appendIndex(prefix []int, i int) []int {
	idx := make([]int, len(prefix)+1)
	copy(idx, prefix)
	idx[len(prefix)] = i
	return idx
}
