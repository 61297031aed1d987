package result

import (
	"reflect"

	"github.com/Konsultn-Engineering/stmtbind/schema"
)

// Builder creates and fills output containers.
//
// CreateEmpty returns a new container for Go type t: a pointer to a new
// struct, a pointer to an empty slice or an empty map. Append adds an item
// to a slice container, SetField stores a struct field (by Go field name) or
// a map entry (by key), and Finish returns the value handed to the caller.
type Builder interface {
	CreateEmpty(t reflect.Type) (any, error)
	Append(container any, item any) error
	SetField(obj any, field string, value any) error
	Finish(container any) any
}

// ReflectBuilder is the default Builder.
type ReflectBuilder struct {
	schema *schema.Context
}

// NewReflectBuilder returns a builder resolving struct fields through sc.
func NewReflectBuilder(sc *schema.Context) *ReflectBuilder {
	return &ReflectBuilder{schema: sc}
}

func (b *ReflectBuilder) CreateEmpty(t reflect.Type) (any, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct:
		return reflect.New(t).Interface(), nil
	case reflect.Slice:
		p := reflect.New(t)
		p.Elem().Set(reflect.MakeSlice(t, 0, 8))
		return p.Interface(), nil
	case reflect.Map:
		return reflect.MakeMap(t).Interface(), nil
	default:
		return nil, ErrShape.New(t, "not a container type")
	}
}

func (b *ReflectBuilder) Append(container any, item any) error {
	slice := reflect.ValueOf(container).Elem()
	elem := reflect.New(slice.Type().Elem()).Elem()
	if err := b.assignItem(elem, item); err != nil {
		return err
	}
	slice.Set(reflect.Append(slice, elem))
	return nil
}

// assignItem stores item in elem, dereferencing struct pointers produced by
// object rows when the collection holds struct values.
func (b *ReflectBuilder) assignItem(elem reflect.Value, item any) error {
	if item != nil {
		iv := reflect.ValueOf(item)
		if iv.Kind() == reflect.Pointer && !iv.IsNil() && iv.Elem().Type() == elem.Type() {
			elem.Set(iv.Elem())
			return nil
		}
	}
	return schema.Assign(elem, item, "item")
}

func (b *ReflectBuilder) SetField(obj any, field string, value any) error {
	v := reflect.ValueOf(obj)
	if v.Kind() == reflect.Map {
		elem := reflect.New(v.Type().Elem()).Elem()
		if err := schema.Assign(elem, value, field); err != nil {
			return err
		}
		v.SetMapIndex(reflect.ValueOf(field), elem)
		return nil
	}

	s := v.Elem()
	meta, err := b.schema.Introspect(s.Type())
	if err != nil {
		return err
	}
	fm, ok := meta.FieldMap[field]
	if !ok {
		return ErrSchemaMismatch.New(field, meta.Name)
	}
	return fm.Set(s, value)
}

func (b *ReflectBuilder) Finish(container any) any {
	v := reflect.ValueOf(container)
	if v.Kind() == reflect.Pointer && v.Elem().Kind() == reflect.Slice {
		return v.Elem().Interface()
	}
	return container
}
