package schema

import (
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/src-d/go-errors.v1"

	"github.com/Konsultn-Engineering/stmtbind/codec"
)

var (
	// ErrPropertyNotFound is returned when a path segment names nothing: a
	// missing map key, an unknown field or an index out of range.
	ErrPropertyNotFound = errors.NewKind("property %s not found")
	// ErrPropertyInvalid is returned when a path cannot be navigated at all.
	ErrPropertyInvalid = errors.NewKind("property %s is invalid: %s")
)

// ResolveProperty walks path from root. Struct fields are addressed by column
// or Go field name, maps by string key and slices or arrays by decimal index.
// Pointers and interfaces are dereferenced on the way. The value at the end
// of the path is returned as is, typed nil pointers included; a nil value in
// the middle is invalid. When the last segment is a struct field whose tag
// declares a type, that type id is returned with the value.
func (c *Context) ResolveProperty(root any, path []string) (any, codec.TypeID, error) {
	var declared codec.TypeID
	cur := reflect.ValueOf(root)
	for i, seg := range path {
		at := strings.Join(path[:i+1], ".")
		cur = indirect(cur)
		if !cur.IsValid() {
			return nil, "", ErrPropertyInvalid.New(at, "nil value before "+seg)
		}
		declared = ""

		switch cur.Kind() {
		case reflect.Struct:
			meta, err := c.Introspect(cur.Type())
			if err != nil {
				return nil, "", ErrPropertyInvalid.New(at, err.Error())
			}
			fm, ok := meta.Property(seg)
			if !ok {
				return nil, "", ErrPropertyNotFound.New(at)
			}
			cur = cur.FieldByIndex(fm.Index)
			declared = fm.TypeID
		case reflect.Map:
			if cur.Type().Key().Kind() != reflect.String {
				return nil, "", ErrPropertyInvalid.New(at, "map key type "+cur.Type().Key().String()+" is not a string")
			}
			v := cur.MapIndex(reflect.ValueOf(seg).Convert(cur.Type().Key()))
			if !v.IsValid() {
				return nil, "", ErrPropertyNotFound.New(at)
			}
			cur = v
		case reflect.Slice, reflect.Array:
			n, err := strconv.Atoi(seg)
			if err != nil {
				return nil, "", ErrPropertyInvalid.New(at, "index "+seg+" is not an integer")
			}
			if n < 0 || n >= cur.Len() {
				return nil, "", ErrPropertyNotFound.New(at)
			}
			cur = cur.Index(n)
		default:
			return nil, "", ErrPropertyInvalid.New(at, "cannot navigate into "+cur.Kind().String())
		}
	}

	if !cur.IsValid() {
		return nil, declared, nil
	}
	if cur.Kind() == reflect.Interface {
		if cur.IsNil() {
			return nil, declared, nil
		}
		cur = cur.Elem()
	}
	if !cur.CanInterface() {
		return nil, "", ErrPropertyInvalid.New(strings.Join(path, "."), "unexported value")
	}
	return cur.Interface(), declared, nil
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}
