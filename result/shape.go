package result

import (
	"fmt"
	"reflect"

	"github.com/Konsultn-Engineering/stmtbind/codec"
)

// Shape describes the Go value a result is mapped into. The set of shapes is
// closed: Object, Collection, Map and Scalar.
type Shape interface {
	fmt.Stringer
	shape()
}

// Object maps one row onto a struct. Type may be the struct type or a
// pointer to it; ReadOne always returns a pointer.
type Object struct {
	Type reflect.Type
}

// Collection is an ordered collection. ReadOne decodes every column of the
// current row as Of, which must then be a Scalar; ReadMany produces one Of
// item per row.
type Collection struct {
	Of Shape
}

// Map maps the current row to a map keyed by column name.
type Map struct {
	Value codec.TypeID
}

// Scalar is a single decoded value.
type Scalar struct {
	Type codec.TypeID
}

func (Object) shape()     {}
func (Collection) shape() {}
func (Map) shape()        {}
func (Scalar) shape()     {}

func (s Object) String() string     { return "object " + fmt.Sprint(s.Type) }
func (s Collection) String() string { return "collection of " + fmt.Sprint(s.Of) }
func (s Map) String() string        { return "map of " + string(s.Value) }
func (s Scalar) String() string     { return string(s.Type) }

// ObjectOf returns the Object shape of T.
func ObjectOf[T any]() Object {
	return Object{Type: reflect.TypeOf((*T)(nil)).Elem()}
}

// CollectionOf returns a collection of of.
func CollectionOf(of Shape) Collection {
	return Collection{Of: of}
}

// structType returns the struct type of an Object shape.
func (s Object) structType() (reflect.Type, error) {
	t := s.Type
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, ErrShape.New(s, "not a struct")
	}
	return t, nil
}

var anyType = reflect.TypeOf((*any)(nil)).Elem()

// goType returns the Go type of one item of shape s.
func goType(reg *codec.Registry, s Shape) (reflect.Type, error) {
	switch s := s.(type) {
	case Object:
		if _, err := s.structType(); err != nil {
			return nil, err
		}
		return s.Type, nil
	case Scalar:
		return scalarType(reg, s.Type)
	case Map:
		elem, err := scalarType(reg, s.Value)
		if err != nil {
			return nil, err
		}
		return reflect.MapOf(reflect.TypeOf(""), elem), nil
	case Collection:
		if s.Of == nil {
			return nil, ErrShape.New(s, "missing item shape")
		}
		elem, err := goType(reg, s.Of)
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(elem), nil
	default:
		return nil, ErrShape.New(fmt.Sprint(s), "unknown shape")
	}
}

func scalarType(reg *codec.Registry, id codec.TypeID) (reflect.Type, error) {
	c, ok := reg.Lookup(id)
	if !ok {
		return nil, codec.ErrUnsupportedType.New(string(id))
	}
	if c.GoType == nil {
		return anyType, nil
	}
	return c.GoType, nil
}
