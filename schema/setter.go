package schema

import (
	"reflect"
)

// Field returns the field fm of the addressable struct value obj.
func (fm *FieldMeta) Field(obj reflect.Value) reflect.Value {
	return obj.FieldByIndex(fm.Index)
}

// Set stores v in the field fm of the addressable struct value obj. A nil v
// stores the zero value. Pointer fields are allocated as needed, and values
// of the same kind are converted to the field type.
func (fm *FieldMeta) Set(obj reflect.Value, v any) error {
	return Assign(fm.Field(obj), v, fm.Name)
}

// Assign stores v in target, which must be settable.
func Assign(target reflect.Value, v any, name string) error {
	if v == nil {
		target.SetZero()
		return nil
	}
	val := reflect.ValueOf(v)
	if val.Type().AssignableTo(target.Type()) {
		target.Set(val)
		return nil
	}
	if target.Kind() == reflect.Pointer {
		elem := reflect.New(target.Type().Elem())
		if err := Assign(elem.Elem(), v, name); err != nil {
			return err
		}
		target.Set(elem)
		return nil
	}
	if val.Kind() == reflect.Pointer && !val.IsNil() {
		return Assign(target, val.Elem().Interface(), name)
	}
	if val.Kind() == target.Kind() && val.Type().ConvertibleTo(target.Type()) {
		target.Set(val.Convert(target.Type()))
		return nil
	}
	return ErrFieldAssign.New(val.Type(), name, target.Type())
}
