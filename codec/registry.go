package codec

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/Konsultn-Engineering/stmtbind/wire"
)

var bytesType = reflect.TypeOf([]byte(nil))

// Builder collects codecs before they are frozen into a Registry.
type Builder struct {
	codecs map[TypeID]*Codec
	loc    *time.Location
	errs   []error
}

// NewBuilder returns a builder preloaded with the builtin codecs.
func NewBuilder() *Builder {
	return &Builder{
		codecs: make(map[TypeID]*Codec),
		loc:    time.UTC,
	}
}

// Location sets the time zone used to encode and decode temporal values.
func (b *Builder) Location(loc *time.Location) *Builder {
	if loc != nil {
		b.loc = loc
	}
	return b
}

// Register adds application codecs. Registering an id twice is an error
// reported by Build; a registered id replaces the builtin of the same name.
func (b *Builder) Register(codecs ...*Codec) *Builder {
	for _, c := range codecs {
		switch {
		case c == nil || c.ID == "":
			b.errs = append(b.errs, fmt.Errorf("codec: missing type id"))
		case b.codecs[c.ID] != nil:
			b.errs = append(b.errs, fmt.Errorf("codec: %s registered twice", c.ID))
		case c.Repr == "" && (c.Encode == nil || c.Decode == nil):
			b.errs = append(b.errs, fmt.Errorf("codec: %s needs both encode and decode", c.ID))
		case c.Repr != "" && (c.ToRepr == nil || c.FromRepr == nil):
			b.errs = append(b.errs, fmt.Errorf("codec: %s needs both representation mappings", c.ID))
		default:
			b.codecs[c.ID] = c
		}
	}
	return b
}

// Build freezes the builder. The returned registry is read-only and safe for
// concurrent use.
func (b *Builder) Build() (*Registry, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	r := &Registry{
		loc:    b.loc,
		byID:   make(map[TypeID]*Codec),
		byType: make(map[reflect.Type]TypeID),
		byKind: make(map[reflect.Kind]TypeID),
	}
	for _, c := range builtins(b.loc) {
		r.byID[c.ID] = c
	}
	for id, c := range b.codecs {
		r.byID[id] = c
	}
	for id, c := range r.byID {
		if c.Repr != "" && r.byID[c.Repr] == nil {
			return nil, ErrUnsupportedType.New(fmt.Sprintf("%s (representation of %s)", c.Repr, id))
		}
	}

	// Builtins first so application codecs for the same Go type win.
	for _, c := range builtins(b.loc) {
		r.index(r.byID[c.ID])
	}
	for _, id := range sortedIDs(b.codecs) {
		r.index(b.codecs[id])
	}
	return r, nil
}

func sortedIDs(m map[TypeID]*Codec) []TypeID {
	ids := make([]TypeID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Registry maps TypeIDs and Go types to codecs.
type Registry struct {
	loc    *time.Location
	byID   map[TypeID]*Codec
	byType map[reflect.Type]TypeID
	byKind map[reflect.Kind]TypeID
}

func (r *Registry) index(c *Codec) {
	if c == nil || c.GoType == nil {
		return
	}
	r.byType[c.GoType] = c.ID
	// Only builtins whose Go type is unnamed act as kind fallbacks.
	if c.GoType.Name() == c.GoType.Kind().String() {
		if _, ok := r.byKind[c.GoType.Kind()]; !ok {
			r.byKind[c.GoType.Kind()] = c.ID
		}
	}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry of builtin codecs.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := NewBuilder().Build()
		if err != nil {
			panic(err)
		}
		defaultRegistry = reg
	})
	return defaultRegistry
}

// Lookup returns the codec registered for id.
func (r *Registry) Lookup(id TypeID) (*Codec, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// Location returns the time zone temporal values are encoded and decoded in.
func (r *Registry) Location() *time.Location {
	return r.loc
}

// IDs returns the registered type ids in sorted order.
func (r *Registry) IDs() []TypeID {
	return sortedIDs(r.byID)
}

// TypeFor returns the TypeID used for values of Go type t. Exact type
// matches win; named types fall back to the codec of their kind.
func (r *Registry) TypeFor(t reflect.Type) (TypeID, bool) {
	if t == nil {
		return "", false
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if id, ok := r.byType[t]; ok {
		return id, true
	}
	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		return TypeBytes, true
	}
	if t.Kind() == reflect.Interface {
		return TypeAny, true
	}
	id, ok := r.byKind[t.Kind()]
	return id, ok
}

// TypeOf returns the declared TypeID of v: the Type of a Value, otherwise
// the id registered for its dynamic Go type.
func (r *Registry) TypeOf(v any) (TypeID, bool) {
	switch x := v.(type) {
	case Value:
		return x.Type, x.Type != ""
	case *Value:
		if x != nil {
			return x.Type, x.Type != ""
		}
		return "", false
	case nil:
		return TypeAny, true
	}
	return r.TypeFor(reflect.TypeOf(v))
}

// EncodeValue encodes v using its declared TypeID.
func (r *Registry) EncodeValue(v any) (wire.Binding, error) {
	id, ok := r.TypeOf(v)
	if !ok {
		return wire.Binding{}, ErrUnsupportedType.New(fmt.Sprintf("%T", v))
	}
	return r.Encode(id, v)
}

// Encode encodes v with the codec registered for id. Absent values (nil,
// nil pointers and null Values) produce a null binding carrying the codec's
// tag.
func (r *Registry) Encode(id TypeID, v any) (wire.Binding, error) {
	switch x := v.(type) {
	case Value:
		if id == TypeAny && x.Type != "" {
			id = x.Type
		}
		v = x.Data
	case *Value:
		if x == nil {
			v = nil
			break
		}
		if id == TypeAny && x.Type != "" {
			id = x.Type
		}
		v = x.Data
	}

	rv := reflect.ValueOf(v)
	for rv.IsValid() && (rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			rv = reflect.Value{}
			break
		}
		rv = rv.Elem()
	}
	if rv.IsValid() && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Map) && rv.IsNil() {
		rv = reflect.Value{}
	}

	if id == TypeAny {
		if !rv.IsValid() {
			return wire.NullBinding(wire.TypeNull, false), nil
		}
		found, ok := r.TypeFor(rv.Type())
		if !ok || found == TypeAny {
			return wire.Binding{}, ErrUnsupportedType.New(rv.Type().String())
		}
		id = found
	}

	c, ok := r.byID[id]
	if !ok {
		return wire.Binding{}, ErrUnsupportedType.New(string(id))
	}
	if c.Repr != "" {
		repr, ok := r.byID[c.Repr]
		if !ok {
			return wire.Binding{}, ErrUnsupportedType.New(string(c.Repr))
		}
		if !rv.IsValid() {
			return wire.NullBinding(repr.Wire, repr.Unsigned), nil
		}
		val, err := r.coerce(c, rv)
		if err != nil {
			return wire.Binding{}, err
		}
		mapped, err := c.ToRepr(val)
		if err != nil {
			return wire.Binding{}, err
		}
		return r.Encode(c.Repr, mapped)
	}
	if !rv.IsValid() {
		return wire.NullBinding(c.Wire, c.Unsigned), nil
	}
	val, err := r.coerce(c, rv)
	if err != nil {
		return wire.Binding{}, err
	}
	return c.Encode(val)
}

// coerce converts rv to the codec's Go type when the types differ but are
// convertible, as for named string or integer types.
func (r *Registry) coerce(c *Codec, rv reflect.Value) (any, error) {
	if c.GoType == nil || rv.Type() == c.GoType {
		return rv.Interface(), nil
	}
	if c.GoType.Kind() == reflect.Interface {
		return rv.Interface(), nil
	}
	if rv.Kind() == c.GoType.Kind() && rv.Type().ConvertibleTo(c.GoType) {
		return rv.Convert(c.GoType).Interface(), nil
	}
	if c.GoType == bytesType && rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return rv.Bytes(), nil
	}
	if rv.Kind() == reflect.String && c.GoType.Kind() == reflect.Slice && c.GoType.Elem().Kind() == reflect.Uint8 {
		return rv.Convert(c.GoType).Interface(), nil
	}
	if out, ok := losslessNumeric(rv, c.GoType); ok {
		return out.Interface(), nil
	}
	return nil, ErrConversion.New(rv.Type().String(), c.ID, "incompatible Go type")
}

func numericClass(k reflect.Kind) int {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return 1
	case reflect.Float32, reflect.Float64:
		return 2
	default:
		return 0
	}
}

// losslessNumeric converts between integer types, or between float types,
// when the value survives the round trip unchanged.
func losslessNumeric(rv reflect.Value, to reflect.Type) (reflect.Value, bool) {
	class := numericClass(rv.Kind())
	if class == 0 || class != numericClass(to.Kind()) {
		return reflect.Value{}, false
	}
	if rv.CanInt() && rv.Int() < 0 {
		switch to.Kind() {
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return reflect.Value{}, false
		}
	}
	out := rv.Convert(to)
	if out.Convert(rv.Type()).Interface() != rv.Interface() {
		return reflect.Value{}, false
	}
	if out.CanInt() && rv.CanUint() && out.Int() < 0 {
		return reflect.Value{}, false
	}
	return out, true
}

// Decode decodes one column buffer into the Go type of id. A null column
// decodes to nil unless the codec says otherwise. The result never aliases
// buf.
func (r *Registry) Decode(col wire.Column, buf []byte, null bool, id TypeID) (any, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, ErrUnsupportedType.New(string(id))
	}
	if null {
		if c.DecodeNull != nil {
			return c.DecodeNull()
		}
		return nil, nil
	}
	if c.Repr != "" {
		repr, err := r.Decode(col, buf, false, c.Repr)
		if err != nil {
			return nil, err
		}
		return c.FromRepr(repr)
	}
	return c.Decode(col, buf)
}
