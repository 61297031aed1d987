// Package codec converts between Go values and the byte layouts of the
// prepared-statement protocol. Every semantic type is identified by a TypeID
// and handled by a Codec holding its encode and decode halves; codecs are
// collected into an immutable Registry shared by serializers and decoders.
package codec

import (
	"reflect"

	"gopkg.in/src-d/go-errors.v1"

	"github.com/Konsultn-Engineering/stmtbind/wire"
)

var (
	// ErrUnsupportedType is returned when no codec is registered for a type.
	ErrUnsupportedType = errors.NewKind("unsupported type: %s")
	// ErrAllocation is returned when an encoded buffer would exceed the
	// configured size limit.
	ErrAllocation = errors.NewKind("binding of type %s needs %d bytes, limit is %d")
	// ErrConversion is returned when a value cannot be represented in the
	// requested type without overflow, truncation or loss of precision.
	ErrConversion = errors.NewKind("cannot convert %s to %s: %s")
	// ErrEnumDecode is returned when a decoded representation matches no
	// member of an enum or set.
	ErrEnumDecode = errors.NewKind("enum %s has no member for %v")
	// ErrEnumConstraint is returned when a null is decoded into a
	// non-nullable enum.
	ErrEnumConstraint = errors.NewKind("enum %s is not nullable")
)

// TypeID names a semantic value type. Builtin ids are the Type* constants;
// applications add their own through Builder.Register.
type TypeID string

const (
	TypeAny      TypeID = "any"
	TypeBool     TypeID = "bool"
	TypeInt8     TypeID = "int8"
	TypeInt16    TypeID = "int16"
	TypeInt32    TypeID = "int32"
	TypeInt64    TypeID = "int64"
	TypeInt      TypeID = "int"
	TypeUint8    TypeID = "uint8"
	TypeUint16   TypeID = "uint16"
	TypeUint32   TypeID = "uint32"
	TypeUint64   TypeID = "uint64"
	TypeUint     TypeID = "uint"
	TypeFloat32  TypeID = "float32"
	TypeFloat64  TypeID = "float64"
	TypeString   TypeID = "string"
	TypeBytes    TypeID = "bytes"
	TypeBits     TypeID = "bits"
	TypeDecimal  TypeID = "decimal"
	TypeUUID     TypeID = "uuid"
	TypeULID     TypeID = "ulid"
	TypeTime     TypeID = "time"
	TypeDuration TypeID = "duration"
	TypeJSON     TypeID = "json"
	TypeRawJSON  TypeID = "rawjson"
)

// Value is a dynamically typed value carrying its declared semantic type.
// A nil Data is a typed null.
type Value struct {
	Type TypeID
	Data any
}

// IsNull reports whether v holds no data.
func (v Value) IsNull() bool {
	return v.Data == nil
}

// Bits is a flag set transmitted with the BIT tag.
type Bits uint64

// Has reports whether every flag in mask is set.
func (b Bits) Has(mask Bits) bool {
	return b&mask == mask
}

// EncodeFunc encodes a non-null value whose dynamic type is the codec's
// GoType.
type EncodeFunc func(v any) (wire.Binding, error)

// DecodeFunc decodes a non-null column buffer. Implementations must copy
// out of buf: the buffer is reused by the next fetch.
type DecodeFunc func(col wire.Column, buf []byte) (any, error)

// Codec is the encode/decode pair for one TypeID.
type Codec struct {
	ID TypeID
	// GoType is the Go type produced by Decode and accepted by Encode.
	GoType reflect.Type
	// Wire and Unsigned form the tag used for null bindings.
	Wire     wire.Type
	Unsigned bool

	Encode EncodeFunc
	Decode DecodeFunc

	// DecodeNull, when set, decides what a null column decodes to. Without
	// it nulls decode to nil.
	DecodeNull func() (any, error)

	// Repr, when set, delegates the byte layout to another codec. ToRepr
	// and FromRepr translate between this codec's values and the
	// representation's values.
	Repr     TypeID
	ToRepr   func(v any) (any, error)
	FromRepr func(v any) (any, error)
}
