package wire

import (
	"fmt"

	"gopkg.in/src-d/go-errors.v1"
)

// ErrUnsupportedWireType is returned when a buffer cannot be produced or read
// for a protocol type code.
var ErrUnsupportedWireType = errors.NewKind("wire type %s: %s")

// Type is the protocol-level tag describing how the bytes of a bound
// parameter or a result column are laid out. Values match the MySQL binary
// protocol column type codes.
type Type uint8

const (
	TypeDecimal    Type = 0x00
	TypeTiny       Type = 0x01
	TypeShort      Type = 0x02
	TypeLong       Type = 0x03
	TypeFloat      Type = 0x04
	TypeDouble     Type = 0x05
	TypeNull       Type = 0x06
	TypeTimestamp  Type = 0x07
	TypeLongLong   Type = 0x08
	TypeInt24      Type = 0x09
	TypeDate       Type = 0x0a
	TypeTime       Type = 0x0b
	TypeDatetime   Type = 0x0c
	TypeYear       Type = 0x0d
	TypeVarchar    Type = 0x0f
	TypeBit        Type = 0x10
	TypeJSON       Type = 0xf5
	TypeNewDecimal Type = 0xf6
	TypeEnum       Type = 0xf7
	TypeSet        Type = 0xf8
	TypeTinyBlob   Type = 0xf9
	TypeMediumBlob Type = 0xfa
	TypeLongBlob   Type = 0xfb
	TypeBlob       Type = 0xfc
	TypeVarString  Type = 0xfd
	TypeString     Type = 0xfe
)

var typeNames = map[Type]string{
	TypeDecimal:    "DECIMAL",
	TypeTiny:       "TINY",
	TypeShort:      "SHORT",
	TypeLong:       "LONG",
	TypeFloat:      "FLOAT",
	TypeDouble:     "DOUBLE",
	TypeNull:       "NULL",
	TypeTimestamp:  "TIMESTAMP",
	TypeLongLong:   "LONGLONG",
	TypeInt24:      "INT24",
	TypeDate:       "DATE",
	TypeTime:       "TIME",
	TypeDatetime:   "DATETIME",
	TypeYear:       "YEAR",
	TypeVarchar:    "VARCHAR",
	TypeBit:        "BIT",
	TypeJSON:       "JSON",
	TypeNewDecimal: "NEWDECIMAL",
	TypeEnum:       "ENUM",
	TypeSet:        "SET",
	TypeTinyBlob:   "TINY_BLOB",
	TypeMediumBlob: "MEDIUM_BLOB",
	TypeLongBlob:   "LONG_BLOB",
	TypeBlob:       "BLOB",
	TypeVarString:  "VAR_STRING",
	TypeString:     "STRING",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(0x%02x)", uint8(t))
}

// Width returns the fixed byte width of integer and floating point types and
// zero for variable-length types.
func (t Type) Width() int {
	switch t {
	case TypeTiny:
		return 1
	case TypeShort, TypeYear:
		return 2
	case TypeLong, TypeInt24, TypeFloat:
		return 4
	case TypeLongLong, TypeDouble:
		return 8
	default:
		return 0
	}
}

// IsInteger reports whether t is transmitted as a fixed-width little-endian
// integer.
func (t Type) IsInteger() bool {
	switch t {
	case TypeTiny, TypeShort, TypeLong, TypeInt24, TypeLongLong, TypeYear:
		return true
	default:
		return false
	}
}

// IsBitset reports whether t is transmitted as a little-endian flag sequence
// of up to 8 bytes.
func (t Type) IsBitset() bool {
	return t == TypeBit || t == TypeSet
}

// IsText reports whether t carries character data.
func (t Type) IsText() bool {
	switch t {
	case TypeVarchar, TypeVarString, TypeString, TypeEnum:
		return true
	default:
		return false
	}
}

// IsBinary reports whether t carries an opaque byte payload.
func (t Type) IsBinary() bool {
	switch t {
	case TypeTinyBlob, TypeMediumBlob, TypeLongBlob, TypeBlob:
		return true
	default:
		return false
	}
}

// IsTemporal reports whether t uses one of the date/time layouts.
func (t Type) IsTemporal() bool {
	switch t {
	case TypeTimestamp, TypeDate, TypeDatetime, TypeTime:
		return true
	default:
		return false
	}
}
