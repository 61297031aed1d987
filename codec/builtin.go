package codec

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/Konsultn-Engineering/stmtbind/wire"
)

// builtins returns the codecs every registry starts with. Temporal codecs
// use loc for both directions.
func builtins(loc *time.Location) []*Codec {
	return []*Codec{
		anyCodec(loc),
		boolCodec(),

		signedCodec(TypeInt8, reflect.TypeOf(int8(0)), wire.TypeTiny, 8, func(v any) int64 { return int64(v.(int8)) }, func(v int64) any { return int8(v) }),
		signedCodec(TypeInt16, reflect.TypeOf(int16(0)), wire.TypeShort, 16, func(v any) int64 { return int64(v.(int16)) }, func(v int64) any { return int16(v) }),
		signedCodec(TypeInt32, reflect.TypeOf(int32(0)), wire.TypeLong, 32, func(v any) int64 { return int64(v.(int32)) }, func(v int64) any { return int32(v) }),
		signedCodec(TypeInt64, reflect.TypeOf(int64(0)), wire.TypeLongLong, 64, func(v any) int64 { return v.(int64) }, func(v int64) any { return v }),
		signedCodec(TypeInt, reflect.TypeOf(int(0)), wire.TypeLongLong, strconv.IntSize, func(v any) int64 { return int64(v.(int)) }, func(v int64) any { return int(v) }),

		unsignedCodec(TypeUint8, reflect.TypeOf(uint8(0)), wire.TypeTiny, 8, func(v any) uint64 { return uint64(v.(uint8)) }, func(v uint64) any { return uint8(v) }),
		unsignedCodec(TypeUint16, reflect.TypeOf(uint16(0)), wire.TypeShort, 16, func(v any) uint64 { return uint64(v.(uint16)) }, func(v uint64) any { return uint16(v) }),
		unsignedCodec(TypeUint32, reflect.TypeOf(uint32(0)), wire.TypeLong, 32, func(v any) uint64 { return uint64(v.(uint32)) }, func(v uint64) any { return uint32(v) }),
		unsignedCodec(TypeUint64, reflect.TypeOf(uint64(0)), wire.TypeLongLong, 64, func(v any) uint64 { return v.(uint64) }, func(v uint64) any { return v }),
		unsignedCodec(TypeUint, reflect.TypeOf(uint(0)), wire.TypeLongLong, strconv.IntSize, func(v any) uint64 { return uint64(v.(uint)) }, func(v uint64) any { return uint(v) }),

		float32Codec(),
		float64Codec(),
		stringCodec(),
		bytesCodec(),
		bitsCodec(),
		decimalCodec(),
		uuidCodec(),
		ulidCodec(),
		timeCodec(loc),
		durationCodec(),
		jsonCodec(),
		rawJSONCodec(),
	}
}

// ===================
// INTEGERS
// ===================

func boolCodec() *Codec {
	return &Codec{
		ID:     TypeBool,
		GoType: reflect.TypeOf(false),
		Wire:   wire.TypeTiny,
		Encode: func(v any) (wire.Binding, error) {
			var b byte
			if v.(bool) {
				b = 1
			}
			return wire.Binding{Type: wire.TypeTiny, Buffer: []byte{b}}, nil
		},
		Decode: func(col wire.Column, buf []byte) (any, error) {
			if col.Type.IsText() {
				b, err := strconv.ParseBool(strings.TrimSpace(string(buf)))
				if err != nil {
					return nil, ErrConversion.New(describe(col), TypeBool, fmt.Sprintf("invalid boolean %q", buf))
				}
				return b, nil
			}
			n, err := readInteger(col, buf, TypeBool)
			if err != nil {
				return nil, err
			}
			return n.u != 0 || n.s != 0, nil
		},
	}
}

func signedCodec(id TypeID, goType reflect.Type, t wire.Type, bits int, widen func(any) int64, cast func(int64) any) *Codec {
	return &Codec{
		ID:     id,
		GoType: goType,
		Wire:   t,
		Encode: func(v any) (wire.Binding, error) {
			return wire.Binding{Type: t, Buffer: wire.PutInt(widen(v), t.Width())}, nil
		},
		Decode: signedDecoder(id, bits, cast),
	}
}

func unsignedCodec(id TypeID, goType reflect.Type, t wire.Type, bits int, widen func(any) uint64, cast func(uint64) any) *Codec {
	return &Codec{
		ID:       id,
		GoType:   goType,
		Wire:     t,
		Unsigned: true,
		Encode: func(v any) (wire.Binding, error) {
			return wire.Binding{Type: t, Unsigned: true, Buffer: wire.PutUint(widen(v), t.Width())}, nil
		},
		Decode: unsignedDecoder(id, bits, cast),
	}
}

func bitsCodec() *Codec {
	return &Codec{
		ID:       TypeBits,
		GoType:   reflect.TypeOf(Bits(0)),
		Wire:     wire.TypeBit,
		Unsigned: true,
		Encode: func(v any) (wire.Binding, error) {
			return wire.Binding{Type: wire.TypeBit, Unsigned: true, Buffer: wire.PutBits(uint64(v.(Bits)))}, nil
		},
		Decode: func(col wire.Column, buf []byte) (any, error) {
			n, err := readInteger(col, buf, TypeBits)
			if err != nil {
				return nil, err
			}
			v, err := toUnsigned(n, 64, col, TypeBits)
			return Bits(v), err
		},
	}
}

// ===================
// FLOATING POINT
// ===================

func float32Codec() *Codec {
	return &Codec{
		ID:     TypeFloat32,
		GoType: reflect.TypeOf(float32(0)),
		Wire:   wire.TypeFloat,
		Encode: func(v any) (wire.Binding, error) {
			return wire.Binding{Type: wire.TypeFloat, Buffer: wire.PutFloat32(v.(float32))}, nil
		},
		Decode: func(col wire.Column, buf []byte) (any, error) {
			f, err := readFloat(col, buf, TypeFloat32)
			if err != nil {
				return nil, err
			}
			narrowed := float32(f)
			if float64(narrowed) != f && !math.IsNaN(f) {
				return nil, ErrConversion.New(describe(col), TypeFloat32, fmt.Sprintf("precision loss for %v", f))
			}
			return narrowed, nil
		},
	}
}

func float64Codec() *Codec {
	return &Codec{
		ID:     TypeFloat64,
		GoType: reflect.TypeOf(float64(0)),
		Wire:   wire.TypeDouble,
		Encode: func(v any) (wire.Binding, error) {
			return wire.Binding{Type: wire.TypeDouble, Buffer: wire.PutFloat64(v.(float64))}, nil
		},
		Decode: func(col wire.Column, buf []byte) (any, error) {
			return readFloat(col, buf, TypeFloat64)
		},
	}
}

// ===================
// CHARACTER AND BINARY DATA
// ===================

func stringCodec() *Codec {
	return &Codec{
		ID:     TypeString,
		GoType: reflect.TypeOf(""),
		Wire:   wire.TypeVarString,
		Encode: func(v any) (wire.Binding, error) {
			s := v.(string)
			buf := make([]byte, len(s))
			copy(buf, s)
			if !wire.IsPrintable(buf) {
				return wire.Binding{Type: wire.TypeBlob, Buffer: buf}, nil
			}
			return wire.Binding{Type: wire.TypeVarString, Buffer: buf}, nil
		},
		Decode: func(col wire.Column, buf []byte) (any, error) {
			switch {
			case col.Type.IsInteger():
				n, err := readInteger(col, buf, TypeString)
				if err != nil {
					return nil, err
				}
				return n.String(), nil
			case col.Type == wire.TypeFloat || col.Type == wire.TypeDouble:
				f, err := wire.ReadFloat(col, buf)
				if err != nil {
					return nil, ErrConversion.Wrap(err, describe(col), TypeString, "unreadable float")
				}
				return strconv.FormatFloat(f, 'f', -1, 64), nil
			case col.Type == wire.TypeTime:
				d, err := wire.ReadDuration(buf)
				if err != nil {
					return nil, ErrConversion.Wrap(err, describe(col), TypeString, "unreadable time")
				}
				return wire.FormatDuration(d), nil
			case col.Type.IsTemporal():
				t, err := wire.ReadDatetime(buf, time.UTC)
				if err != nil {
					return nil, ErrConversion.Wrap(err, describe(col), TypeString, "unreadable datetime")
				}
				return t.Format(wire.DatetimeLayout), nil
			default:
				// string(buf) copies.
				return string(buf), nil
			}
		},
	}
}

func bytesCodec() *Codec {
	return &Codec{
		ID:     TypeBytes,
		GoType: bytesType,
		Wire:   wire.TypeBlob,
		Encode: func(v any) (wire.Binding, error) {
			b := v.([]byte)
			buf := make([]byte, len(b))
			copy(buf, b)
			return wire.Binding{Type: wire.TypeBlob, Buffer: buf}, nil
		},
		Decode: func(col wire.Column, buf []byte) (any, error) {
			out := make([]byte, len(buf))
			copy(out, buf)
			return out, nil
		},
	}
}

func decimalCodec() *Codec {
	return &Codec{
		ID:     TypeDecimal,
		GoType: reflect.TypeOf(decimal.Decimal{}),
		Wire:   wire.TypeNewDecimal,
		Encode: func(v any) (wire.Binding, error) {
			return wire.Binding{Type: wire.TypeNewDecimal, Buffer: []byte(v.(decimal.Decimal).String())}, nil
		},
		Decode: func(col wire.Column, buf []byte) (any, error) {
			switch {
			case col.Type.IsInteger() || col.Type.IsBitset():
				n, err := readInteger(col, buf, TypeDecimal)
				if err != nil {
					return nil, err
				}
				if n.unsigned {
					return decimal.NewFromUint64(n.u), nil
				}
				return decimal.NewFromInt(n.s), nil
			case col.Type == wire.TypeFloat || col.Type == wire.TypeDouble:
				f, err := readFloat(col, buf, TypeDecimal)
				if err != nil {
					return nil, err
				}
				return decimal.NewFromFloat(f), nil
			default:
				d, err := decimal.NewFromString(strings.TrimSpace(string(buf)))
				if err != nil {
					return nil, ErrConversion.New(describe(col), TypeDecimal, fmt.Sprintf("invalid decimal %q", buf))
				}
				return d, nil
			}
		},
	}
}

// ===================
// IDENTIFIERS
// ===================

func uuidCodec() *Codec {
	return &Codec{
		ID:     TypeUUID,
		GoType: reflect.TypeOf(uuid.UUID{}),
		Wire:   wire.TypeBlob,
		Encode: func(v any) (wire.Binding, error) {
			u := v.(uuid.UUID)
			buf := make([]byte, len(u))
			copy(buf, u[:])
			return wire.Binding{Type: wire.TypeBlob, Buffer: buf}, nil
		},
		Decode: func(col wire.Column, buf []byte) (any, error) {
			if len(buf) == 16 {
				return uuid.FromBytes(buf)
			}
			u, err := uuid.ParseBytes(buf)
			if err != nil {
				return nil, ErrConversion.New(describe(col), TypeUUID, err.Error())
			}
			return u, nil
		},
	}
}

func ulidCodec() *Codec {
	return &Codec{
		ID:     TypeULID,
		GoType: reflect.TypeOf(ulid.ULID{}),
		Wire:   wire.TypeBlob,
		Encode: func(v any) (wire.Binding, error) {
			id := v.(ulid.ULID)
			buf := make([]byte, len(id))
			copy(buf, id[:])
			return wire.Binding{Type: wire.TypeBlob, Buffer: buf}, nil
		},
		Decode: func(col wire.Column, buf []byte) (any, error) {
			var id ulid.ULID
			switch len(buf) {
			case len(id):
				copy(id[:], buf)
				return id, nil
			case ulid.EncodedSize:
				parsed, err := ulid.ParseStrict(string(buf))
				if err != nil {
					return nil, ErrConversion.New(describe(col), TypeULID, err.Error())
				}
				return parsed, nil
			default:
				return nil, ErrConversion.New(describe(col), TypeULID, fmt.Sprintf("invalid length %d", len(buf)))
			}
		},
	}
}

// ===================
// TEMPORAL
// ===================

func timeCodec(loc *time.Location) *Codec {
	return &Codec{
		ID:     TypeTime,
		GoType: reflect.TypeOf(time.Time{}),
		Wire:   wire.TypeDatetime,
		Encode: func(v any) (wire.Binding, error) {
			t := v.(time.Time)
			if !t.IsZero() {
				t = t.In(loc)
			}
			return wire.Binding{Type: wire.TypeDatetime, Buffer: wire.PutDatetime(t)}, nil
		},
		Decode: func(col wire.Column, buf []byte) (any, error) {
			if col.Type.IsTemporal() && col.Type != wire.TypeTime {
				t, err := wire.ReadDatetime(buf, loc)
				if err != nil {
					return nil, ErrConversion.Wrap(err, describe(col), TypeTime, "unreadable datetime")
				}
				return t, nil
			}
			if col.Type.IsText() {
				text := strings.TrimSpace(string(buf))
				for _, layout := range []string{wire.DatetimeLayout, wire.DateLayout, time.RFC3339Nano} {
					if t, err := time.ParseInLocation(layout, text, loc); err == nil {
						return t, nil
					}
				}
				return nil, ErrConversion.New(describe(col), TypeTime, fmt.Sprintf("invalid datetime %q", text))
			}
			return nil, ErrConversion.New(describe(col), TypeTime, "not a temporal column")
		},
	}
}

func durationCodec() *Codec {
	return &Codec{
		ID:     TypeDuration,
		GoType: reflect.TypeOf(time.Duration(0)),
		Wire:   wire.TypeTime,
		Encode: func(v any) (wire.Binding, error) {
			return wire.Binding{Type: wire.TypeTime, Buffer: wire.PutDuration(v.(time.Duration))}, nil
		},
		Decode: func(col wire.Column, buf []byte) (any, error) {
			switch {
			case col.Type == wire.TypeTime:
				d, err := wire.ReadDuration(buf)
				if err != nil {
					return nil, ErrConversion.Wrap(err, describe(col), TypeDuration, "unreadable time")
				}
				return d, nil
			case col.Type.IsText():
				d, err := wire.ParseDuration(strings.TrimSpace(string(buf)))
				if err != nil {
					return nil, ErrConversion.New(describe(col), TypeDuration, err.Error())
				}
				return d, nil
			default:
				return nil, ErrConversion.New(describe(col), TypeDuration, "not a time column")
			}
		},
	}
}

// ===================
// DOCUMENTS
// ===================

func jsonCodec() *Codec {
	return &Codec{
		ID:     TypeJSON,
		GoType: reflect.TypeOf(map[string]any(nil)),
		Wire:   wire.TypeJSON,
		Encode: func(v any) (wire.Binding, error) {
			raw, err := json.Marshal(v)
			if err != nil {
				return wire.Binding{}, ErrConversion.New(fmt.Sprintf("%T", v), TypeJSON, err.Error())
			}
			return wire.Binding{Type: wire.TypeJSON, Buffer: raw}, nil
		},
		Decode: func(col wire.Column, buf []byte) (any, error) {
			var doc map[string]any
			if err := json.Unmarshal(buf, &doc); err != nil {
				return nil, ErrConversion.New(describe(col), TypeJSON, err.Error())
			}
			return doc, nil
		},
	}
}

func rawJSONCodec() *Codec {
	return &Codec{
		ID:     TypeRawJSON,
		GoType: reflect.TypeOf(json.RawMessage(nil)),
		Wire:   wire.TypeJSON,
		Encode: func(v any) (wire.Binding, error) {
			raw := v.(json.RawMessage)
			if !json.Valid(raw) {
				return wire.Binding{}, ErrConversion.New("json.RawMessage", TypeRawJSON, "invalid document")
			}
			buf := make([]byte, len(raw))
			copy(buf, raw)
			return wire.Binding{Type: wire.TypeJSON, Buffer: buf}, nil
		},
		Decode: func(col wire.Column, buf []byte) (any, error) {
			out := make(json.RawMessage, len(buf))
			copy(out, buf)
			return out, nil
		},
	}
}

// ===================
// DYNAMIC
// ===================

// anyCodec discovers the concrete type of a column from its protocol tag
// and returns a Value carrying the discovered TypeID.
func anyCodec(loc *time.Location) *Codec {
	decoders := map[TypeID]DecodeFunc{}
	for _, c := range []*Codec{
		signedCodec(TypeInt8, nil, wire.TypeTiny, 8, nil, func(v int64) any { return int8(v) }),
		signedCodec(TypeInt16, nil, wire.TypeShort, 16, nil, func(v int64) any { return int16(v) }),
		signedCodec(TypeInt32, nil, wire.TypeLong, 32, nil, func(v int64) any { return int32(v) }),
		signedCodec(TypeInt64, nil, wire.TypeLongLong, 64, nil, func(v int64) any { return v }),
		unsignedCodec(TypeUint8, nil, wire.TypeTiny, 8, nil, func(v uint64) any { return uint8(v) }),
		unsignedCodec(TypeUint16, nil, wire.TypeShort, 16, nil, func(v uint64) any { return uint16(v) }),
		unsignedCodec(TypeUint32, nil, wire.TypeLong, 32, nil, func(v uint64) any { return uint32(v) }),
		unsignedCodec(TypeUint64, nil, wire.TypeLongLong, 64, nil, func(v uint64) any { return v }),
		float32Codec(), float64Codec(), stringCodec(), bytesCodec(), bitsCodec(),
		decimalCodec(), timeCodec(loc), durationCodec(), rawJSONCodec(),
	} {
		decoders[c.ID] = c.Decode
	}

	return &Codec{
		ID:     TypeAny,
		GoType: reflect.TypeOf((*any)(nil)).Elem(),
		Wire:   wire.TypeNull,
		Encode: func(v any) (wire.Binding, error) {
			return wire.Binding{}, ErrUnsupportedType.New(fmt.Sprintf("%T", v))
		},
		Decode: func(col wire.Column, buf []byte) (any, error) {
			id := discover(col)
			if id == "" {
				return nil, ErrUnsupportedType.New(col.Type.String())
			}
			v, err := decoders[id](col, buf)
			if err != nil {
				return nil, err
			}
			return Value{Type: id, Data: v}, nil
		},
	}
}

// discover maps a column tag to the TypeID its values decode to when no
// type was requested.
func discover(col wire.Column) TypeID {
	switch col.Type {
	case wire.TypeTiny:
		if col.Unsigned {
			return TypeUint8
		}
		return TypeInt8
	case wire.TypeShort:
		if col.Unsigned {
			return TypeUint16
		}
		return TypeInt16
	case wire.TypeYear:
		return TypeUint16
	case wire.TypeLong, wire.TypeInt24:
		if col.Unsigned {
			return TypeUint32
		}
		return TypeInt32
	case wire.TypeLongLong:
		if col.Unsigned {
			return TypeUint64
		}
		return TypeInt64
	case wire.TypeFloat:
		return TypeFloat32
	case wire.TypeDouble:
		return TypeFloat64
	case wire.TypeBit, wire.TypeSet:
		return TypeBits
	case wire.TypeDecimal, wire.TypeNewDecimal:
		return TypeDecimal
	case wire.TypeDate, wire.TypeDatetime, wire.TypeTimestamp:
		return TypeTime
	case wire.TypeTime:
		return TypeDuration
	case wire.TypeJSON:
		return TypeRawJSON
	case wire.TypeTinyBlob, wire.TypeMediumBlob, wire.TypeLongBlob, wire.TypeBlob:
		return TypeBytes
	case wire.TypeVarchar, wire.TypeVarString, wire.TypeString, wire.TypeEnum:
		return TypeString
	default:
		return ""
	}
}
