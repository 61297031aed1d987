package codec

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/Konsultn-Engineering/stmtbind/wire"
)

// Enum returns a codec for a closed set of members of T. Each member maps to
// a value of the repr codec, which decides the bytes on the wire: a string
// repr travels as text, an integer repr as a fixed-width integer.
//
// Decoding a null into a non-nullable enum fails with ErrEnumConstraint; a
// representation matching no member fails with ErrEnumDecode.
func Enum[T comparable](id, repr TypeID, members map[T]any, nullable bool) *Codec {
	forward := make(map[T]any, len(members))
	reverse := make(map[string]T, len(members))
	for m, r := range members {
		forward[m] = r
		reverse[fmt.Sprint(r)] = m
	}

	return &Codec{
		ID:     id,
		GoType: reflect.TypeOf((*T)(nil)).Elem(),
		Repr:   repr,
		ToRepr: func(v any) (any, error) {
			m, ok := v.(T)
			if !ok {
				return nil, ErrConversion.New(fmt.Sprintf("%T", v), id, "not an enum member")
			}
			r, ok := forward[m]
			if !ok {
				return nil, ErrEnumDecode.New(id, v)
			}
			return r, nil
		},
		FromRepr: func(v any) (any, error) {
			if val, ok := v.(Value); ok {
				v = val.Data
			}
			m, ok := reverse[fmt.Sprint(v)]
			if !ok {
				return nil, ErrEnumDecode.New(id, v)
			}
			return m, nil
		},
		DecodeNull: func() (any, error) {
			if nullable {
				return nil, nil
			}
			return nil, ErrEnumConstraint.New(id)
		},
	}
}

// Set returns a codec for a flag type whose bit i stands for names[i]. Values
// are sent as a little-endian bitmask with the SET tag and may be read back
// either as a bitmask or as the comma separated member list servers report
// for SET columns.
func Set[T ~uint64](id TypeID, names []string) *Codec {
	index := make(map[string]uint64, len(names))
	for i, name := range names {
		index[strings.ToLower(name)] = uint64(1) << i
	}
	var valid uint64
	if len(names) >= 64 {
		valid = ^uint64(0)
	} else {
		valid = uint64(1)<<len(names) - 1
	}

	return &Codec{
		ID:       id,
		GoType:   reflect.TypeOf((*T)(nil)).Elem(),
		Wire:     wire.TypeSet,
		Unsigned: true,
		Encode: func(v any) (wire.Binding, error) {
			mask := uint64(v.(T))
			if mask&^valid != 0 {
				return wire.Binding{}, ErrEnumDecode.New(id, fmt.Sprintf("%#x", mask))
			}
			return wire.Binding{Type: wire.TypeSet, Unsigned: true, Buffer: wire.PutBits(mask)}, nil
		},
		Decode: func(col wire.Column, buf []byte) (any, error) {
			if col.Type.IsText() {
				var mask uint64
				text := strings.TrimSpace(string(buf))
				if text == "" {
					return T(0), nil
				}
				for _, part := range strings.Split(text, ",") {
					bit, ok := index[strings.ToLower(strings.TrimSpace(part))]
					if !ok {
						return nil, ErrEnumDecode.New(id, part)
					}
					mask |= bit
				}
				return T(mask), nil
			}
			n, err := readInteger(col, buf, id)
			if err != nil {
				return nil, err
			}
			mask, err := toUnsigned(n, 64, col, id)
			if err != nil {
				return nil, err
			}
			if mask&^valid != 0 {
				return nil, ErrEnumDecode.New(id, fmt.Sprintf("%#x", mask))
			}
			return T(mask), nil
		},
	}
}
