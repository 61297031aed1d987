package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Konsultn-Engineering/stmtbind/wire"
)

// integer is a column value read as a whole number before it is narrowed to
// the requested Go type.
type integer struct {
	s        int64
	u        uint64
	unsigned bool
}

func (n integer) String() string {
	if n.unsigned {
		return strconv.FormatUint(n.u, 10)
	}
	return strconv.FormatInt(n.s, 10)
}

func describe(col wire.Column) string {
	if col.Name == "" {
		return col.Type.String()
	}
	return fmt.Sprintf("%s column %q", col.Type, col.Name)
}

// ===================
// READERS
// ===================

func readInteger(col wire.Column, buf []byte, target TypeID) (integer, error) {
	switch {
	case col.Type.IsInteger() || col.Type.IsBitset():
		s, u, err := wire.ReadInt(col, buf)
		if err != nil {
			return integer{}, ErrConversion.Wrap(err, describe(col), target, "unreadable integer")
		}
		return integer{s: s, u: u, unsigned: col.Unsigned || col.Type == wire.TypeYear || col.Type.IsBitset()}, nil

	case col.Type == wire.TypeFloat || col.Type == wire.TypeDouble:
		f, err := wire.ReadFloat(col, buf)
		if err != nil {
			return integer{}, ErrConversion.Wrap(err, describe(col), target, "unreadable float")
		}
		if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
			return integer{}, ErrConversion.New(describe(col), target, "fractional value")
		}
		if f < 0 {
			if f < math.MinInt64 {
				return integer{}, ErrConversion.New(describe(col), target, "overflow")
			}
			return integer{s: int64(f)}, nil
		}
		if f >= math.MaxUint64 {
			return integer{}, ErrConversion.New(describe(col), target, "overflow")
		}
		return integer{u: uint64(f), unsigned: true}, nil

	case col.Type.IsText() || col.Type == wire.TypeNewDecimal || col.Type == wire.TypeDecimal:
		return parseInteger(col, strings.TrimSpace(string(buf)), target)

	default:
		return integer{}, ErrConversion.New(describe(col), target, "not a numeric column")
	}
}

func parseInteger(col wire.Column, text string, target TypeID) (integer, error) {
	if strings.HasPrefix(text, "-") {
		if s, err := strconv.ParseInt(text, 10, 64); err == nil {
			return integer{s: s}, nil
		}
	} else if u, err := strconv.ParseUint(text, 10, 64); err == nil {
		return integer{u: u, unsigned: true}, nil
	}

	// Decimal text such as "12.000" is accepted when it is integral.
	d, err := decimal.NewFromString(text)
	if err != nil {
		return integer{}, ErrConversion.New(describe(col), target, fmt.Sprintf("invalid number %q", text))
	}
	if !d.IsInteger() {
		return integer{}, ErrConversion.New(describe(col), target, "fractional value")
	}
	bi := d.BigInt()
	switch {
	case bi.IsInt64():
		v := bi.Int64()
		if v < 0 {
			return integer{s: v}, nil
		}
		return integer{u: uint64(v), unsigned: true}, nil
	case bi.IsUint64():
		return integer{u: bi.Uint64(), unsigned: true}, nil
	default:
		return integer{}, ErrConversion.New(describe(col), target, "overflow")
	}
}

func readFloat(col wire.Column, buf []byte, target TypeID) (float64, error) {
	switch {
	case col.Type == wire.TypeFloat || col.Type == wire.TypeDouble:
		f, err := wire.ReadFloat(col, buf)
		if err != nil {
			return 0, ErrConversion.Wrap(err, describe(col), target, "unreadable float")
		}
		return f, nil
	case col.Type.IsInteger() || col.Type.IsBitset():
		n, err := readInteger(col, buf, target)
		if err != nil {
			return 0, err
		}
		if n.unsigned {
			return float64(n.u), nil
		}
		return float64(n.s), nil
	case col.Type.IsText() || col.Type == wire.TypeNewDecimal || col.Type == wire.TypeDecimal:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(buf)), 64)
		if err != nil {
			return 0, ErrConversion.New(describe(col), target, fmt.Sprintf("invalid number %q", buf))
		}
		return f, nil
	default:
		return 0, ErrConversion.New(describe(col), target, "not a numeric column")
	}
}

// ===================
// NARROWING
// ===================

func toSigned(n integer, bits int, col wire.Column, target TypeID) (int64, error) {
	lo := int64(-1) << (bits - 1)
	hi := int64(1)<<(bits-1) - 1
	if bits == 64 {
		lo, hi = math.MinInt64, math.MaxInt64
	}
	if n.unsigned {
		if n.u > uint64(hi) {
			return 0, ErrConversion.New(describe(col), target, fmt.Sprintf("value %d overflows", n.u))
		}
		return int64(n.u), nil
	}
	if n.s < lo || n.s > hi {
		return 0, ErrConversion.New(describe(col), target, fmt.Sprintf("value %d overflows", n.s))
	}
	return n.s, nil
}

func toUnsigned(n integer, bits int, col wire.Column, target TypeID) (uint64, error) {
	hi := uint64(math.MaxUint64)
	if bits < 64 {
		hi = uint64(1)<<bits - 1
	}
	v := n.u
	if !n.unsigned {
		if n.s < 0 {
			return 0, ErrConversion.New(describe(col), target, fmt.Sprintf("negative value %d", n.s))
		}
		v = uint64(n.s)
	}
	if v > hi {
		return 0, ErrConversion.New(describe(col), target, fmt.Sprintf("value %d overflows", v))
	}
	return v, nil
}

func signedDecoder(id TypeID, bits int, cast func(int64) any) DecodeFunc {
	return func(col wire.Column, buf []byte) (any, error) {
		n, err := readInteger(col, buf, id)
		if err != nil {
			return nil, err
		}
		v, err := toSigned(n, bits, col, id)
		if err != nil {
			return nil, err
		}
		return cast(v), nil
	}
}

func unsignedDecoder(id TypeID, bits int, cast func(uint64) any) DecodeFunc {
	return func(col wire.Column, buf []byte) (any, error) {
		n, err := readInteger(col, buf, id)
		if err != nil {
			return nil, err
		}
		v, err := toUnsigned(n, bits, col, id)
		if err != nil {
			return nil, err
		}
		return cast(v), nil
	}
}
