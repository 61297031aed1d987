package wire

import (
	"encoding/binary"
	"math"
	"time"
)

// PutInt returns the little-endian two's complement encoding of v in exactly
// width bytes.
func PutInt(v int64, width int) []byte {
	return PutUint(uint64(v), width)
}

// PutUint returns the little-endian encoding of v in exactly width bytes.
func PutUint(v uint64, width int) []byte {
	buf := make([]byte, width)
	switch width {
	case 1:
		buf[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(buf, v)
	}
	return buf
}

// ReadInt reads a fixed-width integer laid out according to col and returns
// it sign-extended when the column is signed. The second result is the raw
// unsigned value for unsigned columns.
func ReadInt(col Column, buf []byte) (int64, uint64, error) {
	if col.Type.IsBitset() {
		u, err := ReadBits(buf)
		return int64(u), u, err
	}
	width := col.Type.Width()
	if !col.Type.IsInteger() || width == 0 {
		return 0, 0, ErrUnsupportedWireType.New(col.Type, "not an integer layout")
	}
	if len(buf) < width {
		return 0, 0, ErrUnsupportedWireType.New(col.Type, "short buffer")
	}
	var u uint64
	var s int64
	switch width {
	case 1:
		u, s = uint64(buf[0]), int64(int8(buf[0]))
	case 2:
		x := binary.LittleEndian.Uint16(buf)
		u, s = uint64(x), int64(int16(x))
	case 4:
		x := binary.LittleEndian.Uint32(buf)
		u, s = uint64(x), int64(int32(x))
		if col.Type == TypeInt24 {
			x &= 0x00ffffff
			u = uint64(x)
			s = int64(int32(x<<8) >> 8)
		}
	case 8:
		u = binary.LittleEndian.Uint64(buf)
		s = int64(u)
	}
	if col.Unsigned || col.Type == TypeYear {
		return int64(u), u, nil
	}
	return s, u, nil
}

// PutBits encodes a flag set as the shortest little-endian byte sequence
// (at least one byte, at most eight).
func PutBits(v uint64) []byte {
	n := 1
	for x := v >> 8; x != 0 && n < 8; x >>= 8 {
		n++
	}
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	return buf
}

// ReadBits reconstructs a flag set by summing byte[i] << (8*i).
func ReadBits(buf []byte) (uint64, error) {
	if len(buf) > 8 {
		return 0, ErrUnsupportedWireType.New(TypeBit, "more than 8 bytes")
	}
	var v uint64
	for i, b := range buf {
		v += uint64(b) << (8 * i)
	}
	return v, nil
}

// PutFloat32 encodes v as 4 little-endian IEEE-754 bytes.
func PutFloat32(v float32) []byte {
	return PutUint(uint64(math.Float32bits(v)), 4)
}

// PutFloat64 encodes v as 8 little-endian IEEE-754 bytes.
func PutFloat64(v float64) []byte {
	return PutUint(math.Float64bits(v), 8)
}

// ReadFloat reads a FLOAT or DOUBLE column.
func ReadFloat(col Column, buf []byte) (float64, error) {
	switch col.Type {
	case TypeFloat:
		if len(buf) < 4 {
			return 0, ErrUnsupportedWireType.New(col.Type, "short buffer")
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf))), nil
	case TypeDouble:
		if len(buf) < 8 {
			return 0, ErrUnsupportedWireType.New(col.Type, "short buffer")
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
	default:
		return 0, ErrUnsupportedWireType.New(col.Type, "not a floating point layout")
	}
}

// PutDatetime encodes t using the binary DATETIME layout: year(2) month day,
// then hour minute second, then microseconds(4). Trailing zero groups are
// omitted, giving a length of 0, 4, 7 or 11 bytes.
func PutDatetime(t time.Time) []byte {
	if t.IsZero() {
		return []byte{}
	}
	micro := t.Nanosecond() / 1000
	n := 11
	switch {
	case micro != 0:
	case t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0:
		n = 7
	default:
		n = 4
	}
	buf := make([]byte, n)
	binary.LittleEndian.PutUint16(buf, uint16(t.Year()))
	buf[2] = byte(t.Month())
	buf[3] = byte(t.Day())
	if n >= 7 {
		buf[4] = byte(t.Hour())
		buf[5] = byte(t.Minute())
		buf[6] = byte(t.Second())
	}
	if n == 11 {
		binary.LittleEndian.PutUint32(buf[7:], uint32(micro))
	}
	return buf
}

// ReadDatetime decodes the binary DATE/DATETIME/TIMESTAMP layout in loc.
func ReadDatetime(buf []byte, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch len(buf) {
	case 0:
		return time.Time{}, nil
	case 4, 7, 11:
	default:
		return time.Time{}, ErrUnsupportedWireType.New(TypeDatetime, "invalid length")
	}
	year := int(binary.LittleEndian.Uint16(buf))
	month := time.Month(buf[2])
	day := int(buf[3])
	var hour, minute, sec, micro int
	if len(buf) >= 7 {
		hour, minute, sec = int(buf[4]), int(buf[5]), int(buf[6])
	}
	if len(buf) == 11 {
		micro = int(binary.LittleEndian.Uint32(buf[7:]))
	}
	return time.Date(year, month, day, hour, minute, sec, micro*1000, loc), nil
}

// PutDuration encodes d using the binary TIME layout: is_negative(1) days(4)
// hour minute second, then microseconds(4). Lengths are 0, 8 or 12 bytes.
func PutDuration(d time.Duration) []byte {
	if d == 0 {
		return []byte{}
	}
	neg := d < 0
	if neg {
		d = -d
	}
	micro := int64(d/time.Microsecond) % 1_000_000
	secs := int64(d / time.Second)
	n := 8
	if micro != 0 {
		n = 12
	}
	buf := make([]byte, n)
	if neg {
		buf[0] = 1
	}
	binary.LittleEndian.PutUint32(buf[1:], uint32(secs/86400))
	buf[5] = byte(secs % 86400 / 3600)
	buf[6] = byte(secs % 3600 / 60)
	buf[7] = byte(secs % 60)
	if n == 12 {
		binary.LittleEndian.PutUint32(buf[8:], uint32(micro))
	}
	return buf
}

// ReadDuration decodes the binary TIME layout.
func ReadDuration(buf []byte) (time.Duration, error) {
	switch len(buf) {
	case 0:
		return 0, nil
	case 8, 12:
	default:
		return 0, ErrUnsupportedWireType.New(TypeTime, "invalid length")
	}
	days := time.Duration(binary.LittleEndian.Uint32(buf[1:]))
	d := days*24*time.Hour +
		time.Duration(buf[5])*time.Hour +
		time.Duration(buf[6])*time.Minute +
		time.Duration(buf[7])*time.Second
	if len(buf) == 12 {
		d += time.Duration(binary.LittleEndian.Uint32(buf[8:])) * time.Microsecond
	}
	if buf[0] == 1 {
		d = -d
	}
	return d, nil
}

// IsPrintable reports whether every byte of b is printable ASCII or one of
// tab, newline and carriage return. Payloads failing the check are sent with
// a binary tag so the server does not attempt charset conversion.
func IsPrintable(b []byte) bool {
	for _, c := range b {
		if c >= 0x20 && c <= 0x7e {
			continue
		}
		if c == '\t' || c == '\n' || c == '\r' {
			continue
		}
		return false
	}
	return true
}
