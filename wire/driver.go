package wire

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Text layouts used when a driver hands back temporal values as bytes.
const (
	DateLayout     = "2006-01-02"
	DatetimeLayout = "2006-01-02 15:04:05.999999"
)

// DriverValue converts an encoded binding into the argument form accepted by
// database/sql and pgx, reading temporal bindings as UTC wall time.
func (b Binding) DriverValue() (driver.Value, error) {
	return b.DriverValueIn(time.UTC)
}

// DriverValueIn is DriverValue with temporal bindings read as wall time in
// loc, the location they were encoded in. Integers keep their signedness:
// unsigned tags produce uint64 and signed tags produce int64.
func (b Binding) DriverValueIn(loc *time.Location) (driver.Value, error) {
	if b.Null || b.Type == TypeNull {
		return nil, nil
	}
	col := Column{Type: b.Type, Unsigned: b.Unsigned}
	switch {
	case b.Type == TypeYear:
		v, _, err := ReadInt(col, b.Buffer)
		return v, err
	case b.Type.IsInteger():
		s, u, err := ReadInt(col, b.Buffer)
		if err != nil {
			return nil, err
		}
		if b.Unsigned {
			return u, nil
		}
		return s, nil
	case b.Type.IsBitset():
		return ReadBits(b.Buffer)
	case b.Type == TypeFloat || b.Type == TypeDouble:
		return ReadFloat(col, b.Buffer)
	case b.Type == TypeTime:
		d, err := ReadDuration(b.Buffer)
		if err != nil {
			return nil, err
		}
		return FormatDuration(d), nil
	case b.Type.IsTemporal():
		return ReadDatetime(b.Buffer, loc)
	case b.Type.IsBinary():
		return b.Buffer, nil
	case b.Type.IsText(), b.Type == TypeJSON, b.Type == TypeNewDecimal, b.Type == TypeDecimal:
		return string(b.Buffer), nil
	default:
		return nil, ErrUnsupportedWireType.New(b.Type, "no driver representation")
	}
}

// Append encodes a value fetched from a driver into the layout of col and
// appends it to dst[:0]. It is used to refill the reused buffers of a row.
func Append(dst []byte, col Column, v any) ([]byte, error) {
	dst = dst[:0]
	switch {
	case col.Type == TypeNull:
		return dst, nil
	case col.Type.IsInteger():
		u, err := toUint64(v)
		if err != nil {
			return nil, ErrUnsupportedWireType.New(col.Type, err.Error())
		}
		return append(dst, PutUint(u, col.Type.Width())...), nil
	case col.Type.IsBitset():
		u, err := toBits(v)
		if err != nil {
			return nil, ErrUnsupportedWireType.New(col.Type, err.Error())
		}
		return append(dst, PutBits(u)...), nil
	case col.Type == TypeFloat:
		f, err := toFloat64(v)
		if err != nil {
			return nil, ErrUnsupportedWireType.New(col.Type, err.Error())
		}
		return append(dst, PutFloat32(float32(f))...), nil
	case col.Type == TypeDouble:
		f, err := toFloat64(v)
		if err != nil {
			return nil, ErrUnsupportedWireType.New(col.Type, err.Error())
		}
		return append(dst, PutFloat64(f)...), nil
	case col.Type == TypeTime:
		d, err := toDuration(v)
		if err != nil {
			return nil, ErrUnsupportedWireType.New(col.Type, err.Error())
		}
		return append(dst, PutDuration(d)...), nil
	case col.Type.IsTemporal():
		t, err := toTime(v)
		if err != nil {
			return nil, ErrUnsupportedWireType.New(col.Type, err.Error())
		}
		return append(dst, PutDatetime(t)...), nil
	case col.Type == TypeJSON:
		switch x := v.(type) {
		case []byte:
			return append(dst, x...), nil
		case string:
			return append(dst, x...), nil
		default:
			raw, err := json.Marshal(x)
			if err != nil {
				return nil, ErrUnsupportedWireType.New(col.Type, err.Error())
			}
			return append(dst, raw...), nil
		}
	default:
		switch x := v.(type) {
		case []byte:
			return append(dst, x...), nil
		case string:
			return append(dst, x...), nil
		case fmt.Stringer:
			return append(dst, x.String()...), nil
		case int64:
			return strconv.AppendInt(dst, x, 10), nil
		case uint64:
			return strconv.AppendUint(dst, x, 10), nil
		case float64:
			return strconv.AppendFloat(dst, x, 'f', -1, 64), nil
		case bool:
			return strconv.AppendBool(dst, x), nil
		default:
			return nil, ErrUnsupportedWireType.New(col.Type, fmt.Sprintf("cannot encode %T", v))
		}
	}
}

// FormatDuration renders d as [-]hh:mm:ss[.ffffff], the text form of a TIME
// value. Hours may exceed 24.
func FormatDuration(d time.Duration) string {
	var sb strings.Builder
	if d < 0 {
		sb.WriteByte('-')
		d = -d
	}
	h := d / time.Hour
	m := d % time.Hour / time.Minute
	s := d % time.Minute / time.Second
	fmt.Fprintf(&sb, "%02d:%02d:%02d", h, m, s)
	if micro := d % time.Second / time.Microsecond; micro != 0 {
		fmt.Fprintf(&sb, ".%06d", micro)
	}
	return sb.String()
}

// ParseDuration parses the text form of a TIME value.
func ParseDuration(s string) (time.Duration, error) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	frac := ""
	if idx := strings.IndexByte(s, '.'); idx != -1 {
		s, frac = s[:idx], s[idx+1:]
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	var fields [3]int64
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		fields[i] = n
	}
	d := time.Duration(fields[0])*time.Hour +
		time.Duration(fields[1])*time.Minute +
		time.Duration(fields[2])*time.Second
	if frac != "" {
		if len(frac) > 6 {
			frac = frac[:6]
		}
		frac += strings.Repeat("0", 6-len(frac))
		micro, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid time fraction %q", frac)
		}
		d += time.Duration(micro) * time.Microsecond
	}
	if neg {
		d = -d
	}
	return d, nil
}

func toUint64(v any) (uint64, error) {
	switch x := v.(type) {
	case int64:
		return uint64(x), nil
	case int32:
		return uint64(int64(x)), nil
	case int16:
		return uint64(int64(x)), nil
	case int8:
		return uint64(int64(x)), nil
	case int:
		return uint64(int64(x)), nil
	case uint64:
		return x, nil
	case uint32:
		return uint64(x), nil
	case uint16:
		return uint64(x), nil
	case uint8:
		return uint64(x), nil
	case uint:
		return uint64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return parseUint(string(x))
	case string:
		return parseUint(x)
	default:
		return 0, fmt.Errorf("cannot encode %T as integer", v)
	}
}

func parseUint(s string) (uint64, error) {
	if strings.HasPrefix(s, "-") {
		n, err := strconv.ParseInt(s, 10, 64)
		return uint64(n), err
	}
	return strconv.ParseUint(s, 10, 64)
}

// toBits accepts a flag set either as an integer or as the big-endian byte
// string MySQL reports for BIT columns.
func toBits(v any) (uint64, error) {
	if b, ok := v.([]byte); ok {
		if len(b) > 8 {
			return 0, fmt.Errorf("bit value of %d bytes", len(b))
		}
		var u uint64
		for _, c := range b {
			u = u<<8 | uint64(c)
		}
		return u, nil
	}
	return toUint64(v)
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case []byte:
		return strconv.ParseFloat(string(x), 64)
	case string:
		return strconv.ParseFloat(x, 64)
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("cannot encode %T as float", v)
	}
}

func toTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case []byte:
		return parseTime(string(x))
	case string:
		return parseTime(x)
	default:
		return time.Time{}, fmt.Errorf("cannot encode %T as datetime", v)
	}
}

func parseTime(s string) (time.Time, error) {
	if strings.HasPrefix(s, "0000-00-00") {
		return time.Time{}, nil
	}
	if len(s) == len(DateLayout) {
		return time.ParseInLocation(DateLayout, s, time.UTC)
	}
	return time.ParseInLocation(DatetimeLayout, s, time.UTC)
}

func toDuration(v any) (time.Duration, error) {
	switch x := v.(type) {
	case time.Duration:
		return x, nil
	case int64:
		return time.Duration(x) * time.Microsecond, nil
	case []byte:
		return ParseDuration(string(x))
	case string:
		return ParseDuration(x)
	default:
		return 0, fmt.Errorf("cannot encode %T as time", v)
	}
}
