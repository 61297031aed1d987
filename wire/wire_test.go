package wire

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =========================================================================
// Integer layouts
// =========================================================================

func TestReadInt(t *testing.T) {
	tests := []struct {
		name     string
		col      Column
		buf      []byte
		signed   int64
		unsigned uint64
	}{
		{"TinySigned", Column{Type: TypeTiny}, []byte{0xff}, -1, 0xff},
		{"TinyUnsigned", Column{Type: TypeTiny, Unsigned: true}, []byte{0xff}, 255, 0xff},
		{"ShortSigned", Column{Type: TypeShort}, []byte{0x00, 0x80}, math.MinInt16, 0x8000},
		{"Year", Column{Type: TypeYear}, []byte{0xe8, 0x07}, 2024, 2024},
		{"LongSigned", Column{Type: TypeLong}, []byte{0xfe, 0xff, 0xff, 0xff}, -2, 0xfffffffe},
		{"Int24Negative", Column{Type: TypeInt24}, []byte{0xff, 0xff, 0xff, 0x00}, -1, 0xffffff},
		{"LongLongMin", Column{Type: TypeLongLong}, PutInt(math.MinInt64, 8), math.MinInt64, 1 << 63},
		{"LongLongUnsigned", Column{Type: TypeLongLong, Unsigned: true}, PutUint(math.MaxUint64, 8), -1, math.MaxUint64},
		{"Bit", Column{Type: TypeBit}, []byte{0x01, 0x02}, 0x0201, 0x0201},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, u, err := ReadInt(tt.col, tt.buf)
			require.NoError(t, err)
			assert.Equal(t, tt.signed, s)
			assert.Equal(t, tt.unsigned, u)
		})
	}
}

func TestReadIntErrors(t *testing.T) {
	_, _, err := ReadInt(Column{Type: TypeLong}, []byte{0x01})
	assert.True(t, ErrUnsupportedWireType.Is(err))

	_, _, err = ReadInt(Column{Type: TypeVarString}, []byte("12"))
	assert.True(t, ErrUnsupportedWireType.Is(err))

	_, _, err = ReadInt(Column{Type: TypeBit}, make([]byte, 9))
	assert.True(t, ErrUnsupportedWireType.Is(err))
}

func TestBits(t *testing.T) {
	tests := []struct {
		value uint64
		bytes []byte
	}{
		{0, []byte{0x00}},
		{0x05, []byte{0x05}},
		{0x0100, []byte{0x00, 0x01}},
		{math.MaxUint64, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.bytes, PutBits(tt.value))
		got, err := ReadBits(tt.bytes)
		require.NoError(t, err)
		assert.Equal(t, tt.value, got)
	}
}

// =========================================================================
// Temporal layouts
// =========================================================================

func TestDatetimeLayout(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		size int
	}{
		{"Zero", time.Time{}, 0},
		{"DateOnly", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), 4},
		{"Seconds", time.Date(1999, 12, 31, 23, 59, 58, 0, time.UTC), 7},
		{"Micros", time.Date(2001, 1, 2, 3, 4, 5, 123456000, time.UTC), 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := PutDatetime(tt.in)
			assert.Len(t, buf, tt.size)
			got, err := ReadDatetime(buf, time.UTC)
			require.NoError(t, err)
			assert.True(t, tt.in.Equal(got), "want %v got %v", tt.in, got)
		})
	}

	_, err := ReadDatetime([]byte{1, 2, 3}, nil)
	assert.True(t, ErrUnsupportedWireType.Is(err))
}

func TestDurationLayout(t *testing.T) {
	tests := []struct {
		in   time.Duration
		size int
		text string
	}{
		{0, 0, "00:00:00"},
		{90 * time.Minute, 8, "01:30:00"},
		{-(26*time.Hour + 5*time.Second), 8, "-26:00:05"},
		{time.Second + 250*time.Microsecond, 12, "00:00:01.000250"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			buf := PutDuration(tt.in)
			assert.Len(t, buf, tt.size)
			got, err := ReadDuration(buf)
			require.NoError(t, err)
			assert.Equal(t, tt.in, got)

			assert.Equal(t, tt.text, FormatDuration(tt.in))
			parsed, err := ParseDuration(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.in, parsed)
		})
	}
}

// =========================================================================
// Classification and names
// =========================================================================

func TestIsPrintable(t *testing.T) {
	assert.True(t, IsPrintable([]byte("hello\tworld\r\n")))
	assert.True(t, IsPrintable(nil))
	assert.False(t, IsPrintable([]byte{'a', 0x00}))
	assert.False(t, IsPrintable([]byte("caf\xc3\xa9")))
	assert.False(t, IsPrintable([]byte{0x7f}))
}

func TestTypeByName(t *testing.T) {
	tests := []struct {
		name     string
		want     Type
		unsigned bool
		known    bool
	}{
		{"BIGINT", TypeLongLong, false, true},
		{"UNSIGNED BIGINT", TypeLongLong, true, true},
		{"int unsigned", TypeLong, true, true},
		{"varchar(255)", TypeVarString, false, true},
		{"DECIMAL(10,2)", TypeNewDecimal, false, true},
		{"BIT", TypeBit, true, true},
		{"jsonb", TypeJSON, false, true},
		{"TIMESTAMPTZ", TypeTimestamp, false, true},
		{"GEOGRAPHY_POINT", TypeVarString, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, unsigned, known := TypeByName(tt.name)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.unsigned, unsigned)
			assert.Equal(t, tt.known, known)
		})
	}
}

// =========================================================================
// Driver bridge
// =========================================================================

func TestDriverValue(t *testing.T) {
	tests := []struct {
		name string
		b    Binding
		want any
	}{
		{"Null", NullBinding(TypeLongLong, false), nil},
		{"SignedMin", Binding{Type: TypeLongLong, Buffer: PutInt(math.MinInt64, 8)}, int64(math.MinInt64)},
		{"UnsignedHigh", Binding{Type: TypeLongLong, Unsigned: true, Buffer: PutUint(1<<63+7, 8)}, uint64(1<<63 + 7)},
		{"Tiny", Binding{Type: TypeTiny, Buffer: []byte{0xfb}}, int64(-5)},
		{"Double", Binding{Type: TypeDouble, Buffer: PutFloat64(2.5)}, 2.5},
		{"Text", Binding{Type: TypeVarString, Buffer: []byte("abc")}, "abc"},
		{"Blob", Binding{Type: TypeBlob, Buffer: []byte{0x00, 0x01}}, []byte{0x00, 0x01}},
		{"Bits", Binding{Type: TypeBit, Unsigned: true, Buffer: []byte{0x03}}, uint64(3)},
		{"Decimal", Binding{Type: TypeNewDecimal, Buffer: []byte("12.50")}, "12.50"},
		{"Time", Binding{Type: TypeTime, Buffer: PutDuration(time.Hour)}, "01:00:00"},
		{"Datetime", Binding{Type: TypeDatetime, Buffer: PutDatetime(time.Date(2020, 5, 6, 7, 8, 9, 0, time.UTC))}, time.Date(2020, 5, 6, 7, 8, 9, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.b.DriverValue()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAppend(t *testing.T) {
	tests := []struct {
		name string
		col  Column
		in   any
		want []byte
	}{
		{"SignedInt", Column{Type: TypeLong}, int64(-2), []byte{0xfe, 0xff, 0xff, 0xff}},
		{"UnsignedFromBytes", Column{Type: TypeLongLong, Unsigned: true}, []byte("18446744073709551615"), PutUint(math.MaxUint64, 8)},
		{"BoolAsTiny", Column{Type: TypeTiny}, true, []byte{0x01}},
		{"MySQLBitBigEndian", Column{Type: TypeBit}, []byte{0x01, 0x02}, []byte{0x02, 0x01}},
		{"Float", Column{Type: TypeFloat}, float32(1.5), PutFloat32(1.5)},
		{"DatetimeText", Column{Type: TypeDatetime}, []byte("2021-03-04 05:06:07"), PutDatetime(time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC))},
		{"TimeText", Column{Type: TypeTime}, "-01:00:00", PutDuration(-time.Hour)},
		{"JSONMap", Column{Type: TypeJSON}, map[string]any{"a": 1}, []byte(`{"a":1}`)},
		{"Text", Column{Type: TypeVarString}, "hello", []byte("hello")},
		{"DecimalFloat", Column{Type: TypeNewDecimal}, 1.25, []byte("1.25")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Append(make([]byte, 0, 4), tt.col, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Append(nil, Column{Type: TypeLong}, struct{}{})
	assert.True(t, ErrUnsupportedWireType.Is(err))
}

// =========================================================================
// Row buffers
// =========================================================================

func TestRowReusesBuffers(t *testing.T) {
	row := NewRow(1)
	row.Set(0, []byte("longer value"))
	first := row.Buffers[0]

	row.Set(0, []byte("short"))
	assert.Equal(t, []byte("short"), row.Buffers[0])
	assert.Same(t, &first[0], &row.Buffers[0][0], "buffer should be reused in place")
	assert.Equal(t, byte(0), first[:cap(first)][6], "stale bytes are zeroed")

	row.SetNull(0)
	assert.True(t, row.Nulls[0])
	assert.Empty(t, row.Buffers[0])

	row.Set(0, []byte("x"))
	assert.False(t, row.Nulls[0])
	row.Clear()
	assert.Empty(t, row.Buffers[0])
	assert.Equal(t, 1, row.Len())
}
