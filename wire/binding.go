package wire

// Binding is the encoded, ready-to-transmit form of one positional parameter.
// The (Type, Unsigned) pair is the wire tag: signedness travels next to the
// type code and is never encoded in the bytes themselves.
//
// A Binding is never mutated after it has been produced. Buffer is owned
// exclusively by the serializer call that created it and is meaningless when
// Null is set.
type Binding struct {
	Type     Type
	Unsigned bool
	Null     bool
	Buffer   []byte
}

// Len returns the explicit payload length sent alongside the buffer.
func (b Binding) Len() int {
	if b.Null {
		return 0
	}
	return len(b.Buffer)
}

// NullBinding returns a null binding carrying the given tag.
func NullBinding(t Type, unsigned bool) Binding {
	return Binding{Type: t, Unsigned: unsigned, Null: true}
}

// Column describes one result column. It is fixed for the lifetime of a
// result set.
type Column struct {
	Name     string
	Type     Type
	Unsigned bool
	Length   int
	Decimals int
}

// Row holds the per-column scratch buffers of a cursor. Buffers are
// overwritten in place on every fetch, so anything read from them must be
// copied before the next fetch.
type Row struct {
	Buffers [][]byte
	Nulls   []bool
}

// NewRow allocates a row with n columns.
func NewRow(n int) *Row {
	return &Row{
		Buffers: make([][]byte, n),
		Nulls:   make([]bool, n),
	}
}

// Len returns the number of columns.
func (r *Row) Len() int {
	return len(r.Buffers)
}

// Set overwrites column i with b, reusing the existing backing array when it
// is large enough. Stale bytes past the new length are zeroed.
func (r *Row) Set(i int, b []byte) {
	buf := r.Buffers[i]
	if cap(buf) < len(b) {
		buf = make([]byte, len(b))
	} else {
		buf = buf[:len(b)]
		clear(buf[len(b):cap(buf)])
	}
	copy(buf, b)
	r.Buffers[i] = buf
	r.Nulls[i] = false
}

// SetNull marks column i as null and zeroes its buffer.
func (r *Row) SetNull(i int) {
	clear(r.Buffers[i][:cap(r.Buffers[i])])
	r.Buffers[i] = r.Buffers[i][:0]
	r.Nulls[i] = true
}

// Clear zeroes every buffer, keeping their capacity.
func (r *Row) Clear() {
	for i := range r.Buffers {
		clear(r.Buffers[i][:cap(r.Buffers[i])])
		r.Buffers[i] = r.Buffers[i][:0]
		r.Nulls[i] = false
	}
}
