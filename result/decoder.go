package result

import (
	"fmt"

	"github.com/Konsultn-Engineering/stmtbind/codec"
	"github.com/Konsultn-Engineering/stmtbind/wire"
)

// Decoder decodes columns of the current cursor row. Decoded values never
// alias the row buffers.
type Decoder struct {
	reg *codec.Registry
}

func NewDecoder(reg *codec.Registry) *Decoder {
	if reg == nil {
		reg = codec.Default()
	}
	return &Decoder{reg: reg}
}

// Column decodes column i of the current row as id.
func (d *Decoder) Column(cur *Cursor, cols []wire.Column, i int, id codec.TypeID) (any, error) {
	if !cur.HasMore {
		return nil, ErrNoRows.New()
	}
	if i < 0 || i >= len(cols) || i >= cur.Row.Len() {
		return nil, fmt.Errorf("column index %d out of range [0,%d)", i, len(cols))
	}
	return d.reg.Decode(cols[i], cur.Row.Buffers[i], cur.Row.Nulls[i], id)
}

// Row decodes every column of the current row with its discovered type.
// Each value is a codec.Value, or nil for NULL.
func (d *Decoder) Row(cur *Cursor, cols []wire.Column) ([]any, error) {
	out := make([]any, len(cols))
	for i := range cols {
		v, err := d.Column(cur, cols, i, codec.TypeAny)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
