package bind

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/stmtbind/codec"
	"github.com/Konsultn-Engineering/stmtbind/query"
	"github.com/Konsultn-Engineering/stmtbind/schema"
	"github.com/Konsultn-Engineering/stmtbind/wire"
)

type recorder struct {
	calls    int
	bindings []wire.Binding
}

func (r *recorder) BindParameters(b []wire.Binding) error {
	r.calls++
	r.bindings = b
	return nil
}

type address struct {
	City string `db:"city"`
}

type customer struct {
	ID      int64    `db:"id"`
	Address *address `db:"address"`
}

type document struct {
	Code int32  `db:"code;type:int64"`
	Body string `db:"body;type:rawjson"`
	Ref  *int64 `db:"ref"`
}

func mustParse(t *testing.T, text string) *query.Template {
	t.Helper()
	tpl, err := query.Parse(text)
	require.NoError(t, err)
	return tpl
}

func TestSerialize(t *testing.T) {
	s := NewSerializer(codec.Default(), schema.New())
	tpl := mustParse(t, "SELECT * FROM table WHERE id = :id AND name = :name;")

	bindings, err := s.Serialize(tpl, map[string]any{"id": int64(42), "name": "alice"})
	require.NoError(t, err)
	require.Len(t, bindings, 2)

	assert.Equal(t, wire.Binding{Type: wire.TypeLongLong, Buffer: wire.PutInt(42, 8)}, bindings[0])
	assert.Equal(t, wire.Binding{Type: wire.TypeVarString, Buffer: []byte("alice")}, bindings[1])
	assert.Equal(t, bindings, s.Bindings())
}

func TestSerializeSignedness(t *testing.T) {
	s := NewSerializer(nil, nil)
	tpl := mustParse(t, "VALUES (:min, :max, :big)")

	bindings, err := s.Serialize(tpl, map[string]any{
		"min": int64(math.MinInt64),
		"max": uint64(math.MaxUint64),
		"big": uint64(1 << 63),
	})
	require.NoError(t, err)

	assert.Equal(t, wire.TypeLongLong, bindings[0].Type)
	assert.False(t, bindings[0].Unsigned)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0x80}, bindings[0].Buffer)

	assert.Equal(t, wire.TypeLongLong, bindings[1].Type)
	assert.True(t, bindings[1].Unsigned)
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, bindings[1].Buffer)

	assert.True(t, bindings[2].Unsigned)
	assert.Equal(t, wire.PutUint(1<<63, 8), bindings[2].Buffer)
}

func TestSerializeNulls(t *testing.T) {
	s := NewSerializer(nil, nil)
	tpl := mustParse(t, "VALUES (:a, :b, :c)")

	var missing *int64
	bindings, err := s.Serialize(tpl, map[string]any{
		"a": nil,
		"b": missing,
		"c": codec.Value{Type: codec.TypeString},
	})
	require.NoError(t, err)
	assert.Equal(t, wire.NullBinding(wire.TypeNull, false), bindings[0])
	assert.Equal(t, wire.NullBinding(wire.TypeLongLong, false), bindings[1])
	assert.Equal(t, wire.NullBinding(wire.TypeVarString, false), bindings[2])
	for _, b := range bindings {
		assert.Equal(t, 0, b.Len())
	}
}

func TestSerializeDeclaredType(t *testing.T) {
	s := NewSerializer(nil, nil)
	tpl := mustParse(t, "SELECT :v")

	bindings, err := s.Serialize(tpl, map[string]any{"v": codec.Value{Type: codec.TypeInt16, Data: 5}})
	require.NoError(t, err)
	assert.Equal(t, wire.Binding{Type: wire.TypeShort, Buffer: []byte{5, 0}}, bindings[0])
}

func TestSerializeDeclaredFieldTypes(t *testing.T) {
	s := NewSerializer(nil, schema.New())
	tpl := mustParse(t, "INSERT INTO docs VALUES (:d.code, :d.body, :d.ref)")

	bindings, err := s.Serialize(tpl, map[string]any{
		"d": &document{Code: 7, Body: `{"a":1}`},
	})
	require.NoError(t, err)
	require.Len(t, bindings, 3)
	assert.Equal(t, wire.Binding{Type: wire.TypeLongLong, Buffer: wire.PutInt(7, 8)}, bindings[0])
	assert.Equal(t, wire.Binding{Type: wire.TypeJSON, Buffer: []byte(`{"a":1}`)}, bindings[1])
	assert.Equal(t, wire.NullBinding(wire.TypeLongLong, false), bindings[2])

	_, err = s.Serialize(tpl, map[string]any{"d": &document{Body: "{"}})
	assert.True(t, codec.ErrConversion.Is(err), "got %v", err)
}

func TestSerializeNestedPaths(t *testing.T) {
	s := NewSerializer(nil, schema.New())
	tpl := mustParse(t, "SELECT :c.id, :c.address.city")

	bindings, err := s.Serialize(tpl, map[string]any{
		"c": &customer{ID: 9, Address: &address{City: "Oslo"}},
	})
	require.NoError(t, err)
	assert.Equal(t, wire.PutInt(9, 8), bindings[0].Buffer)
	assert.Equal(t, []byte("Oslo"), bindings[1].Buffer)

	_, err = s.Serialize(tpl, map[string]any{"c": &customer{ID: 9}})
	assert.True(t, ErrParameterResolution.Is(err), "nil pointer in the middle of a path")

	_, err = NewSerializer(nil, nil).Serialize(tpl, map[string]any{"c": &customer{}})
	assert.True(t, ErrParameterResolution.Is(err))
}

func TestSerializeAllOrNothing(t *testing.T) {
	s := NewSerializer(nil, schema.New())
	tpl := mustParse(t, "SELECT :a, :b, :c")

	_, err := s.Serialize(tpl, map[string]any{"a": 1, "b": 2, "c": 3})
	require.NoError(t, err)

	tests := []struct {
		name   string
		values map[string]any
		kind   interface{ Is(error) bool }
	}{
		{"MissingValue", map[string]any{"a": 1, "c": 3}, ErrParameterResolution},
		{"UnsupportedType", map[string]any{"a": 1, "b": struct{}{}, "c": 3}, codec.ErrUnsupportedType},
		{"Overflow", map[string]any{"a": 1, "b": 2, "c": codec.Value{Type: codec.TypeInt8, Data: 300}}, codec.ErrConversion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bindings, err := s.Serialize(tpl, tt.values)
			assert.Nil(t, bindings)
			assert.True(t, tt.kind.Is(err), "got %v", err)
			assert.Nil(t, s.Bindings())
		})
	}
}

func TestSerializeSizeLimit(t *testing.T) {
	s := NewSerializer(nil, nil, WithMaxBindingSize(4))
	tpl := mustParse(t, "SELECT :v")

	for _, v := range []any{"hello", []byte("hello"), codec.Value{Type: codec.TypeBytes, Data: []byte("hello")}} {
		_, err := s.Serialize(tpl, map[string]any{"v": v})
		assert.True(t, codec.ErrAllocation.Is(err), "%T", v)
	}

	bindings, err := s.Serialize(tpl, map[string]any{"v": "four"})
	require.NoError(t, err)
	assert.Equal(t, 4, bindings[0].Len())
}

func TestStringClassification(t *testing.T) {
	s := NewSerializer(nil, nil)
	tpl := mustParse(t, "SELECT :text, :bin, :raw")

	bindings, err := s.Serialize(tpl, map[string]any{
		"text": "line\tone\n",
		"bin":  "caf\xc3\xa9",
		"raw":  []byte("plain"),
	})
	require.NoError(t, err)
	assert.Equal(t, wire.TypeVarString, bindings[0].Type)
	assert.Equal(t, wire.TypeBlob, bindings[1].Type)
	assert.Equal(t, wire.TypeBlob, bindings[2].Type)
}

func TestBindAll(t *testing.T) {
	s := NewSerializer(nil, nil)
	tpl := mustParse(t, "SELECT :a, :b")
	_, err := s.Serialize(tpl, map[string]any{"a": true, "b": 1.5})
	require.NoError(t, err)

	rec := &recorder{}
	require.NoError(t, s.BindAll(rec))
	assert.Equal(t, 1, rec.calls)
	require.Len(t, rec.bindings, 2)
	assert.Equal(t, wire.TypeTiny, rec.bindings[0].Type)
	assert.Equal(t, wire.TypeDouble, rec.bindings[1].Type)

	s.Release()
	assert.Nil(t, s.Bindings())
	require.NoError(t, s.BindAll(rec))
	assert.Empty(t, rec.bindings)
}
