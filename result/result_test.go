package result

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/stmtbind/codec"
	"github.com/Konsultn-Engineering/stmtbind/database/dbtest"
	"github.com/Konsultn-Engineering/stmtbind/wire"
)

type user struct {
	ID    int64   `db:"id"`
	Name  string  `db:"name"`
	Email *string `db:"email"`
}

type strictUser struct {
	ID   int64  `db:"id"`
	Name string `db:"name;not_null"`
}

type event struct {
	Kind    string `db:"kind"`
	Payload any    `db:"payload;selected_by:Kind"`
}

func (e *event) SelectType(field string, selector any) (codec.TypeID, error) {
	switch selector {
	case "n":
		return codec.TypeInt64, nil
	case "s":
		return codec.TypeString, nil
	}
	return "", fmt.Errorf("unknown kind %v", selector)
}

var userColumns = []wire.Column{
	dbtest.Column("id", wire.TypeLongLong),
	dbtest.Column("name", wire.TypeVarString),
	dbtest.Column("email", wire.TypeVarString),
}

func userFixture() dbtest.Fixture {
	return dbtest.Fixture{
		Columns: userColumns,
		Rows: [][]dbtest.Cell{
			{dbtest.Int(wire.TypeLongLong, 1), dbtest.Text("ann"), dbtest.Text("ann@example.com")},
			{dbtest.Int(wire.TypeLongLong, 2), dbtest.Text("bartholomew"), dbtest.Null},
			{dbtest.Int(wire.TypeLongLong, 3), dbtest.Text("cy"), dbtest.Null},
		},
	}
}

func open(t *testing.T, f dbtest.Fixture) (*Cursor, []wire.Column) {
	t.Helper()
	ctx := context.Background()
	session := dbtest.NewSession().On("q", f)
	st, err := session.Prepare(ctx, "q")
	require.NoError(t, err)
	_, err = st.Execute(ctx)
	require.NoError(t, err)
	cur, err := NewCursor(ctx, st, len(st.Columns()))
	require.NoError(t, err)
	return cur, st.Columns()
}

func TestCursor(t *testing.T) {
	cur, _ := open(t, userFixture())
	assert.True(t, cur.HasMore)
	assert.True(t, cur.Success)
	assert.Equal(t, int64(0), cur.RowIndex)

	for cur.HasMore {
		require.NoError(t, cur.Advance())
	}
	assert.Equal(t, int64(3), cur.RowIndex)
	require.NoError(t, cur.Advance())
	assert.Equal(t, int64(3), cur.RowIndex)
	assert.NoError(t, cur.Err())
}

func TestReadOne(t *testing.T) {
	m := NewMapper(nil, nil)

	t.Run("Object", func(t *testing.T) {
		cur, cols := open(t, userFixture())
		v, err := m.ReadOne(cur, cols, ObjectOf[user]())
		require.NoError(t, err)
		u := v.(*user)
		assert.Equal(t, int64(1), u.ID)
		assert.Equal(t, "ann", u.Name)
		require.NotNil(t, u.Email)
		assert.Equal(t, "ann@example.com", *u.Email)
		assert.Equal(t, int64(0), cur.RowIndex, "ReadOne does not advance")
	})

	t.Run("NullIntoPointer", func(t *testing.T) {
		cur, cols := open(t, userFixture())
		require.NoError(t, cur.Advance())
		v, err := m.ReadOne(cur, cols, ObjectOf[user]())
		require.NoError(t, err)
		assert.Nil(t, v.(*user).Email)
	})

	t.Run("Scalar", func(t *testing.T) {
		cur, cols := open(t, dbtest.Fixture{
			Columns: []wire.Column{dbtest.Column("count", wire.TypeLongLong)},
			Rows:    [][]dbtest.Cell{{dbtest.Int(wire.TypeLongLong, 3)}},
		})
		v, err := m.ReadOne(cur, cols, Scalar{Type: codec.TypeInt64})
		require.NoError(t, err)
		assert.Equal(t, int64(3), v)
	})

	t.Run("ScalarNeedsOneColumn", func(t *testing.T) {
		cur, cols := open(t, userFixture())
		_, err := m.ReadOne(cur, cols, Scalar{Type: codec.TypeInt64})
		assert.True(t, ErrShape.Is(err))
	})

	t.Run("Map", func(t *testing.T) {
		cur, cols := open(t, userFixture())
		v, err := m.ReadOne(cur, cols, Map{Value: codec.TypeString})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"id": "1", "name": "ann", "email": "ann@example.com"}, v)
	})

	t.Run("RowAsCollection", func(t *testing.T) {
		cur, cols := open(t, userFixture())
		v, err := m.ReadOne(cur, cols, CollectionOf(Scalar{Type: codec.TypeString}))
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "ann", "ann@example.com"}, v)
	})

	t.Run("NoColumns", func(t *testing.T) {
		cur, cols := open(t, dbtest.Fixture{})
		v, err := m.ReadOne(cur, cols, ObjectOf[user]())
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("NoRows", func(t *testing.T) {
		cur, cols := open(t, dbtest.Fixture{Columns: userColumns})
		_, err := m.ReadOne(cur, cols, ObjectOf[user]())
		assert.True(t, ErrNoRows.Is(err))
	})

	t.Run("SchemaMismatch", func(t *testing.T) {
		cur, cols := open(t, dbtest.Fixture{
			Columns: []wire.Column{dbtest.Column("id", wire.TypeLongLong), dbtest.Column("nickname", wire.TypeVarString)},
			Rows:    [][]dbtest.Cell{{dbtest.Int(wire.TypeLongLong, 1), dbtest.Text("a")}},
		})
		_, err := m.ReadOne(cur, cols, ObjectOf[user]())
		assert.True(t, ErrSchemaMismatch.Is(err))
	})

	t.Run("NotNull", func(t *testing.T) {
		cur, cols := open(t, dbtest.Fixture{
			Columns: userColumns[:2],
			Rows:    [][]dbtest.Cell{{dbtest.Int(wire.TypeLongLong, 1), dbtest.Null}},
		})
		_, err := m.ReadOne(cur, cols, ObjectOf[strictUser]())
		assert.True(t, ErrNullValue.Is(err))
	})

	t.Run("NotAStruct", func(t *testing.T) {
		cur, cols := open(t, userFixture())
		_, err := m.ReadOne(cur, cols, ObjectOf[int]())
		assert.True(t, ErrShape.Is(err))
	})
}

func TestReadMany(t *testing.T) {
	m := NewMapper(nil, nil)

	t.Run("All", func(t *testing.T) {
		cur, cols := open(t, userFixture())
		v, err := m.ReadMany(cur, cols, CollectionOf(ObjectOf[user]()), -1)
		require.NoError(t, err)
		users := v.([]user)
		require.Len(t, users, 3)
		assert.Equal(t, "bartholomew", users[1].Name)
		assert.Nil(t, users[2].Email)
		assert.False(t, cur.HasMore)
	})

	t.Run("Limit", func(t *testing.T) {
		cur, cols := open(t, userFixture())
		v, err := m.ReadMany(cur, cols, CollectionOf(ObjectOf[user]()), 2)
		require.NoError(t, err)
		assert.Len(t, v.([]user), 2)
		assert.Equal(t, int64(2), cur.RowIndex)
		assert.True(t, cur.HasMore)

		rest, err := m.ReadMany(cur, cols, CollectionOf(ObjectOf[user]()), -1)
		require.NoError(t, err)
		require.Len(t, rest.([]user), 1)
		assert.Equal(t, int64(3), rest.([]user)[0].ID)
	})

	t.Run("ValuesOutliveBuffers", func(t *testing.T) {
		cur, cols := open(t, userFixture())
		v, err := m.ReadMany(cur, cols, CollectionOf(Map{Value: codec.TypeString}), -1)
		require.NoError(t, err)
		rows := v.([]map[string]string)
		require.Len(t, rows, 3)
		assert.Equal(t, "ann", rows[0]["name"])
		assert.Equal(t, "bartholomew", rows[1]["name"])
		assert.Equal(t, "cy", rows[2]["name"])
		assert.Equal(t, "", rows[2]["email"])
	})

	t.Run("SingleRowShapes", func(t *testing.T) {
		cur, cols := open(t, userFixture())
		_, err := m.ReadMany(cur, cols, ObjectOf[user](), -1)
		assert.True(t, ErrMultipleRows.Is(err))
		_, err = m.ReadMany(cur, cols, ObjectOf[user](), 2)
		assert.True(t, ErrMultipleRows.Is(err))

		v, err := m.ReadMany(cur, cols, ObjectOf[user](), 0)
		require.NoError(t, err)
		assert.Nil(t, v)

		v, err = m.ReadMany(cur, cols, ObjectOf[user](), 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v.(*user).ID)
		assert.Equal(t, int64(1), cur.RowIndex)
	})

	t.Run("Empty", func(t *testing.T) {
		cur, cols := open(t, dbtest.Fixture{Columns: userColumns})
		v, err := m.ReadMany(cur, cols, CollectionOf(ObjectOf[user]()), -1)
		require.NoError(t, err)
		assert.Empty(t, v)

		v, err = m.ReadMany(cur, cols, ObjectOf[user](), 1)
		require.NoError(t, err)
		assert.Nil(t, v)
	})
}

func TestTruncation(t *testing.T) {
	f := userFixture()
	f.MaxColumnSize = 8

	cur, cols := open(t, f)
	_, err := NewMapper(nil, nil).ReadMany(cur, cols, CollectionOf(ObjectOf[user]()), -1)
	assert.True(t, ErrDataTruncated.Is(err))

	cur, cols = open(t, f)
	v, err := NewMapper(nil, nil, WithAllowTruncation(true)).ReadMany(cur, cols, CollectionOf(ObjectOf[user]()), -1)
	require.NoError(t, err)
	users := v.([]user)
	require.Len(t, users, 3)
	assert.Equal(t, "bartholo", users[1].Name)
}

func TestTypeSelection(t *testing.T) {
	cols := []wire.Column{
		dbtest.Column("payload", wire.TypeVarString),
		dbtest.Column("kind", wire.TypeVarString),
	}
	m := NewMapper(nil, nil)

	cur, _ := open(t, dbtest.Fixture{
		Columns: cols,
		Rows: [][]dbtest.Cell{
			{dbtest.Text("42"), dbtest.Text("n")},
			{dbtest.Text("hi"), dbtest.Text("s")},
		},
	})
	v, err := m.ReadMany(cur, cols, CollectionOf(ObjectOf[event]()), -1)
	require.NoError(t, err)
	events := v.([]event)
	require.Len(t, events, 2)
	assert.Equal(t, int64(42), events[0].Payload)
	assert.Equal(t, "hi", events[1].Payload)

	cur, _ = open(t, dbtest.Fixture{
		Columns: cols,
		Rows:    [][]dbtest.Cell{{dbtest.Text("x"), dbtest.Text("?")}},
	})
	_, err = m.ReadOne(cur, cols, ObjectOf[event]())
	assert.True(t, ErrTypeSelection.Is(err))
}

func TestSelectorRequiresInterface(t *testing.T) {
	type loose struct {
		Kind    string `db:"kind"`
		Payload any    `db:"payload;selected_by:Kind"`
	}
	cur, cols := open(t, dbtest.Fixture{
		Columns: []wire.Column{dbtest.Column("kind", wire.TypeVarString), dbtest.Column("payload", wire.TypeVarString)},
		Rows:    [][]dbtest.Cell{{dbtest.Text("n"), dbtest.Text("1")}},
	})
	_, err := NewMapper(nil, nil).ReadOne(cur, cols, ObjectOf[loose]())
	assert.True(t, ErrTypeSelection.Is(err))
}

func TestDecoder(t *testing.T) {
	dec := NewDecoder(nil)
	cur, cols := open(t, userFixture())

	v, err := dec.Column(cur, cols, 0, codec.TypeInt32)
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)

	row, err := dec.Row(cur, cols)
	require.NoError(t, err)
	assert.Equal(t, []any{
		codec.Value{Type: codec.TypeInt64, Data: int64(1)},
		codec.Value{Type: codec.TypeString, Data: "ann"},
		codec.Value{Type: codec.TypeString, Data: "ann@example.com"},
	}, row)

	require.NoError(t, cur.Advance())
	row, err = dec.Row(cur, cols)
	require.NoError(t, err)
	assert.Nil(t, row[2])

	_, err = dec.Column(cur, cols, 5, codec.TypeString)
	assert.Error(t, err)

	for cur.HasMore {
		require.NoError(t, cur.Advance())
	}
	_, err = dec.Column(cur, cols, 0, codec.TypeString)
	assert.True(t, ErrNoRows.Is(err))
}

func TestNestedCollections(t *testing.T) {
	cur, cols := open(t, userFixture())
	v, err := NewMapper(nil, nil).ReadMany(cur, cols, CollectionOf(CollectionOf(Scalar{Type: codec.TypeString})), -1)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"1", "ann", "ann@example.com"},
		{"2", "bartholomew", ""},
		{"3", "cy", ""},
	}, v)
}
