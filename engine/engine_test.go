package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/stmtbind/bind"
	"github.com/Konsultn-Engineering/stmtbind/codec"
	"github.com/Konsultn-Engineering/stmtbind/database/dbtest"
	"github.com/Konsultn-Engineering/stmtbind/dialect"
	"github.com/Konsultn-Engineering/stmtbind/query"
	"github.com/Konsultn-Engineering/stmtbind/result"
	"github.com/Konsultn-Engineering/stmtbind/wire"
)

type user struct {
	ID    int64   `db:"id"`
	Name  string  `db:"name"`
	Email *string `db:"email"`
}

const (
	selectUsers = "SELECT id, name, email FROM users WHERE id > ?"
	countUsers  = "SELECT COUNT(*) FROM users"
	renameUser  = "UPDATE users SET name = ? WHERE id = ?"
)

func usersFixture() dbtest.Fixture {
	return dbtest.Fixture{
		Columns: []wire.Column{
			dbtest.Column("id", wire.TypeLongLong),
			dbtest.Column("name", wire.TypeVarString),
			dbtest.Column("email", wire.TypeVarString),
		},
		Rows: [][]dbtest.Cell{
			{dbtest.Int(wire.TypeLongLong, 1), dbtest.Text("ann"), dbtest.Text("ann@example.com")},
			{dbtest.Int(wire.TypeLongLong, 2), dbtest.Text("bob"), dbtest.Null},
			{dbtest.Int(wire.TypeLongLong, 3), dbtest.Text("cy"), dbtest.Null},
		},
	}
}

func newEngine(t *testing.T, session *dbtest.Session, opts ...Option) *Engine {
	t.Helper()
	logger, _ := test.NewNullLogger()
	e, err := New(session, append([]Option{WithLogger(logrus.NewEntry(logger))}, opts...)...)
	require.NoError(t, err)
	return e
}

func TestExec(t *testing.T) {
	ctx := context.Background()
	session := dbtest.NewSession().On(renameUser, dbtest.Fixture{Affected: 1})
	e := newEngine(t, session)

	res, err := e.Exec(ctx, "UPDATE users SET name = :name WHERE id = :id", Params{"name": "bob", "id": 7})
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	bindings := session.LastBindings()
	require.Len(t, bindings, 2)
	assert.Equal(t, wire.Binding{Type: wire.TypeVarString, Buffer: []byte("bob")}, bindings[0])
	assert.Equal(t, wire.Binding{Type: wire.TypeLongLong, Buffer: wire.PutInt(7, 8)}, bindings[1])
}

func TestSelect(t *testing.T) {
	ctx := context.Background()
	session := dbtest.NewSession().On(selectUsers, usersFixture())
	e := newEngine(t, session)

	users, err := Select[user](ctx, e, "SELECT id, name, email FROM users WHERE id > :min", Params{"min": 0})
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "bob", users[1].Name)
	require.NotNil(t, users[0].Email)
	assert.Equal(t, "ann@example.com", *users[0].Email)
	assert.Nil(t, users[2].Email)

	again, err := Select[*user](ctx, e, "SELECT id, name, email FROM users WHERE id > :min", Params{"min": 0})
	require.NoError(t, err)
	require.Len(t, again, 3)
	assert.Equal(t, int64(3), again[2].ID)

	assert.Equal(t, 1, session.Prepared(selectUsers), "statements are reused")
	assert.Len(t, session.Executions(), 2)
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	session := dbtest.NewSession().
		On(selectUsers, usersFixture()).
		On(countUsers, dbtest.Fixture{
			Columns: []wire.Column{dbtest.Column("COUNT(*)", wire.TypeLongLong)},
			Rows:    [][]dbtest.Cell{{dbtest.Int(wire.TypeLongLong, 3)}},
		}).
		On("SELECT id, name, email FROM users WHERE id = ?", dbtest.Fixture{Columns: usersFixture().Columns})
	e := newEngine(t, session)

	t.Run("Object", func(t *testing.T) {
		u, err := Get[user](ctx, e, "SELECT id, name, email FROM users WHERE id > :min", Params{"min": 0})
		require.NoError(t, err)
		assert.Equal(t, "ann", u.Name)
	})

	t.Run("Scalar", func(t *testing.T) {
		n, err := Get[int64](ctx, e, countUsers, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("NamedScalar", func(t *testing.T) {
		type count int
		n, err := Get[count](ctx, e, countUsers, nil)
		require.NoError(t, err)
		assert.Equal(t, count(3), n)
	})

	t.Run("Map", func(t *testing.T) {
		row, err := Get[map[string]string](ctx, e, "SELECT id, name, email FROM users WHERE id > :min", Params{"min": 0})
		require.NoError(t, err)
		assert.Equal(t, "ann", row["name"])
	})

	t.Run("NoRows", func(t *testing.T) {
		_, err := Get[user](ctx, e, "SELECT id, name, email FROM users WHERE id = :id", Params{"id": 9})
		assert.True(t, result.ErrNoRows.Is(err))
	})

	t.Run("NestedParameter", func(t *testing.T) {
		_, err := Get[user](ctx, e, "SELECT id, name, email FROM users WHERE id = :u.id", Params{"u": user{ID: 2}})
		assert.True(t, result.ErrNoRows.Is(err))
		assert.Equal(t, wire.PutInt(2, 8), session.LastBindings()[0].Buffer)
	})
}

func TestFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	session := dbtest.NewSession().
		On(selectUsers, usersFixture()).
		On("DELETE FROM users WHERE id = ?", dbtest.Fixture{ExecErr: boom})
	e := newEngine(t, session)

	t.Run("MalformedTemplate", func(t *testing.T) {
		_, err := e.Exec(ctx, "SELECT 'open", nil)
		assert.True(t, query.ErrMalformedTemplate.Is(err))
	})

	t.Run("MissingParameter", func(t *testing.T) {
		_, err := Select[user](ctx, e, "SELECT id, name, email FROM users WHERE id > :min", nil)
		assert.True(t, bind.ErrParameterResolution.Is(err))
		assert.Equal(t, 0, session.Prepared(selectUsers), "nothing is prepared before serialization succeeds")
	})

	t.Run("ExecuteErrorDiscards", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_, err := e.Exec(ctx, "DELETE FROM users WHERE id = :id", Params{"id": 1})
			assert.ErrorIs(t, err, boom)
		}
		assert.Equal(t, 2, session.Prepared("DELETE FROM users WHERE id = ?"))
		assert.Equal(t, 2, session.Closed("DELETE FROM users WHERE id = ?"))
	})

	t.Run("MappingErrorKeepsStatement", func(t *testing.T) {
		_, err := Get[struct{ ID int64 }](ctx, e, "SELECT id, name, email FROM users WHERE id > :min", Params{"min": 0})
		assert.True(t, result.ErrSchemaMismatch.Is(err))
		assert.Equal(t, 0, session.Closed(selectUsers))
	})
}

func TestFind(t *testing.T) {
	ctx := context.Background()
	session := dbtest.NewSession().On(selectUsers, usersFixture())
	e := newEngine(t, session)
	text := "SELECT id, name, email FROM users WHERE id > :min"

	var users []user
	require.NoError(t, e.SQL(text).Bind("min", 0).Limit(2).Find(ctx, &users))
	assert.Len(t, users, 2)

	var ptrs []*user
	require.NoError(t, e.SQL(text).BindAll(Params{"min": 0}).Find(ctx, &ptrs))
	require.Len(t, ptrs, 3)
	assert.Equal(t, "cy", ptrs[2].Name)

	var one user
	require.NoError(t, e.SQL(text).Bind("min", 0).Find(ctx, &one))
	assert.Equal(t, int64(1), one.ID)

	assert.Error(t, e.SQL(text).Find(ctx, users))
}

func TestPostgresDialect(t *testing.T) {
	ctx := context.Background()
	session := dbtest.NewSession().On("UPDATE users SET name = $1 WHERE id = $2", dbtest.Fixture{Affected: 1})
	e := newEngine(t, session, WithDialect(dialect.NewPostgresDialect()))

	_, err := e.Exec(ctx, "UPDATE users SET name = :name WHERE id = :id", Params{"name": "x", "id": 1})
	require.NoError(t, err)
	assert.Equal(t, "postgres", e.Dialect().Name())
}

type closeRecorder struct{ closed int }

func (c *closeRecorder) Close() error {
	c.closed++
	return nil
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	session := dbtest.NewSession().On(selectUsers, usersFixture())
	closer := &closeRecorder{}
	e := newEngine(t, session, WithCloser(closer))

	_, err := Select[user](ctx, e, "SELECT id, name, email FROM users WHERE id > :min", Params{"min": 0})
	require.NoError(t, err)
	require.NoError(t, e.Close())
	assert.Equal(t, 1, session.Closed(selectUsers))
	assert.Equal(t, 1, closer.closed)
}

func TestShapeOf(t *testing.T) {
	e := newEngine(t, dbtest.NewSession())
	tests := []struct {
		name string
		typ  reflect.Type
		want result.Shape
	}{
		{"Struct", reflect.TypeOf(user{}), result.Object{Type: reflect.TypeOf(user{})}},
		{"StructPointer", reflect.TypeOf(&user{}), result.Object{Type: reflect.TypeOf(user{})}},
		{"Time", reflect.TypeOf(time.Time{}), result.Scalar{Type: codec.TypeTime}},
		{"String", reflect.TypeOf(""), result.Scalar{Type: codec.TypeString}},
		{"Map", reflect.TypeOf(map[string]int64{}), result.Map{Value: codec.TypeInt64}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ShapeOf(tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := e.ShapeOf(reflect.TypeOf(make(chan int)))
	assert.True(t, codec.ErrUnsupportedType.Is(err))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("STMTBIND_TEST_PASSWORD", "s3cret")
	path := filepath.Join(t.TempDir(), "stmtbind.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
connector:
  driver: postgres
  host: db
  port: 5432
  password: ${STMTBIND_TEST_PASSWORD}
  retry:
    max_retries: 3
    base_delay: 100ms
statement_cache_size: 8
query_timeout: 2s
allow_truncation: true
naming: camel
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Connector.Driver)
	assert.Equal(t, "s3cret", cfg.Connector.Password)
	require.NotNil(t, cfg.Connector.Retry)
	assert.Equal(t, 100*time.Millisecond, cfg.Connector.Retry.BaseDelay)
	assert.Equal(t, 8, cfg.StatementCacheSize)
	assert.Equal(t, 512, cfg.TemplateCacheSize, "defaults survive")
	assert.Equal(t, 2*time.Second, cfg.QueryTimeout)
	assert.True(t, cfg.AllowTruncation)

	require.NoError(t, os.WriteFile(path, []byte("naming: kebab\n"), 0o600))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "unknown naming")

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
