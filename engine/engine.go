// Package engine runs named-placeholder SQL against a database session:
// templates are parsed once, statements are prepared once and pooled, and
// result rows are mapped onto Go values.
package engine

import (
	"context"
	"io"
	"reflect"

	"github.com/sirupsen/logrus"

	"github.com/Konsultn-Engineering/stmtbind/bind"
	"github.com/Konsultn-Engineering/stmtbind/cache"
	"github.com/Konsultn-Engineering/stmtbind/codec"
	"github.com/Konsultn-Engineering/stmtbind/database"
	"github.com/Konsultn-Engineering/stmtbind/dialect"
	"github.com/Konsultn-Engineering/stmtbind/result"
	"github.com/Konsultn-Engineering/stmtbind/schema"
)

// Params holds named parameter values. Nested placeholders such as
// :user.id resolve against the value stored under the first segment.
type Params map[string]any

type Engine struct {
	session database.Session
	dialect dialect.Dialect
	cfg     Config
	log     *logrus.Entry
	closer  io.Closer

	reg         *codec.Registry
	schema      *schema.Context
	mapper      *result.Mapper
	templates   *cache.TemplateCache
	statements  *cache.StatementPool
	serializers *serializerPool
}

type Option func(*Engine)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithDialect sets the placeholder dialect; MySQL by default.
func WithDialect(d dialect.Dialect) Option {
	return func(e *Engine) { e.dialect = d }
}

// WithRegistry sets the codec registry; codec.Default() by default.
func WithRegistry(reg *codec.Registry) Option {
	return func(e *Engine) { e.reg = reg }
}

// WithLogger sets the logger shared by every component.
func WithLogger(log *logrus.Entry) Option {
	return func(e *Engine) { e.log = log }
}

// WithCloser registers c to be closed by Close after the statement pool.
func WithCloser(c io.Closer) Option {
	return func(e *Engine) { e.closer = c }
}

// New returns an engine preparing statements on session.
func New(session database.Session, opts ...Option) (*Engine, error) {
	e := &Engine{session: session, cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	if e.dialect == nil {
		e.dialect = dialect.NewMySQLDialect()
	}
	if e.reg == nil {
		e.reg = codec.Default()
	}
	if e.log == nil {
		e.log = logrus.NewEntry(logrus.StandardLogger())
	}
	e.log = e.log.WithField("dialect", e.dialect.Name())

	e.schema = schema.New(e.cfg.schemaOptions()...)
	e.mapper = result.NewMapper(e.reg, e.schema,
		result.WithAllowTruncation(e.cfg.AllowTruncation),
		result.WithPlanCacheSize(e.cfg.PlanCacheSize),
		result.WithLogger(e.log),
	)

	var err error
	if e.templates, err = cache.NewTemplateCache(e.cfg.TemplateCacheSize, e.dialect, e.log); err != nil {
		return nil, err
	}
	if e.statements, err = cache.NewStatementPool(session, e.cfg.StatementCacheSize, e.log); err != nil {
		return nil, err
	}
	e.serializers = newSerializerPool(func() *bind.Serializer {
		return bind.NewSerializer(e.reg, e.schema,
			bind.WithMaxBindingSize(e.cfg.MaxBindingSize),
			bind.WithLogger(e.log),
		)
	})
	return e, nil
}

// Dialect returns the placeholder dialect.
func (e *Engine) Dialect() dialect.Dialect { return e.dialect }

// Registry returns the codec registry.
func (e *Engine) Registry() *codec.Registry { return e.reg }

// Session returns the underlying session.
func (e *Engine) Session() database.Session { return e.session }

// Close closes every pooled statement and then the registered closer.
func (e *Engine) Close() error {
	err := e.statements.Close()
	e.templates.Purge()
	if e.closer != nil {
		if cerr := e.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Exec runs a statement that produces no rows.
func (e *Engine) Exec(ctx context.Context, text string, params Params) (database.Result, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	st, res, err := e.execute(ctx, text, params)
	if err != nil {
		return nil, err
	}
	e.release(st)
	return res, nil
}

// Query runs a statement and maps up to maxCount rows onto shape. A negative
// maxCount reads every row; see result.Mapper.ReadMany.
func (e *Engine) Query(ctx context.Context, text string, params Params, shape result.Shape, maxCount int) (any, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	st, _, err := e.execute(ctx, text, params)
	if err != nil {
		return nil, err
	}
	defer e.release(st)

	cols := st.Columns()
	cur, err := result.NewCursor(ctx, st, len(cols))
	if err != nil {
		return nil, err
	}
	return e.mapper.ReadMany(cur, cols, shape, maxCount)
}

// execute parses, binds and executes text. Statements that fail to bind or
// execute are discarded instead of going back to the pool.
func (e *Engine) execute(ctx context.Context, text string, params Params) (database.Statement, database.Result, error) {
	tpl, err := e.templates.Parse(text)
	if err != nil {
		return nil, nil, err
	}

	s := e.serializers.Get()
	defer e.serializers.Put(s)
	if _, err := s.Serialize(tpl, params); err != nil {
		return nil, nil, err
	}

	st, err := e.statements.Checkout(ctx, tpl.Text())
	if err != nil {
		return nil, nil, err
	}
	if err := s.BindAll(st); err != nil {
		e.statements.Discard(st)
		return nil, nil, err
	}
	res, err := st.Execute(ctx)
	if err != nil {
		e.statements.Discard(st)
		return nil, nil, err
	}
	return st, res, nil
}

func (e *Engine) release(st database.Statement) {
	if err := database.Reset(st); err != nil {
		e.statements.Discard(st)
		return
	}
	e.statements.Release(st)
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.QueryTimeout > 0 {
		return context.WithTimeout(ctx, e.cfg.QueryTimeout)
	}
	return ctx, func() {}
}

// ShapeOf returns the shape a value of type t is mapped as: maps keyed by
// string become Map shapes, structs without a codec become Objects, and
// everything else a Scalar.
func (e *Engine) ShapeOf(t reflect.Type) (result.Shape, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() == reflect.Map && t.Key().Kind() == reflect.String {
		id, ok := e.reg.TypeFor(t.Elem())
		if !ok {
			return nil, codec.ErrUnsupportedType.New(t.Elem().String())
		}
		return result.Map{Value: id}, nil
	}
	id, ok := e.reg.TypeFor(t)
	if t.Kind() == reflect.Struct && !ok {
		return result.Object{Type: t}, nil
	}
	if !ok {
		return nil, codec.ErrUnsupportedType.New(t.String())
	}
	return result.Scalar{Type: id}, nil
}

// Get runs text and returns its first row as a T. It fails with
// result.ErrNoRows when the statement produced no rows.
func Get[T any](ctx context.Context, e *Engine, text string, params Params) (T, error) {
	var out T
	shape, err := e.ShapeOf(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return out, err
	}
	v, err := e.Query(ctx, text, params, shape, 1)
	if err != nil {
		return out, err
	}
	if v == nil {
		return out, result.ErrNoRows.New()
	}
	err = store(reflect.ValueOf(&out).Elem(), v)
	return out, err
}

// Select runs text and returns every row as a T.
func Select[T any](ctx context.Context, e *Engine, text string, params Params) ([]T, error) {
	shape, err := e.ShapeOf(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return nil, err
	}
	v, err := e.Query(ctx, text, params, result.CollectionOf(shape), -1)
	if err != nil || v == nil {
		return nil, err
	}
	if out, ok := v.([]T); ok {
		return out, nil
	}
	var out []T
	err = store(reflect.ValueOf(&out).Elem(), v)
	return out, err
}

// store copies a mapped value into target, dereferencing object pointers
// and converting decoded scalars into named target types.
func store(target reflect.Value, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Type() == target.Type() {
		target.Set(rv.Elem())
		return nil
	}
	if target.Kind() == reflect.Slice && rv.Kind() == reflect.Slice && !rv.Type().AssignableTo(target.Type()) {
		out := reflect.MakeSlice(target.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if err := store(out.Index(i), rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		target.Set(out)
		return nil
	}
	return schema.Assign(target, v, "result")
}
