// Package result maps the rows of an executed statement onto Go values:
// structs, typed slices, maps and scalars.
package result

import (
	"reflect"

	"github.com/sirupsen/logrus"
	"gopkg.in/src-d/go-errors.v1"

	"github.com/Konsultn-Engineering/stmtbind/cache"
	"github.com/Konsultn-Engineering/stmtbind/codec"
	"github.com/Konsultn-Engineering/stmtbind/schema"
	"github.com/Konsultn-Engineering/stmtbind/wire"
)

var (
	// ErrSchemaMismatch is returned when a column has no destination field.
	ErrSchemaMismatch = errors.NewKind("column %s has no destination field in %s")
	// ErrMultipleRows is returned when more than one row is requested into a
	// single-row shape.
	ErrMultipleRows = errors.NewKind("%s holds a single row, requested %d")
	// ErrDataTruncated is returned for rows whose columns did not fit their
	// buffers, unless truncation is allowed.
	ErrDataTruncated = errors.NewKind("row %d was truncated")
	// ErrNoRows is returned by ReadOne on an exhausted cursor.
	ErrNoRows = errors.NewKind("no rows in result set")
	// ErrShape is returned for output shapes that cannot hold the result.
	ErrShape = errors.NewKind("invalid output shape %v: %s")
	// ErrNullValue is returned when NULL is read into a not_null field.
	ErrNullValue = errors.NewKind("column %s is NULL but field %s is not nullable")
	// ErrTypeSelection is returned when the concrete type of a selected_by
	// field cannot be determined.
	ErrTypeSelection = errors.NewKind("cannot select type of field %s: %s")
)

// TypeSelector is implemented by structs with selected_by fields. It is
// called after every other field has been set and returns the codec type of
// field given the current value of its selector.
type TypeSelector interface {
	SelectType(field string, selector any) (codec.TypeID, error)
}

var typeSelectorType = reflect.TypeOf((*TypeSelector)(nil)).Elem()

const defaultPlanCacheSize = 512

type options struct {
	builder         Builder
	allowTruncation bool
	planCacheSize   int
	log             *logrus.Entry
}

// Option configures a Mapper.
type Option func(*options)

// WithBuilder replaces the reflection based container builder.
func WithBuilder(b Builder) Option {
	return func(o *options) { o.builder = b }
}

// WithAllowTruncation accepts truncated rows with a warning instead of
// failing with ErrDataTruncated.
func WithAllowTruncation(allow bool) Option {
	return func(o *options) { o.allowTruncation = allow }
}

// WithPlanCacheSize sets how many object plans are cached.
func WithPlanCacheSize(n int) Option {
	return func(o *options) { o.planCacheSize = n }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// Mapper converts cursor rows into output shapes. It is safe for concurrent
// use on different cursors.
type Mapper struct {
	reg    *codec.Registry
	dec    *Decoder
	schema *schema.Context
	opts   options
	plans  *cache.PlanCache[cache.PlanKey, *objectPlan]
}

// NewMapper returns a mapper decoding through reg and resolving struct
// fields through sc. Nil arguments select the defaults.
func NewMapper(reg *codec.Registry, sc *schema.Context, opts ...Option) *Mapper {
	if reg == nil {
		reg = codec.Default()
	}
	if sc == nil {
		sc = schema.New()
	}
	o := options{
		planCacheSize: defaultPlanCacheSize,
		log:           logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.builder == nil {
		o.builder = NewReflectBuilder(sc)
	}
	if o.planCacheSize <= 0 {
		o.planCacheSize = defaultPlanCacheSize
	}
	plans, err := cache.NewPlanCache[cache.PlanKey, *objectPlan](o.planCacheSize)
	if err != nil {
		panic(err)
	}
	return &Mapper{reg: reg, dec: NewDecoder(reg), schema: sc, opts: o, plans: plans}
}

// ReadOne maps the current row of cur. It does not advance the cursor. A
// result without columns yields nil.
func (m *Mapper) ReadOne(cur *Cursor, cols []wire.Column, shape Shape) (any, error) {
	if len(cols) == 0 {
		return nil, nil
	}
	if !cur.HasMore {
		if err := cur.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNoRows.New()
	}
	if err := m.checkTruncation(cur); err != nil {
		return nil, err
	}
	return m.readRow(cur, cols, shape)
}

// ReadMany maps up to maxCount rows, or every remaining row when maxCount is
// negative, advancing the cursor past each one. Collections produce one item
// per row; the single-row shapes accept at most one row. A result without
// columns yields nil.
func (m *Mapper) ReadMany(cur *Cursor, cols []wire.Column, shape Shape, maxCount int) (any, error) {
	if len(cols) == 0 {
		return nil, nil
	}

	coll, ok := shape.(Collection)
	if !ok {
		if maxCount < 0 || maxCount > 1 {
			return nil, ErrMultipleRows.New(shape, maxCount)
		}
		if maxCount == 0 || !cur.HasMore {
			return nil, cur.Err()
		}
		v, err := m.ReadOne(cur, cols, shape)
		if err != nil {
			return nil, err
		}
		return v, cur.Advance()
	}

	t, err := goType(m.reg, coll)
	if err != nil {
		return nil, err
	}
	container, err := m.opts.builder.CreateEmpty(t)
	if err != nil {
		return nil, err
	}
	n := 0
	for cur.HasMore && (maxCount < 0 || n < maxCount) {
		if err := m.checkTruncation(cur); err != nil {
			return nil, err
		}
		item, err := m.readRow(cur, cols, coll.Of)
		if err != nil {
			return nil, err
		}
		if err := m.opts.builder.Append(container, item); err != nil {
			return nil, err
		}
		n++
		if err := cur.Advance(); err != nil {
			return nil, err
		}
	}
	m.opts.log.WithFields(logrus.Fields{"rows": n, "shape": shape.String()}).Debug("mapped rows")
	return m.opts.builder.Finish(container), nil
}

func (m *Mapper) checkTruncation(cur *Cursor) error {
	if !cur.Truncated {
		return nil
	}
	if !m.opts.allowTruncation {
		return ErrDataTruncated.New(cur.RowIndex)
	}
	m.opts.log.WithField("row", cur.RowIndex).Warn("accepting truncated row")
	return nil
}

// readRow maps the current row onto shape.
func (m *Mapper) readRow(cur *Cursor, cols []wire.Column, shape Shape) (any, error) {
	switch s := shape.(type) {
	case Object:
		return m.readObject(cur.Row, cols, s)
	case Scalar:
		if len(cols) != 1 {
			return nil, ErrShape.New(s, "a scalar needs exactly one column")
		}
		return m.dec.Column(cur, cols, 0, s.Type)
	case Map:
		return m.readContainer(cur, cols, s, s.Value, false)
	case Collection:
		item, ok := s.Of.(Scalar)
		if !ok {
			return nil, ErrShape.New(s, "a single row collects scalars only")
		}
		return m.readContainer(cur, cols, s, item.Type, true)
	default:
		return nil, ErrShape.New(shape, "unknown shape")
	}
}

// readContainer decodes every column with the shared type id into a map or
// slice.
func (m *Mapper) readContainer(cur *Cursor, cols []wire.Column, shape Shape, id codec.TypeID, list bool) (any, error) {
	t, err := goType(m.reg, shape)
	if err != nil {
		return nil, err
	}
	b := m.opts.builder
	container, err := b.CreateEmpty(t)
	if err != nil {
		return nil, err
	}
	for i, col := range cols {
		v, err := m.dec.Column(cur, cols, i, id)
		if err != nil {
			return nil, err
		}
		if list {
			err = b.Append(container, v)
		} else {
			err = b.SetField(container, col.Name, v)
		}
		if err != nil {
			return nil, err
		}
	}
	return b.Finish(container), nil
}

// ===================
// OBJECTS
// ===================

type fieldPlan struct {
	col      int
	field    *schema.FieldMeta
	id       codec.TypeID
	selector *schema.FieldMeta
}

type objectPlan struct {
	meta     *schema.EntityMeta
	direct   []fieldPlan
	deferred []fieldPlan
}

func columnNames(cols []wire.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func (m *Mapper) plan(t reflect.Type, cols []wire.Column) (*objectPlan, error) {
	return m.plans.GetOrBuild(cache.NewPlanKey(t, columnNames(cols)), func() (*objectPlan, error) {
		return m.buildPlan(t, cols)
	})
}

func (m *Mapper) buildPlan(t reflect.Type, cols []wire.Column) (*objectPlan, error) {
	meta, err := m.schema.Introspect(t)
	if err != nil {
		return nil, err
	}
	p := &objectPlan{meta: meta}
	for i, col := range cols {
		fm, ok := meta.Column(col.Name)
		if !ok {
			return nil, ErrSchemaMismatch.New(col.Name, meta.Name)
		}
		fp := fieldPlan{col: i, field: fm, id: fm.TypeID}

		if fm.SelectedBy != "" {
			sel, ok := meta.FieldMap[fm.SelectedBy]
			if !ok {
				sel, ok = meta.Column(fm.SelectedBy)
			}
			if !ok {
				return nil, ErrTypeSelection.New(fm.Name, "unknown selector "+fm.SelectedBy)
			}
			if sel.SelectedBy != "" {
				return nil, ErrTypeSelection.New(fm.Name, "selector "+sel.Name+" is itself selected")
			}
			if !reflect.PointerTo(t).Implements(typeSelectorType) {
				return nil, ErrTypeSelection.New(fm.Name, meta.Name+" does not implement TypeSelector")
			}
			fp.selector = sel
			p.deferred = append(p.deferred, fp)
			continue
		}

		if fp.id == "" {
			id, ok := m.reg.TypeFor(fm.Type)
			if !ok {
				return nil, codec.ErrUnsupportedType.New(fm.Type.String())
			}
			fp.id = id
		} else if _, ok := m.reg.Lookup(fp.id); !ok {
			return nil, codec.ErrUnsupportedType.New(string(fp.id))
		}
		p.direct = append(p.direct, fp)
	}
	return p, nil
}

type pendingField struct {
	plan fieldPlan
	buf  []byte
	null bool
}

// readObject builds a struct in two phases. Directly typed fields are
// decoded first and the raw bytes of selected_by fields are copied aside;
// the selected fields are decoded once their selectors are populated. On
// error no object is returned.
func (m *Mapper) readObject(row *wire.Row, cols []wire.Column, s Object) (any, error) {
	t, err := s.structType()
	if err != nil {
		return nil, err
	}
	p, err := m.plan(t, cols)
	if err != nil {
		return nil, err
	}

	b := m.opts.builder
	obj, err := b.CreateEmpty(t)
	if err != nil {
		return nil, err
	}

	for _, fp := range p.direct {
		if err := m.setField(obj, cols[fp.col], row.Buffers[fp.col], row.Nulls[fp.col], fp, fp.id); err != nil {
			return nil, err
		}
	}

	if len(p.deferred) == 0 {
		return b.Finish(obj), nil
	}
	pending := make([]pendingField, len(p.deferred))
	for i, fp := range p.deferred {
		pending[i] = pendingField{
			plan: fp,
			buf:  append([]byte(nil), row.Buffers[fp.col]...),
			null: row.Nulls[fp.col],
		}
	}

	selector, ok := obj.(TypeSelector)
	if !ok {
		return nil, ErrTypeSelection.New(p.deferred[0].field.Name, "container does not implement TypeSelector")
	}
	target := reflect.ValueOf(obj).Elem()
	for _, pf := range pending {
		sel := pf.plan.selector.Field(target).Interface()
		id, err := selector.SelectType(pf.plan.field.Name, sel)
		if err != nil {
			return nil, ErrTypeSelection.New(pf.plan.field.Name, err.Error())
		}
		if err := m.setField(obj, cols[pf.plan.col], pf.buf, pf.null, pf.plan, id); err != nil {
			return nil, err
		}
	}
	return b.Finish(obj), nil
}

func (m *Mapper) setField(obj any, col wire.Column, buf []byte, null bool, fp fieldPlan, id codec.TypeID) error {
	if null && fp.field.NotNull {
		return ErrNullValue.New(col.Name, fp.field.Name)
	}
	v, err := m.reg.Decode(col, buf, null, id)
	if err != nil {
		return err
	}
	return m.opts.builder.SetField(obj, fp.field.Name, v)
}
