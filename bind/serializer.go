// Package bind turns a parsed template and a set of named values into the
// positional bindings of a prepared statement.
package bind

import (
	"reflect"

	"github.com/sirupsen/logrus"
	"gopkg.in/src-d/go-errors.v1"

	"github.com/Konsultn-Engineering/stmtbind/codec"
	"github.com/Konsultn-Engineering/stmtbind/dialect"
	"github.com/Konsultn-Engineering/stmtbind/query"
	"github.com/Konsultn-Engineering/stmtbind/wire"
)

// DefaultMaxBindingSize is the largest buffer a single binding may use.
const DefaultMaxBindingSize = 16 << 20

// ErrParameterResolution is returned when a placeholder cannot be resolved
// to a value. A missing value is never bound as NULL.
var ErrParameterResolution = errors.NewKind("cannot resolve parameter :%s: %s")

// Resolver navigates the nested segments of a placeholder path. It returns
// the type id declared for the value, or an empty id when none is.
type Resolver interface {
	ResolveProperty(root any, path []string) (any, codec.TypeID, error)
}

// Binder receives the complete binding list of a statement.
type Binder interface {
	BindParameters(bindings []wire.Binding) error
}

type options struct {
	maxBindingSize int
	log            *logrus.Entry
}

// Option configures a Serializer.
type Option func(*options)

// WithMaxBindingSize sets the largest encoded size of a single binding.
func WithMaxBindingSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBindingSize = n
		}
	}
}

// WithLogger sets the logger used to trace bound statements.
func WithLogger(log *logrus.Entry) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// Serializer encodes template parameters. It holds the bindings of its last
// Serialize call and must not be used by two goroutines at once; create one
// per call or guard it externally.
type Serializer struct {
	reg      *codec.Registry
	res      Resolver
	opts     options
	tpl      *query.Template
	bindings []wire.Binding
}

// NewSerializer returns a serializer using reg for encoding and res for
// nested paths. A nil res rejects nested placeholders.
func NewSerializer(reg *codec.Registry, res Resolver, opts ...Option) *Serializer {
	o := options{
		maxBindingSize: DefaultMaxBindingSize,
		log:            logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if reg == nil {
		reg = codec.Default()
	}
	return &Serializer{reg: reg, res: res, opts: o}
}

// Serialize produces one binding per placeholder of tpl, in template order.
// It either succeeds for every placeholder or returns nil bindings and the
// first error.
func (s *Serializer) Serialize(tpl *query.Template, values map[string]any) ([]wire.Binding, error) {
	s.Release()

	out := make([]wire.Binding, 0, tpl.Len())
	for i := 0; i < tpl.Len(); i++ {
		v := tpl.Variable(i)
		val, id, err := s.resolve(v, values)
		if err != nil {
			return nil, err
		}
		b, err := s.encode(id, val)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}

	s.tpl = tpl
	s.bindings = out
	s.trace()
	return out, nil
}

func (s *Serializer) resolve(v query.Variable, values map[string]any) (any, codec.TypeID, error) {
	root, ok := values[v.Key()]
	if !ok {
		return nil, "", ErrParameterResolution.New(v.Name, "no value named "+v.Key())
	}
	if !v.Nested() {
		return root, "", nil
	}
	if s.res == nil {
		return nil, "", ErrParameterResolution.New(v.Name, "nested paths need a resolver")
	}
	val, id, err := s.res.ResolveProperty(root, v.Path[1:])
	if err != nil {
		return nil, "", ErrParameterResolution.New(v.Name, err.Error())
	}
	return val, id, nil
}

// encode dispatches on the declared id, falling back to the id of val's
// static type so typed nil pointers keep their column type.
func (s *Serializer) encode(id codec.TypeID, val any) (wire.Binding, error) {
	if id == "" {
		if found, ok := s.reg.TypeOf(val); ok {
			id = found
		} else {
			id = codec.TypeAny
		}
	}
	limit := s.opts.maxBindingSize
	if n := payloadSize(val); n > limit {
		return wire.Binding{}, codec.ErrAllocation.New(id, n, limit)
	}
	b, err := s.reg.Encode(id, val)
	if err != nil {
		return wire.Binding{}, err
	}
	if b.Len() > limit {
		return wire.Binding{}, codec.ErrAllocation.New(b.Type, b.Len(), limit)
	}
	return b, nil
}

// payloadSize returns the length of variable-size values before encoding so
// oversized inputs are rejected without copying them.
func payloadSize(v any) int {
	switch x := v.(type) {
	case codec.Value:
		return payloadSize(x.Data)
	case *codec.Value:
		if x == nil {
			return 0
		}
		return payloadSize(x.Data)
	case string:
		return len(x)
	case []byte:
		return len(x)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String || (rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8) {
		return rv.Len()
	}
	return 0
}

// BindAll hands the bindings of the last Serialize call to stmt in one call.
func (s *Serializer) BindAll(stmt Binder) error {
	bindings := s.bindings
	if bindings == nil {
		bindings = []wire.Binding{}
	}
	return stmt.BindParameters(bindings)
}

// Bindings returns the bindings of the last successful Serialize call.
func (s *Serializer) Bindings() []wire.Binding {
	return s.bindings
}

// Release drops the bindings so their buffers can be collected.
func (s *Serializer) Release() {
	s.tpl = nil
	s.bindings = nil
}

func (s *Serializer) trace() {
	log := s.opts.log
	if !log.Logger.IsLevelEnabled(logrus.TraceLevel) {
		return
	}
	d, ok := dialect.ByName(s.tpl.Dialect())
	if !ok {
		d = dialect.NewMySQLDialect()
	}
	args := make([]string, len(s.bindings))
	for i, b := range s.bindings {
		v, err := b.DriverValueIn(s.reg.Location())
		if err != nil {
			args[i] = "?"
			continue
		}
		args[i] = d.RenderValue(v)
	}
	log.WithFields(logrus.Fields{"sql": s.tpl.Text(), "args": args}).Trace("bound statement")
}
