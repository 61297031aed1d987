package engine

import (
	"context"
	"fmt"
	"reflect"

	"github.com/Konsultn-Engineering/stmtbind/database"
	"github.com/Konsultn-Engineering/stmtbind/result"
)

// Session is a fluent builder for one statement call.
type Session struct {
	engine *Engine
	text   string
	params Params
	limit  *int
}

// SQL starts a call of the named-placeholder statement text.
func (e *Engine) SQL(text string) *Session {
	return &Session{engine: e, text: text, params: Params{}}
}

// Bind sets the value of parameter name.
func (s *Session) Bind(name string, value any) *Session {
	s.params[name] = value
	return s
}

// BindAll copies every entry of params.
func (s *Session) BindAll(params Params) *Session {
	for k, v := range params {
		s.params[k] = v
	}
	return s
}

// Limit caps the number of rows Find maps into a slice.
func (s *Session) Limit(n int) *Session {
	s.limit = &n
	return s
}

// Exec runs the statement for its side effects.
func (s *Session) Exec(ctx context.Context) (database.Result, error) {
	return s.engine.Exec(ctx, s.text, s.params)
}

// Find maps the result into dest, which must be a pointer to a slice, a
// struct, a map or a scalar. Slices receive every row up to the limit; the
// other kinds receive the first row and fail with result.ErrNoRows when
// there is none.
func (s *Session) Find(ctx context.Context, dest any) error {
	destVal := reflect.ValueOf(dest)
	if destVal.Kind() != reflect.Ptr || destVal.IsNil() {
		return fmt.Errorf("Find expects a non-nil pointer, got %T", dest)
	}
	target := destVal.Elem()

	if target.Kind() == reflect.Slice && target.Type().Elem().Kind() != reflect.Uint8 {
		shape, err := s.engine.ShapeOf(target.Type().Elem())
		if err != nil {
			return err
		}
		maxCount := -1
		if s.limit != nil {
			maxCount = *s.limit
		}
		v, err := s.engine.Query(ctx, s.text, s.params, result.CollectionOf(shape), maxCount)
		if err != nil || v == nil {
			return err
		}
		return store(target, v)
	}

	shape, err := s.engine.ShapeOf(target.Type())
	if err != nil {
		return err
	}
	v, err := s.engine.Query(ctx, s.text, s.params, shape, 1)
	if err != nil {
		return err
	}
	if v == nil {
		return result.ErrNoRows.New()
	}
	return store(target, v)
}
