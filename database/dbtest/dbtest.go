// Package dbtest provides an in-memory database.Session for tests. Statements
// record the bindings they receive and serve canned rows, overwriting the
// caller's row buffers in place like a real driver does.
package dbtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/Konsultn-Engineering/stmtbind/database"
	"github.com/Konsultn-Engineering/stmtbind/wire"
)

// Cell is one encoded column value. A nil Cell is SQL NULL.
type Cell []byte

// Fixture is the canned response of a statement.
type Fixture struct {
	Columns  []wire.Column
	Rows     [][]Cell
	Affected int64
	LastID   int64
	// MaxColumnSize cuts cells longer than this and reports FetchTruncated.
	MaxColumnSize int
	// PrepareErr and ExecErr are returned by Prepare and Execute.
	PrepareErr error
	ExecErr    error
}

// Session is an in-memory database.Session. Fixtures are matched by the
// exact statement text.
type Session struct {
	mu       sync.Mutex
	fixtures map[string]Fixture
	prepared map[string]int
	closed   map[string]int
	executed []Execution
}

// Execution records one Execute call.
type Execution struct {
	Text     string
	Bindings []wire.Binding
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{
		fixtures: make(map[string]Fixture),
		prepared: make(map[string]int),
		closed:   make(map[string]int),
	}
}

// On registers the fixture served for text.
func (s *Session) On(text string, f Fixture) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixtures[text] = f
	return s
}

// Prepared returns how many times text was prepared.
func (s *Session) Prepared(text string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prepared[text]
}

// Closed returns how many statements for text were closed.
func (s *Session) Closed(text string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed[text]
}

// Executions returns every Execute call in order.
func (s *Session) Executions() []Execution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Execution(nil), s.executed...)
}

// LastBindings returns the bindings of the most recent Execute.
func (s *Session) LastBindings() []wire.Binding {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.executed) == 0 {
		return nil
	}
	return s.executed[len(s.executed)-1].Bindings
}

func (s *Session) Prepare(ctx context.Context, text string) (database.Statement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fixtures[text]
	if !ok {
		return nil, fmt.Errorf("dbtest: no fixture for %q", text)
	}
	if f.PrepareErr != nil {
		return nil, f.PrepareErr
	}
	s.prepared[text]++
	return &Statement{session: s, text: text, fixture: f, next: -1}, nil
}

func (s *Session) PingContext(ctx context.Context) error { return ctx.Err() }

func (s *Session) Close() error { return nil }

// Statement is an in-memory database.Statement.
type Statement struct {
	session  *Session
	text     string
	fixture  Fixture
	bindings []wire.Binding
	next     int
	closed   bool
}

func (st *Statement) Text() string { return st.text }

// BindParameters stores a copy of bindings.
func (st *Statement) BindParameters(bindings []wire.Binding) error {
	if st.closed {
		return fmt.Errorf("dbtest: statement %q is closed", st.text)
	}
	st.bindings = make([]wire.Binding, len(bindings))
	for i, b := range bindings {
		b.Buffer = append([]byte(nil), b.Buffer...)
		st.bindings[i] = b
	}
	return nil
}

func (st *Statement) Execute(ctx context.Context) (database.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if st.fixture.ExecErr != nil {
		return nil, st.fixture.ExecErr
	}
	st.session.mu.Lock()
	st.session.executed = append(st.session.executed, Execution{Text: st.text, Bindings: st.bindings})
	st.session.mu.Unlock()
	st.next = 0
	return database.NewResult(st.fixture.Affected, st.fixture.LastID), nil
}

func (st *Statement) Columns() []wire.Column { return st.fixture.Columns }

func (st *Statement) FetchNextRow(ctx context.Context, row *wire.Row) (database.FetchStatus, error) {
	if err := ctx.Err(); err != nil {
		return database.FetchNoData, err
	}
	if st.next < 0 {
		return database.FetchNoData, database.ErrNotExecuted.New(st.text)
	}
	if st.next >= len(st.fixture.Rows) {
		return database.FetchNoData, nil
	}
	if row.Len() != len(st.fixture.Columns) {
		return database.FetchNoData, database.ErrRowShape.New(row.Len(), len(st.fixture.Columns))
	}
	cells := st.fixture.Rows[st.next]
	st.next++

	status := database.FetchRow
	limit := st.fixture.MaxColumnSize
	for i, c := range cells {
		switch {
		case c == nil:
			row.SetNull(i)
		case limit > 0 && len(c) > limit:
			row.Set(i, c[:limit])
			status = database.FetchTruncated
		default:
			row.Set(i, c)
		}
	}
	return status, nil
}

// Reset drops the current result set; fetching again requires Execute.
func (st *Statement) Reset() error {
	st.next = -1
	return nil
}

func (st *Statement) Close() error {
	if st.closed {
		return nil
	}
	st.closed = true
	st.session.mu.Lock()
	st.session.closed[st.text]++
	st.session.mu.Unlock()
	return nil
}

var (
	_ database.Session   = (*Session)(nil)
	_ database.Statement = (*Statement)(nil)
)

// Column returns a signed column description.
func Column(name string, t wire.Type) wire.Column {
	return wire.Column{Name: name, Type: t}
}

// UnsignedColumn returns an unsigned column description.
func UnsignedColumn(name string, t wire.Type) wire.Column {
	return wire.Column{Name: name, Type: t, Unsigned: true}
}

// Int encodes v in the width of t.
func Int(t wire.Type, v int64) Cell { return wire.PutInt(v, t.Width()) }

// Uint encodes v in the width of t.
func Uint(t wire.Type, v uint64) Cell { return wire.PutUint(v, t.Width()) }

// Text encodes a string cell.
func Text(s string) Cell { return Cell(s) }

// Null is the SQL NULL cell.
var Null Cell
