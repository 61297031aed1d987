package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Konsultn-Engineering/stmtbind/wire"
)

type options struct {
	log           *logrus.Entry
	maxColumnSize int
	loc           *time.Location
}

// Option configures a session adapter.
type Option func(*options)

// WithLogger sets the logger used for statement diagnostics.
func WithLogger(log *logrus.Entry) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithMaxColumnSize caps the bytes kept per fetched column. Larger values are
// cut and the row is reported as FetchTruncated. Zero means unlimited.
func WithMaxColumnSize(n int) Option {
	return func(o *options) {
		o.maxColumnSize = n
	}
}

// WithLocation sets the zone whose wall time temporal bindings carry. It
// must match the codec registry's location. The default is UTC.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

func newOptions(opts []Option) options {
	o := options{log: logrus.NewEntry(logrus.StandardLogger()), loc: time.UTC}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SQLSession implements Session for *sql.DB.
type SQLSession struct {
	db   *sql.DB
	opts options
}

// NewSQLSession wraps db.
func NewSQLSession(db *sql.DB, opts ...Option) *SQLSession {
	return &SQLSession{db: db, opts: newOptions(opts)}
}

// DB returns the underlying handle.
func (s *SQLSession) DB() *sql.DB { return s.db }

// Prepare creates a prepared statement.
func (s *SQLSession) Prepare(ctx context.Context, text string) (Statement, error) {
	stmt, err := s.db.PrepareContext(ctx, text)
	if err != nil {
		return nil, err
	}
	s.opts.log.WithField("sql", text).Debug("prepared statement")
	return &SQLStatement{
		stmt:        stmt,
		text:        text,
		returnsRows: ReturnsRows(text),
		opts:        s.opts,
	}, nil
}

// PingContext verifies the connection to the database is alive.
func (s *SQLSession) PingContext(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the database.
func (s *SQLSession) Close() error { return s.db.Close() }

// SQLStatement implements Statement for *sql.Stmt.
type SQLStatement struct {
	stmt        *sql.Stmt
	text        string
	returnsRows bool
	opts        options

	args    []any
	rows    *sql.Rows
	cols    []wire.Column
	dest    []any
	values  []any
	scratch []byte
}

func (s *SQLStatement) Text() string { return s.text }

// BindParameters converts bindings to driver arguments for the next Execute.
func (s *SQLStatement) BindParameters(bindings []wire.Binding) error {
	args, err := DriverArgs(bindings, s.opts.loc)
	if err != nil {
		return err
	}
	s.args = args
	return nil
}

// Execute runs the statement. Statements that produce rows are run as
// queries; their Result reports no affected rows.
func (s *SQLStatement) Execute(ctx context.Context) (Result, error) {
	s.closeRows()
	if !s.returnsRows {
		res, err := s.stmt.ExecContext(ctx, s.args...)
		if err != nil {
			return nil, err
		}
		affected, _ := res.RowsAffected()
		lastID, _ := res.LastInsertId()
		return NewResult(affected, lastID), nil
	}

	rows, err := s.stmt.QueryContext(ctx, s.args...)
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		_ = rows.Close()
		return nil, err
	}
	s.rows = rows
	s.cols = make([]wire.Column, len(types))
	for i, ct := range types {
		s.cols[i] = columnFromType(ct)
	}
	s.values = make([]any, len(types))
	s.dest = make([]any, len(types))
	for i := range s.values {
		s.dest[i] = &s.values[i]
	}
	return NewResult(0, 0), nil
}

func columnFromType(ct *sql.ColumnType) wire.Column {
	t, unsigned, known := wire.TypeByName(ct.DatabaseTypeName())
	if !known && ct.ScanType() != nil {
		t, unsigned = typeFromScanType(ct.ScanType().Kind().String())
	}
	col := wire.Column{Name: ct.Name(), Type: t, Unsigned: unsigned}
	if n, ok := ct.Length(); ok {
		col.Length = int(n)
	}
	if _, scale, ok := ct.DecimalSize(); ok {
		col.Decimals = int(scale)
	}
	return col
}

// typeFromScanType is the fallback for drivers that report no type names.
func typeFromScanType(kind string) (wire.Type, bool) {
	switch kind {
	case "int8", "int16", "int32", "int64", "int":
		return wire.TypeLongLong, false
	case "uint8", "uint16", "uint32", "uint64", "uint":
		return wire.TypeLongLong, true
	case "float32", "float64":
		return wire.TypeDouble, false
	case "bool":
		return wire.TypeTiny, false
	case "slice":
		return wire.TypeBlob, false
	default:
		return wire.TypeVarString, false
	}
}

func (s *SQLStatement) Columns() []wire.Column { return s.cols }

// FetchNextRow scans the next row and re-encodes it into row.
func (s *SQLStatement) FetchNextRow(ctx context.Context, row *wire.Row) (FetchStatus, error) {
	if s.rows == nil {
		if s.returnsRows {
			return FetchNoData, ErrNotExecuted.New(s.text)
		}
		return FetchNoData, nil
	}
	if err := ctx.Err(); err != nil {
		return FetchNoData, err
	}
	if !s.rows.Next() {
		err := s.rows.Err()
		s.closeRows()
		return FetchNoData, err
	}
	if err := s.rows.Scan(s.dest...); err != nil {
		return FetchNoData, err
	}
	var status FetchStatus
	var err error
	s.scratch, status, err = fillRow(row, s.cols, s.values, s.scratch, s.opts.maxColumnSize)
	return status, err
}

func (s *SQLStatement) closeRows() {
	if s.rows != nil {
		_ = s.rows.Close()
		s.rows = nil
	}
}

// Reset releases the current result set, returning its connection to the
// pool. The statement stays prepared.
func (s *SQLStatement) Reset() error {
	s.closeRows()
	return nil
}

// Close releases the result set and the prepared statement.
func (s *SQLStatement) Close() error {
	s.closeRows()
	return s.stmt.Close()
}

var (
	_ Session   = (*SQLSession)(nil)
	_ Statement = (*SQLStatement)(nil)
)
