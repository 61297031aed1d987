// Package database is the execution boundary: it prepares statements, hands
// them encoded bindings and fills reusable row buffers from their result
// sets. Adapters exist for database/sql and for pgx connection pools.
package database

import (
	"context"
	"strings"
	"time"

	"gopkg.in/src-d/go-errors.v1"

	"github.com/Konsultn-Engineering/stmtbind/wire"
)

var (
	// ErrBindingCount is returned when a statement receives a different
	// number of bindings than it has parameters.
	ErrBindingCount = errors.NewKind("statement expects %d bindings, got %d")
	// ErrNotExecuted is returned when rows are fetched before Execute.
	ErrNotExecuted = errors.NewKind("statement %q has not been executed")
	// ErrRowShape is returned when a row buffer has the wrong column count.
	ErrRowShape = errors.NewKind("row has %d columns, result has %d")
)

// FetchStatus reports the outcome of FetchNextRow.
type FetchStatus uint8

const (
	// FetchNoData means the result set is exhausted.
	FetchNoData FetchStatus = iota
	// FetchRow means a complete row was written into the buffers.
	FetchRow
	// FetchTruncated means a row was written but at least one column did not
	// fit its buffer.
	FetchTruncated
)

func (s FetchStatus) String() string {
	switch s {
	case FetchRow:
		return "row"
	case FetchTruncated:
		return "truncated"
	default:
		return "no data"
	}
}

// Result summarizes an executed statement.
type Result interface {
	RowsAffected() (int64, error)
	LastInsertId() (int64, error)
}

// Session prepares statements on a connection source.
type Session interface {
	Prepare(ctx context.Context, text string) (Statement, error)
	PingContext(ctx context.Context) error
	Close() error
}

// Statement is a prepared statement. It is not safe for concurrent use.
//
// BindParameters receives the full binding list in one call; Execute runs the
// statement with the last bindings. When the statement produces a result
// set, Columns describes it and FetchNextRow overwrites row in place for
// every row until FetchNoData.
type Statement interface {
	Text() string
	BindParameters(bindings []wire.Binding) error
	Execute(ctx context.Context) (Result, error)
	Columns() []wire.Column
	FetchNextRow(ctx context.Context, row *wire.Row) (FetchStatus, error)
	Close() error
}

// Resetter is implemented by statements that can drop an unread result set
// without being closed.
type Resetter interface {
	Reset() error
}

// Reset releases the result set of st if it supports it.
func Reset(st Statement) error {
	if r, ok := st.(Resetter); ok {
		return r.Reset()
	}
	return nil
}

type execResult struct {
	affected int64
	lastID   int64
}

func (r execResult) RowsAffected() (int64, error) { return r.affected, nil }
func (r execResult) LastInsertId() (int64, error) { return r.lastID, nil }

// NewResult returns a Result with fixed counters.
func NewResult(affected, lastInsertID int64) Result {
	return execResult{affected: affected, lastID: lastInsertID}
}

// DriverArgs converts bindings into driver arguments. Temporal bindings are
// read as wall time in loc.
func DriverArgs(bindings []wire.Binding, loc *time.Location) ([]any, error) {
	args := make([]any, len(bindings))
	for i, b := range bindings {
		v, err := b.DriverValueIn(loc)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

var rowKeywords = []string{"SELECT", "WITH", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "VALUES", "TABLE", "CALL"}

// ReturnsRows guesses whether text produces a result set from its leading
// keyword or a RETURNING clause.
func ReturnsRows(text string) bool {
	trimmed := strings.TrimLeft(text, " \t\r\n(")
	upper := strings.ToUpper(trimmed)
	for _, kw := range rowKeywords {
		if strings.HasPrefix(upper, kw) && (len(upper) == len(kw) || !isWordByte(upper[len(kw)])) {
			return true
		}
	}
	return strings.Contains(" "+strings.Join(strings.Fields(upper), " ")+" ", " RETURNING ")
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// fillRow re-encodes driver values into the row buffers. Columns whose
// encoding exceeds limit (when positive) are cut and reported as truncated.
func fillRow(row *wire.Row, cols []wire.Column, values []any, scratch []byte, limit int) ([]byte, FetchStatus, error) {
	if row.Len() != len(cols) {
		return scratch, FetchNoData, ErrRowShape.New(row.Len(), len(cols))
	}
	status := FetchRow
	for i, v := range values {
		if v == nil {
			row.SetNull(i)
			continue
		}
		var err error
		scratch, err = wire.Append(scratch, cols[i], v)
		if err != nil {
			return scratch, FetchNoData, err
		}
		if limit > 0 && len(scratch) > limit {
			row.Set(i, scratch[:limit])
			status = FetchTruncated
			continue
		}
		row.Set(i, scratch)
	}
	return scratch, status, nil
}
