package database

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Konsultn-Engineering/stmtbind/utils"
	"github.com/Konsultn-Engineering/stmtbind/wire"
)

// PgxSession implements Session for pgxpool.Pool. Every prepared statement
// holds a pooled connection until it is closed.
type PgxSession struct {
	pool *pgxpool.Pool
	opts options
}

// NewPgxSession wraps pool.
func NewPgxSession(pool *pgxpool.Pool, opts ...Option) *PgxSession {
	return &PgxSession{pool: pool, opts: newOptions(opts)}
}

// Pool returns the underlying pool.
func (p *PgxSession) Pool() *pgxpool.Pool { return p.pool }

// Prepare acquires a connection and prepares text on it under a name derived
// from the text, so preparing the same text on the same connection is free.
func (p *PgxSession) Prepare(ctx context.Context, text string) (Statement, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("stmtbind_%016x", utils.U64(text))
	sd, err := conn.Conn().Prepare(ctx, name, text)
	if err != nil {
		conn.Release()
		return nil, err
	}
	p.opts.log.WithFields(map[string]any{"sql": text, "name": name}).Debug("prepared statement")

	cols := make([]wire.Column, len(sd.Fields))
	for i, fd := range sd.Fields {
		cols[i] = pgColumn(fd)
	}
	return &PgxStatement{
		conn:   conn,
		name:   name,
		text:   text,
		params: len(sd.ParamOIDs),
		cols:   cols,
		opts:   p.opts,
	}, nil
}

// PingContext verifies the connection to the database is alive.
func (p *PgxSession) PingContext(ctx context.Context) error { return p.pool.Ping(ctx) }

// Close closes the pool.
func (p *PgxSession) Close() error {
	p.pool.Close()
	return nil
}

// PgxStatement implements Statement for a statement prepared on a pooled
// connection.
type PgxStatement struct {
	conn   *pgxpool.Conn
	name   string
	text   string
	params int
	cols   []wire.Column
	opts   options

	args    []any
	rows    pgx.Rows
	values  []any
	scratch []byte
}

func (s *PgxStatement) Text() string { return s.text }

// BindParameters converts bindings to driver arguments for the next Execute.
func (s *PgxStatement) BindParameters(bindings []wire.Binding) error {
	if len(bindings) != s.params {
		return ErrBindingCount.New(s.params, len(bindings))
	}
	args, err := DriverArgs(bindings, s.opts.loc)
	if err != nil {
		return err
	}
	s.args = args
	return nil
}

// Execute runs the statement. Statements with result fields are run as
// queries.
func (s *PgxStatement) Execute(ctx context.Context) (Result, error) {
	s.closeRows()
	if len(s.cols) == 0 {
		tag, err := s.conn.Exec(ctx, s.name, s.args...)
		if err != nil {
			return nil, err
		}
		return NewResult(tag.RowsAffected(), 0), nil
	}
	rows, err := s.conn.Query(ctx, s.name, s.args...)
	if err != nil {
		return nil, err
	}
	s.rows = rows
	return NewResult(0, 0), nil
}

func (s *PgxStatement) Columns() []wire.Column { return s.cols }

// FetchNextRow reads the next row and re-encodes it into row.
func (s *PgxStatement) FetchNextRow(ctx context.Context, row *wire.Row) (FetchStatus, error) {
	if s.rows == nil {
		if len(s.cols) > 0 {
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
	raw, err := s.rows.Values()
	if err != nil {
		return FetchNoData, err
	}
	if cap(s.values) < len(raw) {
		s.values = make([]any, len(raw))
	}
	s.values = s.values[:len(raw)]
	for i, v := range raw {
		if s.values[i], err = pgNormalize(v); err != nil {
			return FetchNoData, err
		}
	}
	var status FetchStatus
	s.scratch, status, err = fillRow(row, s.cols, s.values, s.scratch, s.opts.maxColumnSize)
	return status, err
}

func (s *PgxStatement) closeRows() {
	if s.rows != nil {
		s.rows.Close()
		s.rows = nil
	}
}

// Reset releases the current result set.
func (s *PgxStatement) Reset() error {
	s.closeRows()
	return nil
}

// Close releases the result set and returns the connection to the pool. The
// server-side statement stays cached on the connection.
func (s *PgxStatement) Close() error {
	s.closeRows()
	if s.conn != nil {
		s.conn.Release()
		s.conn = nil
	}
	return nil
}

// ===================
// TYPE MAPPING
// ===================

var pgWireTypes = map[uint32]wire.Type{
	pgtype.BoolOID:        wire.TypeTiny,
	pgtype.Int2OID:        wire.TypeShort,
	pgtype.Int4OID:        wire.TypeLong,
	pgtype.Int8OID:        wire.TypeLongLong,
	pgtype.OIDOID:         wire.TypeLongLong,
	pgtype.Float4OID:      wire.TypeFloat,
	pgtype.Float8OID:      wire.TypeDouble,
	pgtype.NumericOID:     wire.TypeNewDecimal,
	pgtype.TextOID:        wire.TypeVarString,
	pgtype.VarcharOID:     wire.TypeVarString,
	pgtype.BPCharOID:      wire.TypeString,
	pgtype.NameOID:        wire.TypeVarString,
	pgtype.ByteaOID:       wire.TypeBlob,
	pgtype.UUIDOID:        wire.TypeBlob,
	pgtype.DateOID:        wire.TypeDate,
	pgtype.TimestampOID:   wire.TypeDatetime,
	pgtype.TimestamptzOID: wire.TypeTimestamp,
	pgtype.TimeOID:        wire.TypeTime,
	pgtype.IntervalOID:    wire.TypeTime,
	pgtype.JSONOID:        wire.TypeJSON,
	pgtype.JSONBOID:       wire.TypeJSON,
	pgtype.BitOID:         wire.TypeBit,
	pgtype.VarbitOID:      wire.TypeBit,
}

func pgWireType(oid uint32) wire.Type {
	if t, ok := pgWireTypes[oid]; ok {
		return t
	}
	return wire.TypeVarString
}

func pgColumn(fd pgconn.FieldDescription) wire.Column {
	col := wire.Column{
		Name:     fd.Name,
		Type:     pgWireType(fd.DataTypeOID),
		Unsigned: fd.DataTypeOID == pgtype.BitOID || fd.DataTypeOID == pgtype.VarbitOID,
	}
	if fd.DataTypeSize > 0 {
		col.Length = int(fd.DataTypeSize)
	}
	if fd.DataTypeOID == pgtype.NumericOID && fd.TypeModifier >= 4 {
		col.Decimals = int((fd.TypeModifier - 4) & 0xffff)
	}
	return col
}

// pgNormalize turns values decoded by pgx into the plain Go values
// wire.Append understands.
func pgNormalize(v any) (any, error) {
	switch x := v.(type) {
	case pgtype.Numeric:
		if !x.Valid {
			return nil, nil
		}
		return x.Value()
	case [16]byte:
		return x[:], nil
	case pgtype.Time:
		if !x.Valid {
			return nil, nil
		}
		return time.Duration(x.Microseconds) * time.Microsecond, nil
	case pgtype.Interval:
		if !x.Valid {
			return nil, nil
		}
		days := int64(x.Days) + int64(x.Months)*30
		return time.Duration(x.Microseconds)*time.Microsecond + time.Duration(days)*24*time.Hour, nil
	case pgtype.Bits:
		if !x.Valid {
			return nil, nil
		}
		if x.Len > 64 {
			return nil, fmt.Errorf("bit string of %d bits does not fit 64", x.Len)
		}
		n := new(big.Int).SetBytes(x.Bytes)
		n.Rsh(n, uint(len(x.Bytes)*8-int(x.Len)))
		return n.Uint64(), nil
	default:
		return v, nil
	}
}

var (
	_ Session   = (*PgxSession)(nil)
	_ Statement = (*PgxStatement)(nil)
)
