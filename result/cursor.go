package result

import (
	"context"

	"github.com/Konsultn-Engineering/stmtbind/database"
	"github.com/Konsultn-Engineering/stmtbind/wire"
)

// Fetcher fills a row with the next row of a result set.
type Fetcher interface {
	FetchNextRow(ctx context.Context, row *wire.Row) (database.FetchStatus, error)
}

// Cursor is the read position of an executed statement. It is positioned on
// the current row, whose column buffers are overwritten by every Advance.
// A Cursor must not be used concurrently.
type Cursor struct {
	// RowIndex counts the rows consumed so far.
	RowIndex int64
	// HasMore is true while the cursor is positioned on a row.
	HasMore bool
	// Success is false once a fetch has failed.
	Success bool
	// Truncated is true when the current row did not fit its buffers.
	Truncated bool
	Row       *wire.Row

	ctx context.Context
	src Fetcher
	err error
}

// NewCursor allocates buffers for columns and fetches the first row.
func NewCursor(ctx context.Context, src Fetcher, columns int) (*Cursor, error) {
	c := &Cursor{
		Success: true,
		Row:     wire.NewRow(columns),
		ctx:     ctx,
		src:     src,
	}
	return c, c.fetch()
}

// Advance moves to the next row. It is a no-op once the result set is
// exhausted.
func (c *Cursor) Advance() error {
	if !c.HasMore {
		return c.err
	}
	c.RowIndex++
	return c.fetch()
}

// Err returns the fetch error that ended the cursor, if any.
func (c *Cursor) Err() error {
	return c.err
}

func (c *Cursor) fetch() error {
	status, err := c.src.FetchNextRow(c.ctx, c.Row)
	if err != nil {
		c.HasMore = false
		c.Truncated = false
		c.Success = false
		c.err = err
		return err
	}
	c.HasMore = status != database.FetchNoData
	c.Truncated = status == database.FetchTruncated
	return nil
}
