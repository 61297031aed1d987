package cache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/Konsultn-Engineering/stmtbind/database"
)

// StatementPool keeps idle prepared statements keyed by their text. A
// statement is owned by exactly one caller between Checkout and Release;
// statements evicted from the pool are closed.
type StatementPool struct {
	mu      sync.Mutex
	cache   *lru.Cache[uint64, database.Statement]
	session database.Session
	log     *logrus.Entry
	// taking is set while Checkout removes an entry so the evict callback
	// does not close a statement that is being handed out.
	taking bool
}

// NewStatementPool returns a pool holding at most size idle statements.
func NewStatementPool(session database.Session, size int, log *logrus.Entry) (*StatementPool, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	p := &StatementPool{session: session, log: log}
	c, err := lru.NewWithEvict(size, func(key uint64, st database.Statement) {
		if p.taking {
			return
		}
		p.close(st, "evicted statement")
	})
	if err != nil {
		return nil, err
	}
	p.cache = c
	return p, nil
}

// Checkout returns an idle statement for text or prepares a new one.
func (p *StatementPool) Checkout(ctx context.Context, text string) (database.Statement, error) {
	key := StatementKey(text)
	p.mu.Lock()
	if st, ok := p.cache.Peek(key); ok && st.Text() == text {
		p.taking = true
		p.cache.Remove(key)
		p.taking = false
		p.mu.Unlock()
		return st, nil
	}
	p.mu.Unlock()
	return p.session.Prepare(ctx, text)
}

// Release returns st to the pool. When an idle statement for the same text
// is already pooled, st is closed instead.
func (p *StatementPool) Release(st database.Statement) {
	key := StatementKey(st.Text())
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cache.Contains(key) {
		p.close(st, "closed surplus statement")
		return
	}
	p.cache.Add(key, st)
}

// Discard closes st without pooling it. It is used for statements whose
// bind or execute failed.
func (p *StatementPool) Discard(st database.Statement) {
	p.close(st, "discarded statement")
}

// Len returns the number of idle statements.
func (p *StatementPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cache.Len()
}

// Close closes every idle statement.
func (p *StatementPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache.Purge()
	return nil
}

func (p *StatementPool) close(st database.Statement, msg string) {
	if err := st.Close(); err != nil {
		p.log.WithError(err).WithField("sql", st.Text()).Warn("closing statement failed")
		return
	}
	p.log.WithField("sql", st.Text()).Debug(msg)
}
