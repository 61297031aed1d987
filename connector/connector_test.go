package connector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/stmtbind/database"
	"github.com/Konsultn-Engineering/stmtbind/database/dbtest"
	"github.com/Konsultn-Engineering/stmtbind/dialect"
)

type fakeConnection struct {
	session database.Session
}

func (c *fakeConnection) Session() database.Session { return c.session }
func (c *fakeConnection) Dialect() dialect.Dialect { return dialect.NewMySQLDialect() }
func (c *fakeConnection) Health(ctx context.Context) error { return c.session.PingContext(ctx) }
func (c *fakeConnection) Stats() ConnectionStats { return ConnectionStats{} }
func (c *fakeConnection) Close() error { return c.session.Close() }

// flakyProvider fails the first failures connects.
type flakyProvider struct {
	failures int
	calls    int
}

func (p *flakyProvider) Connect(ctx context.Context, cfg Config, log *logrus.Entry) (Connection, error) {
	p.calls++
	if p.calls <= p.failures {
		return nil, errors.New("connection refused")
	}
	return &fakeConnection{session: dbtest.NewSession()}, nil
}

func (p *flakyProvider) Dialect() dialect.Dialect { return dialect.NewMySQLDialect() }

func TestConnect(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Host: "localhost", Port: 3306}

	t.Run("Unregistered", func(t *testing.T) {
		_, err := New("nope", cfg)
		assert.EqualError(t, err, "provider nope not registered")
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		Register("flaky-invalid", &flakyProvider{})
		_, err := New("flaky-invalid", Config{})
		assert.Error(t, err)
	})

	t.Run("DriverFromConfig", func(t *testing.T) {
		p := &flakyProvider{}
		Register("flaky-driver", p)
		c, err := New("", Config{Driver: "flaky-driver", Host: "db"})
		require.NoError(t, err)
		conn, err := c.Connect(ctx)
		require.NoError(t, err)
		assert.NoError(t, conn.Health(ctx))
		assert.Contains(t, Providers(), "flaky-driver")
	})

	t.Run("NoRetry", func(t *testing.T) {
		p := &flakyProvider{failures: 1}
		Register("flaky-once", p)
		c, err := New("flaky-once", cfg)
		require.NoError(t, err)
		_, err = c.Connect(ctx)
		assert.Error(t, err)
		assert.Equal(t, 1, p.calls)
	})

	t.Run("Retry", func(t *testing.T) {
		logger, hook := test.NewNullLogger()
		p := &flakyProvider{failures: 2}
		Register("flaky-retry", p)
		retryCfg := cfg
		retryCfg.Retry = &RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

		c, err := New("flaky-retry", retryCfg, WithLogger(logrus.NewEntry(logger)))
		require.NoError(t, err)
		conn, err := c.Connect(ctx)
		require.NoError(t, err)
		assert.NotNil(t, conn.Session())
		assert.Equal(t, 3, p.calls)
		assert.Len(t, hook.AllEntries(), 2)
		assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	})

	t.Run("RetryExhausted", func(t *testing.T) {
		p := &flakyProvider{failures: 5}
		Register("flaky-exhausted", p)
		retryCfg := cfg
		retryCfg.Retry = &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond}

		logger, _ := test.NewNullLogger()
		c, err := New("flaky-exhausted", retryCfg, WithLogger(logrus.NewEntry(logger)))
		require.NoError(t, err)
		_, err = c.Connect(ctx)
		assert.ErrorContains(t, err, "connection refused")
		assert.Equal(t, 2, p.calls)
	})

	t.Run("RetryCancelled", func(t *testing.T) {
		p := &flakyProvider{failures: 5}
		Register("flaky-cancel", p)
		retryCfg := cfg
		retryCfg.Retry = &RetryConfig{MaxRetries: 5, BaseDelay: time.Hour}

		logger, _ := test.NewNullLogger()
		c, err := New("flaky-cancel", retryCfg, WithLogger(logrus.NewEntry(logger)))
		require.NoError(t, err)
		cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		_, err = c.Connect(cctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, p.calls)
	})
}

func TestConfig(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		valid bool
	}{
		{"Minimal", Config{Host: "db"}, true},
		{"MissingHost", Config{Port: 5432}, false},
		{"BadPort", Config{Host: "db", Port: 70000}, false},
		{"NegativePool", Config{Host: "db", Pool: PoolConfig{MaxOpen: -1}}, false},
		{"ShrinkingBackoff", Config{Host: "db", Retry: &RetryConfig{Backoff: 0.5}}, false},
		{"Location", Config{Host: "db", Location: "UTC"}, true},
		{"UnknownLocation", Config{Host: "db", Location: "Nowhere/Atlantis"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}

	loc, err := Config{Host: "db"}.TimeLocation()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	cfg := Config{Host: "db", Pool: PoolConfig{MaxOpen: 3}}.WithPoolDefaults()
	assert.Equal(t, 3, cfg.Pool.MaxOpen)
	assert.Equal(t, 3, cfg.Pool.MaxIdle)
	assert.Equal(t, time.Hour, cfg.Pool.MaxLifetime)
	assert.Equal(t, 30*time.Minute, cfg.Pool.MaxIdleTime)
}
