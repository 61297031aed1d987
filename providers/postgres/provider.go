// Package postgres registers the "postgres" connector provider, backed by a
// pgx connection pool.
package postgres

import (
	"context"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/Konsultn-Engineering/stmtbind/connector"
	"github.com/Konsultn-Engineering/stmtbind/database"
	"github.com/Konsultn-Engineering/stmtbind/dialect"
)

const defaultPort = 5432

type Provider struct{}

func init() {
	connector.Register("postgres", &Provider{})
}

// DSN returns the connection URL for cfg. Credentials, host and database
// are escaped as URL components; parameters are query-escaped and written in
// key order. An explicit SSLMode or ConnectTimeout overrides Params.
func DSN(cfg connector.Config) string {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	q := url.Values{}
	for k, v := range cfg.Params {
		if v != "" {
			q.Set(k, v)
		}
	}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	switch {
	case cfg.ConnectTimeout > 0:
		q.Set("connect_timeout", strconv.Itoa(max(int(cfg.ConnectTimeout.Seconds()), 1)))
	case q.Get("connect_timeout") == "":
		q.Set("connect_timeout", "10")
	}
	if cfg.Location != "" && q.Get("timezone") == "" {
		q.Set("timezone", cfg.Location)
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		RawQuery: q.Encode(),
	}
	if cfg.Database != "" {
		u.Path = "/" + cfg.Database
	}
	switch {
	case cfg.Username != "" && cfg.Password != "":
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	case cfg.Username != "":
		u.User = url.User(cfg.Username)
	}
	return u.String()
}

func (p *Provider) Connect(ctx context.Context, cfg connector.Config, log *logrus.Entry) (connector.Connection, error) {
	cfg = cfg.WithPoolDefaults()
	loc, err := cfg.TimeLocation()
	if err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = int32(cfg.Pool.MaxOpen)
	poolCfg.MinConns = int32(min(cfg.Pool.MaxIdle, cfg.Pool.MaxOpen))
	poolCfg.MaxConnLifetime = cfg.Pool.MaxLifetime
	poolCfg.MaxConnIdleTime = cfg.Pool.MaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.WithFields(logrus.Fields{"host": cfg.Host, "database": cfg.Database}).Debug("postgres pool opened")
	return &connection{
		pool:    pool,
		session: database.NewPgxSession(pool,
			database.WithLogger(log),
			database.WithMaxColumnSize(cfg.MaxColumnSize),
			database.WithLocation(loc),
		),
		dialect: dialect.NewPostgresDialect(),
	}, nil
}

func (p *Provider) Dialect() dialect.Dialect {
	return dialect.NewPostgresDialect()
}

type connection struct {
	pool    *pgxpool.Pool
	session *database.PgxSession
	dialect dialect.Dialect
}

func (c *connection) Session() database.Session {
	return c.session
}

func (c *connection) Dialect() dialect.Dialect {
	return c.dialect
}

func (c *connection) Health(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *connection) Stats() connector.ConnectionStats {
	s := c.pool.Stat()
	return connector.ConnectionStats{
		OpenConnections: int(s.TotalConns()),
		InUse:           int(s.AcquiredConns()),
		Idle:            int(s.IdleConns()),
	}
}

func (c *connection) Close() error {
	return c.session.Close()
}
