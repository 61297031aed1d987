// Package stmtbind opens an engine for named-placeholder SQL on MySQL, TiDB
// or PostgreSQL.
//
//	db, err := stmtbind.OpenFile(ctx, "stmtbind.yaml")
//	users, err := engine.Select[User](ctx, db, "SELECT * FROM users WHERE org = :org.id", engine.Params{"org": org})
package stmtbind

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Konsultn-Engineering/stmtbind/codec"
	"github.com/Konsultn-Engineering/stmtbind/connector"
	"github.com/Konsultn-Engineering/stmtbind/engine"

	_ "github.com/Konsultn-Engineering/stmtbind/providers/mysql"
	_ "github.com/Konsultn-Engineering/stmtbind/providers/postgres"
)

type (
	Engine = engine.Engine
	Config = engine.Config
	Params = engine.Params
)

// Open connects with cfg.Connector and returns an engine owning the
// connection; closing the engine closes the pool. Temporal values are
// encoded in cfg.Connector.Location, the zone the sessions bind them in.
func Open(ctx context.Context, cfg Config, opts ...engine.Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	reg, err := newRegistry(cfg.Connector)
	if err != nil {
		return nil, err
	}

	c, err := connector.New(cfg.Connector.Driver, cfg.Connector, connector.WithLogger(log))
	if err != nil {
		return nil, err
	}
	conn, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}

	base := []engine.Option{
		engine.WithConfig(cfg),
		engine.WithRegistry(reg),
		engine.WithDialect(conn.Dialect()),
		engine.WithLogger(log),
		engine.WithCloser(conn),
	}
	e, err := engine.New(conn.Session(), append(base, opts...)...)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return e, nil
}

// OpenFile loads a YAML config with engine.LoadConfig and opens it.
func OpenFile(ctx context.Context, path string, opts ...engine.Option) (*Engine, error) {
	cfg, err := engine.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return Open(ctx, cfg, opts...)
}

func newRegistry(cfg connector.Config) (*codec.Registry, error) {
	loc, err := cfg.TimeLocation()
	if err != nil {
		return nil, err
	}
	if loc == time.UTC {
		return codec.Default(), nil
	}
	return codec.NewBuilder().Location(loc).Build()
}

func newLogger(level string) (*logrus.Entry, error) {
	if level == "" {
		return logrus.NewEntry(logrus.StandardLogger()), nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetLevel(lvl)
	return logrus.NewEntry(logger), nil
}
