// Package mysql registers the "mysql" and "tidb" connector providers,
// backed by database/sql and go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/Konsultn-Engineering/stmtbind/connector"
	"github.com/Konsultn-Engineering/stmtbind/database"
	"github.com/Konsultn-Engineering/stmtbind/dialect"
)

const defaultPort = 3306

type Provider struct {
	dialect dialect.Dialect
}

func init() {
	connector.Register("mysql", &Provider{dialect: dialect.NewMySQLDialect()})
	connector.Register("tidb", &Provider{dialect: dialect.NewTiDBDialect()})
}

// tlsModes maps postgres style ssl modes onto the driver's tls values.
var tlsModes = map[string]string{
	"disable":     "false",
	"prefer":      "preferred",
	"require":     "skip-verify",
	"verify-ca":   "true",
	"verify-full": "true",
}

// DSN returns the driver DSN for cfg.
func DSN(cfg connector.Config) string {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	if loc, err := cfg.TimeLocation(); err == nil {
		mc.Loc = loc
	}
	mc.Timeout = cfg.ConnectTimeout
	mc.ReadTimeout = cfg.QueryTimeout
	mc.WriteTimeout = cfg.QueryTimeout
	if cfg.SSLMode != "" {
		if tls, ok := tlsModes[cfg.SSLMode]; ok {
			mc.TLSConfig = tls
		} else {
			mc.TLSConfig = cfg.SSLMode
		}
	}
	if len(cfg.Params) > 0 {
		mc.Params = make(map[string]string, len(cfg.Params))
		for k, v := range cfg.Params {
			mc.Params[k] = v
		}
	}
	return mc.FormatDSN()
}

func (p *Provider) Connect(ctx context.Context, cfg connector.Config, log *logrus.Entry) (connector.Connection, error) {
	cfg = cfg.WithPoolDefaults()
	loc, err := cfg.TimeLocation()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.Pool.MaxOpen)
	db.SetMaxIdleConns(cfg.Pool.MaxIdle)
	db.SetConnMaxLifetime(cfg.Pool.MaxLifetime)
	db.SetConnMaxIdleTime(cfg.Pool.MaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.WithFields(logrus.Fields{"host": cfg.Host, "database": cfg.Database}).Debug(p.dialect.Name() + " pool opened")
	return &connection{
		session: database.NewSQLSession(db,
			database.WithLogger(log),
			database.WithMaxColumnSize(cfg.MaxColumnSize),
			database.WithLocation(loc),
		),
		dialect: p.dialect,
	}, nil
}

func (p *Provider) Dialect() dialect.Dialect {
	return p.dialect
}

type connection struct {
	session *database.SQLSession
	dialect dialect.Dialect
}

func (c *connection) Session() database.Session {
	return c.session
}

func (c *connection) Dialect() dialect.Dialect {
	return c.dialect
}

func (c *connection) Health(ctx context.Context) error {
	return c.session.PingContext(ctx)
}

func (c *connection) Stats() connector.ConnectionStats {
	return connector.StatsFromDB(c.session.DB().Stats())
}

func (c *connection) Close() error {
	return c.session.Close()
}
