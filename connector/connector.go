// Package connector opens database sessions through named providers. Each
// provider registers itself from its package init, the way database/sql
// drivers do.
package connector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Konsultn-Engineering/stmtbind/database"
	"github.com/Konsultn-Engineering/stmtbind/dialect"
)

// Connection is an open connection pool.
type Connection interface {
	Session() database.Session
	Dialect() dialect.Dialect
	Health(ctx context.Context) error
	Stats() ConnectionStats
	Close() error
}

// Provider opens connections for one driver.
type Provider interface {
	Connect(ctx context.Context, config Config, log *logrus.Entry) (Connection, error)
	Dialect() dialect.Dialect
}

type Connector interface {
	Connect(ctx context.Context) (Connection, error)
	Close() error
}

var globalManager = &Manager{
	providers: make(map[string]Provider),
}

type Manager struct {
	providers map[string]Provider
	mu        sync.RWMutex
}

// Register makes a provider available under name. Registering the same
// name twice replaces the earlier provider.
func Register(name string, provider Provider) {
	globalManager.mu.Lock()
	defer globalManager.mu.Unlock()
	globalManager.providers[name] = provider
}

// Providers returns the registered provider names in sorted order.
func Providers() []string {
	globalManager.mu.RLock()
	defer globalManager.mu.RUnlock()
	names := make([]string, 0, len(globalManager.providers))
	for name := range globalManager.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type options struct {
	log *logrus.Entry
}

// Option configures a Connector.
type Option func(*options)

// WithLogger sets the logger used for retries and handed to sessions.
func WithLogger(log *logrus.Entry) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

type standardConnector struct {
	provider Provider
	config   Config
	log      *logrus.Entry
}

// New returns a connector for the provider registered under name, or under
// config.Driver when name is empty.
func New(name string, config Config, opts ...Option) (Connector, error) {
	if name == "" {
		name = config.Driver
	}
	globalManager.mu.RLock()
	provider, ok := globalManager.providers[name]
	globalManager.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider %s not registered", name)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", name, err)
	}

	o := options{log: logrus.NewEntry(logrus.StandardLogger())}
	for _, opt := range opts {
		opt(&o)
	}
	return &standardConnector{
		provider: provider,
		config:   config,
		log:      o.log.WithField("provider", name),
	}, nil
}

// Connect opens a connection, retrying with exponential backoff when the
// config carries a retry policy. ConnectTimeout bounds each attempt.
func (c *standardConnector) Connect(ctx context.Context) (Connection, error) {
	attempt := func(ctx context.Context) (Connection, error) {
		if c.config.ConnectTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
			defer cancel()
		}
		return c.provider.Connect(ctx, c.config, c.log)
	}
	if c.config.Retry == nil {
		return attempt(ctx)
	}
	conn, err := retryConnect(ctx, *c.config.Retry, c.log, attempt)
	if err != nil {
		return nil, fmt.Errorf("failed to connect after %d attempts: %w", max(c.config.Retry.MaxRetries, 1), err)
	}
	return conn, nil
}

func (c *standardConnector) Close() error {
	return nil
}
