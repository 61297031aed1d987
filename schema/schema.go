// Package schema introspects struct types into column mappings and resolves
// dotted property paths against arbitrary values.
package schema

import (
	"reflect"

	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/src-d/go-errors.v1"
)

var (
	// ErrInvalidModel is returned when a mapped type is not a struct.
	ErrInvalidModel = errors.NewKind("invalid model type %s: expected struct")
	// ErrInvalidTag is returned for malformed struct tags.
	ErrInvalidTag = errors.NewKind("field %s: invalid tag: %s")
	// ErrDuplicateColumn is returned when two fields map to the same column.
	ErrDuplicateColumn = errors.NewKind("type %s maps column %s twice")
	// ErrFieldAssign is returned when a value cannot be stored in a field.
	ErrFieldAssign = errors.NewKind("cannot assign %s to field %s of type %s")
)

// Context holds mapping configuration and the metadata cache. It is safe for
// concurrent use.
type Context struct {
	namingStrategy NamingStrategy
	tagName        string
	caseSensitive  bool
	cacheSize      int
	onEvict        func(reflect.Type, *EntityMeta)

	parser      *TagParser
	entityCache *lru.Cache[reflect.Type, *EntityMeta]
}

type Option func(*Context)

// WithNamingStrategy sets the naming strategy for untagged fields.
func WithNamingStrategy(strategy NamingStrategy) Option {
	return func(ctx *Context) { ctx.namingStrategy = strategy }
}

// WithTagName sets the struct tag key, "db" by default.
func WithTagName(tagName string) Option {
	return func(ctx *Context) { ctx.tagName = tagName }
}

// WithCaseSensitive enables or disables case-sensitive column matching.
func WithCaseSensitive(sensitive bool) Option {
	return func(ctx *Context) { ctx.caseSensitive = sensitive }
}

// WithCacheSize sets the LRU cache size for struct metadata.
func WithCacheSize(size int) Option {
	return func(ctx *Context) { ctx.cacheSize = size }
}

// WithEvictionCallback sets a callback for metadata cache evictions.
func WithEvictionCallback(onEvict func(reflect.Type, *EntityMeta)) Option {
	return func(ctx *Context) { ctx.onEvict = onEvict }
}

// New creates a Context.
func New(options ...Option) *Context {
	ctx := &Context{
		namingStrategy: DefaultNamingStrategy(),
		tagName:        "db",
		cacheSize:      256,
	}
	for _, opt := range options {
		opt(ctx)
	}
	if ctx.cacheSize <= 0 {
		ctx.cacheSize = 256
	}
	ctx.parser = NewTagParser(ctx.tagName, ctx.namingStrategy)

	var err error
	if ctx.onEvict != nil {
		ctx.entityCache, err = lru.NewWithEvict(ctx.cacheSize, ctx.onEvict)
	} else {
		ctx.entityCache, err = lru.New[reflect.Type, *EntityMeta](ctx.cacheSize)
	}
	if err != nil {
		// Only a non-positive size fails, which was ruled out above.
		panic(err)
	}
	return ctx
}

// Introspect retrieves or builds metadata for a struct type. Pointer types
// are dereferenced.
func (c *Context) Introspect(t reflect.Type) (*EntityMeta, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, ErrInvalidModel.New(t)
	}
	if meta, ok := c.entityCache.Get(t); ok {
		return meta, nil
	}
	meta, err := c.buildMeta(t)
	if err != nil {
		return nil, err
	}
	c.entityCache.Add(t, meta)
	return meta, nil
}

// CacheLen returns the number of cached metadata entries.
func (c *Context) CacheLen() int {
	return c.entityCache.Len()
}
