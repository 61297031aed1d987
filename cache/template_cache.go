package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/Konsultn-Engineering/stmtbind/dialect"
	"github.com/Konsultn-Engineering/stmtbind/query"
)

// TemplateCache memoizes query.Parse for one dialect. Parse failures are not
// cached.
type TemplateCache struct {
	cache   *lru.Cache[uint64, *query.Template]
	dialect dialect.Dialect
	log     *logrus.Entry
}

// NewTemplateCache returns a cache holding at most size templates.
func NewTemplateCache(size int, d dialect.Dialect, log *logrus.Entry) (*TemplateCache, error) {
	c, err := lru.New[uint64, *query.Template](size)
	if err != nil {
		return nil, err
	}
	if d == nil {
		d = dialect.NewMySQLDialect()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &TemplateCache{cache: c, dialect: d, log: log}, nil
}

// Parse returns the cached template for text, parsing it on a miss.
func (c *TemplateCache) Parse(text string) (*query.Template, error) {
	key := TemplateKey(c.dialect.Name(), text)
	if tpl, ok := c.cache.Get(key); ok && tpl.Source() == text {
		c.log.WithField("key", key).Debug("template cache hit")
		return tpl, nil
	}
	tpl, err := query.Parse(text, query.WithDialect(c.dialect))
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, tpl)
	return tpl, nil
}

// Len returns the number of cached templates.
func (c *TemplateCache) Len() int { return c.cache.Len() }

// Purge drops every template.
func (c *TemplateCache) Purge() { c.cache.Purge() }
