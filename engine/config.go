package engine

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Konsultn-Engineering/stmtbind/connector"
	"github.com/Konsultn-Engineering/stmtbind/schema"
)

// Config configures an Engine and, through Connector, the connection it is
// opened on.
type Config struct {
	Connector connector.Config `json:"connector" yaml:"connector"`

	TemplateCacheSize  int `json:"template_cache_size" yaml:"template_cache_size"`
	StatementCacheSize int `json:"statement_cache_size" yaml:"statement_cache_size"`
	PlanCacheSize      int `json:"plan_cache_size" yaml:"plan_cache_size"`
	MetaCacheSize      int `json:"meta_cache_size" yaml:"meta_cache_size"`
	MaxBindingSize     int `json:"max_binding_size" yaml:"max_binding_size"`

	// QueryTimeout bounds every Query and Exec call. Zero disables it.
	QueryTimeout    time.Duration `json:"query_timeout" yaml:"query_timeout"`
	AllowTruncation bool          `json:"allow_truncation" yaml:"allow_truncation"`

	TagName       string `json:"tag_name" yaml:"tag_name"`
	Naming        string `json:"naming" yaml:"naming"`
	CaseSensitive bool   `json:"case_sensitive" yaml:"case_sensitive"`

	LogLevel string `json:"log_level" yaml:"log_level"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		TemplateCacheSize:  512,
		StatementCacheSize: 64,
		PlanCacheSize:      512,
		MetaCacheSize:      256,
		MaxBindingSize:     16 << 20,
		TagName:            "db",
		Naming:             "snake",
	}
}

var namings = map[string]schema.ColumnNamingType{
	"snake":    schema.ColumnSnakeCase,
	"camel":    schema.ColumnCamelCase,
	"pascal":   schema.ColumnPascalCase,
	"verbatim": schema.ColumnVerbatim,
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	for name, n := range map[string]int{
		"template_cache_size":  c.TemplateCacheSize,
		"statement_cache_size": c.StatementCacheSize,
		"plan_cache_size":      c.PlanCacheSize,
		"meta_cache_size":      c.MetaCacheSize,
		"max_binding_size":     c.MaxBindingSize,
	} {
		if n <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, n)
		}
	}
	if _, ok := namings[c.Naming]; !ok {
		return fmt.Errorf("unknown naming %q", c.Naming)
	}
	if c.QueryTimeout < 0 {
		return fmt.Errorf("query_timeout must not be negative")
	}
	return nil
}

// LoadConfig reads a YAML config file on top of DefaultConfig. Environment
// variables written as $NAME or ${NAME} are expanded before parsing.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) schemaOptions() []schema.Option {
	return []schema.Option{
		schema.WithTagName(c.TagName),
		schema.WithNamingStrategy(schema.NewNamingStrategy(namings[c.Naming])),
		schema.WithCaseSensitive(c.CaseSensitive),
		schema.WithCacheSize(c.MetaCacheSize),
	}
}
