// Package config loads the agentorg configuration from defaults, an optional
// YAML file, AGENTORG_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/MikaYeghi/agent-first/pkg/observability"
)

// EnvPrefix prefixes every environment variable, e.g. AGENTORG_ORACLE_MODEL.
const EnvPrefix = "AGENTORG"

// FileName is the config file looked up in the working directory.
const FileName = "agentorg"

// Config is the full configuration.
type Config struct {
	Graph        string                      `mapstructure:"graph"`
	Log          LogConfig                   `mapstructure:"log"`
	Oracle       OracleConfig                `mapstructure:"oracle"`
	Orchestrator OrchestratorConfig          `mapstructure:"orchestrator"`
	Store        StoreConfig                 `mapstructure:"store"`
	Retrieval    RetrievalConfig             `mapstructure:"retrieval"`
	Database     DatabaseConfig              `mapstructure:"database"`
	Search       SearchConfig                `mapstructure:"search"`
	NLU          NLUConfig                   `mapstructure:"nlu"`
	HTTP         HTTPConfig                  `mapstructure:"http"`
	Tracing      observability.TracingConfig `mapstructure:"tracing"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text | json
}

type OracleConfig struct {
	Provider      string        `mapstructure:"provider"` // openai | anthropic | none
	Model         string        `mapstructure:"model"`
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	MaxTokens     int64         `mapstructure:"max_tokens"`
	Temperature   float64       `mapstructure:"temperature"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ContextBudget int           `mapstructure:"context_budget"`
	Instruction   string        `mapstructure:"instruction"`
}

type OrchestratorConfig struct {
	MaxAttempts int    `mapstructure:"max_attempts"`
	MaxDepth    int    `mapstructure:"max_depth"`
	Fallback    string `mapstructure:"fallback"`
}

type StoreConfig struct {
	Driver  string        `mapstructure:"driver"` // memory | file | redis
	Path    string        `mapstructure:"path"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`

	// EncryptionKey is a base64 AES-256 key. When set, states are stored
	// encrypted; FallbackKeys still decrypt states written before a rotation.
	EncryptionKey string   `mapstructure:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys"`
	// MaskSlots are regular expressions; matching slot values are masked
	// before they are stored.
	MaskSlots []string `mapstructure:"mask_slots"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type RetrievalConfig struct {
	Path string `mapstructure:"path"`
	TopK int    `mapstructure:"top_k"`
}

type DatabaseConfig struct {
	Path    string `mapstructure:"path"`
	Actions string `mapstructure:"actions"`
}

type SearchConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type NLUConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	// Oracle extracts intents with the oracle when no endpoint is set.
	Oracle bool `mapstructure:"oracle"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	Metrics         bool          `mapstructure:"metrics"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SetDefaults registers every key with its default value. Keys must be
// known to viper for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("graph", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("oracle.provider", "openai")
	v.SetDefault("oracle.model", "")
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.base_url", "")
	v.SetDefault("oracle.max_tokens", 1024)
	v.SetDefault("oracle.temperature", 0.0)
	v.SetDefault("oracle.timeout", 60*time.Second)
	v.SetDefault("oracle.context_budget", 0)
	v.SetDefault("oracle.instruction", "")

	v.SetDefault("orchestrator.max_attempts", 2)
	v.SetDefault("orchestrator.max_depth", 5)
	v.SetDefault("orchestrator.fallback", "DefaultWorker")

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.path", "")
	v.SetDefault("store.lock_ttl", 30*time.Second)
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "agentorg:")
	v.SetDefault("store.redis.ttl", 24*time.Hour)
	v.SetDefault("store.encryption_key", "")
	v.SetDefault("store.fallback_keys", []string{})
	v.SetDefault("store.mask_slots", []string{})

	v.SetDefault("retrieval.path", "")
	v.SetDefault("retrieval.top_k", 3)
	v.SetDefault("database.path", "")
	v.SetDefault("database.actions", "")

	v.SetDefault("search.api_key", "")
	v.SetDefault("search.endpoint", "")
	v.SetDefault("search.cache_ttl", 10*time.Minute)

	v.SetDefault("nlu.endpoint", "")
	v.SetDefault("nlu.oracle", false)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.metrics", true)
	v.SetDefault("http.shutdown_timeout", 5*time.Second)

	v.SetDefault("tracing.exporter", "none")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.service_name", "agentorg")
}

// New returns a viper instance with defaults and environment binding set.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file, or agentorg.yaml from the working directory when file is
// empty, and decodes the merged configuration. A missing default file is not
// an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Oracle.APIKey = os.ExpandEnv(cfg.Oracle.APIKey)
	cfg.Search.APIKey = os.ExpandEnv(cfg.Search.APIKey)
	cfg.Store.Redis.Password = os.ExpandEnv(cfg.Store.Redis.Password)
	cfg.Store.EncryptionKey = os.ExpandEnv(cfg.Store.EncryptionKey)
	return cfg, cfg.Validate()
}

// Validate checks enumerated values and bounds.
func (c *Config) Validate() error {
	var problems []string
	switch c.Oracle.Provider {
	case "openai", "anthropic", "none":
	default:
		problems = append(problems, fmt.Sprintf("oracle.provider: unknown provider %q", c.Oracle.Provider))
	}
	switch c.Store.Driver {
	case "memory", "file", "redis":
	default:
		problems = append(problems, fmt.Sprintf("store.driver: unknown driver %q", c.Store.Driver))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format: unknown format %q", c.Log.Format))
	}
	if c.Orchestrator.MaxAttempts < 1 {
		problems = append(problems, "orchestrator.max_attempts must be at least 1")
	}
	if c.Orchestrator.MaxDepth < 1 {
		problems = append(problems, "orchestrator.max_depth must be at least 1")
	}
	if c.Database.Path != "" && c.Database.Actions == "" {
		problems = append(problems, "database.actions is required when database.path is set")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
