package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig     `yaml:"store" mapstructure:"store"`
	Hunter       HunterConfig    `yaml:"hunter" mapstructure:"hunter"`
	Apollo       ApolloConfig    `yaml:"apollo" mapstructure:"apollo"`
	Clearbit     ClearbitConfig  `yaml:"clearbit" mapstructure:"clearbit"`
	Jina         JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Socrata      SocrataConfig   `yaml:"socrata" mapstructure:"socrata"`
	Fetch        FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Discovery    DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Enrich       EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Breaker      BreakerConfig   `yaml:"breaker" mapstructure:"breaker"`
	Metrics      MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Log          LogConfig       `yaml:"log" mapstructure:"log"`
	ProfilesFile string          `yaml:"profiles_file" mapstructure:"profiles_file"`
	OutputDir    string          `yaml:"output_dir" mapstructure:"output_dir"`
}

// StoreConfig configures the run ledger backend. Driver is one of
// "sqlite", "postgres" or "none".
type StoreConfig struct {
	Driver       string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL  string `yaml:"database_url" mapstructure:"database_url"`
	CacheTTLDays int    `yaml:"cache_ttl_days" mapstructure:"cache_ttl_days"`
}

// HunterConfig holds Hunter.io domain search settings.
type HunterConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	RPM     int    `yaml:"rpm" mapstructure:"rpm"`
	Limit   int    `yaml:"limit" mapstructure:"limit"`
}

// ApolloConfig holds Apollo.io organization and people search settings.
type ApolloConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	RPM     int    `yaml:"rpm" mapstructure:"rpm"`
	PerPage int    `yaml:"per_page" mapstructure:"per_page"`
}

// ClearbitConfig holds the company autocomplete endpoint. No key is needed.
type ClearbitConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// JinaConfig holds Jina web search settings used for search-based discovery.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// SocrataConfig holds the optional Socrata app token for registry pulls.
type SocrataConfig struct {
	AppToken string `yaml:"app_token" mapstructure:"app_token"`
}

// FetchConfig tunes the registry and directory HTTP fetcher.
type FetchConfig struct {
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// DiscoveryConfig tunes the domain discovery stage.
type DiscoveryConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	DelayMs     int `yaml:"delay_ms" mapstructure:"delay_ms"`
}

// EnrichConfig tunes the contact enrichment stage.
type EnrichConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	// MaxCalls caps provider lookups per run. Retries inside a lookup are
	// not counted.
	MaxCalls int `yaml:"max_calls" mapstructure:"max_calls"`
}

// BreakerConfig configures the per-provider circuit breaker.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// MetricsConfig configures the Prometheus textfile written after each run.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider credentials are commonly exported under their vendor names.
	for key, alias := range map[string]string{
		"hunter.key":        "HUNTER_API_KEY",
		"apollo.key":        "APOLLO_API_KEY",
		"jina.key":          "JINA_API_KEY",
		"socrata.app_token": "SOCRATA_APP_TOKEN",
	} {
		envKey := "LEADS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, alias); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leads.db")
	v.SetDefault("store.cache_ttl_days", 30)
	v.SetDefault("hunter.base_url", "https://api.hunter.io/v2")
	v.SetDefault("hunter.rpm", 15)
	v.SetDefault("hunter.limit", 10)
	v.SetDefault("apollo.base_url", "https://api.apollo.io/api/v1")
	v.SetDefault("apollo.rpm", 50)
	v.SetDefault("apollo.per_page", 10)
	v.SetDefault("clearbit.base_url", "https://autocomplete.clearbit.com/v1")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("fetch.user_agent", "lead-bridge/1.0")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.requests_per_sec", 2.0)
	v.SetDefault("discovery.concurrency", 1)
	v.SetDefault("discovery.delay_ms", 1000)
	v.SetDefault("enrich.concurrency", 5)
	v.SetDefault("enrich.max_calls", 0)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.reset_timeout_secs", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("output_dir", ".")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a run cannot proceed without. Missing
// provider credentials are not validation errors; see MissingCredentials.
func (c *Config) Validate() error {
	var problems []string
	switch c.Store.Driver {
	case "sqlite", "none":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for postgres")
		}
	default:
		problems = append(problems, "store.driver must be sqlite, postgres or none")
	}
	if c.Enrich.Concurrency < 1 {
		problems = append(problems, "enrich.concurrency must be at least 1")
	}
	if c.Enrich.MaxCalls < 0 {
		problems = append(problems, "enrich.max_calls must not be negative")
	}
	if c.Discovery.Concurrency < 1 {
		problems = append(problems, "discovery.concurrency must be at least 1")
	}
	if c.Hunter.RPM < 0 || c.Apollo.RPM < 0 {
		problems = append(problems, "provider rpm must not be negative")
	}
	if len(problems) > 0 {
		return eris.Errorf("config: invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}

// MissingCredentials lists the providers whose credentials are absent.
// Callers degrade the affected stage instead of failing the run.
func (c *Config) MissingCredentials() []string {
	var missing []string
	if c.Hunter.Key == "" {
		missing = append(missing, "hunter")
	}
	if c.Apollo.Key == "" {
		missing = append(missing, "apollo")
	}
	if c.Jina.Key == "" {
		missing = append(missing, "jina")
	}
	return missing
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
