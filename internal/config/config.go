package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	ContactOut ContactOutConfig `yaml:"contactout" mapstructure:"contactout"`
	Exa        ExaConfig        `yaml:"exa" mapstructure:"exa"`
	Edgar      EdgarConfig      `yaml:"edgar" mapstructure:"edgar"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Signals    SignalsConfig    `yaml:"signals" mapstructure:"signals"`
	Breaker    BreakerConfig    `yaml:"breaker" mapstructure:"breaker"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// RedisConfig configures the shared result cache. When Addr is empty the
// cache falls back to the in-process backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// ContactOutConfig holds ContactOut API settings.
type ContactOutConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ExaConfig holds Exa web-search API settings.
type ExaConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	MaxResults int    `yaml:"max_results" mapstructure:"max_results"`
}

// EdgarConfig holds SEC EDGAR settings. The SEC requires a descriptive
// User-Agent with a contact address.
type EdgarConfig struct {
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	DataBaseURL    string  `yaml:"data_base_url" mapstructure:"data_base_url"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	MaxFilings     int     `yaml:"max_filings" mapstructure:"max_filings"`
}

// AnthropicConfig holds Anthropic API settings for summary generation.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SignalsConfig configures the wealth-signal keyword scan.
type SignalsConfig struct {
	VocabPath      string `yaml:"vocab_path" mapstructure:"vocab_path"`
	ContextChars   int    `yaml:"context_chars" mapstructure:"context_chars"`
	MaxPerProspect int    `yaml:"max_per_prospect" mapstructure:"max_per_prospect"`
}

// BreakerConfig configures the per-source circuit breakers.
type BreakerConfig struct {
	WindowSecs      int     `yaml:"window_secs" mapstructure:"window_secs"`
	MinVolume       int     `yaml:"min_volume" mapstructure:"min_volume"`
	FailureRatio    float64 `yaml:"failure_ratio" mapstructure:"failure_ratio"`
	ResetSecs       int     `yaml:"reset_secs" mapstructure:"reset_secs"`
	CallTimeoutSecs int     `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
}

// EnrichConfig configures the enrichment worker pool.
type EnrichConfig struct {
	MaxConcurrentRuns int `yaml:"max_concurrent_runs" mapstructure:"max_concurrent_runs"`
	StepRetries       int `yaml:"step_retries" mapstructure:"step_retries"`
}

// SearchConfig configures the lead-search client.
type SearchConfig struct {
	PageSizeCap       int `yaml:"page_size_cap" mapstructure:"page_size_cap"`
	MaxPages          int `yaml:"max_pages" mapstructure:"max_pages"`
	CacheTTLHours     int `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	Burst             int `yaml:"burst" mapstructure:"burst"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// WindowDuration returns the breaker window as a duration.
func (b BreakerConfig) WindowDuration() time.Duration {
	return time.Duration(b.WindowSecs) * time.Second
}

// ResetDuration returns the breaker reset timeout as a duration.
func (b BreakerConfig) ResetDuration() time.Duration {
	return time.Duration(b.ResetSecs) * time.Second
}

// CallTimeout returns the per-call timeout as a duration.
func (b BreakerConfig) CallTimeout() time.Duration {
	return time.Duration(b.CallTimeoutSecs) * time.Second
}

// CacheTTL returns the search cache TTL as a duration.
func (s SearchConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLHours) * time.Hour
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROSPECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "prospects.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("contactout.base_url", "https://api.contactout.com")
	v.SetDefault("exa.base_url", "https://api.exa.ai")
	v.SetDefault("exa.max_results", 10)
	v.SetDefault("edgar.base_url", "https://www.sec.gov")
	v.SetDefault("edgar.data_base_url", "https://data.sec.gov")
	v.SetDefault("edgar.user_agent", "Sells Advisors blake@sellsadvisors.com")
	v.SetDefault("edgar.requests_per_sec", 6.7)
	v.SetDefault("edgar.max_filings", 10)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("signals.context_chars", 150)
	v.SetDefault("signals.max_per_prospect", 20)
	v.SetDefault("breaker.window_secs", 60)
	v.SetDefault("breaker.min_volume", 5)
	v.SetDefault("breaker.failure_ratio", 0.5)
	v.SetDefault("breaker.reset_secs", 30)
	v.SetDefault("breaker.call_timeout_secs", 10)
	v.SetDefault("enrich.max_concurrent_runs", 5)
	v.SetDefault("enrich.step_retries", 3)
	v.SetDefault("search.page_size_cap", 25)
	v.SetDefault("search.max_pages", 500)
	v.SetDefault("search.cache_ttl_hours", 24)
	v.SetDefault("search.requests_per_minute", 30)
	v.SetDefault("search.burst", 10)

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
