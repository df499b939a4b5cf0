package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Provider      ProviderConfig       `koanf:"provider" validate:"required"`
	Ledger        LedgerConfig         `koanf:"ledger" validate:"required"`
	Fetch         FetchConfig          `koanf:"fetch" validate:"required"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port         string `koanf:"port" validate:"required"`
	ReadTimeout  int    `koanf:"read_timeout" validate:"required"`
	WriteTimeout int    `koanf:"write_timeout" validate:"required"`
	IdleTimeout  int    `koanf:"idle_timeout" validate:"required"`
}

// ProviderConfig points at the external search/contents API.
type ProviderConfig struct {
	BaseURL           string `koanf:"base_url" validate:"required,url"`
	APIKey            string `koanf:"api_key"`
	Timeout           int    `koanf:"timeout" validate:"required"`
	DefaultNumResults int    `koanf:"default_num_results" validate:"required"`
	DefaultMaxChars   int    `koanf:"default_max_chars" validate:"required"`
}

// LedgerConfig points at the external licensing/ledger service.
// APIURL is the one hard requirement: a client cannot be constructed
// without it.
type LedgerConfig struct {
	APIURL         string `koanf:"api_url" validate:"required,url"`
	APIKey         string `koanf:"api_key"`
	CheckTimeout   int    `koanf:"check_timeout" validate:"required"`
	AcquireTimeout int    `koanf:"acquire_timeout" validate:"required"`
	LogTimeout     int    `koanf:"log_timeout" validate:"required"`
	EnableTracking bool   `koanf:"enable_tracking"`
	EnableCache    bool   `koanf:"enable_cache"`
	CacheTTL       int    `koanf:"cache_ttl" validate:"required"`
}

// FetchConfig bounds the paywall-aware content fetcher.
type FetchConfig struct {
	Timeout     int `koanf:"timeout" validate:"required"`
	MaxParallel int `koanf:"max_parallel" validate:"required,min=1"`
}

func (c ProviderConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func (c FetchConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func (c LedgerConfig) CheckTimeoutDuration() time.Duration {
	return time.Duration(c.CheckTimeout) * time.Second
}

func (c LedgerConfig) AcquireTimeoutDuration() time.Duration {
	return time.Duration(c.AcquireTimeout) * time.Second
}

func (c LedgerConfig) LogTimeoutDuration() time.Duration {
	return time.Duration(c.LogTimeout) * time.Second
}

func (c LedgerConfig) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

func defaults() map[string]any {
	return map[string]any{
		"primary.env":                  "development",
		"server.port":                  "8080",
		"server.read_timeout":          30,
		"server.write_timeout":         30,
		"server.idle_timeout":          60,
		"provider.base_url":            "https://api.exa.ai",
		"provider.timeout":             25,
		"provider.default_num_results": 8,
		"provider.default_max_chars":   3000,
		"ledger.check_timeout":         5,
		"ledger.acquire_timeout":       10,
		"ledger.log_timeout":           5,
		"ledger.enable_tracking":       true,
		"ledger.enable_cache":          true,
		"ledger.cache_ttl":             300,
		"fetch.timeout":                15,
		"fetch.max_parallel":           4,
	}
}

// LoadConfig loads the configuration from environment variables using
// koanf, layered over built-in defaults. Env vars use the CONTENTGATE_
// prefix with double underscores separating sections, e.g.
// CONTENTGATE_LEDGER__API_URL.
func LoadConfig() *Config {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		logger.Fatal().Err(err).Msg("could not load config defaults")
	}
	err := k.Load(env.Provider("CONTENTGATE_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "CONTENTGATE_"))
		return strings.ReplaceAll(s, "__", ".")
	}), nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not load env variables")
	}

	mainConfig := &Config{}
	if err := k.Unmarshal("", mainConfig); err != nil {
		logger.Fatal().Err(err).Msg("could not unmarshal config")
	}

	validate := validator.New()
	if err := validate.Struct(mainConfig); err != nil {
		logger.Fatal().Err(err).Msg("could not validate config")
	}

	// Observability is a pointer so absence is detectable.
	if mainConfig.Observability == nil {
		mainConfig.Observability = DefaultObservabilityConfig()
	}
	mainConfig.Observability.ServiceName = "contentgate"
	mainConfig.Observability.Environment = mainConfig.Primary.Env

	return mainConfig
}
