package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	ModeDryRun = "DRY_RUN"
	ModeLive   = "LIVE"
)

type ProviderConfig struct {
	Name      string `yaml:"name" validate:"required"`
	Kind      string `yaml:"kind" default:"openai" validate:"oneof=openai claude noop"`
	Model     string `yaml:"model" validate:"required_unless=Kind noop"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type TokenConfig struct {
	Symbol  string `yaml:"symbol"`
	Address string `yaml:"address"`
}

type MarketConfig struct {
	Underlying string `yaml:"underlying" validate:"required"`
	Market     string `yaml:"market" validate:"required"`
}

type Config struct {
	Mode        string `yaml:"mode" default:"DRY_RUN" validate:"oneof=DRY_RUN LIVE"`
	PollSeconds int    `yaml:"poll_seconds" default:"14400" validate:"gte=0"`

	Market struct {
		Symbol       string  `yaml:"symbol" default:"BTCUSD" validate:"required"`
		Resolution   string  `yaml:"resolution" default:"240"`
		LookbackDays int     `yaml:"lookback_days" default:"60" validate:"gt=0"`
		FeedURL      string  `yaml:"feed_url" default:"https://rest.jp.stork-oracle.network/v1" validate:"url"`
		APIKeyEnv    string  `yaml:"api_key_env" default:"STORK_API_KEY"`
		RPS          float64 `yaml:"rps" default:"5"`
	} `yaml:"market"`

	Providers []ProviderConfig `yaml:"providers" validate:"min=1,dive"`

	Consensus struct {
		ProviderTimeout  time.Duration `yaml:"provider_timeout" default:"30s"`
		Temperature      float32       `yaml:"temperature" default:"0.2" validate:"gte=0,lte=1"`
		MaxTokens        int           `yaml:"max_tokens" default:"250" validate:"gt=0"`
		LendingMaxTokens int           `yaml:"lending_max_tokens" default:"500" validate:"gt=0"`
		CacheTTL         time.Duration `yaml:"cache_ttl" default:"0s"`
	} `yaml:"consensus"`

	Chain struct {
		RPCURL         string        `yaml:"rpc_url"`
		ChainID        int64         `yaml:"chain_id" default:"10143" validate:"gt=0"`
		PrivateKeyEnv  string        `yaml:"private_key_env" default:"PRIVATE_KEY"`
		ReceiptTimeout time.Duration `yaml:"receipt_timeout" default:"2m"`
		PollInterval   time.Duration `yaml:"poll_interval" default:"2s"`
	} `yaml:"chain"`

	Tokens struct {
		Stable  TokenConfig `yaml:"stable"`
		Asset   TokenConfig `yaml:"asset"`
		Permit2 string      `yaml:"permit2" default:"0x000000000022D473030F116dDEE9F6B43aC78BA3"`
	} `yaml:"tokens"`

	Risk struct {
		HighPct         int64   `yaml:"high_pct" default:"5" validate:"gt=0,lte=100"`
		LowPct          int64   `yaml:"low_pct" default:"10" validate:"gt=0,lte=100"`
		MinTradeUnits   int64   `yaml:"min_trade_units" default:"1" validate:"gte=0"`
		MaxRateDriftPct float64 `yaml:"max_rate_drift_pct" default:"10" validate:"gte=0"`
	} `yaml:"risk"`

	Aggregator struct {
		BaseURL   string  `yaml:"base_url" default:"https://api.0x.org" validate:"url"`
		APIKeyEnv string  `yaml:"api_key_env" default:"ZERO_EX_API_KEY"`
		RPS       float64 `yaml:"rps" default:"2"`
	} `yaml:"aggregator"`

	Lending struct {
		Enabled       bool                    `yaml:"enabled"`
		MarketDataURL string                  `yaml:"market_data_url"`
		Markets       map[string]MarketConfig `yaml:"markets" validate:"dive"`
	} `yaml:"lending"`

	History struct {
		Driver string `yaml:"driver" default:"memory" validate:"oneof=memory postgres"`
		DSNEnv string `yaml:"dsn_env" default:"DATABASE_URL"`
	} `yaml:"history"`

	Redis struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr" default:"localhost:6379"`
		DB      int    `yaml:"db"`
		Prefix  string `yaml:"prefix" default:"llm-defi-agent"`
		PassEnv string `yaml:"password_env" default:"REDIS_PASSWORD"`
	} `yaml:"redis"`

	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic" default:"defi.decisions"`
	} `yaml:"kafka"`

	Server struct {
		Addr string `yaml:"addr" default:":8080"`
	} `yaml:"server"`

	// HTTP applies to every outbound API client (feed, aggregator, providers, lending data).
	HTTP struct {
		Timeout     time.Duration `yaml:"timeout" default:"60s" validate:"gt=0"`
		LogRequests bool          `yaml:"log_requests"`
	} `yaml:"http"`

	TradeLog struct {
		Dir        string `yaml:"dir" default:"logs"`
		MaxSizeMB  int    `yaml:"max_size_mb" default:"50"`
		MaxAgeDays int    `yaml:"max_age_days" default:"30"`
		MaxBackups int    `yaml:"max_backups" default:"10"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"tradelog"`
}

func (c *Config) IsDryRun() bool {
	return c.Mode != ModeLive
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Risk.HighPct > c.Risk.LowPct {
		return fmt.Errorf("risk.high_pct (%d) must not exceed risk.low_pct (%d)", c.Risk.HighPct, c.Risk.LowPct)
	}
	if c.Mode == ModeLive {
		if c.Chain.RPCURL == "" {
			return errors.New("chain.rpc_url is required in LIVE mode")
		}
		if c.Tokens.Stable.Address == "" || c.Tokens.Asset.Address == "" {
			return errors.New("tokens.stable and tokens.asset addresses are required in LIVE mode")
		}
	}
	if c.Lending.Enabled {
		if c.Lending.MarketDataURL == "" {
			return errors.New("lending.market_data_url is required when lending is enabled")
		}
		if len(c.Lending.Markets) == 0 {
			return errors.New("lending.markets cannot be empty when lending is enabled")
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers cannot be empty when kafka is enabled")
	}
	seen := map[string]bool{}
	for _, p := range c.Providers {
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name '%s'", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// Parse applies defaults, decodes yaml over them and validates. Defaults go
// first so an explicit zero in the file (poll_seconds, temperature,
// min_trade_units, max_rate_drift_pct) is kept.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	for i := range c.Providers {
		if err := defaults.Set(&c.Providers[i]); err != nil {
			return nil, fmt.Errorf("apply provider defaults: %w", err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

// LoadConfig reads and parses the yaml file at path.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Secret reads the environment variable a config field points at.
func Secret(envName string) string {
	if envName == "" {
		return ""
	}
	return os.Getenv(envName)
}
