package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// Config holds all configuration for the application.
type Config struct {
	PriceFeed PriceFeed `mapstructure:"price_feed"`
	Risk      Risk      `mapstructure:"risk"`
	Logger    Logger    `mapstructure:"logger"`
	Server    Server    `mapstructure:"server"`
	Database  Database  `mapstructure:"database"`
	Plans     []Plan    `mapstructure:"plans"`
}

// PriceFeed holds the configuration for the market price source.
type PriceFeed struct {
	// Source is either "binance" (live REST quotes) or "static" (StaticPrices table).
	Source         string             `mapstructure:"source"`
	BaseURL        string             `mapstructure:"base_url"`
	Testnet        bool               `mapstructure:"testnet"`
	RateLimit      float64            `mapstructure:"rate_limit"`
	RateLimitBurst int                `mapstructure:"rate_limit_burst"`
	Timeout        time.Duration      `mapstructure:"timeout"`
	CacheTTL       time.Duration      `mapstructure:"cache_ttl"`
	StaticPrices   map[string]float64 `mapstructure:"static_prices"`
}

// Risk holds tuning for the risk engine.
type Risk struct {
	// PriceConcurrency bounds parallel quote lookups during one equity computation.
	PriceConcurrency int    `mapstructure:"price_concurrency"`
	DefaultPlan      string `mapstructure:"default_plan"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Plan is a purchasable challenge: starting capital plus the rule set it installs.
type Plan struct {
	Name                    string  `mapstructure:"name" json:"name"`
	Price                   float64 `mapstructure:"price" json:"price"`
	Capital                 float64 `mapstructure:"capital" json:"capital"`
	ProfitTargetPercent     float64 `mapstructure:"profit_target_percent" json:"profit_target_percent"`
	MaxDailyLossPercent     float64 `mapstructure:"max_daily_loss_percent" json:"max_daily_loss_percent"`
	MaxTotalDrawdownPercent float64 `mapstructure:"max_total_drawdown_percent" json:"max_total_drawdown_percent"`
}

// FindPlan returns the plan with the given name (case-insensitive).
func (c *Config) FindPlan(name string) (Plan, bool) {
	for _, p := range c.Plans {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Plan{}, false
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("failed to read config: %w", err)
		}
		// Defaults and environment are enough to run.
		err = nil
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("failed to decode config: %w", err)
	}

	err = config.Validate()
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("price_feed.source", "binance")
	v.SetDefault("price_feed.rate_limit", 20)      // requests per second
	v.SetDefault("price_feed.rate_limit_burst", 5) // burst size
	v.SetDefault("price_feed.timeout", "2s")
	v.SetDefault("price_feed.cache_ttl", "5s")

	v.SetDefault("risk.price_concurrency", 8)
	v.SetDefault("risk.default_plan", "elite")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("database.dsn", "prop-risk.db")

	v.SetDefault("plans", []map[string]interface{}{
		{"name": "starter", "price": 49, "capital": 5000, "profit_target_percent": 10, "max_daily_loss_percent": 5, "max_total_drawdown_percent": 10},
		{"name": "pro", "price": 149, "capital": 25000, "profit_target_percent": 10, "max_daily_loss_percent": 5, "max_total_drawdown_percent": 10},
		{"name": "elite", "price": 499, "capital": 100000, "profit_target_percent": 10, "max_daily_loss_percent": 5, "max_total_drawdown_percent": 10},
	})
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error

	switch c.PriceFeed.Source {
	case "binance":
		if c.PriceFeed.RateLimit <= 0 {
			err = multierr.Append(err, errors.New("price_feed.rate_limit must be positive"))
		}
		if c.PriceFeed.RateLimitBurst <= 0 {
			err = multierr.Append(err, errors.New("price_feed.rate_limit_burst must be positive"))
		}
	case "static":
	default:
		err = multierr.Append(err, fmt.Errorf("price_feed.source %q is not one of binance, static", c.PriceFeed.Source))
	}
	if c.PriceFeed.Timeout <= 0 {
		err = multierr.Append(err, errors.New("price_feed.timeout must be positive"))
	}
	if c.PriceFeed.CacheTTL < 0 {
		err = multierr.Append(err, errors.New("price_feed.cache_ttl must not be negative"))
	}
	if c.Risk.PriceConcurrency <= 0 {
		err = multierr.Append(err, errors.New("risk.price_concurrency must be positive"))
	}
	if c.Database.DSN == "" {
		err = multierr.Append(err, errors.New("database.dsn must not be empty"))
	}
	if len(c.Plans) == 0 {
		err = multierr.Append(err, errors.New("at least one plan must be configured"))
	}

	seen := make(map[string]struct{}, len(c.Plans))
	for i, p := range c.Plans {
		key := strings.ToLower(p.Name)
		if key == "" {
			err = multierr.Append(err, fmt.Errorf("plans[%d].name must not be empty", i))
		} else if _, dup := seen[key]; dup {
			err = multierr.Append(err, fmt.Errorf("plans[%d].name %q is duplicated", i, p.Name))
		}
		seen[key] = struct{}{}
		if p.Capital <= 0 {
			err = multierr.Append(err, fmt.Errorf("plans[%d].capital must be positive", i))
		}
		if p.ProfitTargetPercent <= 0 || p.MaxDailyLossPercent <= 0 || p.MaxTotalDrawdownPercent <= 0 {
			err = multierr.Append(err, fmt.Errorf("plans[%d] rule percentages must be positive", i))
		}
	}
	if c.Risk.DefaultPlan != "" {
		if _, ok := c.FindPlan(c.Risk.DefaultPlan); !ok {
			err = multierr.Append(err, fmt.Errorf("risk.default_plan %q is not a configured plan", c.Risk.DefaultPlan))
		}
	}

	return err
}
