package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/i474232898/weather-lookup/internal/logger"
	"github.com/i474232898/weather-lookup/internal/quota"
)

// ProviderLimits holds the configured ceilings for one upstream. Zero means unset.
type ProviderLimits struct {
	PerSecond int64
	PerMinute int64
	PerMonth  int64
}

// Options converts the limits into quota options.
func (l ProviderLimits) Options() []quota.Option {
	var opts []quota.Option
	if l.PerSecond > 0 {
		opts = append(opts, quota.PerSecond(l.PerSecond))
	}
	if l.PerMinute > 0 {
		opts = append(opts, quota.PerMinute(l.PerMinute))
	}
	if l.PerMonth > 0 {
		opts = append(opts, quota.PerMonth(l.PerMonth))
	}
	return opts
}

type RedisConfig struct {
	Addr     string // empty selects the in-memory store
	Password string
	DB       int
}

type AppConfig struct {
	Port        string
	HTTPTimeout time.Duration

	Redis RedisConfig

	MapboxAccessToken string
	OpenWeatherAPIKey string

	MapboxLimits      ProviderLimits
	OpenWeatherLimits ProviderLimits

	// Addresses kept warm by the scheduler.
	WarmAddresses []string
	WarmInterval  time.Duration

	InboundRPS   float64
	InboundBurst int

	Log logger.Config

	v *viper.Viper
}

// Load reads configuration from .env (if present) and the environment.
// Missing credentials are not an error here; calls that need them fail.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		logger.WithComponent("config").Debugf("no .env file loaded: %v", err)
	}
	return fromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("PORT", "8080")
	v.SetDefault("HTTP_TIMEOUT", "10s")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("WARM_INTERVAL", "30m")
	v.SetDefault("INBOUND_RPS", 20)
	v.SetDefault("INBOUND_BURST", 40)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.AutomaticEnv()
	return v
}

func fromViper(v *viper.Viper) (*AppConfig, error) {
	cfg := &AppConfig{
		Port: v.GetString("PORT"),
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		MapboxAccessToken: v.GetString("MAPBOX_ACCESS_TOKEN"),
		OpenWeatherAPIKey: v.GetString("OPENWEATHER_API_KEY"),
		WarmAddresses:     splitAddresses(v.GetString("WARM_ADDRESSES")),
		InboundRPS:        v.GetFloat64("INBOUND_RPS"),
		InboundBurst:      v.GetInt("INBOUND_BURST"),
		Log: logger.Config{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		v: v,
	}

	var err error
	if cfg.HTTPTimeout, err = duration(v, "HTTP_TIMEOUT"); err != nil {
		return nil, err
	}
	if cfg.WarmInterval, err = duration(v, "WARM_INTERVAL"); err != nil {
		return nil, err
	}
	if cfg.MapboxLimits, err = limits(v, "MAPBOX"); err != nil {
		return nil, err
	}
	if cfg.OpenWeatherLimits, err = limits(v, "OPENWEATHER"); err != nil {
		return nil, err
	}
	if cfg.InboundRPS <= 0 || cfg.InboundBurst <= 0 {
		return nil, fmt.Errorf("INBOUND_RPS and INBOUND_BURST must be positive")
	}
	return cfg, nil
}

// QuotaOffset returns <PROVIDER>_QUOTA_OFFSET as currently set in the
// environment. It satisfies quota.OffsetFunc.
func (c *AppConfig) QuotaOffset(provider string) int64 {
	if c.v == nil {
		return 0
	}
	return c.v.GetInt64(strings.ToUpper(provider) + "_QUOTA_OFFSET")
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func limits(v *viper.Viper, prefix string) (ProviderLimits, error) {
	l := ProviderLimits{
		PerSecond: v.GetInt64(prefix + "_PER_SECOND"),
		PerMinute: v.GetInt64(prefix + "_PER_MINUTE"),
		PerMonth:  v.GetInt64(prefix + "_PER_MONTH"),
	}
	if l.PerSecond < 0 || l.PerMinute < 0 || l.PerMonth < 0 {
		return l, fmt.Errorf("%s limits must not be negative", prefix)
	}
	return l, nil
}

func splitAddresses(raw string) []string {
	var out []string
	for _, a := range strings.Split(raw, "|") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
