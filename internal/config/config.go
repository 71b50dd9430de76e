package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"drain-audit/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Estimator EstimatorConfig `mapstructure:"estimator"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Merger    MergerConfig    `mapstructure:"merger"`
	Matcher   MatcherConfig   `mapstructure:"matcher"`
	Forecast  ForecastConfig  `mapstructure:"forecast"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// UpstreamConfig covers the external telemetry API.
type UpstreamConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// CacheConfig governs the upstream response cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// EstimatorConfig bounds baseline fill-rate estimation.
type EstimatorConfig struct {
	MaxGapMinutes       float64 `mapstructure:"max_gap_minutes"`
	MinRate             float64 `mapstructure:"min_rate"`
	MaxRate             float64 `mapstructure:"max_rate"`
	DefaultBaselineRate float64 `mapstructure:"default_baseline_rate"`
}

// DetectorConfig tunes the windowed drain scan.
type DetectorConfig struct {
	MinSamples         int     `mapstructure:"min_samples"`
	WindowMinutes      float64 `mapstructure:"window_minutes"`
	WindowSlackMinutes float64 `mapstructure:"window_slack_minutes"`
	DrainRateFactor    float64 `mapstructure:"drain_rate_factor"`
	MinDurationMinutes float64 `mapstructure:"min_duration_minutes"`
	MinRemovedVolume   float64 `mapstructure:"min_removed_volume"`
}

// MergerConfig tunes event coalescing.
type MergerConfig struct {
	MaxGapMinutes float64 `mapstructure:"max_gap_minutes"`
}

// MatcherConfig tunes ticket reconciliation thresholds.
type MatcherConfig struct {
	TolerancePct           float64 `mapstructure:"tolerance_pct"`
	MinorAbsDiff           float64 `mapstructure:"minor_abs_diff"`
	MinorPct               float64 `mapstructure:"minor_pct"`
	MinorHighPct           float64 `mapstructure:"minor_high_pct"`
	SignificantHighPct     float64 `mapstructure:"significant_high_pct"`
	SignificantCriticalPct float64 `mapstructure:"significant_critical_pct"`
}

// ForecastConfig tunes overflow projection.
type ForecastConfig struct {
	HorizonHours       float64 `mapstructure:"horizon_hours"`
	CriticalUnderHours float64 `mapstructure:"critical_under_hours"`
	HighUnderHours     float64 `mapstructure:"high_under_hours"`
}

// SchedulerConfig governs the periodic audit cadence.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram alert channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DRAINAUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "drainaudit")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("upstream.base_url", "https://hackutd2025.eog.systems")
	v.SetDefault("upstream.request_timeout", "10s")
	v.SetDefault("upstream.user_agent", "drainaudit/1.0")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "1m")

	v.SetDefault("estimator.max_gap_minutes", 5.0)
	v.SetDefault("estimator.min_rate", 0.01)
	v.SetDefault("estimator.max_rate", 10.0)
	v.SetDefault("estimator.default_baseline_rate", 0.1)

	v.SetDefault("detector.min_samples", 10)
	v.SetDefault("detector.window_minutes", 30.0)
	v.SetDefault("detector.window_slack_minutes", 5.0)
	v.SetDefault("detector.drain_rate_factor", 0.3)
	v.SetDefault("detector.min_duration_minutes", 20.0)
	v.SetDefault("detector.min_removed_volume", 30.0)

	v.SetDefault("merger.max_gap_minutes", 60.0)

	v.SetDefault("matcher.tolerance_pct", 0.10)
	v.SetDefault("matcher.minor_abs_diff", 1.0)
	v.SetDefault("matcher.minor_pct", 2.0)
	v.SetDefault("matcher.minor_high_pct", 5.0)
	v.SetDefault("matcher.significant_high_pct", 20.0)
	v.SetDefault("matcher.significant_critical_pct", 50.0)

	v.SetDefault("forecast.horizon_hours", 24.0)
	v.SetDefault("forecast.critical_under_hours", 4.0)
	v.SetDefault("forecast.high_under_hours", 12.0)

	v.SetDefault("scheduler.interval", "15m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be greater than zero when cache is enabled")
	}
	if c.Estimator.MinRate >= c.Estimator.MaxRate {
		return fmt.Errorf("estimator.min_rate must be below estimator.max_rate")
	}
	if c.Detector.WindowSlackMinutes >= c.Detector.WindowMinutes {
		return fmt.Errorf("detector.window_slack_minutes must be below detector.window_minutes")
	}
	if c.Matcher.TolerancePct <= 0 || c.Matcher.TolerancePct >= 1 {
		return fmt.Errorf("matcher.tolerance_pct must lie in (0, 1)")
	}
	if c.Forecast.CriticalUnderHours > c.Forecast.HighUnderHours {
		return fmt.Errorf("forecast.critical_under_hours cannot exceed forecast.high_under_hours")
	}
	if c.Forecast.HighUnderHours > c.Forecast.HorizonHours {
		return fmt.Errorf("forecast.high_under_hours cannot exceed forecast.horizon_hours")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required when telegram is enabled")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
