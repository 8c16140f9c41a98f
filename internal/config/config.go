// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/realtime-weather-crawler/internal/crawler"
	"github.com/JakeFAU/realtime-weather-crawler/internal/extract"
)

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	Harvest   HarvestConfig   `mapstructure:"harvest"`
	Selectors SelectorsConfig `mapstructure:"selectors"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// HarvestConfig governs the pass itself.
type HarvestConfig struct {
	Provinces          []string      `mapstructure:"provinces"`
	MaxConcurrent      int           `mapstructure:"max_concurrent"`
	Delay              time.Duration `mapstructure:"delay"`
	ListingURLTemplate string        `mapstructure:"listing_url_template"`
}

// SelectorsConfig holds the CSS selectors applied to listing and detail pages.
type SelectorsConfig struct {
	AreaName    string `mapstructure:"area_name"`
	Temperature string `mapstructure:"temperature"`
	HotCityLink string `mapstructure:"hot_city_link"`
}

// HTTPConfig configures the shared fetcher.
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// CrawlerConfig carries client identity and the optional per-host bucket.
type CrawlerConfig struct {
	UserAgent    string  `mapstructure:"user_agent"`
	PerHostRPS   float64 `mapstructure:"per_host_rps"`
	PerHostBurst int     `mapstructure:"per_host_burst"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig enables the operational HTTP endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// DefaultProvinces lists every province-level region served by the site.
var DefaultProvinces = []string{
	"beijing", "tianjin", "shanghai", "chongqing",
	"hebei", "shanxi", "neimenggu", "liaoning", "jilin", "heilongjiang",
	"jiangsu", "zhejiang", "anhui", "fujian", "jiangxi", "shandong",
	"henan", "hubei", "hunan", "guangdong", "guangxi", "hainan",
	"sichuan", "guizhou", "yunnan", "xizang", "shaanxi", "gansu",
	"qinghai", "ningxia", "xinjiang", "taiwan", "hongkong", "macau",
}

// flagKeys maps CLI flag names onto config keys.
var flagKeys = map[string]string{
	"max-concurrent": "harvest.max_concurrent",
	"delay":          "harvest.delay",
	"province":       "harvest.provinces",
	"timeout":        "http.timeout",
	"user-agent":     "crawler.user_agent",
	"metrics-addr":   "metrics.addr",
	"log-level":      "logging.level",
	"dev":            "logging.development",
}

// Load builds a Config from defaults, an optional file, CRAWLER_* environment
// variables and any changed flags, in increasing precedence.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("harvest.provinces", DefaultProvinces)
	v.SetDefault("harvest.max_concurrent", 5)
	v.SetDefault("harvest.delay", 2*time.Second)
	v.SetDefault("harvest.listing_url_template", crawler.DefaultListingURLTemplate)
	v.SetDefault("selectors.area_name", extract.DefaultAreaNameSelector)
	v.SetDefault("selectors.temperature", extract.DefaultTemperatureSelector)
	v.SetDefault("selectors.hot_city_link", crawler.DefaultHotCityLinkSelector)
	v.SetDefault("http.timeout", 15*time.Second)
	v.SetDefault("crawler.user_agent", "")
	v.SetDefault("crawler.per_host_rps", 0.0)
	v.SetDefault("crawler.per_host_burst", 1)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if len(c.Harvest.Provinces) == 0 {
		return fmt.Errorf("harvest.provinces must not be empty")
	}
	for i, p := range c.Harvest.Provinces {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("harvest.provinces[%d] is blank", i)
		}
	}
	if c.Harvest.MaxConcurrent <= 0 {
		return fmt.Errorf("harvest.max_concurrent must be > 0")
	}
	if c.Harvest.Delay < 0 {
		return fmt.Errorf("harvest.delay must be >= 0")
	}
	if !strings.Contains(c.Harvest.ListingURLTemplate, crawler.ProvincePlaceholder) {
		return fmt.Errorf("harvest.listing_url_template must contain %s", crawler.ProvincePlaceholder)
	}
	if c.Selectors.AreaName == "" || c.Selectors.Temperature == "" || c.Selectors.HotCityLink == "" {
		return fmt.Errorf("selectors must all be set")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.Crawler.PerHostRPS < 0 {
		return fmt.Errorf("crawler.per_host_rps must be >= 0")
	}
	if c.Crawler.PerHostRPS > 0 && c.Crawler.PerHostBurst <= 0 {
		return fmt.Errorf("crawler.per_host_burst must be > 0 when per_host_rps is set")
	}
	return nil
}
