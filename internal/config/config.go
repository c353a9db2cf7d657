package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Steam     SteamConfig     `yaml:"steam"`
	Collect   CollectConfig   `yaml:"collect"`
	Server    ServerConfig    `yaml:"server"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScheduleConfig configures the collection cadence.
type ScheduleConfig struct {
	CollectInterval string `yaml:"collect_interval"`
}

// ParseCollectInterval returns the collect interval as time.Duration.
func (s ScheduleConfig) ParseCollectInterval() time.Duration {
	d, err := time.ParseDuration(s.CollectInterval)
	if err != nil {
		return time.Hour
	}
	return d
}

// DiscoveryConfig configures the headless-browser id discovery engine.
// Stride, max offset and the end-of-listing heuristic are policy tuned
// against one listing page; treat them as knobs, not truths.
type DiscoveryConfig struct {
	ListingURL      string `yaml:"listing_url"`
	OffsetParam     string `yaml:"offset_param"`
	OffsetStride    int    `yaml:"offset_stride"`
	MaxOffset       int    `yaml:"max_offset"`
	SectionSelector string `yaml:"section_selector"`
	NavTimeout      string `yaml:"nav_timeout"`
	WaitTimeout     string `yaml:"wait_timeout"`
	SettleDelay     string `yaml:"settle_delay"`
	BrowseLinks     bool   `yaml:"browse_links"`
	SearchPageSize  int    `yaml:"search_page_size"`
	SearchMaxItems  int    `yaml:"search_max_items"`
	Headless        bool   `yaml:"headless"`
}

// ParseNavTimeout returns the per-navigation timeout.
func (d DiscoveryConfig) ParseNavTimeout() time.Duration {
	v, err := time.ParseDuration(d.NavTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return v
}

// ParseWaitTimeout returns the section-marker wait timeout.
func (d DiscoveryConfig) ParseWaitTimeout() time.Duration {
	v, err := time.ParseDuration(d.WaitTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return v
}

// ParseSettleDelay returns the per-section settle delay after scrolling.
func (d DiscoveryConfig) ParseSettleDelay() time.Duration {
	v, err := time.ParseDuration(d.SettleDelay)
	if err != nil {
		return 1500 * time.Millisecond
	}
	return v
}

// SteamConfig configures the enrichment endpoints.
type SteamConfig struct {
	DetailsURL     string `yaml:"details_url"`
	ReviewsURL     string `yaml:"reviews_url"`
	PlayersURL     string `yaml:"players_url"`
	RequestTimeout string `yaml:"request_timeout"`
}

// ParseRequestTimeout returns the per-request enrichment timeout.
func (s SteamConfig) ParseRequestTimeout() time.Duration {
	v, err := time.ParseDuration(s.RequestTimeout)
	if err != nil {
		return 12 * time.Second
	}
	return v
}

// CollectConfig configures the per-run collection loop.
type CollectConfig struct {
	Delay string `yaml:"delay"`
}

// ParseDelay returns the politeness delay between enriched ids.
func (c CollectConfig) ParseDelay() time.Duration {
	v, err := time.ParseDuration(c.Delay)
	if err != nil {
		return time.Second
	}
	return v
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./festwatch.db"},
		Schedule: ScheduleConfig{CollectInterval: "1h"},
		Discovery: DiscoveryConfig{
			ListingURL:      "https://store.steampowered.com/sale/nextfest",
			OffsetParam:     "offset",
			OffsetStride:    50,
			MaxOffset:       2000,
			SectionSelector: `div[id^='SaleSection_']`,
			NavTimeout:      "30s",
			WaitTimeout:     "10s",
			SettleDelay:     "1500ms",
			BrowseLinks:     false,
			SearchPageSize:  50,
			SearchMaxItems:  2000,
			Headless:        true,
		},
		Steam: SteamConfig{
			DetailsURL:     "https://store.steampowered.com/api/appdetails",
			ReviewsURL:     "https://store.steampowered.com/appreviews",
			PlayersURL:     "https://api.steampowered.com/ISteamUserStats/GetNumberOfCurrentPlayers/v1/",
			RequestTimeout: "12s",
		},
		Collect: CollectConfig{Delay: "1s"},
		Server:  ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FESTWATCH_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FESTWATCH_LISTING_URL"); v != "" {
		cfg.Discovery.ListingURL = v
	}
	if v := os.Getenv("FESTWATCH_COLLECT_INTERVAL"); v != "" {
		cfg.Schedule.CollectInterval = v
	}
	if v := os.Getenv("FESTWATCH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FESTWATCH_HEADLESS"); v != "" {
		cfg.Discovery.Headless = v != "0" && v != "false"
	}
}
