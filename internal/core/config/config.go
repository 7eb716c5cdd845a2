// Package config loads service configuration. Precedence is defaults,
// then an optional YAML overlay named by CONFIG_FILE, then environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PopulatorCfg selects and tunes the population-request driver.
type PopulatorCfg struct {
	Driver     string // "kafka", "http" or "log"
	Brokers    string
	Topic      string
	WebhookURL string
	Queue      int
	Timeout    time.Duration
}

// MemcacheCfg tunes the optional in-process read-through cache in front
// of the elevation store.
type MemcacheCfg struct {
	Enabled    bool
	SizeMB     int
	LifeWindow time.Duration
}

type Config struct {
	Addr       string
	LogLevel   string
	LogConsole bool

	RedisAddr     string
	LookupTimeout time.Duration

	MinResolution   int
	MaxResolution   int
	CellLimit       int
	PolygonCellMult int

	PopulationTTL   time.Duration
	DedupMaxEntries int

	WaitBaseSeconds    int
	WaitPerCellSeconds int

	Populator PopulatorCfg
	Memcache  MemcacheCfg
}

func defaults() Config {
	return Config{
		Addr:            ":8080",
		LogLevel:        "info",
		RedisAddr:       "localhost:6379",
		LookupTimeout:   2 * time.Second,
		MinResolution:   8,
		MaxResolution:   12,
		CellLimit:       15,
		PolygonCellMult: 100,
		PopulationTTL:   240 * time.Second,
		DedupMaxEntries: 1024,
		WaitBaseSeconds: 240,
		Populator: PopulatorCfg{
			Driver:  "kafka",
			Brokers: "localhost:9092",
			Topic:   "elevation-populate",
			Queue:   1024,
			Timeout: 5 * time.Second,
		},
		Memcache: MemcacheCfg{
			Enabled:    true,
			SizeMB:     32,
			LifeWindow: 10 * time.Minute,
		},
	}
}

// Load builds the effective configuration. A missing CONFIG_FILE is an
// error; a missing env var never is.
func Load() (Config, error) {
	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	clamp(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Addr = getenv("ADDR", cfg.Addr)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogConsole = getbool("LOG_CONSOLE", cfg.LogConsole)
	cfg.RedisAddr = getenv("REDIS_ADDR", cfg.RedisAddr)
	cfg.LookupTimeout = getduration("STORE_LOOKUP_TIMEOUT", cfg.LookupTimeout)
	cfg.MinResolution = getint("MIN_RESOLUTION", cfg.MinResolution)
	cfg.MaxResolution = getint("MAX_RESOLUTION", cfg.MaxResolution)
	cfg.CellLimit = getint("CELL_LIMIT", cfg.CellLimit)
	cfg.PolygonCellMult = getint("POLYGON_CELL_LIMIT_MULTIPLIER", cfg.PolygonCellMult)
	cfg.PopulationTTL = getduration("POPULATION_TTL", cfg.PopulationTTL)
	cfg.DedupMaxEntries = getint("DEDUP_MAX_ENTRIES", cfg.DedupMaxEntries)
	cfg.WaitBaseSeconds = getint("ESTIMATED_WAIT", cfg.WaitBaseSeconds)
	cfg.WaitPerCellSeconds = getint("ESTIMATED_WAIT_PER_CELL", cfg.WaitPerCellSeconds)

	cfg.Populator.Driver = strings.ToLower(getenv("POPULATOR_DRIVER", cfg.Populator.Driver))
	cfg.Populator.Brokers = getenv("KAFKA_BROKERS", cfg.Populator.Brokers)
	cfg.Populator.Topic = getenv("KAFKA_TOPIC", cfg.Populator.Topic)
	cfg.Populator.WebhookURL = getenv("POPULATOR_WEBHOOK_URL", cfg.Populator.WebhookURL)
	cfg.Populator.Queue = getint("POPULATOR_QUEUE", cfg.Populator.Queue)
	cfg.Populator.Timeout = getduration("POPULATOR_TIMEOUT", cfg.Populator.Timeout)

	cfg.Memcache.Enabled = getbool("MEMCACHE_ENABLED", cfg.Memcache.Enabled)
	cfg.Memcache.SizeMB = getint("MEMCACHE_SIZE_MB", cfg.Memcache.SizeMB)
	cfg.Memcache.LifeWindow = getduration("MEMCACHE_LIFE_WINDOW", cfg.Memcache.LifeWindow)
}

func clamp(cfg *Config) {
	if cfg.MinResolution < 0 {
		cfg.MinResolution = 0
	}
	if cfg.MaxResolution > 15 {
		cfg.MaxResolution = 15
	}
	if cfg.MinResolution > cfg.MaxResolution {
		cfg.MinResolution, cfg.MaxResolution = 8, 12
	}
	if cfg.CellLimit <= 0 {
		cfg.CellLimit = 15
	}
	if cfg.PolygonCellMult <= 0 {
		cfg.PolygonCellMult = 100
	}
	if cfg.PopulationTTL <= 0 {
		cfg.PopulationTTL = 240 * time.Second
	}
	if cfg.DedupMaxEntries <= 0 {
		cfg.DedupMaxEntries = 1024
	}
	if cfg.WaitBaseSeconds <= 0 {
		cfg.WaitBaseSeconds = 240
	}
	if cfg.WaitPerCellSeconds < 0 {
		cfg.WaitPerCellSeconds = 0
	}
	if cfg.Populator.Queue <= 0 {
		cfg.Populator.Queue = 1024
	}
}

// fileConfig mirrors Config with pointer fields so the overlay can tell
// "absent" from a zero value. Durations are written like "250ms" or "4m".
type fileConfig struct {
	Addr       *string `yaml:"addr"`
	LogLevel   *string `yaml:"log_level"`
	LogConsole *bool   `yaml:"log_console"`

	RedisAddr     *string `yaml:"redis_addr"`
	LookupTimeout *string `yaml:"store_lookup_timeout"`

	MinResolution   *int `yaml:"min_resolution"`
	MaxResolution   *int `yaml:"max_resolution"`
	CellLimit       *int `yaml:"cell_limit"`
	PolygonCellMult *int `yaml:"polygon_cell_limit_multiplier"`

	PopulationTTL   *string `yaml:"population_ttl"`
	DedupMaxEntries *int    `yaml:"dedup_max_entries"`

	WaitBaseSeconds    *int `yaml:"estimated_wait"`
	WaitPerCellSeconds *int `yaml:"estimated_wait_per_cell"`

	Populator struct {
		Driver     *string `yaml:"driver"`
		Brokers    *string `yaml:"brokers"`
		Topic      *string `yaml:"topic"`
		WebhookURL *string `yaml:"webhook_url"`
		Queue      *int    `yaml:"queue"`
		Timeout    *string `yaml:"timeout"`
	} `yaml:"populator"`

	Memcache struct {
		Enabled    *bool   `yaml:"enabled"`
		SizeMB     *int    `yaml:"size_mb"`
		LifeWindow *string `yaml:"life_window"`
	} `yaml:"memcache"`
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setstr(&cfg.Addr, fc.Addr)
	setstr(&cfg.LogLevel, fc.LogLevel)
	setbool(&cfg.LogConsole, fc.LogConsole)
	setstr(&cfg.RedisAddr, fc.RedisAddr)
	if err := setdur(&cfg.LookupTimeout, fc.LookupTimeout); err != nil {
		return fmt.Errorf("config file %s: store_lookup_timeout: %w", path, err)
	}
	setint(&cfg.MinResolution, fc.MinResolution)
	setint(&cfg.MaxResolution, fc.MaxResolution)
	setint(&cfg.CellLimit, fc.CellLimit)
	setint(&cfg.PolygonCellMult, fc.PolygonCellMult)
	if err := setdur(&cfg.PopulationTTL, fc.PopulationTTL); err != nil {
		return fmt.Errorf("config file %s: population_ttl: %w", path, err)
	}
	setint(&cfg.DedupMaxEntries, fc.DedupMaxEntries)
	setint(&cfg.WaitBaseSeconds, fc.WaitBaseSeconds)
	setint(&cfg.WaitPerCellSeconds, fc.WaitPerCellSeconds)

	setstr(&cfg.Populator.Driver, fc.Populator.Driver)
	setstr(&cfg.Populator.Brokers, fc.Populator.Brokers)
	setstr(&cfg.Populator.Topic, fc.Populator.Topic)
	setstr(&cfg.Populator.WebhookURL, fc.Populator.WebhookURL)
	setint(&cfg.Populator.Queue, fc.Populator.Queue)
	if err := setdur(&cfg.Populator.Timeout, fc.Populator.Timeout); err != nil {
		return fmt.Errorf("config file %s: populator.timeout: %w", path, err)
	}

	setbool(&cfg.Memcache.Enabled, fc.Memcache.Enabled)
	setint(&cfg.Memcache.SizeMB, fc.Memcache.SizeMB)
	if err := setdur(&cfg.Memcache.LifeWindow, fc.Memcache.LifeWindow); err != nil {
		return fmt.Errorf("config file %s: memcache.life_window: %w", path, err)
	}
	return nil
}

func setstr(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setint(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setbool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setdur(dst *time.Duration, v *string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

// KafkaBrokerList splits the comma-separated broker string.
func (p PopulatorCfg) KafkaBrokerList() []string {
	var out []string
	for _, part := range strings.Split(p.Brokers, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
