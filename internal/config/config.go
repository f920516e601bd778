// Package config loads the kvstore command's TOML configuration.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/unkn0wn-root/kvstore"
)

// Config holds all configuration for the kvstore command.
type Config struct {
	Backend string `toml:"backend"`    // memory | filesystem | sqlite | redis | bigcache | ristretto
	Merge   string `toml:"merge"`      // first | last | newest
	Mode    string `toml:"merge_mode"` // read | write

	Log        Log        `toml:"log"`
	Filesystem Filesystem `toml:"filesystem"`
	SQLite     SQLite     `toml:"sqlite"`
	Redis      Redis      `toml:"redis"`
	Bigcache   Bigcache   `toml:"bigcache"`
	Ristretto  Ristretto  `toml:"ristretto"`
}

type Log struct {
	Kind  string `toml:"kind"`  // slog | zap | logrus | none
	Level string `toml:"level"` // debug | info | warn | error
}

type Filesystem struct {
	Dir    string `toml:"dir"`
	Create bool   `toml:"create"`
	Sync   bool   `toml:"sync"`
}

type SQLite struct {
	Path string `toml:"path"`
}

type Redis struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	Namespace  string `toml:"namespace"`
	MaxRetries int    `toml:"max_retries"`
}

type Bigcache struct {
	LifeWindow         Duration `toml:"life_window"`
	CleanWindow        Duration `toml:"clean_window"`
	MaxEntriesInWindow int      `toml:"max_entries_in_window"`
	MaxEntrySize       int      `toml:"max_entry_size"`
	HardMaxCacheSizeMB int      `toml:"hard_max_cache_size_mb"`
}

type Ristretto struct {
	NumCounters int64 `toml:"num_counters"`
	MaxCost     int64 `toml:"max_cost"`
	BufferItems int64 `toml:"buffer_items"`
	Metrics     bool  `toml:"metrics"`
}

// Duration decodes TOML strings such as "10m".
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// New returns a new Config with default values.
func New() *Config {
	return &Config{
		Backend: "filesystem",
		Merge:   "first",
		Mode:    "read",
		Log:     Log{Kind: "slog", Level: "info"},
		Filesystem: Filesystem{
			Dir:    "./kvdata",
			Create: true,
		},
		SQLite: SQLite{Path: "./kvstore.db"},
		Redis: Redis{
			Addr:      "localhost:6379",
			Namespace: "kv",
		},
		Bigcache: Bigcache{LifeWindow: Duration{10 * time.Minute}},
		Ristretto: Ristretto{
			NumCounters: 1e5,
			MaxCost:     64 << 20,
			BufferItems: 64,
		},
	}
}

// Load reads a configuration file over the current values and validates the result.
func (c *Config) Load(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}
	return c.Validate()
}

func (c *Config) Validate() error {
	switch c.Backend {
	case "memory", "filesystem", "sqlite", "redis", "bigcache", "ristretto":
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	switch c.Merge {
	case "", "first", "last", "newest":
	default:
		return fmt.Errorf("config: unknown merge policy %q", c.Merge)
	}
	if _, ok := kvstore.ParseConflictMode(c.Mode); !ok {
		return fmt.Errorf("config: unknown merge_mode %q", c.Mode)
	}
	switch c.Log.Kind {
	case "", "slog", "zap", "logrus", "none":
	default:
		return fmt.Errorf("config: unknown log kind %q", c.Log.Kind)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	return nil
}
