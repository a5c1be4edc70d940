// Package config loads the engine's configuration, grounded on the
// teacher's internal/config viper+fsnotify+mapstructure pattern: a typed
// struct decoded from YAML/env via viper. WatchChanges wires
// OnConfigChange to fsnotify and hands each decoded revision to a
// callback; cmd/engine registers no such callback, so running pairs keep
// the settings they were started with until a restart.
package config

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PairSettings is the on-disk shape of one trading pair's configuration.
type PairSettings struct {
	Pair       string `mapstructure:"pair"`
	TickSize   string `mapstructure:"tick_size"`
	LotSize    string `mapstructure:"lot_size"`
	MinQty     string `mapstructure:"min_qty"`
	PriceScale int32  `mapstructure:"price_scale"`
	QtyScale   int32  `mapstructure:"qty_scale"`
	Disabled   bool   `mapstructure:"disabled"`
	STPPolicy  string `mapstructure:"stp_policy"`
}

// JournalSettings configures durability.
type JournalSettings struct {
	Path     string `mapstructure:"path"`
	SyncMode string `mapstructure:"sync_mode"`
}

// SnapshotSettings configures periodic book snapshotting.
type SnapshotSettings struct {
	Frequency      time.Duration `mapstructure:"frequency"`
	EventThreshold int           `mapstructure:"event_threshold"`
}

// RouterSettings configures per-pair admission shaping.
type RouterSettings struct {
	QueueDepth        int     `mapstructure:"queue_depth"`
	CommandsPerSecond float64 `mapstructure:"commands_per_second"`
}

// Config is the engine's full, typed configuration.
type Config struct {
	EngineVersion string           `mapstructure:"engine_version"`
	Pairs         []PairSettings   `mapstructure:"pairs"`
	Journal       JournalSettings  `mapstructure:"journal"`
	Snapshot      SnapshotSettings `mapstructure:"snapshot"`
	Router        RouterSettings   `mapstructure:"router"`
	NATSUrl       string           `mapstructure:"nats_url"`
	PostgresDSN   string           `mapstructure:"postgres_dsn"`
	MetricsAddr   string           `mapstructure:"metrics_addr"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("engine_version", "1.0.0")
	v.SetDefault("journal.path", "./data/journal.db")
	v.SetDefault("journal.sync_mode", "strict")
	v.SetDefault("snapshot.frequency", 5*time.Minute)
	v.SetDefault("snapshot.event_threshold", 10000)
	v.SetDefault("router.queue_depth", 4096)
	v.SetDefault("router.commands_per_second", 5000.0)
	v.SetDefault("metrics_addr", ":9090")
}

// Loader wraps a viper instance so callers can both read the current
// config and register a hot-reload callback.
type Loader struct {
	v *viper.Viper
}

// NewLoader reads path (and ENGINE_-prefixed environment overrides) into
// a Loader.
func NewLoader(path string) (*Loader, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ENGINE")
	v.AutomaticEnv()
	defaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return &Loader{v: v}, nil
}

// Current decodes the presently loaded configuration.
func (l *Loader) Current() (Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// WatchChanges invokes onChange with the freshly decoded configuration
// every time the underlying file changes on disk, via viper's fsnotify
// integration. Decode errors are swallowed with onChange never called for
// that revision, so a momentarily malformed file (mid-write) does not
// tear down a running pair.
func (l *Loader) WatchChanges(onChange func(Config)) {
	l.v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := l.Current()
		if err != nil {
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
}
