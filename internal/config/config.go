package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. AITREE_ZONE_WORKERS.
const EnvPrefix = "AITREE"

type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Zone   ZoneConfig   `mapstructure:"zone"`
	Trees  TreesConfig  `mapstructure:"trees"`
	Script ScriptConfig `mapstructure:"script"`
	Debug  DebugConfig  `mapstructure:"debug"`
	Demo   DemoConfig   `mapstructure:"demo"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ZoneConfig struct {
	Name    string `mapstructure:"name"`
	Workers int    `mapstructure:"workers"`
	TickMs  int    `mapstructure:"tick_ms"`
}

// Tick returns the zone tick interval.
func (z ZoneConfig) Tick() time.Duration {
	return time.Duration(z.TickMs) * time.Millisecond
}

type TreesConfig struct {
	Path string `mapstructure:"path"` // file or directory of .yaml/.json definitions
}

type ScriptConfig struct {
	PoolSize int           `mapstructure:"pool_size"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Dir      string        `mapstructure:"dir"`
}

type DebugConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	Addr           string  `mapstructure:"addr"`
	Token          string  `mapstructure:"token"`
	BroadcastHz    float64 `mapstructure:"broadcast_hz"`
	BroadcastBurst int     `mapstructure:"broadcast_burst"`
}

type DemoConfig struct {
	Characters int    `mapstructure:"characters"`
	Tree       string `mapstructure:"tree"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("zone.name", "default")
	v.SetDefault("zone.workers", 1)
	v.SetDefault("zone.tick_ms", 50)
	v.SetDefault("trees.path", "./trees")
	v.SetDefault("script.pool_size", 4)
	v.SetDefault("script.timeout", "50ms")
	v.SetDefault("script.dir", "")
	v.SetDefault("debug.enabled", true)
	v.SetDefault("debug.addr", "127.0.0.1:8090")
	v.SetDefault("debug.token", "")
	v.SetDefault("debug.broadcast_hz", 10)
	v.SetDefault("debug.broadcast_burst", 1)
	v.SetDefault("demo.characters", 8)
	v.SetDefault("demo.tree", "")
}

// Load reads the YAML file at path on top of the defaults. An empty path
// uses defaults and environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
