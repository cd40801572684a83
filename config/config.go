// config/config.go
// Package config loads nfstraffic settings from defaults, an optional
// YAML file, NFSTRAFFIC_* environment variables and command-line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"nfstraffic/probe"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Render modes.
const (
	ModeTUI    = "tui"
	ModeSimple = "simple"
)

// Config is the complete nfstraffic configuration.
type Config struct {
	// Mode selects the renderer; empty asks interactively
	Mode     string        `mapstructure:"mode" validate:"omitempty,oneof=tui simple"`
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
	TopFiles int           `mapstructure:"top_files" validate:"gte=0"`

	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Probe   ProbeConfig   `mapstructure:"probe"`
	Kernel  KernelConfig  `mapstructure:"kernel"`
	Sim     SimConfig     `mapstructure:"sim"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

type MetricsConfig struct {
	// Addr serves Prometheus metrics when set, e.g. ":2112"
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port|startswith=:"`
}

type ProbeConfig struct {
	TableCapacity int  `mapstructure:"table_capacity" validate:"gt=0"`
	ChannelBytes  int  `mapstructure:"channel_bytes"`
	RecentEvents  int  `mapstructure:"recent_events" validate:"gte=0"`
	// ParentNames applies to both the kernel program and the simulated probe
	ParentNames   bool `mapstructure:"parent_names"`
}

// Probe converts to the probe package's config.
func (p ProbeConfig) Probe() probe.Config {
	return probe.Config{
		TableCapacity: p.TableCapacity,
		ChannelBytes:  p.ChannelBytes,
		RecentEvents:  p.RecentEvents,
		ParentNames:   p.ParentNames,
	}
}

type KernelConfig struct {
	// Object is the compiled kernel program; empty searches next to the binary
	Object string `mapstructure:"object"`
}

type SimConfig struct {
	Workers int     `mapstructure:"workers" validate:"gt=0"`
	Rate    float64 `mapstructure:"rate" validate:"gt=0"`
	Seed    uint64  `mapstructure:"seed"`
	Files   int     `mapstructure:"files" validate:"gt=0"`
	Users   int     `mapstructure:"users" validate:"gt=0"`
	Clients int     `mapstructure:"clients" validate:"gt=0"`
	Orphans float64 `mapstructure:"orphans" validate:"gte=0,lte=1"`
}

var validate = validator.New()

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("mode", "")
	v.SetDefault("interval", time.Second)
	v.SetDefault("top_files", 50)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("probe.table_capacity", probe.DefaultTableCapacity)
	v.SetDefault("probe.channel_bytes", probe.DefaultChannelBytes)
	v.SetDefault("probe.recent_events", 0)
	v.SetDefault("probe.parent_names", true)
	v.SetDefault("kernel.object", "")
	v.SetDefault("sim.workers", 4)
	v.SetDefault("sim.rate", 2000.0)
	v.SetDefault("sim.seed", 1)
	v.SetDefault("sim.files", 40)
	v.SetDefault("sim.users", 4)
	v.SetDefault("sim.clients", 3)
	v.SetDefault("sim.orphans", 0.01)
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"mode":          "mode",
	"interval":      "interval",
	"top":           "top_files",
	"log-level":     "logging.level",
	"metrics-addr":  "metrics.addr",
	"object":        "kernel.object",
	"recent-events": "probe.recent_events",
	"workers":       "sim.workers",
	"rate":          "sim.rate",
	"seed":          "sim.seed",
}

// RegisterFlags adds the flags Load understands to fs. Their defaults
// match SetDefaults so an unset flag never masks the config file.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("mode", "", "renderer: tui or simple (asks when empty)")
	fs.Duration("interval", time.Second, "how often the aggregation table is read")
	fs.Int("top", 50, "files shown in the traffic table, 0 for all")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :2112")
	fs.String("object", "", "compiled kernel program (default: nfs_traffic.o next to the binary)")
	fs.Int("recent-events", 0, "suppress filename events repeated within this many recent ones, 0 to emit all")
	fs.Int("workers", 4, "simulate: concurrent hook invocations")
	fs.Float64("rate", 2000, "simulate: operations per second")
	fs.Uint64("seed", 1, "simulate: workload seed")
}

// Load reads configPath (optional) and flags into a validated Config.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("NFSTRAFFIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks struct tags and the rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if cfg.Probe.ChannelBytes < probe.EventSize {
		return fmt.Errorf("probe.channel_bytes: %d cannot hold one %d byte event", cfg.Probe.ChannelBytes, probe.EventSize)
	}
	return nil
}
