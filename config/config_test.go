package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nfstraffic/probe"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Mode)
	assert.Equal(t, time.Second, cfg.Interval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, probe.DefaultTableCapacity, cfg.Probe.TableCapacity)
	assert.Equal(t, probe.DefaultChannelBytes, cfg.Probe.ChannelBytes)
	assert.True(t, cfg.Probe.ParentNames)
	assert.Equal(t, probe.DefaultConfig(), cfg.Probe.Probe())
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nfstraffic.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: simple
interval: 250ms
logging:
  level: DEBUG
probe:
  table_capacity: 128
  recent_events: 64
sim:
  workers: 2
`), 0o600))

	t.Setenv("NFSTRAFFIC_SIM_RATE", "10")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--workers=8", "--metrics-addr=:2112"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, ModeSimple, cfg.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.Interval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 128, cfg.Probe.TableCapacity)
	assert.Equal(t, 64, cfg.Probe.RecentEvents)
	assert.Equal(t, 8, cfg.Sim.Workers, "flag beats file")
	assert.Equal(t, 10.0, cfg.Sim.Rate, "env beats default")
	assert.Equal(t, ":2112", cfg.Metrics.Addr)
	assert.Equal(t, 50, cfg.TopFiles, "unset flag keeps default")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("", nil)
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "gui" }},
		{"zero interval", func(c *Config) { c.Interval = 0 }},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }},
		{"zero table", func(c *Config) { c.Probe.TableCapacity = 0 }},
		{"tiny channel", func(c *Config) { c.Probe.ChannelBytes = probe.EventSize - 1 }},
		{"orphans above one", func(c *Config) { c.Sim.Orphans = 1.5 }},
		{"no workers", func(c *Config) { c.Sim.Workers = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}

	assert.NoError(t, Validate(base()))
}
