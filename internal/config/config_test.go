package config_test

import (
	"bytes"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/ethanolivertroy/depdetect/internal/config"
)

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	require.NoError(t, cfg.Validate())

	require.Equal(t, ".", cfg.Detect.SourcePath)
	require.Equal(t, 0, cfg.Detect.Search.Depth)
	require.Equal(t, []string{"bin", "build", ".git", ".gradle", "node_modules", "out", "packages", "target"},
		cfg.Detect.Search.Exclusions)
	require.Equal(t, "./depdetect-output", cfg.Detect.Output.Directory)
	require.Equal(t, "json", cfg.Detect.Output.Format)
	require.Equal(t, "terminal", cfg.Detect.Output.Summary)
	require.Equal(t, "text", cfg.Detect.Project.VersionScheme)
	require.Equal(t, "Default Detect Version", cfg.Detect.Project.VersionText)
	require.Equal(t, 120, cfg.Detect.Timeout)
	require.Equal(t, 600, cfg.Detect.ExtractionTimeout)
	require.Equal(t, 4, cfg.Detect.Parallelism)
	require.Equal(t, 24, cfg.Detect.Cache.TTLHours)
	require.False(t, cfg.Detect.Cache.Clear)
	require.True(t, cfg.Detect.Npm.IncludeDev)
	require.False(t, cfg.Detect.Scalibr.Enabled)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
}

func TestReadValidConfig(t *testing.T) {
	t.Parallel()

	cfgstr := `---
detect:
  search:
    depth: 3
    exclusions: [vendor]
  output:
    format: cyclonedx
    aggregate_name: everything
  project:
    name: shop
    version_scheme: timestamp
logging:
  format: text
`
	v := viper.New()
	config.SetViperDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(cfgstr)))

	cfg, err := config.ReadConfigFromViper(v)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, 3, cfg.Detect.Search.Depth)
	require.Equal(t, []string{"vendor"}, cfg.Detect.Search.Exclusions)
	require.Equal(t, "cyclonedx", cfg.Detect.Output.Format)
	require.Equal(t, "everything", cfg.Detect.Output.AggregateName)
	require.Equal(t, "shop", cfg.Detect.Project.Name)
	require.Equal(t, "timestamp", cfg.Detect.Project.VersionScheme)
	require.Equal(t, "text", cfg.Logging.Format)
	// untouched keys keep their defaults
	require.Equal(t, 4, cfg.Detect.Parallelism)
}

func TestFlagsOverrideConfig(t *testing.T) {
	t.Parallel()

	v := viper.New()
	config.SetViperDefaults(v)
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, config.RegisterFlags(v, flags))

	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString("detect:\n  parallelism: 2\n")))
	require.NoError(t, flags.Parse([]string{"--parallel", "8", "--format", "spdx", "--no-cache", "--clear-cache"}))

	cfg, err := config.ReadConfigFromViper(v)
	require.NoError(t, err)
	require.Equal(t, 8, cfg.Detect.Parallelism)
	require.Equal(t, "spdx", cfg.Detect.Output.Format)
	require.True(t, cfg.Detect.Cache.Disabled)
	require.True(t, cfg.Detect.Cache.Clear)
	require.Equal(t, 120, cfg.Detect.Timeout)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{name: "negative depth", modify: func(c *config.Config) { c.Detect.Search.Depth = -1 }},
		{name: "zero parallelism", modify: func(c *config.Config) { c.Detect.Parallelism = 0 }},
		{name: "zero timeout", modify: func(c *config.Config) { c.Detect.Timeout = 0 }},
		{name: "extraction shorter than one tool", modify: func(c *config.Config) { c.Detect.ExtractionTimeout = 60 }},
		{name: "unknown format", modify: func(c *config.Config) { c.Detect.Output.Format = "xml" }},
		{name: "unknown summary", modify: func(c *config.Config) { c.Detect.Output.Summary = "html" }},
		{name: "unknown scheme", modify: func(c *config.Config) { c.Detect.Project.VersionScheme = "semver" }},
		{name: "blank version text", modify: func(c *config.Config) { c.Detect.Project.VersionText = "  " }},
		{name: "unknown log format", modify: func(c *config.Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Defaults()
			tt.modify(cfg)
			require.ErrorIs(t, cfg.Validate(), config.ErrInvalid)
		})
	}
}
