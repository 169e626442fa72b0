package config

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FlagInst is a function that creates a flag and returns a pointer to the value
type FlagInst[V any] func(name string, value V, usage string) *V

// FlagInstShort is a function that creates a flag and returns a pointer to the value
type FlagInstShort[V any] func(name, shorthand string, value V, usage string) *V

// BindConfigFlag defines a flag and binds it to a viper path. defaultValue
// also becomes the viper default for the path.
func BindConfigFlag[V any](
	v *viper.Viper,
	flags *pflag.FlagSet,
	viperPath string,
	cmdLineArg string,
	defaultValue V,
	help string,
	binder FlagInst[V],
) error {
	binder(cmdLineArg, defaultValue, help)
	return doViperBind(v, flags, viperPath, cmdLineArg, defaultValue)
}

// BindConfigFlagWithShort is BindConfigFlag for flags with a shorthand.
func BindConfigFlagWithShort[V any](
	v *viper.Viper,
	flags *pflag.FlagSet,
	viperPath string,
	cmdLineArg string,
	short string,
	defaultValue V,
	help string,
	binder FlagInstShort[V],
) error {
	binder(cmdLineArg, short, defaultValue, help)
	return doViperBind(v, flags, viperPath, cmdLineArg, defaultValue)
}

func doViperBind[V any](
	v *viper.Viper,
	flags *pflag.FlagSet,
	viperPath string,
	cmdLineArg string,
	defaultValue V,
) error {
	v.SetDefault(viperPath, defaultValue)
	if err := v.BindPFlag(viperPath, flags.Lookup(cmdLineArg)); err != nil {
		return fmt.Errorf("failed to bind flag %s to viper path %s: %w", cmdLineArg, viperPath, err)
	}

	return nil
}

// RegisterFlags defines the command line flags of a detect run. The flag
// defaults mirror the struct defaults so --help shows the effective values.
func RegisterFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	defaults := Defaults()
	d := defaults.Detect
	return errors.Join(
		BindConfigFlagWithShort(v, flags, "detect.search.depth", "depth", "d",
			d.Search.Depth, "Directory depth to search below each source path", flags.IntP),
		BindConfigFlag(v, flags, "detect.search.exclusions", "exclude",
			d.Search.Exclusions, "Directory names that are never searched", flags.StringSlice),
		BindConfigFlag(v, flags, "detect.search.continue", "continue",
			d.Search.Continue, "Keep searching below directories that already matched", flags.Bool),
		BindConfigFlagWithShort(v, flags, "detect.output.directory", "output", "o",
			d.Output.Directory, "Directory the documents are written to", flags.StringP),
		BindConfigFlagWithShort(v, flags, "detect.output.format", "format", "f",
			d.Output.Format, "Document format: json, cyclonedx, spdx", flags.StringP),
		BindConfigFlag(v, flags, "detect.output.aggregate_name", "aggregate",
			d.Output.AggregateName, "Write a single document with this name", flags.String),
		BindConfigFlag(v, flags, "detect.output.summary", "summary",
			d.Output.Summary, "Summary format: terminal, json", flags.String),
		BindConfigFlag(v, flags, "detect.project.name", "project-name",
			d.Project.Name, "Project name", flags.String),
		BindConfigFlag(v, flags, "detect.project.version", "project-version",
			d.Project.Version, "Project version", flags.String),
		BindConfigFlag(v, flags, "detect.signature.snippet_mode", "snippet-mode",
			d.Signature.SnippetMode, "Request a snippet signature scan", flags.Bool),
		BindConfigFlag(v, flags, "detect.timeout", "timeout",
			d.Timeout, "Timeout in seconds for each external tool", flags.Int),
		BindConfigFlag(v, flags, "detect.extraction_timeout", "extraction-timeout",
			d.ExtractionTimeout, "Timeout in seconds for one extraction, across all of its tools", flags.Int),
		BindConfigFlagWithShort(v, flags, "detect.parallelism", "parallel", "p",
			d.Parallelism, "Number of extractions run at once", flags.IntP),
		BindConfigFlag(v, flags, "detect.cache.disabled", "no-cache",
			d.Cache.Disabled, "Do not reuse cached tool output", flags.Bool),
		BindConfigFlag(v, flags, "detect.cache.clear", "clear-cache",
			d.Cache.Clear, "Remove cached tool output before running", flags.Bool),
		BindConfigFlag(v, flags, "detect.scalibr.enabled", "scalibr",
			d.Scalibr.Enabled, "Also inventory the source path with osv-scalibr", flags.Bool),
		BindConfigFlag(v, flags, "logging.level", "log-level",
			defaults.Logging.Level, "Log level: debug, info, warn, error", flags.String),
	)
}
