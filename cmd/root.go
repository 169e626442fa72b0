// Package cmd holds the depdetect command line.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ethanolivertroy/depdetect/internal/config"
	"github.com/ethanolivertroy/depdetect/internal/logger"
	"github.com/ethanolivertroy/depdetect/internal/project"
)

const defaultConfigFile = "depdetect.yaml"

// NewRootCmd builds the base command. The status of a run is stored in
// exitCode. Each call uses its own viper instance.
func NewRootCmd(exitCode *project.ExitCode) *cobra.Command {
	v := viper.New()
	config.SetViperDefaults(v)

	var configFile string

	cmd := &cobra.Command{
		Use:   "depdetect [paths...]",
		Short: "Detect package manager dependencies and write bill-of-materials documents",
		Long: `depdetect searches source trees for package manager files, extracts the
dependency graph of every project it finds and writes one bill-of-materials
document per code location.

It supports multiple ecosystems:
  - Go: go.mod (requires the go tool)
  - Node.js: package-lock.json, pnpm-lock.yaml
  - Python: requirements.txt, poetry.lock
  - Rust: Cargo.lock
  - Anything osv-scalibr understands (--scalibr)

Examples:
  # Scan current directory
  depdetect

  # Scan specific paths, three levels deep
  depdetect --depth 3 ./app ./services

  # Write one CycloneDX document for the whole project
  depdetect --format cyclonedx --aggregate everything

  # Print the summary as JSON
  depdetect --summary json`,
		SilenceUsage: true,
		Version:      Version,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadConfigFile(v, configFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.ReadConfigFromViper(v)
			if err != nil {
				return fmt.Errorf("failed to read configuration: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				*exitCode = project.ExitGeneralError
				return err
			}

			l := logger.FromConfig(cfg.Logging)
			ctx := l.WithContext(cmd.Context())

			*exitCode, err = Detect(ctx, cfg, args, cmd.OutOrStdout())
			return err
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default ./"+defaultConfigFile+")")
	if err := config.RegisterFlags(v, cmd.Flags()); err != nil {
		// Only a programming error in the flag table can get here.
		panic(err)
	}
	return cmd
}

// loadConfigFile reads .env files and the YAML configuration. A missing
// default config file is not an error; a missing explicit one is.
func loadConfigFile(v *viper.Viper, configFile string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	v.AutomaticEnv()

	explicit := configFile != ""
	if !explicit {
		configFile = defaultConfigFile
	}
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}
	return nil
}

// Execute runs the root command and exits with the status of the run.
func Execute() {
	code := project.ExitSuccess
	if err := NewRootCmd(&code).Execute(); err != nil && code == project.ExitSuccess {
		code = project.ExitGeneralError
	}
	os.Exit(int(code))
}
