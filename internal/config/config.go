// Package config contains the configuration of a detect run. Values come
// from defaults, an optional YAML file, DEPDETECT_* environment variables
// and command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/viper"

	"github.com/ethanolivertroy/depdetect/internal/project"
	"github.com/ethanolivertroy/depdetect/internal/reporter"
)

// EnvPrefix is the prefix of the environment variables read by viper.
const EnvPrefix = "depdetect"

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config is the top-level configuration structure.
type Config struct {
	Detect  DetectConfig  `mapstructure:"detect"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// DetectConfig holds the settings of the detection pipeline.
type DetectConfig struct {
	SourcePath        string          `mapstructure:"source_path" default:"."`
	Search            SearchConfig    `mapstructure:"search"`
	Output            OutputConfig    `mapstructure:"output"`
	Project           ProjectConfig   `mapstructure:"project"`
	Signature         SignatureConfig `mapstructure:"signature"`
	Timeout           int             `mapstructure:"timeout" default:"120"`
	// ExtractionTimeout bounds a whole extraction, which may run several
	// processes of Timeout each.
	ExtractionTimeout int             `mapstructure:"extraction_timeout" default:"600"`
	Parallelism       int             `mapstructure:"parallelism" default:"4"`
	Cache             CacheConfig     `mapstructure:"cache"`
	Tools             ToolsConfig     `mapstructure:"tools"`
	Npm               NpmConfig       `mapstructure:"npm"`
	Scalibr           ScalibrConfig   `mapstructure:"scalibr"`
}

// TimeoutDuration is the timeout of a single external process.
func (c DetectConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// ExtractionTimeoutDuration is the timeout of one extraction.
func (c DetectConfig) ExtractionTimeoutDuration() time.Duration {
	return time.Duration(c.ExtractionTimeout) * time.Second
}

// SearchConfig controls the directory walk.
type SearchConfig struct {
	Depth      int      `mapstructure:"depth" default:"0"`
	Exclusions []string `mapstructure:"exclusions" default:"bin,build,.git,.gradle,node_modules,out,packages,target"`
	// Continue keeps searching below directories that already matched.
	Continue bool `mapstructure:"continue" default:"false"`
}

// OutputConfig controls where and how documents are written.
type OutputConfig struct {
	Directory     string `mapstructure:"directory" default:"./depdetect-output"`
	Format        string `mapstructure:"format" default:"json"`
	AggregateName string `mapstructure:"aggregate_name" default:""`
	Summary       string `mapstructure:"summary" default:"terminal"`
}

// ProjectConfig controls project and code location naming.
type ProjectConfig struct {
	Name               string `mapstructure:"name" default:""`
	Version            string `mapstructure:"version" default:""`
	CodeLocationPrefix string `mapstructure:"codelocation_prefix" default:""`
	CodeLocationSuffix string `mapstructure:"codelocation_suffix" default:""`
	VersionScheme      string `mapstructure:"version_scheme" default:"text"`
	VersionText        string `mapstructure:"version_text" default:"Default Detect Version"`
	VersionTimeFormat  string `mapstructure:"version_timeformat" default:"2006-01-02T15:04:05.000"`
}

// SignatureConfig controls the signature scan fallback.
type SignatureConfig struct {
	SnippetMode bool `mapstructure:"snippet_mode" default:"false"`
}

// CacheConfig controls the tool output cache.
type CacheConfig struct {
	Disabled bool `mapstructure:"disabled" default:"false"`
	// Clear empties the cache before the run.
	Clear    bool `mapstructure:"clear" default:"false"`
	TTLHours int  `mapstructure:"ttl_hours" default:"24"`
}

// TTL is the lifetime of cache entries.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// ToolsConfig overrides executable locations.
type ToolsConfig struct {
	GoPath string `mapstructure:"go_path" default:""`
}

// NpmConfig controls the npm and pnpm extractors.
type NpmConfig struct {
	IncludeDev bool `mapstructure:"include_dev" default:"true"`
}

// ScalibrConfig controls the osv-scalibr strategy.
type ScalibrConfig struct {
	Enabled bool `mapstructure:"enabled" default:"false"`
}

// LoggingConfig is the configuration for the logger package
type LoggingConfig struct {
	Level  string `mapstructure:"level" default:"info"`
	Format string `mapstructure:"format" default:"json"`
}

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks the values that cannot be corrected later.
func (c *Config) Validate() error {
	d := c.Detect
	var errs []error
	if d.Search.Depth < 0 {
		errs = append(errs, fmt.Errorf("detect.search.depth must not be negative, got %d", d.Search.Depth))
	}
	if d.Parallelism <= 0 {
		errs = append(errs, fmt.Errorf("detect.parallelism must be positive, got %d", d.Parallelism))
	}
	if d.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("detect.timeout must be positive, got %d", d.Timeout))
	}
	if d.ExtractionTimeout < d.Timeout {
		errs = append(errs, fmt.Errorf("detect.extraction_timeout (%d) must not be below detect.timeout (%d)",
			d.ExtractionTimeout, d.Timeout))
	}
	if !slices.Contains(reporter.Formats, d.Output.Format) {
		errs = append(errs, fmt.Errorf("unknown detect.output.format %q", d.Output.Format))
	}
	if _, err := reporter.GetSummaryReporter(d.Output.Summary); err != nil {
		errs = append(errs, fmt.Errorf("unknown detect.output.summary %q", d.Output.Summary))
	}
	switch project.VersionScheme(d.Project.VersionScheme) {
	case project.VersionSchemeText, project.VersionSchemeTimestamp:
	default:
		errs = append(errs, fmt.Errorf("unknown detect.project.version_scheme %q", d.Project.VersionScheme))
	}
	if strings.TrimSpace(d.Project.VersionText) == "" {
		errs = append(errs, errors.New("detect.project.version_text must not be empty"))
	}
	if c.Logging.Format != LogFormatJSON && c.Logging.Format != LogFormatText {
		errs = append(errs, fmt.Errorf("unknown logging.format %q", c.Logging.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Defaults returns a configuration with all the struct defaults set, but no
// other changes.
func Defaults() *Config {
	v := viper.New()
	SetViperDefaults(v)
	c, err := ReadConfigFromViper(v)
	if err != nil {
		panic(fmt.Sprintf("Failed to read default config: %v", err))
	}
	return c
}

// ReadConfigFromViper reads the configuration from the given Viper instance.
func ReadConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetViperDefaults sets the default values for the configuration to be picked
// up by viper
func SetViperDefaults(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setViperStructDefaults(v, "", Config{})
}

// setViperStructDefaults recursively sets the viper default values for the
// given struct. Every leaf also gets an environment binding, otherwise
// viper ignores env overrides during Unmarshal.
func setViperStructDefaults(v *viper.Viper, prefix string, s any) {
	structType := reflect.TypeOf(s)

	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if unicode.IsLower([]rune(field.Name)[0]) {
			continue
		}
		if field.Tag.Get("mapstructure") == "" {
			panic(fmt.Sprintf("Untagged config struct field %q", field.Name))
		}
		valueName := strings.ToLower(prefix + field.Tag.Get("mapstructure"))

		if field.Type.Kind() == reflect.Struct {
			setViperStructDefaults(v, valueName+".", reflect.Zero(field.Type).Interface())
			continue
		}

		value := field.Tag.Get("default")
		defaultValue := reflect.Zero(field.Type).Interface()
		var err error
		fieldType := field.Type.Kind()
		//nolint:exhaustive
		switch fieldType {
		case reflect.String:
			defaultValue = value
		case reflect.Int64, reflect.Int32, reflect.Int16, reflect.Int8, reflect.Int:
			defaultValue, err = strconv.Atoi(value)
		case reflect.Bool:
			defaultValue, err = strconv.ParseBool(value)
		case reflect.Slice:
			if field.Type.Elem().Kind() != reflect.String {
				err = fmt.Errorf("unhandled slice of %s", field.Type.Elem().Kind())
				break
			}
			list := []string{}
			if value != "" {
				list = strings.Split(value, ",")
			}
			defaultValue = list
		default:
			err = fmt.Errorf("unhandled type %s", fieldType)
		}
		if err != nil {
			panic(fmt.Sprintf("Bad value for field %q (%s): %q", valueName, fieldType, err))
		}

		if err := v.BindEnv(valueName); err != nil {
			panic(fmt.Sprintf("Failed to bind %q to env var: %v", valueName, err))
		}
		v.SetDefault(valueName, defaultValue)
	}
}
