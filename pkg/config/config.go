// Package config loads the shrinker configuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	apperrors "github.com/class-shrinker/pkg/errors"
	"github.com/class-shrinker/pkg/model"
)

// EnvPrefix prefixes environment overrides, e.g. SHRINKER_STATE_BACKEND.
const EnvPrefix = "SHRINKER"

// Config holds all configuration for the application.
type Config struct {
	Shrinker  ShrinkerConfig  `mapstructure:"shrinker"`
	Inputs    InputsConfig    `mapstructure:"inputs"`
	State     StateConfig     `mapstructure:"state"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ShrinkerConfig holds the settings of a run.
type ShrinkerConfig struct {
	MaxWorkers int `mapstructure:"max_workers"`
	// SkipSDKPackages drops references into platform packages at ingestion.
	SkipSDKPackages bool     `mapstructure:"skip_sdk_packages"`
	SDKPrefixes     []string `mapstructure:"sdk_prefixes"`
	// BytecodeVersion overrides the class file version of written classes,
	// e.g. "1.8" or "52".
	BytecodeVersion    string   `mapstructure:"bytecode_version"`
	Rules              string   `mapstructure:"rules"`
	MultidexRules      string   `mapstructure:"multidex_rules"`
	PlatformJars       []string `mapstructure:"platform_jars"`
	OutputDir          string   `mapstructure:"output_dir"`
	ReportFile         string   `mapstructure:"report_file"`
	Incremental        bool     `mapstructure:"incremental"`
	HierarchyCacheSize int      `mapstructure:"hierarchy_cache_size"`
}

// InputsConfig lists the program and library contents.
type InputsConfig struct {
	Program   []ContentConfig `mapstructure:"program"`
	Libraries []ContentConfig `mapstructure:"libraries"`
}

// ContentConfig describes one jar or class directory. Format is "jar" or
// "directory"; when empty it is derived from the path extension.
type ContentConfig struct {
	Name         string        `mapstructure:"name"`
	Path         string        `mapstructure:"path"`
	Format       string        `mapstructure:"format"`
	Status       string        `mapstructure:"status"`
	ChangedFiles []ChangedFile `mapstructure:"changed_files"`
	Scopes       []string      `mapstructure:"scopes"`
	Types        []string      `mapstructure:"types"`
}

// ChangedFile is one file of a directory input changed since the last
// run. Path is relative to the directory. Changed files are a list, not a
// map: viper lowercases map keys, and class paths are case sensitive.
type ChangedFile struct {
	Path   string `mapstructure:"path"`
	Status string `mapstructure:"status"`
}

// StateConfig selects where the graph is persisted between runs.
type StateConfig struct {
	Backend     string `mapstructure:"backend"` // file, sqlite, postgres or mysql
	Path        string `mapstructure:"path"`
	DSN         string `mapstructure:"dsn"`
	Compression string `mapstructure:"compression"` // zstd, gzip or none
	MaxConns    int    `mapstructure:"max_conns"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// TelemetryConfig enables tracing. Exporter settings come from OTEL_* env.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads configuration from configPath, or from shrinker.yaml in the
// working directory when configPath is empty. A missing file means defaults.
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("shrinker")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to read config file", err)
		}
	}

	return unmarshal(v)
}

// LoadFromReader loads configuration from content (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to read config", err)
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to unmarshal config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("shrinker.max_workers", 0)
	v.SetDefault("shrinker.skip_sdk_packages", true)
	v.SetDefault("shrinker.output_dir", "./build/shrinker")
	v.SetDefault("shrinker.incremental", false)
	v.SetDefault("shrinker.hierarchy_cache_size", 4096)

	v.SetDefault("state.backend", "file")
	v.SetDefault("state.path", "./build/shrinker-state")
	v.SetDefault("state.compression", "zstd")
	v.SetDefault("state.max_conns", 4)

	v.SetDefault("log.level", "info")
	v.SetDefault("telemetry.enabled", false)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return apperrors.New(apperrors.CodeConfigError, "config validation failed: "+fmt.Sprintf(format, args...))
	}

	if c.Shrinker.MaxWorkers < 0 {
		return invalid("max_workers must not be negative")
	}
	if c.Shrinker.OutputDir == "" {
		return invalid("output_dir is required")
	}

	switch c.State.Backend {
	case "file", "sqlite":
		if c.State.Path == "" {
			return invalid("state path is required for the %s backend", c.State.Backend)
		}
	case "postgres", "mysql":
		if c.State.DSN == "" {
			return invalid("state dsn is required for the %s backend", c.State.Backend)
		}
	default:
		return invalid("unsupported state backend: %s", c.State.Backend)
	}
	switch c.State.Compression {
	case "zstd", "gzip", "none":
	default:
		return invalid("unsupported state compression: %s", c.State.Compression)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("unsupported log level: %s", c.Log.Level)
	}

	for _, group := range [][]ContentConfig{c.Inputs.Program, c.Inputs.Libraries} {
		for _, content := range group {
			if content.Path == "" {
				return invalid("input %q has no path", content.Name)
			}
			switch content.Format {
			case "", "jar", "directory":
			default:
				return invalid("input %q has unsupported format %q", content.Name, content.Format)
			}
			for _, f := range content.ChangedFiles {
				if f.Path == "" {
					return invalid("input %q has a changed file without path", content.Name)
				}
			}
		}
	}
	return nil
}

// IsJar reports whether the content is a jar.
func (c ContentConfig) IsJar() bool {
	if c.Format != "" {
		return c.Format == "jar"
	}
	ext := strings.ToLower(filepath.Ext(c.Path))
	return ext == ".jar" || ext == ".zip"
}

// ContentName returns Name, or the base name of Path without extension.
func (c ContentConfig) ContentName() string {
	if c.Name != "" {
		return c.Name
	}
	base := filepath.Base(c.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// TransformInput converts contents into one transform input.
func TransformInput(contents []ContentConfig) model.TransformInput {
	var in model.TransformInput
	for _, c := range contents {
		qc := model.QualifiedContent{
			Name: c.ContentName(),
			Path: c.Path,
		}
		for _, s := range c.Scopes {
			qc.Scopes = append(qc.Scopes, model.ParseScope(s))
		}
		for _, t := range c.Types {
			if strings.EqualFold(t, model.ContentResources.String()) {
				qc.ContentTypes = append(qc.ContentTypes, model.ContentResources)
			} else {
				qc.ContentTypes = append(qc.ContentTypes, model.ContentClasses)
			}
		}

		if c.IsJar() {
			in.Jars = append(in.Jars, model.JarInput{QualifiedContent: qc, Status: model.ParseStatus(c.Status)})
			continue
		}
		dir := model.DirectoryInput{QualifiedContent: qc, Status: model.ParseStatus(c.Status)}
		if len(c.ChangedFiles) > 0 {
			dir.ChangedFiles = make(map[string]model.Status, len(c.ChangedFiles))
			for _, f := range c.ChangedFiles {
				dir.ChangedFiles[filepath.ToSlash(f.Path)] = model.ParseStatus(f.Status)
			}
		}
		in.Directories = append(in.Directories, dir)
	}
	return in
}
