package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "ANCHORS"

// ConfigPathEnv names the environment variable pointing at a config file.
const ConfigPathEnv = "ANCHORS_CONFIG_PATH"

// DefaultConfigFile is the config file looked up in the working directory.
const DefaultConfigFile = ".anchors.yaml"

// Loader handles Viper-based configuration loading.
//
// Create instances with [NewLoader]. Each Loader owns its own Viper instance,
// so loaders never share state through the Viper globals.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new [Loader] with defaults and environment bindings
// registered.
func NewLoader() *Loader {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("output_dir", cfg.OutputDir)
	v.SetDefault("extension", cfg.Extension)
	v.SetDefault("blocks_dir", cfg.BlocksDir)
	v.SetDefault("includes.strict", cfg.Includes.Strict)
	v.SetDefault("includes.nested", cfg.Includes.Nested)
	v.SetDefault("output.color", cfg.Output.Color)
	v.SetDefault("output.verbose", cfg.Output.Verbose)
}

// Load loads configuration from the file named by ANCHORS_CONFIG_PATH, or
// from ./.anchors.yaml when present, applying environment overrides. Without
// a config file the defaults are returned with environment overrides applied.
func (l *Loader) Load() (*Config, error) {
	if path := os.Getenv(ConfigPathEnv); path != "" {
		return l.LoadFromFile(path)
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return l.LoadFromFile(DefaultConfigFile)
	}
	return l.unmarshal()
}

// LoadFromFile loads configuration from the given YAML file. Environment
// overrides still take precedence over values from the file.
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.v.SetConfigFile(path)
	l.v.SetConfigType("yaml")
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return l.unmarshal()
}

// ConfigFileUsed returns the config file read by the last load, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad loads configuration and panics on error.
func MustLoad() *Config {
	cfg, err := NewLoader().Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// loggerKey is used to store the logger in a context.
type loggerKey struct{}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger stored by [WithLogger].
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return slog.New(slog.DiscardHandler)
}

// NewLogger builds the stderr text logger used by the CLI.
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
