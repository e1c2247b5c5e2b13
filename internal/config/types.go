// Package config provides configuration loading and management for anchors.
//
// Configuration is loaded using Viper, supporting YAML config files and environment
// variable overrides. The defaults reproduce the conventional repository layout
// (templates expanded into .github/workflows), so most projects need no config file.
//
// Key types:
//   - [Config] is the root configuration container with all settings
//   - [Loader] handles Viper-based configuration loading
//   - [IncludesConfig] controls how $include markers are interpreted
//   - [OutputConfig] controls terminal output
//
// Configuration priority (highest to lowest):
//  1. Command-line flags (applied by the cli package)
//  2. Environment variables (ANCHORS_ prefix, e.g. ANCHORS_OUTPUT_DIR)
//  3. Config file specified by ANCHORS_CONFIG_PATH
//  4. ./.anchors.yaml
//  5. [DefaultConfig] defaults
package config

import (
	"errors"
	"fmt"

	"anchors/internal/document"
	"anchors/internal/expand"
	"anchors/internal/outdir"
)

// Config represents the root configuration structure.
//
// This is the main configuration container loaded by [Loader] and used throughout
// the application. Use [DefaultConfig] to get sensible defaults.
type Config struct {
	// OutputDir is the directory that receives expanded workflows.
	// It must already exist when anchors runs.
	// Default: ".github/workflows"
	OutputDir string `mapstructure:"output_dir"`

	// Extension is the file extension of template, block and output files,
	// without the leading dot.
	// Default: "yaml"
	Extension string `mapstructure:"extension"`

	// BlocksDir is the templates subdirectory holding block fragments.
	// Default: "blocks"
	BlocksDir string `mapstructure:"blocks_dir"`

	// Includes controls $include interpretation.
	Includes IncludesConfig `mapstructure:"includes"`

	// Output contains terminal output configuration.
	Output OutputConfig `mapstructure:"output"`
}

// IncludesConfig controls how include markers are interpreted.
type IncludesConfig struct {
	// Strict rejects mappings that use the $include key alongside other keys
	// or with a non-string value. When false such mappings are copied as
	// ordinary mappings.
	// Default: true
	Strict bool `mapstructure:"strict"`

	// Nested selects what happens to markers inside blocks:
	// "reject" fails the run, "expand" resolves them recursively.
	// Default: "reject"
	Nested string `mapstructure:"nested"`
}

// OutputConfig contains terminal output configuration.
type OutputConfig struct {
	// Color enables styled output. Styling is also dropped automatically
	// when stdout is not a terminal.
	// Default: true
	Color bool `mapstructure:"color"`

	// Verbose enables debug logging on stderr.
	// Default: false
	Verbose bool `mapstructure:"verbose"`
}

// DefaultConfig returns a new [Config] with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		OutputDir: outdir.DefaultPath,
		Extension: document.DefaultExtension,
		BlocksDir: document.DefaultBlocksDir,
		Includes: IncludesConfig{
			Strict: true,
			Nested: string(expand.NestedReject),
		},
		Output: OutputConfig{
			Color: true,
		},
	}
}

// Validate reports configuration values anchors cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir must not be empty"))
	}
	if c.Extension == "" {
		errs = append(errs, errors.New("extension must not be empty"))
	}
	if c.BlocksDir == "" {
		errs = append(errs, errors.New("blocks_dir must not be empty"))
	}
	if _, err := expand.ParseNestedMode(c.Includes.Nested); err != nil {
		errs = append(errs, fmt.Errorf("includes.nested: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// ExpandOptions returns the [expand.Option] values selected by c.
// Call [Config.Validate] first; an invalid nested mode falls back to
// [expand.NestedReject].
func (c *Config) ExpandOptions() []expand.Option {
	mode, err := expand.ParseNestedMode(c.Includes.Nested)
	if err != nil {
		mode = expand.NestedReject
	}
	return []expand.Option{
		expand.WithStrict(c.Includes.Strict),
		expand.WithNested(mode),
	}
}
