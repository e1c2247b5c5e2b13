package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"anchors/internal/document"
	"anchors/internal/expand"
)

func parseBlocks(t *testing.T, srcs map[string]string) map[string]*yaml.Node {
	t.Helper()
	out := make(map[string]*yaml.Node, len(srcs))
	for name, src := range srcs {
		node, err := document.Parse([]byte(src))
		require.NoError(t, err)
		out[name] = node
	}
	return out
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ".github/workflows", cfg.OutputDir)
	assert.Equal(t, "yaml", cfg.Extension)
	assert.Equal(t, "blocks", cfg.BlocksDir)
	assert.True(t, cfg.Includes.Strict)
	assert.Equal(t, "reject", cfg.Includes.Nested)
	assert.True(t, cfg.Output.Color)
	assert.False(t, cfg.Output.Verbose)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(cfg *Config)
		wantContains string
	}{
		{
			name:         "empty output dir",
			mutate:       func(cfg *Config) { cfg.OutputDir = "" },
			wantContains: "output_dir must not be empty",
		},
		{
			name:         "empty extension",
			mutate:       func(cfg *Config) { cfg.Extension = "" },
			wantContains: "extension must not be empty",
		},
		{
			name:         "empty blocks dir",
			mutate:       func(cfg *Config) { cfg.BlocksDir = "" },
			wantContains: "blocks_dir must not be empty",
		},
		{
			name:         "unknown nested mode",
			mutate:       func(cfg *Config) { cfg.Includes.Nested = "deep" },
			wantContains: "includes.nested",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantContains)
		})
	}
}

func TestConfig_ExpandOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Includes.Nested = "expand"
	blocks := map[string]string{
		"outer": "{$include: inner}",
		"inner": "ok",
	}

	e := expand.New(parseBlocks(t, blocks), cfg.ExpandOptions()...)
	out, err := e.Expand(parseBlocks(t, map[string]string{"doc": "$include: outer"})["doc"])

	require.NoError(t, err)
	assert.Equal(t, "ok", out.Value)
}

func TestLoader_LoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
output_dir: ci/workflows
blocks_dir: fragments
includes:
  strict: false
  nested: expand
output:
  color: false
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	loader := NewLoader()
	cfg, err := loader.LoadFromFile(configPath)

	require.NoError(t, err)
	assert.Equal(t, "ci/workflows", cfg.OutputDir)
	assert.Equal(t, "fragments", cfg.BlocksDir)
	assert.Equal(t, "yaml", cfg.Extension, "unset keys keep their defaults")
	assert.False(t, cfg.Includes.Strict)
	assert.Equal(t, "expand", cfg.Includes.Nested)
	assert.False(t, cfg.Output.Color)
	assert.Equal(t, configPath, loader.ConfigFileUsed())
}

func TestLoader_LoadFromFile_NonExistent(t *testing.T) {
	loader := NewLoader()
	_, err := loader.LoadFromFile("/nonexistent/path/config.yaml")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoader_LoadFromFile_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	err := os.WriteFile(configPath, []byte("output_dir: [unclosed\n"), 0644)
	require.NoError(t, err)

	loader := NewLoader()
	_, err = loader.LoadFromFile(configPath)

	assert.Error(t, err)
}

func TestLoader_LoadFromFile_InvalidValue(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")

	err := os.WriteFile(configPath, []byte("includes:\n  nested: sideways\n"), 0644)
	require.NoError(t, err)

	_, err = NewLoader().LoadFromFile(configPath)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoader_Load_DefaultsWithNoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(ConfigPathEnv, "")

	cfg, err := NewLoader().Load()

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_Load_WithEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(ConfigPathEnv, "")
	t.Setenv("ANCHORS_OUTPUT_DIR", "/env/workflows")
	t.Setenv("ANCHORS_INCLUDES_STRICT", "false")

	cfg, err := NewLoader().Load()

	require.NoError(t, err)
	assert.Equal(t, "/env/workflows", cfg.OutputDir)
	assert.False(t, cfg.Includes.Strict)
}

func TestLoader_Load_WithConfigPathEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "custom.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("extension: yml\n"), 0644))
	t.Setenv(ConfigPathEnv, configPath)

	cfg, err := NewLoader().Load()

	require.NoError(t, err)
	assert.Equal(t, "yml", cfg.Extension)
}

func TestLoader_Load_DefaultConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)
	t.Setenv(ConfigPathEnv, "")
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, DefaultConfigFile), []byte("output_dir: out\n"), 0644))

	cfg, err := NewLoader().Load()

	require.NoError(t, err)
	assert.Equal(t, "out", cfg.OutputDir)
}

func TestLoader_Load_EnvOverridesTakePrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("output_dir: from-file\n"), 0644))
	t.Setenv(ConfigPathEnv, configPath)
	t.Setenv("ANCHORS_OUTPUT_DIR", "from-env")

	cfg, err := NewLoader().Load()

	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.OutputDir)
}

func TestMustLoad_Success(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(ConfigPathEnv, "")

	cfg := MustLoad()

	assert.NotNil(t, cfg)
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()), "missing logger falls back to discard")

	logger := NewLogger(true)
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, GetLogger(ctx))
}
