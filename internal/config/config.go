// =============================================================================
// Laminar - Configuration Module
// =============================================================================
//
// This module defines the configuration structure for Laminar and loads it
// from a YAML file. Every limit and byte budget used by the pipeline lives
// here so that it is threaded explicitly into each stage instead of being
// read from package-level state.
//
// CONFIGURATION SOURCES (lowest to highest precedence):
//   1. Compiled-in defaults (Default)
//   2. The YAML file (Load)
//   3. LAMINAR_* environment variables and CLI flags (bound in cmd/ via viper)
//
// EXAMPLE (laminar.yaml):
//   network: mainnet
//   limits:
//     max_rows: 1000
//   budgets:
//     single_frame_bytes: 2510
//   output:
//     directory: ./out
//     write_png: true
//   archive:
//     enabled: true
//     database: ./laminar-receipts.db
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/laminar/internal/types"
)

// =============================================================================
// DEFAULT CONSTANTS
// =============================================================================

const (
	DefaultMaxFileSize   = 10_485_760
	DefaultMaxRows       = 1000
	DefaultMaxMemoBytes  = 512
	DefaultDustThreshold = 10_000

	DefaultSingleFrameBytes = 2510
	DefaultMultiFrameBytes  = 29_000
	DefaultDeeplinkBytes    = 7200
	DefaultFragmentBytes    = 150
	DefaultFrameIntervalMS  = 100

	DefaultPNGSize = 512
)

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config is the complete Laminar configuration.
type Config struct {
	// Network is the default target network when --network is not given.
	Network types.Network `yaml:"network"`

	Input   Input   `yaml:"input"`
	Limits  Limits  `yaml:"limits"`
	Budgets Budgets `yaml:"budgets"`
	Output  Output  `yaml:"output"`
	Archive Archive `yaml:"archive"`

	// StrictWarnings rejects batches that only produced warnings.
	StrictWarnings bool `yaml:"strict_warnings"`

	// LogLevel is a logrus level name (debug, info, warn, error). When empty
	// the level follows the output mode.
	LogLevel string `yaml:"log_level"`
}

// delimiterNames spell separators that are awkward to write in YAML or an
// environment variable.
var delimiterNames = map[string]rune{
	"tab":       '\t',
	`\t`:        '\t',
	"pipe":      '|',
	"semicolon": ';',
	"comma":     ',',
}

// Input controls how batch files are read.
type Input struct {
	// Delimiter is the CSV field separator: a single character or one of
	// the names tab, pipe, semicolon and comma.
	Delimiter string `yaml:"delimiter"`

	// Sheet is the XLSX worksheet to read; the first sheet when empty.
	Sheet string `yaml:"sheet"`
}

// Comma resolves Delimiter to the CSV field separator, ',' when unset.
func (in Input) Comma() (rune, error) {
	d := in.Delimiter
	if d == "" {
		return ',', nil
	}
	if r, ok := delimiterNames[strings.ToLower(d)]; ok {
		return r, nil
	}
	runes := []rune(d)
	if len(runes) != 1 || runes[0] == '"' || runes[0] == '\n' || runes[0] == '\r' || runes[0] == utf8.RuneError {
		return 0, fmt.Errorf("input.delimiter must be a single character other than a quote or newline, got %q", d)
	}
	return runes[0], nil
}

// Limits bound the cost of a single pipeline invocation.
type Limits struct {
	// MaxFileSize is the maximum accepted input size in bytes.
	MaxFileSize int `yaml:"max_file_size"`

	// MaxRows is the maximum number of data rows. Exceeding it aborts parsing.
	MaxRows int `yaml:"max_rows"`

	// MaxMemoBytes is the maximum memo length in UTF-8 bytes.
	MaxMemoBytes int `yaml:"max_memo_bytes"`

	// DustThreshold is the amount (zatoshi) below which a warning is raised.
	DustThreshold uint64 `yaml:"dust_threshold"`
}

// Budgets are the byte budgets of the scannable outputs.
type Budgets struct {
	SingleFrameBytes int `yaml:"single_frame_bytes"`
	MultiFrameBytes  int `yaml:"multi_frame_bytes"`
	DeeplinkBytes    int `yaml:"deeplink_bytes"`
	FragmentBytes    int `yaml:"fragment_bytes"`
	FrameIntervalMS  int `yaml:"frame_interval_ms"`
}

// Output controls the artifacts written by `laminar generate`.
type Output struct {
	// Directory receives receipts, payload files and frame images.
	Directory string `yaml:"directory"`

	// WritePNG renders each frame to a PNG file.
	WritePNG bool `yaml:"write_png"`

	// PNGSize is the edge length in pixels of rendered frames.
	PNGSize int `yaml:"png_size"`
}

// Archive configures the optional SQLite receipt archive.
type Archive struct {
	Enabled  bool   `yaml:"enabled"`
	Database string `yaml:"database"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the compiled-in configuration.
func Default() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

// DefaultLimits returns the compiled-in limits.
func DefaultLimits() Limits { return Default().Limits }

// DefaultBudgets returns the compiled-in budgets.
func DefaultBudgets() Budgets { return Default().Budgets }

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	if cfg.Network == "" {
		cfg.Network = types.Mainnet
	}

	if cfg.Limits.MaxFileSize == 0 {
		cfg.Limits.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Limits.MaxRows == 0 {
		cfg.Limits.MaxRows = DefaultMaxRows
	}
	if cfg.Limits.MaxMemoBytes == 0 {
		cfg.Limits.MaxMemoBytes = DefaultMaxMemoBytes
	}
	if cfg.Limits.DustThreshold == 0 {
		cfg.Limits.DustThreshold = DefaultDustThreshold
	}

	if cfg.Budgets.SingleFrameBytes == 0 {
		cfg.Budgets.SingleFrameBytes = DefaultSingleFrameBytes
	}
	if cfg.Budgets.MultiFrameBytes == 0 {
		cfg.Budgets.MultiFrameBytes = DefaultMultiFrameBytes
	}
	if cfg.Budgets.DeeplinkBytes == 0 {
		cfg.Budgets.DeeplinkBytes = DefaultDeeplinkBytes
	}
	if cfg.Budgets.FragmentBytes == 0 {
		cfg.Budgets.FragmentBytes = DefaultFragmentBytes
	}
	if cfg.Budgets.FrameIntervalMS == 0 {
		cfg.Budgets.FrameIntervalMS = DefaultFrameIntervalMS
	}

	if cfg.Output.Directory == "" {
		cfg.Output.Directory = "."
	}
	if cfg.Output.PNGSize == 0 {
		cfg.Output.PNGSize = DefaultPNGSize
	}
	if cfg.Archive.Database == "" {
		cfg.Archive.Database = "laminar-receipts.db"
	}
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads a YAML configuration file, applies defaults and validates it.
//
// RETURNS:
//   - The loaded configuration.
//   - An error if the file cannot be read, parsed or fails validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration bytes, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks internal consistency of the configuration.
func (c *Config) Validate() error {
	if c.Network != types.Mainnet && c.Network != types.Testnet {
		return fmt.Errorf("network must be mainnet or testnet, got %q", c.Network)
	}
	if c.Limits.MaxFileSize < 0 || c.Limits.MaxRows < 0 || c.Limits.MaxMemoBytes < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	b := c.Budgets
	if b.SingleFrameBytes < 0 || b.MultiFrameBytes < 0 || b.DeeplinkBytes < 0 || b.FragmentBytes < 0 || b.FrameIntervalMS < 0 {
		return fmt.Errorf("budgets must not be negative")
	}
	if b.SingleFrameBytes > b.MultiFrameBytes {
		return fmt.Errorf("single_frame_bytes (%d) exceeds multi_frame_bytes (%d)", b.SingleFrameBytes, b.MultiFrameBytes)
	}
	if b.FragmentBytes > b.SingleFrameBytes {
		return fmt.Errorf("fragment_bytes (%d) exceeds single_frame_bytes (%d)", b.FragmentBytes, b.SingleFrameBytes)
	}
	if _, err := c.Input.Comma(); err != nil {
		return err
	}
	if c.Output.PNGSize < 64 {
		return fmt.Errorf("output.png_size must be at least 64, got %d", c.Output.PNGSize)
	}
	return nil
}
