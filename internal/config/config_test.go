package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/laminar/internal/types"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, types.Mainnet, cfg.Network)
	assert.Equal(t, 10_485_760, cfg.Limits.MaxFileSize)
	assert.Equal(t, 1000, cfg.Limits.MaxRows)
	assert.Equal(t, 512, cfg.Limits.MaxMemoBytes)
	assert.Equal(t, uint64(10_000), cfg.Limits.DustThreshold)
	assert.Equal(t, 2510, cfg.Budgets.SingleFrameBytes)
	assert.Equal(t, 29_000, cfg.Budgets.MultiFrameBytes)
	assert.Equal(t, 7200, cfg.Budgets.DeeplinkBytes)
	assert.Equal(t, 150, cfg.Budgets.FragmentBytes)
	assert.Equal(t, 100, cfg.Budgets.FrameIntervalMS)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverridesAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "laminar.yaml")
	content := []byte(`
network: testnet
limits:
  max_rows: 10
budgets:
  single_frame_bytes: 1000
output:
  directory: ./out
  write_png: true
archive:
  enabled: true
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, types.Testnet, cfg.Network)
	assert.Equal(t, 10, cfg.Limits.MaxRows)
	assert.Equal(t, 512, cfg.Limits.MaxMemoBytes)
	assert.Equal(t, 1000, cfg.Budgets.SingleFrameBytes)
	assert.Equal(t, 29_000, cfg.Budgets.MultiFrameBytes)
	assert.Equal(t, "./out", cfg.Output.Directory)
	assert.True(t, cfg.Output.WritePNG)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, "laminar-receipts.db", cfg.Archive.Database)
}

func TestParseRejectsUnknownNetwork(t *testing.T) {
	_, err := Parse([]byte("network: regtest\n"))
	require.Error(t, err)
}

func TestParseRejectsInconsistentBudgets(t *testing.T) {
	_, err := Parse([]byte("budgets:\n  single_frame_bytes: 40000\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single_frame_bytes")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestInputSection(t *testing.T) {
	cfg, err := Parse([]byte("input:\n  delimiter: \";\"\n  sheet: Payroll\nstrict_warnings: true\n"))
	require.NoError(t, err)
	assert.Equal(t, ";", cfg.Input.Delimiter)
	assert.Equal(t, "Payroll", cfg.Input.Sheet)
	assert.True(t, cfg.StrictWarnings)
	assert.Empty(t, cfg.LogLevel)

	_, err = Parse([]byte("input:\n  delimiter: \";;\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input.delimiter")
}

func TestInputComma(t *testing.T) {
	cases := map[string]rune{
		"":          ',',
		";":         ';',
		"§":         '§',
		"\t":        '\t',
		`\t`:        '\t',
		"TAB":       '\t',
		"pipe":      '|',
		"semicolon": ';',
	}
	for d, want := range cases {
		got, err := Input{Delimiter: d}.Comma()
		require.NoError(t, err, d)
		assert.Equal(t, want, got, d)
	}

	for _, d := range []string{";;", "\"", "\n", "\xff"} {
		_, err := Input{Delimiter: d}.Comma()
		assert.Error(t, err, d)
	}
}
