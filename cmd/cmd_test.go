package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/laminar/internal/errs"
	"github.com/ginjaninja78/laminar/internal/output"
	"github.com/ginjaninja78/laminar/internal/types"
)

const taddr = "t1Hsc1LR8yKnbbe3twRp88p6vFfC5t7DLbs"

func writeBatch(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

// execute runs the root command and returns stdout and the error.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), err
}

func decodeLines(t *testing.T, out string) []map[string]any {
	t.Helper()
	var envs []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		var env map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &env), line)
		envs = append(envs, env)
	}
	return envs
}

func TestAgentModeEndToEnd(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	good := writeBatch(t, dir, "a.csv", "address,amount,memo", taddr+",0.1,Invoice 42")
	bad := writeBatch(t, dir, "b.csv", "address,amount", "x9notanaddress,1")
	outDir := filepath.Join(dir, "out")

	// Validation: one envelope per input, in input order.
	out, err := execute(t, "validate", "--json", good, bad)
	assert.Equal(t, output.ExitValidation, output.ExitCode(err))
	envs := decodeLines(t, out)
	require.Len(t, envs, 2)
	assert.Equal(t, true, envs[0]["success"])
	assert.Equal(t, false, envs[1]["success"])
	assert.Equal(t, "E001", envs[1]["error"].(map[string]any)["code"])

	// Writing artifacts without --yes needs confirmation.
	out, err = execute(t, "generate", "--json", "--out-dir", outDir, good)
	assert.Equal(t, output.ExitConfirmationRequired, output.ExitCode(err))
	envs = decodeLines(t, out)
	require.Len(t, envs, 1)
	assert.Equal(t, "E011", envs[0]["error"].(map[string]any)["code"])
	assert.NoDirExists(t, outDir)

	out, err = execute(t, "generate", "--json", "--yes", "--out-dir", outDir, good)
	require.NoError(t, err)
	envs = decodeLines(t, out)
	require.Len(t, envs, 1)
	result := envs[0]["result"].(map[string]any)
	artifacts := result["artifacts"].(map[string]any)
	assert.FileExists(t, artifacts["receipt"].(string))
	assert.Contains(t, result["receipt"].(map[string]any)["zip321_payload_hash"], "sha256:")

	// Same input, same bytes.
	again, err := execute(t, "generate", "--json", "--yes", "--out-dir", outDir, good)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestResolveInputs(t *testing.T) {
	dir := t.TempDir()
	writeBatch(t, dir, "b.csv", "x")
	writeBatch(t, dir, "a.json", "x")

	files, err := resolveInputs([]string{"-", dir})
	require.NoError(t, err)
	assert.Equal(t, []string{"-", filepath.Join(dir, "a.json"), filepath.Join(dir, "b.csv")}, files)

	_, err = resolveInputs([]string{t.TempDir()})
	assert.Equal(t, errs.CodeIO, errs.CodeOf(err))

	_, err = resolveInputs([]string{"-", dir, "-"})
	assert.Equal(t, errs.CodeConfig, errs.CodeOf(err))
}

func TestRepeatedStdinIsRejected(t *testing.T) {
	t.Cleanup(viper.Reset)
	rootCmd.SetIn(strings.NewReader("address,amount\n" + taddr + ",0.1\n"))
	t.Cleanup(func() { rootCmd.SetIn(nil) })

	out, err := execute(t, "validate", "--json", "-", "-")
	assert.Equal(t, output.ExitConfig, output.ExitCode(err))
	envs := decodeLines(t, out)
	require.Len(t, envs, 1)
	assert.Equal(t, "E020", envs[0]["error"].(map[string]any)["code"])
}

func TestProcessFilesKeepsInputOrder(t *testing.T) {
	files := []string{"c", "a", "b", "d"}
	outcomes := processFiles(newTestSession(output.ModeAgent).logger, files, func(path string) (string, error) {
		if path == "b" {
			return "", errs.New(errs.CodeParseError, "bad %s", path)
		}
		return strings.ToUpper(path), nil
	})

	require.Len(t, outcomes, 4)
	for i, o := range outcomes {
		assert.Equal(t, files[i], o.Path)
		assert.Equal(t, i, o.Index)
	}
	assert.Equal(t, "C", outcomes[0].Result)
	assert.Equal(t, errs.CodeParseError, errs.CodeOf(firstError(outcomes)))
}

func newTestSession(mode output.Mode) *session {
	var out bytes.Buffer
	s := &session{mode: mode, stdout: &out, stderr: &out, stdin: strings.NewReader("")}
	s.logger = logrus.WithField("component", "test")
	return s
}

func TestConfirm(t *testing.T) {
	t.Cleanup(viper.Reset)

	s := newTestSession(output.ModeAgent)
	assert.Equal(t, errs.CodeConfirmationRequired, errs.CodeOf(s.confirm("Write?")))

	s = newTestSession(output.ModeOperator)
	assert.Equal(t, errs.CodeInputBlocked, errs.CodeOf(s.confirm("Write?")))

	s.env.StdinTTY = true
	s.stdin = strings.NewReader("yes\n")
	assert.NoError(t, s.confirm("Write?"))

	s.stdin = strings.NewReader("n\n")
	assert.Equal(t, errs.CodeConfirmationRequired, errs.CodeOf(s.confirm("Write?")))

	viper.Set("yes", true)
	s = newTestSession(output.ModeAgent)
	assert.NoError(t, s.confirm("Write?"))
}

func TestLoadConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, types.Mainnet, cfg.Network)

	viper.Set("network", "testnet")
	viper.Set("limits.max_rows", 5)
	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, types.Testnet, cfg.Network)
	assert.Equal(t, 5, cfg.Limits.MaxRows)

	viper.Set("network", "regtest")
	_, err = loadConfig()
	assert.Equal(t, errs.CodeConfig, errs.CodeOf(err))

	viper.Reset()
	viper.Set("config", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = loadConfig()
	assert.Equal(t, output.ExitConfig, output.ExitCode(err))
}

func TestParseStamp(t *testing.T) {
	newCmd := func(args ...string) *cobra.Command {
		c := &cobra.Command{}
		c.Flags().String("timestamp", "", "")
		c.Flags().String("batch-id", "", "")
		require.NoError(t, c.Flags().Parse(args))
		return c
	}

	stamp, err := parseStamp(newCmd("--timestamp", "2026-01-02T03:04:05+01:00", "--batch-id", "7c9e6679-7425-40de-944b-e07fc1f90ae7"), 1)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-02T02:04:05Z", stamp.Timestamp.Format("2006-01-02T15:04:05Z"))
	assert.Equal(t, "7c9e6679-7425-40de-944b-e07fc1f90ae7", stamp.BatchID.String())

	_, err = parseStamp(newCmd("--timestamp", "yesterday"), 1)
	assert.Equal(t, errs.CodeConfig, errs.CodeOf(err))

	_, err = parseStamp(newCmd("--batch-id", "7c9e6679-7425-40de-944b-e07fc1f90ae7"), 2)
	assert.Equal(t, errs.CodeConfig, errs.CodeOf(err))

	stamp, err = parseStamp(newCmd(), 3)
	require.NoError(t, err)
	assert.True(t, stamp.Timestamp.IsZero())
}

func TestErrorLogEntries(t *testing.T) {
	entries := errorLogEntries(errs.New(errs.CodeInvalidAddress, "2 rows failed").WithDetails("row 1: a", "row 2: b"))
	require.Len(t, entries, 2)
	assert.Equal(t, "INVALID_ADDRESS_FORMAT", entries[1].Name)
	assert.Equal(t, "row 2: b", entries[1].Message)

	entries = errorLogEntries(errs.New(errs.CodeEmptyBatch, "no rows"))
	require.Len(t, entries, 1)
	assert.Equal(t, "E016", entries[0].Code)
}
