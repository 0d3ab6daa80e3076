// =============================================================================
// Laminar - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (laminar)
//   ├── validateCmd  (laminar validate <input>...)
//   ├── constructCmd (laminar construct <input>...)
//   ├── generateCmd  (laminar generate <input>...)
//   ├── receiptsCmd  (laminar receipts list|show)
//   └── versionCmd   (laminar version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --network, --json, ...)
//   2. Binding flags and LAMINAR_* environment variables through viper
//   3. Deciding the output mode and setting up logging
//
// EXIT CODES:
//   0 success, 1 validation error, 2 configuration error, 3 I/O error,
//   4 internal error, 5 confirmation required, 6 input blocked
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ginjaninja78/laminar/internal/config"
	"github.com/ginjaninja78/laminar/internal/errs"
	"github.com/ginjaninja78/laminar/internal/output"
	"github.com/ginjaninja78/laminar/internal/types"
	"github.com/ginjaninja78/laminar/pkg/utils"
)

// defaultConfigFile is read when present and --config is not given.
const defaultConfigFile = "laminar.yaml"

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "laminar",
	Short: "Laminar - non-custodial Zcash batch payment requests",
	Long: `Laminar turns a batch of payment recipients (CSV, JSON or XLSX) into a
single ZIP-321 payment request, a scannable QR encoding of it and an audit
receipt. It never holds keys, never signs and never talks to the network.

Output Modes:
  operator  tables and confirmation prompts (default on a terminal)
  agent     one JSON envelope per input on stdout (--json, or when piped)

Example Usage:
  laminar validate payroll.csv --network mainnet
  laminar generate payroll.csv --out-dir ./out --png
  laminar generate big.csv --split --json --yes --out-dir ./out`,

	SilenceUsage:  true,
	SilenceErrors: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the CLI and exits with the code of the outcome.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	var coded *errs.Error
	if !errors.As(err, &coded) {
		// Cobra flag and argument errors.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(output.ExitConfig)
	}
	os.Exit(output.ExitCode(err))
}

// reported marks an error the command has already presented to the user.
// Execute only derives the exit code from it.
type reported struct{ error }

func (r reported) Unwrap() error { return r.error }

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to the configuration file (default is ./"+defaultConfigFile+" when present)")
	flags.BoolP("verbose", "v", false, "Enable debug logging on stderr")
	flags.Bool("json", false, "Agent mode: print JSON envelopes only")
	flags.Bool("interactive", false, "Operator mode even when stdout is not a terminal")
	flags.StringP("network", "n", "", "Target network: mainnet or testnet (default from config)")
	flags.BoolP("yes", "y", false, "Confirm writing artifacts without prompting")
	flags.Bool("strict", false, "Treat warnings as errors")
}

func initConfig() {
	bindFlags()
	viper.SetEnvPrefix("LAMINAR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

// bindFlags maps command flags onto configuration keys. It runs at execution
// time, after every command has registered its flags.
func bindFlags() {
	persistent := rootCmd.PersistentFlags()
	for _, name := range []string{"config", "verbose", "json", "interactive", "network", "yes"} {
		_ = viper.BindPFlag(name, persistent.Lookup(name))
	}
	_ = viper.BindPFlag("strict_warnings", persistent.Lookup("strict"))

	gen := generateCmd.Flags()
	_ = viper.BindPFlag("output.directory", gen.Lookup("out-dir"))
	_ = viper.BindPFlag("output.write_png", gen.Lookup("png"))
	_ = viper.BindPFlag("archive.enabled", gen.Lookup("archive"))

	_ = viper.BindPFlag("archive.database", receiptsCmd.PersistentFlags().Lookup("db"))
}

// =============================================================================
// SHARED COMMAND STATE
// =============================================================================

// session is what every batch command needs after flag parsing.
type session struct {
	cfg    config.Config
	mode   output.Mode
	env    output.Env
	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader
	logger *logrus.Entry
}

// newSession loads configuration, decides the output mode and configures
// logging.
func newSession(cmd *cobra.Command) (*session, error) {
	env := output.DetectEnv(viper.GetBool("json"), viper.GetBool("interactive"))
	s := &session{
		mode:   output.DecideMode(env),
		env:    env,
		stdout: cmd.OutOrStdout(),
		stderr: cmd.ErrOrStderr(),
		stdin:  cmd.InOrStdin(),
	}

	cfg, err := loadConfig()
	if err != nil {
		s.logger = logrus.WithField("component", "cli")
		s.fail(err, nil)
		return nil, reported{err}
	}
	s.cfg = *cfg

	setupLogging(s.cfg.LogLevel, viper.GetBool("verbose"), s.mode, s.stderr)
	s.logger = logrus.WithField("component", "cli")
	s.logger.WithFields(logrus.Fields{"mode": s.mode, "network": s.cfg.Network}).Debug("Session ready")
	return s, nil
}

// loadConfig reads the configuration file and applies environment and flag
// overrides on top of it.
func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	var cfg *config.Config
	switch {
	case explicit || utils.FileExists(path):
		loaded, err := config.Load(path)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeConfig, "failed to load configuration")
		}
		cfg = loaded
	default:
		d := config.Default()
		cfg = &d
	}

	if viper.IsSet("network") {
		n, err := types.ParseNetwork(viper.GetString("network"))
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeConfig, "invalid --network")
		}
		cfg.Network = n
	}
	overrideString(&cfg.Input.Delimiter, "input.delimiter")
	overrideString(&cfg.Input.Sheet, "input.sheet")
	overrideString(&cfg.Output.Directory, "output.directory")
	overrideString(&cfg.Archive.Database, "archive.database")
	overrideString(&cfg.LogLevel, "log_level")
	overrideBool(&cfg.StrictWarnings, "strict_warnings")
	overrideBool(&cfg.Output.WritePNG, "output.write_png")
	overrideBool(&cfg.Archive.Enabled, "archive.enabled")
	overrideInt(&cfg.Output.PNGSize, "output.png_size")
	overrideInt(&cfg.Limits.MaxRows, "limits.max_rows")
	overrideInt(&cfg.Limits.MaxFileSize, "limits.max_file_size")

	if err := cfg.Validate(); err != nil {
		return nil, errs.Wrap(err, errs.CodeConfig, "invalid configuration")
	}
	return cfg, nil
}

func overrideString(dst *string, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetString(key)
	}
}

func overrideBool(dst *bool, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetBool(key)
	}
}

func overrideInt(dst *int, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetInt(key)
	}
}

// setupLogging sends logs to stderr. Agent mode logs JSON at warn level so
// stderr stays machine-readable; operator mode logs text at info level.
func setupLogging(level string, verbose bool, mode output.Mode, w io.Writer) {
	logrus.SetOutput(w)
	if mode == output.ModeAgent {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetLevel(logrus.WarnLevel)
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
		logrus.SetLevel(logrus.InfoLevel)
	}
	if level != "" {
		if lvl, err := logrus.ParseLevel(level); err == nil {
			logrus.SetLevel(lvl)
		}
	}
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
}

// =============================================================================
// PRESENTATION HELPERS
// =============================================================================

// fail presents a failure in the current mode.
func (s *session) fail(err error, warnings []types.Warning) {
	if s.mode == output.ModeAgent {
		s.emit(output.Failure(err, warnings))
		return
	}
	output.RenderFailure(s.stderr, err)
	output.RenderWarnings(s.stderr, warnings)
}

// emit prints one envelope line.
func (s *session) emit(env *output.Envelope) {
	data, err := env.Marshal()
	if err != nil {
		s.logger.WithError(err).Error("Failed to serialize result")
		data, _ = output.Failure(err, nil).Marshal()
	}
	fmt.Fprintln(s.stdout, string(data))
}

// confirm asks before side effects. Agent mode never prompts: without --yes
// it reports CONFIRMATION_REQUIRED. Operator mode prompts on the terminal
// and reports INPUT_BLOCKED when stdin is not one.
func (s *session) confirm(prompt string) error {
	if viper.GetBool("yes") {
		return nil
	}
	if s.mode == output.ModeAgent {
		return errs.New(errs.CodeConfirmationRequired, "%s: rerun with --yes to confirm", prompt)
	}
	if !s.env.StdinTTY {
		return errs.New(errs.CodeInputBlocked, "stdin is not interactive; rerun with --yes to confirm")
	}
	ok, err := output.Confirm(s.stdin, s.stdout, prompt)
	if err != nil {
		return err
	}
	if !ok {
		return errs.New(errs.CodeConfirmationRequired, "declined by operator")
	}
	return nil
}
