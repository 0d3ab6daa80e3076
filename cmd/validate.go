// =============================================================================
// Laminar - Validate Command
// =============================================================================
//
// This file defines the 'validate' command: parse and validate batches
// without constructing anything.
//
// COMMAND USAGE:
//   laminar validate <input>... [flags]
//
// A batch is valid only if every row is valid. All row errors are reported
// together; warnings never block unless --strict is set.
//
// =============================================================================

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/laminar/internal/output"
	"github.com/ginjaninja78/laminar/internal/pipeline"
	"github.com/ginjaninja78/laminar/internal/types"
)

// validateCmd represents the 'validate' command.
var validateCmd = &cobra.Command{
	Use:   "validate <input>...",
	Short: "Validate batch files without constructing a payment request",
	Long: `Parse and validate one or more batch files. A directory argument is
scanned for .csv, .json and .xlsx files; "-" reads a batch from stdin.

Every row is checked: address format and network, amount range and precision,
memo length and encoding. The batch is rejected if any row is invalid.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	addInputFlags(validateCmd)
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	s, files, format, err := prepare(cmd, args)
	if err != nil {
		return err
	}
	p := pipeline.New(s.cfg, pipeline.WithVersion(Version))

	outcomes := processFiles(s.logger, files, func(path string) (*pipeline.ValidateResult, error) {
		in, err := s.pipelineInput(path, format)
		if err != nil {
			return nil, err
		}
		return p.Validate(in)
	})

	for _, o := range outcomes {
		var warnings []types.Warning
		if o.Result != nil {
			warnings = o.Result.Warnings
		}
		res := o.Result
		s.present(o.Path, len(files) > 1, res, warnings, o.Err, func() {
			output.RenderBatch(s.stdout, res.Batch)
			output.Successf(s.stdout, "Batch valid: %d recipients, %s ZEC on %s", res.RecipientCount, res.TotalZEC, res.Network)
		})
	}
	return firstError(outcomes)
}
