// =============================================================================
// Laminar - Construct Command
// =============================================================================
//
// This file defines the 'construct' command: validate batches and print the
// ZIP-321 payment request for each. Nothing is written to disk.
//
// COMMAND USAGE:
//   laminar construct <input>... [--split]
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/laminar/internal/output"
	"github.com/ginjaninja78/laminar/internal/pipeline"
	"github.com/ginjaninja78/laminar/internal/types"
	"github.com/ginjaninja78/laminar/internal/zatoshi"
)

// constructCmd represents the 'construct' command.
var constructCmd = &cobra.Command{
	Use:   "construct <input>...",
	Short: "Validate batches and print their ZIP-321 payment requests",
	Long: `Validate one or more batch files and build the ZIP-321 payment request
URI for each. With --split, one request per recipient is built as well.

The URI is printed; nothing is written to disk.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConstruct,
}

func init() {
	addInputFlags(constructCmd)
	constructCmd.Flags().Bool("split", false, "Also build one payment request per recipient")
	rootCmd.AddCommand(constructCmd)
}

func runConstruct(cmd *cobra.Command, args []string) error {
	s, files, format, err := prepare(cmd, args)
	if err != nil {
		return err
	}
	split, _ := cmd.Flags().GetBool("split")
	p := pipeline.New(s.cfg, pipeline.WithVersion(Version))

	outcomes := processFiles(s.logger, files, func(path string) (*pipeline.ConstructResult, error) {
		in, err := s.pipelineInput(path, format)
		if err != nil {
			return nil, err
		}
		return p.Construct(in, split)
	})

	for _, o := range outcomes {
		var warnings []types.Warning
		if o.Result != nil {
			warnings = o.Result.Warnings
		}
		res := o.Result
		s.present(o.Path, len(files) > 1, res, warnings, o.Err, func() {
			output.RenderBatch(s.stdout, res.Batch)
			renderRequests(s, res.Request, res.Split, res.Deeplink)
		})
	}
	return firstError(outcomes)
}

// renderRequests prints the payment request URI and the handoff summary.
func renderRequests(s *session, req *types.PaymentRequest, split []*types.PaymentRequest, link pipeline.Deeplink) {
	fmt.Fprintf(s.stdout, "\nPayment request (%d bytes, %s ZEC):\n%s\n", req.PayloadBytes, zatoshi.Format(req.TotalZat), req.URI)
	for i, r := range split {
		fmt.Fprintf(s.stdout, "\nSplit %d/%d (%d bytes):\n%s\n", i+1, len(split), r.PayloadBytes, r.URI)
	}

	switch {
	case link.Fits:
		fmt.Fprintf(s.stdout, "\nDeeplink: fits in one link (budget %d bytes)\n", link.BudgetBytes)
	case link.Segments > 0:
		fmt.Fprintf(s.stdout, "\nDeeplink: needs %d links (budget %d bytes each)\n", link.Segments, link.BudgetBytes)
	default:
		fmt.Fprintf(s.stdout, "\nDeeplink: a single recipient exceeds the %d byte link budget\n", link.BudgetBytes)
	}
}
