// =============================================================================
// Laminar - Generate Command
// =============================================================================
//
// This file defines the 'generate' command, the main command of Laminar. It
// runs the full pipeline and optionally writes the artifacts to disk.
//
// COMMAND USAGE:
//   laminar generate <input>... [flags]
//
// FLAGS:
//   --split       : One payment request and encoding per recipient
//   --out-dir     : Write receipt, payload URI and frame files here
//   --png         : Also write one PNG per frame (needs --out-dir)
//   --archive     : Record receipts in the SQLite archive
//   --timestamp   : Receipt timestamp (RFC 3339) instead of the default
//   --batch-id    : Receipt batch id instead of the default
//   --qr          : Print single-frame QR codes on the terminal
//
// PROCESSING PIPELINE:
//   1. Generate every batch concurrently (validate, construct, encode,
//      receipt)
//   2. Present the results
//   3. Confirm side effects (prompt, or --yes)
//   4. Write artifacts and error logs, archive receipts
//
// The default receipt timestamp and batch id are derived from the batch
// itself, so identical input produces identical output.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ginjaninja78/laminar/internal/encoding"
	"github.com/ginjaninja78/laminar/internal/errs"
	"github.com/ginjaninja78/laminar/internal/output"
	"github.com/ginjaninja78/laminar/internal/pipeline"
	"github.com/ginjaninja78/laminar/internal/receipt"
	"github.com/ginjaninja78/laminar/internal/types"
	"github.com/ginjaninja78/laminar/internal/zatoshi"
	"github.com/ginjaninja78/laminar/pkg/utils"
)

// =============================================================================
// GENERATE COMMAND DEFINITION
// =============================================================================

// generateCmd represents the 'generate' command.
var generateCmd = &cobra.Command{
	Use:   "generate <input>...",
	Short: "Build payment requests, QR encodings and receipts",
	Long: `Run the full pipeline on one or more batch files: validate, build the
ZIP-321 payment request, encode it into QR frames and produce the audit
receipt.

Payloads up to 2510 bytes fit one QR code; up to 29000 bytes are split into
an animated sequence of frames. Larger batches need --split, which produces
one payment request per recipient.

With --out-dir the receipt, the payload URI and (with --png) the frame images
are written to disk. Writing asks for confirmation unless --yes is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	addInputFlags(generateCmd)
	flags := generateCmd.Flags()
	flags.Bool("split", false, "One payment request per recipient")
	flags.StringP("out-dir", "o", "", "Write artifacts to this directory")
	flags.Bool("png", false, "Write one PNG file per frame (with --out-dir)")
	flags.Bool("archive", false, "Record receipts in the SQLite archive")
	flags.String("timestamp", "", "Receipt timestamp in RFC 3339 (default: derived from the batch)")
	flags.String("batch-id", "", "Receipt batch id (default: derived from the batch)")
	flags.Bool("qr", false, "Print single-frame QR codes on the terminal (operator mode)")

	rootCmd.AddCommand(generateCmd)
}

// generated is the agent-mode result of one batch: the pipeline result plus
// the files written for it.
type generated struct {
	*pipeline.GenerateResult
	Artifacts *utils.Artifacts `json:"artifacts,omitempty"`
	Archived  bool             `json:"archived"`
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runGenerate(cmd *cobra.Command, args []string) error {
	s, files, format, err := prepare(cmd, args)
	if err != nil {
		return err
	}

	split, _ := cmd.Flags().GetBool("split")
	showQR, _ := cmd.Flags().GetBool("qr")
	stamp, err := parseStamp(cmd, len(files))
	if err != nil {
		s.fail(err, nil)
		return reported{err}
	}

	writeDir := viper.IsSet("output.directory")
	archive := s.cfg.Archive.Enabled
	p := pipeline.New(s.cfg, pipeline.WithVersion(Version))
	opts := pipeline.GenerateOptions{
		Split:     split,
		RenderPNG: writeDir && s.cfg.Output.WritePNG,
		Stamp:     stamp,
	}

	// =========================================================================
	// STEP 1: GENERATE ALL BATCHES
	// =========================================================================

	outcomes := processFiles(s.logger, files, func(path string) (*pipeline.GenerateResult, error) {
		in, err := s.pipelineInput(path, format)
		if err != nil {
			return nil, err
		}
		return p.Generate(in, opts)
	})

	results := make([]*generated, len(outcomes))
	succeeded := 0
	for i, o := range outcomes {
		if o.Err == nil {
			results[i] = &generated{GenerateResult: o.Result}
			succeeded++
		}
	}

	// =========================================================================
	// STEP 2: PRESENT RESULTS (OPERATOR MODE)
	// =========================================================================

	if s.mode == output.ModeOperator {
		for i, o := range outcomes {
			s.present(o.Path, len(files) > 1, o.Result, warningsOf(o.Result), o.Err, func() {
				renderGenerated(s, results[i].GenerateResult, showQR)
			})
		}
	}

	// =========================================================================
	// STEP 3: CONFIRM SIDE EFFECTS
	// =========================================================================

	var sideErr error
	needWrite := writeDir && len(outcomes) > 0
	needArchive := archive && succeeded > 0
	if needWrite || needArchive {
		sideErr = s.confirm(sideEffectPrompt(s, needWrite, needArchive, len(outcomes)))
	}

	// =========================================================================
	// STEP 4: WRITE ARTIFACTS AND ARCHIVE
	// =========================================================================

	if sideErr == nil && needWrite {
		sideErr = writeArtifacts(s, outcomes, results)
	}
	if sideErr == nil && needArchive {
		sideErr = archiveReceipts(cmd.Context(), s, results)
	}

	if s.mode == output.ModeAgent {
		for i, o := range outcomes {
			switch {
			case o.Err != nil:
				s.emit(output.Failure(o.Err, warningsOf(o.Result)))
			case sideErr != nil:
				s.emit(output.Failure(sideErr, warningsOf(o.Result)))
			default:
				s.emit(output.Success(results[i], o.Result.Warnings))
			}
		}
	} else if sideErr != nil {
		s.fail(sideErr, nil)
	}

	if err := firstError(outcomes); err != nil {
		return err
	}
	if sideErr != nil {
		return reported{sideErr}
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// parseStamp reads --timestamp and --batch-id. A fixed batch id only makes
// sense for a single input.
func parseStamp(cmd *cobra.Command, inputs int) (receipt.Stamp, error) {
	var stamp receipt.Stamp

	if ts, _ := cmd.Flags().GetString("timestamp"); ts != "" {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return stamp, errs.Wrap(err, errs.CodeConfig, "invalid --timestamp (expected RFC 3339)")
		}
		stamp.Timestamp = t.UTC()
	}

	if id, _ := cmd.Flags().GetString("batch-id"); id != "" {
		if inputs > 1 {
			return stamp, errs.New(errs.CodeConfig, "--batch-id cannot be used with %d inputs", inputs)
		}
		u, err := uuid.Parse(id)
		if err != nil {
			return stamp, errs.Wrap(err, errs.CodeConfig, "invalid --batch-id")
		}
		stamp.BatchID = u
	}
	return stamp, nil
}

func warningsOf(res *pipeline.GenerateResult) []types.Warning {
	if res == nil {
		return nil
	}
	return res.Warnings
}

func sideEffectPrompt(s *session, write, archive bool, batches int) string {
	switch {
	case write && archive:
		return fmt.Sprintf("Write artifacts for %d batch(es) to %s and archive receipts in %s?", batches, s.cfg.Output.Directory, s.cfg.Archive.Database)
	case write:
		return fmt.Sprintf("Write artifacts for %d batch(es) to %s?", batches, s.cfg.Output.Directory)
	default:
		return fmt.Sprintf("Archive receipts in %s?", s.cfg.Archive.Database)
	}
}

// renderGenerated prints the operator view of one generated batch.
func renderGenerated(s *session, res *pipeline.GenerateResult, showQR bool) {
	output.RenderBatch(s.stdout, res.Batch)
	renderRequests(s, res.Request, res.Split, res.Deeplink)
	fmt.Fprintln(s.stdout)
	output.RenderEncoding(s.stdout, res.Outputs())

	if showQR {
		renderer := encoding.NewRenderer(s.cfg.Output.PNGSize)
		for i, enc := range res.Outputs() {
			if enc.Mode != types.ModeSingleFrame {
				s.logger.WithField("request", i+1).Info("Animated output; use --out-dir with --png to export frames")
				continue
			}
			qr, err := renderer.Terminal(enc.Frames[0].Data)
			if err != nil {
				s.logger.WithError(err).Warn("Failed to render terminal QR code")
				continue
			}
			fmt.Fprintln(s.stdout, qr)
		}
	}

	r := res.Receipt
	output.Successf(s.stdout, "Receipt %s: %s ZEC to %d recipients (%s)",
		r.BatchID, zatoshi.Format(r.TotalZat), r.RecipientCount, r.PayloadHash)
}

// writeArtifacts writes the files of every successful batch and the error
// log of every rejected one.
func writeArtifacts(s *session, outcomes []outcome[*pipeline.GenerateResult], results []*generated) error {
	fm := utils.NewFileManager(s.cfg.Output.Directory, s.cfg.Output.WritePNG)
	if err := fm.EnsureDirectories(); err != nil {
		return err
	}

	for i, o := range outcomes {
		log := s.logger.WithField("input", o.Path)

		if o.Err != nil {
			path, err := fm.WriteErrorLog(o.Path, errorLogEntries(o.Err))
			if err != nil {
				return err
			}
			log.WithField("path", path).Info("Wrote error log")
			continue
		}

		res := o.Result
		data, err := receipt.Marshal(res.Receipt)
		if err != nil {
			return err
		}
		receiptPath, err := fm.WriteReceipt(receipt.DefaultFilename(res.Receipt), data)
		if err != nil {
			return err
		}

		requests := []*types.PaymentRequest{res.Request}
		if res.Encoded == nil {
			requests = res.Split
		}
		payloads, frames, err := fm.WriteOutputs(utils.ArtifactPrefix(res.Receipt.BatchID.String()), requests, res.Outputs())
		if err != nil {
			return err
		}

		results[i].Artifacts = &utils.Artifacts{Receipt: receiptPath, Payloads: payloads, Frames: frames}
		log.WithFields(logrus.Fields{"receipt": receiptPath, "payloads": len(payloads), "frames": len(frames)}).Info("Wrote artifacts")
		if s.mode == output.ModeOperator {
			output.Successf(s.stdout, "Wrote %s (%d payload files, %d frame images)", receiptPath, len(payloads), len(frames))
		}
	}
	return nil
}

// errorLogEntries flattens a failure into error log lines.
func errorLogEntries(err error) []utils.ErrorLogEntry {
	body := output.Body(err)
	if len(body.Details) == 0 {
		return []utils.ErrorLogEntry{{Code: body.Code, Name: body.Name, Message: body.Message}}
	}
	entries := make([]utils.ErrorLogEntry, 0, len(body.Details))
	for _, d := range body.Details {
		entries = append(entries, utils.ErrorLogEntry{Code: body.Code, Name: body.Name, Message: d})
	}
	return entries
}

// archiveReceipts stores every generated receipt in the archive database.
func archiveReceipts(ctx context.Context, s *session, results []*generated) error {
	store, err := receipt.OpenStore(ctx, s.cfg.Archive.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, g := range results {
		if g == nil {
			continue
		}
		inserted, err := store.Save(ctx, g.Receipt)
		if err != nil {
			return err
		}
		g.Archived = true
		if s.mode == output.ModeOperator {
			if inserted {
				output.Successf(s.stdout, "Archived receipt %s", g.Receipt.BatchID)
			} else {
				fmt.Fprintf(s.stdout, "Receipt %s was already archived\n", g.Receipt.BatchID)
			}
		}
	}
	return nil
}
