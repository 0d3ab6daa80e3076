// =============================================================================
// Laminar - Receipts Command
// =============================================================================
//
// Browse the local SQLite receipt archive filled by `generate --archive`.
//
// COMMAND USAGE:
//   laminar receipts list [--limit N]
//   laminar receipts show <batch-id>
//
// The archive path comes from archive.database in the configuration, the
// LAMINAR_ARCHIVE_DATABASE variable or --db.
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/laminar/internal/errs"
	"github.com/ginjaninja78/laminar/internal/output"
	"github.com/ginjaninja78/laminar/internal/receipt"
	"github.com/ginjaninja78/laminar/internal/zatoshi"
	"github.com/ginjaninja78/laminar/pkg/utils"
)

var receiptsCmd = &cobra.Command{
	Use:   "receipts",
	Short: "Browse archived receipts",
}

var receiptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived receipts, newest first",
	Args:  cobra.NoArgs,
	RunE:  runReceiptsList,
}

var receiptsShowCmd = &cobra.Command{
	Use:   "show <batch-id>",
	Short: "Print one archived receipt",
	Args:  cobra.ExactArgs(1),
	RunE:  runReceiptsShow,
}

func init() {
	receiptsCmd.PersistentFlags().String("db", "", "Path to the receipt archive")
	receiptsListCmd.Flags().IntP("limit", "l", 20, "Maximum number of receipts (0 for all)")

	receiptsCmd.AddCommand(receiptsListCmd, receiptsShowCmd)
	rootCmd.AddCommand(receiptsCmd)
}

// openArchive opens the configured archive. A missing database is reported
// instead of silently creating an empty one.
func openArchive(cmd *cobra.Command, s *session) (*receipt.Store, error) {
	path := s.cfg.Archive.Database
	if !utils.FileExists(path) {
		return nil, errs.New(errs.CodeIO, "no receipt archive at %s", path)
	}
	return receipt.OpenStore(cmd.Context(), path)
}

func runReceiptsList(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := openArchive(cmd, s)
	if err != nil {
		s.fail(err, nil)
		return reported{err}
	}
	defer store.Close()

	list, err := store.List(cmd.Context(), limit)
	if err != nil {
		s.fail(err, nil)
		return reported{err}
	}
	if list == nil {
		list = []receipt.Summary{}
	}

	if s.mode == output.ModeAgent {
		s.emit(output.Success(list, nil))
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(s.stdout)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Batch ID", "Timestamp", "Network", "Recipients", "Total (ZEC)", "Segments"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
	})
	for _, sm := range list {
		tw.AppendRow(table.Row{sm.BatchID, sm.Timestamp, sm.Network, sm.RecipientCount, zatoshi.Format(sm.TotalZat), sm.Segments})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "Receipts", len(list)})
	tw.Render()
	return nil
}

func runReceiptsShow(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(args[0])
	if err != nil {
		err = errs.Wrap(err, errs.CodeConfig, "invalid batch id")
		s.fail(err, nil)
		return reported{err}
	}

	store, err := openArchive(cmd, s)
	if err != nil {
		s.fail(err, nil)
		return reported{err}
	}
	defer store.Close()

	r, err := store.Get(cmd.Context(), id)
	if err != nil {
		s.fail(err, nil)
		return reported{err}
	}

	if s.mode == output.ModeAgent {
		s.emit(output.Success(r, nil))
		return nil
	}
	data, err := receipt.Marshal(r)
	if err != nil {
		s.fail(err, nil)
		return reported{err}
	}
	fmt.Fprint(s.stdout, string(data))
	return nil
}
