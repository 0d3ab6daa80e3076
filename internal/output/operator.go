// =============================================================================
// Laminar - Operator Presentation
// =============================================================================
//
// Human-facing rendering used in operator mode: recipient and issue tables,
// the encoding summary and the confirmation prompt. Nothing here is used in
// agent mode, where only the envelope is printed.
//
// =============================================================================

package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ginjaninja78/laminar/internal/errs"
	"github.com/ginjaninja78/laminar/internal/types"
	"github.com/ginjaninja78/laminar/internal/zatoshi"
)

// TruncateAddress shortens long addresses to their first six and last four
// characters for tables.
func TruncateAddress(addr string) string {
	s := strings.TrimSpace(addr)
	if utf8.RuneCountInString(s) <= 14 {
		return s
	}
	runes := []rune(s)
	return string(runes[:6]) + "..." + string(runes[len(runes)-4:])
}

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	return tw
}

// RenderBatch prints the recipients of a validated batch.
func RenderBatch(w io.Writer, batch *types.ValidatedBatch) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"Row", "Type", "Address", "Amount (ZEC)", "Memo", "Label"})
	for _, vr := range batch.Recipients {
		r := vr.Recipient
		tw.AppendRow(table.Row{vr.RowNumber, vr.Kind, TruncateAddress(r.Address), zatoshi.Format(r.Amount), r.Memo, r.Label})
	}
	tw.AppendFooter(table.Row{"", "", "Total (" + strconv.Itoa(len(batch.Recipients)) + ")", zatoshi.Format(batch.Total), "", string(batch.Network)})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 5, WidthMax: 32},
	})
	tw.Render()
}

// RenderWarnings prints non-fatal findings. Nothing is printed when there
// are none.
func RenderWarnings(w io.Writer, warnings []types.Warning) {
	if len(warnings) == 0 {
		return
	}
	tw := newTable(w)
	tw.SetTitle("Warnings")
	tw.AppendHeader(table.Row{"Row", "Code", "Message"})
	for _, warn := range warnings {
		tw.AppendRow(table.Row{warn.Row, warn.Code, warn.Message})
	}
	tw.Render()
}

// RenderFailure prints an error and, when it carries row details, one table
// line per detail.
func RenderFailure(w io.Writer, err error) {
	body := Body(err)
	fmt.Fprintln(w, text.FgRed.Sprintf("%s (%s): %s", body.Name, body.Code, body.Message))
	if len(body.Details) == 0 {
		return
	}
	tw := newTable(w)
	tw.AppendHeader(table.Row{"#", "Detail"})
	for i, d := range body.Details {
		tw.AppendRow(table.Row{i + 1, d})
	}
	tw.Render()
}

// RenderEncoding prints one line per encoded output.
func RenderEncoding(w io.Writer, outs []*types.EncodedOutput) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"Request", "Mode", "Frames", "Payload bytes", "Interval (ms)"})
	for i, o := range outs {
		tw.AppendRow(table.Row{i + 1, o.Mode, o.TotalFrames, o.PayloadBytes, o.FrameIntervalMS})
	}
	tw.Render()
}

// Successf prints a highlighted status line.
func Successf(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, text.FgGreen.Sprintf(format, args...))
}

// Confirm asks a yes/no question on out and reads the answer from in. Only
// "y" and "yes" (any case) confirm; end of input declines.
func Confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, errs.Wrap(err, errs.CodeIO, "failed to read confirmation")
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
