package ingest

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/laminar/internal/errs"
	"github.com/ginjaninja78/laminar/internal/types"
)

// Decompression ceilings for workbook archives. A workbook within the input
// size limit may still expand enormously when unzipped.
const (
	xlsxUnzipSizeLimit    int64 = 64 << 20
	xlsxUnzipXMLSizeLimit int64 = 16 << 20
)

// Numeric cells hold IEEE doubles, which name a decimal exactly only up to
// this many significant digits.
const maxExactDigits = 15

// parseXLSX reads the header row and data rows of one worksheet. Cells are
// taken as their stored value, never the number-formatted display text; any
// cell holding a formula is rejected regardless of its cached value.
func parseXLSX(data []byte, opts Options) (*Batch, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data), excelize.Options{
		UnzipSizeLimit:    xlsxUnzipSizeLimit,
		UnzipXMLSizeLimit: xlsxUnzipXMLSizeLimit,
	})
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeParseError, "failed to open XLSX workbook")
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, errs.New(errs.CodeParseError, "worksheet %q not found", sheet)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeParseError, "failed to read worksheet rows")
	}
	if len(rows) == 0 {
		return nil, errs.New(errs.CodeEmptyBatch, "worksheet %q is empty", sheet)
	}

	headers := rows[0]
	cols, err := resolveColumns(headers)
	if err != nil {
		return nil, err
	}

	batch := &Batch{Format: FormatXLSX, Headers: cleanHeaders(headers)}
	for i, row := range rows[1:] {
		rowNumber := i + 1
		if isRowEmpty(row) {
			continue
		}
		if opts.Limits.MaxRows > 0 && len(batch.Records) >= opts.Limits.MaxRows {
			return nil, rowLimitError(opts.Limits.MaxRows)
		}

		width := len(row)
		if len(headers) > width {
			width = len(headers)
		}
		rec := buildRecord(rowNumber, headers, row, cols)
		rec.Issues = append(rec.Issues, formulaCells(f, sheet, rowNumber+1, width, headers, cols)...)
		if issue := checkAmountCell(f, sheet, rowNumber+1, cols, &rec); issue != nil {
			rec.Issues = append(rec.Issues, *issue)
		}
		batch.Records = append(batch.Records, rec)
	}
	return batch, nil
}

// formulaCells reports every cell in the worksheet row that stores a formula.
func formulaCells(f *excelize.File, sheet string, sheetRow, width int, headers []string, cols columnMap) []types.CellIssue {
	var issues []types.CellIssue
	for col := 1; col <= width; col++ {
		cell, err := excelize.CoordinatesToCellName(col, sheetRow)
		if err != nil {
			continue
		}
		formula, err := f.GetCellFormula(sheet, cell)
		if err != nil || formula == "" {
			continue
		}
		issues = append(issues, formulaIssue(fieldForColumn(col-1, headers, cols)))
	}
	return issues
}

// checkAmountCell inspects the type of the amount cell. Text cells pass
// through untouched. Numeric cells are rewritten to plain decimal notation,
// or reported when the stored double cannot be read back as the decimal the
// author typed.
func checkAmountCell(f *excelize.File, sheet string, sheetRow int, cols columnMap, rec *types.RawRecord) *types.CellIssue {
	if rec.Amount == "" || HasFormulaPrefix(rec.Amount) {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(cols.amount+1, sheetRow)
	if err != nil {
		return nil
	}
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return nil
	}

	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return nil
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		plain, ok := exactDecimal(rec.Amount)
		if !ok {
			return &types.CellIssue{
				Field: fieldAmount,
				Code:  string(errs.CodeAmountPrecisionLoss),
				Message: fmt.Sprintf("numeric amount cell %s holds %s, which is not an exact decimal; store amounts as text",
					cell, rec.Amount),
			}
		}
		rec.Amount = plain
		return nil
	default:
		return &types.CellIssue{
			Field:   fieldAmount,
			Code:    string(errs.CodeParseError),
			Message: fmt.Sprintf("amount cell %s is not a number or text", cell),
		}
	}
}

// exactDecimal rewrites the stored text of a numeric cell, such as "1.4" or
// "2.1E+15", in plain decimal notation. It fails when the text carries more
// significant digits than a double represents exactly.
func exactDecimal(raw string) (string, bool) {
	mantissa, exp := raw, 0
	if i := strings.IndexAny(raw, "eE"); i >= 0 {
		e, err := strconv.Atoi(raw[i+1:])
		if err != nil || e < -64 || e > 64 {
			return "", false
		}
		mantissa, exp = raw[:i], e
	}
	neg := strings.HasPrefix(mantissa, "-")
	mantissa = strings.TrimPrefix(mantissa, "-")

	intPart, frac, _ := strings.Cut(mantissa, ".")
	digits := intPart + frac
	if digits == "" || strings.Trim(digits, "0123456789") != "" {
		return "", false
	}
	if len(strings.Trim(digits, "0")) > maxExactDigits {
		return "", false
	}

	point := len(intPart) + exp
	if point < 0 {
		digits = strings.Repeat("0", -point) + digits
		point = 0
	}
	if point > len(digits) {
		digits += strings.Repeat("0", point-len(digits))
	}

	out := strings.TrimLeft(digits[:point], "0")
	if out == "" {
		out = "0"
	}
	if rest := strings.TrimRight(digits[point:], "0"); rest != "" {
		out += "." + rest
	}
	if neg {
		out = "-" + out
	}
	return out, true
}
