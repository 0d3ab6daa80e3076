package ingest

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ginjaninja78/laminar/internal/errs"
	"github.com/ginjaninja78/laminar/internal/types"
)

// =============================================================================
// ENCODING
// =============================================================================

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, utf8BOM)
}

// decodeText strips a UTF-8 BOM and rejects anything that is not valid UTF-8.
// UTF-16 byte-order marks are reported explicitly since they are the most
// common way a spreadsheet export ends up unreadable.
func decodeText(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, []byte{0xFF, 0xFE}) || bytes.HasPrefix(data, []byte{0xFE, 0xFF}) {
		return nil, errs.New(errs.CodeInvalidEncoding, "input is UTF-16 encoded; re-export as UTF-8")
	}
	data = stripBOM(data)
	if !utf8.Valid(data) {
		return nil, errs.New(errs.CodeInvalidEncoding, "input is not valid UTF-8")
	}
	return data, nil
}

// =============================================================================
// FORMULA INJECTION
// =============================================================================

// FormulaPrefixes are the leading characters spreadsheet applications treat
// as the start of a formula or a DDE payload.
const FormulaPrefixes = "=+-@\t\r"

// HasFormulaPrefix reports whether a cell would be interpreted as a formula.
// Both the raw cell and its space-trimmed form are checked, since several
// spreadsheet applications ignore leading spaces.
func HasFormulaPrefix(cell string) bool {
	if cell == "" {
		return false
	}
	if strings.IndexByte(FormulaPrefixes, cell[0]) >= 0 {
		return true
	}
	trimmed := strings.TrimLeft(cell, " ")
	return trimmed != "" && strings.IndexByte(FormulaPrefixes, trimmed[0]) >= 0
}

func formulaIssue(field string) types.CellIssue {
	return types.CellIssue{
		Field:   field,
		Code:    string(errs.CodeFormulaInjection),
		Message: fmt.Sprintf("cell in column %q starts with a formula prefix and was rejected", field),
	}
}

// =============================================================================
// COLUMN RESOLUTION
// =============================================================================

const (
	fieldAddress = "address"
	fieldAmount  = "amount"
	fieldMemo    = "memo"
	fieldLabel   = "label"
)

// Aliases in priority order. Zatoshi aliases carry integer units; the
// remaining amount aliases carry decimal ZEC.
var (
	addressAliases     = []string{"address", "recipient", "to"}
	zatoshiAliases     = []string{"amount_zatoshis", "zatoshis", "zats"}
	zecAmountAliases   = []string{"amount", "value", "zec"}
	memoAliases        = []string{"memo", "message", "note"}
	labelAliases       = []string{"label", "name", "recipient_name"}
	missingColumnIndex = -1
)

// columnMap records which header index supplies each logical field.
type columnMap struct {
	address int
	amount  int
	unit    types.AmountUnit
	memo    int
	label   int
}

func normalizeHeader(h string) string {
	h = strings.TrimSpace(string(stripBOM([]byte(h))))
	h = strings.ToLower(h)
	return strings.Join(strings.Fields(h), "_")
}

func findColumn(index map[string]int, aliases []string) int {
	for _, alias := range aliases {
		if i, ok := index[alias]; ok {
			return i
		}
	}
	return missingColumnIndex
}

// resolveColumns maps the header row onto the logical fields.
func resolveColumns(headers []string) (columnMap, error) {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		key := normalizeHeader(h)
		if _, dup := index[key]; !dup && key != "" {
			index[key] = i
		}
	}

	cols := columnMap{
		address: findColumn(index, addressAliases),
		memo:    findColumn(index, memoAliases),
		label:   findColumn(index, labelAliases),
		amount:  missingColumnIndex,
	}
	if i := findColumn(index, zatoshiAliases); i != missingColumnIndex {
		cols.amount, cols.unit = i, types.UnitZatoshi
	} else if i := findColumn(index, zecAmountAliases); i != missingColumnIndex {
		cols.amount, cols.unit = i, types.UnitZEC
	}

	var missing []string
	if cols.address == missingColumnIndex {
		missing = append(missing, fmt.Sprintf("address (one of: %s)", strings.Join(addressAliases, ", ")))
	}
	if cols.amount == missingColumnIndex {
		all := append(append([]string(nil), zatoshiAliases...), zecAmountAliases...)
		missing = append(missing, fmt.Sprintf("amount (one of: %s)", strings.Join(all, ", ")))
	}
	if len(missing) > 0 {
		return cols, errs.New(errs.CodeMissingColumn, "missing required column(s)").WithDetails(missing...)
	}
	return cols, nil
}

// =============================================================================
// RECORD CONSTRUCTION
// =============================================================================

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func cellAt(row []string, i int) (string, bool) {
	if i == missingColumnIndex {
		return "", false
	}
	if i >= len(row) {
		return "", true
	}
	return row[i], true
}

// buildRecord converts one physical row into a RawRecord. Every cell of the
// row, mapped or not, is screened for formula prefixes.
func buildRecord(rowNumber int, headers, row []string, cols columnMap) types.RawRecord {
	rec := types.RawRecord{Row: rowNumber, AmountUnit: cols.unit}

	for i, cell := range row {
		if !HasFormulaPrefix(cell) {
			continue
		}
		rec.Issues = append(rec.Issues, formulaIssue(fieldForColumn(i, headers, cols)))
	}

	address, _ := cellAt(row, cols.address)
	amount, _ := cellAt(row, cols.amount)
	rec.Address = strings.TrimSpace(address)
	rec.Amount = strings.TrimSpace(amount)
	rec.Memo, rec.HasMemo = cellAt(row, cols.memo)
	rec.Label, rec.HasLabel = cellAt(row, cols.label)
	return rec
}

func fieldForColumn(i int, headers []string, cols columnMap) string {
	switch i {
	case cols.address:
		return fieldAddress
	case cols.amount:
		return fieldAmount
	case cols.memo:
		return fieldMemo
	case cols.label:
		return fieldLabel
	}
	if i < len(headers) && strings.TrimSpace(headers[i]) != "" {
		return strings.TrimSpace(headers[i])
	}
	return fmt.Sprintf("column_%d", i+1)
}

func rowLimitError(limit int) error {
	return errs.New(errs.CodeRowLimitExceeded, "batch has more than %d rows", limit)
}
