// =============================================================================
// Laminar - Error Taxonomy
// =============================================================================
//
// Every failure Laminar reports carries a stable taxonomy code. The code
// determines the error class, and the class determines the process exit code.
//
// CLASSES:
//   validation  - the input batch is wrong (exit 1)
//   config      - configuration or flags are wrong (exit 2)
//   io          - the filesystem or a store failed (exit 3)
//   internal    - a stage received data a prior stage should have rejected (exit 4)
//   interaction - confirmation required / input blocked (CLI layer only)
//
// =============================================================================

package errs

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// =============================================================================
// CODES
// =============================================================================

// Code is a stable taxonomy identifier such as "E001".
type Code string

const (
	CodeInvalidAddress       Code = "E001"
	CodeNetworkMismatch      Code = "E002"
	CodeAmountOutOfRange     Code = "E003"
	CodeAmountPrecisionLoss  Code = "E004"
	CodeMemoTooLong          Code = "E005"
	CodeMemoInvalidUTF8      Code = "E006"
	CodeBatchTotalOverflow   Code = "E007"
	CodeParseError           Code = "E008"
	CodeMissingColumn        Code = "E009"
	CodeMissingField         Code = "E010"
	CodeConfirmationRequired Code = "E011"
	CodeFormulaInjection     Code = "E012"
	CodeFileTooLarge         Code = "E013"
	CodeRowLimitExceeded     Code = "E014"
	CodeInvalidEncoding      Code = "E015"
	CodeEmptyBatch           Code = "E016"
	CodePayloadTooLarge      Code = "E017"
	CodeInputBlocked         Code = "E018"
	CodeConfig               Code = "E020"
	CodeIO                   Code = "E021"
	CodeInternal             Code = "E099"

	CodeDuplicateAddress Code = "W001"
	CodeDustAmount       Code = "W002"
)

// Class groups codes by who is responsible for fixing the failure.
type Class int

const (
	ClassValidation Class = iota
	ClassConfig
	ClassIO
	ClassInternal
	ClassInteraction
	ClassWarning
)

var codeNames = map[Code]string{
	CodeInvalidAddress:       "INVALID_ADDRESS_FORMAT",
	CodeNetworkMismatch:      "NETWORK_MISMATCH",
	CodeAmountOutOfRange:     "AMOUNT_OUT_OF_RANGE",
	CodeAmountPrecisionLoss:  "AMOUNT_PRECISION_LOSS",
	CodeMemoTooLong:          "MEMO_TOO_LONG",
	CodeMemoInvalidUTF8:      "MEMO_INVALID_UTF8",
	CodeBatchTotalOverflow:   "BATCH_TOTAL_OVERFLOW",
	CodeParseError:           "PARSE_ERROR",
	CodeMissingColumn:        "MISSING_REQUIRED_COLUMN",
	CodeMissingField:         "MISSING_REQUIRED_FIELD",
	CodeConfirmationRequired: "CONFIRMATION_REQUIRED",
	CodeFormulaInjection:     "FORMULA_INJECTION",
	CodeFileTooLarge:         "FILE_TOO_LARGE",
	CodeRowLimitExceeded:     "ROW_LIMIT_EXCEEDED",
	CodeInvalidEncoding:      "INVALID_ENCODING",
	CodeEmptyBatch:           "EMPTY_BATCH",
	CodePayloadTooLarge:      "PAYLOAD_TOO_LARGE",
	CodeInputBlocked:         "INPUT_BLOCKED",
	CodeConfig:               "CONFIG_ERROR",
	CodeIO:                   "IO_ERROR",
	CodeInternal:             "INTERNAL",
	CodeDuplicateAddress:     "DUPLICATE_ADDRESS",
	CodeDustAmount:           "DUST_AMOUNT",
}

// Name returns the symbolic name of the code, e.g. "MEMO_TOO_LONG".
func (c Code) Name() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// Class returns the class the code belongs to.
func (c Code) Class() Class {
	switch c {
	case CodeConfig:
		return ClassConfig
	case CodeIO:
		return ClassIO
	case CodeInternal:
		return ClassInternal
	case CodeConfirmationRequired, CodeInputBlocked:
		return ClassInteraction
	}
	if strings.HasPrefix(string(c), "W") {
		return ClassWarning
	}
	if _, ok := codeNames[c]; !ok {
		return ClassInternal
	}
	return ClassValidation
}

// =============================================================================
// ERROR TYPE
// =============================================================================

// Error is a taxonomy-coded failure.
type Error struct {
	Code    Code
	Message string

	// Row is the 1-based data row the error refers to, 0 when batch-wide.
	Row int

	// Field is the logical field name (address, amount, memo, label).
	Field string

	// Details holds extra human-readable lines, e.g. one per row error.
	Details []string

	cause error
}

// New creates a coded error.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AtRow creates a coded error bound to a row and field.
func AtRow(code Code, row int, field, format string, args ...interface{}) *Error {
	return &Error{Code: code, Row: row, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an underlying cause. The cause stays reachable
// through Unwrap, errors.Is and errors.As.
func Wrap(cause error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: cause}
}

// WithDetails returns a copy of e carrying the given details.
func (e *Error) WithDetails(details ...string) *Error {
	cp := *e
	cp.Details = append(append([]string(nil), e.Details...), details...)
	return &cp
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code.Name())
	b.WriteString(": ")
	if e.Row > 0 {
		fmt.Fprintf(&b, "row %d: ", e.Row)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, "%s: ", e.Field)
	}
	b.WriteString(e.Message)
	if e.cause != nil {
		fmt.Fprintf(&b, ": %v", e.cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.cause }

// CodeOf extracts the taxonomy code from any error, defaulting to INTERNAL.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
