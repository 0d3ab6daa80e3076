// =============================================================================
// Laminar - Validation Engine
// =============================================================================
//
// This module turns the parser's RawRecords into a ValidatedBatch. It checks:
//   - Required fields (address, amount)
//   - Address format and network (via the address package)
//   - Amount range and precision (via the zatoshi package)
//   - Memo byte length and UTF-8 validity
//   - Formula-injection issues flagged by the parser
//   - Batch total overflow against the maximum supply
//
// VALIDATION STRATEGY:
//   Fail-fast is batch-granular, not row-granular. Every row is evaluated and
//   every failure is collected, then the whole batch is rejected if a single
//   error exists. A ValidatedBatch is never returned alongside errors.
//
// WARNINGS:
//   Duplicate destination addresses and dust amounts are warnings. They never
//   reject a batch unless TreatWarningsAsErrors is set.
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ginjaninja78/laminar/internal/address"
	"github.com/ginjaninja78/laminar/internal/config"
	"github.com/ginjaninja78/laminar/internal/errs"
	"github.com/ginjaninja78/laminar/internal/types"
	"github.com/ginjaninja78/laminar/internal/zatoshi"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError represents a single validation finding.
type ValidationError struct {
	// Severity is "error" (rejects the batch) or "warning".
	Severity string

	// Code is the taxonomy code of the finding.
	Code errs.Code

	// Field is the logical field that failed (address, amount, memo, ...).
	// Empty for batch-level findings.
	Field string

	// Value is the offending value, shortened for display.
	Value string

	// Message is a human-readable error message.
	Message string

	// RowNumber is the 1-based data row, 0 for batch-level findings.
	RowNumber int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", strings.ToUpper(e.Severity), e.Code.Name())
	if e.RowNumber > 0 {
		fmt.Fprintf(&b, " row %d", e.RowNumber)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field '%s'", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// Result contains every finding of one validation run.
type Result struct {
	// IsValid is true if there are no fatal errors.
	IsValid bool

	// Errors contains the fatal findings in row order.
	Errors []*ValidationError

	// Warnings contains the non-fatal findings in row order.
	Warnings []*ValidationError

	ErrorCount    int
	WarningCount  int
	RowsValidated int
}

func (r *Result) add(e *ValidationError) {
	if e.Severity == SeverityWarning {
		r.Warnings = append(r.Warnings, e)
		r.WarningCount++
		return
	}
	r.Errors = append(r.Errors, e)
	r.ErrorCount++
	r.IsValid = false
}

// Err converts a failed result into a single taxonomy error whose details list
// every finding. The code is the code of the first error. Err returns nil for
// a valid result.
func (r *Result) Err() error {
	if r == nil || r.IsValid {
		return nil
	}
	details := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		details = append(details, e.Error())
	}
	code := errs.CodeInternal
	if len(r.Errors) > 0 {
		code = r.Errors[0].Code
	}
	return errs.New(code, "batch rejected with %d error(s)", r.ErrorCount).WithDetails(details...)
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Options contains options for validation.
type Options struct {
	// Network is the declared target network.
	Network types.Network

	// Limits supplies the memo ceiling and dust threshold.
	Limits config.Limits

	// TreatWarningsAsErrors rejects batches that only have warnings.
	TreatWarningsAsErrors bool
}

// Validator validates raw batches.
type Validator struct {
	options Options
}

// NewValidator creates a new Validator instance.
func NewValidator(options Options) *Validator {
	if options.Limits.MaxMemoBytes == 0 {
		options.Limits.MaxMemoBytes = config.DefaultMaxMemoBytes
	}
	if options.Limits.DustThreshold == 0 {
		options.Limits.DustThreshold = zatoshi.DefaultDustThreshold
	}
	return &Validator{options: options}
}

// Validate is a convenience wrapper using default limits.
func Validate(records []types.RawRecord, network types.Network) (*types.ValidatedBatch, *Result) {
	return NewValidator(Options{Network: network}).Validate(records)
}

// =============================================================================
// MAIN VALIDATION FUNCTION
// =============================================================================

// Validate evaluates every record and returns either a ValidatedBatch or a
// failed Result, never both.
func (v *Validator) Validate(records []types.RawRecord) (*types.ValidatedBatch, *Result) {
	result := &Result{IsValid: true, RowsValidated: len(records)}

	if v.options.Network != types.Mainnet && v.options.Network != types.Testnet {
		result.add(&ValidationError{
			Severity: SeverityError,
			Code:     errs.CodeConfig,
			Message:  fmt.Sprintf("unknown target network %q", v.options.Network),
		})
		return nil, result
	}

	if len(records) == 0 {
		result.add(&ValidationError{
			Severity: SeverityError,
			Code:     errs.CodeEmptyBatch,
			Message:  "batch contains no recipients",
		})
		return nil, result
	}

	recipients := make([]types.ValidatedRecipient, 0, len(records))
	firstSeen := make(map[string]int, len(records))

	var total uint64
	overflowed := false

	for i := range records {
		rec := &records[i]
		validated, rowErrors := v.validateRecord(rec)
		for _, e := range rowErrors {
			result.add(e)
		}
		if validated == nil {
			continue
		}

		if !overflowed {
			sum, err := zatoshi.Add(total, validated.Recipient.Amount)
			if err != nil {
				overflowed = true
				result.add(&ValidationError{
					Severity:  SeverityError,
					Code:      errs.CodeBatchTotalOverflow,
					Field:     "amount",
					Message:   fmt.Sprintf("running total exceeds maximum supply of %s ZEC", zatoshi.Format(zatoshi.MaxSupply)),
					RowNumber: rec.Row,
				})
			} else {
				total = sum
			}
		}

		if prev, seen := firstSeen[validated.Recipient.Address]; seen {
			result.add(&ValidationError{
				Severity:  SeverityWarning,
				Code:      errs.CodeDuplicateAddress,
				Field:     "address",
				Value:     shorten(validated.Recipient.Address),
				Message:   fmt.Sprintf("address also used in row %d", prev),
				RowNumber: rec.Row,
			})
		} else {
			firstSeen[validated.Recipient.Address] = rec.Row
		}

		if zatoshi.IsDust(validated.Recipient.Amount, v.options.Limits.DustThreshold) {
			result.add(&ValidationError{
				Severity:  SeverityWarning,
				Code:      errs.CodeDustAmount,
				Field:     "amount",
				Value:     zatoshi.Format(validated.Recipient.Amount),
				Message:   fmt.Sprintf("amount is below the dust threshold of %d zatoshi", v.options.Limits.DustThreshold),
				RowNumber: rec.Row,
			})
		}

		recipients = append(recipients, *validated)
	}

	if v.options.TreatWarningsAsErrors && result.WarningCount > 0 {
		for _, w := range result.Warnings {
			promoted := *w
			promoted.Severity = SeverityError
			result.add(&promoted)
		}
	}

	if !result.IsValid {
		return nil, result
	}

	batch := &types.ValidatedBatch{
		Recipients: recipients,
		Total:      total,
		Network:    v.options.Network,
		Warnings:   make([]types.Warning, 0, len(result.Warnings)),
	}
	for _, w := range result.Warnings {
		batch.Warnings = append(batch.Warnings, types.Warning{
			Code:    string(w.Code),
			Row:     w.RowNumber,
			Message: w.Message,
		})
	}
	return batch, result
}

// validateRecord checks one row. It returns nil and the row's errors when the
// row is invalid.
func (v *Validator) validateRecord(rec *types.RawRecord) (*types.ValidatedRecipient, []*ValidationError) {
	var rowErrors []*ValidationError
	fail := func(code errs.Code, field, value, message string) {
		rowErrors = append(rowErrors, &ValidationError{
			Severity:  SeverityError,
			Code:      code,
			Field:     field,
			Value:     shorten(value),
			Message:   message,
			RowNumber: rec.Row,
		})
	}

	// =========================================================================
	// INJECTION ISSUES FROM THE PARSER
	// =========================================================================
	tainted := make(map[string]bool, len(rec.Issues))
	for _, issue := range rec.Issues {
		tainted[issue.Field] = true
		fail(errs.Code(issue.Code), issue.Field, "", issue.Message)
	}

	// =========================================================================
	// ADDRESS
	// =========================================================================
	var kind types.AddressKind
	if !tainted["address"] {
		if rec.Address == "" {
			fail(errs.CodeMissingField, "address", "", "address is required")
		} else if k, err := address.Detect(rec.Address, v.options.Network); err != nil {
			fail(errs.CodeOf(err), "address", rec.Address, messageOf(err))
		} else {
			kind = k
		}
	}

	// =========================================================================
	// AMOUNT
	// =========================================================================
	var amount uint64
	if !tainted["amount"] {
		var err error
		switch rec.AmountUnit {
		case types.UnitZEC:
			amount, err = zatoshi.ParseZEC(rec.Amount)
		case types.UnitZatoshi:
			amount, err = zatoshi.ParseZatoshi(rec.Amount)
		default:
			err = errs.New(errs.CodeInternal, "record has no amount unit")
		}
		if err != nil {
			fail(errs.CodeOf(err), "amount", rec.Amount, messageOf(err))
		}
	}

	// =========================================================================
	// MEMO AND LABEL
	// =========================================================================
	if rec.HasMemo && !tainted["memo"] {
		if !utf8.ValidString(rec.Memo) {
			fail(errs.CodeMemoInvalidUTF8, "memo", "", "memo is not valid UTF-8")
		} else if n := len(rec.Memo); n > v.options.Limits.MaxMemoBytes {
			fail(errs.CodeMemoTooLong, "memo", rec.Memo,
				fmt.Sprintf("memo is %d bytes, maximum is %d", n, v.options.Limits.MaxMemoBytes))
		}
	}
	if rec.HasLabel && !tainted["label"] && !utf8.ValidString(rec.Label) {
		fail(errs.CodeInvalidEncoding, "label", "", "label is not valid UTF-8")
	}

	if len(rowErrors) > 0 {
		return nil, rowErrors
	}

	return &types.ValidatedRecipient{
		RowNumber: rec.Row,
		Kind:      kind,
		Recipient: types.Recipient{
			Address: rec.Address,
			Amount:  amount,
			Memo:    rec.Memo,
			Label:   rec.Label,
		},
	}, nil
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation findings for display or logging.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Validation completed with %d error(s):\n\n", len(errors)))
	for i, err := range errors {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}
	return builder.String()
}

func messageOf(err error) string {
	if coded, ok := err.(*errs.Error); ok {
		return coded.Message
	}
	return err.Error()
}

func shorten(s string) string {
	const max = 64
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
