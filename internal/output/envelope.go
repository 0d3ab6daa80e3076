// =============================================================================
// Laminar - Result Envelope
// =============================================================================
//
// Every operation result is reported through one envelope shape:
//
//   {
//     "error":    null | {"code", "details": [...], "message", "name"},
//     "result":   null | {...},
//     "success":  true | false,
//     "warnings": [...]
//   }
//
// Keys are sorted at every depth (see CanonicalJSON) so identical results
// serialize to identical bytes. Exactly one of error and result is non-null.
//
// =============================================================================

package output

import (
	"github.com/go-faster/errors"

	"github.com/ginjaninja78/laminar/internal/errs"
	"github.com/ginjaninja78/laminar/internal/types"
)

// ErrorBody is the serialized form of a failure.
type ErrorBody struct {
	Code    string   `json:"code"`
	Name    string   `json:"name"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

// Envelope is the machine-readable result of one operation.
type Envelope struct {
	Success  bool            `json:"success"`
	Result   any             `json:"result"`
	Error    *ErrorBody      `json:"error"`
	Warnings []types.Warning `json:"warnings"`
}

// Success wraps a result.
func Success(result any, warnings []types.Warning) *Envelope {
	return &Envelope{
		Success:  true,
		Result:   result,
		Warnings: nonNil(warnings),
	}
}

// Failure wraps an error. Errors without a taxonomy code are reported as
// INTERNAL.
func Failure(err error, warnings []types.Warning) *Envelope {
	return &Envelope{
		Error:    Body(err),
		Warnings: nonNil(warnings),
	}
}

// Body converts err into its serialized form.
func Body(err error) *ErrorBody {
	var e *errs.Error
	if !errors.As(err, &e) {
		return &ErrorBody{
			Code:    string(errs.CodeInternal),
			Name:    errs.CodeInternal.Name(),
			Message: err.Error(),
			Details: []string{},
		}
	}

	msg := e.Message
	if cause := errors.Unwrap(e); cause != nil {
		msg += ": " + cause.Error()
	}
	details := append([]string{}, e.Details...)
	if len(details) == 0 && e.Row > 0 {
		details = append(details, e.Error())
	}
	return &ErrorBody{
		Code:    string(e.Code),
		Name:    e.Code.Name(),
		Message: msg,
		Details: details,
	}
}

// Marshal renders the envelope as compact canonical JSON.
func (e *Envelope) Marshal() ([]byte, error) {
	return CanonicalJSON(e)
}

// ExitCode returns the process exit code the envelope maps to.
func (e *Envelope) ExitCode() int {
	if e.Success || e.Error == nil {
		return ExitOK
	}
	return ExitCodeFor(errs.Code(e.Error.Code))
}

func nonNil(w []types.Warning) []types.Warning {
	if w == nil {
		return []types.Warning{}
	}
	return w
}
