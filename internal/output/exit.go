package output

import "github.com/ginjaninja78/laminar/internal/errs"

// Process exit codes.
const (
	ExitOK                   = 0
	ExitValidation           = 1
	ExitConfig               = 2
	ExitIO                   = 3
	ExitInternal             = 4
	ExitConfirmationRequired = 5
	ExitInputBlocked         = 6
)

// ExitCodeFor maps a taxonomy code to its exit code.
func ExitCodeFor(code errs.Code) int {
	switch code {
	case "":
		return ExitOK
	case errs.CodeConfirmationRequired:
		return ExitConfirmationRequired
	case errs.CodeInputBlocked:
		return ExitInputBlocked
	}
	switch code.Class() {
	case errs.ClassValidation:
		return ExitValidation
	case errs.ClassConfig:
		return ExitConfig
	case errs.ClassIO:
		return ExitIO
	default:
		return ExitInternal
	}
}

// ExitCode maps an error to its exit code. A nil error is success.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	return ExitCodeFor(errs.CodeOf(err))
}
