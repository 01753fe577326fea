package crm

import (
	"errors"

	"github.com/sells-group/dealdesk/internal/model"
)

// ValidationError reports bad caller input. Its message is safe to show to
// the caller as-is.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(msg string) error {
	return &ValidationError{Msg: msg}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ExportError carries one of the fixed export failure messages and the
// state the job is recorded with.
type ExportError struct {
	Msg   string
	State model.ExportState
	Err   error
}

func (e *ExportError) Error() string { return e.Msg }

func (e *ExportError) Unwrap() error { return e.Err }
