package workflow

import "fmt"

// ValidationError reports bad user input: malformed range, wrong file type,
// out-of-bounds page, empty result. The session state is held; nothing is
// released.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validationf builds a ValidationError with a user-facing message.
func Validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// CodecError reports a failed external transformation. The workflow is
// terminal: the user gets a generic message, every session file is released,
// and the session returns to idle.
type CodecError struct {
	Op  string
	Err error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// ResourceError reports a scratch storage read/write failure. Terminal like
// CodecError, with best-effort cleanup.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}
