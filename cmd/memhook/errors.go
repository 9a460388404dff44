package main

// SilentError marks an error whose message was already printed.
type SilentError struct {
	Err error
}

func (e *SilentError) Error() string { return e.Err.Error() }
func (e *SilentError) Unwrap() error { return e.Err }

// NewSilentError wraps err so main does not print it again.
func NewSilentError(err error) *SilentError {
	return &SilentError{Err: err}
}

// ExitCodeError carries a process exit code other than 1.
type ExitCodeError struct {
	Err      error
	ExitCode int
}

func (e *ExitCodeError) Error() string { return e.Err.Error() }
func (e *ExitCodeError) Unwrap() error { return e.Err }

// NewExitCodeError wraps err with code.
func NewExitCodeError(err error, code int) *ExitCodeError {
	return &ExitCodeError{Err: err, ExitCode: code}
}

// usageExitCode is returned for bad flags and arguments.
const usageExitCode = 2
