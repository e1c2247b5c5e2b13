package cli

import (
	"errors"
	"fmt"
)

// ExitError carries the process exit code of a failed anchors run.
//
// The root command prints the cause of a failure (drift or an unknown block)
// through the printer and then returns NewExitError(1).
// The error travels back to [RunWithConfig], where [IsExitError] turns it into
// an [ExecuteResult], so tests assert on the code instead of the process
// exiting. Only [Execute] calls os.Exit.
type ExitError struct {
	// Code is the exit code to return to the shell.
	// Convention: 0 = success, 1 = any anchors failure.
	Code int
}

// Error implements the error interface, returning a string in the format
// "exit status N" where N is the exit code, matching os/exec.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewExitError creates an [ExitError] with the given exit code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// IsExitError checks if an error is an [ExitError] and extracts its exit code.
//
// Returns (code, true) if err is or wraps an *ExitError. Returns (0, false)
// for nil or other errors.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
