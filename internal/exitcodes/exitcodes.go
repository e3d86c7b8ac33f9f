// Package exitcodes defines standard exit codes for CLI operations so
// cron, Toolforge job runners, and other schedulers can classify outcomes.
package exitcodes

import (
	"errors"
	"os"
	"strings"
)

const (
	// Success - run completed (possibly with per-language failures, which
	// are reported in the summary but do not fail the run)
	Success = 0

	// ConfigError - configuration/credential errors (non-recoverable, don't retry)
	ConfigError = 1

	// ConnectionError - replica connection errors (recoverable)
	ConnectionError = 2

	// QueryError - a query failed permanently (malformed SQL, auth rejection)
	QueryError = 3

	// OutputError - report rendering or file output failed
	OutputError = 4

	// Cancelled - user cancelled via SIGINT/SIGTERM (recoverable)
	Cancelled = 5

	// StateError - state file corrupt or unreadable (non-recoverable)
	StateError = 6
)

// ExitError wraps an error with an exit code.
type ExitError struct {
	Err  error
	Code int
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{Err: err, Code: code}
}

// FromError determines the appropriate exit code for an error.
// It examines error types first, then falls back to message heuristics.
func FromError(err error) int {
	if err == nil {
		return Success
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return OutputError
	}

	errStr := strings.ToLower(err.Error())

	// Cancelled (exit code 5) - check before connection so "context canceled"
	// during a dial does not classify as a connection error
	if containsAny(errStr, []string{
		"cancel",
		"interrupt",
		"context canceled",
		"context deadline",
	}) {
		return Cancelled
	}

	// State errors (exit code 6)
	if containsAny(errStr, []string{
		"state file",
		"state store",
		"checkpoint",
		"schema version",
	}) {
		return StateError
	}

	// Config errors (exit code 1)
	if containsAny(errStr, []string{
		"yaml:",
		"unmarshal",
		"invalid config",
		"credential",
		"missing required",
		"batch size",
		"parsing config",
	}) && !containsAny(errStr, []string{"connection", "connect", "dial"}) {
		return ConfigError
	}

	// Connection errors (exit code 2)
	if containsAny(errStr, []string{
		"connection",
		"connect",
		"dial",
		"refused",
		"timeout",
		"unreachable",
		"no such host",
		"network",
	}) {
		return ConnectionError
	}

	// Query errors (exit code 3)
	if containsAny(errStr, []string{
		"query",
		"sql",
		"syntax",
		"access denied",
		"malformed row",
	}) {
		return QueryError
	}

	// Default to output error for unknown errors
	return OutputError
}

// IsRecoverable returns true if the error is recoverable (safe to retry the run).
func IsRecoverable(code int) bool {
	switch code {
	case ConnectionError, Cancelled:
		return true
	default:
		return false
	}
}

// Description returns a human-readable description of the exit code.
func Description(code int) string {
	switch code {
	case Success:
		return "success"
	case ConfigError:
		return "configuration error"
	case ConnectionError:
		return "connection error (recoverable)"
	case QueryError:
		return "query error"
	case OutputError:
		return "output error"
	case Cancelled:
		return "cancelled (recoverable)"
	case StateError:
		return "state error"
	default:
		return "unknown error"
	}
}

func containsAny(s string, substrs []string) bool {
	for _, substr := range substrs {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
