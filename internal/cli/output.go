package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"animesync/internal/model"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The read or write failed
	ExitCommandError = 2 // Bad arguments or the cache could not be opened
)

// Error codes reported in JSON output.
const (
	ErrCodeSetup       = "SETUP"
	ErrCodeInvalid     = "INVALID_ARGUMENT"
	ErrCodeNotFound    = "NOT_FOUND"
	ErrCodeUnavailable = "REMOTE_UNAVAILABLE"
	ErrCodeFormat      = "REMOTE_FORMAT"
	ErrCodeCache       = "CACHE_UNAVAILABLE"
	ErrCodeCancelled   = "CANCELLED"
	ErrCodeGeneric     = "ERROR"
)

// ExitError represents an error with a specific exit code.
// Its message has already been written by the command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// errorCode maps a catalog error to its JSON error code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidArgument):
		return ErrCodeInvalid
	case errors.Is(err, model.ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, model.ErrRemoteUnavailable):
		return ErrCodeUnavailable
	case errors.Is(err, model.ErrRemoteFormat):
		return ErrCodeFormat
	case errors.Is(err, model.ErrCacheUnavailable):
		return ErrCodeCache
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeCancelled
	default:
		return ErrCodeGeneric
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics, kept off Writer so JSON stays parseable
	Verbose   bool
}

// CLIResponse is one JSON line of CLI output.
type CLIResponse struct {
	Status string      `json:"status"`           // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`   // success payload
	Error  *CLIError   `json:"error,omitempty"`  // error details
	Source string      `json:"source,omitempty"` // cache or remote, for reads
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// JSON reports whether output is machine readable.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Emit writes one successful value. text renders it in text mode.
func (f *OutputFormatter) Emit(source string, data interface{}, text func(w io.Writer)) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
			Source: source,
		})
	}
	if source != "" {
		fmt.Fprintf(f.Writer, "[%s]\n", source)
	}
	text(f.Writer)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(w, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns the ExitError the command should return.
func (f *OutputFormatter) Fail(message string, err error) error {
	_ = f.Error(errorCode(err), err.Error(), nil)
	code := ExitFailure
	if errors.Is(err, model.ErrInvalidArgument) {
		code = ExitCommandError
	}
	return WrapExitError(code, message, err)
}

// VerboseLog writes a diagnostic line when verbose mode is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
