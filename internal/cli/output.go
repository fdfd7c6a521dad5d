package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Success, including suites with failing tests
	ExitFailure      = 1 // Failing tests under --strict, or an interrupted run
	ExitCommandError = 2 // Usage, configuration, suite or simulator errors
)

// Error codes carried in JSON error responses.
const (
	CodeUsage       = "E001" // bad arguments or flags
	CodeConfig      = "E002" // invalid configuration or env file
	CodeSuite       = "E003" // unknown suite or unreadable suite file
	CodeSimulator   = "E004" // java or the simulator jar cannot be run
	CodeStore       = "E005" // run history database errors
	CodeTestsFailed = "E006" // --strict and at least one test failed
	CodeInterrupted = "E007" // run cancelled by a signal
)

// ExitError is an error with a process exit code and a response code.
type ExitError struct {
	Code    int    // Exit code (ExitFailure or ExitCommandError)
	Kind    string // Response code (CodeUsage, CodeConfig, ...)
	Message string
	Err     error // Underlying error (optional)
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

// NewExitError creates an ExitError with the given exit code, kind and message.
func NewExitError(code int, kind, message string) *ExitError {
	return &ExitError{Code: code, Kind: kind, Message: message}
}

// WrapExitError wraps err with an exit code and kind.
func WrapExitError(code int, kind, message string, err error) *ExitError {
	return &ExitError{Code: code, Kind: kind, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Errors that are not ExitErrors come from cobra argument and flag parsing,
// so they map to ExitCommandError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// errorKind returns the response code for err.
func errorKind(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Kind != "" {
		return exitErr.Kind
	}
	return CodeUsage
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs data in the configured format. In text mode data is
// printed with its default formatting, so text callers usually write their
// own output instead.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// ReportError writes err through the formatter.
func (f *OutputFormatter) ReportError(err error) error {
	return f.Error(errorKind(err), err.Error(), nil)
}

// VerboseLog outputs a message only if verbose mode is enabled. It writes
// to ErrWriter when set so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the writer for diagnostic output.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
