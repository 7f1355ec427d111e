// Package errs defines the stable error codes reported by scaffoldkit.
//
// Every failure that crosses a component boundary (provisioning, rendering,
// verification, scenario checks) is an *Error carrying one of these codes,
// so the CLI can print a consistent cause and pick an exit status.
package errs

import (
	"errors"
	"fmt"
	"io"
	"sort"
)

// Code is a stable error code string.
type Code string

const (
	EUsage    Code = "E_USAGE"
	EInternal Code = "E_INTERNAL"

	// Archive provisioning.
	EFetch          Code = "E_FETCH"
	EExtract        Code = "E_EXTRACT"
	ELayoutMismatch Code = "E_LAYOUT_MISMATCH"
	EInstall        Code = "E_INSTALL"

	// Generation.
	EGenerate        Code = "E_GENERATE"
	EInvalidManifest Code = "E_INVALID_MANIFEST"
	EStructure       Code = "E_STRUCTURE"

	// Build verification.
	EStageFailed   Code = "E_STAGE_FAILED"
	EPostCondition Code = "E_POSTCONDITION"

	// Any blocking call that hit its deadline.
	ETimeout Code = "E_TIMEOUT"
)

// Error is the coded error type shared by all scaffoldkit packages.
type Error struct {
	Code    Code
	Msg     string
	Cause   error
	Details map[string]string
}

// Error returns "CODE: message".
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Msg: msg}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error wrapping an underlying cause.
func Wrap(code Code, msg string, err error) error {
	return &Error{Code: code, Msg: msg, Cause: err}
}

// WrapWithDetails wraps err and attaches a copy of details.
func WrapWithDetails(code Code, msg string, err error, details map[string]string) error {
	return &Error{Code: code, Msg: msg, Cause: err, Details: copyDetails(details)}
}

// GetCode extracts the code from err, or "" when err is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}

// ExitCode maps an error to a process exit status: 0 for nil, 2 for usage
// errors and 1 for everything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if GetCode(err) == EUsage {
		return 2
	}
	return 1
}

// Print writes err to w as
//
//	error_code: <CODE>
//	<message>
//	  <key>: <value>
func Print(w io.Writer, err error) {
	if err == nil {
		return
	}
	var e *Error
	if !errors.As(err, &e) {
		fmt.Fprintln(w, err.Error())
		return
	}
	fmt.Fprintf(w, "error_code: %s\n", e.Code)
	if e.Cause != nil {
		fmt.Fprintf(w, "%s: %v\n", e.Msg, e.Cause)
	} else {
		fmt.Fprintln(w, e.Msg)
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %s\n", k, e.Details[k])
	}
}

func copyDetails(details map[string]string) map[string]string {
	if len(details) == 0 {
		return nil
	}
	cp := make(map[string]string, len(details))
	for k, v := range details {
		cp[k] = v
	}
	return cp
}
