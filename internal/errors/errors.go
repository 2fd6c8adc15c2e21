// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package errors defines the failures ghbatch reports to its user and the
// process exit code each one maps to.
//
// A UserError says what failed, why, and what to do about it:
//
//	return errors.NewNetworkError(
//	    "GitHub API request failed",
//	    "POST /git/blobs returned 502 after 3 attempts",
//	    "Rerun later; committed batches are skipped",
//	    err,
//	)
//
// Commands end with FatalError, which prints the error on stderr as colored
// text (or a JSON object under --json) and exits with ExitCodeOf(err):
//
//	Error: Branch main was updated by someone else
//	Cause: Moving main to 1a2b3c4 is not a fast-forward
//	Fix:   Inspect the branch history, then rerun
package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/kraklabs/ghbatch/internal/output"
)

// Process exit codes. An interrupted upload that stopped cleanly between
// batches exits with ExitSuccess.
const (
	ExitSuccess    = 0
	ExitConfig     = 1  // token, repository, settings or empty source tree
	ExitStorage    = 2  // reading a source file or writing the state file
	ExitNetwork    = 3  // GitHub unreachable or retries exhausted
	ExitInput      = 4  // bad command-line arguments
	ExitPermission = 5  // token rejected or lacking scope
	ExitNotFound   = 6  // repository or branch missing
	ExitConflict   = 7  // branch moved; the ref update was not a fast-forward
	ExitInternal   = 10 // unclassified failure, likely a bug
)

var kinds = map[int]string{
	ExitConfig:     "config",
	ExitStorage:    "storage",
	ExitNetwork:    "network",
	ExitInput:      "input",
	ExitPermission: "permission",
	ExitNotFound:   "not_found",
	ExitConflict:   "conflict",
	ExitInternal:   "internal",
}

// UserError is a failure worded for the person running ghbatch.
type UserError struct {
	Message  string // what failed
	Cause    string // why, if known
	Fix      string // what to do next, if anything
	ExitCode int
	Err      error
}

func newUserError(code int, msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: code, Err: err}
}

// NewConfigError reports a missing token, a malformed repository name,
// invalid settings or a source tree with nothing to upload.
func NewConfigError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitConfig, msg, cause, fix, err)
}

// NewStorageError reports local I/O failures on source files or the state
// file.
func NewStorageError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitStorage, msg, cause, fix, err)
}

// NewNetworkError reports a GitHub call that failed for good.
func NewNetworkError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitNetwork, msg, cause, fix, err)
}

// NewInputError reports bad arguments. It wraps nothing.
func NewInputError(msg, cause, fix string) *UserError {
	return newUserError(ExitInput, msg, cause, fix, nil)
}

// NewPermissionError reports a token GitHub refused.
func NewPermissionError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitPermission, msg, cause, fix, err)
}

// NewNotFoundError reports a repository or branch that does not exist.
func NewNotFoundError(msg, cause, fix string) *UserError {
	return newUserError(ExitNotFound, msg, cause, fix, nil)
}

// NewConflictError reports a branch that moved under a batch.
func NewConflictError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitConflict, msg, cause, fix, err)
}

// NewInternalError reports anything the other kinds do not cover.
func NewInternalError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitInternal, msg, cause, fix, err)
}

func (e *UserError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *UserError) Unwrap() error { return e.Err }

// Kind names the error category, e.g. "conflict". It is empty for exit codes
// outside the defined set.
func (e *UserError) Kind() string { return kinds[e.ExitCode] }

var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format renders e for a terminal, one labelled line per non-empty field.
// Colors are off when noColor is set or NO_COLOR is present.
func (e *UserError) Format(noColor bool) string {
	saved := color.NoColor
	defer func() { color.NoColor = saved }()
	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s%s\n", colorError.Sprint("Error: "), e.Message)
	if e.Cause != "" {
		fmt.Fprintf(&b, "%s%s\n", colorCause.Sprint("Cause: "), e.Cause)
	}
	if e.Fix != "" {
		fmt.Fprintf(&b, "%s%s\n", colorFix.Sprint("Fix:   "), e.Fix)
	}
	return b.String()
}

// ErrorJSON is the stderr document written for a failure under --json.
type ErrorJSON struct {
	Error    string `json:"error"`
	Kind     string `json:"kind,omitempty"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// ToJSON returns the machine-readable form of e.
func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Error:    e.Message,
		Kind:     e.Kind(),
		Cause:    e.Cause,
		Fix:      e.Fix,
		ExitCode: e.ExitCode,
	}
}

// ExitCodeOf returns the exit code of the first UserError in err's chain,
// ExitSuccess for nil and ExitInternal for anything else.
func ExitCodeOf(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ue *UserError
	if stderrors.As(err, &ue) {
		return ue.ExitCode
	}
	return ExitInternal
}

// Report writes err to w and returns the exit code to end the process with.
// Errors that carry no UserError are reported as internal.
func Report(w io.Writer, err error, jsonOutput bool) int {
	code := ExitCodeOf(err)
	if err == nil {
		return code
	}

	var ue *UserError
	if !stderrors.As(err, &ue) {
		ue = newUserError(code, err.Error(), "", "", err)
	}
	if jsonOutput {
		// The exit code still reaches the caller if encoding fails.
		_ = output.JSONTo(w, ue.ToJSON())
	} else {
		fmt.Fprint(w, ue.Format(false))
	}
	return code
}

// FatalError reports err on stderr and exits. A nil err is a no-op.
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}
	os.Exit(Report(os.Stderr, err, jsonOutput))
}
