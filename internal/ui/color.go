// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui provides terminal output helpers for the ghbatch CLI.
//
// Messages respect the --no-color flag and the NO_COLOR environment
// variable. All helpers write to Out, which defaults to stdout and can be
// redirected in tests.
//
// Color usage guidelines:
//   - Red: Errors, failures
//   - Yellow: Warnings, interrupts
//   - Green: Committed batches, completion
//   - Cyan: Plan and progress information
//   - Bold: Headers, labels
//   - Dim: Paths, commit ids
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Out receives all output written by this package.
var Out io.Writer = os.Stdout

var (
	// Red is used for error messages and failures.
	Red = color.New(color.FgRed)

	// Yellow is used for warnings and interrupts.
	Yellow = color.New(color.FgYellow)

	// Green is used for committed batches and completion.
	Green = color.New(color.FgGreen)

	// Cyan is used for informational messages.
	Cyan = color.New(color.FgCyan)

	// Bold is used for headers and labels.
	Bold = color.New(color.Bold)

	// Dim is used for paths and commit ids.
	Dim = color.New(color.Faint)
)

// InitColors configures global color output based on the noColor flag.
// Call it once after flag parsing.
func InitColors(noColor bool) {
	color.NoColor = noColor || os.Getenv("NO_COLOR") != ""
}

// Success prints a green message with a checkmark prefix.
//
// Example output: "✓ Committed batch #3 (50 files)"
func Success(msg string) {
	_, _ = Green.Fprintln(Out, "✓ "+msg)
}

// Successf is the formatted form of Success.
func Successf(format string, args ...any) {
	Success(fmt.Sprintf(format, args...))
}

// Warning prints a yellow message with a warning prefix.
//
// Example output: "⚠ Interrupted. Progress saved."
func Warning(msg string) {
	_, _ = Yellow.Fprintln(Out, "⚠ "+msg)
}

// Warningf is the formatted form of Warning.
func Warningf(format string, args ...any) {
	Warning(fmt.Sprintf(format, args...))
}

// Error prints a red message with an X prefix.
func Error(msg string) {
	_, _ = Red.Fprintln(Out, "✗ "+msg)
}

// Errorf is the formatted form of Error.
func Errorf(format string, args ...any) {
	Error(fmt.Sprintf(format, args...))
}

// Info prints a cyan message with an info prefix.
//
// Example output: "ℹ Planned 3 batch(es), total files: 125"
func Info(msg string) {
	_, _ = Cyan.Fprintln(Out, "ℹ "+msg)
}

// Infof is the formatted form of Info.
func Infof(format string, args ...any) {
	Info(fmt.Sprintf(format, args...))
}

// Header prints a bold header with an underline separator.
//
//	Upload Status
//	=============
func Header(text string) {
	_, _ = Bold.Fprintln(Out, text)
	_, _ = fmt.Fprintln(Out, strings.Repeat("=", len([]rune(text))))
}

// SubHeader prints a bold line.
func SubHeader(text string) {
	_, _ = Bold.Fprintln(Out, text)
}

// Field prints an indented "label value" line.
func Field(label string, value any) {
	_, _ = fmt.Fprintf(Out, "  %s %v\n", Label(label), value)
}

// Bullet prints an indented list item.
func Bullet(text string) {
	_, _ = fmt.Fprintf(Out, "  - %s\n", text)
}

// Label returns a bold label for inline use.
func Label(text string) string {
	return Bold.Sprint(text)
}

// DimText returns a dim string for paths and ids.
func DimText(text string) string {
	return Dim.Sprint(text)
}

// CountText returns a cyan count for statistics display.
func CountText(count int) string {
	return Cyan.Sprint(count)
}

// ShortSHA returns the first seven characters of a commit id.
func ShortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
