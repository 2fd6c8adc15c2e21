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

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/ghbatch/internal/errors"
	"github.com/kraklabs/ghbatch/internal/output"
	"github.com/kraklabs/ghbatch/internal/ui"
	"github.com/kraklabs/ghbatch/pkg/fileset"
	"github.com/kraklabs/ghbatch/pkg/state"
)

// StatusReport is the output of 'ghbatch status'.
type StatusReport struct {
	Repo       string     `json:"repo"`
	Branch     string     `json:"branch,omitempty"`
	StateFile  string     `json:"state_file"`
	Exists     bool       `json:"exists"`
	Uploaded   int        `json:"uploaded"`
	BatchIndex int        `json:"batch_index"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
	SourceDir  string     `json:"source_dir"`
	Matched    *int       `json:"matched,omitempty"`
	Pending    *int       `json:"pending,omitempty"`
	SourceErr  string     `json:"source_error,omitempty"`
}

// runStatus executes the 'status' command.
func runStatus(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ghbatch status [options]

Shows the resume state: how many files were uploaded, the last batch
number, and how many matching files are still pending.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	asJSON := *jsonOutput || globals.JSON

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot load configuration",
			err.Error(),
			"Fix the file or pass --config with a valid path",
			err,
		), asJSON)
	}

	report := collectStatus(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if asJSON {
		if err := output.JSON(report); err != nil {
			errors.FatalError(err, true)
		}
		return
	}
	printStatus(report)
}

// collectStatus reads the state file and, when the source directory can be
// resolved, counts pending files. It never fails: a missing source is
// reported in SourceErr.
func collectStatus(cfg *Config, logger *slog.Logger) *StatusReport {
	store := state.NewStore(cfg.StateFile, logger)
	st := store.Load()

	report := &StatusReport{
		Repo:       cfg.Repo,
		Branch:     cfg.Branch,
		StateFile:  store.Path(),
		Exists:     store.Exists(),
		Uploaded:   st.Len(),
		BatchIndex: st.BatchIndex,
		SourceDir:  cfg.SourceDir,
	}
	if !st.UpdatedAt.IsZero() {
		t := st.UpdatedAt
		report.UpdatedAt = &t
	}

	resolved, err := fileset.NewResolver(logger).Resolve(cfg.SourceDir, fileset.Options{
		Pattern:     cfg.IncludePattern,
		Exclude:     cfg.Exclude,
		MaxFileSize: cfg.MaxFileSize,
	})
	if err != nil {
		report.SourceErr = err.Error()
		return report
	}
	matched := len(resolved.Files)
	pending := len(fileset.Pending(resolved.Files, st))
	report.Matched = &matched
	report.Pending = &pending
	return report
}

func printStatus(r *StatusReport) {
	ui.Header("Upload Status")
	ui.Field("Repository:", valueOr(r.Repo, "(not configured)"))
	ui.Field("Branch:", valueOr(r.Branch, "(default)"))
	ui.Field("State file:", ui.DimText(r.StateFile))
	if !r.Exists {
		ui.Info("No uploads recorded yet")
	} else {
		ui.Field("Uploaded:", ui.CountText(r.Uploaded))
		ui.Field("Last batch:", fmt.Sprintf("#%d", r.BatchIndex))
		if r.UpdatedAt != nil {
			ui.Field("Updated:", r.UpdatedAt.Local().Format(time.RFC1123))
		}
	}

	fmt.Fprintln(ui.Out)
	ui.SubHeader("Source")
	ui.Field("Directory:", ui.DimText(r.SourceDir))
	if r.SourceErr != "" {
		ui.Warning(r.SourceErr)
		return
	}
	ui.Field("Matching:", ui.CountText(*r.Matched))
	ui.Field("Pending:", ui.CountText(*r.Pending))
	if *r.Pending == 0 {
		ui.Success("All matching files are uploaded")
	}
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
