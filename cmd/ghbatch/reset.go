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

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/ghbatch/internal/errors"
	"github.com/kraklabs/ghbatch/internal/output"
	"github.com/kraklabs/ghbatch/internal/ui"
	"github.com/kraklabs/ghbatch/pkg/state"
)

// runReset executes the 'reset' command, which deletes the state file so
// the next upload starts from scratch. Files already committed stay in the
// repository and will be committed again.
func runReset(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	confirm := fs.Bool("yes", false, "Confirm the reset (required)")
	stateFile := fs.String("state-file", "", "State file to delete (default: from configuration)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ghbatch reset [options]

Deletes the resume state. The next 'ghbatch upload' treats every
matching file as pending, including files already in the repository.

WARNING: This operation is destructive and cannot be undone!

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if !*confirm {
		errors.FatalError(errors.NewInputError(
			"Confirmation required",
			"reset deletes the record of uploaded files",
			"Run 'ghbatch reset --yes'",
		), globals.JSON)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot load configuration",
			err.Error(),
			"Fix the file or pass --config with a valid path",
			err,
		), globals.JSON)
	}
	if *stateFile != "" {
		cfg.StateFile = *stateFile
	}

	store := state.NewStore(cfg.StateFile, slog.New(slog.NewTextHandler(io.Discard, nil)))
	removed, err := resetState(store)
	if err != nil {
		errors.FatalError(errors.NewStorageError(
			"Cannot delete state file",
			err.Error(),
			"Check permissions on "+store.Path(),
			err,
		), globals.JSON)
	}

	if globals.JSON {
		_ = output.JSON(map[string]any{"state_file": store.Path(), "removed_entries": removed})
		return
	}
	if removed < 0 {
		ui.Info("No state file found at " + store.Path())
		return
	}
	ui.Successf("Reset complete, forgot %d uploaded file(s)", removed)
	fmt.Fprintln(ui.Out)
	fmt.Fprintln(ui.Out, "Next steps:")
	fmt.Fprintln(ui.Out, "  ghbatch upload --dry-run    Review the new plan")
}

// resetState clears the store and returns how many uploaded paths it held,
// or -1 when there was no state file.
func resetState(store *state.Store) (int, error) {
	if !store.Exists() {
		return -1, nil
	}
	n := store.Load().Len()
	if err := store.Clear(); err != nil {
		return 0, err
	}
	return n, nil
}
