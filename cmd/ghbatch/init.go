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
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/ghbatch/internal/errors"
	"github.com/kraklabs/ghbatch/internal/ui"
	"github.com/kraklabs/ghbatch/pkg/github"
)

// errConfigExists is returned by writeConfigFile when the target exists
// and force is not set.
var errConfigExists = stderrors.New("configuration file already exists")

// runInit executes the 'init' command, writing a commented configuration
// file.
func runInit(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing configuration file")
	repo := fs.String("repo", "", "Target repository (owner/name)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ghbatch init [options]

Creates %s in the current directory with every setting and
its default value.

Options:
`, DefaultConfigFile)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *repo != "" {
		if _, _, err := github.ParseRepo(*repo); err != nil {
			errors.FatalError(errors.NewInputError(
				"Invalid repository",
				err.Error(),
				"Use the owner/name form, e.g. --repo octo/datasets",
			), globals.JSON)
		}
	}

	path := configPath
	if path == "" {
		path = DefaultConfigFile
	}
	if err := writeConfigFile(path, *repo, *force); err != nil {
		if stderrors.Is(err, errConfigExists) {
			errors.FatalError(errors.NewInputError(
				"Configuration already exists",
				path+" is present",
				"Edit it directly or rerun with --force",
			), globals.JSON)
		}
		errors.FatalError(errors.NewStorageError(
			"Cannot write configuration",
			err.Error(),
			"Check permissions on the target directory",
			err,
		), globals.JSON)
	}

	ui.Successf("Created %s", path)
	fmt.Fprintln(ui.Out)
	fmt.Fprintln(ui.Out, "Next steps:")
	fmt.Fprintln(ui.Out, "  export GITHUB_TOKEN=...       Token with contents:write")
	fmt.Fprintln(ui.Out, "  ghbatch upload --dry-run      Review the plan")
	fmt.Fprintln(ui.Out, "  ghbatch upload                Start uploading")
}

func writeConfigFile(path, repo string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errConfigExists
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	return os.WriteFile(path, []byte(renderConfigTemplate(repo)), 0644)
}
