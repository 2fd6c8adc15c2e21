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

// Package main implements the ghbatch CLI, which uploads large sets of small
// files to a GitHub repository in paced, resumable batches through the Git
// Data API.
//
// Usage:
//
//	ghbatch init                 Create .ghbatch.yaml
//	ghbatch upload [options]     Upload pending files in batches
//	ghbatch status [--json]      Show resume state
//	ghbatch reset --yes          Delete the resume state
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/ghbatch/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// GlobalFlags holds flags shared by every command.
type GlobalFlags struct {
	JSON    bool
	Quiet   bool
	NoColor bool
	Verbose int
}

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		configPath  = flag.String("config", "", "Path to configuration file (default: ./"+DefaultConfigFile+")")
		jsonOut     = flag.Bool("json", false, "Machine-readable JSON output")
		quiet       = flag.BoolP("quiet", "q", false, "Suppress progress and informational output")
		noColor     = flag.Bool("no-color", false, "Disable colored output")
		verbose     = flag.CountP("verbose", "v", "Increase log verbosity (-v, -vv)")
	)

	flag.CommandLine.SetInterspersed(false)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `ghbatch - resumable batch uploads to GitHub

ghbatch commits files from a local directory to a GitHub repository in
fixed-size batches, pausing between commits. Progress is recorded in a
state file after every batch, so an interrupted run resumes where it
stopped.

Usage:
  ghbatch [global options] <command> [options]

Commands:
  init          Create %s
  upload        Upload pending files in batches
  status        Show resume state
  reset         Delete the resume state (destructive!)
  completion    Generate shell completion script (bash|zsh|fish)

Global Options:
`, DefaultConfigFile)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  ghbatch init --repo octo/datasets
  ghbatch upload --dry-run
  ghbatch upload --batch-size 25 --interval 5m
  ghbatch status --json

Environment Variables:
  GITHUB_TOKEN       Token with contents:write on the repository
  GH_TOKEN           Used when GITHUB_TOKEN is unset
  NO_COLOR           Disable colored output

For detailed command help: ghbatch <command> --help

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("ghbatch version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	globals := GlobalFlags{
		JSON:    *jsonOut,
		Quiet:   *quiet || *jsonOut,
		NoColor: *noColor,
		Verbose: *verbose,
	}
	ui.InitColors(globals.NoColor)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs, *configPath, globals)
	case "upload":
		runUpload(cmdArgs, *configPath, globals)
	case "status":
		runStatus(cmdArgs, *configPath, globals)
	case "reset":
		runReset(cmdArgs, *configPath, globals)
	case "completion":
		runCompletion(cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
