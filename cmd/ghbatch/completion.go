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
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/ghbatch/internal/errors"
)

const uploadFlagWords = "--repo --source --dest --branch --batch-size --interval --pattern --exclude --shuffle --seed --state-file --message-prefix --max-file-size --api-url --dry-run --force --debug --metrics-addr --env-file"

// bashCompletionTemplate completes commands and flags for bash.
const bashCompletionTemplate = `#!/bin/bash

# Bash completion for ghbatch
# Installation:
#   source <(ghbatch completion bash)

_ghbatch_completion() {
    local cur commands
    commands="init upload status reset completion"
    cur="${COMP_WORDS[COMP_CWORD]}"

    if [ $COMP_CWORD -eq 1 ]; then
        if [[ ${cur} == -* ]] ; then
            COMPREPLY=( $(compgen -W "--version --config --json --quiet --no-color --verbose" -- ${cur}) )
        else
            COMPREPLY=( $(compgen -W "${commands}" -- ${cur}) )
        fi
        return 0
    fi

    case "${COMP_WORDS[1]}" in
        upload)
            COMPREPLY=( $(compgen -W "` + uploadFlagWords + `" -- ${cur}) )
            ;;
        status)
            COMPREPLY=( $(compgen -W "--json" -- ${cur}) )
            ;;
        reset)
            COMPREPLY=( $(compgen -W "--yes --state-file" -- ${cur}) )
            ;;
        init)
            COMPREPLY=( $(compgen -W "--force --repo" -- ${cur}) )
            ;;
        completion)
            COMPREPLY=( $(compgen -W "bash zsh fish" -- ${cur}) )
            ;;
    esac
}

complete -F _ghbatch_completion ghbatch
`

// zshCompletionTemplate completes commands and flags for zsh.
const zshCompletionTemplate = `#compdef ghbatch

_ghbatch() {
    local -a commands
    commands=(
        'init:Create configuration file'
        'upload:Upload pending files in batches'
        'status:Show resume state'
        'reset:Delete the resume state'
        'completion:Generate shell completion script'
    )

    if (( CURRENT == 2 )); then
        _describe 'command' commands
        return
    fi

    case $words[2] in
        upload)
            compadd -- ` + uploadFlagWords + `
            ;;
        status)
            compadd -- --json
            ;;
        reset)
            compadd -- --yes --state-file
            ;;
        init)
            compadd -- --force --repo
            ;;
        completion)
            compadd -- bash zsh fish
            ;;
    esac
}

_ghbatch "$@"
`

// fishCompletionTemplate completes commands and flags for fish.
const fishCompletionTemplate = `# Fish completion for ghbatch

complete -c ghbatch -f
complete -c ghbatch -n '__fish_use_subcommand' -a init -d 'Create configuration file'
complete -c ghbatch -n '__fish_use_subcommand' -a upload -d 'Upload pending files in batches'
complete -c ghbatch -n '__fish_use_subcommand' -a status -d 'Show resume state'
complete -c ghbatch -n '__fish_use_subcommand' -a reset -d 'Delete the resume state'
complete -c ghbatch -n '__fish_use_subcommand' -a completion -d 'Generate shell completion script'

complete -c ghbatch -n '__fish_seen_subcommand_from upload' -l repo -d 'Target repository' -r
complete -c ghbatch -n '__fish_seen_subcommand_from upload' -l source -d 'Local directory' -r -F
complete -c ghbatch -n '__fish_seen_subcommand_from upload' -l dest -d 'Directory in the repository' -r
complete -c ghbatch -n '__fish_seen_subcommand_from upload' -l branch -d 'Target branch' -r
complete -c ghbatch -n '__fish_seen_subcommand_from upload' -l batch-size -d 'Files per commit' -r
complete -c ghbatch -n '__fish_seen_subcommand_from upload' -l interval -d 'Pause between commits' -r
complete -c ghbatch -n '__fish_seen_subcommand_from upload' -l dry-run -d 'Print the plan only'
complete -c ghbatch -n '__fish_seen_subcommand_from upload' -l force -d 'Force-update the branch'
complete -c ghbatch -n '__fish_seen_subcommand_from status' -l json -d 'Output as JSON'
complete -c ghbatch -n '__fish_seen_subcommand_from reset' -l yes -d 'Confirm the reset'
complete -c ghbatch -n '__fish_seen_subcommand_from init' -l force -d 'Overwrite existing file'
complete -c ghbatch -n '__fish_seen_subcommand_from completion' -a 'bash zsh fish'
`

// completionScript returns the script for shell.
func completionScript(shell string) (string, bool) {
	switch shell {
	case "bash":
		return bashCompletionTemplate, true
	case "zsh":
		return zshCompletionTemplate, true
	case "fish":
		return fishCompletionTemplate, true
	}
	return "", false
}

// runCompletion executes the 'completion' command.
func runCompletion(args []string) {
	fs := flag.NewFlagSet("completion", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ghbatch completion <shell>

Generate a completion script for bash, zsh, or fish.

Examples:
  source <(ghbatch completion bash)
  ghbatch completion zsh > "${fpath[1]}/_ghbatch"
  ghbatch completion fish > ~/.config/fish/completions/ghbatch.fish
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() != 1 {
		errors.FatalError(errors.NewInputError(
			"Invalid arguments",
			"The completion command requires exactly one argument: the shell name",
			"Run 'ghbatch completion bash', 'ghbatch completion zsh', or 'ghbatch completion fish'",
		), false)
	}

	script, ok := completionScript(fs.Arg(0))
	if !ok {
		errors.FatalError(errors.NewInputError(
			"Unsupported shell",
			fmt.Sprintf("Shell '%s' is not supported. Valid options: bash, zsh, fish", fs.Arg(0)),
			"Run 'ghbatch completion bash', 'ghbatch completion zsh', or 'ghbatch completion fish'",
		), false)
	}
	fmt.Print(script)
}
