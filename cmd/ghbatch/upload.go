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
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/ghbatch/internal/errors"
	"github.com/kraklabs/ghbatch/internal/output"
	"github.com/kraklabs/ghbatch/internal/ui"
	"github.com/kraklabs/ghbatch/pkg/fileset"
	"github.com/kraklabs/ghbatch/pkg/github"
	"github.com/kraklabs/ghbatch/pkg/state"
	"github.com/kraklabs/ghbatch/pkg/upload"
)

// uploadOptions are upload settings that have no configuration file key.
type uploadOptions struct {
	DryRun      bool
	Force       bool
	Debug       bool
	MetricsAddr string
	EnvFile     string
}

// uploadPlan summarizes the work before the first batch.
type uploadPlan struct {
	Repo       string `json:"repo"`
	SourceRoot string `json:"source_root"`
	Matched    int    `json:"matched"`
	Uploaded   int    `json:"already_uploaded"`
	Pending    int    `json:"pending"`
	Bytes      int64  `json:"pending_bytes"`
	Batches    int    `json:"batches"`
	BatchSize  int    `json:"batch_size"`
	Seed       int64  `json:"seed,omitempty"`
	DryRun     bool   `json:"dry_run"`
}

// batchEvent is the JSON form of upload.BatchReport.
type batchEvent struct {
	Seq          int      `json:"seq"`
	Number       int      `json:"number"`
	Total        int      `json:"total"`
	Commit       string   `json:"commit,omitempty"`
	Parent       string   `json:"parent,omitempty"`
	Files        []string `json:"files"`
	Destinations []string `json:"destinations"`
	Bytes        int64    `json:"bytes"`
	DurationMS   int64    `json:"duration_ms"`
	DryRun       bool     `json:"dry_run,omitempty"`
}

// uploadHooks receive progress from executeUpload.
type uploadHooks struct {
	Plan  func(uploadPlan)
	Batch func(upload.BatchReport)
}

// runUpload executes the 'upload' command.
//
// Configuration is read from the config file first; flags override it.
// The first SIGINT/SIGTERM stops the run after the in-flight batch is
// committed and recorded; a second one exits immediately.
func runUpload(args []string, configPath string, globals GlobalFlags) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot load configuration",
			err.Error(),
			"Fix the file or pass --config with a valid path",
			err,
		), globals.JSON)
	}

	var opts uploadOptions
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	fs.StringVar(&cfg.Repo, "repo", cfg.Repo, "Target repository (owner/name)")
	fs.StringVar(&cfg.SourceDir, "source", cfg.SourceDir, "Local directory to upload from")
	fs.StringVar(&cfg.DestDir, "dest", cfg.DestDir, "Directory inside the repository")
	fs.StringVar(&cfg.Branch, "branch", cfg.Branch, "Branch to commit to (default: repository default branch)")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Files per commit")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Pause between commits")
	fs.StringVar(&cfg.IncludePattern, "pattern", cfg.IncludePattern, "Glob matched against paths relative to --source")
	fs.StringSliceVar(&cfg.Exclude, "exclude", cfg.Exclude, "Glob to exclude (repeatable)")
	fs.BoolVar(&cfg.Shuffle, "shuffle", cfg.Shuffle, "Upload files in random order")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Shuffle seed (0 picks one)")
	fs.StringVar(&cfg.StateFile, "state-file", cfg.StateFile, "Resume state file")
	fs.StringVar(&cfg.MessagePrefix, "message-prefix", cfg.MessagePrefix, "Commit title prefix")
	fs.Int64Var(&cfg.MaxFileSize, "max-file-size", cfg.MaxFileSize, "Skip files larger than this many bytes (0 disables)")
	fs.StringVar(&cfg.API.BaseURL, "api-url", cfg.API.BaseURL, "GitHub API base URL")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Print the plan without calling GitHub or writing state")
	fs.BoolVar(&opts.Force, "force", false, "Force-update the branch (overwrites concurrent commits)")
	fs.BoolVar(&opts.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&opts.MetricsAddr, "metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")
	fs.StringVar(&opts.EnvFile, "env-file", "", "Load GITHUB_TOKEN from this file (default: ./.env if present)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ghbatch upload [options]

Description:
  Commit pending files to the repository in batches of --batch-size,
  pausing --interval between commits. Files already recorded in the
  state file are skipped, so rerunning after an interrupt or failure
  resumes the upload.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  ghbatch upload --repo octo/datasets --source ./export
  ghbatch upload --dry-run
  ghbatch upload --batch-size 100 --interval 1m --shuffle
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	logger := newLogger(globals, opts.Debug)
	slog.SetDefault(logger)

	envFile, explicitEnv := opts.EnvFile, opts.EnvFile != ""
	if !explicitEnv {
		envFile = ".env"
	}
	if err := loadEnvFile(envFile, explicitEnv); err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot load environment file",
			err.Error(),
			"Check the --env-file path",
			err,
		), globals.JSON)
	}

	if opts.MetricsAddr != "" {
		go serveMetrics(opts.MetricsAddr, logger)
	}

	ctx, stop := interruptContext(logger, globals)
	defer stop()

	var (
		events *output.EventWriter
		bar    *progressbar.ProgressBar
		hooks  uploadHooks
	)
	if globals.JSON {
		events = output.NewEventWriter(os.Stdout)
	}

	hooks.Plan = func(p uploadPlan) {
		if events != nil {
			_ = events.Emit("plan", p)
			return
		}
		printPlan(p, globals)
		bar = NewProgressBar(NewProgressConfig(globals), int64(p.Pending))
	}
	hooks.Batch = func(r upload.BatchReport) {
		if events != nil {
			_ = events.Emit("batch", toBatchEvent(r))
			return
		}
		if bar != nil {
			_ = bar.Add(len(r.Files))
			if r.Number < r.Total && !r.DryRun {
				bar.Describe(waitDescription(r.Number, r.Total, cfg.Interval))
			} else {
				bar.Describe(batchDescription(r.Number, r.Total))
			}
		}
		printBatch(r, globals)
	}

	res, err := executeUpload(ctx, cfg, opts, tokenFromEnv(), logger, hooks)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		errors.FatalError(uploadError(err), globals.JSON)
	}

	if events != nil {
		_ = events.Emit("result", toResultEvent(res))
		return
	}
	printResult(res, cfg, globals)
}

// executeUpload runs preflight checks and the scheduler. Configuration
// problems are returned as *errors.UserError before any network call or
// state write.
func executeUpload(ctx context.Context, cfg *Config, opts uploadOptions, token string, logger *slog.Logger, hooks uploadHooks) (*upload.Result, error) {
	owner, repo, err := github.ParseRepo(cfg.Repo)
	if err != nil {
		return nil, errors.NewConfigError(
			"Invalid repository",
			err.Error(),
			"Pass --repo owner/name or set 'repo' in "+DefaultConfigFile,
			err,
		)
	}
	if token == "" && !opts.DryRun {
		return nil, errors.NewConfigError(
			"GitHub token not found",
			"Neither GITHUB_TOKEN nor GH_TOKEN is set",
			"Export GITHUB_TOKEN or add it to a .env file",
			github.ErrNoToken,
		)
	}

	store := state.NewStore(cfg.StateFile, logger)
	st := store.Load()

	resolved, err := fileset.NewResolver(logger).Resolve(cfg.SourceDir, fileset.Options{
		Pattern:     cfg.IncludePattern,
		Exclude:     cfg.Exclude,
		Shuffle:     cfg.Shuffle,
		Seed:        cfg.Seed,
		MaxFileSize: cfg.MaxFileSize,
	})
	if err != nil {
		if stderrors.Is(err, fileset.ErrNoSourceDir) {
			return nil, errors.NewConfigError(
				"Source directory not found",
				err.Error(),
				"Pass --source with an existing directory",
				err,
			)
		}
		return nil, errors.NewConfigError(
			"Cannot read source directory",
			err.Error(),
			"Fix permissions under --source or exclude the directory with --exclude",
			err,
		)
	}
	if len(resolved.Files) == 0 {
		return nil, errors.NewConfigError(
			"No files to upload",
			fmt.Sprintf("Nothing under %s matches %q", resolved.Root, cfg.IncludePattern),
			"Check --source and --pattern",
			nil,
		)
	}
	pending := fileset.Pending(resolved.Files, st)

	var api upload.GitData
	if !opts.DryRun {
		client, err := github.NewClient(github.Config{
			BaseURL:   cfg.API.BaseURL,
			Owner:     owner,
			Repo:      repo,
			Token:     token,
			UserAgent: "ghbatch/" + version,
			Timeout:   cfg.API.Timeout,
			Retry:     cfg.RetryConfig(),
		}, logger)
		if err != nil {
			return nil, errors.NewConfigError("Cannot create GitHub client", err.Error(), "Check --repo and the token", err)
		}
		api = client
	}

	sched, err := upload.NewScheduler(api, store, upload.Config{
		Branch:        cfg.Branch,
		DestDir:       cfg.DestDir,
		SourceRoot:    resolved.Root,
		BatchSize:     cfg.BatchSize,
		Interval:      cfg.Interval,
		DryRun:        opts.DryRun,
		Force:         opts.Force,
		MessagePrefix: cfg.MessagePrefix,
	}, logger)
	if err != nil {
		return nil, errors.NewConfigError("Invalid upload settings", err.Error(), "Check --batch-size, --interval, --dest and --branch", err)
	}
	sched.OnBatch = hooks.Batch

	if hooks.Plan != nil {
		hooks.Plan(uploadPlan{
			Repo:       owner + "/" + repo,
			SourceRoot: resolved.Root,
			Matched:    len(resolved.Files),
			Uploaded:   len(resolved.Files) - len(pending),
			Pending:    len(pending),
			Bytes:      fileset.TotalSize(pending),
			Batches:    (len(pending) + cfg.BatchSize - 1) / cfg.BatchSize,
			BatchSize:  cfg.BatchSize,
			Seed:       resolved.Seed,
			DryRun:     opts.DryRun,
		})
	}

	return sched.Run(ctx, pending, st)
}

// uploadError converts a failed run into a UserError with the matching
// exit code.
func uploadError(err error) *errors.UserError {
	var (
		userErr  *errors.UserError
		nff      *upload.NonFastForwardError
		stateErr *upload.StateWriteError
		ioErr    *upload.LocalIOError
		apiErr   *github.APIError
	)
	switch {
	case stderrors.As(err, &userErr):
		return userErr
	case stderrors.As(err, &nff):
		return errors.NewConflictError(
			"Branch moved during upload",
			fmt.Sprintf("heads/%s was updated by another writer; commit %s was not applied", nff.Branch, ui.ShortSHA(nff.SHA)),
			"Inspect the branch history, then rerun 'ghbatch upload' to continue with the remaining files",
			err,
		)
	case stderrors.As(err, &stateErr):
		return errors.NewStorageError(
			"Batch committed but the state file was not updated",
			fmt.Sprintf("commit %s on %s contains %d file(s) not recorded as uploaded", stateErr.CommitSHA, stateErr.Branch, len(stateErr.Files)),
			"Fix the state file location; the next run re-uploads that batch once",
			err,
		)
	case stderrors.As(err, &ioErr):
		return errors.NewStorageError(
			"Cannot read source file",
			ioErr.Error(),
			"Check file permissions and rerun; completed batches are kept",
			err,
		)
	case stderrors.Is(err, upload.ErrBlobTooLarge):
		return errors.NewConfigError(
			"File too large for a single blob",
			err.Error(),
			"Lower --max-file-size so oversized files are skipped",
			err,
		)
	case github.IsStatus(err, http.StatusUnauthorized), github.IsStatus(err, http.StatusForbidden):
		return errors.NewPermissionError(
			"GitHub rejected the request",
			err.Error(),
			"Check that the token is valid and has contents:write on the repository",
			err,
		)
	case github.IsStatus(err, http.StatusNotFound):
		return errors.NewNotFoundError(
			"Repository or branch not found",
			err.Error(),
			"Check --repo and --branch, and that the token can see the repository",
		)
	case stderrors.As(err, &apiErr) && apiErr.Transient():
		return errors.NewNetworkError(
			"GitHub unavailable",
			fmt.Sprintf("%s (gave up after %d attempt(s))", apiErr.Error(), apiErr.Attempts),
			"Check https://www.githubstatus.com and rerun later; completed batches are kept",
			err,
		)
	case stderrors.As(err, &apiErr):
		return errors.NewNetworkError(
			"GitHub API request failed",
			apiErr.Error(),
			"Rerun with --debug to see the request; completed batches are kept",
			err,
		)
	case stderrors.Is(err, context.Canceled):
		return errors.NewInternalError("Upload cancelled", err.Error(), "Rerun to resume", err)
	}
	return errors.NewInternalError("Upload failed", err.Error(), "Rerun with --debug for details", err)
}

// newLogger builds the text logger. JSON mode logs to stderr so stdout
// carries only events.
func newLogger(globals GlobalFlags, debug bool) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case debug || globals.Verbose > 0:
		level = slog.LevelDebug
	case globals.Quiet:
		level = slog.LevelWarn
	}
	var w io.Writer = os.Stdout
	if globals.JSON {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// interruptContext cancels on the first SIGINT/SIGTERM and exits the
// process on the second.
func interruptContext(logger *slog.Logger, globals GlobalFlags) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig, ok := <-sigChan
		if !ok {
			return
		}
		logger.Info("shutdown.signal", "signal", sig.String())
		if !globals.Quiet {
			ui.Warning("Interrupt received, stopping after the current batch (press Ctrl+C again to abort)")
		}
		cancel()

		if sig, ok = <-sigChan; ok {
			logger.Warn("shutdown.forced", "signal", sig.String())
			os.Exit(130)
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		close(sigChan)
		cancel()
	}
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	logger.Info("metrics.http.start", "addr", addr, "path", "/metrics")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn("metrics.http.error", "err", err)
	}
}

// resultEvent is the JSON form of upload.Result.
type resultEvent struct {
	RunID            string   `json:"run_id"`
	Branch           string   `json:"branch"`
	BatchesPlanned   int      `json:"batches_planned"`
	BatchesCommitted int      `json:"batches_committed"`
	FilesUploaded    int      `json:"files_uploaded"`
	Commits          []string `json:"commits"`
	Interrupted      bool     `json:"interrupted"`
	DryRun           bool     `json:"dry_run"`
	DurationMS       int64    `json:"duration_ms"`
}

func toResultEvent(res *upload.Result) resultEvent {
	return resultEvent{
		RunID:            res.RunID,
		Branch:           res.Branch,
		BatchesPlanned:   res.BatchesPlanned,
		BatchesCommitted: res.BatchesCommitted,
		FilesUploaded:    res.FilesUploaded,
		Commits:          res.Commits,
		Interrupted:      res.Interrupted,
		DryRun:           res.DryRun,
		DurationMS:       res.Duration.Milliseconds(),
	}
}

func toBatchEvent(r upload.BatchReport) batchEvent {
	return batchEvent{
		Seq:          r.Seq,
		Number:       r.Number,
		Total:        r.Total,
		Commit:       r.CommitSHA,
		Parent:       r.ParentSHA,
		Files:        r.Files,
		Destinations: r.Destinations,
		Bytes:        r.Bytes,
		DurationMS:   r.Duration.Milliseconds(),
		DryRun:       r.DryRun,
	}
}

func printPlan(p uploadPlan, globals GlobalFlags) {
	if globals.Quiet {
		return
	}
	if p.DryRun {
		ui.Header("Upload Plan (dry run)")
	} else {
		ui.Header("Upload Plan")
	}
	ui.Field("Repository:", p.Repo)
	ui.Field("Source:", ui.DimText(p.SourceRoot))
	ui.Field("Matched:", ui.CountText(p.Matched))
	ui.Field("Already uploaded:", ui.CountText(p.Uploaded))
	ui.Field("Pending size:", ui.FormatBytes(p.Bytes))
	if p.Seed != 0 {
		ui.Field("Shuffle seed:", p.Seed)
	}
	ui.Infof("Planned %d batch(es), total files: %d", p.Batches, p.Pending)
}

func printBatch(r upload.BatchReport, globals GlobalFlags) {
	if globals.Quiet {
		return
	}
	if r.DryRun {
		ui.SubHeader(fmt.Sprintf("=== Batch #%d (%d files) ===", r.Seq, len(r.Files)))
		for _, d := range r.Destinations {
			ui.Bullet(d)
		}
		return
	}
	ui.Successf("Batch #%d committed %s (%d files, %s)", r.Seq, ui.DimText(ui.ShortSHA(r.CommitSHA)), len(r.Files), ui.FormatBytes(r.Bytes))
	if globals.Verbose > 0 {
		for _, d := range r.Destinations {
			ui.Bullet(d)
		}
	}
}

func printResult(res *upload.Result, cfg *Config, globals GlobalFlags) {
	if globals.Quiet {
		return
	}
	switch {
	case res.BatchesPlanned == 0:
		ui.Success("Nothing to upload, all matching files are recorded in " + cfg.StateFile)
	case res.DryRun:
		ui.Infof("Dry run complete: %d batch(es), no changes made", res.BatchesPlanned)
	case res.Interrupted:
		ui.Warningf("Interrupted after %d of %d batch(es). Progress saved to %s; rerun to resume.",
			res.BatchesCommitted, res.BatchesPlanned, cfg.StateFile)
	default:
		ui.Successf("Uploaded %d file(s) in %d commit(s) to %s (%s)",
			res.FilesUploaded, res.BatchesCommitted, res.Branch, res.Duration.Round(time.Second))
	}
}
