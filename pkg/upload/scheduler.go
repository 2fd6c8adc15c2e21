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

package upload

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kraklabs/ghbatch/internal/contract"
	"github.com/kraklabs/ghbatch/pkg/fileset"
	"github.com/kraklabs/ghbatch/pkg/github"
	"github.com/kraklabs/ghbatch/pkg/state"
)

// Defaults applied by the CLI.
const (
	DefaultBatchSize    = 50
	DefaultInterval     = 180 * time.Second
	DefaultPollInterval = time.Second
	DefaultDestDir      = "incoming"
)

// BatchState is a step of the per-batch state machine.
type BatchState string

const (
	StatePending      BatchState = "PENDING"
	StateObjectsBuilt BatchState = "OBJECTS_BUILT"
	StateCommitted    BatchState = "COMMITTED"
	StateRefUpdated   BatchState = "REF_UPDATED"
	StatePersisted    BatchState = "STATE_PERSISTED"
)

// StateSaver persists upload state. *state.Store implements it.
type StateSaver interface {
	Save(s *state.UploadState) error
}

// Config configures a Scheduler.
type Config struct {
	// Branch is the target branch. Empty means the repository default branch.
	Branch string
	// DestDir is the repository directory files are placed under.
	DestDir string
	// SourceRoot is the absolute local directory the files were resolved from.
	SourceRoot string

	BatchSize int
	// Interval is the pause between batches.
	Interval time.Duration
	// PollInterval is how often the interrupt is checked while pausing.
	PollInterval time.Duration

	DryRun        bool
	Force         bool
	MessagePrefix string
	MaxBlobBytes  int64

	// Clock paces the pause between batches; defaults to github.SystemClock.
	Clock github.Clock
}

// BatchReport describes one finished batch. In dry-run mode only the plan
// fields are set.
type BatchReport struct {
	Seq          int // batch number across runs, used in the commit title
	Number       int // 1-based position within this run
	Total        int // batches planned for this run
	Files        []string
	Destinations []string
	CommitSHA    string
	ParentSHA    string
	Bytes        int64
	Duration     time.Duration
	DryRun       bool
}

// Result summarizes a run.
type Result struct {
	RunID            string
	Branch           string
	BatchesPlanned   int
	BatchesCommitted int
	FilesUploaded    int
	Commits          []string
	Interrupted      bool
	DryRun           bool
	Duration         time.Duration
}

// StateWriteError means a batch landed on the branch but the state file
// could not be rewritten. The next run will upload that batch again unless
// the state is repaired by hand.
type StateWriteError struct {
	Seq       int
	Branch    string
	CommitSHA string
	Files     []string
	Err       error
}

func (e *StateWriteError) Error() string {
	return fmt.Sprintf("batch #%d was committed to %s as %s but saving upload state failed: %v", e.Seq, e.Branch, e.CommitSHA, e.Err)
}

func (e *StateWriteError) Unwrap() error {
	return e.Err
}

// Scheduler runs batches sequentially against one branch.
type Scheduler struct {
	api     GitData
	store   StateSaver
	cfg     Config
	builder *Builder
	refs    *RefUpdater
	clock   github.Clock
	logger  *slog.Logger

	// OnBatch, if set, is called after each batch reaches STATE_PERSISTED,
	// or after each planned batch in dry-run mode.
	OnBatch func(BatchReport)

	newRunID func() string
}

// NewScheduler validates cfg and creates a scheduler.
func NewScheduler(api GitData, store StateSaver, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if r := contract.ValidateBatchSize(cfg.BatchSize); !r.OK {
		return nil, fmt.Errorf("invalid config: %s", r.Message)
	}
	if r := contract.ValidateDestDir(cfg.DestDir); !r.OK {
		return nil, fmt.Errorf("invalid config: %s", r.Message)
	}
	if r := contract.ValidateBranch(cfg.Branch); !r.OK {
		return nil, fmt.Errorf("invalid config: %s", r.Message)
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("invalid config: interval must not be negative")
	}
	if !cfg.DryRun && (api == nil || store == nil) {
		return nil, fmt.Errorf("invalid config: api client and state store are required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = github.SystemClock{}
	}

	builder := NewBuilder(api, BuilderOptions{
		SourceRoot:    cfg.SourceRoot,
		DestDir:       cfg.DestDir,
		MessagePrefix: cfg.MessagePrefix,
		MaxBlobBytes:  cfg.MaxBlobBytes,
	}, logger)

	return &Scheduler{
		api:      api,
		store:    store,
		cfg:      cfg,
		builder:  builder,
		refs:     NewRefUpdater(api, cfg.Force, logger),
		clock:    cfg.Clock,
		logger:   logger,
		newRunID: uuid.NewString,
	}, nil
}

// Run uploads files in batches, recording progress in st after each batch.
// files should already exclude paths present in st.
//
// Cancelling ctx stops the run at the next batch boundary; the batch in
// flight always completes. An interrupted run returns a Result with
// Interrupted set and a nil error.
func (s *Scheduler) Run(ctx context.Context, files []fileset.File, st *state.UploadState) (*Result, error) {
	if st == nil {
		st = state.New()
	}
	start := s.clock.Now()
	runID := s.newRunID()
	log := s.logger.With("run_id", runID)

	res := &Result{RunID: runID, Branch: s.cfg.Branch, DryRun: s.cfg.DryRun}
	defer func() { res.Duration = s.clock.Now().Sub(start) }()

	batches, err := Partition(files, s.cfg.BatchSize)
	if err != nil {
		return res, err
	}
	res.BatchesPlanned = len(batches)
	if len(batches) == 0 {
		log.Info("upload.nothing_pending")
		return res, nil
	}

	// Requests of a started batch ignore the interrupt.
	work := context.WithoutCancel(ctx)

	if res.Branch == "" && !s.cfg.DryRun {
		branch, err := s.defaultBranch(work)
		if err != nil {
			return res, err
		}
		res.Branch = branch
	}

	prior := st.BatchIndex
	log.Info("upload.plan",
		"batches", len(batches),
		"files", len(files),
		"branch", res.Branch,
		"dest_dir", s.cfg.DestDir,
		"batch_size", s.cfg.BatchSize,
		"prior_batch_index", prior,
		"dry_run", s.cfg.DryRun,
	)

	for i, batch := range batches {
		seq := prior + batch.Number
		if ctx.Err() != nil {
			s.interrupted(log, res, seq, len(batches)-i)
			break
		}

		report, err := s.runBatch(work, log, res.Branch, batch, seq, len(batches), st)
		if err != nil {
			return res, err
		}
		if !s.cfg.DryRun {
			res.BatchesCommitted++
			res.FilesUploaded += len(batch.Files)
			res.Commits = append(res.Commits, report.CommitSHA)
		}
		if s.OnBatch != nil {
			s.OnBatch(*report)
		}

		if s.cfg.DryRun || i == len(batches)-1 {
			continue
		}
		if !s.pause(ctx, log, seq) {
			s.interrupted(log, res, seq+1, len(batches)-i-1)
			break
		}
	}

	log.Info("upload.complete",
		"branch", res.Branch,
		"batches_committed", res.BatchesCommitted,
		"files_uploaded", res.FilesUploaded,
		"interrupted", res.Interrupted,
		"duration", s.clock.Now().Sub(start).String(),
	)
	return res, nil
}

func (s *Scheduler) interrupted(log *slog.Logger, res *Result, nextSeq, remaining int) {
	res.Interrupted = true
	recordInterrupt()
	log.Warn("upload.interrupted", "next_batch", nextSeq, "remaining_batches", remaining)
}

func (s *Scheduler) defaultBranch(ctx context.Context) (string, error) {
	repo, err := s.api.GetRepository(ctx)
	if err != nil {
		return "", fmt.Errorf("read repository metadata: %w", err)
	}
	if repo.DefaultBranch == "" {
		return "main", nil
	}
	return repo.DefaultBranch, nil
}

// runBatch drives one batch from PENDING to STATE_PERSISTED.
func (s *Scheduler) runBatch(ctx context.Context, log *slog.Logger, branch string, batch Batch, seq, total int, st *state.UploadState) (*BatchReport, error) {
	started := s.clock.Now()
	report := &BatchReport{
		Seq:    seq,
		Number: batch.Number,
		Total:  total,
		Files:  batch.RelPaths(),
		DryRun: s.cfg.DryRun,
	}

	dests, err := s.builder.Destinations(batch)
	if err != nil {
		return nil, err
	}
	report.Destinations = dests

	log.Info("upload.batch.start",
		"batch", seq,
		"position", fmt.Sprintf("%d/%d", batch.Number, total),
		"files", len(batch.Files),
		"state", StatePending,
	)
	if s.cfg.DryRun {
		for _, d := range dests {
			log.Info("upload.batch.plan_file", "batch", seq, "path", d)
		}
		return report, nil
	}

	fail := func(at BatchState, err error) (*BatchReport, error) {
		recordBatchResult("failed")
		log.Error("upload.batch.failed", "batch", seq, "state", at, "err", err)
		return nil, err
	}

	ref, headSHA, err := s.api.GetBranchHead(ctx, branch)
	if err != nil {
		return fail(StatePending, fmt.Errorf("read head of %s: %w", branch, err))
	}
	parent, err := s.api.GetCommit(ctx, headSHA)
	if err != nil {
		return fail(StatePending, fmt.Errorf("read commit %s: %w", headSHA, err))
	}
	head := Head{Ref: ref, CommitSHA: headSHA, TreeSHA: parent.TreeSHA}
	log.Debug("upload.batch.head", "batch", seq, "ref", head.Ref, "commit", head.CommitSHA, "tree", head.TreeSHA)

	tree, err := s.builder.BuildTree(ctx, head.TreeSHA, batch)
	if err != nil {
		return fail(StatePending, err)
	}
	log.Info("upload.batch.transition", "batch", seq, "state", StateObjectsBuilt, "tree", tree.SHA, "bytes", tree.Bytes)

	commit, err := s.builder.Commit(ctx, tree, head.CommitSHA, seq)
	if err != nil {
		return fail(StateObjectsBuilt, err)
	}
	log.Info("upload.batch.transition", "batch", seq, "state", StateCommitted, "commit", commit, "parent", head.CommitSHA)

	if err := s.refs.Update(ctx, branch, commit); err != nil {
		return fail(StateCommitted, err)
	}
	log.Info("upload.batch.transition", "batch", seq, "state", StateRefUpdated, "branch", branch, "commit", commit)

	// st only advances once the new record is on disk.
	next := st.Clone()
	next.MarkUploaded(report.Files...)
	next.BatchIndex = seq
	if err := s.store.Save(next); err != nil {
		recordBatchResult("state_write_failed")
		log.Error("upload.batch.state_write_failed", "batch", seq, "commit", commit, "err", err)
		return nil, &StateWriteError{Seq: seq, Branch: branch, CommitSHA: commit, Files: report.Files, Err: err}
	}
	*st = *next

	report.CommitSHA = commit
	report.ParentSHA = head.CommitSHA
	report.Bytes = tree.Bytes
	report.Duration = s.clock.Now().Sub(started)
	recordBatchCommitted(len(batch.Files), tree.Bytes, report.Duration)
	log.Info("upload.batch.committed",
		"batch", seq,
		"state", StatePersisted,
		"commit", commit,
		"files", len(batch.Files),
		"duration", report.Duration.String(),
	)
	return report, nil
}

// pause waits cfg.Interval in PollInterval steps. It returns false as soon
// as ctx is cancelled.
func (s *Scheduler) pause(ctx context.Context, log *slog.Logger, after int) bool {
	if s.cfg.Interval <= 0 {
		return ctx.Err() == nil
	}
	log.Info("upload.sleep", "after_batch", after, "interval", s.cfg.Interval.String())

	for remaining := s.cfg.Interval; remaining > 0; {
		if ctx.Err() != nil {
			return false
		}
		step := min(s.cfg.PollInterval, remaining)
		if err := s.clock.Sleep(ctx, step); err != nil {
			return false
		}
		remaining -= step
	}
	return ctx.Err() == nil
}
