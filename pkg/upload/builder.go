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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kraklabs/ghbatch/internal/contract"
	"github.com/kraklabs/ghbatch/pkg/fileset"
	"github.com/kraklabs/ghbatch/pkg/github"
)

// DefaultMessagePrefix starts every batch commit title.
const DefaultMessagePrefix = "CSV batch"

// GitData is the subset of the GitHub Git Data API a run needs.
// *github.Client implements it.
type GitData interface {
	GetRepository(ctx context.Context) (*github.Repository, error)
	GetBranchHead(ctx context.Context, branch string) (ref, sha string, err error)
	GetCommit(ctx context.Context, sha string) (*github.Commit, error)
	CreateBlob(ctx context.Context, content []byte) (string, error)
	CreateTree(ctx context.Context, baseTree string, entries []github.TreeEntry) (string, error)
	CreateCommit(ctx context.Context, message, tree string, parents []string) (string, error)
	UpdateRef(ctx context.Context, branch, sha string, force bool) error
}

var _ GitData = (*github.Client)(nil)

// Head is a branch head observed immediately before building a batch.
type Head struct {
	Ref       string
	CommitSHA string
	TreeSHA   string
}

// ErrBlobTooLarge is returned when a file read for upload exceeds the blob limit.
var ErrBlobTooLarge = errors.New("file exceeds blob size limit")

// LocalIOError reports a local file that could not be read.
// An empty file is valid content and never produces this error.
type LocalIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *LocalIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *LocalIOError) Unwrap() error {
	return e.Err
}

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	SourceRoot    string
	DestDir       string
	MessagePrefix string
	MaxBlobBytes  int64 // <= 0 uses contract.MaxBlobBytes()
}

// Builder turns a batch of files into blob, tree and commit objects.
// It never moves a ref.
type Builder struct {
	api          GitData
	sourceRoot   string
	destDir      string
	prefix       string
	maxBlobBytes int64
	readFile     func(string) ([]byte, error)
	logger       *slog.Logger
}

// NewBuilder creates a builder.
func NewBuilder(api GitData, opts BuilderOptions, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	prefix := strings.TrimSpace(opts.MessagePrefix)
	if prefix == "" {
		prefix = DefaultMessagePrefix
	}
	limit := opts.MaxBlobBytes
	if limit <= 0 {
		limit = contract.MaxBlobBytes()
	}
	return &Builder{
		api:          api,
		sourceRoot:   opts.SourceRoot,
		destDir:      opts.DestDir,
		prefix:       prefix,
		maxBlobBytes: limit,
		readFile:     os.ReadFile,
		logger:       logger,
	}
}

// Tree is the outcome of the objects step of a batch.
type Tree struct {
	SHA          string
	Entries      []github.TreeEntry
	Destinations []string
	Bytes        int64
}

// Destination returns the repository path of a file.
func (b *Builder) Destination(f fileset.File) (string, error) {
	if f.FullPath != "" && b.sourceRoot != "" {
		return DestinationPath(b.sourceRoot, b.destDir, f.FullPath)
	}
	if f.RelPath == "" {
		return "", fmt.Errorf("file has neither a full nor a relative path")
	}
	return joinDest(b.destDir, toSlash(f.RelPath)), nil
}

// Destinations maps every file of a batch to its repository path.
func (b *Builder) Destinations(batch Batch) ([]string, error) {
	out := make([]string, 0, len(batch.Files))
	for _, f := range batch.Files {
		dest, err := b.Destination(f)
		if err != nil {
			return nil, err
		}
		out = append(out, dest)
	}
	return out, nil
}

// BuildTree uploads one blob per file, in order, and creates a tree on top
// of baseTree. Paths not in the batch are carried over from baseTree.
func (b *Builder) BuildTree(ctx context.Context, baseTree string, batch Batch) (*Tree, error) {
	tree := &Tree{
		Entries:      make([]github.TreeEntry, 0, len(batch.Files)),
		Destinations: make([]string, 0, len(batch.Files)),
	}

	for _, f := range batch.Files {
		dest, err := b.Destination(f)
		if err != nil {
			return nil, err
		}

		data, err := b.readFile(f.FullPath)
		if err != nil {
			return nil, &LocalIOError{Op: "read", Path: f.FullPath, Err: err}
		}
		if r := contract.ValidateBlob(int64(len(data)), b.maxBlobBytes); !r.OK {
			return nil, fmt.Errorf("%s: %w: %s", f.RelPath, ErrBlobTooLarge, r.Message)
		}

		sha, err := b.api.CreateBlob(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("create blob for %s: %w", f.RelPath, err)
		}
		b.logger.Debug("upload.blob.created", "path", dest, "sha", sha, "bytes", len(data))

		tree.Entries = append(tree.Entries, github.TreeEntry{
			Path: dest,
			Mode: github.ModeFile,
			Type: github.TypeBlob,
			SHA:  sha,
		})
		tree.Destinations = append(tree.Destinations, dest)
		tree.Bytes += int64(len(data))
	}

	sha, err := b.api.CreateTree(ctx, baseTree, tree.Entries)
	if err != nil {
		return nil, fmt.Errorf("create tree: %w", err)
	}
	tree.SHA = sha
	return tree, nil
}

// Commit creates a commit for tree with parent as its only parent.
func (b *Builder) Commit(ctx context.Context, tree *Tree, parent string, seq int) (string, error) {
	sha, err := b.api.CreateCommit(ctx, b.Message(seq, tree.Destinations), tree.SHA, []string{parent})
	if err != nil {
		return "", fmt.Errorf("create commit: %w", err)
	}
	return sha, nil
}

// Build runs BuildTree and Commit against head.
func (b *Builder) Build(ctx context.Context, head Head, batch Batch, seq int) (string, error) {
	tree, err := b.BuildTree(ctx, head.TreeSHA, batch)
	if err != nil {
		return "", err
	}
	return b.Commit(ctx, tree, head.CommitSHA, seq)
}

// Message formats the commit message for batch number seq:
//
//	<prefix> #<seq> (<k> files) to <destDir>
//
//	- <dest 1>
//	- <dest 2>
//
// The file list is cut short when the message would exceed
// contract.MaxCommitMessageBytes.
func (b *Builder) Message(seq int, dests []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s #%d (%d files)", b.prefix, seq, len(dests))
	if dir := strings.Trim(toSlash(b.destDir), "/"); dir != "" {
		sb.WriteString(" to ")
		sb.WriteString(dir)
	}
	if len(dests) == 0 {
		return sb.String()
	}

	sb.WriteString("\n")
	for i, d := range dests {
		line := "\n- " + d
		if sb.Len()+len(line) > contract.MaxCommitMessageBytes {
			fmt.Fprintf(&sb, "\n- ... and %d more", len(dests)-i)
			break
		}
		sb.WriteString(line)
	}
	return sb.String()
}
