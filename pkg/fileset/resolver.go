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

// Package fileset enumerates the local files an upload run should consider.
//
// The resolver walks a source root, keeps regular files (or symlinks to
// regular files) matching an include
// pattern, drops excluded or oversized files, orders the result
// deterministically (optionally shuffled with a reproducible seed) and removes
// files already recorded in the upload state.
package fileset

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kraklabs/ghbatch/pkg/state"
)

// DefaultPattern matches CSV files at any depth.
const DefaultPattern = "**/*.csv"

// DefaultExcludes are always skipped.
var DefaultExcludes = []string{".git/**"}

// File is a candidate upload.
type File struct {
	RelPath  string // Slash-separated path relative to the source root
	FullPath string // Absolute path on disk
	Size     int64
}

// Options controls enumeration.
type Options struct {
	Pattern     string
	Exclude     []string
	Shuffle     bool
	Seed        int64 // 0 picks a time-based seed
	MaxFileSize int64 // 0 disables the limit
}

// Result contains the resolved file set.
type Result struct {
	Root    string
	Files   []File
	Seed    int64          // Seed used when Shuffle was requested
	Skipped map[string]int // Reason -> count ("excluded", "too_large", "not_regular", "stat_error")
}

var (
	// ErrNoSourceDir is returned when the source root is missing or not a directory.
	ErrNoSourceDir = errors.New("source directory not found")

	// ErrUnreadable is returned when part of the source tree cannot be listed.
	ErrUnreadable = errors.New("source tree not readable")
)

// Resolver enumerates candidate files under a source root.
type Resolver struct {
	logger *slog.Logger
	walk   func(root string, fn fs.WalkDirFunc) error
}

// NewResolver creates a resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger, walk: filepath.WalkDir}
}

// Resolve walks root and returns matching files sorted by relative path, or
// shuffled when opts.Shuffle is set.
func (r *Resolver) Resolve(root string, opts Options) (*Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNoSourceDir, absRoot)
	}

	pattern := opts.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	excludes := append(append([]string{}, DefaultExcludes...), opts.Exclude...)

	res := &Result{Root: absRoot, Skipped: make(map[string]int)}

	err = r.walk(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			r.logger.Error("fileset.walk.error", "path", path, "err", walkErr)
			return fmt.Errorf("%w: %s: %w", ErrUnreadable, path, walkErr)
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if excluded(rel, excludes) {
				res.Skipped["excluded_dir"]++
				return filepath.SkipDir
			}
			return nil
		}
		if !MatchPattern(rel, pattern) {
			return nil
		}
		if excluded(rel, excludes) {
			res.Skipped["excluded"]++
			return nil
		}
		fi, err := fileInfo(path, d)
		if err != nil {
			res.Skipped["stat_error"]++
			r.logger.Warn("fileset.stat.error", "path", rel, "err", err)
			return nil
		}
		if !fi.Mode().IsRegular() {
			res.Skipped["not_regular"]++
			return nil
		}
		if opts.MaxFileSize > 0 && fi.Size() > opts.MaxFileSize {
			res.Skipped["too_large"]++
			r.logger.Warn("fileset.skip_large_file", "path", rel, "size", fi.Size(), "limit", opts.MaxFileSize)
			return nil
		}

		res.Files = append(res.Files, File{RelPath: rel, FullPath: path, Size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk source directory: %w", err)
	}

	sort.Slice(res.Files, func(i, j int) bool {
		return res.Files[i].RelPath < res.Files[j].RelPath
	})

	if opts.Shuffle {
		res.Seed = opts.Seed
		if res.Seed == 0 {
			res.Seed = time.Now().UnixNano()
		}
		rng := rand.New(rand.NewSource(res.Seed))
		rng.Shuffle(len(res.Files), func(i, j int) {
			res.Files[i], res.Files[j] = res.Files[j], res.Files[i]
		})
	}

	r.logger.Info("fileset.resolve.complete",
		"root", absRoot,
		"pattern", pattern,
		"files", len(res.Files),
		"skipped", res.Skipped,
	)
	return res, nil
}

// fileInfo stats d, following a symlink to its target.
func fileInfo(path string, d fs.DirEntry) (fs.FileInfo, error) {
	if d.Type()&fs.ModeSymlink != 0 {
		return os.Stat(path)
	}
	return d.Info()
}

// Pending drops files already recorded in st, preserving order.
func Pending(files []File, st *state.UploadState) []File {
	if st == nil || st.Len() == 0 {
		return append([]File(nil), files...)
	}
	out := make([]File, 0, len(files))
	for _, f := range files {
		if !st.Has(f.RelPath) {
			out = append(out, f)
		}
	}
	return out
}

// TotalSize sums the size of files.
func TotalSize(files []File) int64 {
	var n int64
	for _, f := range files {
		n += f.Size
	}
	return n
}
