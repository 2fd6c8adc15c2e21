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

// Package state persists resumable upload progress.
//
// The state file is a small JSON record listing every source file (relative
// to the source root) whose commit has been created and referenced by the
// target branch, plus the number of batches committed so far. It is rewritten
// wholesale after every successful batch using a temp-file + rename so a crash
// never leaves a half-written record behind.
package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DefaultFileName is the state file used when none is configured.
const DefaultFileName = ".upload_state.json"

// UploadState tracks which files have been committed and referenced.
type UploadState struct {
	uploaded   map[string]struct{}
	BatchIndex int
	UpdatedAt  time.Time
}

// record is the on-disk shape of UploadState.
type record struct {
	Uploaded   []string `json:"uploaded"`
	BatchIndex int      `json:"batch_index"`
	UpdatedAt  string   `json:"updated_at,omitempty"`
}

// New returns an empty state.
func New() *UploadState {
	return &UploadState{uploaded: make(map[string]struct{})}
}

// Has reports whether relPath was already uploaded.
func (s *UploadState) Has(relPath string) bool {
	_, ok := s.uploaded[relPath]
	return ok
}

// MarkUploaded records relPaths as uploaded.
func (s *UploadState) MarkUploaded(relPaths ...string) {
	if s.uploaded == nil {
		s.uploaded = make(map[string]struct{}, len(relPaths))
	}
	for _, p := range relPaths {
		s.uploaded[p] = struct{}{}
	}
}

// Len returns the number of uploaded paths.
func (s *UploadState) Len() int {
	return len(s.uploaded)
}

// Paths returns the uploaded paths in sorted order.
func (s *UploadState) Paths() []string {
	paths := make([]string, 0, len(s.uploaded))
	for p := range s.uploaded {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Clone returns a deep copy so callers can stage changes without touching s.
func (s *UploadState) Clone() *UploadState {
	c := &UploadState{
		uploaded:   make(map[string]struct{}, len(s.uploaded)),
		BatchIndex: s.BatchIndex,
		UpdatedAt:  s.UpdatedAt,
	}
	for p := range s.uploaded {
		c.uploaded[p] = struct{}{}
	}
	return c
}

// MarshalJSON encodes the state with a sorted path list.
func (s *UploadState) MarshalJSON() ([]byte, error) {
	rec := record{
		Uploaded:   s.Paths(),
		BatchIndex: s.BatchIndex,
	}
	if !s.UpdatedAt.IsZero() {
		rec.UpdatedAt = s.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return json.Marshal(rec)
}

// UnmarshalJSON decodes a state record. Missing fields keep their zero value
// and an unparsable timestamp is dropped rather than rejected.
func (s *UploadState) UnmarshalJSON(data []byte) error {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	s.uploaded = make(map[string]struct{}, len(rec.Uploaded))
	for _, p := range rec.Uploaded {
		if p != "" {
			s.uploaded[p] = struct{}{}
		}
	}
	s.BatchIndex = rec.BatchIndex
	if s.BatchIndex < 0 {
		s.BatchIndex = 0
	}
	s.UpdatedAt = time.Time{}
	if rec.UpdatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, rec.UpdatedAt); err == nil {
			s.UpdatedAt = ts
		}
	}
	return nil
}

// Store loads and saves UploadState at a fixed path.
type Store struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a store for the state file at path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = DefaultFileName
	}
	return &Store{path: path, logger: logger, now: time.Now}
}

// Path returns the state file location.
func (st *Store) Path() string {
	return st.path
}

// Exists reports whether a state file is present.
func (st *Store) Exists() bool {
	_, err := os.Stat(st.path)
	return err == nil
}

// Load reads the persisted state. A missing file yields an empty state; an
// unreadable or corrupt file is logged and also yields an empty state.
func (st *Store) Load() *UploadState {
	data, err := os.ReadFile(st.path)
	if err != nil {
		if !os.IsNotExist(err) {
			st.logger.Warn("state.load.unreadable", "path", st.path, "err", err)
		}
		return New()
	}

	s := New()
	if err := json.Unmarshal(data, s); err != nil {
		st.logger.Warn("state.load.corrupt", "path", st.path, "err", err)
		return New()
	}

	st.logger.Debug("state.load", "path", st.path, "uploaded", s.Len(), "batch_index", s.BatchIndex)
	return s
}

// Save writes s atomically (temp file + fsync + rename).
func (st *Store) Save(s *UploadState) error {
	if dir := filepath.Dir(st.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	s.UpdatedAt = st.now()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmpPath := st.path + ".tmp"
	if err := writeSynced(tmpPath, data); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write state temp: %w", err)
	}

	if err := os.Rename(tmpPath, st.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename state: %w", err)
	}

	st.logger.Debug("state.save", "path", st.path, "uploaded", s.Len(), "batch_index", s.BatchIndex)
	return nil
}

// Clear removes the state file.
func (st *Store) Clear() error {
	if err := os.Remove(st.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove state: %w", err)
	}
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
