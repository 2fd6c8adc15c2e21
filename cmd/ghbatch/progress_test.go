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
	"bytes"
	"testing"
	"time"
)

func TestNewProgressConfig(t *testing.T) {
	tests := []struct {
		name        string
		globals     GlobalFlags
		wantNoColor bool
	}{
		{"default flags", GlobalFlags{}, false},
		{"quiet", GlobalFlags{Quiet: true}, false},
		{"json sets quiet", GlobalFlags{JSON: true, Quiet: true}, false},
		{"no color propagates", GlobalFlags{NoColor: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewProgressConfig(tt.globals)
			// stderr is not a TTY under go test
			if cfg.Enabled {
				t.Error("progress should be disabled without a TTY")
			}
			if cfg.NoColor != tt.wantNoColor {
				t.Errorf("NoColor = %v, want %v", cfg.NoColor, tt.wantNoColor)
			}
			if cfg.Writer == nil {
				t.Error("Writer should default to stderr")
			}
		})
	}
}

func TestNewProgressBar(t *testing.T) {
	t.Run("disabled returns nil", func(t *testing.T) {
		if bar := NewProgressBar(ProgressConfig{Enabled: false}, 10); bar != nil {
			t.Error("expected nil bar when disabled")
		}
	})

	t.Run("nothing to upload returns nil", func(t *testing.T) {
		var buf bytes.Buffer
		if bar := NewProgressBar(ProgressConfig{Enabled: true, Writer: &buf}, 0); bar != nil {
			t.Error("expected nil bar for zero files")
		}
	})

	t.Run("enabled counts files", func(t *testing.T) {
		var buf bytes.Buffer
		bar := NewProgressBar(ProgressConfig{Enabled: true, Writer: &buf, NoColor: true}, 5)
		if bar == nil {
			t.Fatal("expected a bar")
		}
		if err := bar.Add(2); err != nil {
			t.Fatalf("Add: %v", err)
		}
		if got := bar.State().CurrentNum; got != 2 {
			t.Errorf("CurrentNum = %d, want 2", got)
		}
		_ = bar.Finish()
	})
}

func TestBatchDescription(t *testing.T) {
	tests := []struct {
		number, total int
		want          string
	}{
		{0, 0, "Uploading"},
		{1, 3, "Batch 1/3"},
		{3, 3, "Batch 3/3"},
	}
	for _, tt := range tests {
		if got := batchDescription(tt.number, tt.total); got != tt.want {
			t.Errorf("batchDescription(%d, %d) = %q, want %q", tt.number, tt.total, got, tt.want)
		}
	}

	if got := waitDescription(1, 3, 3*time.Minute); got != "Batch 1/3, next in 3m0s" {
		t.Errorf("waitDescription() = %q", got)
	}
}
