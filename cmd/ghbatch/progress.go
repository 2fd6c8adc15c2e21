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
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// ProgressConfig determines if and how progress should be displayed.
type ProgressConfig struct {
	// Enabled is false with --json or -q, or when stderr is not a TTY.
	Enabled bool

	// Writer receives the bar (stderr).
	Writer io.Writer

	NoColor bool
}

// NewProgressConfig creates a progress configuration from global flags and
// TTY detection on stderr.
func NewProgressConfig(globals GlobalFlags) ProgressConfig {
	return ProgressConfig{
		Enabled: !globals.Quiet && isatty.IsTerminal(os.Stderr.Fd()),
		Writer:  os.Stderr,
		NoColor: globals.NoColor,
	}
}

// NewProgressBar creates a bar counting uploaded files. It returns nil when
// progress is disabled; callers check for nil.
func NewProgressBar(cfg ProgressConfig, totalFiles int64) *progressbar.ProgressBar {
	if !cfg.Enabled || totalFiles <= 0 {
		return nil
	}

	return progressbar.NewOptions64(totalFiles,
		progressbar.OptionSetDescription(batchDescription(0, 0)),
		progressbar.OptionSetWriter(cfg.Writer),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(!cfg.NoColor),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// batchDescription labels the bar with the position in the run.
func batchDescription(number, total int) string {
	if total == 0 {
		return "Uploading"
	}
	return fmt.Sprintf("Batch %d/%d", number, total)
}

// waitDescription labels the bar while the scheduler pauses.
func waitDescription(number, total int, interval time.Duration) string {
	return fmt.Sprintf("Batch %d/%d, next in %s", number, total, interval)
}
