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

// Package upload commits batches of local files to a GitHub branch.
//
// A run partitions the pending files into fixed-size batches and drives each
// batch through the same sequence:
//
//	PENDING → OBJECTS_BUILT → COMMITTED → REF_UPDATED → STATE_PERSISTED
//
// Blobs and a tree are created on top of the branch head read just before
// the batch starts, a single-parent commit is created, and the branch is
// moved to it without force. Only then are the batch's files recorded in the
// upload state and the state file rewritten. A failure before REF_UPDATED
// leaves the state untouched, so the batch is retried in full on the next
// run. A failure to persist state after REF_UPDATED is reported as a
// *StateWriteError carrying the commit that already landed.
//
// # Interrupts
//
// The context passed to Scheduler.Run is the interrupt signal. It is checked
// before each batch and once per Config.PollInterval while pausing between
// batches. Network calls of a batch already in flight run on a context that
// ignores the interrupt, so a batch is never split.
//
// # Usage
//
//	sched, err := upload.NewScheduler(client, store, upload.Config{
//	    Branch:     "main",
//	    DestDir:    "incoming",
//	    SourceRoot: resolved.Root,
//	    BatchSize:  50,
//	    Interval:   3 * time.Minute,
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	result, err := sched.Run(ctx, fileset.Pending(resolved.Files, st), st)
package upload
