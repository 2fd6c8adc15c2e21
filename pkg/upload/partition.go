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
	"fmt"

	"github.com/kraklabs/ghbatch/pkg/fileset"
)

// Batch is a contiguous slice of the pending file list.
type Batch struct {
	// Number is the 1-based position of the batch within this run.
	Number int
	Files  []fileset.File
}

// RelPaths returns the source-relative paths of the batch's files.
func (b Batch) RelPaths() []string {
	out := make([]string, len(b.Files))
	for i, f := range b.Files {
		out[i] = f.RelPath
	}
	return out
}

// Partition splits files into ceil(len/size) batches. Every batch but the
// last holds exactly size files and the input order is preserved.
func Partition(files []fileset.File, size int) ([]Batch, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", size)
	}
	batches := make([]Batch, 0, (len(files)+size-1)/size)
	for start := 0; start < len(files); start += size {
		end := start + size
		if end > len(files) {
			end = len(files)
		}
		batches = append(batches, Batch{
			Number: len(batches) + 1,
			Files:  files[start:end:end],
		})
	}
	return batches, nil
}
