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

// Package contract holds request limits and input checks for ghbatch.
//
// These run before any network call so that a bad configuration fails fast
// with a configuration error instead of a rejected API request.
//
// # Blob Size Limit
//
// Each uploaded file becomes one base64-encoded blob request. Files above the
// limit are rejected before upload:
//
//	// Default limit is 50 MiB
//	limit := contract.MaxBlobBytes()
//
//	if r := contract.ValidateBlob(info.Size(), limit); !r.OK {
//	    return fmt.Errorf("%s: %s", path, r.Message)
//	}
//
// The limit can be adjusted via the GHBATCH_MAX_BLOB_BYTES environment
// variable:
//
//	export GHBATCH_MAX_BLOB_BYTES=10485760  # 10 MiB
//
// If the variable is unset or invalid, DefaultMaxBlobBytes is used.
//
// # Names and Paths
//
// ValidateBranch and ValidateDestDir check the branch name and the
// destination directory with the rules the Git Data API applies.
package contract
