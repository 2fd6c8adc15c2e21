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

// Package testing provides test helpers for ghbatch.
//
// # Fake GitHub
//
// NewFakeGitHub starts an httptest server that implements the subset of the
// GitHub Git Data API used by the uploader, backed by in-memory blobs,
// trees, commits and refs:
//
//	func TestUpload(t *testing.T) {
//	    gh := ghtest.NewFakeGitHub(t, "acme", "data", "token")
//	    client, _ := github.NewClient(github.Config{
//	        BaseURL: gh.URL(), Owner: "acme", Repo: "data", Token: "token",
//	    }, nil)
//
//	    // ... run code against client ...
//
//	    files := gh.FilesAt(t, gh.Head("main"))
//	    require.Equal(t, "a,b\n", files["incoming/a.csv"])
//	}
//
// Scripted failures are queued with Enqueue; the next matching requests get
// the canned responses instead of normal handling:
//
//	gh.Enqueue("POST", "/git/blobs", ghtest.ServerError(), ghtest.RateLimited(clock.Now().Add(5*time.Second)))
//
// AdvanceBranch simulates an external writer moving the branch.
//
// # Fake Clock
//
// FakeClock implements github.Clock without sleeping. It records every
// requested delay and advances its own notion of "now", so backoff and
// rate-limit waits can be asserted directly.
package testing
