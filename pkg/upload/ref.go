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

	"github.com/kraklabs/ghbatch/pkg/github"
)

// NonFastForwardError means the branch moved to a commit the new commit
// does not descend from. The run stops; nothing is merged or rebased.
type NonFastForwardError struct {
	Branch string
	SHA    string
	Err    error
}

func (e *NonFastForwardError) Error() string {
	return fmt.Sprintf("branch %s was updated concurrently: moving it to %s is not a fast-forward", e.Branch, e.SHA)
}

func (e *NonFastForwardError) Unwrap() error {
	return e.Err
}

// RefUpdater moves a branch to a new commit.
type RefUpdater struct {
	api    GitData
	force  bool
	logger *slog.Logger
}

// NewRefUpdater creates an updater. With force=false the server refuses any
// update that would drop commits from the branch.
func NewRefUpdater(api GitData, force bool, logger *slog.Logger) *RefUpdater {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefUpdater{api: api, force: force, logger: logger}
}

// Update points refs/heads/<branch> at sha.
func (r *RefUpdater) Update(ctx context.Context, branch, sha string) error {
	if r.force {
		r.logger.Warn("upload.ref.force", "branch", branch, "sha", sha)
	}

	err := r.api.UpdateRef(ctx, branch, sha, r.force)
	if err == nil {
		return nil
	}

	var apiErr *github.APIError
	if errors.As(err, &apiErr) && apiErr.NotFastForward() {
		return &NonFastForwardError{Branch: branch, SHA: sha, Err: err}
	}
	return fmt.Errorf("update ref heads/%s: %w", branch, err)
}
