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
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/ghbatch/pkg/github"
)

func staleCommit(t *testing.T, client *github.Client) string {
	t.Helper()
	ctx := context.Background()
	head := headOf(t, client, "main")
	sha, err := client.CreateCommit(ctx, "stale", head.TreeSHA, []string{head.CommitSHA})
	require.NoError(t, err)
	return sha
}

func TestRefUpdater_FastForward(t *testing.T) {
	gh, client := newFakeAPI(t)
	commit := staleCommit(t, client)

	require.NoError(t, NewRefUpdater(client, false, nil).Update(context.Background(), "main", commit))
	assert.Equal(t, commit, gh.Head("main"))
}

func TestRefUpdater_NonFastForward(t *testing.T) {
	gh, client := newFakeAPI(t)
	commit := staleCommit(t, client)
	external := gh.AdvanceBranch("main", map[string]string{"other.csv": "x"})

	err := NewRefUpdater(client, false, nil).Update(context.Background(), "main", commit)
	require.Error(t, err)

	var nff *NonFastForwardError
	require.True(t, errors.As(err, &nff))
	assert.Equal(t, "main", nff.Branch)
	assert.Equal(t, commit, nff.SHA)
	assert.True(t, github.IsStatus(err, http.StatusUnprocessableEntity))
	assert.Equal(t, external, gh.Head("main"))
}

func TestRefUpdater_Force(t *testing.T) {
	gh, client := newFakeAPI(t)
	commit := staleCommit(t, client)
	gh.AdvanceBranch("main", map[string]string{"other.csv": "x"})

	require.NoError(t, NewRefUpdater(client, true, nil).Update(context.Background(), "main", commit))
	assert.Equal(t, commit, gh.Head("main"))
}

func TestRefUpdater_OtherErrors(t *testing.T) {
	_, client := newFakeAPI(t)
	commit := staleCommit(t, client)

	err := NewRefUpdater(client, false, nil).Update(context.Background(), "missing", commit)
	require.Error(t, err)

	var nff *NonFastForwardError
	assert.False(t, errors.As(err, &nff))
	assert.Contains(t, err.Error(), "update ref heads/missing")
}
