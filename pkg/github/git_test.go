// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghtest "github.com/kraklabs/ghbatch/internal/testing"
)

func TestParseRepo(t *testing.T) {
	tests := []struct {
		in        string
		owner     string
		repo      string
		wantError bool
	}{
		{in: "acme/data", owner: "acme", repo: "data"},
		{in: "  acme/data ", owner: "acme", repo: "data"},
		{in: "acme", wantError: true},
		{in: "/data", wantError: true},
		{in: "acme/", wantError: true},
		{in: "acme/data/extra", wantError: true},
		{in: "", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			owner, repo, err := ParseRepo(tt.in)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.repo, repo)
		})
	}
}

func TestBranchPath(t *testing.T) {
	assert.Equal(t, "main", branchPath("main"))
	assert.Equal(t, "feature/x", branchPath("feature/x"))
	assert.Equal(t, "data/with%20space", branchPath("data/with space"))
}

func newFakeClient(t *testing.T) (*ghtest.FakeGitHub, *Client) {
	t.Helper()
	gh := ghtest.NewFakeGitHub(t, "acme", "data", "secret")
	return gh, newTestClient(t, gh.URL(), ghtest.NewFakeClock(testEpoch))
}

func TestClient_GetRepository(t *testing.T) {
	_, c := newFakeClient(t)

	repo, err := c.GetRepository(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "acme/data", repo.FullName)
	assert.Equal(t, "main", repo.DefaultBranch)
}

func TestClient_BadCredentials(t *testing.T) {
	gh := ghtest.NewFakeGitHub(t, "acme", "data", "other")
	c := newTestClient(t, gh.URL(), ghtest.NewFakeClock(testEpoch))

	_, err := c.GetRepository(context.Background())
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
}

func TestClient_GetBranchHead(t *testing.T) {
	gh, c := newFakeClient(t)
	ctx := context.Background()

	ref, sha, err := c.GetBranchHead(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, "refs/heads/main", ref)
	assert.Equal(t, gh.Head("main"), sha)

	gh.CreateBranch("feature/x", "main")
	ref, sha, err = c.GetBranchHead(ctx, "feature/x")
	require.NoError(t, err)
	assert.Equal(t, "refs/heads/feature/x", ref)
	assert.Equal(t, gh.Head("main"), sha)

	_, _, err = c.GetBranchHead(ctx, "missing")
	assert.True(t, IsStatus(err, http.StatusNotFound))
}

func TestClient_CommitFlow(t *testing.T) {
	gh, c := newFakeClient(t)
	ctx := context.Background()

	_, head, err := c.GetBranchHead(ctx, "main")
	require.NoError(t, err)
	parent, err := c.GetCommit(ctx, head)
	require.NoError(t, err)
	assert.Equal(t, head, parent.SHA)
	assert.NotEmpty(t, parent.TreeSHA)

	blob, err := c.CreateBlob(ctx, []byte("a,b\n1,2\n"))
	require.NoError(t, err)
	empty, err := c.CreateBlob(ctx, []byte{})
	require.NoError(t, err)
	assert.NotEqual(t, blob, empty)

	tree, err := c.CreateTree(ctx, parent.TreeSHA, []TreeEntry{
		{Path: "incoming/a.csv", Mode: ModeFile, Type: TypeBlob, SHA: blob},
		{Path: "incoming/empty.csv", Mode: ModeFile, Type: TypeBlob, SHA: empty},
	})
	require.NoError(t, err)

	commit, err := c.CreateCommit(ctx, "Add batch", tree, []string{head})
	require.NoError(t, err)

	require.NoError(t, c.UpdateRef(ctx, "main", commit, false))
	assert.Equal(t, commit, gh.Head("main"))

	got, err := c.GetCommit(ctx, commit)
	require.NoError(t, err)
	assert.Equal(t, []string{head}, got.Parents)
	assert.Equal(t, "Add batch", got.Message)

	files := gh.FilesAt(t, commit)
	assert.Equal(t, map[string]string{
		"incoming/a.csv":     "a,b\n1,2\n",
		"incoming/empty.csv": "",
	}, files)
}

func TestClient_UpdateRef_NotFastForward(t *testing.T) {
	gh, c := newFakeClient(t)
	ctx := context.Background()

	_, head, err := c.GetBranchHead(ctx, "main")
	require.NoError(t, err)
	parent, err := c.GetCommit(ctx, head)
	require.NoError(t, err)
	commit, err := c.CreateCommit(ctx, "stale", parent.TreeSHA, []string{head})
	require.NoError(t, err)

	moved := gh.AdvanceBranch("main", map[string]string{"other.txt": "x"})

	err = c.UpdateRef(ctx, "main", commit, false)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.True(t, apiErr.NotFastForward())
	assert.Equal(t, moved, gh.Head("main"))

	require.NoError(t, c.UpdateRef(ctx, "main", commit, true))
	assert.Equal(t, commit, gh.Head("main"))
}

func TestClient_CreateBlob_RetriedAfterServerError(t *testing.T) {
	gh, c := newFakeClient(t)
	gh.Enqueue(http.MethodPost, "/git/blobs", ghtest.ServerError())

	sha, err := c.CreateBlob(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.NotEmpty(t, sha)
	assert.Equal(t, 2, gh.CountRequests(http.MethodPost, "/git/blobs"))
}
