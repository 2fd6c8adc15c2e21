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
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Tree entry constants for regular files.
const (
	ModeFile = "100644"
	TypeBlob = "blob"
)

// Repository is the subset of repository metadata the uploader uses.
type Repository struct {
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	Private       bool   `json:"private"`
}

// Commit is a commit object as returned by the Git Data API.
type Commit struct {
	SHA     string
	TreeSHA string
	Parents []string
	Message string
}

// TreeEntry is one path -> object mapping submitted when creating a tree.
type TreeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
}

type shaObject struct {
	SHA string `json:"sha"`
}

// ParseRepo splits "owner/repo".
func ParseRepo(s string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("repository must be in the form owner/repo, got %q", s)
	}
	return owner, repo, nil
}

func (c *Client) repoPath() string {
	return "/repos/" + url.PathEscape(c.owner) + "/" + url.PathEscape(c.repo)
}

// branchPath escapes each segment so branches like "feature/x" stay intact.
func branchPath(branch string) string {
	parts := strings.Split(branch, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// GetRepository fetches repository metadata.
func (c *Client) GetRepository(ctx context.Context) (*Repository, error) {
	var repo Repository
	if err := c.Do(ctx, http.MethodGet, c.repoPath(), nil, &repo, http.StatusOK); err != nil {
		return nil, err
	}
	return &repo, nil
}

// GetBranchHead returns the fully qualified ref and the commit it points to.
func (c *Client) GetBranchHead(ctx context.Context, branch string) (ref, sha string, err error) {
	var out struct {
		Ref    string `json:"ref"`
		Object struct {
			SHA  string `json:"sha"`
			Type string `json:"type"`
		} `json:"object"`
	}
	path := c.repoPath() + "/git/ref/heads/" + branchPath(branch)
	if err := c.Do(ctx, http.MethodGet, path, nil, &out, http.StatusOK); err != nil {
		return "", "", err
	}
	if out.Object.SHA == "" {
		return "", "", fmt.Errorf("branch %s: response has no commit sha", branch)
	}
	return out.Ref, out.Object.SHA, nil
}

// GetCommit fetches a commit and its tree.
func (c *Client) GetCommit(ctx context.Context, sha string) (*Commit, error) {
	var out struct {
		SHA     string      `json:"sha"`
		Message string      `json:"message"`
		Tree    shaObject   `json:"tree"`
		Parents []shaObject `json:"parents"`
	}
	path := c.repoPath() + "/git/commits/" + url.PathEscape(sha)
	if err := c.Do(ctx, http.MethodGet, path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	if out.Tree.SHA == "" {
		return nil, fmt.Errorf("commit %s: response has no tree sha", sha)
	}

	commit := &Commit{SHA: out.SHA, TreeSHA: out.Tree.SHA, Message: out.Message}
	for _, p := range out.Parents {
		commit.Parents = append(commit.Parents, p.SHA)
	}
	return commit, nil
}

// CreateBlob uploads content (base64-encoded on the wire) and returns its sha.
func (c *Client) CreateBlob(ctx context.Context, content []byte) (string, error) {
	body := map[string]string{
		"content":  base64.StdEncoding.EncodeToString(content),
		"encoding": "base64",
	}
	var out shaObject
	if err := c.Do(ctx, http.MethodPost, c.repoPath()+"/git/blobs", body, &out, http.StatusCreated); err != nil {
		return "", err
	}
	return out.SHA, nil
}

// CreateTree creates a tree from baseTree plus entries. Paths not listed in
// entries are carried over from baseTree by the server.
func (c *Client) CreateTree(ctx context.Context, baseTree string, entries []TreeEntry) (string, error) {
	body := struct {
		BaseTree string      `json:"base_tree,omitempty"`
		Tree     []TreeEntry `json:"tree"`
	}{BaseTree: baseTree, Tree: entries}

	var out shaObject
	if err := c.Do(ctx, http.MethodPost, c.repoPath()+"/git/trees", body, &out, http.StatusCreated); err != nil {
		return "", err
	}
	return out.SHA, nil
}

// CreateCommit creates a commit object.
func (c *Client) CreateCommit(ctx context.Context, message, tree string, parents []string) (string, error) {
	if parents == nil {
		parents = []string{}
	}
	body := struct {
		Message string   `json:"message"`
		Tree    string   `json:"tree"`
		Parents []string `json:"parents"`
	}{Message: message, Tree: tree, Parents: parents}

	var out shaObject
	if err := c.Do(ctx, http.MethodPost, c.repoPath()+"/git/commits", body, &out, http.StatusCreated); err != nil {
		return "", err
	}
	return out.SHA, nil
}

// UpdateRef moves refs/heads/<branch> to sha. With force=false the server
// rejects updates that are not fast-forwards.
func (c *Client) UpdateRef(ctx context.Context, branch, sha string, force bool) error {
	body := struct {
		SHA   string `json:"sha"`
		Force bool   `json:"force"`
	}{SHA: sha, Force: force}

	path := c.repoPath() + "/git/refs/heads/" + branchPath(branch)
	return c.Do(ctx, http.MethodPatch, path, body, nil, http.StatusOK)
}
