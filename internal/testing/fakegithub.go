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

package testing

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// Response is a canned reply used by Enqueue.
type Response struct {
	Status int
	Body   string
	Header http.Header
}

// ServerError returns a 502 response.
func ServerError() Response {
	return Response{Status: http.StatusBadGateway, Body: `{"message":"Server Error"}`}
}

// RateLimited returns a 403 reporting an exhausted quota that resets at reset.
func RateLimited(reset time.Time) Response {
	h := http.Header{}
	h.Set("X-RateLimit-Limit", "5000")
	h.Set("X-RateLimit-Remaining", "0")
	h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
	return Response{Status: http.StatusForbidden, Body: `{"message":"API rate limit exceeded"}`, Header: h}
}

// Request is a recorded call.
type Request struct {
	Method string
	Path   string
	Body   string
}

// FakeCommit is a commit stored by the fake.
type FakeCommit struct {
	SHA     string
	Tree    string
	Parents []string
	Message string
}

type scripted struct {
	method    string
	contains  string
	responses []Response
}

// FakeGitHub is an in-memory Git Data API server for one repository.
type FakeGitHub struct {
	Owner         string
	Repo          string
	Token         string
	DefaultBranch string

	server *httptest.Server

	mu       sync.Mutex
	blobs    map[string][]byte
	trees    map[string]map[string]string // tree sha -> path -> blob sha
	commits  map[string]FakeCommit
	refs     map[string]string // branch -> commit sha
	requests []Request
	scripts  []*scripted
	seq      int
}

// NewFakeGitHub starts a fake with a "main" branch holding one empty commit.
// The server is closed when the test ends.
func NewFakeGitHub(t *testing.T, owner, repo, token string) *FakeGitHub {
	t.Helper()

	f := &FakeGitHub{
		Owner:         owner,
		Repo:          repo,
		Token:         token,
		DefaultBranch: "main",
		blobs:         make(map[string][]byte),
		trees:         make(map[string]map[string]string),
		commits:       make(map[string]FakeCommit),
		refs:          make(map[string]string),
	}

	emptyTree := f.storeTree(map[string]string{})
	root := f.storeCommit("Initial commit", emptyTree, nil)
	f.refs["main"] = root

	prefix := "/repos/" + owner + "/" + repo
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+prefix, f.handleRepo)
	mux.HandleFunc("GET "+prefix+"/git/ref/heads/{branch...}", f.handleGetRef)
	mux.HandleFunc("GET "+prefix+"/git/commits/{sha}", f.handleGetCommit)
	mux.HandleFunc("POST "+prefix+"/git/blobs", f.handleCreateBlob)
	mux.HandleFunc("POST "+prefix+"/git/trees", f.handleCreateTree)
	mux.HandleFunc("POST "+prefix+"/git/commits", f.handleCreateCommit)
	mux.HandleFunc("PATCH "+prefix+"/git/refs/heads/{branch...}", f.handleUpdateRef)

	f.server = httptest.NewServer(f.intercept(mux))
	t.Cleanup(f.server.Close)
	return f
}

// URL returns the server base URL.
func (f *FakeGitHub) URL() string {
	return f.server.URL
}

// Enqueue makes the next len(responses) requests whose method equals method
// and whose path contains pathContains return the canned responses in order.
func (f *FakeGitHub) Enqueue(method, pathContains string, responses ...Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, &scripted{method: method, contains: pathContains, responses: responses})
}

// Requests returns every request received so far.
func (f *FakeGitHub) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

// CountRequests counts recorded requests matching method and path substring.
func (f *FakeGitHub) CountRequests(method, pathContains string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Method == method && strings.Contains(r.Path, pathContains) {
			n++
		}
	}
	return n
}

// Head returns the commit a branch points to ("" if absent).
func (f *FakeGitHub) Head(branch string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refs[branch]
}

// Commit returns a stored commit.
func (f *FakeGitHub) Commit(sha string) (FakeCommit, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.commits[sha]
	return c, ok
}

// History walks first parents from the branch head back to the root commit.
func (f *FakeGitHub) History(branch string) []FakeCommit {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []FakeCommit
	sha := f.refs[branch]
	for sha != "" {
		c, ok := f.commits[sha]
		if !ok {
			break
		}
		out = append(out, c)
		if len(c.Parents) == 0 {
			break
		}
		sha = c.Parents[0]
	}
	return out
}

// FilesAt returns path -> content for the tree of a commit.
func (f *FakeGitHub) FilesAt(t *testing.T, commitSHA string) map[string]string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.commits[commitSHA]
	if !ok {
		t.Fatalf("fake github: unknown commit %s", commitSHA)
	}
	out := make(map[string]string)
	for path, blob := range f.trees[c.Tree] {
		out[path] = string(f.blobs[blob])
	}
	return out
}

// BlobCount returns the number of distinct blobs stored.
func (f *FakeGitHub) BlobCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.blobs)
}

// AdvanceBranch commits files on top of branch as an external writer would.
func (f *FakeGitHub) AdvanceBranch(branch string, files map[string]string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	parent := f.refs[branch]
	tree := copyTree(f.trees[f.commits[parent].Tree])
	for path, content := range files {
		tree[path] = f.storeBlob([]byte(content))
	}
	sha := f.storeCommit("external change", f.storeTree(tree), []string{parent})
	f.refs[branch] = sha
	return sha
}

// CreateBranch points a new branch at the head of from.
func (f *FakeGitHub) CreateBranch(name, from string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs[name] = f.refs[from]
}

// intercept records requests, checks auth and serves scripted responses.
func (f *FakeGitHub) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		f.mu.Lock()
		f.requests = append(f.requests, Request{Method: r.Method, Path: r.URL.Path, Body: string(body)})
		canned, ok := f.nextScripted(r.Method, r.URL.Path)
		f.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+f.Token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
			return
		}
		if ok {
			for k, vs := range canned.Header {
				for _, v := range vs {
					w.Header().Add(k, v)
				}
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(canned.Status)
			_, _ = w.Write([]byte(canned.Body))
			return
		}

		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", "4999")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
		next.ServeHTTP(w, r)
	})
}

// nextScripted pops the next canned response matching the request. Callers hold f.mu.
func (f *FakeGitHub) nextScripted(method, path string) (Response, bool) {
	for i, s := range f.scripts {
		if s.method != method || !strings.Contains(path, s.contains) {
			continue
		}
		resp := s.responses[0]
		s.responses = s.responses[1:]
		if len(s.responses) == 0 {
			f.scripts = append(f.scripts[:i], f.scripts[i+1:]...)
		}
		return resp, true
	}
	return Response{}, false
}

func (f *FakeGitHub) handleRepo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"full_name":      f.Owner + "/" + f.Repo,
		"default_branch": f.DefaultBranch,
		"private":        true,
	})
}

func (f *FakeGitHub) handleGetRef(w http.ResponseWriter, r *http.Request) {
	branch := r.PathValue("branch")
	f.mu.Lock()
	sha, ok := f.refs[branch]
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ref":    "refs/heads/" + branch,
		"object": map[string]string{"sha": sha, "type": "commit"},
	})
}

func (f *FakeGitHub) handleGetCommit(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	c, ok := f.commits[r.PathValue("sha")]
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	parents := make([]map[string]string, len(c.Parents))
	for i, p := range c.Parents {
		parents[i] = map[string]string{"sha": p}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sha":     c.SHA,
		"message": c.Message,
		"tree":    map[string]string{"sha": c.Tree},
		"parents": parents,
	})
}

func (f *FakeGitHub) handleCreateBlob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
		return
	}
	content := []byte(req.Content)
	if req.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "invalid base64"})
			return
		}
		content = decoded
	}

	f.mu.Lock()
	sha := f.storeBlob(content)
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]string{"sha": sha})
}

func (f *FakeGitHub) handleCreateTree(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BaseTree string `json:"base_tree"`
		Tree     []struct {
			Path string `json:"path"`
			Mode string `json:"mode"`
			Type string `json:"type"`
			SHA  string `json:"sha"`
		} `json:"tree"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tree := map[string]string{}
	if req.BaseTree != "" {
		base, ok := f.trees[req.BaseTree]
		if !ok {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "base_tree is not a valid tree"})
			return
		}
		tree = copyTree(base)
	}
	for _, e := range req.Tree {
		if _, ok := f.blobs[e.SHA]; !ok || e.Type != "blob" || e.Path == "" {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "tree entry is invalid: " + e.Path})
			return
		}
		tree[e.Path] = e.SHA
	}
	writeJSON(w, http.StatusCreated, map[string]string{"sha": f.storeTree(tree)})
}

func (f *FakeGitHub) handleCreateCommit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string   `json:"message"`
		Tree    string   `json:"tree"`
		Parents []string `json:"parents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.trees[req.Tree]; !ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Tree SHA does not exist"})
		return
	}
	for _, p := range req.Parents {
		if _, ok := f.commits[p]; !ok {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Parent SHA does not exist or is not a commit object"})
			return
		}
	}
	writeJSON(w, http.StatusCreated, map[string]string{"sha": f.storeCommit(req.Message, req.Tree, req.Parents)})
}

func (f *FakeGitHub) handleUpdateRef(w http.ResponseWriter, r *http.Request) {
	branch := r.PathValue("branch")
	var req struct {
		SHA   string `json:"sha"`
		Force bool   `json:"force"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	current, ok := f.refs[branch]
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Reference does not exist"})
		return
	}
	if _, ok := f.commits[req.SHA]; !ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Object does not exist"})
		return
	}
	if !req.Force && !f.isAncestor(current, req.SHA) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Update is not a fast forward"})
		return
	}
	f.refs[branch] = req.SHA
	writeJSON(w, http.StatusOK, map[string]any{
		"ref":    "refs/heads/" + branch,
		"object": map[string]string{"sha": req.SHA, "type": "commit"},
	})
}

// isAncestor reports whether ancestor is reachable from sha. Callers hold f.mu.
func (f *FakeGitHub) isAncestor(ancestor, sha string) bool {
	seen := map[string]bool{}
	queue := []string{sha}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == ancestor {
			return true
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		queue = append(queue, f.commits[cur].Parents...)
	}
	return false
}

// storeBlob stores content under its git blob id. Callers hold f.mu.
func (f *FakeGitHub) storeBlob(content []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)
	sha := hex.EncodeToString(h.Sum(nil))
	f.blobs[sha] = append([]byte(nil), content...)
	return sha
}

// storeTree stores a flattened tree. Callers hold f.mu.
func (f *FakeGitHub) storeTree(entries map[string]string) string {
	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha1.New()
	h.Write([]byte("tree"))
	for _, p := range paths {
		fmt.Fprintf(h, "\x00%s\x00%s", p, entries[p])
	}
	sha := hex.EncodeToString(h.Sum(nil))
	f.trees[sha] = copyTree(entries)
	return sha
}

// storeCommit stores a commit with a unique id. Callers hold f.mu.
func (f *FakeGitHub) storeCommit(message, tree string, parents []string) string {
	f.seq++
	h := sha1.New()
	fmt.Fprintf(h, "commit %d\x00%s\x00%s\x00%s", f.seq, tree, strings.Join(parents, ","), message)
	sha := hex.EncodeToString(h.Sum(nil))
	f.commits[sha] = FakeCommit{
		SHA:     sha,
		Tree:    tree,
		Parents: append([]string(nil), parents...),
		Message: message,
	}
	return sha
}

func copyTree(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
