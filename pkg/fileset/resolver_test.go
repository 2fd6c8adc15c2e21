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

package fileset

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/ghbatch/pkg/state"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
}

func relPaths(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelPath
	}
	return out
}

func TestResolver_Resolve(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b.csv":          "b",
		"a.csv":          "a",
		"sub/c.csv":      "c",
		"sub/deep/d.csv": "d",
		"notes.txt":      "skip",
		".git/x.csv":     "skip",
		"tmp/e.csv":      "skip",
	})

	res, err := NewResolver(nil).Resolve(root, Options{Exclude: []string{"tmp/**"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.csv", "b.csv", "sub/c.csv", "sub/deep/d.csv"}, relPaths(res.Files))
	assert.Equal(t, filepath.Join(res.Root, "sub", "c.csv"), res.Files[2].FullPath)
	assert.Equal(t, int64(1), res.Files[0].Size)
	assert.Equal(t, 2, res.Skipped["excluded_dir"])
}

func TestResolver_MaxFileSize(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"small.csv": "ok",
		"big.csv":   "this one is far too large",
	})

	res, err := NewResolver(nil).Resolve(root, Options{MaxFileSize: 4})
	require.NoError(t, err)
	assert.Equal(t, []string{"small.csv"}, relPaths(res.Files))
	assert.Equal(t, 1, res.Skipped["too_large"])
}

func TestResolver_ShuffleIsReproducible(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		files[name+".csv"] = name
	}
	writeTree(t, root, files)

	r := NewResolver(nil)
	first, err := r.Resolve(root, Options{Shuffle: true, Seed: 42})
	require.NoError(t, err)
	second, err := r.Resolve(root, Options{Shuffle: true, Seed: 42})
	require.NoError(t, err)

	assert.Equal(t, relPaths(first.Files), relPaths(second.Files))
	assert.Equal(t, int64(42), first.Seed)
	assert.ElementsMatch(t, []string{"a.csv", "b.csv", "c.csv", "d.csv", "e.csv", "f.csv", "g.csv", "h.csv"}, relPaths(first.Files))
}

func TestResolver_MissingRoot(t *testing.T) {
	_, err := NewResolver(nil).Resolve(filepath.Join(t.TempDir(), "nope"), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSourceDir))
}

func TestResolver_RootIsFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"f.csv": "x"})

	_, err := NewResolver(nil).Resolve(filepath.Join(root, "f.csv"), Options{})
	assert.ErrorIs(t, err, ErrNoSourceDir)
}

func TestResolver_FollowsFileSymlinks(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	writeTree(t, root, map[string]string{"plain.csv": "p"})
	writeTree(t, other, map[string]string{"real.csv": "linked content"})

	if err := os.Symlink(filepath.Join(other, "real.csv"), filepath.Join(root, "linked.csv")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(other, "missing.csv"), filepath.Join(root, "dangling.csv")))

	res, err := NewResolver(nil).Resolve(root, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"linked.csv", "plain.csv"}, relPaths(res.Files))
	assert.Equal(t, int64(len("linked content")), res.Files[0].Size)
	assert.Equal(t, filepath.Join(res.Root, "linked.csv"), res.Files[0].FullPath)
	assert.Equal(t, 1, res.Skipped["stat_error"])
	assert.Zero(t, res.Skipped["not_regular"])
}

func TestResolver_UnreadableDirectoryFails(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.csv": "a", "locked/b.csv": "b"})

	denied := errors.New("permission denied")
	r := NewResolver(nil)
	r.walk = func(root string, fn fs.WalkDirFunc) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err == nil && d.IsDir() && d.Name() == "locked" {
				return fn(path, d, denied)
			}
			return fn(path, d, err)
		})
	}

	res, err := r.Resolve(root, Options{})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrUnreadable)
	assert.ErrorIs(t, err, denied)
	assert.Contains(t, err.Error(), "locked")
}

func TestPending(t *testing.T) {
	files := []File{{RelPath: "a.csv"}, {RelPath: "b.csv"}, {RelPath: "c.csv"}, {RelPath: "d.csv"}}

	st := state.New()
	st.MarkUploaded("b.csv", "d.csv", "unrelated.csv")

	assert.Equal(t, []string{"a.csv", "c.csv"}, relPaths(Pending(files, st)))
	assert.Equal(t, relPaths(files), relPaths(Pending(files, nil)))
	assert.Equal(t, relPaths(files), relPaths(Pending(files, state.New())))
}

func TestTotalSize(t *testing.T) {
	assert.Equal(t, int64(6), TotalSize([]File{{Size: 1}, {Size: 2}, {Size: 3}}))
	assert.Equal(t, int64(0), TotalSize(nil))
}
