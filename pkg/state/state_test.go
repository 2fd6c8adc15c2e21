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

package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LoadMissingReturnsEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "state.json"), nil)

	s := store.Load()
	require.NotNil(t, s)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.BatchIndex)
	assert.False(t, store.Exists())
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	store := NewStore(path, nil)

	s := New()
	s.MarkUploaded("b/c.csv", "a.csv")
	s.BatchIndex = 2
	require.NoError(t, store.Save(s))

	loaded := store.Load()
	assert.Equal(t, []string{"a.csv", "b/c.csv"}, loaded.Paths())
	assert.Equal(t, 2, loaded.BatchIndex)
	assert.False(t, loaded.UpdatedAt.IsZero())

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not survive a successful save")
}

func TestStore_FileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewStore(path, nil)

	s := New()
	s.MarkUploaded("z.csv", "m.csv")
	s.BatchIndex = 7
	require.NoError(t, store.Save(s))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, []any{"m.csv", "z.csv"}, raw["uploaded"])
	assert.Equal(t, float64(7), raw["batch_index"])
}

func TestStore_LoadTolerant(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantPaths []string
		wantIndex int
	}{
		{"corrupt json", `{"uploaded": [`, []string{}, 0},
		{"missing batch_index", `{"uploaded": ["a.csv"]}`, []string{"a.csv"}, 0},
		{"missing uploaded", `{"batch_index": 4}`, []string{}, 4},
		{"unknown fields ignored", `{"uploaded": ["x"], "batch_index": 1, "extra": true}`, []string{"x"}, 1},
		{"negative index clamped", `{"batch_index": -3}`, []string{}, 0},
		{"bad timestamp dropped", `{"uploaded": [], "updated_at": "yesterday"}`, []string{}, 0},
		{"empty file", ``, []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			s := NewStore(path, nil).Load()
			assert.Equal(t, tt.wantPaths, s.Paths())
			assert.Equal(t, tt.wantIndex, s.BatchIndex)
		})
	}
}

func TestStore_SaveReplacesPreviousRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewStore(path, nil)

	first := New()
	first.MarkUploaded("a.csv")
	first.BatchIndex = 1
	require.NoError(t, store.Save(first))

	second := first.Clone()
	second.MarkUploaded("b.csv")
	second.BatchIndex = 2
	require.NoError(t, store.Save(second))

	loaded := store.Load()
	assert.Equal(t, []string{"a.csv", "b.csv"}, loaded.Paths())
	assert.Equal(t, 2, loaded.BatchIndex)
	assert.Equal(t, 1, first.Len(), "clone must not alias the original set")
}

func TestStore_SaveUnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	store := NewStore(filepath.Join(blocker, "state.json"), nil)
	err := store.Save(New())
	assert.Error(t, err)
}

func TestStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewStore(path, nil)

	require.NoError(t, store.Clear(), "clearing a missing file is not an error")
	require.NoError(t, store.Save(New()))
	assert.True(t, store.Exists())
	require.NoError(t, store.Clear())
	assert.False(t, store.Exists())
}

func TestUploadState_MarkAndHas(t *testing.T) {
	var s UploadState
	assert.False(t, s.Has("a"))
	s.MarkUploaded("a", "a", "b")
	assert.True(t, s.Has("a"))
	assert.True(t, s.Has("b"))
	assert.Equal(t, 2, s.Len())
}
