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

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/ghbatch/pkg/github"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadConfig_DefaultFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_ExplicitFileMissing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	writeFile(t, path, `
repo: octo/datasets
source_dir: export
dest_dir: raw/2026
batch_size: 25
interval: 90s
exclude:
  - "tmp/**"
shuffle: true
seed: 42
api:
  base_url: https://ghe.example.com/api/v3
  max_attempts: 5
  initial_backoff: 500ms
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "octo/datasets", cfg.Repo)
	assert.Equal(t, "export", cfg.SourceDir)
	assert.Equal(t, "raw/2026", cfg.DestDir)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, 90*time.Second, cfg.Interval)
	assert.Equal(t, []string{"tmp/**"}, cfg.Exclude)
	assert.True(t, cfg.Shuffle)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, "https://ghe.example.com/api/v3", cfg.API.BaseURL)

	// untouched keys keep their defaults
	assert.Equal(t, DefaultConfig().IncludePattern, cfg.IncludePattern)
	assert.Equal(t, DefaultConfig().StateFile, cfg.StateFile)

	rc := cfg.RetryConfig()
	assert.Equal(t, 5, rc.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, rc.InitialBackoff)
	assert.Equal(t, github.DefaultRetryConfig().RateLimitMargin, rc.RateLimitMargin)
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	writeFile(t, path, "batch_size: [not a number\n")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestConfigTemplate_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	writeFile(t, path, renderConfigTemplate("octo/datasets"))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, "octo/datasets", cfg.Repo)
	assert.Equal(t, def.SourceDir, cfg.SourceDir)
	assert.Equal(t, def.DestDir, cfg.DestDir)
	assert.Equal(t, def.BatchSize, cfg.BatchSize)
	assert.Equal(t, def.Interval, cfg.Interval)
	assert.Equal(t, def.IncludePattern, cfg.IncludePattern)
	assert.Empty(t, cfg.Exclude)
	assert.Equal(t, def.StateFile, cfg.StateFile)
	assert.Equal(t, def.MessagePrefix, cfg.MessagePrefix)
	assert.Equal(t, def.API, cfg.API)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	writeFile(t, path, "GITHUB_TOKEN=from-file\nGHBATCH_TEST_EXTRA=1\n")

	t.Run("existing environment wins", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "from-env")
		t.Setenv("GHBATCH_TEST_EXTRA", "")
		os.Unsetenv("GHBATCH_TEST_EXTRA")

		require.NoError(t, loadEnvFile(path, true))
		assert.Equal(t, "from-env", os.Getenv("GITHUB_TOKEN"))
		assert.Equal(t, "1", os.Getenv("GHBATCH_TEST_EXTRA"))
	})

	t.Run("missing default file is ignored", func(t *testing.T) {
		assert.NoError(t, loadEnvFile(filepath.Join(dir, "absent.env"), false))
	})

	t.Run("missing explicit file fails", func(t *testing.T) {
		assert.Error(t, loadEnvFile(filepath.Join(dir, "absent.env"), true))
	})
}

func TestTokenFromEnv(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GH_TOKEN", "")
	assert.Empty(t, tokenFromEnv())

	t.Setenv("GH_TOKEN", " gh-token ")
	assert.Equal(t, "gh-token", tokenFromEnv())

	t.Setenv("GITHUB_TOKEN", "github-token")
	assert.Equal(t, "github-token", tokenFromEnv())
}
