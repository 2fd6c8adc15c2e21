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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kraklabs/ghbatch/pkg/fileset"
	"github.com/kraklabs/ghbatch/pkg/github"
	"github.com/kraklabs/ghbatch/pkg/state"
	"github.com/kraklabs/ghbatch/pkg/upload"
)

// DefaultConfigFile is read from the working directory when --config is not given.
const DefaultConfigFile = ".ghbatch.yaml"

// Config is the run configuration. Every key can be overridden by the
// upload command's flags.
type Config struct {
	Repo           string        `yaml:"repo"`
	SourceDir      string        `yaml:"source_dir"`
	DestDir        string        `yaml:"dest_dir"`
	Branch         string        `yaml:"branch"`
	BatchSize      int           `yaml:"batch_size"`
	Interval       time.Duration `yaml:"interval"`
	IncludePattern string        `yaml:"include_pattern"`
	Exclude        []string      `yaml:"exclude"`
	Shuffle        bool          `yaml:"shuffle"`
	Seed           int64         `yaml:"seed"`
	StateFile      string        `yaml:"state_file"`
	MessagePrefix  string        `yaml:"message_prefix"`
	MaxFileSize    int64         `yaml:"max_file_size"`
	API            APIConfig     `yaml:"api"`
}

// APIConfig tunes the GitHub client.
type APIConfig struct {
	BaseURL         string        `yaml:"base_url"`
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialBackoff  time.Duration `yaml:"initial_backoff"`
	RateLimitMargin time.Duration `yaml:"rate_limit_margin"`
	Timeout         time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	retry := github.DefaultRetryConfig()
	return &Config{
		SourceDir:      "data",
		DestDir:        upload.DefaultDestDir,
		BatchSize:      upload.DefaultBatchSize,
		Interval:       upload.DefaultInterval,
		IncludePattern: fileset.DefaultPattern,
		StateFile:      state.DefaultFileName,
		MessagePrefix:  upload.DefaultMessagePrefix,
		API: APIConfig{
			BaseURL:         github.DefaultBaseURL,
			MaxAttempts:     retry.MaxAttempts,
			InitialBackoff:  retry.InitialBackoff,
			RateLimitMargin: retry.RateLimitMargin,
			Timeout:         60 * time.Second,
		},
	}
}

// LoadConfig reads path on top of DefaultConfig. An empty path means
// DefaultConfigFile, which may be absent; an explicit path must exist.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// RetryConfig converts the api section into client retry settings.
func (c *Config) RetryConfig() github.RetryConfig {
	rc := github.DefaultRetryConfig()
	if c.API.MaxAttempts > 0 {
		rc.MaxAttempts = c.API.MaxAttempts
	}
	if c.API.InitialBackoff > 0 {
		rc.InitialBackoff = c.API.InitialBackoff
	}
	if c.API.RateLimitMargin >= 0 {
		rc.RateLimitMargin = c.API.RateLimitMargin
	}
	return rc
}

// loadEnvFile loads KEY=VALUE pairs from path without overriding variables
// that are already set. A missing default file is not an error.
func loadEnvFile(path string, explicit bool) error {
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// tokenFromEnv returns GITHUB_TOKEN, falling back to GH_TOKEN.
func tokenFromEnv() string {
	for _, key := range []string{"GITHUB_TOKEN", "GH_TOKEN"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

const configTemplate = `# ghbatch configuration
# Flags passed to 'ghbatch upload' override these values.

# Target repository (owner/name).
repo: %q

# Local directory scanned for files, and the directory they land in
# inside the repository.
source_dir: data
dest_dir: incoming

# Branch to append commits to. Empty uses the repository default branch.
branch: ""

# Files per commit and pause between commits.
batch_size: 50
interval: 3m

# Anchored glob matched against paths relative to source_dir.
include_pattern: "**/*.csv"
exclude: []

# Randomize upload order. seed 0 picks a new seed on every run.
shuffle: false
seed: 0

# Resume file recording uploaded paths.
state_file: .upload_state.json

message_prefix: CSV batch

# Files above this size (bytes) are skipped. 0 disables the check.
max_file_size: 0

api:
  base_url: https://api.github.com
  max_attempts: 3
  initial_backoff: 2s
  rate_limit_margin: 5s
  timeout: 60s
`

// renderConfigTemplate returns the commented default configuration.
func renderConfigTemplate(repo string) string {
	return fmt.Sprintf(configTemplate, repo)
}
