// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxBlobBytes(t *testing.T) {
	t.Setenv("GHBATCH_MAX_BLOB_BYTES", "")
	assert.Equal(t, int64(DefaultMaxBlobBytes), MaxBlobBytes())

	t.Setenv("GHBATCH_MAX_BLOB_BYTES", "1024")
	assert.Equal(t, int64(1024), MaxBlobBytes())

	t.Setenv("GHBATCH_MAX_BLOB_BYTES", "-5")
	assert.Equal(t, int64(DefaultMaxBlobBytes), MaxBlobBytes())

	t.Setenv("GHBATCH_MAX_BLOB_BYTES", "lots")
	assert.Equal(t, int64(DefaultMaxBlobBytes), MaxBlobBytes())
}

func TestValidateBlob(t *testing.T) {
	assert.True(t, ValidateBlob(0, 10).OK)
	assert.True(t, ValidateBlob(10, 10).OK)

	r := ValidateBlob(11, 10)
	assert.False(t, r.OK)
	assert.Contains(t, r.Message, "exceeds limit")

	t.Setenv("GHBATCH_MAX_BLOB_BYTES", "4")
	assert.False(t, ValidateBlob(5, 0).OK)
}

func TestValidateBatchSize(t *testing.T) {
	assert.True(t, ValidateBatchSize(1).OK)
	assert.False(t, ValidateBatchSize(0).OK)
	assert.False(t, ValidateBatchSize(-3).OK)
}

func TestValidateDestDir(t *testing.T) {
	valid := []string{"", "incoming", "incoming/", "data/csv/2024"}
	for _, d := range valid {
		assert.True(t, ValidateDestDir(d).OK, d)
	}

	invalid := []string{"/abs", "a\\b", "a//b", "../up", "a/./b", "a/..", ".git/hooks", "x/.git"}
	for _, d := range invalid {
		assert.False(t, ValidateDestDir(d).OK, d)
	}
}

func TestValidateBranch(t *testing.T) {
	valid := []string{"", "main", "feature/upload-2024", "data_v1.2"}
	for _, b := range valid {
		assert.True(t, ValidateBranch(b).OK, b)
	}

	invalid := []string{"/main", "main/", "-x", "x.lock", "x.", "a..b", "a//b", "a@{1}", "@", "has space", "a~1", "a:b", "a*"}
	for _, b := range invalid {
		assert.False(t, ValidateBranch(b).OK, b)
	}
}
