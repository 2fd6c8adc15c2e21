// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package contract

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
)

const (
	// DefaultMaxBlobBytes is the largest file content submitted as one blob.
	// Base64 encoding grows the request body by a third.
	DefaultMaxBlobBytes = 50 << 20 // 50 MiB

	// MaxCommitMessageBytes bounds the generated commit message.
	MaxCommitMessageBytes = 64 << 10
)

// MaxBlobBytes returns the effective per-file blob limit.
// Controlled via env GHBATCH_MAX_BLOB_BYTES; falls back to DefaultMaxBlobBytes.
func MaxBlobBytes() int64 {
	if v := os.Getenv("GHBATCH_MAX_BLOB_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return DefaultMaxBlobBytes
}

// ValidationResult represents the result of a validation check.
type ValidationResult struct {
	OK      bool
	Message string
}

func ok() *ValidationResult { return &ValidationResult{OK: true} }

func fail(format string, args ...any) *ValidationResult {
	return &ValidationResult{OK: false, Message: fmt.Sprintf(format, args...)}
}

// ValidateBlob checks a file size against limit. A limit <= 0 uses MaxBlobBytes.
func ValidateBlob(size, limit int64) *ValidationResult {
	if limit <= 0 {
		limit = MaxBlobBytes()
	}
	if size > limit {
		return fail("blob of %d bytes exceeds limit of %d bytes", size, limit)
	}
	return ok()
}

// ValidateBatchSize rejects non-positive batch sizes.
func ValidateBatchSize(n int) *ValidationResult {
	if n <= 0 {
		return fail("batch size must be at least 1, got %d", n)
	}
	return ok()
}

// ValidateDestDir checks a repository-relative destination directory.
// Empty means the repository root.
func ValidateDestDir(dir string) *ValidationResult {
	if dir == "" {
		return ok()
	}
	if strings.Contains(dir, "\\") {
		return fail("destination %q must use forward slashes", dir)
	}
	if strings.HasPrefix(dir, "/") {
		return fail("destination %q must be relative to the repository root", dir)
	}
	for _, seg := range strings.Split(strings.TrimSuffix(dir, "/"), "/") {
		switch seg {
		case "":
			return fail("destination %q contains an empty path segment", dir)
		case ".", "..":
			return fail("destination %q must not contain %q", dir, seg)
		case ".git":
			return fail("destination %q must not point inside .git", dir)
		}
	}
	if path.Clean(dir) != strings.TrimSuffix(dir, "/") {
		return fail("destination %q is not a clean path", dir)
	}
	return ok()
}

// ValidateBranch applies the subset of git check-ref-format rules that the
// API enforces for branch names. Empty means the default branch.
func ValidateBranch(name string) *ValidationResult {
	if name == "" {
		return ok()
	}
	switch {
	case strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/"):
		return fail("branch %q must not start or end with '/'", name)
	case strings.HasPrefix(name, "-"):
		return fail("branch %q must not start with '-'", name)
	case strings.HasSuffix(name, ".lock") || strings.HasSuffix(name, "."):
		return fail("branch %q has an invalid suffix", name)
	case strings.Contains(name, "..") || strings.Contains(name, "//") || strings.Contains(name, "@{"):
		return fail("branch %q contains an invalid sequence", name)
	case name == "@":
		return fail("branch %q is reserved", name)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(" ~^:?*[\\", r) {
			return fail("branch %q contains invalid character %q", name, r)
		}
	}
	return ok()
}
