// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors_ExitCodes(t *testing.T) {
	cause := stderrors.New("422 Update is not a fast forward")

	tests := []struct {
		name     string
		err      *UserError
		code     int
		kind     string
		wrapping bool
	}{
		{"config", NewConfigError("m", "c", "f", cause), ExitConfig, "config", true},
		{"storage", NewStorageError("m", "c", "f", cause), ExitStorage, "storage", true},
		{"network", NewNetworkError("m", "c", "f", cause), ExitNetwork, "network", true},
		{"input", NewInputError("m", "c", "f"), ExitInput, "input", false},
		{"permission", NewPermissionError("m", "c", "f", cause), ExitPermission, "permission", true},
		{"not found", NewNotFoundError("m", "c", "f"), ExitNotFound, "not_found", false},
		{"conflict", NewConflictError("m", "c", "f", cause), ExitConflict, "conflict", true},
		{"internal", NewInternalError("m", "c", "f", cause), ExitInternal, "internal", true},
	}

	seen := map[int]string{ExitSuccess: "success"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.ExitCode)
			assert.Equal(t, tt.kind, tt.err.Kind())
			assert.Equal(t, "m", tt.err.Message)
			assert.Equal(t, "c", tt.err.Cause)
			assert.Equal(t, "f", tt.err.Fix)
			assert.Equal(t, tt.wrapping, stderrors.Is(tt.err, cause))
		})
		prev, dup := seen[tt.code]
		assert.False(t, dup, "%s reuses exit code %d of %s", tt.name, tt.code, prev)
		seen[tt.code] = tt.name
	}
}

func TestUserError_Error(t *testing.T) {
	assert.Equal(t, "Cannot save upload state: disk full",
		NewStorageError("Cannot save upload state", "", "", stderrors.New("disk full")).Error())
	assert.Equal(t, "Invalid batch size", NewInputError("Invalid batch size", "", "").Error())
}

func TestUserError_ChainInspection(t *testing.T) {
	base := stderrors.New("connection reset")
	inner := NewNetworkError("GitHub API request failed", "", "", fmt.Errorf("POST /git/blobs: %w", base))
	outer := fmt.Errorf("batch 3: %w", inner)

	assert.ErrorIs(t, outer, base)

	var ue *UserError
	require.ErrorAs(t, outer, &ue)
	assert.Same(t, inner, ue)
	assert.Equal(t, ExitNetwork, ExitCodeOf(outer))
}

func TestUserError_Kind_UnknownCode(t *testing.T) {
	assert.Empty(t, (&UserError{ExitCode: 42}).Kind())
}

func TestUserError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *UserError
		want string
	}{
		{
			name: "all fields",
			err:  NewConflictError("Branch main moved", "Not a fast-forward", "Rerun", nil),
			want: "Error: Branch main moved\nCause: Not a fast-forward\nFix:   Rerun\n",
		},
		{
			name: "no cause",
			err:  NewInputError("Unknown shell", "", "Use bash, zsh or fish"),
			want: "Error: Unknown shell\nFix:   Use bash, zsh or fish\n",
		},
		{
			name: "message only",
			err:  NewInternalError("Upload failed", "", "", nil),
			want: "Error: Upload failed\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Format(true))
		})
	}
}

func TestUserError_Format_RespectsNoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	out := NewConfigError("No GitHub token found", "GITHUB_TOKEN is unset", "Export it", nil).Format(false)
	assert.NotContains(t, out, "\x1b[")
	assert.Contains(t, out, "Cause: GITHUB_TOKEN is unset")
}

func TestUserError_ToJSON(t *testing.T) {
	got := NewNotFoundError("Branch not found", "acme/data has no branch ingest", "").ToJSON()
	assert.Equal(t, ErrorJSON{
		Error:    "Branch not found",
		Kind:     "not_found",
		Cause:    "acme/data has no branch ingest",
		ExitCode: ExitNotFound,
	}, got)

	raw, err := json.Marshal(got)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"fix"`)
}

func TestExitCodeOf(t *testing.T) {
	conflict := NewConflictError("moved", "", "", stderrors.New("422"))

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"user error", conflict, ExitConflict},
		{"wrapped user error", fmt.Errorf("run: %w", conflict), ExitConflict},
		{"plain error", stderrors.New("boom"), ExitInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeOf(tt.err))
		})
	}
}

func TestReport(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	perm := NewPermissionError("GitHub rejected the token", "401 Bad credentials", "Use a token with repo scope", nil)

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		code := Report(&buf, fmt.Errorf("upload: %w", perm), false)
		assert.Equal(t, ExitPermission, code)
		assert.Equal(t, perm.Format(true), buf.String())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		code := Report(&buf, perm, true)
		assert.Equal(t, ExitPermission, code)

		var got ErrorJSON
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, perm.ToJSON(), got)
	})

	t.Run("plain error is internal", func(t *testing.T) {
		var buf bytes.Buffer
		code := Report(&buf, stderrors.New("nil scheduler"), true)
		assert.Equal(t, ExitInternal, code)

		var got ErrorJSON
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "nil scheduler", got.Error)
		assert.Equal(t, "internal", got.Kind)
	})

	t.Run("nil writes nothing", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Equal(t, ExitSuccess, Report(&buf, nil, false))
		assert.Zero(t, buf.Len())
	})
}

func TestFatalError_NilIsNoop(t *testing.T) {
	FatalError(nil, false)
}
