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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoToken is returned when the client is created without a credential.
var ErrNoToken = errors.New("github token is required")

// APIError is a terminal failure of a single API call: an unexpected status,
// or a 5xx/transport failure that exhausted the retry budget.
type APIError struct {
	Method     string
	Path       string
	StatusCode int    // 0 when the request never produced a response
	Body       string // raw response body (truncated)
	Message    string // "message" field of a JSON error body, if any
	Attempts   int
	Err        error // transport error, if any
}

const maxErrorBody = 2048

func newAPIError(method, path string, status int, body []byte, attempts int) *APIError {
	e := &APIError{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Attempts:   attempts,
	}
	if len(body) > maxErrorBody {
		e.Body = string(body[:maxErrorBody]) + "..."
	} else {
		e.Body = string(body)
	}

	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		e.Message = payload.Message
	}
	return e
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("github api %s %s failed after %d attempt(s): %v", e.Method, e.Path, e.Attempts, e.Err)
	}
	detail := e.Message
	if detail == "" {
		detail = strings.TrimSpace(e.Body)
	}
	return fmt.Sprintf("github api error %d for %s %s: %s", e.StatusCode, e.Method, e.Path, detail)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure was a server error or transport failure.
func (e *APIError) Transient() bool {
	return e.Err != nil || e.StatusCode >= 500
}

// NotFastForward reports whether a ref update was rejected because the new
// commit does not descend from the ref's current target.
func (e *APIError) NotFastForward() bool {
	if e.StatusCode != 422 {
		return false
	}
	text := strings.ToLower(e.Message + " " + e.Body)
	return strings.Contains(text, "fast forward") || strings.Contains(text, "fast-forward")
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
