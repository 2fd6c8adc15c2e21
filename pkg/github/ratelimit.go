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
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Rate-limit response headers.
const (
	headerLimit      = "X-RateLimit-Limit"
	headerRemaining  = "X-RateLimit-Remaining"
	headerReset      = "X-RateLimit-Reset"
	headerUsed       = "X-RateLimit-Used"
	headerRetryAfter = "Retry-After"
)

// RateLimit is the quota reported by the last response. It is never persisted.
type RateLimit struct {
	Limit     int
	Remaining int
	Used      int
	Reset     time.Time
	Known     bool // Remaining and Reset were both present and parsable
	Malformed bool // Remaining/Reset headers were present but unparsable
}

// parseRateLimit extracts quota metadata from response headers.
func parseRateLimit(h http.Header) RateLimit {
	var rl RateLimit
	rem, reset := h.Get(headerRemaining), h.Get(headerReset)
	if rem == "" || reset == "" {
		return rl
	}

	remaining, errRem := strconv.Atoi(strings.TrimSpace(rem))
	resetUnix, errReset := strconv.ParseInt(strings.TrimSpace(reset), 10, 64)
	if errRem != nil || errReset != nil {
		rl.Malformed = true
		return rl
	}

	rl.Known = true
	rl.Remaining = remaining
	rl.Reset = time.Unix(resetUnix, 0)
	rl.Limit, _ = strconv.Atoi(h.Get(headerLimit))
	rl.Used, _ = strconv.Atoi(h.Get(headerUsed))
	return rl
}

// parseRetryAfter returns the Retry-After delay in seconds form, if present.
func parseRetryAfter(h http.Header) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get(headerRetryAfter))
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// minRateLimitWait bounds how fast a rate-limited request is reissued.
const minRateLimitWait = time.Second

// rateLimitDelay decides whether a response is a rate-limit rejection and, if
// so, how long to wait before reissuing the request.
func (c *Client) rateLimitDelay(status int, header http.Header, rl RateLimit) (time.Duration, bool) {
	if status != http.StatusForbidden && status != http.StatusTooManyRequests {
		return 0, false
	}

	switch {
	case rl.Known && rl.Remaining == 0:
		// A reset already in the past still waits the margin.
		untilReset := max(rl.Reset.Sub(c.clock.Now()), 0)
		return untilReset + c.retry.RateLimitMargin, true
	case rl.Malformed:
		return c.retry.FallbackRateLimitWait + c.retry.RateLimitMargin, true
	}

	if d, ok := parseRetryAfter(header); ok {
		return max(d, minRateLimitWait), true
	}
	return 0, false
}
