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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultBaseURL is the public GitHub REST endpoint.
const DefaultBaseURL = "https://api.github.com"

const (
	apiVersion       = "2022-11-28"
	defaultUserAgent = "ghbatch/1.0"
)

var defaultAccept = []int{http.StatusOK, http.StatusCreated}

// RetryConfig controls retry and rate-limit behaviour.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts for 5xx/transport failures.
	MaxAttempts int
	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential delay.
	MaxBackoff time.Duration
	// Multiplier grows the delay between attempts.
	Multiplier float64
	// RateLimitMargin is added to every quota wait, including one whose reset
	// time has already passed. Zero selects the default.
	RateLimitMargin time.Duration
	// FallbackRateLimitWait is used when rate-limit headers are present but unparsable.
	FallbackRateLimitWait time.Duration
}

// DefaultRetryConfig returns the retry policy used when none is configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:           3,
		InitialBackoff:        2 * time.Second,
		MaxBackoff:            60 * time.Second,
		Multiplier:            2.0,
		RateLimitMargin:       5 * time.Second,
		FallbackRateLimitWait: 60 * time.Second,
	}
}

func (rc RetryConfig) withDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if rc.MaxAttempts <= 0 {
		rc.MaxAttempts = def.MaxAttempts
	}
	if rc.InitialBackoff <= 0 {
		rc.InitialBackoff = def.InitialBackoff
	}
	if rc.MaxBackoff <= 0 {
		rc.MaxBackoff = def.MaxBackoff
	}
	if rc.Multiplier <= 1.0 {
		rc.Multiplier = def.Multiplier
	}
	if rc.RateLimitMargin <= 0 {
		rc.RateLimitMargin = def.RateLimitMargin
	}
	if rc.FallbackRateLimitWait <= 0 {
		rc.FallbackRateLimitWait = def.FallbackRateLimitWait
	}
	return rc
}

// backoff returns the delay after the n-th failed attempt (n >= 1).
func (rc RetryConfig) backoff(n int) time.Duration {
	d := float64(rc.InitialBackoff)
	for i := 1; i < n; i++ {
		d *= rc.Multiplier
		if time.Duration(d) >= rc.MaxBackoff {
			return rc.MaxBackoff
		}
	}
	if time.Duration(d) > rc.MaxBackoff {
		return rc.MaxBackoff
	}
	return time.Duration(d)
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Owner      string
	Repo       string
	Token      string
	UserAgent  string
	Timeout    time.Duration
	Retry      RetryConfig
	HTTPClient *http.Client // optional; Timeout is ignored when set
	Clock      Clock        // optional; defaults to SystemClock
}

// Client issues authenticated Git Data API calls for one repository.
type Client struct {
	baseURL   string
	owner     string
	repo      string
	token     string
	userAgent string
	http      *http.Client
	retry     RetryConfig
	clock     Clock
	logger    *slog.Logger

	mu       sync.Mutex
	lastRate RateLimit
}

// NewClient creates a client. It performs no network I/O.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, ErrNoToken
	}
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("repository owner and name are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	return &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		owner:     cfg.Owner,
		repo:      cfg.Repo,
		token:     cfg.Token,
		userAgent: cfg.UserAgent,
		http:      httpClient,
		retry:     cfg.Retry.withDefaults(),
		clock:     clock,
		logger:    logger,
	}, nil
}

// FullName returns "owner/repo".
func (c *Client) FullName() string {
	return c.owner + "/" + c.repo
}

// RateLimit returns the quota observed on the most recent response.
func (c *Client) RateLimit() RateLimit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRate
}

func (c *Client) observe(rl RateLimit) {
	if !rl.Known {
		return
	}
	c.mu.Lock()
	c.lastRate = rl
	c.mu.Unlock()
	apiMetrics.init()
	apiMetrics.rateRemaining.Set(float64(rl.Remaining))
}

// Do performs one API call. body (if non-nil) is sent as JSON and a successful
// response is decoded into out (if non-nil). accept lists the statuses treated
// as success; it defaults to 200 and 201.
//
// Server errors and transport failures are retried with exponential backoff
// up to RetryConfig.MaxAttempts. Rate-limit rejections wait for the quota
// reset and are retried without counting against that budget. Every other
// failure is returned as *APIError.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, accept ...int) error {
	if len(accept) == 0 {
		accept = defaultAccept
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	url := c.baseURL + path
	failures := 0
	for {
		status, header, respBody, err := c.send(ctx, method, url, payload)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			if failures >= c.retry.MaxAttempts {
				return &APIError{Method: method, Path: path, Attempts: failures, Err: err}
			}
			if err := c.wait(ctx, method, path, failures, err.Error()); err != nil {
				return err
			}
			continue
		}

		rl := parseRateLimit(header)
		c.observe(rl)

		if delay, limited := c.rateLimitDelay(status, header, rl); limited {
			recordRateLimitWait(delay)
			c.logger.Warn("api.ratelimit.wait",
				"method", method,
				"path", path,
				"status", status,
				"remaining", rl.Remaining,
				"reset", rl.Reset,
				"wait", delay.String(),
			)
			if err := c.clock.Sleep(ctx, delay); err != nil {
				return err
			}
			continue
		}

		if containsStatus(accept, status) {
			if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
				if err := json.Unmarshal(respBody, out); err != nil {
					return fmt.Errorf("decode %s %s response: %w", method, path, err)
				}
			}
			return nil
		}

		if status >= 500 {
			failures++
			if failures < c.retry.MaxAttempts {
				if err := c.wait(ctx, method, path, failures, fmt.Sprintf("status %d", status)); err != nil {
					return err
				}
				continue
			}
			return newAPIError(method, path, status, respBody, failures)
		}

		return newAPIError(method, path, status, respBody, failures+1)
	}
}

// wait sleeps for the backoff that follows the given failure count.
func (c *Client) wait(ctx context.Context, method, path string, failures int, reason string) error {
	delay := c.retry.backoff(failures)
	recordRetry()
	c.logger.Warn("api.retry",
		"method", method,
		"path", path,
		"attempt", failures,
		"max_attempts", c.retry.MaxAttempts,
		"sleep", delay.String(),
		"reason", reason,
	)
	return c.clock.Sleep(ctx, delay)
}

// send performs a single HTTP exchange and reads the whole body.
func (c *Client) send(ctx context.Context, method, url string, payload []byte) (int, http.Header, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		recordRequest(method, 0, time.Since(start))
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	recordRequest(method, resp.StatusCode, time.Since(start))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, resp.Header, body, nil
}

func containsStatus(list []int, status int) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}
