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

// Package github is a small client for the GitHub Git Data API.
//
// It exposes the handful of low-level object operations an uploader needs
// (blobs, trees, commits and refs) on top of a single request primitive,
// Client.Do, which owns retry and rate-limit handling:
//
//   - 5xx responses and transport failures are retried with exponential
//     backoff, up to RetryConfig.MaxAttempts attempts in total.
//   - 403/429 responses that report an exhausted quota
//     (X-RateLimit-Remaining: 0) block until X-RateLimit-Reset plus a safety
//     margin and then reissue the identical request. Retry-After is honoured
//     the same way. These waits never consume the 5xx retry budget.
//   - Any other unexpected status is returned immediately as *APIError.
//
// # Quick Start
//
//	client, err := github.NewClient(github.Config{
//	    Owner: "acme",
//	    Repo:  "datasets",
//	    Token: os.Getenv("GITHUB_TOKEN"),
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	ref, head, err := client.GetBranchHead(ctx, "main")
//
// Waiting is delegated to a Clock so tests can observe backoff and
// rate-limit sleeps without spending wall time.
package github
