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

package github

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsAPI holds Prometheus metrics for API calls.
type metricsAPI struct {
	once sync.Once

	requests       *prometheus.CounterVec
	retries        prometheus.Counter
	rateWaits      prometheus.Counter
	rateWaitSecs   prometheus.Counter
	rateRemaining  prometheus.Gauge
	requestSeconds prometheus.Histogram
}

var apiMetrics metricsAPI

func (m *metricsAPI) init() {
	m.once.Do(func() {
		m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ghbatch_api_requests_total", Help: "GitHub API requests by method and status class"}, []string{"method", "code"})
		m.retries = prometheus.NewCounter(prometheus.CounterOpts{Name: "ghbatch_api_retries_total", Help: "Retries after 5xx or transport failures"})
		m.rateWaits = prometheus.NewCounter(prometheus.CounterOpts{Name: "ghbatch_api_ratelimit_waits_total", Help: "Waits caused by rate-limit rejections"})
		m.rateWaitSecs = prometheus.NewCounter(prometheus.CounterOpts{Name: "ghbatch_api_ratelimit_wait_seconds_total", Help: "Seconds spent waiting for quota resets"})
		m.rateRemaining = prometheus.NewGauge(prometheus.GaugeOpts{Name: "ghbatch_api_ratelimit_remaining", Help: "Remaining request quota reported by the last response"})

		buckets := []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
		m.requestSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "ghbatch_api_request_seconds", Help: "GitHub API request latency", Buckets: buckets})

		prometheus.MustRegister(m.requests, m.retries, m.rateWaits, m.rateWaitSecs, m.rateRemaining, m.requestSeconds)
	})
}

func statusClass(code int) string {
	if code == 0 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}

func recordRequest(method string, code int, d time.Duration) {
	apiMetrics.init()
	apiMetrics.requests.WithLabelValues(method, statusClass(code)).Inc()
	apiMetrics.requestSeconds.Observe(d.Seconds())
}

func recordRetry() { apiMetrics.init(); apiMetrics.retries.Inc() }

func recordRateLimitWait(d time.Duration) {
	apiMetrics.init()
	apiMetrics.rateWaits.Inc()
	apiMetrics.rateWaitSecs.Add(d.Seconds())
}
