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

package upload

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsUpload holds Prometheus metrics for upload runs.
type metricsUpload struct {
	once sync.Once

	batches       *prometheus.CounterVec
	filesUploaded prometheus.Counter
	bytesUploaded prometheus.Counter
	interrupts    prometheus.Counter
	batchSeconds  prometheus.Histogram
}

var uploadMetrics metricsUpload

func (m *metricsUpload) init() {
	m.once.Do(func() {
		m.batches = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ghbatch_upload_batches_total", Help: "Batches by outcome"}, []string{"result"})
		m.filesUploaded = prometheus.NewCounter(prometheus.CounterOpts{Name: "ghbatch_upload_files_total", Help: "Files committed to the target branch"})
		m.bytesUploaded = prometheus.NewCounter(prometheus.CounterOpts{Name: "ghbatch_upload_bytes_total", Help: "Blob bytes committed to the target branch"})
		m.interrupts = prometheus.NewCounter(prometheus.CounterOpts{Name: "ghbatch_upload_interrupts_total", Help: "Runs stopped by an interrupt"})

		buckets := []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}
		m.batchSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "ghbatch_upload_batch_seconds", Help: "Time from batch start to persisted state", Buckets: buckets})

		prometheus.MustRegister(m.batches, m.filesUploaded, m.bytesUploaded, m.interrupts, m.batchSeconds)
	})
}

func recordBatchCommitted(files int, bytes int64, d time.Duration) {
	uploadMetrics.init()
	uploadMetrics.batches.WithLabelValues("committed").Inc()
	uploadMetrics.filesUploaded.Add(float64(files))
	uploadMetrics.bytesUploaded.Add(float64(bytes))
	uploadMetrics.batchSeconds.Observe(d.Seconds())
}

func recordBatchResult(result string) {
	uploadMetrics.init()
	uploadMetrics.batches.WithLabelValues(result).Inc()
}

func recordInterrupt() { uploadMetrics.init(); uploadMetrics.interrupts.Inc() }
