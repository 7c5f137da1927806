package cluster

//
// Copyright (c) 2019 ARM Limited.
//
// SPDX-License-Identifier: MIT
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to
// deal in the Software without restriction, including without limitation the
// rights to use, copy, modify, merge, publish, distribute, sublicense, and/or
// sell copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//

import (
	"github.com/prometheus/client_golang/prometheus"
)

type ringMetrics struct {
	criticalSectionEntries prometheus.Counter
	handOffs               prometheus.Counter
	recoveredTokens        prometheus.Counter
	undeliveredRequests    prometheus.Counter
	exclusionViolations    prometheus.Counter
	requestHops            prometheus.Histogram
	ringSize               prometheus.Gauge
}

func newRingMetrics(registerer prometheus.Registerer) *ringMetrics {
	metrics := &ringMetrics{
		criticalSectionEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tokenring",
			Name:      "critical_section_entries_total",
			Help:      "Number of admissions to the critical section",
		}),
		handOffs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tokenring",
			Name:      "hand_offs_total",
			Help:      "Number of committed token hand-offs",
		}),
		recoveredTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tokenring",
			Name:      "recovered_tokens_total",
			Help:      "Number of times a departing holder's token was re-homed",
		}),
		undeliveredRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tokenring",
			Name:      "undelivered_requests_total",
			Help:      "Number of requests that exceeded their hop bound",
		}),
		exclusionViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tokenring",
			Name:      "mutual_exclusion_violations_total",
			Help:      "Number of admissions that found another node in the critical section",
		}),
		requestHops: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tokenring",
			Name:      "request_hops",
			Help:      "Hops travelled by delivered requests",
			Buckets:   prometheus.LinearBuckets(0, 1, 21),
		}),
		ringSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tokenring",
			Name:      "ring_size",
			Help:      "Number of nodes in the ring",
		}),
	}

	if registerer != nil {
		registerer.MustRegister(
			metrics.criticalSectionEntries,
			metrics.handOffs,
			metrics.recoveredTokens,
			metrics.undeliveredRequests,
			metrics.exclusionViolations,
			metrics.requestHops,
			metrics.ringSize,
		)
	}

	return metrics
}
