/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package maintenance

import "github.com/prometheus/client_golang/prometheus"

var (
	compileAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "iorapd",
		Subsystem: "maintenance",
		Name:      "compile_attempts_total",
		Help:      "Number of activities submitted to the compiler.",
	})

	compileFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "iorapd",
		Subsystem: "maintenance",
		Name:      "compile_failures_total",
		Help:      "Number of activity compiles that failed or timed out.",
	})

	compileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "iorapd",
		Subsystem: "maintenance",
		Name:      "compile_duration_seconds",
		Help:      "Wall-clock duration of one iorap.cmd.compiler invocation.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

// Collectors returns every collector this package registers, for a caller
// assembling a single prometheus.Registry (pkg/metrics/registry).
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{compileAttempts, compileFailures, compileDuration}
}
