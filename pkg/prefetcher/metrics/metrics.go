/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package metrics exposes prometheus counters for the prefetch session
// engine (pkg/prefetcher), standing in for the textual counters
// SessionDirect::Dump prints in
// original_source/system/iorap/src/prefetcher/session.cc — the same
// underlying numbers (sessions, readahead entries and bytes, good/bad
// rates), but scraped instead of dumped.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SessionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "iorapd",
		Subsystem: "prefetcher",
		Name:      "sessions_created_total",
		Help:      "Number of prefetch sessions created.",
	})

	SessionsDestroyed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "iorapd",
		Subsystem: "prefetcher",
		Name:      "sessions_destroyed_total",
		Help:      "Number of prefetch sessions destroyed.",
	})

	FilePathsRegistered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iorapd",
		Subsystem: "prefetcher",
		Name:      "file_paths_registered_total",
		Help:      "Number of RegisterFilePath calls, by whether open(2) succeeded.",
	}, []string{"result"})

	ReadAheadEntries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iorapd",
		Subsystem: "prefetcher",
		Name:      "readahead_entries_total",
		Help:      "Number of readahead attempts, by whether they succeeded.",
	}, []string{"result"})

	ReadAheadBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iorapd",
		Subsystem: "prefetcher",
		Name:      "readahead_bytes_total",
		Help:      "Bytes covered by readahead attempts, by whether they succeeded.",
	}, []string{"result"})
)

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// ObserveRegisterFilePath records one RegisterFilePath outcome.
func ObserveRegisterFilePath(success bool) {
	FilePathsRegistered.WithLabelValues(resultLabel(success)).Inc()
}

// ObserveReadAhead records one ReadAhead outcome and the bytes it covered.
func ObserveReadAhead(success bool, length int64) {
	label := resultLabel(success)
	ReadAheadEntries.WithLabelValues(label).Inc()
	if length > 0 {
		ReadAheadBytes.WithLabelValues(label).Add(float64(length))
	}
}

// Collectors returns every collector this package registers, for a caller
// assembling a single prometheus.Registry (pkg/metrics/registry).
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		SessionsCreated,
		SessionsDestroyed,
		FilePathsRegistered,
		ReadAheadEntries,
		ReadAheadBytes,
	}
}
