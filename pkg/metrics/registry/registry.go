/*
 * Copyright (c) 2021. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package registry holds the single prometheus.Registry iorapd scrapes from,
// fed by each metrics-emitting package's Collectors() function rather than
// registering container-filesystem metrics directly (the teacher's
// registration shape, repointed at this domain's collectors).
package registry

import "github.com/prometheus/client_golang/prometheus"

var Registry = prometheus.NewRegistry()

// Register adds every collector to the shared Registry. Call once per
// collector set at daemon startup (e.g. Register(prefetchermetrics.Collectors()...)).
func Register(collectors ...prometheus.Collector) {
	Registry.MustRegister(collectors...)
}
