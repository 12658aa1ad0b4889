/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package models

// Package is a row of the packages table: unique on (Name, Version).
// Deleting a Package cascades to its Activities (pkg/store enforces this).
type Package struct {
	ID      int64
	Name    string
	Version int
}

// Activity is a row of the activities table: unique on (Name, PackageID).
// Cascade-deletes with its Package.
type Activity struct {
	ID        int64
	Name      string
	PackageID int64
}

// Temperature classifies how warm the process was when an app launch
// started, mirroring AppLaunchHistoryModel::Temperature. Only Cold launches
// are eligible for trace compilation (spec.md §3).
type Temperature int32

const (
	TemperatureUninitialized Temperature = -1
	TemperatureCold          Temperature = 1
	TemperatureWarm          Temperature = 2
	TemperatureHot           Temperature = 3
)

func (t Temperature) String() string {
	switch t {
	case TemperatureCold:
		return "cold"
	case TemperatureWarm:
		return "warm"
	case TemperatureHot:
		return "hot"
	default:
		return "uninitialized"
	}
}

// AppLaunchHistory is a row of the app_launch_histories table. Cascade-
// deletes with its Activity. Eligible for compilation only when
// Temperature is Cold, TraceEnabled is true, and IntentStartedNs is set
// (see pkg/store SelectActivityHistoryForCompile).
type AppLaunchHistory struct {
	ID                 int64
	ActivityID         int64
	Temperature        Temperature
	TraceEnabled       bool
	ReadaheadEnabled   bool
	IntentStartedNs    *uint64
	TotalTimeNs        *uint64
	ReportFullyDrawnNs *uint64
}

// EligibleForCompile reports whether this history row may feed the
// compiler: cold, traced, and with a recorded intent-start timestamp.
func (h AppLaunchHistory) EligibleForCompile() bool {
	return h.Temperature == TemperatureCold && h.TraceEnabled && h.IntentStartedNs != nil
}

// RawTrace is a row of the raw_traces table: the on-disk perfetto trace
// captured for one AppLaunchHistory. Cascade-deletes with its history.
// There is at most one RawTrace per history in practice.
type RawTrace struct {
	ID        int64
	HistoryID int64
	FilePath  string
}

// PrefetchFile is a row of the prefetch_files table: the compiled trace
// ready to be replayed for an Activity. At most one per ActivityID;
// recompiling replaces the row. Cascade-deletes with its Activity.
type PrefetchFile struct {
	ID         int64
	ActivityID int64
	FilePath   string
}
