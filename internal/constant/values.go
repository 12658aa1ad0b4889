/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// constants of iorapd CLI config

package constant

const (
	DefaultLogLevel string = "info"

	DefaultRootDir = "/data/misc/iorapd"
	DefaultAddress = "/data/misc/iorapd/iorapd.sock"

	// DefaultMetricsAddress is where the prometheus HTTP listener binds;
	// loopback-only since nothing outside the device should reach it.
	DefaultMetricsAddress = "127.0.0.1:9469"

	// Log rotation
	DefaultRotateLogMaxSize    = 50 // megabytes
	DefaultRotateLogMaxBackups = 5
	DefaultRotateLogMaxAge     = 0 // days
	DefaultRotateLogLocalTime  = true
	DefaultRotateLogCompress   = true

	// Page size assumed by the compiled-trace format; see spec §4.3.
	PageSize = 4096

	// Property defaults, overridable via config.PropertyStore; see spec §6.
	DefaultPerfettoEnable           = true
	DefaultReadaheadEnable          = true
	DefaultReadaheadStrategy        = "fadvise"
	DefaultReadaheadOutOfProcess    = false
	DefaultPerfettoMaxTraces        = 10
	DefaultMaintenanceMinTraces     = 1
	DefaultCompilerTimeoutMillis    = 600000
	DefaultVerboseIPC               = false
	WatchdogPollInterval            = 10 // milliseconds, spec §5
	PackageManagerReconnectTimeout  = 60 // seconds, spec §5
	PackageManagerReconnectInterval = 1  // seconds, spec §5
	TraceCaptureWindowSeconds       = 10 // spec §4.7

	PrebuiltTraceDir = "/product/iorap-trace"

	// Default fork+exec target for the maintenance controller's compile step.
	DefaultCompilerBinaryPath = "/system/bin/iorap.cmd.compiler"

	// Poll interval the fork+exec watchdog uses to check on the compiler
	// child, spec §5 "maintenance compiler watchdog".
	CompilerWatchdogPollIntervalMs = 10

	// Upper bound on compiler children the maintenance controller runs at
	// once; the original forks them one at a time off a single job thread,
	// this just widens that to a small fixed pool.
	DefaultMaintenanceMaxConcurrentCompiles = 2
)
