/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package launch

// VersionLookup resolves a package name to its currently installed version
// code, the Go analogue of the injected PackageVersionMap
// (version_map_->GetOrQueryPackageVersion) in event_manager.cc. A real
// implementation queries PackageManager (out of scope: this module has no
// Android binder client); ok is false when the lookup can't be completed
// ("maybe package manager is down"), in which case the caller skips DB work
// for this event exactly as the original does.
type VersionLookup interface {
	Version(pkg string) (version int, ok bool)
}

// StaticVersionLookup is a VersionLookup backed by a fixed map, useful for
// tests and for deployments that pin package versions out of band.
type StaticVersionLookup map[string]int

func (m StaticVersionLookup) Version(pkg string) (int, bool) {
	v, ok := m[pkg]
	return v, ok
}
