/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package models

import "strings"

// VersionedComponentName is the (package, activity, version) triple that
// keys a compilation: spec.md §3 "Versioned component name". It doubles as
// the on-disk path component for a package/activity's trace directory (see
// pkg/launch/paths.go and pkg/maintenance/paths.go for the directory
// layouts derived from it).
type VersionedComponentName struct {
	Package  string
	Activity string
	Version  int
}

// Canonicalize turns a leading-dot activity name into its fully qualified
// form relative to Package, e.g. Package "foo.bar" + Activity ".Main"
// becomes Activity "foo.bar.Main". Matches AppComponentName::Canonicalize.
func (v VersionedComponentName) Canonicalize() VersionedComponentName {
	if strings.HasPrefix(v.Activity, ".") {
		v.Activity = v.Package + v.Activity
	}
	return v
}

// HasComponentName reports whether s contains the "/" delimiter used by
// ParseComponentName.
func HasComponentName(s string) bool {
	return strings.Contains(s, "/")
}

// ParseComponentName parses "com.foo.bar/.Main" into package "com.foo.bar"
// and activity ".Main". A string with no "/" is treated as a bare package
// name with an empty activity.
func ParseComponentName(s string) (pkg, activity string) {
	if !HasComponentName(s) {
		return s, ""
	}
	i := strings.IndexByte(s, '/')
	return s[:i], s[i+1:]
}

// ComponentNameString renders (pkg, activity) back to "pkg/activity".
func ComponentNameString(pkg, activity string) string {
	return pkg + "/" + activity
}

var componentNameURLReplacer = strings.NewReplacer("%", "%25", "/", "%2F")
var componentNameURLUnreplacer = strings.NewReplacer("%2F", "/", "%25", "%")

// EncodeComponentNameForPath escapes "pkg/activity" so the result is safe to
// use as a single path segment: "/" becomes "%2F", "%" becomes "%25".
func EncodeComponentNameForPath(pkg, activity string) string {
	return componentNameURLReplacer.Replace(ComponentNameString(pkg, activity))
}

// DecodeComponentNameFromPath reverses EncodeComponentNameForPath.
func DecodeComponentNameFromPath(s string) (pkg, activity string) {
	return ParseComponentName(componentNameURLUnreplacer.Replace(s))
}

// EncodePackageNameForPath escapes a bare package name with the same rules
// as EncodeComponentNameForPath, for the package-only prebuilt trace file
// name iorapd falls back to when no compiled trace exists in the database
// (spec.md §4.7 "prebuilt-on-disk fallback").
func EncodePackageNameForPath(pkg string) string {
	return componentNameURLReplacer.Replace(pkg)
}

var makefileSafeReplacer = strings.NewReplacer("/", "@@", "%", "^^")

// EncodePackageForMakefile escapes a bare package name for use inside a
// build-system variable: "/" becomes "@@", "%" becomes "^^". Only the
// package is escaped; activity names vary across test frameworks and are
// never embedded in a Makefile-safe string.
func EncodePackageForMakefile(pkg string) string {
	return makefileSafeReplacer.Replace(pkg)
}

func (v VersionedComponentName) String() string {
	return ComponentNameString(v.Package, v.Activity)
}
