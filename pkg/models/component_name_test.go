/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package models

import "testing"

func TestCanonicalizeDotPrefixedActivity(t *testing.T) {
	v := VersionedComponentName{Package: "foo.bar", Activity: ".MainActivity"}.Canonicalize()
	if v.Activity != "foo.bar.MainActivity" {
		t.Fatalf("got %q", v.Activity)
	}
}

func TestCanonicalizeLeavesFullyQualifiedAlone(t *testing.T) {
	v := VersionedComponentName{Package: "foo.bar", Activity: "foo.bar.MainActivity"}.Canonicalize()
	if v.Activity != "foo.bar.MainActivity" {
		t.Fatalf("got %q", v.Activity)
	}
}

func TestParseComponentName(t *testing.T) {
	pkg, activity := ParseComponentName("com.foo.bar/.A")
	if pkg != "com.foo.bar" || activity != ".A" {
		t.Fatalf("got pkg=%q activity=%q", pkg, activity)
	}
}

func TestParseComponentNameNoDelimiter(t *testing.T) {
	pkg, activity := ParseComponentName("com.foo.bar")
	if pkg != "com.foo.bar" || activity != "" {
		t.Fatalf("got pkg=%q activity=%q", pkg, activity)
	}
}

func TestEncodeDecodeComponentNameForPath(t *testing.T) {
	encoded := EncodeComponentNameForPath("com.foo.bar", ".A%")
	if encoded != "com.foo.bar%2F.A%25" {
		t.Fatalf("got %q", encoded)
	}
	pkg, activity := DecodeComponentNameFromPath(encoded)
	if pkg != "com.foo.bar" || activity != ".A%" {
		t.Fatalf("got pkg=%q activity=%q", pkg, activity)
	}
}

func TestEncodePackageForMakefile(t *testing.T) {
	if got := EncodePackageForMakefile("com/foo%bar"); got != "com@@foo^^bar" {
		t.Fatalf("got %q", got)
	}
}
