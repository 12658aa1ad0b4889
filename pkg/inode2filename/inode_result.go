/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package inode2filename resolves (device, inode) keys back to file paths
// (spec.md §4.2), the step the compiler needs to turn raw page-cache trace
// events into human-readable file accesses.
package inode2filename

import "github.com/iorap-project/iorapd/pkg/models"

// ErrorKind classifies why a lookup failed to produce a path, mirroring
// InodeResult's two reserved errno values plus a generic I/O bucket
// (spec.md §4.2: "{not_found, verification_failed, io_error(errno)}").
type ErrorKind int

const (
	ErrorKindNone ErrorKind = iota
	ErrorKindNotFound
	ErrorKindVerificationFailed
	ErrorKindIOError
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNotFound:
		return "not_found"
	case ErrorKindVerificationFailed:
		return "verification_failed"
	case ErrorKindIOError:
		return "io_error"
	default:
		return "none"
	}
}

// ResolveError is the failure half of an InodeResult.
type ResolveError struct {
	Kind ErrorKind
	Errno error // only set when Kind == ErrorKindIOError
}

func (e *ResolveError) Error() string {
	if e.Errno != nil {
		return e.Kind.String() + ": " + e.Errno.Error()
	}
	return e.Kind.String()
}

// InodeResult is the (Inode -> Filename|Error) tuple FindFilenamesFromInodes
// and EmitAll stream back, one per inode.
type InodeResult struct {
	Inode models.InodeKey
	Path  string // valid only when Err == nil
	Err   *ResolveError
}

func successResult(inode models.InodeKey, path string) InodeResult {
	return InodeResult{Inode: inode, Path: path}
}

func failureResult(inode models.InodeKey, kind ErrorKind, errno error) InodeResult {
	return InodeResult{Inode: inode, Err: &ResolveError{Kind: kind, Errno: errno}}
}
