/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package inode2filename

import (
	"context"

	"golang.org/x/sys/unix"

	"github.com/iorap-project/iorapd/pkg/models"
)

// VerificationMode selects how aggressively a candidate inode->path
// mapping is checked before being trusted (spec.md §4.2).
type VerificationMode int

const (
	// VerificationNone trusts the data source outright.
	VerificationNone VerificationMode = iota
	// VerificationStat re-runs stat(2) on each candidate path and drops
	// entries whose (dev, ino) no longer match, handling stale caches.
	VerificationStat
)

// Resolver answers inode->filename queries against a DataSource,
// optionally verifying candidates with stat(2) (spec.md §4.2).
type Resolver struct {
	source DataSource
	verify VerificationMode
}

// NewResolver builds an in-process Resolver. Out-of-process operation
// (forking the resolver binary and exchanging its own request/response
// frames over the child's stdin/stdout) is provided by OutOfProcessResolver.
func NewResolver(source DataSource, verify VerificationMode) *Resolver {
	return &Resolver{source: source, verify: verify}
}

// EmitAll streams every (inode, path) mapping the data source knows
// about, verifying each if configured to do so. Intended for diagnostic
// use (spec.md §4.2: "EmitAll() ... enumerating every known inode").
func (r *Resolver) EmitAll(ctx context.Context) <-chan InodeResult {
	raw := make(chan InodeResult, 64)
	go r.source.EmitInodes(ctx, raw)

	out := make(chan InodeResult, 64)
	go func() {
		defer close(out)
		for res := range raw {
			out <- r.verifyResult(res)
		}
	}()
	return out
}

// FindFilenamesFromInodes resolves each of inputs to a path, emitting
// exactly one InodeResult per input (spec.md §4.2 post-condition), in the
// same order as inputs.
func (r *Resolver) FindFilenamesFromInodes(ctx context.Context, inputs []models.InodeKey) <-chan InodeResult {
	out := make(chan InodeResult, len(inputs))

	go func() {
		defer close(out)

		index := r.buildIndex(ctx)

		for _, want := range inputs {
			path, ok := index[want.Hash()]
			if !ok {
				out <- failureResult(want, ErrorKindNotFound, nil)
				continue
			}

			res := r.verifyResult(successResult(want, path))
			out <- res
		}
	}()

	return out
}

// buildIndex drains the data source into an inode-hash -> path map. Hash
// collisions across devices (see InodeKey.Hash) are accepted the same way
// the original implementation accepts them: extremely unlikely in
// practice on a single device.
func (r *Resolver) buildIndex(ctx context.Context) map[uint64]string {
	index := make(map[uint64]string)
	raw := make(chan InodeResult, 64)
	go r.source.EmitInodes(ctx, raw)

	for res := range raw {
		if res.Err == nil {
			index[res.Inode.Hash()] = res.Path
		}
	}
	return index
}

func (r *Resolver) verifyResult(res InodeResult) InodeResult {
	if res.Err != nil || r.verify != VerificationStat {
		return res
	}

	var stat unix.Stat_t
	if err := unix.Stat(res.Path, &stat); err != nil {
		return failureResult(res.Inode, ErrorKindIOError, err)
	}

	actual := models.InodeKey{
		DeviceMajor: unix.Major(stat.Dev),
		DeviceMinor: unix.Minor(stat.Dev),
		Inode:       stat.Ino,
	}
	if actual != res.Inode {
		return failureResult(res.Inode, ErrorKindVerificationFailed, nil)
	}
	return res
}
