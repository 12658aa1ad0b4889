/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package inode2filename

import (
	"context"
	"io/fs"
	"path/filepath"

	"github.com/containerd/containerd/log"
	"golang.org/x/sys/unix"

	"github.com/iorap-project/iorapd/pkg/models"
)

// DiskScanSource recursively walks a configured list of root directories
// and stats every entry, emitting its (dev, inode) -> path mapping
// (spec.md §4.2 variant "disk-scan").
type DiskScanSource struct {
	Roots []string
}

// NewDiskScanSource creates a DiskScanSource over roots, defaulting to
// DefaultDiskScanRoots when roots is empty.
func NewDiskScanSource(roots []string) *DiskScanSource {
	if len(roots) == 0 {
		roots = DefaultDiskScanRoots
	}
	return &DiskScanSource{Roots: roots}
}

func (s *DiskScanSource) Kind() DataSourceKind { return DataSourceKindDiskScan }

func (s *DiskScanSource) ResultIncludesDeviceNumber() bool { return true }

func (s *DiskScanSource) EmitInodes(ctx context.Context, results chan<- InodeResult) {
	defer close(results)

	for _, root := range s.Roots {
		if err := s.walkRoot(ctx, root, results); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.G(ctx).WithError(err).WithField("root", root).Warn("disk-scan root walk aborted")
		}
	}
}

func (s *DiskScanSource) walkRoot(ctx context.Context, root string, results chan<- InodeResult) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			// Permission errors etc. on individual entries shouldn't abort
			// the whole walk; skip and keep going.
			return nil
		}
		if d.IsDir() {
			return nil
		}

		var stat unix.Stat_t
		if err := unix.Stat(path, &stat); err != nil {
			return nil
		}

		inode := models.InodeKey{
			DeviceMajor: unix.Major(stat.Dev),
			DeviceMinor: unix.Minor(stat.Dev),
			Inode:       stat.Ino,
		}

		select {
		case results <- successResult(inode, path):
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}
