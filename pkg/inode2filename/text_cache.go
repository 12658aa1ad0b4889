/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package inode2filename

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/iorap-project/iorapd/pkg/models"
)

// TextCacheSource reads a persisted flat-file cache of dev/inode/size/path
// rows (spec.md §4.2 variant "text-cache"). Each line has the shape
// "<dev_t> <inode> <size> <path...>"; leading spaces in the path are
// trimmed, and exactly one space separates the three numeric fields from
// the path.
type TextCacheSource struct {
	FilePath string
}

func NewTextCacheSource(filePath string) *TextCacheSource {
	return &TextCacheSource{FilePath: filePath}
}

func (s *TextCacheSource) Kind() DataSourceKind { return DataSourceKindTextCache }

// ResultIncludesDeviceNumber is true: every text-cache line carries a
// dev_t column, which parseTextCacheLine splits into major/minor.
func (s *TextCacheSource) ResultIncludesDeviceNumber() bool { return true }

func (s *TextCacheSource) EmitInodes(ctx context.Context, results chan<- InodeResult) {
	defer close(results)

	f, err := os.Open(s.FilePath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()
		inode, path, ok := parseTextCacheLine(line)
		if !ok {
			continue
		}

		select {
		case results <- successResult(inode, path):
		case <-ctx.Done():
			return
		}
	}
}

// parseTextCacheLine parses "<dev_t> <inode> <size> <path...>". dev_t is
// split back into (major, minor) the same way the kernel encodes it (see
// pkg/trace's splitDevT); size is parsed but not currently surfaced since
// InodeResult carries no size field.
func parseTextCacheLine(line string) (models.InodeKey, string, bool) {
	fields := strings.SplitN(line, " ", 4)
	if len(fields) != 4 {
		return models.InodeKey{}, "", false
	}

	dev, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return models.InodeKey{}, "", false
	}
	ino, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return models.InodeKey{}, "", false
	}
	if _, err := strconv.ParseUint(fields[2], 10, 64); err != nil {
		return models.InodeKey{}, "", false
	}

	path := strings.TrimLeft(fields[3], " ")

	major, minor := devToMajorMinor(dev)
	return models.InodeKey{DeviceMajor: major, DeviceMinor: minor, Inode: ino}, path, true
}

func devToMajorMinor(dev uint64) (major, minor uint32) {
	major = uint32((dev>>8)&0xfff) | uint32((dev>>32)&^uint64(0xfff))
	minor = uint32(dev&0xff) | uint32((dev>>12)&^uint64(0xff))
	return major, minor
}
