/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/iorap-project/iorapd/pkg/models"
	"github.com/iorap-project/iorapd/pkg/trace"
)

// FormatText renders entries in the compiler's diagnostic text format: one
// add_to_page_cache=true event per line, e.g.
//
//	{filename:"/product/app/Foo/Foo.apk",timestamp:7641303,add_to_page_cache:1,index:540}
//
// (spec.md §4.3's "text" output format, §8's golden fixtures).
func FormatText(entries []models.CompilerEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		if !e.AddToPageCache {
			continue
		}
		fmt.Fprintf(&sb, "{filename:%q,timestamp:%d,add_to_page_cache:%s,index:%d}\n",
			e.FilePath, e.TimestampRelative, boolDigit(e.AddToPageCache), e.PageIndex)
	}
	return sb.String()
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// WriteProto serializes trace's compiled-trace protobuf form and mmaps it
// out to path (spec.md §6 "Compiled-trace file format").
func WriteProto(path string, ct *models.CompiledTrace) error {
	data, err := trace.EncodeCompiledTrace(ct)
	if err != nil {
		return errors.Wrap(err, "encode compiled trace")
	}
	return trace.WriteFileMapped(path, data)
}

// WriteText writes FormatText's output to path.
func WriteText(path string, entries []models.CompilerEntry) error {
	return trace.WriteFileMapped(path, []byte(FormatText(entries)))
}

// ParseTimestampLimits parses the repeatable --timestamp_limit_ns CLI flag
// values (spec.md §6 "CLI surface").
func ParseTimestampLimits(raw []string) ([]uint64, error) {
	limits := make([]uint64, 0, len(raw))
	for _, s := range raw {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid --timestamp_limit_ns value %q", s)
		}
		limits = append(limits, v)
	}
	return limits, nil
}
