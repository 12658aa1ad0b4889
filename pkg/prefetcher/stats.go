/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package prefetcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/iorap-project/iorapd/pkg/models"
)

// dumpSession renders one session's statistics in the multiline form
// SessionDirect::Dump produces: a summary (path count, good-fd rate, total
// entries/bytes and their success rates, duration) followed by one section
// per registered path.
func dumpSession(s *models.Session) string {
	var b strings.Builder

	pathCount := len(s.PathMap)

	goodFd, totalFd := 0, len(s.FDMap)
	for _, fd := range s.FDMap {
		if fd >= 0 {
			goodFd++
		}
	}

	var overallEntries, overallBytes, goodEntries, goodBytes int64
	for _, list := range s.EntryLists {
		for _, m := range list {
			overallEntries++
			overallBytes += m.Length
			if m.Success {
				goodEntries++
				goodBytes += m.Length
			}
		}
	}

	fmt.Fprintf(&b, "Session (id=%d)\n", s.ID)
	fmt.Fprintf(&b, "  Summary:\n")
	fmt.Fprintf(&b, "    Description = %s\n", s.Description)
	fmt.Fprintf(&b, "    Duration = %s\n", time.Since(s.CreationTime))
	fmt.Fprintf(&b, "    Total File Paths=%d (good: %s)\n", pathCount, percent(goodFd, totalFd))
	fmt.Fprintf(&b, "    Total Entries=%d (good: %s)\n", overallEntries, percent64(goodEntries, overallEntries))
	fmt.Fprintf(&b, "    Total Bytes=%d (good: %s)\n", overallBytes, percent64(goodBytes, overallBytes))
	b.WriteString("\n")

	for pathID, list := range s.EntryLists {
		path := s.PathMap[pathID]
		fd, fdKnown := s.FDMap[pathID]

		fmt.Fprintf(&b, "  File Path (id=%d): %q, FD=", pathID, path)
		if fdKnown {
			fmt.Fprintf(&b, "%d\n", fd)
		} else {
			b.WriteString("(none)\n")
		}

		var pathEntries, pathBytes, pathGoodEntries, pathGoodBytes int64
		for _, m := range list {
			pathEntries++
			pathBytes += m.Length
			if m.Success {
				pathGoodEntries++
				pathGoodBytes += m.Length
			}
		}

		fmt.Fprintf(&b, "    Successful: Entries=%d (%s), Bytes=%d (%s)\n",
			pathGoodEntries, percent64(pathGoodEntries, pathEntries),
			pathGoodBytes, percent64(pathGoodBytes, pathBytes))
		fmt.Fprintf(&b, "    Failed: Entries=%d (%s), Bytes=%d (%s)\n",
			pathEntries-pathGoodEntries, percent64(pathEntries-pathGoodEntries, pathEntries),
			pathBytes-pathGoodBytes, percent64(pathBytes-pathGoodBytes, pathBytes))
		fmt.Fprintf(&b, "    Total: Entries=%d, Bytes=%d\n", pathEntries, pathBytes)
	}

	return b.String()
}

func percent(good, total int) string {
	if total == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", float64(good)*100.0/float64(total))
}

func percent64(good, total int64) string {
	if total == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", float64(good)*100.0/float64(total))
}
