/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package prefetcher

import "unsafe"

// addressOf and bytesAt convert between the []byte unix.Mmap hands back and
// the bare uintptr models.EntryMapping records, mirroring session.cc storing
// a raw `void*` in EntryMapping rather than keeping the mapping's slice
// header alive. The byte slice is never read or written through again after
// mapping; only Munmap needs it back, reconstructed with the same length.
func addressOf(data []byte) uintptr {
	if len(data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&data[0]))
}

func bytesAt(addr uintptr, length int) []byte {
	if addr == 0 || length <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), length)
}
