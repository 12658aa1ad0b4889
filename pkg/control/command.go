/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package control implements the length-delimited control protocol between
// the orchestrator and the prefetch helper process (spec.md §4.5, §6).
package control

import "github.com/iorap-project/iorapd/pkg/models"

// Variant is the command's u32 tag, matching spec.md §6's table verbatim.
type Variant uint32

const (
	VariantRegisterFilePath Variant = iota
	VariantUnregisterFilePath
	VariantReadAhead
	VariantExit
	VariantCreateSession
	VariantDestroySession
	VariantDumpSession
	VariantDumpEverything
	VariantCreateFdSession
)

func (v Variant) String() string {
	switch v {
	case VariantRegisterFilePath:
		return "RegisterFilePath"
	case VariantUnregisterFilePath:
		return "UnregisterFilePath"
	case VariantReadAhead:
		return "ReadAhead"
	case VariantExit:
		return "Exit"
	case VariantCreateSession:
		return "CreateSession"
	case VariantDestroySession:
		return "DestroySession"
	case VariantDumpSession:
		return "DumpSession"
	case VariantDumpEverything:
		return "DumpEverything"
	case VariantCreateFdSession:
		return "CreateFdSession"
	default:
		return "Unknown"
	}
}

// RequiresFd reports whether this variant must be paired with an ancillary
// SCM_RIGHTS descriptor on the socket transport (spec.md §4.5: "only
// kCreateFdSession").
func (v Variant) RequiresFd() bool {
	return v == VariantCreateFdSession
}

// Command is the decoded form of one control-protocol frame. Only the
// fields relevant to Variant are populated; zero values elsewhere.
type Command struct {
	Variant Variant

	SessionID   uint32
	PathID      uint32
	Path        string
	Description string
	Kind        models.EntryKind
	Length      uint64
	Offset      uint64

	// Fd carries the ancillary descriptor decoded alongside a
	// CreateFdSession command on the socket transport. Unused on the pipe
	// transport, where CreateFdSession cannot occur (spec.md §4.5).
	Fd int
}

func RegisterFilePath(sessionID, pathID uint32, path string) Command {
	return Command{Variant: VariantRegisterFilePath, SessionID: sessionID, PathID: pathID, Path: path}
}

func UnregisterFilePath(sessionID, pathID uint32) Command {
	return Command{Variant: VariantUnregisterFilePath, SessionID: sessionID, PathID: pathID}
}

func ReadAhead(sessionID, pathID uint32, kind models.EntryKind, length, offset uint64) Command {
	return Command{Variant: VariantReadAhead, SessionID: sessionID, PathID: pathID, Kind: kind, Length: length, Offset: offset}
}

func Exit() Command {
	return Command{Variant: VariantExit}
}

func CreateSession(sessionID uint32, description string) Command {
	return Command{Variant: VariantCreateSession, SessionID: sessionID, Description: description}
}

func DestroySession(sessionID uint32) Command {
	return Command{Variant: VariantDestroySession, SessionID: sessionID}
}

func DumpSession(sessionID uint32) Command {
	return Command{Variant: VariantDumpSession, SessionID: sessionID}
}

func DumpEverything() Command {
	return Command{Variant: VariantDumpEverything}
}

func CreateFdSession(sessionID uint32, description string, fd int) Command {
	return Command{Variant: VariantCreateFdSession, SessionID: sessionID, Description: description, Fd: fd}
}
