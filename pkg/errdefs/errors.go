/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package errdefs

import (
	"net"
	"strings"

	"github.com/pkg/errors"
)

const signalKilled = "signal: killed"

var (
	ErrAlreadyExists   = errors.New("already exists")
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrIllegalTransition marks a launch-event transition the defender rejected
	// outright instead of rewriting.
	ErrIllegalTransition = errors.New("illegal launch event transition")
	// ErrStaleReference marks a DB row whose backing file or package no longer
	// matches reality; the caller should treat the operation as having
	// succeeded once the row and file are purged.
	ErrStaleReference = errors.New("stale reference")
	// ErrProtocolViolation marks a malformed control-protocol frame.
	ErrProtocolViolation = errors.New("control protocol violation")
)

// IsAlreadyExists returns true if the error is due to already exists
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsNotFound returns true if the error is due to a missing record or file.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStaleReference returns true if the error indicates a DB row whose
// backing resource is gone and which should be purged rather than retried.
func IsStaleReference(err error) bool {
	return errors.Is(err, ErrStaleReference)
}

// IsSignalKilled returns true if the error is signal killed
func IsSignalKilled(err error) bool {
	return strings.Contains(err.Error(), signalKilled)
}

// IsConnectionClosed returns true if error is due to connection closed,
// used when a control-protocol transport is torn down mid-command.
func IsConnectionClosed(err error) bool {
	switch err := err.(type) {
	case *net.OpError:
		return err.Err.Error() == "use of closed network connection"
	default:
		return false
	}
}
