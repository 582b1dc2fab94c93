// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package updater

import (
	"errors"
	"fmt"
)

var (
	// ErrInterfaceNotFound is returned by Probe when the device has no
	// vendor-specific interface with both bulk endpoints.
	ErrInterfaceNotFound = errors.New("could not find vendor interface")

	// ErrNotProbed is returned when an operation needs the endpoints
	// discovered by Probe.
	ErrNotProbed = errors.New("device has not been probed")

	// ErrNoImage is returned when verification is needed but no firmware
	// image has been written or carried over.
	ErrNoImage = errors.New("no firmware image to verify with")

	// ErrRunIncomplete is returned when a package run is cut short by the
	// status update cap.
	ErrRunIncomplete = errors.New("package run did not report done")
)

// ProtocolStatusError is a non-zero status reported by the device
type ProtocolStatusError struct {
	Op      string
	Code    int64
	Message string
}

func (e *ProtocolStatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed with status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.Code, e.Message)
}

// UnexpectedStateError reports a device state other than the one required
type UnexpectedStateError struct {
	Expected string
	Actual   string
}

func (e *UnexpectedStateError) Error() string {
	return fmt.Sprintf("expected device state %s, device reports %s", e.Expected, e.Actual)
}
