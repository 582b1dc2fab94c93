// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrTransfer is the kind of every failed bulk transfer
	ErrTransfer = errors.New("bulk transfer failed")

	// ErrShortWrite is reported when the device accepts no bytes of a
	// non-empty chunk.
	ErrShortWrite = errors.New("device accepted 0 bytes")
)

// Error describes a failed transfer on one endpoint. It matches ErrTransfer
// with errors.Is and unwraps to the backend error.
type Error struct {
	Endpoint uint8
	Err      error
}

func (e *Error) Error() string {
	dir := "out"
	if e.Endpoint&0x80 != 0 {
		dir = "in"
	}
	return fmt.Sprintf("bulk %s transfer on endpoint 0x%02x failed: %v", dir, e.Endpoint, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports ErrTransfer as matching
func (e *Error) Is(target error) bool { return target == ErrTransfer }
