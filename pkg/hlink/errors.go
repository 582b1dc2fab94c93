// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hlink

import "errors"

var (
	// ErrTruncatedFrame is returned when a buffer is shorter than the frame
	// header, or shorter than the lengths the header declares.
	ErrTruncatedFrame = errors.New("truncated hlink frame")

	// ErrFieldOverflow is returned when a name or payload does not fit the
	// width of its header length field.
	ErrFieldOverflow = errors.New("hlink field too large")
)
