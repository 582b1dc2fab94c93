// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mpack

import "errors"

var (
	// ErrMalformedPayload is returned when a type code is not recognised or
	// a length runs past the end of the buffer.
	ErrMalformedPayload = errors.New("malformed msgpack payload")

	// ErrUnsupportedItem is returned by Write for items it cannot encode
	ErrUnsupportedItem = errors.New("unsupported msgpack item")
)
