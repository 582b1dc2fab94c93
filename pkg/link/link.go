// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package link carries HLink frames over transports other than native USB:
// a serial line or a WebSocket bridge. Both present the camera as a single
// vendor-specific interface with one bulk endpoint pair and no media
// interfaces, so the updater drives them exactly like a USB device.
package link

import (
	"errors"

	"github.com/Thermoquad/hlinkctl/pkg/updater"
)

// Synthetic endpoint addresses
const (
	EndpointOut uint8 = 0x01
	EndpointIn  uint8 = 0x81
)

var (
	// ErrTimeout is returned when no data arrives within a transfer timeout
	ErrTimeout = errors.New("link read timed out")

	// ErrClosed is returned by transfers on a closed link
	ErrClosed = errors.New("link closed")
)

// vendorOnly implements the interface half of updater.Backend for links
// that have no USB descriptors.
type vendorOnly struct{}

func (vendorOnly) Interfaces() ([]updater.InterfaceDesc, error) {
	return []updater.InterfaceDesc{{
		Number: 0,
		Class:  updater.ClassVendorSpecific,
		Endpoints: []updater.EndpointDesc{
			{Address: EndpointOut},
			{Address: EndpointIn},
		},
	}}, nil
}

func (vendorOnly) ClaimInterface(number int, detachKernel bool) error { return nil }

func (vendorOnly) ReleaseInterface(number int, reattach bool) error { return nil }
