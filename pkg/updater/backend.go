// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package updater

import "github.com/Thermoquad/hlinkctl/pkg/transport"

// USB interface classes the updater looks at
const (
	ClassAudio          uint8 = 0x01
	ClassVideo          uint8 = 0x0e
	ClassVendorSpecific uint8 = 0xff

	// SubClassControl selects the audio/video control interfaces handed
	// back to their kernel drivers on cleanup.
	SubClassControl uint8 = 0x01
)

// EndpointDesc describes one endpoint of an interface
type EndpointDesc struct {
	Address uint8
}

// IsIn reports whether the endpoint is device-to-host
func (e EndpointDesc) IsIn() bool { return e.Address&0x80 != 0 }

// InterfaceDesc describes one interface of the active configuration
type InterfaceDesc struct {
	Number    int
	Class     uint8
	SubClass  uint8
	Endpoints []EndpointDesc
}

// Backend is the USB device as the updater needs it: bulk transfers plus
// interface listing and claiming.
type Backend interface {
	transport.Bulk

	// Interfaces lists the interfaces of the active configuration
	Interfaces() ([]InterfaceDesc, error)

	// ClaimInterface claims an interface, detaching its kernel driver
	// first when detachKernel is set.
	ClaimInterface(number int, detachKernel bool) error

	// ReleaseInterface releases a claimed interface, handing it back to
	// its kernel driver when reattach is set.
	ReleaseInterface(number int, reattach bool) error
}
