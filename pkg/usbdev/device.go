// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package usbdev opens a camera through libusb (gousb) and exposes it as an
// updater backend.
package usbdev

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/gousb"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/hlinkctl/pkg/updater"
)

// Huddly USB vendor ID
const VendorHuddly = 0x2bd9

// ErrNotFound is returned by Open when no device matches
var ErrNotFound = errors.New("no matching USB device")

// Device is an open USB device with its active configuration selected.
// Interfaces are claimed on demand and endpoints opened on first use.
type Device struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	cfg    *gousb.Config
	logger zerolog.Logger

	claimed map[int]*gousb.Interface
	in      map[uint8]*gousb.InEndpoint
	out     map[uint8]*gousb.OutEndpoint
}

var _ updater.Backend = (*Device)(nil)

// Open opens the first device matching vid and pid. A pid of zero matches
// any product of the vendor.
func Open(vid, pid uint16, logger zerolog.Logger) (*Device, error) {
	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return uint16(desc.Vendor) == vid && (pid == 0 || uint16(desc.Product) == pid)
	})
	// OpenDevices reports per-device open failures alongside the devices
	// it did open
	if len(devs) == 0 {
		ctx.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "open %04x:%04x", vid, pid)
		}
		return nil, errors.Wrapf(ErrNotFound, "%04x:%04x", vid, pid)
	}
	for _, extra := range devs[1:] {
		extra.Close()
	}
	dev := devs[0]

	d := &Device{
		ctx:     ctx,
		dev:     dev,
		logger:  logger,
		claimed: make(map[int]*gousb.Interface),
		in:      make(map[uint8]*gousb.InEndpoint),
		out:     make(map[uint8]*gousb.OutEndpoint),
	}

	num, err := dev.ActiveConfigNum()
	if err != nil {
		d.Close()
		return nil, errors.Wrap(err, "read active configuration")
	}
	d.cfg, err = dev.Config(num)
	if err != nil {
		d.Close()
		return nil, errors.Wrapf(err, "select configuration %d", num)
	}

	logger.Debug().
		Int("bus", dev.Desc.Bus).
		Int("address", dev.Desc.Address).
		Str("id", fmt.Sprintf("%s:%s", dev.Desc.Vendor, dev.Desc.Product)).
		Int("config", num).
		Msg("opened USB device")
	return d, nil
}

// Interfaces lists the first alternate setting of every interface in the
// active configuration, ordered by interface number.
func (d *Device) Interfaces() ([]updater.InterfaceDesc, error) {
	var out []updater.InterfaceDesc
	for _, intf := range d.cfg.Desc.Interfaces {
		if len(intf.AltSettings) == 0 {
			continue
		}
		alt := intf.AltSettings[0]

		desc := updater.InterfaceDesc{
			Number:   intf.Number,
			Class:    uint8(alt.Class),
			SubClass: uint8(alt.SubClass),
		}
		for addr, ep := range alt.Endpoints {
			if ep.TransferType != gousb.TransferTypeBulk {
				continue
			}
			desc.Endpoints = append(desc.Endpoints, updater.EndpointDesc{Address: uint8(addr)})
		}
		sort.Slice(desc.Endpoints, func(i, j int) bool {
			return desc.Endpoints[i].Address < desc.Endpoints[j].Address
		})
		out = append(out, desc)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// ClaimInterface claims alternate setting 0 of an interface. With
// detachKernel set the kernel driver is detached first and reattached when
// the interface is released.
func (d *Device) ClaimInterface(number int, detachKernel bool) error {
	if _, ok := d.claimed[number]; ok {
		return nil
	}
	if err := d.dev.SetAutoDetach(detachKernel); err != nil {
		return errors.Wrap(err, "set kernel driver auto-detach")
	}
	intf, err := d.cfg.Interface(number, 0)
	if err != nil {
		return errors.Wrapf(err, "claim interface %d", number)
	}
	d.claimed[number] = intf
	d.logger.Debug().Int("interface", number).Bool("detach_kernel", detachKernel).Msg("claimed interface")
	return nil
}

// ReleaseInterface releases a claimed interface. libusb hands it back to
// the kernel driver when it was detached at claim time; reattach is
// implied by that.
func (d *Device) ReleaseInterface(number int, reattach bool) error {
	intf, ok := d.claimed[number]
	if !ok {
		return errors.Errorf("interface %d is not claimed", number)
	}
	for addr := range intf.Setting.Endpoints {
		delete(d.in, uint8(addr))
		delete(d.out, uint8(addr))
	}
	intf.Close()
	delete(d.claimed, number)
	d.logger.Debug().Int("interface", number).Bool("reattach", reattach).Msg("released interface")
	return nil
}

// BulkTransfer performs one transfer on a bulk endpoint of a claimed
// interface. gousb completes a zero-length OUT request without submitting
// a transfer, so a reset frame is a no-op on this backend.
func (d *Device) BulkTransfer(ctx context.Context, endpoint uint8, buf []byte, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if endpoint&0x80 != 0 {
		ep, err := d.inEndpoint(endpoint)
		if err != nil {
			return 0, err
		}
		return ep.ReadContext(ctx, buf)
	}

	ep, err := d.outEndpoint(endpoint)
	if err != nil {
		return 0, err
	}
	return ep.WriteContext(ctx, buf)
}

func (d *Device) owner(endpoint uint8) (*gousb.Interface, error) {
	for _, intf := range d.claimed {
		if _, ok := intf.Setting.Endpoints[gousb.EndpointAddress(endpoint)]; ok {
			return intf, nil
		}
	}
	return nil, errors.Errorf("endpoint 0x%02x is not on a claimed interface", endpoint)
}

func (d *Device) inEndpoint(endpoint uint8) (*gousb.InEndpoint, error) {
	if ep, ok := d.in[endpoint]; ok {
		return ep, nil
	}
	intf, err := d.owner(endpoint)
	if err != nil {
		return nil, err
	}
	ep, err := intf.InEndpoint(int(endpoint & 0x0f))
	if err != nil {
		return nil, errors.Wrapf(err, "open IN endpoint 0x%02x", endpoint)
	}
	d.in[endpoint] = ep
	return ep, nil
}

func (d *Device) outEndpoint(endpoint uint8) (*gousb.OutEndpoint, error) {
	if ep, ok := d.out[endpoint]; ok {
		return ep, nil
	}
	intf, err := d.owner(endpoint)
	if err != nil {
		return nil, err
	}
	ep, err := intf.OutEndpoint(int(endpoint & 0x0f))
	if err != nil {
		return nil, errors.Wrapf(err, "open OUT endpoint 0x%02x", endpoint)
	}
	d.out[endpoint] = ep
	return ep, nil
}

// Strings holds the device's descriptor strings
type Strings struct {
	Manufacturer string
	Product      string
	Serial       string
}

// Strings reads the manufacturer, product and serial number strings.
// Unreadable strings are left empty.
func (d *Device) Strings() Strings {
	var s Strings
	s.Manufacturer, _ = d.dev.Manufacturer()
	s.Product, _ = d.dev.Product()
	s.Serial, _ = d.dev.SerialNumber()
	return s
}

// ID returns the vendor and product IDs
func (d *Device) ID() (vid, pid uint16) {
	return uint16(d.dev.Desc.Vendor), uint16(d.dev.Desc.Product)
}

// Close releases every claimed interface and closes the device
func (d *Device) Close() error {
	for number, intf := range d.claimed {
		intf.Close()
		delete(d.claimed, number)
	}
	d.in = make(map[uint8]*gousb.InEndpoint)
	d.out = make(map[uint8]*gousb.OutEndpoint)

	var firstErr error
	if d.cfg != nil {
		if err := d.cfg.Close(); err != nil {
			firstErr = err
		}
		d.cfg = nil
	}
	if d.dev != nil {
		if err := d.dev.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		d.dev = nil
	}
	if d.ctx != nil {
		if err := d.ctx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		d.ctx = nil
	}
	return firstErr
}
