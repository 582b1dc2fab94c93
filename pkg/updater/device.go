// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package updater drives a firmware update on an HLink camera.
//
// The lifecycle follows the order an update manager calls it in:
//
//	Probe -> Setup -> Prepare -> WriteFirmware -> Cleanup
//	      (device reboots and re-enumerates)
//	Probe -> Setup -> Attach -> Reload
//
// After WriteFirmware the camera comes back in the "Unverified" state;
// Attach writes and runs the same package again to verify it, and Reload
// checks that the camera settled in "Verified".
package updater

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/hlinkctl/pkg/firmware"
	"github.com/Thermoquad/hlinkctl/pkg/hlink"
	"github.com/Thermoquad/hlinkctl/pkg/progress"
	"github.com/Thermoquad/hlinkctl/pkg/transport"
)

// saluteResponseSize is the largest salute reply read during setup
const saluteResponseSize = 100

// FirmwareUpdateDevice is the set of operations an update manager drives
type FirmwareUpdateDevice interface {
	Probe() error
	Setup(ctx context.Context) error
	Prepare(ctx context.Context) error
	WriteFirmware(ctx context.Context, img *firmware.Image, p *progress.Progress) error
	Cleanup(ctx context.Context) error
	Attach(ctx context.Context, p *progress.Progress) error
	Reload(ctx context.Context) error
}

var _ FirmwareUpdateDevice = (*Device)(nil)

// Device is one camera. It is driven from a single goroutine.
type Device struct {
	backend Backend
	config  Config
	logger  zerolog.Logger

	adapter *transport.Adapter
	session *hlink.Session

	bulkOut     uint8
	bulkIn      uint8
	vendorIface int
	probed      bool

	interfacesClaimed bool
	pendingVerify     bool
	image             *firmware.Image

	info Info
}

// New creates a device over backend
func New(backend Backend, opts ...Option) *Device {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return &Device{
		backend: backend,
		config:  config,
		logger:  config.Logger,
		info:    newInfo(),
	}
}

// Info returns the device metadata
func (d *Device) Info() *Info { return &d.info }

// Session returns the HLink session, or nil before Probe
func (d *Device) Session() *hlink.Session { return d.session }

// PendingVerify reports whether firmware was written in this session and
// still awaits verification after the reboot.
func (d *Device) PendingVerify() bool { return d.pendingVerify }

// Image returns the cached firmware image, if any
func (d *Device) Image() *firmware.Image { return d.image }

// Probe locates the vendor-specific interface and its bulk endpoints and
// claims it.
func (d *Device) Probe() error {
	intfs, err := d.backend.Interfaces()
	if err != nil {
		return errors.Wrap(err, "list interfaces")
	}

	for _, intf := range intfs {
		if intf.Class != ClassVendorSpecific {
			continue
		}

		var out, in uint8
		var haveOut, haveIn bool
		for _, ep := range intf.Endpoints {
			if ep.IsIn() {
				in, haveIn = ep.Address, true
			} else {
				out, haveOut = ep.Address, true
			}
		}
		if !haveOut || !haveIn {
			return errors.Wrapf(ErrInterfaceNotFound, "interface %d lacks a bulk endpoint pair", intf.Number)
		}

		if err := d.backend.ClaimInterface(intf.Number, false); err != nil {
			return errors.Wrapf(err, "claim interface %d", intf.Number)
		}

		d.bulkOut, d.bulkIn = out, in
		d.vendorIface = intf.Number
		d.probed = true

		topts := append([]transport.Option{transport.WithLogger(d.logger)}, d.config.TransportOptions...)
		d.adapter = transport.NewAdapter(d.backend, out, in, topts...)
		sopts := append([]hlink.SessionOption{hlink.WithLogger(d.logger)}, d.config.SessionOptions...)
		d.session = hlink.NewSession(d.adapter, sopts...)

		d.logger.Debug().
			Int("interface", intf.Number).
			Str("out", hexByte(out)).
			Str("in", hexByte(in)).
			Msg("found vendor interface")
		return nil
	}

	return ErrInterfaceNotFound
}

// Setup resets the link, exchanges the salute and reads the firmware
// version.
func (d *Device) Setup(ctx context.Context) error {
	if !d.probed {
		return ErrNotProbed
	}

	for i := 0; i < 2; i++ {
		if err := d.adapter.Write(ctx, nil, nil); err != nil {
			return errors.Wrap(err, "reset device")
		}
	}

	if err := d.salute(ctx); err != nil {
		return err
	}

	info, err := d.QueryProductInfo(ctx)
	if err != nil {
		return err
	}

	d.info.SetVersion(trimVersion(info.Version))
	d.info.AddProtocol(Protocol)
	d.logger.Debug().Str("version", d.info.Version).Str("state", info.State).Msg("setup complete")
	return nil
}

func (d *Device) salute(ctx context.Context) error {
	d.logger.Debug().Msg("send salute")
	if err := d.adapter.Write(ctx, []byte{0x00}, nil); err != nil {
		return errors.Wrap(err, "send salute")
	}

	resp := make([]byte, saluteResponseSize)
	n, err := d.adapter.Read(ctx, resp)
	if err != nil {
		return errors.Wrap(err, "read salute response")
	}
	d.logger.Debug().Str("response", strings.TrimRight(string(resp[:n]), "\x00")).Msg("salute response")
	return nil
}

// Prepare hands the audio and video interfaces away from their kernel
// drivers so the camera can restart cleanly.
func (d *Device) Prepare(ctx context.Context) error {
	return d.detachMediaDrivers()
}

// Cleanup returns the media interfaces to their kernel drivers
func (d *Device) Cleanup(ctx context.Context) error {
	return d.reattachMediaDrivers()
}

// WriteFirmware uploads and runs the package, then reboots the camera.
// The image is kept for the verification pass in Attach.
func (d *Device) WriteFirmware(ctx context.Context, img *firmware.Image, p *progress.Progress) error {
	if !d.probed {
		return ErrNotProbed
	}
	if p == nil {
		p = progress.New()
	}
	p.AddStep("writing", 50)
	p.AddStep("busy", 30)
	p.AddStep("restarting", 20)

	d.image = img
	d.logger.Info().Int("size", img.Size()).Str("sha256", img.Digest()).Msg("writing firmware")

	if err := d.writeFile(ctx, p.Child(), FirmwareFileName, img.Bytes()); err != nil {
		return err
	}
	p.StepDone()

	if _, err := d.runPackage(ctx, FirmwareFileName); err != nil {
		return err
	}
	p.StepDone()

	if err := d.Reboot(ctx); err != nil {
		return err
	}
	d.pendingVerify = true
	d.info.AddFlag(FlagWaitForReplug)
	p.StepDone()

	return nil
}

// Attach completes an update after the reboot. A camera reporting
// "Unverified" gets the cached package written and run again to verify it;
// any other state needs nothing.
func (d *Device) Attach(ctx context.Context, p *progress.Progress) error {
	info, err := d.QueryProductInfo(ctx)
	if err != nil {
		return err
	}
	d.logger.Debug().Str("version", info.Version).Str("state", info.State).Msg("attach")
	// the camera answered, so any pending replug is over
	d.info.RemoveFlag(FlagWaitForReplug)

	if info.State != StateUnverified {
		return nil
	}

	if d.image == nil {
		return errors.Wrap(ErrNoImage, "device is unverified")
	}
	if err := d.detachMediaDrivers(); err != nil {
		return err
	}

	reboot, err := d.verify(ctx, p)
	if err != nil {
		return err
	}
	if reboot {
		d.info.AddFlag(FlagWaitForReplug)
	}
	return nil
}

func (d *Device) verify(ctx context.Context, p *progress.Progress) (bool, error) {
	if p == nil {
		p = progress.New()
	}
	p.AddStep("writing", 80)
	p.AddStep("verifying", 20)

	if err := d.writeFile(ctx, p.Child(), FirmwareFileName, d.image.Bytes()); err != nil {
		return false, errors.Wrap(err, "verify")
	}
	p.StepDone()

	reboot, err := d.runPackage(ctx, FirmwareFileName)
	if err != nil {
		return false, errors.Wrap(err, "verify")
	}
	p.StepDone()

	d.pendingVerify = false
	return reboot, nil
}

// Reload checks that the camera settled in the "Verified" state
func (d *Device) Reload(ctx context.Context) error {
	info, err := d.QueryProductInfo(ctx)
	if err != nil {
		return err
	}
	if info.State != StateVerified {
		return &UnexpectedStateError{Expected: StateVerified, Actual: info.State}
	}
	return nil
}

// Reboot asks the camera to restart. It does not wait for it to return.
func (d *Device) Reboot(ctx context.Context) error {
	if !d.probed {
		return ErrNotProbed
	}
	d.logger.Debug().Msg("reboot")
	return errors.Wrap(d.session.Send(ctx, hlink.MsgReboot, nil), "reboot")
}

// SetImage sets the package used to verify an Unverified camera in Attach
// when no WriteFirmware ran in this session.
func (d *Device) SetImage(img *firmware.Image) { d.image = img }

// Replace carries state from the device instance that existed before a
// re-enumeration.
func (d *Device) Replace(donor *Device) {
	if donor == nil {
		return
	}
	d.image = donor.image
}

// SetProgress adds the steps of a full update to p
func (d *Device) SetProgress(p *progress.Progress) {
	p.AddStep("detach", 1)
	p.AddStep("write", 50)
	p.AddStep("attach", 44)
	p.AddStep("reload", 5)
}

// Close releases the vendor interface and forgets all session state
func (d *Device) Close() error {
	var err error
	if d.probed {
		err = d.backend.ReleaseInterface(d.vendorIface, false)
	}

	d.adapter = nil
	d.session = nil
	d.probed = false
	d.bulkOut, d.bulkIn = 0, 0
	d.interfacesClaimed = false
	d.pendingVerify = false
	d.image = nil

	return errors.Wrap(err, "release vendor interface")
}
