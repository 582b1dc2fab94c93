// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package updater

import (
	"fmt"

	"github.com/pkg/errors"
)

func isMedia(intf InterfaceDesc) bool {
	return intf.Class == ClassAudio || intf.Class == ClassVideo
}

// detachMediaDrivers claims every audio and video interface away from its
// kernel driver. Repeated calls do nothing until the interfaces are
// reattached.
func (d *Device) detachMediaDrivers() error {
	if d.interfacesClaimed {
		return nil
	}

	intfs, err := d.backend.Interfaces()
	if err != nil {
		return errors.Wrap(err, "list interfaces")
	}

	for _, intf := range intfs {
		if !isMedia(intf) {
			continue
		}
		if err := d.backend.ClaimInterface(intf.Number, true); err != nil {
			return errors.Wrapf(err, "claim media interface %d", intf.Number)
		}
		d.interfacesClaimed = true
		d.logger.Debug().Int("interface", intf.Number).Str("class", hexByte(intf.Class)).Msg("detached media driver")
	}
	return nil
}

// reattachMediaDrivers releases the audio and video control interfaces back
// to their kernel drivers. Release failures are logged and skipped.
func (d *Device) reattachMediaDrivers() error {
	if !d.interfacesClaimed {
		return nil
	}

	intfs, err := d.backend.Interfaces()
	if err != nil {
		return errors.Wrap(err, "list interfaces")
	}

	for _, intf := range intfs {
		if !isMedia(intf) || intf.SubClass != SubClassControl {
			continue
		}
		if err := d.backend.ReleaseInterface(intf.Number, true); err != nil {
			d.logger.Warn().Err(err).Int("interface", intf.Number).Msg("failed to reattach media driver")
			continue
		}
		d.logger.Debug().Int("interface", intf.Number).Msg("reattached media driver")
	}

	d.interfacesClaimed = false
	return nil
}

func hexByte(b uint8) string {
	return fmt.Sprintf("0x%02x", b)
}
