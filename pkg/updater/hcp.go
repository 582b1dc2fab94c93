// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package updater

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Thermoquad/hlinkctl/pkg/hlink"
	"github.com/Thermoquad/hlinkctl/pkg/mpack"
	"github.com/Thermoquad/hlinkctl/pkg/progress"
)

// operationDone ends a package run
const operationDone = "done"

// writeFile stores data on the camera under name and checks the reply
// status.
func (d *Device) writeFile(ctx context.Context, p *progress.Progress, name string, data []byte) error {
	payload, err := mpack.Write([]mpack.Item{
		mpack.NewMap(2),
		mpack.NewString("name"), mpack.NewString(name),
		mpack.NewString("file_data"), mpack.NewBinary(data),
	})
	if err != nil {
		return errors.Wrap(err, "encode file write")
	}

	if err := d.session.Subscribe(ctx, hlink.MsgFileWriteReply); err != nil {
		return errors.Wrap(err, "write file")
	}

	var reporter progress.Reporter
	if p != nil {
		reporter = p
	}

	d.logger.Debug().Str("name", name).Int("size", len(data)).Int("payload", len(payload)).Msg("write file")
	if err := d.session.SendWithProgress(ctx, hlink.MsgFileWrite, payload, reporter); err != nil {
		return errors.Wrap(err, "write file")
	}

	reply, err := d.session.Receive(ctx)
	if err != nil {
		return errors.Wrap(err, "write file")
	}
	items, err := mpack.Parse(reply.Payload)
	if err != nil {
		return errors.Wrap(err, "write file reply")
	}

	status, err := requireInt(items, "status")
	if err != nil {
		return errors.Wrap(err, "write file reply")
	}
	if status != 0 {
		msg, _ := mpack.MapString(items, "string")
		return &ProtocolStatusError{Op: hlink.MsgFileWrite, Code: status, Message: msg}
	}

	return errors.Wrap(d.session.Unsubscribe(ctx, hlink.MsgFileWriteReply), "write file")
}

// runPackage executes an uploaded package and follows its status reports
// until the camera says it is done. It returns whether the camera asked to
// be rebooted.
func (d *Device) runPackage(ctx context.Context, name string) (bool, error) {
	payload, err := mpack.Write([]mpack.Item{
		mpack.NewMap(1),
		mpack.NewString("filename"), mpack.NewString(name),
	})
	if err != nil {
		return false, errors.Wrap(err, "encode package run")
	}

	if d.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.RunTimeout)
		defer cancel()
	}

	if err := d.session.Subscribe(ctx, hlink.MsgUpgraderStatus); err != nil {
		return false, errors.Wrap(err, "run package")
	}
	if err := d.session.Send(ctx, hlink.MsgPackageRun, payload); err != nil {
		return false, errors.Wrap(err, "run package")
	}

	reboot := false
	for updates := 0; ; updates++ {
		if d.config.MaxStatusUpdates > 0 && updates >= d.config.MaxStatusUpdates {
			return false, errors.Wrapf(ErrRunIncomplete, "after %d status updates", updates)
		}
		if err := ctx.Err(); err != nil {
			return false, errors.Wrap(err, "run package")
		}

		frame, err := d.session.Receive(ctx)
		if err != nil {
			return false, errors.Wrap(err, "run package")
		}
		items, err := mpack.Parse(frame.Payload)
		if err != nil {
			return false, errors.Wrap(err, "upgrader status")
		}

		operation, err := requireString(items, "operation")
		if err != nil {
			return false, errors.Wrap(err, "upgrader status")
		}
		code, err := requireInt(items, "error")
		if err != nil {
			return false, errors.Wrap(err, "upgrader status")
		}
		if code != 0 {
			return false, &ProtocolStatusError{Op: hlink.MsgPackageRun, Code: code, Message: operation}
		}
		reboot, err = requireBool(items, "reboot")
		if err != nil {
			return false, errors.Wrap(err, "upgrader status")
		}

		d.logger.Debug().Str("operation", operation).Bool("reboot", reboot).Msg("upgrader status")
		if operation == operationDone {
			break
		}
	}

	if err := d.session.Unsubscribe(ctx, hlink.MsgUpgraderStatus); err != nil {
		return false, errors.Wrap(err, "run package")
	}
	return reboot, nil
}
