// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/hlinkctl/pkg/firmware"
	"github.com/Thermoquad/hlinkctl/pkg/progress"
	"github.com/Thermoquad/hlinkctl/pkg/updater"
)

// updateFlow drives a camera through a whole update:
// detach, write, (restart), attach, (restart), reload.
type updateFlow struct {
	opts          []updater.Option
	replugTimeout time.Duration
	progress      *progress.Progress

	// onEvent receives one line per milestone
	onEvent func(string)
}

func (f *updateFlow) event(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Debug().Msg(msg)
	if f.onEvent != nil {
		f.onEvent(msg)
	}
}

// run returns the firmware version the camera reports when done
func (f *updateFlow) run(ctx context.Context, img *firmware.Image) (string, error) {
	cam, err := openCamera(ctx, f.opts...)
	if err != nil {
		return "", err
	}
	f.event("Connected to %s, firmware %s", cam.info, cam.Info().Version)

	p := f.progress
	cam.SetProgress(p)

	if err := cam.Prepare(ctx); err != nil {
		cam.Close()
		return "", fmt.Errorf("detach media drivers: %w", err)
	}
	p.StepDone()

	f.event("Writing %s (%d bytes, sha256 %.12s)", img.Name(), img.Size(), img.Digest())
	err = cam.WriteFirmware(ctx, img, p.Child())
	if cerr := cam.Cleanup(ctx); cerr != nil {
		logger.Warn().Err(cerr).Msg("reattach media drivers")
	}
	if err != nil {
		cam.Close()
		return "", fmt.Errorf("write firmware: %w", err)
	}
	p.StepDone()

	if cam.Info().HasFlag(updater.FlagWaitForReplug) {
		f.event("Waiting for the camera to restart")
		if cam, err = reconnect(ctx, cam, f.replugTimeout, f.opts...); err != nil {
			return "", err
		}
		f.event("Camera is back, firmware %s", cam.Info().Version)
	}
	defer func() {
		if cerr := cam.Close(); cerr != nil {
			logger.Debug().Err(cerr).Msg("close camera")
		}
	}()

	f.event("Verifying")
	err = cam.Attach(ctx, p.Child())
	if cerr := cam.Cleanup(ctx); cerr != nil {
		logger.Warn().Err(cerr).Msg("reattach media drivers")
	}
	if err != nil {
		return "", fmt.Errorf("verify firmware: %w", err)
	}
	p.StepDone()

	if cam.Info().HasFlag(updater.FlagWaitForReplug) {
		f.event("Waiting for the camera to restart")
		next, err := reconnect(ctx, cam, f.replugTimeout, f.opts...)
		if err != nil {
			return "", err
		}
		cam = next
	}

	if err := cam.Reload(ctx); err != nil {
		return "", fmt.Errorf("reload: %w", err)
	}
	p.StepDone()

	f.event("Update complete, firmware %s", cam.Info().Version)
	return cam.Info().Version, nil
}
