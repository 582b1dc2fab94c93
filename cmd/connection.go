// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/Thermoquad/hlinkctl/pkg/link"
	"github.com/Thermoquad/hlinkctl/pkg/updater"
	"github.com/Thermoquad/hlinkctl/pkg/usbdev"
)

// Backend is an open link to a camera
type Backend interface {
	updater.Backend
	Close() error
}

// Polling while a camera restarts
const (
	replugSettle = 2 * time.Second
	replugPoll   = time.Second
)

// password is read once per run so that reconnecting after a reboot does
// not prompt again
var (
	password     string
	havePassword bool
)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if havePassword {
		return password, nil
	}

	// First check environment variable
	if pw := os.Getenv("HLINK_PASSWORD"); pw != "" {
		password, havePassword = pw, true
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		password, havePassword = strings.TrimSpace(line), true
		return password, nil
	}

	fmt.Fprintln(os.Stderr)
	password, havePassword = string(passwordBytes), true
	return password, nil
}

// OpenBackend opens a WebSocket, serial or USB link based on flags
func OpenBackend(ctx context.Context) (Backend, string, error) {
	if wsURL != "" {
		pw := ""
		if wsUsername != "" {
			var err error
			pw, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		ws, err := link.DialWebSocket(ctx, wsURL, wsUsername, pw, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return ws, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if portName != "" {
		s, err := link.OpenSerial(portName, baudRate)
		if err != nil {
			return nil, "", err
		}
		return s, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	dev, err := usbdev.Open(usbVendor, usbProduct, logger)
	if err != nil {
		return nil, "", err
	}
	vid, pid := dev.ID()
	info := fmt.Sprintf("USB: %04x:%04x", vid, pid)
	if s := dev.Strings(); s.Product != "" {
		info += fmt.Sprintf(" (%s %s)", s.Manufacturer, s.Product)
	}
	return dev, info, nil
}

// camera is a probed and set up device together with its link
type camera struct {
	*updater.Device
	backend Backend
	info    string
}

// openCamera opens the link, probes the device and runs setup, which reads
// the firmware version
func openCamera(ctx context.Context, opts ...updater.Option) (*camera, error) {
	backend, info, err := OpenBackend(ctx)
	if err != nil {
		return nil, err
	}

	opts = append([]updater.Option{updater.WithLogger(logger)}, opts...)
	dev := updater.New(backend, opts...)

	if err := dev.Probe(); err != nil {
		backend.Close()
		return nil, fmt.Errorf("probe: %w", err)
	}
	if err := dev.Setup(ctx); err != nil {
		dev.Close()
		backend.Close()
		return nil, fmt.Errorf("setup: %w", err)
	}

	return &camera{Device: dev, backend: backend, info: info}, nil
}

// Close releases the vendor interface and closes the link
func (c *camera) Close() error {
	err := c.Device.Close()
	if cerr := c.backend.Close(); err == nil {
		err = cerr
	}
	return err
}

// reconnect waits for a rebooting camera to come back and opens it again.
// The old link is closed first; the returned camera carries the old one's
// cached image.
func reconnect(ctx context.Context, old *camera, timeout time.Duration, opts ...updater.Option) (*camera, error) {
	if err := old.backend.Close(); err != nil {
		logger.Debug().Err(err).Msg("close link before replug")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-time.After(replugSettle):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for attempt := 1; ; attempt++ {
		cam, err := openCamera(ctx, opts...)
		if err == nil {
			cam.Replace(old.Device)
			logger.Debug().Int("attempts", attempt).Msg("camera reconnected")
			return cam, nil
		}
		logger.Debug().Err(err).Int("attempt", attempt).Msg("camera not back yet")

		select {
		case <-time.After(replugPoll):
		case <-ctx.Done():
			return nil, fmt.Errorf("camera did not return within %s: %w", timeout, err)
		}
	}
}
