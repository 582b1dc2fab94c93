// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package updater

import (
	"strings"
	"time"
)

// Flag is a device capability or state flag
type Flag string

// Device flags
const (
	FlagUpdatable     Flag = "updatable"
	FlagSignedPayload Flag = "signed-payload"
	FlagWaitForReplug Flag = "wait-for-replug"
)

// Device identity
const (
	Protocol      = "com.huddly.usb"
	Icon          = "camera-web"
	VersionFormat = "triplet"

	// RemoveDelay is how long the camera may stay off the bus after a
	// reboot before the update is considered failed.
	RemoveDelay = 60 * time.Second
)

// Info is the device metadata reported to whatever drives the update
type Info struct {
	Version       string
	VersionFormat string
	Protocols     []string
	Flags         []Flag
	RemoveDelay   time.Duration
	Icon          string
}

func newInfo() Info {
	return Info{
		VersionFormat: VersionFormat,
		Flags:         []Flag{FlagUpdatable, FlagSignedPayload},
		RemoveDelay:   RemoveDelay,
		Icon:          Icon,
	}
}

// SetVersion records the firmware version
func (i *Info) SetVersion(v string) { i.Version = v }

// AddProtocol records a protocol identifier once
func (i *Info) AddProtocol(p string) {
	for _, have := range i.Protocols {
		if have == p {
			return
		}
	}
	i.Protocols = append(i.Protocols, p)
}

// AddFlag sets a flag
func (i *Info) AddFlag(f Flag) {
	if !i.HasFlag(f) {
		i.Flags = append(i.Flags, f)
	}
}

// RemoveFlag clears a flag
func (i *Info) RemoveFlag(f Flag) {
	out := i.Flags[:0]
	for _, have := range i.Flags {
		if have != f {
			out = append(out, have)
		}
	}
	i.Flags = out
}

// HasFlag reports whether f is set
func (i *Info) HasFlag(f Flag) bool {
	for _, have := range i.Flags {
		if have == f {
			return true
		}
	}
	return false
}

// FlagString lists the flags for display
func (i *Info) FlagString() string {
	names := make([]string, len(i.Flags))
	for n, f := range i.Flags {
		names[n] = string(f)
	}
	return strings.Join(names, ",")
}

// trimVersion cuts a version string at the first '-', dropping build
// suffixes such as "1.5.2-rc3".
func trimVersion(v string) string {
	if i := strings.IndexByte(v, '-'); i >= 0 {
		return v[:i]
	}
	return v
}
