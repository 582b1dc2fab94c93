// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package updater

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/hlinkctl/pkg/hlink"
	"github.com/Thermoquad/hlinkctl/pkg/transport"
)

// FirmwareFileName is the name the package is stored under on the camera
const FirmwareFileName = "firmware.hpk"

// Config holds the device configuration
type Config struct {
	// Logger receives debug traces of the update flow
	Logger zerolog.Logger

	// RunTimeout bounds a whole package run; zero waits as long as the
	// device keeps reporting.
	RunTimeout time.Duration

	// MaxStatusUpdates bounds the number of status frames read during a
	// package run; zero means no bound.
	MaxStatusUpdates int

	// TransportOptions are passed to the bulk adapter
	TransportOptions []transport.Option

	// SessionOptions are passed to the HLink session
	SessionOptions []hlink.SessionOption
}

func defaultConfig() Config {
	return Config{
		Logger: zerolog.Nop(),
	}
}

// Option is a functional option for configuring a Device
type Option func(*Config)

// WithLogger sets the logger for the update flow and the layers below it
func WithLogger(l zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithRunTimeout bounds the total time of a package run.
//
// Example:
//
//	dev := updater.New(backend, updater.WithRunTimeout(10*time.Minute))
func WithRunTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.RunTimeout = d
	}
}

// WithMaxStatusUpdates bounds the number of upgrader status frames read
// before a package run is abandoned.
func WithMaxStatusUpdates(n int) Option {
	return func(c *Config) {
		c.MaxStatusUpdates = n
	}
}

// WithTransportOptions configures chunk size and transfer timeouts
func WithTransportOptions(opts ...transport.Option) Option {
	return func(c *Config) {
		c.TransportOptions = append(c.TransportOptions, opts...)
	}
}

// WithSessionOptions configures the HLink session, for example to install
// a capture tap.
func WithSessionOptions(opts ...hlink.SessionOption) Option {
	return func(c *Config) {
		c.SessionOptions = append(c.SessionOptions, opts...)
	}
}
