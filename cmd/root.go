// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/hlinkctl/pkg/usbdev"
)

var (
	// USB connection flags
	usbVendor  uint16
	usbProduct uint16

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	verbose bool

	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "hlinkctl",
	Short: "HLink camera firmware update tool",
	Long: `hlinkctl - Update and inspect cameras that speak HLink over USB.

Provides commands to read the firmware version, run a full firmware update
including the verification pass after the camera restarts, and watch HLink
message topics.

Connection modes:
  USB (default): [--vid 0x2bd9] [--pid 0x0021]
  Serial:        --port /dev/ttyACM0 [--baud 115200]
  WebSocket:     --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the HLINK_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:      "1.0.0",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = newLogger(os.Stderr, verbose)
	},
}

func init() {
	// USB connection flags
	rootCmd.PersistentFlags().Uint16Var(&usbVendor, "vid", usbdev.VendorHuddly, "USB vendor ID")
	rootCmd.PersistentFlags().Uint16Var(&usbProduct, "pid", 0, "USB product ID (0 matches any product)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log protocol traces")
}

// Execute runs the root command. Ctrl+C cancels the command's context so
// transfers in flight stop at the next chunk.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
