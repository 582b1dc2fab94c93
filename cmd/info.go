// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/hlinkctl/pkg/updater"
	"github.com/Thermoquad/hlinkctl/pkg/usbdev"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the camera's firmware version and state",
	Long: `Connect to the camera, run the HLink handshake and print product information.

The firmware state is "Verified" on a camera running accepted firmware and
"Unverified" after an update that has not been verified yet (see the verify
command).

Exit codes:
  0 - Product information read
  1 - Handshake or product info query failed
  2 - Connection error`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	backend, connInfo, err := OpenBackend(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer backend.Close()

	fmt.Printf("hlinkctl - Camera Info\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	dev := updater.New(backend, updater.WithLogger(logger))
	if err := dev.Probe(); err != nil {
		fmt.Fprintf(os.Stderr, "Probe failed: %v\n", err)
		os.Exit(1)
	}
	defer dev.Close()

	if err := dev.Setup(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Setup failed: %v\n", err)
		os.Exit(1)
	}

	prod, err := dev.QueryProductInfo(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Product info query failed: %v\n", err)
		os.Exit(1)
	}

	info := dev.Info()
	if usb, ok := backend.(*usbdev.Device); ok {
		s := usb.Strings()
		fmt.Printf("  Manufacturer: %s\n", s.Manufacturer)
		fmt.Printf("  Product:      %s\n", s.Product)
		fmt.Printf("  Serial:       %s\n", s.Serial)
	}
	fmt.Printf("  Version:      %s (%s)\n", info.Version, prod.Version)
	fmt.Printf("  State:        %s\n", prod.State)
	fmt.Printf("  Protocols:    %s\n", strings.Join(info.Protocols, ", "))
	fmt.Printf("  Flags:        %s\n", info.FlagString())

	return nil
}
