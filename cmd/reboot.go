// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rebootCmd = &cobra.Command{
	Use:   "reboot",
	Short: "Restart the camera",
	Long: `Send camctrl/reboot to the camera. The command returns as soon as the
request is sent; the camera drops off the bus while it restarts.

Exit codes:
  0 - Reboot requested
  1 - Request failed
  2 - Connection error`,
	RunE: runReboot,
}

func init() {
	rootCmd.AddCommand(rebootCmd)
}

func runReboot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cam, err := openCamera(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer cam.Close()

	fmt.Printf("Connection: %s\n", cam.info)
	if err := cam.Reboot(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Reboot failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Reboot requested (firmware %s)\n", cam.Info().Version)
	return nil
}
