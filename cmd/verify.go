// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/hlinkctl/pkg/firmware"
	"github.com/Thermoquad/hlinkctl/pkg/updater"
)

var verifyCmd = &cobra.Command{
	Use:   "verify FILE",
	Short: "Verify firmware on a camera left in the Unverified state",
	Long: `Finish an interrupted update by uploading and running the package again.

A camera that restarted after an update but was never verified reports the
"Unverified" state. This command runs the verification pass with the same
package and waits for the camera to settle in "Verified". A camera that is
already verified is left untouched.

Examples:
  hlinkctl verify camera-1.5.2.hpk
  hlinkctl verify --port /dev/ttyACM0 camera-1.5.2.hpk

Exit codes:
  0 - Camera is verified
  1 - Verification failed
  2 - Connection or file error`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().DurationVar(&replugTimeout, "replug-timeout", updater.RemoveDelay, "How long to wait for the camera after a restart")
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	img, err := firmware.Load(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Firmware error: %v\n", err)
		os.Exit(2)
	}

	cam, err := openCamera(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("hlinkctl - Verify\n")
	fmt.Printf("Connection: %s\n", cam.info)

	prod, err := cam.QueryProductInfo(ctx)
	if err != nil {
		cam.Close()
		fmt.Fprintf(os.Stderr, "Product info query failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Firmware: %s (%s)\n\n", prod.Version, prod.State)

	if prod.State != updater.StateUnverified {
		cam.Close()
		fmt.Printf("Nothing to verify\n")
		return nil
	}

	cam.SetImage(img)
	fmt.Printf("Verifying with %s...\n", img.Name())
	err = cam.Attach(ctx, nil)
	if cerr := cam.Cleanup(ctx); cerr != nil {
		logger.Warn().Err(cerr).Msg("reattach media drivers")
	}
	if err != nil {
		cam.Close()
		fmt.Fprintf(os.Stderr, "Verification failed: %v\n", err)
		os.Exit(1)
	}

	if cam.Info().HasFlag(updater.FlagWaitForReplug) {
		fmt.Printf("Waiting for the camera to restart...\n")
		cam, err = reconnect(ctx, cam, replugTimeout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Camera did not return: %v\n", err)
			os.Exit(1)
		}
	}
	defer cam.Close()

	if err := cam.Reload(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Verification failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("SUCCESS: firmware %s verified\n", cam.Info().Version)
	return nil
}
