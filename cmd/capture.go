// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/hlinkctl/pkg/capture"
)

var (
	captureSummary bool
	captureName    string
)

var captureCmd = &cobra.Command{
	Use:   "capture FILE",
	Short: "Print a frame capture recorded by update --record",
	Long: `Decode a capture file and print each recorded HLink frame, followed by a summary.

Upload payloads are stored cut short; the summary counts them, along with
replies that carried a non-zero status or error code.

Exit codes:
  0 - Capture printed
  1 - Capture is corrupt (records before the damage are printed)
  2 - File error`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().BoolVar(&captureSummary, "summary", false, "Only print the summary")
	captureCmd.Flags().StringVar(&captureName, "name", "", "Only print frames with this message name")
}

func runCapture(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "File error: %v\n", err)
		os.Exit(2)
	}
	defer f.Close()

	reader := capture.NewReader(f)
	stats := capture.NewStatistics()

	var readErr error
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErr = err
			break
		}

		stats.Update(rec)
		if captureSummary || (captureName != "" && rec.Name != captureName) {
			continue
		}
		fmt.Print(capture.FormatRecord(rec))
	}

	if !captureSummary {
		fmt.Println()
	}
	fmt.Print(stats.Format())

	if readErr != nil {
		fmt.Fprintf(os.Stderr, "Capture error: %v\n", readErr)
		os.Exit(1)
	}
	return nil
}
