// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Thermoquad/hlinkctl/pkg/capture"
	"github.com/Thermoquad/hlinkctl/pkg/firmware"
	"github.com/Thermoquad/hlinkctl/pkg/hlink"
	"github.com/Thermoquad/hlinkctl/pkg/progress"
	"github.com/Thermoquad/hlinkctl/pkg/transport"
	"github.com/Thermoquad/hlinkctl/pkg/updater"
)

var (
	useTUI        bool
	recordPath    string
	runTimeout    time.Duration
	replugTimeout time.Duration
	chunkSize     int
)

var updateCmd = &cobra.Command{
	Use:   "update FILE",
	Short: "Write a firmware package to the camera",
	Long: `Upload an .hpk firmware package, run it and verify it after the camera restarts.

The update runs in these steps:
  1. Detach the audio and video drivers from the camera
  2. Upload the package as firmware.hpk and run it
  3. Reboot and wait for the camera to come back (--replug-timeout)
  4. If the camera reports "Unverified", upload and run the package again
     to verify it, then wait for the second restart
  5. Check that the camera reports "Verified"

Use --record to save every HLink frame exchanged to a capture file that the
capture command can print later.

Exit codes:
  0 - Firmware updated and verified
  1 - Update failed
  2 - Connection or file error`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
	updateCmd.Flags().StringVar(&recordPath, "record", "", "Record HLink frames to a capture file")
	updateCmd.Flags().DurationVar(&runTimeout, "run-timeout", 0, "Limit on a single package run (0 waits as long as the camera reports)")
	updateCmd.Flags().DurationVar(&replugTimeout, "replug-timeout", updater.RemoveDelay, "How long to wait for the camera after a restart")
	updateCmd.Flags().IntVar(&chunkSize, "chunk-size", transport.DefaultChunkSize, "Bulk transfer chunk size in bytes")
}

// updateOptions builds the device options shared by every connection made
// during one update
func updateOptions(rec *capture.Recorder) []updater.Option {
	opts := []updater.Option{
		updater.WithTransportOptions(transport.WithChunkSize(chunkSize)),
	}
	if runTimeout > 0 {
		opts = append(opts, updater.WithRunTimeout(runTimeout))
	}
	if rec != nil {
		opts = append(opts, updater.WithSessionOptions(hlink.WithTap(rec)))
	}
	return opts
}

func runUpdate(cmd *cobra.Command, args []string) error {
	img, err := firmware.Load(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Firmware error: %v\n", err)
		os.Exit(2)
	}

	var rec *capture.Recorder
	if recordPath != "" {
		f, err := os.Create(recordPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Capture error: %v\n", err)
			os.Exit(2)
		}
		defer f.Close()
		rec = capture.NewRecorder(f)
	}

	flow := &updateFlow{
		opts:          updateOptions(rec),
		replugTimeout: replugTimeout,
		progress:      progress.New(),
	}

	if useTUI && term.IsTerminal(int(os.Stdout.Fd())) {
		err = runUpdateTUI(cmd.Context(), flow, img)
	} else {
		err = runUpdateText(cmd.Context(), flow, img)
	}

	if rec != nil {
		fmt.Printf("Recorded %d frames to %s\n", rec.Count(), recordPath)
		if rerr := rec.Err(); rerr != nil {
			fmt.Fprintf(os.Stderr, "Capture error: %v\n", rerr)
		}
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Update failed: %v\n", err)
		os.Exit(1)
	}
	return nil
}

func runUpdateText(ctx context.Context, flow *updateFlow, img *firmware.Image) error {
	fmt.Printf("hlinkctl - Firmware Update\n")
	fmt.Printf("Image: %s (%d bytes)\n", img.Name(), img.Size())
	fmt.Printf("SHA-256: %s\n\n", img.Digest())

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("starting"),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() { fmt.Println() }),
	)

	flow.progress.SetChangeFunc(func(pct float64, status string) {
		if status != "" {
			bar.Describe(status)
		}
		bar.Set(int(pct))
	})
	flow.onEvent = func(msg string) {
		bar.Clear()
		fmt.Println(msg)
	}

	version, err := flow.run(ctx, img)
	if err != nil {
		fmt.Println()
		return err
	}
	bar.Finish()

	fmt.Printf("SUCCESS: camera is running firmware %s\n", version)
	return nil
}

func runUpdateTUI(ctx context.Context, flow *updateFlow, img *firmware.Image) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := initialUpdateModel(img.Name(), img.Size(), img.Digest(), cancel)
	p := tea.NewProgram(m)

	// Log lines go to the TUI while it owns the terminal
	previous := logger
	logger = newProgramLogger(p, verbose)
	defer func() { logger = previous }()

	flow.progress.SetChangeFunc(func(pct float64, status string) {
		p.Send(progressMsg{percent: pct, status: status})
	})
	flow.onEvent = func(msg string) {
		p.Send(eventMsg(msg))
	}

	result := make(chan doneMsg, 1)
	go func() {
		version, err := flow.run(ctx, img)
		msg := doneMsg{version: version, err: err}
		result <- msg
		p.Send(msg)
	}()

	final, err := p.Run()
	if err != nil {
		cancel()
		return fmt.Errorf("TUI error: %w", err)
	}

	// q before the flow finished cancels it; wait for it to unwind
	cancel()
	done := <-result

	if fm, ok := final.(updateModel); ok {
		fmt.Printf("Elapsed: %s\n", formatElapsed(fm.elapsed))
	}
	if done.err != nil {
		return done.err
	}
	fmt.Printf("SUCCESS: camera is running firmware %s\n", done.version)
	return nil
}
