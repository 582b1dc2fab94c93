// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/hlinkctl/pkg/hlink"
	"github.com/Thermoquad/hlinkctl/pkg/link"
	"github.com/Thermoquad/hlinkctl/pkg/transport"
	"github.com/Thermoquad/hlinkctl/pkg/updater"
)

var (
	listenCount       int
	listenIdleTimeout time.Duration
)

// listenRetryDelay paces receive attempts after a failed read
const listenRetryDelay = 100 * time.Millisecond

var listenCmd = &cobra.Command{
	Use:   "listen TOPIC...",
	Short: "Subscribe to HLink topics and print messages as they arrive",
	Long: `Subscribe to one or more HLink message topics and print every frame received.

MessagePack payloads are shown as maps; other payloads as text or hex.
Runs until Ctrl+C or until --count frames have been printed.

Examples:
  hlinkctl listen upgrader/status
  hlinkctl listen --count 1 prodinfo/get_msgpack_reply`,
	Args: cobra.MinimumNArgs(1),
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().IntVar(&listenCount, "count", 0, "Stop after this many frames (0 = unlimited)")
	listenCmd.Flags().DurationVar(&listenIdleTimeout, "idle-timeout", 10*time.Minute, "Read timeout while waiting for frames (WebSocket links close when it expires)")
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cam, err := openCamera(ctx,
		updater.WithTransportOptions(transport.WithReadTimeout(listenIdleTimeout)))
	if err != nil {
		return err
	}
	defer cam.Close()

	fmt.Printf("hlinkctl - Listen\n")
	fmt.Printf("Connection: %s\n", cam.info)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	session := cam.Session()
	for _, topic := range args {
		if err := session.Subscribe(ctx, topic); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	defer func() {
		// the command context may already be cancelled
		unsubCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for _, topic := range args {
			if err := session.Unsubscribe(unsubCtx, topic); err != nil {
				logger.Debug().Err(err).Str("topic", topic).Msg("unsubscribe")
			}
		}
	}()

	received := 0
	for listenCount == 0 || received < listenCount {
		frame, err := session.Receive(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, link.ErrClosed):
				fmt.Printf("Connection closed\n")
				return nil
			case errors.Is(err, hlink.ErrTruncatedFrame):
				fmt.Printf("[ERROR] %v\n", err)
			default:
				// idle links time out on every read
				logger.Debug().Err(err).Msg("receive")
			}

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(listenRetryDelay):
			}
			continue
		}

		fmt.Print(hlink.FormatFrame(frame))
		received++
	}
	return nil
}
