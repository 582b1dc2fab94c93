// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hlink

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Thermoquad/hlinkctl/pkg/mpack"
)

// maxHexBytes bounds the payload bytes shown in a hex dump
const maxHexBytes = 64

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.Timestamp.Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %s req=%d res=%d flags=0x%04X len=%d\n",
		timestamp, f.Name, f.Header.RequestID, f.Header.ResponseID, f.Header.Flags, len(f.Payload))

	if len(f.Payload) > 0 {
		result += "  " + FormatPayload(f.Name, f.Payload) + "\n"
	}
	return result
}

// FormatPayload renders a payload: mailbox control frames carry a raw topic
// name, most others carry MessagePack. Anything else is shown as hex.
func FormatPayload(name string, payload []byte) string {
	if name == MsgSubscribe || name == MsgUnsubscribe {
		return fmt.Sprintf("topic=%q", string(payload))
	}

	if items, err := mpack.Parse(payload); err == nil && len(items) > 0 && items[0].Kind() == mpack.KindMap {
		return mpack.Format(items)
	}

	if isPrintable(payload) {
		return fmt.Sprintf("%q", string(payload))
	}

	return formatHex(payload)
}

func isPrintable(b []byte) bool {
	for _, r := range string(b) {
		if r == unicode.ReplacementChar || !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func formatHex(b []byte) string {
	shown := b
	if len(shown) > maxHexBytes {
		shown = shown[:maxHexBytes]
	}

	var sb strings.Builder
	for i, c := range shown {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", c)
	}
	if len(b) > maxHexBytes {
		fmt.Fprintf(&sb, " ... (%d more)", len(b)-maxHexBytes)
	}
	return sb.String()
}
