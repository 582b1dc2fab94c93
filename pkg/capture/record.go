// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records HLink frames to a file as a CBOR sequence and
// reads them back. Each record is one frame with its direction and time.
package capture

import (
	"fmt"
	"time"

	"github.com/Thermoquad/hlinkctl/pkg/hlink"
)

// Direction of a captured frame relative to the host
type Direction uint8

// Directions
const (
	Sent Direction = iota
	Received
)

func (d Direction) String() string {
	switch d {
	case Sent:
		return "TX"
	case Received:
		return "RX"
	default:
		return fmt.Sprintf("dir(%d)", uint8(d))
	}
}

// Record is one captured frame
type Record struct {
	Time        int64     `cbor:"0,keyasint"` // unix nanoseconds
	Direction   Direction `cbor:"1,keyasint"`
	Name        string    `cbor:"2,keyasint"`
	RequestID   uint32    `cbor:"3,keyasint"`
	ResponseID  uint32    `cbor:"4,keyasint"`
	Flags       uint16    `cbor:"5,keyasint"`
	PayloadSize uint32    `cbor:"6,keyasint"`
	Payload     []byte    `cbor:"7,keyasint"` // possibly cut short, see PayloadSize
}

func newRecord(dir Direction, f *hlink.Frame, maxPayload int) Record {
	payload := f.Payload
	if maxPayload >= 0 && len(payload) > maxPayload {
		payload = payload[:maxPayload]
	}
	ts := f.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return Record{
		Time:        ts.UnixNano(),
		Direction:   dir,
		Name:        f.Name,
		RequestID:   f.Header.RequestID,
		ResponseID:  f.Header.ResponseID,
		Flags:       f.Header.Flags,
		PayloadSize: uint32(len(f.Payload)),
		Payload:     append([]byte(nil), payload...),
	}
}

// Timestamp returns the capture time
func (r *Record) Timestamp() time.Time {
	return time.Unix(0, r.Time)
}

// Truncated reports whether the stored payload is shorter than the frame's
func (r *Record) Truncated() bool {
	return uint32(len(r.Payload)) < r.PayloadSize
}

// FormatRecord formats a record into a human-readable string
func FormatRecord(r *Record) string {
	result := fmt.Sprintf("[%s] %s %s req=%d res=%d flags=0x%04X len=%d\n",
		r.Timestamp().Format("15:04:05.000"), r.Direction, r.Name,
		r.RequestID, r.ResponseID, r.Flags, r.PayloadSize)

	if r.Truncated() {
		result += fmt.Sprintf("  <%d of %d bytes captured>\n", len(r.Payload), r.PayloadSize)
	} else if len(r.Payload) > 0 {
		result += "  " + hlink.FormatPayload(r.Name, r.Payload) + "\n"
	}
	return result
}
