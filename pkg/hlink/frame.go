// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hlink

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

// Header is the fixed-width frame header
type Header struct {
	RequestID   uint32
	ResponseID  uint32
	Flags       uint16
	NameSize    uint16
	PayloadSize uint32
}

// Frame is a decoded HLink message
type Frame struct {
	Header    Header
	Name      string
	Payload   []byte
	Timestamp time.Time
}

// NewFrame creates a frame whose header lengths match name and payload.
// The request, response and flags fields are left zero, as the host never
// correlates requests.
func NewFrame(name string, payload []byte) *Frame {
	return &Frame{
		Header: Header{
			NameSize:    uint16(len(name)),
			PayloadSize: uint32(len(payload)),
		},
		Name:      name,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Size returns the total framed size in bytes
func (f *Frame) Size() int {
	return HeaderSize + int(f.Header.NameSize) + int(f.Header.PayloadSize)
}

// Encode serialises the frame to wire format
func (f *Frame) Encode() ([]byte, error) {
	if len(f.Name) != int(f.Header.NameSize) || uint64(len(f.Payload)) != uint64(f.Header.PayloadSize) {
		return nil, errors.Errorf("hlink: header lengths (%d, %d) do not match name/payload (%d, %d)",
			f.Header.NameSize, f.Header.PayloadSize, len(f.Name), len(f.Payload))
	}

	buf := make([]byte, f.Size())
	putHeader(buf, f.Header)
	offset := HeaderSize
	offset += copy(buf[offset:], f.Name)
	copy(buf[offset:], f.Payload)

	return buf, nil
}

// Encode builds a complete wire-format frame for the given message name and
// payload. A nil payload encodes with a zero payload length.
func Encode(name string, payload []byte) ([]byte, error) {
	if len(name) > MaxNameSize {
		return nil, errors.Wrapf(ErrFieldOverflow, "message name is %d bytes (max %d)", len(name), MaxNameSize)
	}
	if uint64(len(payload)) > MaxPayloadSize {
		return nil, errors.Wrapf(ErrFieldOverflow, "payload is %d bytes (max %d)", len(payload), uint64(MaxPayloadSize))
	}
	return NewFrame(name, payload).Encode()
}

// Decode parses a wire-format frame. Bytes beyond the declared frame size
// are ignored. The returned frame does not alias data.
func Decode(data []byte) (*Frame, error) {
	if len(data) < HeaderSize {
		return nil, errors.Wrapf(ErrTruncatedFrame, "got %d bytes, header needs %d", len(data), HeaderSize)
	}

	h := parseHeader(data)
	total := uint64(HeaderSize) + uint64(h.NameSize) + uint64(h.PayloadSize)
	if uint64(len(data)) < total {
		return nil, errors.Wrapf(ErrTruncatedFrame, "got %d bytes, header declares %d", len(data), total)
	}

	offset := HeaderSize
	name := string(data[offset : offset+int(h.NameSize)])
	offset += int(h.NameSize)

	payload := make([]byte, h.PayloadSize)
	copy(payload, data[offset:offset+int(h.PayloadSize)])

	return &Frame{
		Header:    h,
		Name:      name,
		Payload:   payload,
		Timestamp: time.Now(),
	}, nil
}

func putHeader(buf []byte, h Header) {
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], h.RequestID)
	le.PutUint32(buf[4:8], h.ResponseID)
	le.PutUint16(buf[8:10], h.Flags)
	le.PutUint16(buf[10:12], h.NameSize)
	le.PutUint32(buf[12:16], h.PayloadSize)
}

func parseHeader(buf []byte) Header {
	le := binary.LittleEndian
	return Header{
		RequestID:   le.Uint32(buf[0:4]),
		ResponseID:  le.Uint32(buf[4:8]),
		Flags:       le.Uint16(buf[8:10]),
		NameSize:    le.Uint16(buf[10:12]),
		PayloadSize: le.Uint32(buf[12:16]),
	}
}

// DeclaredSize returns the total frame size announced by the header at the
// start of data. It reports false when data is shorter than a header.
func DeclaredSize(data []byte) (uint64, bool) {
	if len(data) < HeaderSize {
		return 0, false
	}
	h := parseHeader(data)
	return uint64(HeaderSize) + uint64(h.NameSize) + uint64(h.PayloadSize), true
}
