// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"

	"github.com/Thermoquad/hlinkctl/pkg/hlink"
	"github.com/Thermoquad/hlinkctl/pkg/updater"
)

// idleGap ends a read once some bytes have arrived and the line goes quiet.
// It terminates replies that are not HLink frames, such as the salute.
const idleGap = 100 * time.Millisecond

// maxReplyPayload bounds the payload a reply may declare. A larger size
// means the bytes are not a frame header.
const maxReplyPayload = 1 << 20

// stream is the part of serial.Port the link uses
type stream interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// Serial carries frames over a serial line
type Serial struct {
	vendorOnly
	port    stream
	name    string
	discard uint64
	closed  bool
}

var _ updater.Backend = (*Serial)(nil)

// OpenSerial opens a serial port at 8N1
func OpenSerial(portName string, baudRate int) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", portName)
	}

	return &Serial{port: port, name: portName}, nil
}

// Name returns the port name
func (s *Serial) Name() string { return s.name }

// BulkTransfer writes buf for the OUT endpoint, or reads one frame into buf
// for the IN endpoint.
func (s *Serial) BulkTransfer(ctx context.Context, endpoint uint8, buf []byte, timeout time.Duration) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if endpoint&0x80 != 0 {
		return s.read(ctx, buf, timeout)
	}
	if len(buf) == 0 {
		return 0, nil
	}
	return s.port.Write(buf)
}

// read collects bytes until a whole frame is in buf, buf is full, or the
// line goes idle after partial data.
func (s *Serial) read(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	if err := s.drain(ctx, deadline); err != nil {
		return 0, err
	}

	n := 0
	want := len(buf)
	sized := false
	var overflow uint64

	for n < want {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			if n > 0 {
				return n, nil
			}
			return 0, ErrTimeout
		}
		idle := n > 0 && wait > idleGap
		if idle {
			wait = idleGap
		}

		if err := s.port.SetReadTimeout(wait); err != nil {
			return n, errors.Wrap(err, "set read timeout")
		}
		m, err := s.port.Read(buf[n:want])
		if err != nil {
			return n, err
		}
		if m == 0 {
			if idle {
				// not a frame, or one cut short; nothing to drop later
				return n, nil
			}
			continue
		}
		n += m

		if !sized {
			if total, ok := hlink.DeclaredSize(buf[:n]); ok {
				sized = true
				switch {
				case total > hlink.HeaderSize+hlink.MaxNameSize+maxReplyPayload:
					// free-form text such as the salute
				case total < uint64(want):
					want = int(total)
				default:
					overflow = total - uint64(want)
				}
			}
		}
	}

	// the rest of an oversized frame is dropped on the next read
	s.discard = overflow
	return n, nil
}

func (s *Serial) drain(ctx context.Context, deadline time.Time) error {
	scratch := make([]byte, 512)
	for s.discard > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		wait := time.Until(deadline)
		if wait <= 0 {
			return ErrTimeout
		}
		if err := s.port.SetReadTimeout(wait); err != nil {
			return errors.Wrap(err, "set read timeout")
		}
		chunk := scratch
		if uint64(len(chunk)) > s.discard {
			chunk = chunk[:s.discard]
		}
		m, err := s.port.Read(chunk)
		if err != nil {
			return err
		}
		s.discard -= uint64(m)
	}
	return nil
}

// Close closes the port
func (s *Serial) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.port.Close()
}
