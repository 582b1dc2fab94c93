// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport moves HLink frames over bulk endpoints: large writes are
// split into bounded chunks with per-transfer timeouts and progress, reads
// are a single bounded transfer.
package transport

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/hlinkctl/pkg/progress"
)

// Transfer defaults
const (
	DefaultChunkSize    = 16 * 1024
	DefaultWriteTimeout = 2000 * time.Millisecond
	DefaultReadTimeout  = 20000 * time.Millisecond
)

// Bulk performs one bulk transfer on an endpoint. The direction is encoded
// in the endpoint address (bit 7 set for IN). It returns the number of bytes
// actually transferred.
type Bulk interface {
	BulkTransfer(ctx context.Context, endpoint uint8, buf []byte, timeout time.Duration) (int, error)
}

// Adapter writes and reads whole messages on a pair of bulk endpoints
type Adapter struct {
	bulk         Bulk
	out, in      uint8
	chunkSize    int
	writeTimeout time.Duration
	readTimeout  time.Duration
	logger       zerolog.Logger
}

// Option configures an Adapter
type Option func(*Adapter)

// WithChunkSize sets the largest number of bytes handed to one OUT transfer
func WithChunkSize(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.chunkSize = n
		}
	}
}

// WithWriteTimeout sets the timeout of each OUT transfer
func WithWriteTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.writeTimeout = d }
}

// WithReadTimeout sets the timeout of an IN transfer
func WithReadTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.readTimeout = d }
}

// WithLogger sets the logger used for transfer traces
func WithLogger(l zerolog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// NewAdapter creates an adapter writing to out and reading from in
func NewAdapter(bulk Bulk, out, in uint8, opts ...Option) *Adapter {
	a := &Adapter{
		bulk:         bulk,
		out:          out,
		in:           in,
		chunkSize:    DefaultChunkSize,
		writeTimeout: DefaultWriteTimeout,
		readTimeout:  DefaultReadTimeout,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ChunkSize returns the configured chunk size
func (a *Adapter) ChunkSize() int { return a.chunkSize }

// Chunks returns the number of transfers a payload of size bytes is
// announced as: one per started chunk, and one for an empty payload.
func Chunks(size, chunkSize int) int {
	if size <= 0 {
		return 1
	}
	return (size + chunkSize - 1) / chunkSize
}

// Write sends data on the OUT endpoint in chunks. Partial transfers advance
// by the bytes the device accepted. An empty slice is sent as a single
// zero-length transfer. reporter may be nil.
func (a *Adapter) Write(ctx context.Context, data []byte, reporter progress.Reporter) error {
	if reporter != nil {
		reporter.SetSteps(Chunks(len(data), a.chunkSize))
	}

	if len(data) == 0 {
		if _, err := a.bulk.BulkTransfer(ctx, a.out, data, a.writeTimeout); err != nil {
			return errors.Wrapf(&Error{Endpoint: a.out, Err: err}, "zero-length write")
		}
		if reporter != nil {
			reporter.StepDone()
		}
		return nil
	}

	offset := 0
	for offset < len(data) {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "write cancelled at offset %d/%d", offset, len(data))
		}

		end := offset + a.chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[offset:end]

		n, err := a.bulk.BulkTransfer(ctx, a.out, chunk, a.writeTimeout)
		if err != nil {
			return errors.Wrapf(&Error{Endpoint: a.out, Err: err}, "write at offset %d/%d", offset, len(data))
		}
		if n <= 0 {
			return errors.Wrapf(&Error{Endpoint: a.out, Err: ErrShortWrite}, "write at offset %d/%d", offset, len(data))
		}
		if n > len(chunk) {
			n = len(chunk)
		}

		a.logger.Trace().Uint8("endpoint", a.out).Int("offset", offset).Int("len", n).Msg("bulk out")
		offset += n

		if reporter != nil {
			reporter.StepDone()
		}
	}

	return nil
}

// Read performs one IN transfer into buf and returns the byte count
func (a *Adapter) Read(ctx context.Context, buf []byte) (int, error) {
	n, err := a.bulk.BulkTransfer(ctx, a.in, buf, a.readTimeout)
	if err != nil {
		return 0, &Error{Endpoint: a.in, Err: err}
	}
	a.logger.Trace().Uint8("endpoint", a.in).Int("len", n).Msg("bulk in")
	return n, nil
}
