// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"io"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/Thermoquad/hlinkctl/pkg/hlink"
)

// DefaultMaxPayload bounds the stored payload of each record so that
// firmware uploads do not copy the whole image into the capture.
const DefaultMaxPayload = 4096

// Recorder writes frames to a CBOR sequence. It implements hlink.Tap.
// Write failures stop recording; the first one is kept for Err.
type Recorder struct {
	mu         sync.Mutex
	enc        *cbor.Encoder
	maxPayload int
	count      int
	err        error
}

var _ hlink.Tap = (*Recorder)(nil)

// RecorderOption configures a Recorder
type RecorderOption func(*Recorder)

// WithMaxPayload sets the stored payload limit; a negative value stores
// payloads in full.
func WithMaxPayload(n int) RecorderOption {
	return func(r *Recorder) { r.maxPayload = n }
}

// NewRecorder creates a recorder writing to w
func NewRecorder(w io.Writer, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		enc:        cbor.NewEncoder(w),
		maxPayload: DefaultMaxPayload,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnSend records an outgoing frame
func (r *Recorder) OnSend(f *hlink.Frame) { r.record(Sent, f) }

// OnReceive records an incoming frame
func (r *Recorder) OnReceive(f *hlink.Frame) { r.record(Received, f) }

func (r *Recorder) record(dir Direction, f *hlink.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return
	}
	if err := r.enc.Encode(newRecord(dir, f, r.maxPayload)); err != nil {
		r.err = errors.Wrapf(err, "write capture record %d", r.count)
		return
	}
	r.count++
}

// Count returns the number of records written
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Err returns the first write error
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Reader reads records from a CBOR sequence
type Reader struct {
	dec   *cbor.Decoder
	count int
}

// NewReader creates a reader over r
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF after the last one
func (r *Reader) Next() (*Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrapf(err, "read capture record %d", r.count)
	}
	r.count++
	return &rec, nil
}
