// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Thermoquad/hlinkctl/pkg/hlink"
	"github.com/Thermoquad/hlinkctl/pkg/mpack"
)

// Statistics summarises a capture
type Statistics struct {
	FirstTime time.Time
	LastTime  time.Time

	// Counters
	TotalFrames    uint64
	SentFrames     uint64
	ReceivedFrames uint64
	SentBytes      uint64
	ReceivedBytes  uint64
	Truncated      uint64
	StatusErrors   uint64 // replies carrying a non-zero status or error

	ByName map[string]uint64
}

// NewStatistics creates an empty summary
func NewStatistics() *Statistics {
	return &Statistics{ByName: make(map[string]uint64)}
}

// Update adds one record to the summary
func (s *Statistics) Update(r *Record) {
	ts := r.Timestamp()
	if s.TotalFrames == 0 || ts.Before(s.FirstTime) {
		s.FirstTime = ts
	}
	if ts.After(s.LastTime) {
		s.LastTime = ts
	}

	s.TotalFrames++
	s.ByName[r.Name]++
	size := uint64(hlink.HeaderSize) + uint64(len(r.Name)) + uint64(r.PayloadSize)

	switch r.Direction {
	case Sent:
		s.SentFrames++
		s.SentBytes += size
	case Received:
		s.ReceivedFrames++
		s.ReceivedBytes += size
		if hasStatusError(r) {
			s.StatusErrors++
		}
	}

	if r.Truncated() {
		s.Truncated++
	}
}

func hasStatusError(r *Record) bool {
	if r.Truncated() {
		return false
	}
	items, err := mpack.Parse(r.Payload)
	if err != nil {
		return false
	}
	for _, key := range []string{"status", "error"} {
		if v, ok := mpack.MapInt(items, key); ok && v != 0 {
			return true
		}
	}
	return false
}

// Duration returns the time between the first and last record
func (s *Statistics) Duration() time.Duration {
	return s.LastTime.Sub(s.FirstTime)
}

// Format returns a human-readable summary
func (s *Statistics) Format() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Frames: %d (%d sent, %d received) over %s\n",
		s.TotalFrames, s.SentFrames, s.ReceivedFrames, s.Duration().Round(time.Millisecond))
	fmt.Fprintf(&b, "Bytes:  %d sent, %d received\n", s.SentBytes, s.ReceivedBytes)
	if s.StatusErrors > 0 {
		fmt.Fprintf(&b, "Status errors: %d\n", s.StatusErrors)
	}
	if s.Truncated > 0 {
		fmt.Fprintf(&b, "Payloads cut short: %d\n", s.Truncated)
	}

	names := make([]string, 0, len(s.ByName))
	for name := range s.ByName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "  %-28s %d\n", name, s.ByName[name])
	}

	return b.String()
}
