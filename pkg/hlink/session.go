// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hlink

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/hlinkctl/pkg/progress"
)

// Transport carries encoded frames. *transport.Adapter implements it.
type Transport interface {
	Write(ctx context.Context, data []byte, reporter progress.Reporter) error
	Read(ctx context.Context, buf []byte) (int, error)
}

// Tap observes every frame a Session sends or receives
type Tap interface {
	OnSend(f *Frame)
	OnReceive(f *Frame)
}

// Session exchanges named messages with the device. Requests and replies
// are not correlated by ID; a caller subscribes to the reply topic before
// sending and then receives.
type Session struct {
	transport   Transport
	receiveSize int
	tap         Tap
	logger      zerolog.Logger
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithReceiveSize overrides the receive buffer size
func WithReceiveSize(n int) SessionOption {
	return func(s *Session) {
		if n >= HeaderSize {
			s.receiveSize = n
		}
	}
}

// WithTap installs a frame observer
func WithTap(t Tap) SessionOption {
	return func(s *Session) { s.tap = t }
}

// WithLogger sets the session logger
func WithLogger(l zerolog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// NewSession creates a session over t
func NewSession(t Transport, opts ...SessionOption) *Session {
	s := &Session{
		transport:   t,
		receiveSize: ReceiveBufferSize,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send frames name and payload and writes it in one call
func (s *Session) Send(ctx context.Context, name string, payload []byte) error {
	return s.SendWithProgress(ctx, name, payload, nil)
}

// SendWithProgress is Send with chunk progress reported to reporter
func (s *Session) SendWithProgress(ctx context.Context, name string, payload []byte, reporter progress.Reporter) error {
	data, err := Encode(name, payload)
	if err != nil {
		return errors.Wrapf(err, "send %s", name)
	}

	s.logger.Debug().Str("name", name).Int("payload", len(payload)).Msg("send")
	if s.tap != nil {
		s.tap.OnSend(NewFrame(name, payload))
	}

	if err := s.transport.Write(ctx, data, reporter); err != nil {
		return errors.Wrapf(err, "send %s", name)
	}
	return nil
}

// Receive reads one frame. A reply that does not fit the receive buffer
// surfaces as ErrTruncatedFrame.
func (s *Session) Receive(ctx context.Context) (*Frame, error) {
	buf := make([]byte, s.receiveSize)
	n, err := s.transport.Read(ctx, buf)
	if err != nil {
		return nil, errors.Wrap(err, "receive")
	}

	frame, err := Decode(buf[:n])
	if err != nil {
		return nil, errors.Wrapf(err, "receive (%d bytes)", n)
	}

	s.logger.Debug().Str("name", frame.Name).Int("payload", len(frame.Payload)).Msg("receive")
	if s.tap != nil {
		s.tap.OnReceive(frame)
	}
	return frame, nil
}

// Subscribe asks the device to deliver messages published on topic.
// The device does not acknowledge.
func (s *Session) Subscribe(ctx context.Context, topic string) error {
	s.logger.Debug().Str("topic", topic).Msg("subscribe")
	return s.Send(ctx, MsgSubscribe, []byte(topic))
}

// Unsubscribe stops delivery of topic
func (s *Session) Unsubscribe(ctx context.Context, topic string) error {
	s.logger.Debug().Str("topic", topic).Msg("unsubscribe")
	return s.Send(ctx, MsgUnsubscribe, []byte(topic))
}
