// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hlink

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/hlinkctl/pkg/progress"
)

type fakeTransport struct {
	written [][]byte
	replies [][]byte
	readErr error
	lastBuf int
}

func (f *fakeTransport) Write(ctx context.Context, data []byte, reporter progress.Reporter) error {
	f.written = append(f.written, data)
	if reporter != nil {
		reporter.SetSteps(1)
		reporter.StepDone()
	}
	return nil
}

func (f *fakeTransport) Read(ctx context.Context, buf []byte) (int, error) {
	f.lastBuf = len(buf)
	if f.readErr != nil {
		return 0, f.readErr
	}
	if len(f.replies) == 0 {
		return 0, errors.New("timeout")
	}
	n := copy(buf, f.replies[0])
	f.replies = f.replies[1:]
	return n, nil
}

type recordingTap struct {
	sent, received []string
}

func (r *recordingTap) OnSend(f *Frame)    { r.sent = append(r.sent, f.Name) }
func (r *recordingTap) OnReceive(f *Frame) { r.received = append(r.received, f.Name) }

func TestSession_Subscribe(t *testing.T) {
	tr := &fakeTransport{}
	s := NewSession(tr)

	require.NoError(t, s.Subscribe(context.Background(), MsgProductInfoReply))
	require.NoError(t, s.Unsubscribe(context.Background(), MsgProductInfoReply))
	require.Len(t, tr.written, 2)

	sub, err := Decode(tr.written[0])
	require.NoError(t, err)
	assert.Equal(t, MsgSubscribe, sub.Name)
	assert.Equal(t, []byte(MsgProductInfoReply), sub.Payload)

	unsub, err := Decode(tr.written[1])
	require.NoError(t, err)
	assert.Equal(t, MsgUnsubscribe, unsub.Name)
	assert.Equal(t, []byte(MsgProductInfoReply), unsub.Payload)
}

func TestSession_SendWithProgress(t *testing.T) {
	tr := &fakeTransport{}
	s := NewSession(tr)
	p := progress.New()

	require.NoError(t, s.SendWithProgress(context.Background(), MsgFileWrite, []byte{1, 2, 3}, p))
	assert.InDelta(t, 100, p.Percentage(), 0.001)
}

func TestSession_Receive(t *testing.T) {
	reply, err := Encode(MsgUpgraderStatus, []byte{0x80})
	require.NoError(t, err)

	tr := &fakeTransport{replies: [][]byte{reply}}
	tap := &recordingTap{}
	s := NewSession(tr, WithTap(tap))

	f, err := s.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MsgUpgraderStatus, f.Name)
	assert.Equal(t, ReceiveBufferSize, tr.lastBuf)
	assert.Equal(t, []string{MsgUpgraderStatus}, tap.received)
}

func TestSession_ReceiveOversizedReplyIsTruncated(t *testing.T) {
	reply, err := Encode(MsgProductInfoReply, []byte(strings.Repeat("x", 2000)))
	require.NoError(t, err)

	tr := &fakeTransport{replies: [][]byte{reply}}
	s := NewSession(tr)

	_, err = s.Receive(context.Background())
	assert.ErrorIs(t, err, ErrTruncatedFrame)
}

func TestSession_ReceiveSizeOption(t *testing.T) {
	reply, err := Encode(MsgProductInfoReply, []byte(strings.Repeat("x", 2000)))
	require.NoError(t, err)

	tr := &fakeTransport{replies: [][]byte{reply}}
	s := NewSession(tr, WithReceiveSize(4096))

	f, err := s.Receive(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.Payload, 2000)
}

func TestSession_ReceiveTransportError(t *testing.T) {
	backend := errors.New("timed out")
	s := NewSession(&fakeTransport{readErr: backend})

	_, err := s.Receive(context.Background())
	assert.ErrorIs(t, err, backend)
}

func TestSession_TapSeesSends(t *testing.T) {
	tap := &recordingTap{}
	s := NewSession(&fakeTransport{}, WithTap(tap))

	require.NoError(t, s.Send(context.Background(), MsgReboot, nil))
	assert.Equal(t, []string{MsgReboot}, tap.sent)
}

func TestFormatPayload(t *testing.T) {
	assert.Equal(t, `topic="hcp/write_reply"`, FormatPayload(MsgSubscribe, []byte("hcp/write_reply")))
	assert.Equal(t, `{"status": 0}`, FormatPayload(MsgFileWriteReply, []byte{0x81, 0xa6, 's', 't', 'a', 't', 'u', 's', 0x00}))
	assert.Equal(t, "00 C1 FF", FormatPayload("x", []byte{0x00, 0xc1, 0xff}))

	out := FormatFrame(NewFrame(MsgReboot, nil))
	assert.Contains(t, out, MsgReboot)
	assert.Contains(t, out, "len=0")
}
