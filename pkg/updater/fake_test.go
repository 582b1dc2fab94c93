// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package updater

import (
	"context"
	"errors"
	"time"

	"github.com/Thermoquad/hlinkctl/pkg/hlink"
	"github.com/Thermoquad/hlinkctl/pkg/mpack"
)

// status is one upgrader/status report the fake camera publishes
type status struct {
	operation string
	code      int64
	reboot    bool
}

// fakeCamera is a scripted camera behind the Backend interface. OUT bytes
// are collected until they form a complete frame, which is then answered
// according to the script.
type fakeCamera struct {
	interfaces []InterfaceDesc

	version string
	state   string

	writeStatus  int64
	writeMessage string
	runStatus    []status

	// stateAfterRun replaces state once a package run reports done
	stateAfterRun string

	// omitState drops the state key from product info replies
	omitState bool

	pending []byte
	replies [][]byte

	resets      int
	salutes     int
	frames      []string
	subscribed  []string
	unsubscribe []string
	files       map[string][]byte
	runs        []string

	claimed    map[int]bool
	claims     []int
	releases   []int
	releaseErr error
	readErr    error
}

func newFakeCamera() *fakeCamera {
	return &fakeCamera{
		interfaces: []InterfaceDesc{
			{Number: 0, Class: ClassVideo, SubClass: SubClassControl},
			{Number: 1, Class: ClassVideo, SubClass: 0x02},
			{Number: 2, Class: ClassAudio, SubClass: SubClassControl},
			{Number: 3, Class: ClassAudio, SubClass: 0x02},
			{Number: 4, Class: ClassVendorSpecific, Endpoints: []EndpointDesc{{Address: 0x01}, {Address: 0x81}}},
		},
		version: "1.5.2-rc3",
		state:   StateVerified,
		runStatus: []status{
			{operation: "verifying", code: 0, reboot: false},
			{operation: "done", code: 0, reboot: true},
		},
		files:   make(map[string][]byte),
		claimed: make(map[int]bool),
	}
}

func (c *fakeCamera) Interfaces() ([]InterfaceDesc, error) {
	return c.interfaces, nil
}

func (c *fakeCamera) ClaimInterface(number int, detachKernel bool) error {
	c.claims = append(c.claims, number)
	c.claimed[number] = true
	return nil
}

func (c *fakeCamera) ReleaseInterface(number int, reattach bool) error {
	c.releases = append(c.releases, number)
	if c.releaseErr != nil {
		return c.releaseErr
	}
	delete(c.claimed, number)
	return nil
}

func (c *fakeCamera) BulkTransfer(ctx context.Context, endpoint uint8, buf []byte, timeout time.Duration) (int, error) {
	if endpoint&0x80 != 0 {
		return c.read(ctx, buf)
	}
	c.write(buf)
	return len(buf), nil
}

func (c *fakeCamera) read(ctx context.Context, buf []byte) (int, error) {
	if c.readErr != nil {
		return 0, c.readErr
	}
	if len(c.replies) == 0 {
		if _, ok := ctx.Deadline(); ok {
			<-ctx.Done()
			return 0, ctx.Err()
		}
		return 0, errors.New("LIBUSB_ERROR_TIMEOUT")
	}
	n := copy(buf, c.replies[0])
	c.replies = c.replies[1:]
	return n, nil
}

func (c *fakeCamera) write(buf []byte) {
	switch {
	case len(buf) == 0:
		c.resets++
		return
	case len(buf) == 1 && len(c.pending) == 0 && buf[0] == 0x00:
		c.salutes++
		c.replies = append(c.replies, []byte("HLink v0\x00"))
		return
	}

	c.pending = append(c.pending, buf...)
	frame, err := hlink.Decode(c.pending)
	if err != nil || frame.Size() != len(c.pending) {
		return
	}
	c.pending = nil
	c.handle(frame)
}

func (c *fakeCamera) handle(f *hlink.Frame) {
	c.frames = append(c.frames, f.Name)

	switch f.Name {
	case hlink.MsgSubscribe:
		c.subscribed = append(c.subscribed, string(f.Payload))
	case hlink.MsgUnsubscribe:
		c.unsubscribe = append(c.unsubscribe, string(f.Payload))
	case hlink.MsgProductInfo:
		items := []mpack.Item{
			mpack.NewMap(3),
			mpack.NewString("serial"), mpack.NewString("B40C0123"),
			mpack.NewString("app_version"), mpack.NewString(c.version),
			mpack.NewString("state"), mpack.NewString(c.state),
		}
		if c.omitState {
			items[0] = mpack.NewMap(2)
			items = items[:5]
		}
		c.reply(hlink.MsgProductInfoReply, items...)
	case hlink.MsgFileWrite:
		items, _ := mpack.Parse(f.Payload)
		name, _ := mpack.MapString(items, "name")
		data, _ := mpack.FindInMap(items, "file_data")
		b, _ := data.Bytes()
		c.files[name] = b
		reply := []mpack.Item{mpack.NewMap(1), mpack.NewString("status"), mpack.NewInt(c.writeStatus)}
		if c.writeMessage != "" {
			reply[0] = mpack.NewMap(2)
			reply = append(reply, mpack.NewString("string"), mpack.NewString(c.writeMessage))
		}
		c.reply(hlink.MsgFileWriteReply, reply...)
	case hlink.MsgPackageRun:
		items, _ := mpack.Parse(f.Payload)
		name, _ := mpack.MapString(items, "filename")
		c.runs = append(c.runs, name)
		for _, s := range c.runStatus {
			c.reply(hlink.MsgUpgraderStatus,
				mpack.NewMap(3),
				mpack.NewString("operation"), mpack.NewString(s.operation),
				mpack.NewString("error"), mpack.NewInt(s.code),
				mpack.NewString("reboot"), mpack.NewBool(s.reboot))
		}
		if c.stateAfterRun != "" {
			c.state = c.stateAfterRun
		}
	}
}

func (c *fakeCamera) reply(name string, items ...mpack.Item) {
	payload, err := mpack.Write(items)
	if err != nil {
		panic(err)
	}
	frame, err := hlink.Encode(name, payload)
	if err != nil {
		panic(err)
	}
	c.replies = append(c.replies, frame)
}

func (c *fakeCamera) count(name string) int {
	n := 0
	for _, f := range c.frames {
		if f == name {
			n++
		}
	}
	return n
}
