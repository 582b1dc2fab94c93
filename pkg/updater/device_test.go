// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package updater

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/hlinkctl/pkg/firmware"
	"github.com/Thermoquad/hlinkctl/pkg/hlink"
	"github.com/Thermoquad/hlinkctl/pkg/mpack"
	"github.com/Thermoquad/hlinkctl/pkg/progress"
	"github.com/Thermoquad/hlinkctl/pkg/transport"
)

func testImage(t *testing.T, size int) *firmware.Image {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	img, err := firmware.FromBytes("camera.hpk", data)
	require.NoError(t, err)
	return img
}

func probedDevice(t *testing.T, cam *fakeCamera, opts ...Option) *Device {
	t.Helper()
	dev := New(cam, opts...)
	require.NoError(t, dev.Probe())
	return dev
}

func TestProbe(t *testing.T) {
	cam := newFakeCamera()
	dev := New(cam)

	require.NoError(t, dev.Probe())
	assert.Equal(t, uint8(0x01), dev.bulkOut)
	assert.Equal(t, uint8(0x81), dev.bulkIn)
	assert.Equal(t, 4, dev.vendorIface)
	assert.Equal(t, []int{4}, cam.claims)
	assert.NotNil(t, dev.Session())
}

func TestProbe_NoVendorInterface(t *testing.T) {
	cam := newFakeCamera()
	cam.interfaces = cam.interfaces[:4]

	err := New(cam).Probe()
	assert.ErrorIs(t, err, ErrInterfaceNotFound)
	assert.Empty(t, cam.claims)
}

func TestProbe_MissingEndpoint(t *testing.T) {
	cam := newFakeCamera()
	cam.interfaces = []InterfaceDesc{
		{Number: 0, Class: ClassVendorSpecific, Endpoints: []EndpointDesc{{Address: 0x02}}},
	}

	assert.ErrorIs(t, New(cam).Probe(), ErrInterfaceNotFound)
}

func TestSetup(t *testing.T) {
	cam := newFakeCamera()
	dev := probedDevice(t, cam)

	require.NoError(t, dev.Setup(context.Background()))
	assert.Equal(t, 2, cam.resets)
	assert.Equal(t, 1, cam.salutes)
	assert.Equal(t, "1.5.2", dev.Info().Version)
	assert.Equal(t, []string{hlink.MsgProductInfoReply}, cam.subscribed)
	assert.True(t, dev.Info().HasFlag(FlagUpdatable))
	assert.True(t, dev.Info().HasFlag(FlagSignedPayload))
	assert.Equal(t, []string{Protocol}, dev.Info().Protocols)
	assert.Equal(t, 60*time.Second, dev.Info().RemoveDelay)
}

func TestSetup_NotProbed(t *testing.T) {
	assert.ErrorIs(t, New(newFakeCamera()).Setup(context.Background()), ErrNotProbed)
}

func TestQueryProductInfo_MissingState(t *testing.T) {
	cam := newFakeCamera()
	cam.omitState = true
	dev := probedDevice(t, cam)

	_, err := dev.QueryProductInfo(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, mpack.ErrMalformedPayload)
	assert.Contains(t, err.Error(), `missing "state"`)
}

func TestQueryProductInfo_ReceiveFailure(t *testing.T) {
	cam := newFakeCamera()
	cam.readErr = errors.New("LIBUSB_ERROR_PIPE")
	dev := probedDevice(t, cam)

	_, err := dev.QueryProductInfo(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrTransfer)
	assert.Contains(t, err.Error(), "read product info")
}

func TestWriteFirmware(t *testing.T) {
	cam := newFakeCamera()
	dev := probedDevice(t, cam)
	img := testImage(t, 40000)
	p := progress.New()

	require.NoError(t, dev.WriteFirmware(context.Background(), img, p))

	assert.Equal(t, img.Bytes(), cam.files[FirmwareFileName])
	assert.Equal(t, []string{FirmwareFileName}, cam.runs)
	assert.Equal(t, 1, cam.count(hlink.MsgReboot))
	assert.Equal(t, []string{hlink.MsgFileWriteReply, hlink.MsgUpgraderStatus}, cam.subscribed)
	assert.Equal(t, []string{hlink.MsgFileWriteReply, hlink.MsgUpgraderStatus}, cam.unsubscribe)
	assert.True(t, dev.PendingVerify())
	assert.True(t, dev.Info().HasFlag(FlagWaitForReplug))
	assert.Same(t, img, dev.Image())
	assert.InDelta(t, 100, p.Percentage(), 0.001)
}

func TestWriteFirmware_SubscribesBeforeWrite(t *testing.T) {
	cam := newFakeCamera()
	dev := probedDevice(t, cam)

	require.NoError(t, dev.WriteFirmware(context.Background(), testImage(t, 10), nil))
	require.GreaterOrEqual(t, len(cam.frames), 2)
	assert.Equal(t, hlink.MsgSubscribe, cam.frames[0])
	assert.Equal(t, hlink.MsgFileWrite, cam.frames[1])
}

func TestWriteFirmware_BadStatus(t *testing.T) {
	cam := newFakeCamera()
	cam.writeStatus = 5
	cam.writeMessage = "bad crc"
	dev := probedDevice(t, cam)

	err := dev.WriteFirmware(context.Background(), testImage(t, 100), nil)
	require.Error(t, err)

	var statusErr *ProtocolStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, int64(5), statusErr.Code)
	assert.Equal(t, "bad crc", statusErr.Message)
	assert.Contains(t, err.Error(), "bad crc")

	assert.Empty(t, cam.runs)
	assert.Zero(t, cam.count(hlink.MsgReboot))
	assert.False(t, dev.PendingVerify())
}

func TestWriteFirmware_BadStatusWithoutMessage(t *testing.T) {
	cam := newFakeCamera()
	cam.writeStatus = 7
	dev := probedDevice(t, cam)

	err := dev.WriteFirmware(context.Background(), testImage(t, 100), nil)
	var statusErr *ProtocolStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, hlink.MsgFileWrite, statusErr.Op)
	assert.Equal(t, int64(7), statusErr.Code)
	assert.Empty(t, statusErr.Message)

	assert.Zero(t, cam.count(hlink.MsgPackageRun))
	assert.Empty(t, cam.runs)
}

func TestWriteFirmware_RunError(t *testing.T) {
	cam := newFakeCamera()
	cam.runStatus = []status{
		{operation: "verifying"},
		{operation: "signature", code: 3},
	}
	dev := probedDevice(t, cam)

	err := dev.WriteFirmware(context.Background(), testImage(t, 100), nil)
	var statusErr *ProtocolStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, hlink.MsgPackageRun, statusErr.Op)
	assert.Equal(t, int64(3), statusErr.Code)
	assert.Zero(t, cam.count(hlink.MsgReboot))
}

func TestRunPackage_DoneIsExactMatch(t *testing.T) {
	cam := newFakeCamera()
	cam.runStatus = []status{
		{operation: "do"},
		{operation: "done", reboot: false},
	}
	dev := probedDevice(t, cam)

	reboot, err := dev.runPackage(context.Background(), FirmwareFileName)
	require.NoError(t, err)
	assert.False(t, reboot)
	assert.Empty(t, cam.replies, "all status frames consumed")
}

func TestRunPackage_MaxStatusUpdates(t *testing.T) {
	cam := newFakeCamera()
	cam.runStatus = []status{{operation: "a"}, {operation: "b"}, {operation: "c"}, {operation: "done"}}
	dev := probedDevice(t, cam, WithMaxStatusUpdates(2))

	_, err := dev.runPackage(context.Background(), FirmwareFileName)
	assert.ErrorIs(t, err, ErrRunIncomplete)
}

func TestRunPackage_Timeout(t *testing.T) {
	cam := newFakeCamera()
	cam.runStatus = []status{{operation: "flashing"}, {operation: "flashing"}}
	dev := probedDevice(t, cam, WithRunTimeout(50*time.Millisecond))

	_, err := dev.runPackage(context.Background(), FirmwareFileName)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAttach_UnverifiedRunsVerification(t *testing.T) {
	cam := newFakeCamera()
	cam.state = StateUnverified
	cam.stateAfterRun = StateVerified
	dev := probedDevice(t, cam)
	img := testImage(t, 20000)
	dev.image = img

	p := progress.New()
	require.NoError(t, dev.Attach(context.Background(), p))

	// detached once: two video and two audio interfaces
	assert.Equal(t, []int{4, 0, 1, 2, 3}, cam.claims)
	assert.Equal(t, 1, cam.count(hlink.MsgFileWrite))
	assert.Equal(t, img.Bytes(), cam.files[FirmwareFileName])
	assert.Equal(t, []string{FirmwareFileName}, cam.runs)
	assert.True(t, dev.Info().HasFlag(FlagWaitForReplug))
	assert.False(t, dev.PendingVerify())
	assert.InDelta(t, 100, p.Percentage(), 0.001)

	require.NoError(t, dev.Reload(context.Background()))
}

func TestAttach_NoRebootRequested(t *testing.T) {
	cam := newFakeCamera()
	cam.state = StateUnverified
	cam.runStatus = []status{{operation: "done", reboot: false}}
	dev := probedDevice(t, cam)
	dev.image = testImage(t, 10)

	require.NoError(t, dev.Attach(context.Background(), nil))
	assert.False(t, dev.Info().HasFlag(FlagWaitForReplug))
}

func TestAttach_VerifiedClearsReplugFlag(t *testing.T) {
	cam := newFakeCamera()
	dev := probedDevice(t, cam)
	dev.Info().AddFlag(FlagWaitForReplug)

	require.NoError(t, dev.Attach(context.Background(), nil))
	assert.False(t, dev.Info().HasFlag(FlagWaitForReplug))
	assert.True(t, dev.Info().HasFlag(FlagUpdatable))
	assert.Zero(t, cam.count(hlink.MsgFileWrite))
}

func TestAttach_WithImageFromFile(t *testing.T) {
	cam := newFakeCamera()
	cam.state = StateUnverified
	dev := probedDevice(t, cam)
	img := testImage(t, 300)
	dev.SetImage(img)

	require.NoError(t, dev.Attach(context.Background(), nil))
	assert.Equal(t, img.Bytes(), cam.files[FirmwareFileName])
}

func TestAttach_VerifiedIsNoop(t *testing.T) {
	cam := newFakeCamera()
	dev := probedDevice(t, cam)

	require.NoError(t, dev.Attach(context.Background(), nil))
	assert.Zero(t, cam.count(hlink.MsgFileWrite))
	assert.Equal(t, []int{4}, cam.claims)
}

func TestAttach_StatePrefixIsNotUnverified(t *testing.T) {
	cam := newFakeCamera()
	cam.state = "Unver"
	dev := probedDevice(t, cam)
	dev.image = testImage(t, 10)

	require.NoError(t, dev.Attach(context.Background(), nil))
	assert.Zero(t, cam.count(hlink.MsgFileWrite))
}

func TestAttach_UnverifiedWithoutImage(t *testing.T) {
	cam := newFakeCamera()
	cam.state = StateUnverified
	dev := probedDevice(t, cam)

	assert.ErrorIs(t, dev.Attach(context.Background(), nil), ErrNoImage)
}

func TestReload(t *testing.T) {
	tests := []struct {
		name    string
		state   string
		wantErr bool
	}{
		{"verified", StateVerified, false},
		{"flashing", "Flashing", true},
		{"unverified", StateUnverified, true},
		{"prefix of verified", "Verif", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := newFakeCamera()
			cam.state = tt.state
			dev := probedDevice(t, cam)

			err := dev.Reload(context.Background())
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			var stateErr *UnexpectedStateError
			require.ErrorAs(t, err, &stateErr)
			assert.Equal(t, StateVerified, stateErr.Expected)
			assert.Equal(t, tt.state, stateErr.Actual)
			assert.Contains(t, err.Error(), tt.state)
		})
	}
}

func TestPrepare_Idempotent(t *testing.T) {
	cam := newFakeCamera()
	dev := probedDevice(t, cam)

	require.NoError(t, dev.Prepare(context.Background()))
	require.NoError(t, dev.Prepare(context.Background()))
	assert.Equal(t, []int{4, 0, 1, 2, 3}, cam.claims)
}

func TestCleanup_ReattachesControlInterfaces(t *testing.T) {
	cam := newFakeCamera()
	dev := probedDevice(t, cam)

	// nothing claimed yet
	require.NoError(t, dev.Cleanup(context.Background()))
	assert.Empty(t, cam.releases)

	require.NoError(t, dev.Prepare(context.Background()))
	require.NoError(t, dev.Cleanup(context.Background()))
	assert.Equal(t, []int{0, 2}, cam.releases)

	// claims again after cleanup
	require.NoError(t, dev.Prepare(context.Background()))
	assert.Equal(t, []int{4, 0, 1, 2, 3, 0, 1, 2, 3}, cam.claims)
}

func TestCleanup_SwallowsReleaseErrors(t *testing.T) {
	cam := newFakeCamera()
	cam.releaseErr = errors.New("LIBUSB_ERROR_NOT_FOUND")
	dev := probedDevice(t, cam)

	require.NoError(t, dev.Prepare(context.Background()))
	require.NoError(t, dev.Cleanup(context.Background()))
	assert.Equal(t, []int{0, 2}, cam.releases)
	assert.False(t, dev.interfacesClaimed)
}

func TestReplace_CarriesImage(t *testing.T) {
	cam := newFakeCamera()
	old := probedDevice(t, cam)
	require.NoError(t, old.WriteFirmware(context.Background(), testImage(t, 64), nil))

	fresh := New(newFakeCamera())
	fresh.Replace(old)
	assert.Same(t, old.Image(), fresh.Image())
	assert.False(t, fresh.PendingVerify())
}

func TestSetProgress(t *testing.T) {
	p := progress.New()
	New(newFakeCamera()).SetProgress(p)

	p.StepDone()
	assert.InDelta(t, 1, p.Percentage(), 0.001)
	p.StepDone()
	assert.InDelta(t, 51, p.Percentage(), 0.001)
	assert.Equal(t, "attach", p.Status())
}

func TestClose_ResetsState(t *testing.T) {
	cam := newFakeCamera()
	dev := probedDevice(t, cam)
	require.NoError(t, dev.WriteFirmware(context.Background(), testImage(t, 8), nil))
	require.NoError(t, dev.Prepare(context.Background()))

	require.NoError(t, dev.Close())
	assert.Contains(t, cam.releases, 4)
	assert.False(t, dev.PendingVerify())
	assert.Nil(t, dev.Image())
	assert.Nil(t, dev.Session())
	assert.ErrorIs(t, dev.Reboot(context.Background()), ErrNotProbed)
}

func TestFullUpdateFlow(t *testing.T) {
	img := testImage(t, 3*transport.DefaultChunkSize)
	root := progress.New()

	first := newFakeCamera()
	first.state = StateVerified
	dev := probedDevice(t, first)
	dev.SetProgress(root)
	require.NoError(t, dev.Setup(context.Background()))

	require.NoError(t, dev.Prepare(context.Background()))
	root.StepDone()
	require.NoError(t, dev.WriteFirmware(context.Background(), img, root.Child()))
	root.StepDone()
	require.NoError(t, dev.Cleanup(context.Background()))
	assert.True(t, dev.Info().HasFlag(FlagWaitForReplug))

	// camera re-enumerates unverified
	second := newFakeCamera()
	second.state = StateUnverified
	second.stateAfterRun = StateVerified
	again := New(second)
	again.Replace(dev)
	require.NoError(t, again.Probe())
	require.NoError(t, again.Setup(context.Background()))
	require.NoError(t, again.Attach(context.Background(), root.Child()))
	root.StepDone()
	require.NoError(t, again.Reload(context.Background()))
	root.StepDone()

	assert.True(t, bytes.Equal(img.Bytes(), second.files[FirmwareFileName]))
	assert.InDelta(t, 100, root.Percentage(), 0.001)
}
