// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package hlink implements the HLink framed message protocol spoken by the
// camera over its vendor-specific USB bulk endpoints.
//
// A frame is a fixed 16-byte little-endian header followed by the message
// name and an opaque payload:
//
//	+--------+--------+-------+----------+-------------+------+---------+
//	| req_id | res_id | flags | name_len | payload_len | name | payload |
//	|  u32   |  u32   |  u16  |   u16    |     u32     |      |         |
//	+--------+--------+-------+----------+-------------+------+---------+
//
// The package provides the wire codec (Encode/Decode) and a Session that
// sends, receives and manages mailbox subscriptions over a transport.
package hlink

// Frame layout
const (
	HeaderSize     = 16
	MaxNameSize    = 0xFFFF
	MaxPayloadSize = 0xFFFFFFFF
)

// ReceiveBufferSize is the fixed receive ceiling. Replies larger than this
// fail to decode with ErrTruncatedFrame.
const ReceiveBufferSize = 1024

// Mailbox control messages
const (
	MsgSubscribe   = "hlink-mb-subscribe"
	MsgUnsubscribe = "hlink-mb-unsubscribe"
)

// Device message names used by the firmware updater
const (
	MsgProductInfo      = "prodinfo/get_msgpack"
	MsgProductInfoReply = "prodinfo/get_msgpack_reply"
	MsgFileWrite        = "hcp/write"
	MsgFileWriteReply   = "hcp/write_reply"
	MsgPackageRun       = "hpk/run"
	MsgUpgraderStatus   = "upgrader/status"
	MsgReboot           = "camctrl/reboot"
)
