// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package updater

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Thermoquad/hlinkctl/pkg/hlink"
	"github.com/Thermoquad/hlinkctl/pkg/mpack"
)

// Device states reported in product info
const (
	StateUnverified = "Unverified"
	StateVerified   = "Verified"
)

// ProductInfo is the firmware version and update state of the camera
type ProductInfo struct {
	Version string
	State   string
}

// QueryProductInfo asks the camera for its version and state. The result
// is never cached.
func (d *Device) QueryProductInfo(ctx context.Context) (*ProductInfo, error) {
	if !d.probed {
		return nil, ErrNotProbed
	}

	if err := d.session.Subscribe(ctx, hlink.MsgProductInfoReply); err != nil {
		return nil, errors.Wrap(err, "read product info")
	}
	if err := d.session.Send(ctx, hlink.MsgProductInfo, nil); err != nil {
		return nil, errors.Wrap(err, "read product info")
	}

	frame, err := d.session.Receive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read product info")
	}
	d.logger.Debug().Str("name", frame.Name).Int("payload", len(frame.Payload)).Msg("product info reply")

	items, err := mpack.Parse(frame.Payload)
	if err != nil {
		return nil, errors.Wrap(err, "read product info")
	}

	version, err := requireString(items, "app_version")
	if err != nil {
		return nil, errors.Wrap(err, "read product info")
	}
	state, err := requireString(items, "state")
	if err != nil {
		return nil, errors.Wrap(err, "read product info")
	}

	return &ProductInfo{Version: version, State: state}, nil
}

func requireString(items []mpack.Item, key string) (string, error) {
	it, ok := mpack.FindInMap(items, key)
	if !ok {
		return "", errors.Wrapf(mpack.ErrMalformedPayload, "missing %q", key)
	}
	s, ok := it.Str()
	if !ok {
		return "", errors.Wrapf(mpack.ErrMalformedPayload, "%q is %s, not a string", key, it.Kind())
	}
	return s, nil
}

func requireInt(items []mpack.Item, key string) (int64, error) {
	it, ok := mpack.FindInMap(items, key)
	if !ok {
		return 0, errors.Wrapf(mpack.ErrMalformedPayload, "missing %q", key)
	}
	v, ok := it.Int()
	if !ok {
		return 0, errors.Wrapf(mpack.ErrMalformedPayload, "%q is %s, not an integer", key, it.Kind())
	}
	return v, nil
}

func requireBool(items []mpack.Item, key string) (bool, error) {
	it, ok := mpack.FindInMap(items, key)
	if !ok {
		return false, errors.Wrapf(mpack.ErrMalformedPayload, "missing %q", key)
	}
	v, ok := it.Bool()
	if !ok {
		return false, errors.Wrapf(mpack.ErrMalformedPayload, "%q is %s, not a boolean", key, it.Kind())
	}
	return v, nil
}
