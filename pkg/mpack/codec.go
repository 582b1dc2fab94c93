// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mpack

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// Write serialises items in order. Callers emit a map marker ahead of its
// key/value pairs; Write does not check the sequence shape.
func Write(items []Item) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)

	for i, it := range items {
		var err error
		switch it.kind {
		case KindNil:
			err = enc.EncodeNil()
		case KindMap:
			err = enc.EncodeMapLen(it.length)
		case KindArray:
			err = enc.EncodeArrayLen(it.length)
		case KindString:
			err = enc.EncodeString(it.str)
		case KindBinary:
			// EncodeBytes writes nil for a nil slice
			b := it.bin
			if b == nil {
				b = []byte{}
			}
			err = enc.EncodeBytes(b)
		case KindInteger:
			if it.signed {
				err = enc.EncodeInt(it.int)
			} else {
				err = enc.EncodeUint(it.uint)
			}
		case KindBoolean:
			err = enc.EncodeBool(it.flag)
		case KindFloat:
			err = enc.EncodeFloat64(it.float)
		default:
			return nil, errors.Wrapf(ErrUnsupportedItem, "item %d has kind %s", i, it.kind)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "encode item %d (%s)", i, it.kind)
		}
	}

	return buf.Bytes(), nil
}

// Parse decodes data into a flat item sequence. It fails with
// ErrMalformedPayload on an unknown type code, on a length running past the
// end of data, and on containers announcing more items than follow.
func Parse(data []byte) ([]Item, error) {
	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)
	items := make([]Item, 0, 8)

	for r.Len() > 0 {
		offset := len(data) - r.Len()
		it, err := decodeItem(dec)
		if err != nil {
			if errors.Is(err, ErrMalformedPayload) {
				return nil, errors.Wrapf(err, "at offset %d", offset)
			}
			if isEOF(err) {
				return nil, errors.Wrapf(ErrMalformedPayload, "item at offset %d runs past end of %d byte payload", offset, len(data))
			}
			return nil, errors.Wrapf(ErrMalformedPayload, "at offset %d: %v", offset, err)
		}
		items = append(items, it)
	}

	for i := 0; i < len(items); {
		n, ok := span(items, i)
		if !ok {
			return nil, errors.Wrapf(ErrMalformedPayload, "%s at item %d declares more items than present", items[i], i)
		}
		i += n
	}

	return items, nil
}

func decodeItem(dec *msgpack.Decoder) (Item, error) {
	c, err := dec.PeekCode()
	if err != nil {
		return Item{}, err
	}

	switch {
	case c == msgpcode.Nil:
		if err := dec.DecodeNil(); err != nil {
			return Item{}, err
		}
		return NewNil(), nil

	case c == msgpcode.True || c == msgpcode.False:
		v, err := dec.DecodeBool()
		if err != nil {
			return Item{}, err
		}
		return NewBool(v), nil

	case msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32:
		n, err := dec.DecodeMapLen()
		if err != nil {
			return Item{}, err
		}
		return NewMap(n), nil

	case msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return Item{}, err
		}
		return NewArray(n), nil

	case msgpcode.IsFixedString(c) || c == msgpcode.Str8 || c == msgpcode.Str16 || c == msgpcode.Str32:
		s, err := dec.DecodeString()
		if err != nil {
			return Item{}, err
		}
		return NewString(s), nil

	case c == msgpcode.Bin8 || c == msgpcode.Bin16 || c == msgpcode.Bin32:
		b, err := dec.DecodeBytes()
		if err != nil {
			return Item{}, err
		}
		return NewBinary(b), nil

	case c <= msgpcode.PosFixedNumHigh ||
		c == msgpcode.Uint8 || c == msgpcode.Uint16 || c == msgpcode.Uint32 || c == msgpcode.Uint64:
		v, err := dec.DecodeUint64()
		if err != nil {
			return Item{}, err
		}
		return NewUint(v), nil

	case c >= msgpcode.NegFixedNumLow ||
		c == msgpcode.Int8 || c == msgpcode.Int16 || c == msgpcode.Int32 || c == msgpcode.Int64:
		v, err := dec.DecodeInt64()
		if err != nil {
			return Item{}, err
		}
		return NewInt(v), nil

	case c == msgpcode.Float || c == msgpcode.Double:
		v, err := dec.DecodeFloat64()
		if err != nil {
			return Item{}, err
		}
		return NewFloat(v), nil
	}

	return Item{}, errors.Wrapf(ErrMalformedPayload, "unrecognised type code 0x%02X", c)
}

// span returns how many items the value starting at index i occupies,
// including the items of nested containers.
func span(items []Item, i int) (int, bool) {
	need := 1
	j := i
	for need > 0 {
		if j >= len(items) {
			return 0, false
		}
		need--
		switch items[j].kind {
		case KindMap:
			need += 2 * items[j].length
		case KindArray:
			need += items[j].length
		}
		j++
	}
	return j - i, true
}

// isEOF reports decoder errors caused by running out of input
func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
