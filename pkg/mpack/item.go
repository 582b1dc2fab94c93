// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mpack reads and writes the MessagePack subset carried inside HLink
// payloads as a flat sequence of tagged items.
//
// Containers are not nested in the Go representation: a map marker with N
// entries is followed by 2*N items (key, value, key, value, ...), an array
// marker with N elements by N items. Values that are themselves containers
// are followed by their own items in place.
package mpack

import "fmt"

// Kind identifies the type of an Item
type Kind int

// Item kinds
const (
	KindNil Kind = iota
	KindMap
	KindArray
	KindString
	KindBinary
	KindInteger
	KindBoolean
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindMap:
		return "map"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindFloat:
		return "float"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Item is one decoded MessagePack value
type Item struct {
	kind   Kind
	str    string
	bin    []byte
	uint   uint64
	int    int64
	signed bool
	flag   bool
	float  float64
	length int // entry count for maps, element count for arrays
}

// NewMap creates a map marker announcing n key/value pairs
func NewMap(n int) Item { return Item{kind: KindMap, length: n} }

// NewArray creates an array marker announcing n elements
func NewArray(n int) Item { return Item{kind: KindArray, length: n} }

// NewString creates a string item
func NewString(s string) Item { return Item{kind: KindString, str: s} }

// NewBinary creates a binary blob item
func NewBinary(b []byte) Item { return Item{kind: KindBinary, bin: b} }

// NewUint creates an unsigned integer item
func NewUint(v uint64) Item { return Item{kind: KindInteger, uint: v} }

// NewInt creates a signed integer item
func NewInt(v int64) Item { return Item{kind: KindInteger, int: v, signed: true} }

// NewBool creates a boolean item
func NewBool(v bool) Item { return Item{kind: KindBoolean, flag: v} }

// NewFloat creates a float item
func NewFloat(v float64) Item { return Item{kind: KindFloat, float: v} }

// NewNil creates a nil item
func NewNil() Item { return Item{kind: KindNil} }

// Kind returns the item's kind
func (it Item) Kind() Kind { return it.kind }

// Len returns the entry count of a map marker or the element count of an
// array marker, and 0 for scalars.
func (it Item) Len() int {
	if it.kind == KindMap || it.kind == KindArray {
		return it.length
	}
	return 0
}

// Str returns the string value
func (it Item) Str() (string, bool) {
	if it.kind != KindString {
		return "", false
	}
	return it.str, true
}

// Bytes returns the binary value
func (it Item) Bytes() ([]byte, bool) {
	if it.kind != KindBinary {
		return nil, false
	}
	return it.bin, true
}

// Int returns the integer value as int64. Unsigned values above
// math.MaxInt64 are not representable and report false.
func (it Item) Int() (int64, bool) {
	if it.kind != KindInteger {
		return 0, false
	}
	if it.signed {
		return it.int, true
	}
	if it.uint > 1<<63-1 {
		return 0, false
	}
	return int64(it.uint), true
}

// Uint returns the integer value as uint64. Negative values report false.
func (it Item) Uint() (uint64, bool) {
	if it.kind != KindInteger {
		return 0, false
	}
	if it.signed {
		if it.int < 0 {
			return 0, false
		}
		return uint64(it.int), true
	}
	return it.uint, true
}

// Bool returns the boolean value
func (it Item) Bool() (bool, bool) {
	if it.kind != KindBoolean {
		return false, false
	}
	return it.flag, true
}

// Float returns the float value
func (it Item) Float() (float64, bool) {
	if it.kind != KindFloat {
		return 0, false
	}
	return it.float, true
}

// IsSigned reports whether an integer item was encoded with a signed type
func (it Item) IsSigned() bool {
	return it.kind == KindInteger && it.signed
}

// String formats the item for logs
func (it Item) String() string {
	switch it.kind {
	case KindNil:
		return "nil"
	case KindMap:
		return fmt.Sprintf("map(%d)", it.length)
	case KindArray:
		return fmt.Sprintf("array(%d)", it.length)
	case KindString:
		return fmt.Sprintf("%q", it.str)
	case KindBinary:
		return fmt.Sprintf("bin(%d)", len(it.bin))
	case KindInteger:
		if it.signed {
			return fmt.Sprintf("%d", it.int)
		}
		return fmt.Sprintf("%d", it.uint)
	case KindBoolean:
		return fmt.Sprintf("%t", it.flag)
	case KindFloat:
		return fmt.Sprintf("%g", it.float)
	}
	return it.kind.String()
}
