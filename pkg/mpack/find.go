// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mpack

import (
	"fmt"
	"strings"
)

// FindInMap looks up key in the map that starts the sequence. Values that
// are containers are skipped as whole subtrees, so keys belonging to nested
// maps never match. Non-string keys are skipped.
//
// For a container value the returned item is its marker only.
func FindInMap(items []Item, key string) (Item, bool) {
	i, ok := lookup(items, key)
	if !ok {
		return Item{}, false
	}
	return items[i], true
}

// FindSubtree behaves like FindInMap but returns the value together with
// every item of a nested container.
func FindSubtree(items []Item, key string) ([]Item, bool) {
	i, ok := lookup(items, key)
	if !ok {
		return nil, false
	}
	n, ok := span(items, i)
	if !ok {
		return nil, false
	}
	return items[i : i+n], true
}

func lookup(items []Item, key string) (int, bool) {
	if len(items) == 0 || items[0].kind != KindMap {
		return 0, false
	}

	i := 1
	for entry := 0; entry < items[0].length; entry++ {
		ks, ok := span(items, i)
		if !ok {
			return 0, false
		}
		v := i + ks
		if v >= len(items) {
			return 0, false
		}
		if k := items[i]; k.kind == KindString && k.str == key {
			return v, true
		}
		vs, ok := span(items, v)
		if !ok {
			return 0, false
		}
		i = v + vs
	}

	return 0, false
}

// MapString returns the string stored under key
func MapString(items []Item, key string) (string, bool) {
	it, ok := FindInMap(items, key)
	if !ok {
		return "", false
	}
	return it.Str()
}

// MapInt returns the integer stored under key
func MapInt(items []Item, key string) (int64, bool) {
	it, ok := FindInMap(items, key)
	if !ok {
		return 0, false
	}
	return it.Int()
}

// MapBool returns the boolean stored under key
func MapBool(items []Item, key string) (bool, bool) {
	it, ok := FindInMap(items, key)
	if !ok {
		return false, false
	}
	return it.Bool()
}

// Format renders an item sequence in a compact JSON-like notation for logs.
// Binary blobs are shown by length only.
func Format(items []Item) string {
	var sb strings.Builder
	for i := 0; i < len(items); {
		if i > 0 {
			sb.WriteString(" ")
		}
		i = formatValue(&sb, items, i)
	}
	return sb.String()
}

func formatValue(sb *strings.Builder, items []Item, i int) int {
	if i >= len(items) {
		sb.WriteString("<missing>")
		return i
	}

	it := items[i]
	i++

	switch it.kind {
	case KindMap:
		sb.WriteString("{")
		for e := 0; e < it.length && i < len(items); e++ {
			if e > 0 {
				sb.WriteString(", ")
			}
			i = formatValue(sb, items, i)
			sb.WriteString(": ")
			i = formatValue(sb, items, i)
		}
		sb.WriteString("}")
	case KindArray:
		sb.WriteString("[")
		for e := 0; e < it.length && i < len(items); e++ {
			if e > 0 {
				sb.WriteString(", ")
			}
			i = formatValue(sb, items, i)
		}
		sb.WriteString("]")
	case KindBinary:
		fmt.Fprintf(sb, "<%d bytes>", len(it.bin))
	default:
		sb.WriteString(it.String())
	}

	return i
}
