// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package firmware holds a firmware package image as an opaque byte blob.
// The camera validates the package itself; the host only transfers it.
package firmware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Image is an immutable firmware package
type Image struct {
	name   string
	data   []byte
	digest [sha256.Size]byte
}

// Load reads a firmware package from disk
func Load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read firmware %s", path)
	}
	img, err := FromBytes(filepath.Base(path), data)
	if err != nil {
		return nil, errors.Wrapf(err, "load firmware %s", path)
	}
	return img, nil
}

// FromBytes wraps data as an image. The slice is copied.
func FromBytes(name string, data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Image{
		name:   name,
		data:   buf,
		digest: sha256.Sum256(buf),
	}, nil
}

// Name returns the source file name
func (img *Image) Name() string { return img.name }

// Size returns the image length in bytes
func (img *Image) Size() int { return len(img.data) }

// Bytes returns the image contents. Callers must not modify them.
func (img *Image) Bytes() []byte { return img.data }

// Reader returns a fresh reader over the image
func (img *Image) Reader() io.Reader { return bytes.NewReader(img.data) }

// Digest returns the hex SHA-256 of the image, used to identify it in logs
func (img *Image) Digest() string { return hex.EncodeToString(img.digest[:]) }
