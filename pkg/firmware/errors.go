// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package firmware

import "errors"

// ErrEmptyImage is returned when a firmware file holds no data
var ErrEmptyImage = errors.New("firmware image is empty")
