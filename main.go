// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// hlinkctl - HLink camera firmware update tool

package main

import (
	"os"

	"github.com/Thermoquad/hlinkctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
