// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

// newLogger builds the console logger. Protocol traces are only shown with
// --verbose.
func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05.000",
	}).Level(level).With().Timestamp().Logger()
}

// logLineMsg carries one rendered log line into the TUI
type logLineMsg string

// programWriter forwards log lines to a running TUI program
type programWriter struct {
	program *tea.Program
}

func (w programWriter) Write(p []byte) (int, error) {
	w.program.Send(logLineMsg(strings.TrimRight(string(p), "\n")))
	return len(p), nil
}

// newProgramLogger builds a logger whose output appears in the TUI log pane
func newProgramLogger(p *tea.Program, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        programWriter{program: p},
		NoColor:    true,
		TimeFormat: "15:04:05.000",
	}).Level(level).With().Timestamp().Logger()
}
