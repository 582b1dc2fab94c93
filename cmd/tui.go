// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// TUI model
type updateModel struct {
	imageName     string
	imageSize     int
	digest        string
	bar           progress.Model
	percent       float64
	status        string
	eventLog      []eventLogEntry
	logLines      []string
	maxLogEntries int
	started       time.Time
	elapsed       time.Duration
	width         int
	height        int
	done          bool
	version       string
	err           error
	quitting      bool
	cancel        func()
}

// Messages
type tickMsg time.Time
type progressMsg struct {
	percent float64
	status  string
}
type eventMsg string
type doneMsg struct {
	version string
	err     error
}

// formatElapsed formats a duration as m:ss
func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func initialUpdateModel(imageName string, imageSize int, digest string, cancel func()) updateModel {
	return updateModel{
		imageName: imageName,
		imageSize: imageSize,
		digest:    digest,
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(50),
		),
		status:        "starting",
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		started:       time.Now(),
		width:         80,
		height:        24,
		cancel:        cancel,
	}
}

func (m updateModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m updateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.done {
				return m, tea.Quit
			}
			// the flow reports back through doneMsg once it has stopped
			if !m.quitting {
				m.quitting = true
				m.addLogEntry("Cancelling update...", true)
				m.cancel()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = clamp(msg.Width-20, 20, 80)

	case tickMsg:
		if m.done {
			return m, nil
		}
		m.elapsed = time.Since(m.started)
		return m, tickCmd()

	case progressMsg:
		m.percent = msg.percent
		if msg.status != "" {
			m.status = msg.status
		}

	case eventMsg:
		m.addLogEntry(string(msg), false)

	case logLineMsg:
		m.logLines = append(m.logLines, string(msg))
		if len(m.logLines) > m.maxLogEntries {
			m.logLines = m.logLines[len(m.logLines)-m.maxLogEntries:]
		}

	case doneMsg:
		m.done = true
		m.elapsed = time.Since(m.started)
		m.version = msg.version
		m.err = msg.err
		if msg.err != nil {
			m.addLogEntry(msg.err.Error(), true)
		} else {
			m.percent = 100
			m.status = "done"
		}
		if m.quitting {
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m *updateModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (m updateModel) View() string {
	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("HLINKCTL - FIRMWARE UPDATE"))
	s.WriteString("\n")
	if m.done {
		s.WriteString(headerStyle.Render("Press q to exit"))
	} else {
		s.WriteString(headerStyle.Render("Press q or Ctrl+C to cancel"))
	}
	s.WriteString("\n\n")

	// Image and progress
	var body strings.Builder
	body.WriteString(fmt.Sprintf("%s %s\n",
		labelStyle.Render("Image:"), valueStyle.Render(fmt.Sprintf("%s (%d bytes)", m.imageName, m.imageSize))))
	body.WriteString(fmt.Sprintf("%s %s\n",
		labelStyle.Render("SHA-256:"), headerStyle.Render(m.digest)))
	body.WriteString(fmt.Sprintf("%s %s\n",
		labelStyle.Render("Elapsed:"), valueStyle.Render(formatElapsed(m.elapsed))))

	switch {
	case m.done && m.err != nil:
		body.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Result:"), errorStyle.Render("FAILED")))
	case m.done:
		body.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Result:"),
			valueStyle.Render("updated to "+m.version)))
	default:
		body.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Status:"), infoStyle.Render(m.status)))
	}
	body.WriteString("\n")
	body.WriteString(m.bar.ViewAs(m.percent / 100))

	s.WriteString(boxStyle.Render(body.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Events:"))
	s.WriteString("\n")

	var events strings.Builder
	if len(m.eventLog) == 0 {
		events.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for _, entry := range m.eventLog {
			timestamp := entry.timestamp.Format("15:04:05")
			if entry.isError {
				events.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message)))
			} else {
				events.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp), infoStyle.Render("ℹ "+entry.message)))
			}
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(strings.TrimRight(events.String(), "\n")))
	s.WriteString("\n")

	// Log tail fills the remaining height
	logHeight := m.height - 16 - len(m.eventLog)
	if logHeight < 3 {
		logHeight = 3
	}
	start := len(m.logLines) - logHeight
	if start < 0 {
		start = 0
	}
	for _, line := range m.logLines[start:] {
		s.WriteString(headerStyle.Render(line))
		s.WriteString("\n")
	}

	return s.String()
}
