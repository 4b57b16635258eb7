// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/panelbridge/pkg/bridge"
	"github.com/Thermoquad/panelbridge/pkg/panelframe"
	"github.com/Thermoquad/panelbridge/pkg/registry"
	"github.com/Thermoquad/panelbridge/pkg/telemetry"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// TUI model
type monitorModel struct {
	linkInfo      string
	simInfo       string
	reg           *registry.Registry
	statsFn       func() panelframe.Statistics
	cancel        context.CancelFunc
	spinner       spinner.Model
	connected     bool
	values        []telemetry.Value
	stats         panelframe.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int
	width         int
	height        int
	quitting      bool
	exitReason    string
}

// Messages
type tickMsg time.Time
type connectedMsg struct{}
type snapshotMsg []telemetry.Value
type logLineMsg string
type loopDoneMsg struct {
	reason bridge.ExitReason
	err    error
}

func newMonitorModel(linkInfo, simInfo string, reg *registry.Registry, statsFn func() panelframe.Statistics, cancel context.CancelFunc) monitorModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	return monitorModel{
		linkInfo:      linkInfo,
		simInfo:       simInfo,
		reg:           reg,
		statsFn:       statsFn,
		cancel:        cancel,
		spinner:       sp,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.spinner.Tick,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// The loop reports back with loopDoneMsg once it has stopped
			if !m.quitting && m.cancel != nil {
				m.cancel()
			}
			m.quitting = true
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		if m.statsFn != nil {
			m.stats = m.statsFn()
		}
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case connectedMsg:
		m.connected = true
		m.addLogEntry("Simulator connected", false)

	case snapshotMsg:
		m.values = msg

	case logLineMsg:
		line := strings.TrimSpace(string(msg))
		if line != "" {
			m.addLogEntry(line, strings.Contains(line, "ERR") || strings.Contains(line, "WRN"))
		}

	case loopDoneMsg:
		m.connected = false
		m.exitReason = msg.reason.String()
		if msg.err != nil {
			m.exitReason += ": " + msg.err.Error()
		}
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
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

func (m monitorModel) View() string {
	if m.exitReason != "" {
		return fmt.Sprintf("Stopped: %s\n", m.exitReason)
	}
	if m.quitting {
		return "Shutting down...\n"
	}

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

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("PANELBRIDGE - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Panel: %s | Simulator: %s | Press 'q' to quit",
		m.linkInfo, m.simInfo)))
	s.WriteString("\n\n")

	if !m.connected {
		s.WriteString(m.spinner.View())
		s.WriteString(warningStyle.Render(" Waiting for simulator..."))
	} else {
		s.WriteString(valueStyle.Render("✓ Connected"))
	}
	s.WriteString("\n\n")

	// Variables
	varsContent := strings.Builder{}
	if len(m.values) == 0 {
		varsContent.WriteString(headerStyle.Render("(no values yet)"))
	}
	for i, v := range m.values {
		id := "  -"
		if reg, ok := m.reg.Lookup(v.Name); ok && reg.Forward {
			id = fmt.Sprintf("%3d", reg.RequestID)
		}
		value := headerStyle.Render("n/a")
		if v.Valid {
			value = valueStyle.Render(fmt.Sprintf("%.3f", v.Value))
		}
		varsContent.WriteString(fmt.Sprintf("%s %s %s", headerStyle.Render(id), labelStyle.Render(fmt.Sprintf("%-28s", v.Name)), value))
		if i < len(m.values)-1 {
			varsContent.WriteString("\n")
		}
	}
	s.WriteString(boxStyle.Render(varsContent.String()))
	s.WriteString("\n\n")

	// Inbound frame statistics
	st := m.stats
	var validPercent float64
	if st.TotalFrames > 0 {
		validPercent = float64(st.ValidFrames) * 100.0 / float64(st.TotalFrames)
	}
	errorRate := valueStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
	if st.ErrorRate > 0 {
		errorRate = errorStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
	}
	statsContent := fmt.Sprintf("%s %s   %s %s   %s %s\n%s %s   %s %s",
		labelStyle.Render("Inbound:"), valueStyle.Render(fmt.Sprintf("%d", st.TotalFrames)),
		labelStyle.Render("Valid:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.ValidFrames, validPercent)),
		labelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d", st.Errors())),
		labelStyle.Render("Frame Rate:"), valueStyle.Render(fmt.Sprintf("%.1f frames/s", st.FrameRate)),
		labelStyle.Render("Error Rate:"), errorRate,
	)
	s.WriteString(boxStyle.Render(statsContent))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 12 - len(m.values)
	if logHeight < 5 {
		logHeight = 5
	}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	logContent := strings.Builder{}
	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message)))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), warningStyle.Render("ℹ "+entry.message)))
			}
		}
	}

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	s.WriteString(boxStyle.Width(width).Render(logContent.String()))

	return s.String()
}
