// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/panelbridge/pkg/telemetry"
)

var monitorFlags bridgeFlags

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the bridge with a live terminal view",
	Long: `Same as run, with a terminal UI showing every variable, inbound frame
statistics and recent events. Press q to stop.

Exit codes are the same as run.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	addBridgeFlags(monitorCmd, &monitorFlags)
}

// programLink forwards snapshots and log lines to a running TUI. Messages
// sent before the program exists are dropped.
type programLink struct {
	p atomic.Pointer[tea.Program]
}

func (l *programLink) send(msg tea.Msg) {
	if p := l.p.Load(); p != nil {
		p.Send(msg)
	}
}

func (l *programLink) Publish(values []telemetry.Value) error {
	l.send(snapshotMsg(append([]telemetry.Value(nil), values...)))
	return nil
}

func (l *programLink) Write(p []byte) (int, error) {
	l.send(logLineMsg(string(p)))
	return len(p), nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Log lines go to the event pane instead of the terminal
	link := &programLink{}
	logger = zerolog.New(zerolog.ConsoleWriter{
		Out:          link,
		NoColor:      true,
		PartsExclude: []string{zerolog.TimestampFieldName},
	}).Level(logger.GetLevel())

	s, err := newSession(ctx, &monitorFlags, link)
	if err != nil {
		return err
	}
	defer s.close()

	model := newMonitorModel(s.linkInfo, s.simInfo, s.reg, s.loop.Stats, cancel)
	p := tea.NewProgram(model, tea.WithAltScreen())
	link.p.Store(p)

	result := make(chan loopDoneMsg, 1)
	go func() {
		select {
		case <-s.tel.Ready():
			link.send(connectedMsg{})
		case <-s.tel.Done():
		case <-ctx.Done():
		}
	}()
	go func() {
		reason, err := s.loop.Run(ctx)
		done := loopDoneMsg{reason: reason, err: err}
		result <- done
		link.send(done)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		return err
	}

	done := <-result
	return exitFor(done.reason, done.err)
}
