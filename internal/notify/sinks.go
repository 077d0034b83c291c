// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// # Log Sink

// Log writes notifications as structured log events.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a [Log] sink.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

// Notify logs the notification at a level matching its severity.
func (sink *Log) Notify(ctx context.Context, notification Notification) {
	level := slog.LevelInfo
	switch notification.Level {
	case LevelWarning:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	}

	sink.logger.Log(ctx, level, "user_notification",
		slog.String("notification_id", notification.ID),
		slog.String("message", notification.Message),
	)
}

// # Terminal Sink

var (
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F87171"))
	warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FBBF24"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#34D399"))
	infoStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#22D3EE"))
)

// Terminal prints notifications as styled single lines.
type Terminal struct {
	mu  sync.Mutex
	out io.Writer
}

// NewTerminal creates a [Terminal] sink writing to out.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

// Notify renders "[level] message".
func (sink *Terminal) Notify(_ context.Context, notification Notification) {
	style := infoStyle
	switch notification.Level {
	case LevelError:
		style = errorStyle
	case LevelWarning:
		style = warningStyle
	case LevelSuccess:
		style = successStyle
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	_, _ = fmt.Fprintf(sink.out, "%s %s\n", style.Render("["+string(notification.Level)+"]"), notification.Message)
}
