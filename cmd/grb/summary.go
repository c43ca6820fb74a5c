package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/drunlade/go-ymodem/ymodem"
)

var (
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// renderSummary describes the finished transfer on one or two lines.
func renderSummary(result *ymodem.Result, location string, err error) string {
	var b strings.Builder

	status := ymodem.StatusOK
	if result != nil {
		status = result.Status
	}
	if err == nil {
		b.WriteString(okStyle.Render(status.String()))
	} else {
		b.WriteString(failStyle.Render(status.String()))
	}

	if result != nil && result.FileName != "" {
		fmt.Fprintf(&b, " %s %d bytes in %s",
			result.FileName, result.BytesReceived, result.Duration.Round(time.Millisecond))
	}
	if location != "" {
		b.WriteString(labelStyle.Render(" -> "))
		b.WriteString(location)
	}
	if err != nil {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("error: "))
		b.WriteString(err.Error())
	}
	return b.String()
}

// renderProgress is one carriage-return terminated progress line.
func renderProgress(filename string, transferred, total int64, rate float64) string {
	if total > 0 {
		percent := float64(transferred) / float64(total) * 100
		return fmt.Sprintf("\r%s: %.1f%% (%.0f bytes/s)", filename, percent, rate)
	}
	return fmt.Sprintf("\r%s: %d bytes (%.0f bytes/s)", filename, transferred, rate)
}
