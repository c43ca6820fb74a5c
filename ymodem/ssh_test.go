package ymodem

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDrainStderrLogsLines(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := NewZapLogger(zap.New(core))

	drainStderr(strings.NewReader("sb: ready to send\nsb: 1 file\n"), nil, logger)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("entries = %v", entries)
	}
	if entries[0].Message != "remote: sb: ready to send" || entries[1].Message != "remote: sb: 1 file" {
		t.Errorf("messages = %q, %q", entries[0].Message, entries[1].Message)
	}
}

func TestDrainStderrConsumesLongLines(t *testing.T) {
	r := strings.NewReader(strings.Repeat("x", 128*1024) + "\ntail\n")
	drainStderr(r, nil, NoopLogger{})
	if r.Len() != 0 {
		t.Errorf("%d bytes left unread", r.Len())
	}
}

func TestDrainStderrToWriter(t *testing.T) {
	var out bytes.Buffer
	drainStderr(strings.NewReader("warning\n"), &out, NoopLogger{})
	if out.String() != "warning\n" {
		t.Errorf("copied %q", out.String())
	}
}

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/var/log/messages", `'/var/log/messages'`},
		{"my file.bin", `'my file.bin'`},
		{"it's", `'it'\''s'`},
		{"$(rm -rf /)", `'$(rm -rf /)'`},
	}
	for _, tt := range tests {
		if got := shellQuote(tt.in); got != tt.want {
			t.Errorf("shellQuote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
