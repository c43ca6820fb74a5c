package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/drunlade/go-ymodem/config"
	"github.com/drunlade/go-ymodem/ymodem"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{ymodem.NewError(ymodem.ErrCancelled, "x"), 2},
		{ymodem.NewError(ymodem.ErrSize, "x"), 3},
		{fmt.Errorf("wrapped: %w", ymodem.NewError(ymodem.ErrWrite, "x")), 4},
		{ymodem.NewError(ymodem.ErrTimeout, "x"), 5},
		{ymodem.NewError(ymodem.ErrIO, "x"), 1},
		{errors.New("plain"), 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

// runFlags parses args with the receive flags and applies them to cfg.
func runFlags(t *testing.T, cfg *config.Config, args ...string) {
	t.Helper()
	app := &cli.App{
		Name:   "grb",
		Writer: io.Discard,
		Commands: []*cli.Command{{
			Name:  "receive",
			Flags: receiveFlags(),
			Action: func(c *cli.Context) error {
				applyFlags(c, cfg)
				return nil
			},
		}},
	}
	if err := app.Run(append([]string{"grb", "receive"}, args...)); err != nil {
		t.Fatal(err)
	}
}

func TestApplyFlagsOverridesFile(t *testing.T) {
	cfg := &config.Config{
		Port:    config.PortConfig{Device: "/dev/ttyS0", Baud: 9600},
		Storage: config.StorageConfig{Backend: "dir", Path: "/srv/in"},
		Log:     config.LogConfig{Level: "debug"},
	}
	cfg.Receive.MaxPolls = 30

	runFlags(t, cfg, "--baud", "57600", "--s3", "bucket/pre", "--timeout", "250ms", "--redis-encoding", "msgpack")

	if cfg.Port.Device != "/dev/ttyS0" || cfg.Port.Baud != 57600 {
		t.Errorf("port = %+v", cfg.Port)
	}
	if cfg.Storage.Backend != "s3" || cfg.Storage.Path != "bucket/pre" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Receive.Timeout.Duration != 250*time.Millisecond || cfg.Receive.MaxPolls != 30 {
		t.Errorf("receive = %+v", cfg.Receive)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("unset flag overrode file value: %q", cfg.Log.Level)
	}
	if cfg.Notify.Encoding != "msgpack" {
		t.Errorf("encoding = %q", cfg.Notify.Encoding)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &config.Config{}
	applyDefaults(cfg)

	if cfg.Port.Baud != 115200 || cfg.Port.DataBits != 8 || cfg.Port.Parity != "none" || cfg.Port.StopBits != 1 {
		t.Errorf("port = %+v", cfg.Port)
	}
	if cfg.Receive.Timeout.Duration != 3*time.Second || cfg.Receive.MaxPolls != 10 || cfg.Receive.MaxErrors != 10 {
		t.Errorf("receive = %+v", cfg.Receive)
	}
	if cfg.Storage.Backend != "dir" || cfg.Storage.Path != "." {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if err := cfg.Validate(); err != nil {
		t.Error(err)
	}
}

func TestRenderSummary(t *testing.T) {
	result := &ymodem.Result{
		FileName:      "fw.bin",
		BytesReceived: 4096,
		Status:        ymodem.StatusComplete,
		Duration:      1500 * time.Millisecond,
	}
	got := renderSummary(result, "/srv/fw.bin", nil)
	for _, want := range []string{"COMPLETE", "fw.bin 4096 bytes in 1.5s", "/srv/fw.bin"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary %q missing %q", got, want)
		}
	}

	failed := renderSummary(&ymodem.Result{Status: ymodem.StatusAborted}, "", ymodem.NewError(ymodem.ErrCancelled, "transfer aborted"))
	if !strings.Contains(failed, "ABORTED") || !strings.Contains(failed, "transfer aborted") {
		t.Errorf("summary = %q", failed)
	}
}

func TestRenderProgress(t *testing.T) {
	if got := renderProgress("a", 50, 200, 10); got != "\ra: 25.0% (10 bytes/s)" {
		t.Errorf("got %q", got)
	}
	if got := renderProgress("a", 50, 0, 10); got != "\ra: 50 bytes (10 bytes/s)" {
		t.Errorf("got %q", got)
	}
}
