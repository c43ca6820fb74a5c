// Package main provides the grb CLI, a YMODEM receiver.
//
// Usage:
//
//	grb receive [options]   receive one file over a serial port or stdin
//	grb ports               list serial ports
//	grb version             show version information
//
// Exit codes for receive:
//   - 0: transfer complete
//   - 1: unexpected error
//   - 2: transfer cancelled by either side
//   - 3: file refused (size limit, name, already exists)
//   - 4: file could not be stored
//   - 5: sender timed out
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

const version = "0.1.0"

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "grb",
		Usage:          "receive files with the YMODEM protocol",
		Version:        fmt.Sprintf("%s (commit: %s)", version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			receiveCommand(),
			portsCommand(),
			versionCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		os.Exit(1)
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N", so skip those
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "grb %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}
