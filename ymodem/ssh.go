package ymodem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/ssh"
)

// DefaultSendCommand is the remote lrzsz YMODEM sender.
const DefaultSendCommand = "sb"

// SSHSession receives a file sent by a remote command over an SSH session.
// It manages stdin/stdout/stderr pipes and provides a high-level API.
type SSHSession struct {
	*Session
	sshSession *ssh.Session
	stdin      io.WriteCloser
	stdout     io.Reader
	stderr     io.Reader
	stderrTo   io.Writer
	command    string
}

// NewSSHSession creates a YMODEM session from an SSH session.
func NewSSHSession(sshSession *ssh.Session, sink FileSink, opts ...Option) (*SSHSession, error) {
	stdin, err := sshSession.StdinPipe()
	if err != nil {
		return nil, err
	}

	stdout, err := sshSession.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, err
	}

	stderr, err := sshSession.StderrPipe()
	if err != nil {
		stdin.Close()
		return nil, err
	}

	return &SSHSession{
		Session:    NewSession(NewDeadlineReader(stdout), stdin, sink, opts...),
		sshSession: sshSession,
		stdin:      stdin,
		stdout:     stdout,
		stderr:     stderr,
		command:    DefaultSendCommand,
	}, nil
}

// SetSendCommand replaces the remote sender program, e.g. "sz --ymodem".
func (s *SSHSession) SetSendCommand(command string) {
	s.command = command
}

// ReceiveFile starts "<command> <remotePath>" on the remote host and
// receives the file it sends.
func (s *SSHSession) ReceiveFile(ctx context.Context, remotePath string) (*Result, error) {
	cmd := fmt.Sprintf("%s %s", s.command, shellQuote(remotePath))
	s.logger.Info("ReceiveFile: starting remote %q", cmd)
	if err := s.sshSession.Start(cmd); err != nil {
		return nil, err
	}

	go drainStderr(s.stderr, s.stderrTo, s.logger)

	// Wait for command to finish in background
	done := make(chan error, 1)
	go func() {
		done <- s.sshSession.Wait()
	}()

	result, err := s.Session.Receive(ctx)

	// Close stdin to signal completion
	s.stdin.Close()

	select {
	case err2 := <-done:
		if err == nil {
			err = err2
		}
	case <-ctx.Done():
		return result, ctx.Err()
	}

	return result, err
}

// Close closes the SSH session and cleans up resources.
func (s *SSHSession) Close() error {
	var errs []error

	if s.stdin != nil {
		if err := s.stdin.Close(); err != nil && err != io.EOF {
			errs = append(errs, err)
		}
	}

	if s.sshSession != nil {
		if err := s.sshSession.Close(); err != nil && err != io.EOF {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0] // Return first error
	}

	return nil
}

// SetStderr copies the remote command's stderr to w. By default each line is
// logged at info level.
func (s *SSHSession) SetStderr(w io.Writer) {
	s.stderrTo = w
}

// drainStderr consumes r until EOF so the remote never blocks on a full
// stderr window.
func drainStderr(r io.Reader, w io.Writer, logger Logger) {
	if w != nil {
		_, _ = io.Copy(w, r)
		return
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		logger.Info("remote: %s", sc.Text())
	}
	// keep reading past an overlong line
	_, _ = io.Copy(io.Discard, r)
}

// shellQuote wraps a path in single quotes for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
