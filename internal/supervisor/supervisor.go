package supervisor

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/FyraLabs/readymade/internal/errs"
)

// MaxRetries bounds the number of attempts triggered by the documented
// transient busy error.
const MaxRetries = 3

// ringBufferBytes is the size of the captured log tail kept in memory.
const ringBufferBytes = 64 * 1024

// transientBusyTail is the literal stderr suffix the supervisor retries on.
const transientBusyTail = "Failed to reread partition table: Device or resource busy\n"

// Supervisor spawns the privileged installer process and surfaces its
// status to the caller.
type Supervisor struct {
	// SelfPath is the path to this binary, re-invoked under pkexec.
	SelfPath string
	// LogLevel is forwarded as READYMADE_LOG to the child.
	LogLevel string
	// StatusSink receives each Status(message) forwarded over the IPC
	// channel.
	StatusSink func(string)

	// execCommand is overridden in tests.
	execCommand func(name string, args ...string) *exec.Cmd
}

func (s *Supervisor) cmd(name string, args ...string) *exec.Cmd {
	if s.execCommand != nil {
		return s.execCommand(name, args...)
	}
	return exec.Command(name, args...)
}

// Install runs the installer with playbookJSON on its stdin, retrying up
// to MaxRetries attempts when the child's stderr tail matches the
// documented transient busy message.
func (s *Supervisor) Install(playbookJSON []byte) error {
	var lastErr error
	for attempt := 1; attempt <= MaxRetries; attempt++ {
		err := s.attempt(playbookJSON)
		if err == nil {
			return nil
		}
		if !errs.OfKind(err, errs.Transient) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (s *Supervisor) attempt(playbookJSON []byte) error {
	ch, err := newChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	args := []string{"systemd-inhibit", "--who=Readymade", "--why=Installing OS", s.SelfPath, "--non-interactive", ch.ID()}
	cmd := s.cmd("pkexec", args...)
	cmd.Env = whitelistedEnv(s.LogLevel)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errs.Wrap(errs.IO, err, "opening child stdin")
	}

	ring := NewRingBuffer(ringBufferBytes)
	var stderrTail bytes.Buffer
	cmd.Stdout = io.MultiWriter(ring, os.Stdout)
	cmd.Stderr = io.MultiWriter(ring, os.Stderr, &stderrTail)

	if err := cmd.Start(); err != nil {
		return errs.Wrap(errs.IO, err, "starting installer subprocess")
	}

	if _, err := stdin.Write(playbookJSON); err != nil {
		return errs.Wrap(errs.IO, err, "writing playbook to child stdin")
	}
	if err := stdin.Close(); err != nil {
		return errs.Wrap(errs.IO, err, "closing child stdin")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = ch.Serve(func(status string) {
			if s.StatusSink != nil {
				s.StatusSink(status)
			}
		})
	}()

	waitErr := cmd.Wait()
	// A child that exits without ever dialing leaves Serve blocked in
	// Accept; closing the listener releases it.
	ch.listener.Close()
	wg.Wait()

	if waitErr == nil {
		return nil
	}

	tail := stderrTail.String()
	if strings.HasSuffix(tail, transientBusyTail) {
		return &errs.Error{Kind: errs.Transient, Msg: "installer subprocess: device busy", Tool: s.SelfPath, StderrTail: tail}
	}

	return &errs.Error{
		Kind:       errs.ExternalToolFailed,
		Msg:        "installer subprocess failed",
		Tool:       s.SelfPath,
		ExitCode:   exitCode(waitErr),
		StderrTail: tail,
		Err:        waitErr,
	}
}

func exitCode(err error) int {
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}
