package supervisor

import (
	"os/exec"
	"sync/atomic"
	"testing"

	"github.com/FyraLabs/readymade/internal/errs"
)

func TestInstallRetriesOnTransientBusyUpToCap(t *testing.T) {
	var calls int32
	script := `echo "Failed to reread partition table: Device or resource busy" 1>&2; exit 1`

	s := &Supervisor{
		SelfPath: "self",
		LogLevel: "info",
		execCommand: func(name string, args ...string) *exec.Cmd {
			atomic.AddInt32(&calls, 1)
			return exec.Command("/bin/sh", "-c", script)
		},
	}

	err := s.Install([]byte(`{}`))
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := atomic.LoadInt32(&calls); got != MaxRetries {
		t.Fatalf("expected exactly %d attempts, got %d", MaxRetries, got)
	}
	if !errs.OfKind(err, errs.Transient) {
		t.Fatalf("expected final error to still be Transient kind, got %v", err)
	}
}

func TestInstallSucceedsOnSecondAttemptAfterTransientBusy(t *testing.T) {
	var calls int32
	s := &Supervisor{
		SelfPath: "self",
		LogLevel: "info",
		execCommand: func(name string, args ...string) *exec.Cmd {
			n := atomic.AddInt32(&calls, 1)
			if n == 1 {
				return exec.Command("/bin/sh", "-c", `echo "Failed to reread partition table: Device or resource busy" 1>&2; exit 1`)
			}
			return exec.Command("/bin/sh", "-c", "exit 0")
		},
	}

	if err := s.Install([]byte(`{}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", got)
	}
}

func TestInstallSucceedsWithoutRetryingOnCleanExit(t *testing.T) {
	var calls int32
	s := &Supervisor{
		SelfPath: "self",
		execCommand: func(name string, args ...string) *exec.Cmd {
			atomic.AddInt32(&calls, 1)
			return exec.Command("/bin/sh", "-c", "exit 0")
		},
	}

	if err := s.Install([]byte(`{}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly 1 attempt on success, got %d", got)
	}
}

func TestInstallDoesNotRetryOnNonTransientFailure(t *testing.T) {
	var calls int32
	s := &Supervisor{
		SelfPath: "self",
		execCommand: func(name string, args ...string) *exec.Cmd {
			atomic.AddInt32(&calls, 1)
			return exec.Command("/bin/sh", "-c", "echo -n boom 1>&2; exit 1")
		},
	}

	err := s.Install([]byte(`{}`))
	if err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly 1 attempt for a non-transient failure, got %d", got)
	}
	if !errs.OfKind(err, errs.ExternalToolFailed) {
		t.Fatalf("expected ExternalToolFailed kind, got %v", err)
	}
	if e, ok := err.(*errs.Error); !ok || e.ExitCode != 1 {
		t.Fatalf("expected ExitCode 1, got %v", err)
	}
}
