package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/FyraLabs/readymade/internal/errs"
)

const wellFormedPlaybook = `{
	"destination_disk": "/dev/vda",
	"destination_label": "Test Disk",
	"installation_type": {"type": "WholeDisk"},
	"copy_mode": {"module": "Repart"},
	"postinstall": [],
	"distro": {"name": "Example OS", "icon": "example"},
	"locale": "en_US.UTF-8"
}`

func withStdinRead(t *testing.T, fn func(io.Reader) ([]byte, error)) {
	t.Helper()
	old := stdinRead
	stdinRead = fn
	t.Cleanup(func() { stdinRead = old })
}

func TestRunFrontendRejectsMalformedPlaybook(t *testing.T) {
	withStdinRead(t, func(io.Reader) ([]byte, error) {
		return []byte(`{not json`), nil
	})
	if err := runFrontend(&InstallerOpts{}); err == nil {
		t.Fatal("expected error for malformed playbook JSON")
	}
}

func TestRunFrontendPropagatesStdinReadError(t *testing.T) {
	wantErr := errors.New("boom")
	withStdinRead(t, func(io.Reader) ([]byte, error) {
		return nil, wantErr
	})
	err := runFrontend(&InstallerOpts{})
	if err == nil {
		t.Fatal("expected error")
	}
	e, ok := err.(*errs.Error)
	if !ok || e.Kind != errs.IO {
		t.Fatalf("expected IO error, got %v", err)
	}
}

func TestRunPrivilegedRejectsMalformedPlaybook(t *testing.T) {
	withStdinRead(t, func(io.Reader) ([]byte, error) {
		return []byte(`{not json`), nil
	})
	err := runPrivileged(&InstallerOpts{NonInteractive: "nonexistent-channel"})
	if err == nil {
		t.Fatal("expected error for malformed playbook JSON")
	}
	if _, ok := err.(*errs.Error); !ok {
		t.Fatalf("expected *errs.Error, got %T", err)
	}
}

func TestRunPrivilegedFailsWhenChannelMissing(t *testing.T) {
	withStdinRead(t, func(io.Reader) ([]byte, error) {
		return []byte(wellFormedPlaybook), nil
	})
	err := runPrivileged(&InstallerOpts{NonInteractive: "nonexistent-channel"})
	if err == nil {
		t.Fatal("expected error dialing a channel that was never created")
	}
}

func TestReportAndExitUsesToolExitCodeWhenSet(t *testing.T) {
	oldExit := osExit
	var gotCode int
	osExit = func(code int) { gotCode = code }
	defer func() { osExit = oldExit }()

	var stderr bytes.Buffer
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	reportAndExit(&errs.Error{Kind: errs.ExternalToolFailed, Msg: "script failed", Tool: "/etc/readymade/postinstall.d/50-x.sh", ExitCode: 3})
	w.Close()
	os.Stderr = oldStderr
	io.Copy(&stderr, r)

	if gotCode != 3 {
		t.Errorf("exit code = %d, want 3", gotCode)
	}
	if !bytes.Contains(stderr.Bytes(), []byte("50-x.sh")) {
		t.Errorf("stderr report missing tool path: %s", stderr.String())
	}
}

func TestReportAndExitDefaultsToOneForGenericError(t *testing.T) {
	oldExit := osExit
	var gotCode int
	osExit = func(code int) { gotCode = code }
	defer func() { osExit = oldExit }()

	oldStderr := os.Stderr
	_, w, _ := os.Pipe()
	os.Stderr = w
	reportAndExit(errors.New("generic failure"))
	w.Close()
	os.Stderr = oldStderr

	if gotCode != 1 {
		t.Errorf("exit code = %d, want 1", gotCode)
	}
}
