package postinstall

import (
	"os"
	"path/filepath"

	"github.com/FyraLabs/readymade/internal/errs"
)

// PrepareFedora strips image-build-time state that must not survive onto
// the installed system: the random seed, machine-id, NetworkManager saved
// connections, RPM's scratch DB files and the DNF cache.
type PrepareFedora struct{}

func (PrepareFedora) Name() string { return "PrepareFedora" }

func (PrepareFedora) Run(ctx Context) error {
	if err := removeIfExists("/var/lib/systemd/random-seed"); err != nil {
		return err
	}
	if err := os.WriteFile("/etc/machine-id", nil, 0o444); err != nil {
		return errs.Wrap(errs.IO, err, "truncating /etc/machine-id")
	}

	const nmConnections = "/etc/NetworkManager/system-connections"
	if err := os.RemoveAll(nmConnections); err != nil {
		return errs.Wrap(errs.IO, err, "removing %s", nmConnections)
	}
	if err := os.MkdirAll(nmConnections, 0o755); err != nil {
		return errs.Wrap(errs.IO, err, "recreating %s", nmConnections)
	}

	matches, err := filepath.Glob("/var/lib/rpm/__db*")
	if err != nil {
		return errs.Wrap(errs.IO, err, "globbing rpm db scratch files")
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return errs.Wrap(errs.IO, err, "removing %s", m)
		}
	}

	if err := os.RemoveAll("/var/cache/dnf"); err != nil {
		return errs.Wrap(errs.IO, err, "removing /var/cache/dnf")
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.IO, err, "removing %s", path)
	}
	return nil
}
