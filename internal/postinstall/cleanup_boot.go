package postinstall

import (
	"os"
	"path/filepath"

	"github.com/FyraLabs/readymade/internal/errs"
)

// CleanupBoot removes stale kernel files in /boot and every file under
// /boot/loader/entries, ahead of ReinstallKernel laying down fresh ones.
type CleanupBoot struct{}

func (CleanupBoot) Name() string { return "CleanupBoot" }

func (CleanupBoot) Run(ctx Context) error {
	for _, pattern := range []string{"/boot/initramfs*", "/boot/vmlinuz*"} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return errs.Wrap(errs.IO, err, "globbing %s", pattern)
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
				return errs.Wrap(errs.IO, err, "removing %s", m)
			}
		}
	}

	entries, err := os.ReadDir("/boot/loader/entries")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Wrap(errs.IO, err, "reading /boot/loader/entries")
	}
	for _, e := range entries {
		path := filepath.Join("/boot/loader/entries", e.Name())
		if err := os.RemoveAll(path); err != nil {
			return errs.Wrap(errs.IO, err, "removing %s", path)
		}
	}
	return nil
}
