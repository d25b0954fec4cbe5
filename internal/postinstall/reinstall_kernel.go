package postinstall

import (
	"os"
	"sort"

	"github.com/FyraLabs/readymade/internal/errs"
)

// ReinstallKernel finds the installed kernel version under /lib/modules,
// runs kernel-install for it, and optionally builds a rescue initramfs.
type ReinstallKernel struct {
	BuildRescueImage bool
}

func (ReinstallKernel) Name() string { return "ReinstallKernel" }

func (r ReinstallKernel) Run(ctx Context) error {
	entries, err := os.ReadDir("/lib/modules")
	if err != nil {
		return errs.Wrap(errs.IO, err, "reading /lib/modules")
	}
	var versions []string
	for _, e := range entries {
		if e.IsDir() {
			versions = append(versions, e.Name())
		}
	}
	if len(versions) == 0 {
		return errs.New(errs.InvariantViolation, "no kernel versions found under /lib/modules")
	}
	sort.Strings(versions)
	ver := versions[0]

	vmlinuz := "/lib/modules/" + ver + "/vmlinuz"
	if err := run(errs.ExternalToolFailed, "kernel-install", "add", ver, vmlinuz, "--verbose"); err != nil {
		return err
	}

	if r.BuildRescueImage {
		return run(errs.ExternalToolFailed, "dracut",
			"--add", "dmsquash-live overlayfs rescue",
			"--no-hostonly", "--no-uefi",
			"--kver", ver,
			"/boot/initramfs-recovery.img")
	}
	return nil
}
