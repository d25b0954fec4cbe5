package fs

import (
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/FyraLabs/readymade/internal/crypt"
	"github.com/FyraLabs/readymade/internal/errs"
	"github.com/FyraLabs/readymade/internal/mount"
	"github.com/FyraLabs/readymade/internal/playbook"
)

// bootcCleanupWhitelist is the exact set of top-level entries left behind
// under the scratch root after a bootc deploy; everything else is removed
// during Cleanup.
var bootcCleanupWhitelist = map[string]bool{
	"boot":                true,
	"ostree":              true,
	"efi":                 true,
	".bootc-aleph.json":   true,
}

// Bootc deploys a container-image-based root via `bootc install
// to-filesystem`.
type Bootc struct {
	Cache *crypt.MapperCache

	CryptFragments []string // crypt-derived kernel args, supplied by the caller

	mounted     []string
	execCommand func(name string, args ...string) *exec.Cmd
}

func (b *Bootc) cmd(name string, args ...string) *exec.Cmd {
	if b.execCommand != nil {
		return b.execCommand(name, args...)
	}
	return exec.Command(name, args...)
}

func (b *Bootc) Run(pb *playbook.Playbook, ms mount.MountSet) error {
	var passphrase string
	if pb.Encryption != nil {
		passphrase = pb.Encryption.Passphrase
	}
	mounted, err := mountAll(b.Cache, ms, ScratchRoot, passphrase)
	b.mounted = mounted
	if err != nil {
		return err
	}

	args := []string{"install", "to-filesystem", "--source-imgref", pb.CopyMode.SourceImgref}
	if pb.CopyMode.TargetImgref != "" {
		args = append(args, "--target-imgref", pb.CopyMode.TargetImgref)
	}
	if pb.CopyMode.EnforceSigpolicy {
		args = append(args, "--enforce-container-sigpolicy")
	}

	kargs := append(append([]string{}, b.CryptFragments...), "rhgb", "quiet", "splash")
	kargs = append(kargs, pb.CopyMode.KernelArgs...)
	for _, k := range kargs {
		args = append(args, "--karg", k)
	}

	args = append(args, ScratchRoot)
	args = append(args, pb.CopyMode.ExtraArgs...)

	cmd := b.cmd("bootc", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		unmountAll(b.mounted)
		return errs.Tool(errs.ExternalToolFailed, "bootc install to-filesystem", exitCodeOf(err), string(out))
	}
	return nil
}

// Cleanup removes every top-level entry of the scratch root except the
// bootc whitelist, then syncs and recursively unmounts. Sync/umount
// failures are fatal: an ostree deployment that isn't flushed to disk is
// not a system that will boot.
func (b *Bootc) Cleanup(pb *playbook.Playbook, ms mount.MountSet) error {
	entries, err := os.ReadDir(ScratchRoot)
	if err != nil {
		return errs.Wrap(errs.IO, err, "reading scratch root %s", ScratchRoot)
	}
	for _, e := range entries {
		if bootcCleanupWhitelist[e.Name()] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(ScratchRoot, e.Name())); err != nil {
			return errs.Wrap(errs.IO, err, "removing %s", e.Name())
		}
	}

	unix.Sync()
	var firstErr error
	for i := len(b.mounted) - 1; i >= 0; i-- {
		if err := unix.Unmount(b.mounted[i], 0); err != nil && firstErr == nil {
			firstErr = errs.Wrap(errs.IO, err, "unmounting %s", b.mounted[i])
		}
	}
	return firstErr
}

func exitCodeOf(err error) int {
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}
