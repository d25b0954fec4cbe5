package fs

import (
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/FyraLabs/readymade/internal/crypt"
	"github.com/FyraLabs/readymade/internal/errs"
	"github.com/FyraLabs/readymade/internal/fsutil"
	"github.com/FyraLabs/readymade/internal/mount"
	"github.com/FyraLabs/readymade/internal/playbook"
	"github.com/FyraLabs/readymade/internal/provisioner/disk"
)

// rdmsqshMount is where a file-shaped copy source (a disk image) is
// mounted before its contents are copied, matching the upstream literal.
const rdmsqshMount = "/mnt/rdmsqsh"

// Copy recursively copies the resolved copy source onto the mounted
// scratch root.
type Copy struct {
	Cache *crypt.MapperCache

	mounted []string
}

func (c *Copy) Run(pb *playbook.Playbook, ms mount.MountSet) error {
	var passphrase string
	if pb.Encryption != nil {
		passphrase = pb.Encryption.Passphrase
	}

	mounted, err := mountAll(c.Cache, ms, ScratchRoot, passphrase)
	c.mounted = mounted
	if err != nil {
		return err
	}

	source, err := disk.ResolveCopySource()
	if err != nil {
		unmountAll(c.mounted)
		return err
	}

	info, err := os.Stat(source)
	if err != nil {
		unmountAll(c.mounted)
		return errs.Wrap(errs.IO, err, "stat copy source %s", source)
	}

	if info.IsDir() {
		if err := fsutil.CopyTree(source, ScratchRoot); err != nil {
			unmountAll(c.mounted)
			return err
		}
		return nil
	}

	// A file copy source is a mountable disk image.
	if err := os.MkdirAll(rdmsqshMount, 0o755); err != nil {
		unmountAll(c.mounted)
		return errs.Wrap(errs.IO, err, "creating %s", rdmsqshMount)
	}
	if err := unix.Mount(source, rdmsqshMount, "auto", 0, ""); err != nil {
		unmountAll(c.mounted)
		return errs.Wrap(errs.IO, err, "mounting image %s at %s", source, rdmsqshMount)
	}
	defer func() {
		if err := unix.Unmount(rdmsqshMount, 0); err != nil {
			logrus.Warnf("fs: unmounting %s: %v", rdmsqshMount, err)
		}
	}()

	if err := fsutil.CopyTree(rdmsqshMount, ScratchRoot); err != nil {
		unmountAll(c.mounted)
		return err
	}
	return nil
}

// Cleanup unmounts everything mountAll attached during Run.
func (c *Copy) Cleanup(pb *playbook.Playbook, ms mount.MountSet) error {
	unmountAll(c.mounted)
	return nil
}
