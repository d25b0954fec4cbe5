// Package container implements the chroot container: a scoped acquisition
// of a prepared root with bind mounts, guaranteeing unmount and cleanup on
// every exit path including a panicking closure.
package container

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/FyraLabs/readymade/internal/errs"
	"github.com/FyraLabs/readymade/internal/mount"
)

// bindMounts are bound into the scratch root before entering the chroot,
// in this fixed order. The MountSet's block devices are not bound here:
// the filesystem provisioner has already mounted them under the root.
var bindMounts = []string{"/proc", "/sys", "/dev", "/dev/pts", "/run"}

// Container owns the scratch root directory and the ordered list of active
// mounts. Release unmounts everything in reverse.
type Container struct {
	root    string
	mounted []string
}

// Enter validates ms and binds /proc, /sys, /dev, /dev/pts and /run into
// root, readying it for Run. The block devices of ms are not mounted by
// Enter; a filesystem provisioner has already mounted them at root.
// Exactly one Container may be active per install run.
func Enter(root string, ms mount.MountSet) (*Container, error) {
	if err := ms.Validate(); err != nil {
		return nil, err
	}
	c := &Container{root: root}

	for _, special := range bindMounts {
		target := filepath.Join(root, special)
		if err := os.MkdirAll(target, 0o755); err != nil {
			c.unmountAll()
			return nil, errs.Wrap(errs.IO, err, "creating bind target %s", target)
		}
		if err := unix.Mount(special, target, "", unix.MS_BIND, ""); err != nil {
			c.unmountAll()
			return nil, errs.Wrap(errs.IO, err, "bind mounting %s", special)
		}
		c.mounted = append(c.mounted, target)
	}

	return c, nil
}

// Run chdirs to "/" and chroots into root, executes fn there, and always restores
// the original working directory and root before returning — even if fn
// panics.
func (c *Container) Run(fn func() error) (err error) {
	origRoot, closeRoot, rootErr := openCurrentRoot()
	if rootErr != nil {
		return rootErr
	}
	defer closeRoot()

	if err := os.Chdir("/"); err != nil {
		return errs.Wrap(errs.IO, err, "chdir to / before chroot")
	}
	if err := unix.Chroot(c.root); err != nil {
		return errs.Wrap(errs.IO, err, "chroot to %s", c.root)
	}

	defer func() {
		if r := recover(); r != nil {
			restoreRoot(origRoot)
			panic(r)
		}
	}()
	defer restoreRoot(origRoot)

	return fn()
}

// Release unmounts every bind mount in reverse order. It does not remove
// the scratch root directory: the filesystem provisioner's own mounts
// (root, /boot, ...) are nested under root and must be unmounted by the
// caller before the directory itself can be safely removed — doing so
// here, before that happens, would recurse into still-mounted content.
// Guaranteed to run on both success and failure paths by the caller's
// defer.
func (c *Container) Release() {
	c.unmountAll()
}

// Destroy removes the scratch root directory. Call only after every mount
// nested under root (the filesystem provisioner's mounts, not just this
// Container's own binds) has been unmounted.
func (c *Container) Destroy() {
	if err := os.RemoveAll(c.root); err != nil {
		logrus.Warnf("container: removing scratch root %s: %v", c.root, err)
	}
}

func (c *Container) unmountAll() {
	for i := len(c.mounted) - 1; i >= 0; i-- {
		if err := unix.Unmount(c.mounted[i], unix.MNT_DETACH); err != nil {
			logrus.Warnf("container: unmounting %s: %v", c.mounted[i], err)
		}
	}
	c.mounted = nil
}

// openCurrentRoot and restoreRoot implement return-from-chroot via an fd to
// "/" opened before chrooting, the standard double-chroot escape pattern.
func openCurrentRoot() (*os.File, func(), error) {
	f, err := os.Open("/")
	if err != nil {
		return nil, nil, errs.Wrap(errs.IO, err, "opening / before chroot")
	}
	return f, func() { f.Close() }, nil
}

func restoreRoot(f *os.File) {
	if err := f.Chdir(); err != nil {
		logrus.Errorf("container: restoring working directory: %v", err)
		return
	}
	if err := unix.Chroot("."); err != nil {
		logrus.Errorf("container: restoring root: %v", err)
	}
}
