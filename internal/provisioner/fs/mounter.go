package fs

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/FyraLabs/readymade/internal/crypt"
	"github.com/FyraLabs/readymade/internal/errs"
	"github.com/FyraLabs/readymade/internal/mount"
)

// mountAll mounts every entry of ms (already in canonical order) under
// root, creating intermediate directories and decrypting LUKS partitions
// via cache first. It returns the target paths (m.MountPoint joined under
// root) actually mounted, in mount order, so the caller can unmount them in
// exact reverse. If an entry fails, mountAll itself unmounts the targets
// already mounted before returning the error.
func mountAll(cache *crypt.MapperCache, ms mount.MountSet, root string, passphrase string) ([]string, error) {
	var mounted []string
	for _, m := range ms.Sorted() {
		source := m.PartitionPath
		if m.IsEncrypted() {
			mapped, err := crypt.Decrypt(cache, m.PartitionPath, passphrase, m.Label)
			if err != nil {
				unmountAll(mounted)
				return mounted, err
			}
			source = mapped
		}

		target := filepath.Join(root, m.MountPoint)
		if err := os.MkdirAll(target, 0o755); err != nil {
			unmountAll(mounted)
			return mounted, errs.Wrap(errs.IO, err, "creating mount point %s", target)
		}
		if err := unix.Mount(source, target, "auto", 0, m.MountOptions); err != nil {
			unmountAll(mounted)
			return mounted, errs.Wrap(errs.IO, err, "mounting %s at %s", source, target)
		}
		mounted = append(mounted, target)
	}
	return mounted, nil
}

// unmountAll unmounts, in reverse order, the targets mountAll reported
// mounted. Failures are logged, not returned: cleanup errors must not mask
// whatever install failure is already in flight.
func unmountAll(mounted []string) {
	for i := len(mounted) - 1; i >= 0; i-- {
		if err := unix.Unmount(mounted[i], 0); err != nil {
			logrus.Warnf("fs: unmounting %s: %v", mounted[i], err)
		}
	}
}
