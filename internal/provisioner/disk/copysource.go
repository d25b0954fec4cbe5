package disk

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/FyraLabs/readymade/internal/errs"
)

const (
	rootfsBaseDir   = "/run/rootfsbase"
	liveBaseMapper  = "/dev/mapper/live-base"
	liveBaseMount   = "/mnt/live-base"
	repartCopySrcEnv = "REPART_COPY_SOURCE"
)

// ResolveCopySource implements the precedence chain: an explicit env
// override, a pre-mounted rootfs base, a live-base mapper device mounted on
// demand, or a last-resort fallback to the live-base mount point.
func ResolveCopySource() (string, error) {
	if override := os.Getenv(repartCopySrcEnv); override != "" {
		resolved, err := filepath.Abs(override)
		if err != nil {
			return "", errs.Wrap(errs.IO, err, "resolving %s=%s", repartCopySrcEnv, override)
		}
		resolved, err = filepath.EvalSymlinks(resolved)
		if err != nil {
			// Canonicalization failure still yields a usable
			// (if symlink-laden) path; don't fail the install
			// over it.
			resolved = override
		}
		if resolved == "/" {
			logrus.Warnf("disk: %s resolves to / — copying the live root onto the destination", repartCopySrcEnv)
		}
		return resolved, nil
	}

	if info, err := os.Stat(rootfsBaseDir); err == nil && info.IsDir() {
		return rootfsBaseDir, nil
	}

	if err := os.MkdirAll(liveBaseMount, 0o755); err != nil {
		logrus.Warnf("disk: creating %s: %v", liveBaseMount, err)
	}
	if err := unix.Mount(liveBaseMapper, liveBaseMount, "auto", 0, ""); err != nil {
		logrus.Warnf("disk: mounting %s at %s: %v", liveBaseMapper, liveBaseMount, err)
	}
	return liveBaseMount, nil
}
