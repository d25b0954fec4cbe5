// Package partutil parses block device node paths into partition numbers
// and whole-disk paths, and holds the GPT type GUIDs the installer looks
// for by identity rather than by label.
//
// The parsing here is pure string manipulation, matching the upstream
// implementation used to compute EFI boot entry targets: it never reads
// /sys or stats the path beyond the InvariantViolation/IO cases the
// testable properties require.
package partutil

import (
	"os"
	"regexp"
	"strconv"

	"github.com/FyraLabs/readymade/internal/errs"
)

// ESPTypeGUID is the standard EFI System Partition GPT type GUID.
const ESPTypeGUID = "C12A7328-F81F-11D2-BA4B-00A0C93EC93B"

// XBootldrTypeGUID identifies the extended boot-loader partition.
const XBootldrTypeGUID = "bc13c2ff-59e6-4262-a352-b275fd6f7172"

var (
	reSimple = regexp.MustCompile(`^(/dev/(?:sd|vd|hd)[a-z]+)([0-9]+)$`)
	reNVMe   = regexp.MustCompile(`^(/dev/nvme[0-9]+n[0-9]+)p([0-9]+)$`)
	reMMC    = regexp.MustCompile(`^(/dev/mmcblk[0-9]+)p([0-9]+)$`)
	reLoop   = regexp.MustCompile(`^(/dev/loop[0-9]+)p([0-9]+)$`)
)

var patterns = []*regexp.Regexp{reSimple, reNVMe, reMMC, reLoop}

// split returns the whole-disk path and the numeric partition group for
// node, with ok false if no known partition-node pattern matches.
func split(node string) (disk string, num string, ok bool) {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(node); m != nil {
			return m[1], m[2], true
		}
	}
	return "", "", false
}

// PartitionNumber extracts the partition number from a partition node path
// such as /dev/sda1, /dev/nvme0n1p2 or /dev/mmcblk0p10.
//
// A syntactically valid device path that is not a partition node (e.g. a
// whole disk like /dev/sda) is an InvariantViolation. A path that does not
// look like a device node at all is treated as a filesystem path and
// statted; if that stat fails, the error is IO.
func PartitionNumber(node string) (int, error) {
	_, numStr, ok := split(node)
	if ok {
		n, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, errs.Wrap(errs.IO, err, "parsing partition number from %s", node)
		}
		return n, nil
	}
	if looksLikeDiskNode(node) {
		return 0, errs.New(errs.InvariantViolation, "%s is a whole-disk node, not a partition", node)
	}
	if _, err := os.Stat(node); err != nil {
		return 0, errs.Wrap(errs.IO, err, "stat %s", node)
	}
	return 0, errs.New(errs.InvariantViolation, "%s does not look like a partition node", node)
}

var reWholeDisk = regexp.MustCompile(`^/dev/(?:sd|vd|hd)[a-z]+$|^/dev/nvme[0-9]+n[0-9]+$|^/dev/mmcblk[0-9]+$|^/dev/loop[0-9]+$`)

func looksLikeDiskNode(node string) bool {
	return reWholeDisk.MatchString(node)
}

// WholeDisk returns the whole-disk device path underlying a partition node,
// e.g. /dev/sda1 -> /dev/sda, /dev/nvme0n1p2 -> /dev/nvme0n1.
func WholeDisk(node string) (string, error) {
	disk, _, ok := split(node)
	if !ok {
		return "", errs.New(errs.InvariantViolation, "%s does not look like a partition node", node)
	}
	return disk, nil
}
