package postinstall

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/FyraLabs/readymade/internal/errs"
	"github.com/FyraLabs/readymade/internal/mount"
	"github.com/FyraLabs/readymade/internal/playbook"
)

// Fstab writes /etc/fstab from the mount set. Filesystem types are looked
// up in /proc/mounts of the scratch root context — not the chroot, since by
// the time the chroot closure runs the scratch root's /proc/mounts is no
// longer reachable the same way. The fstab generator therefore must be
// invoked with the scratch-root's parsed /proc/mounts passed in as data,
// not re-read from inside the chroot.
type Fstab struct {
	// ProcMounts is the scratch root's /proc/mounts content, captured
	// before entering the chroot.
	ProcMounts string
	// CopyMode gates the module: it only runs for Repart installs.
	CopyMode playbook.CopyModeKind
}

func (Fstab) Name() string { return "Fstab" }

func (f Fstab) Run(ctx Context) error {
	if f.CopyMode != playbook.CopyModeRepart {
		return nil
	}

	fsTypes := parseProcMounts(f.ProcMounts)

	lines := make([]string, 0, len(ctx.Mounts))
	for _, m := range ctx.Mounts.Sorted() {
		uuid, err := fstabSource(ctx, m)
		if err != nil {
			return err
		}
		fsType := fsTypes[m.MountPoint]
		if fsType == "" {
			fsType = "auto"
		}
		opts := m.MountOptions
		if opts == "" {
			opts = "defaults"
		}
		dump, pass := fstabDumpPass(fsType, m.MountPoint)
		lines = append(lines, fmt.Sprintf("UUID=%s\t%s\t%s\t%s\t%d\t%d", uuid, m.MountPoint, fsType, opts, dump, pass))
	}

	text := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile("/etc/fstab", []byte(text), 0o644); err != nil {
		return errs.Wrap(errs.IO, err, "writing /etc/fstab")
	}
	return nil
}

// fstabSource resolves the UUID fstab should reference: for a LUKS mount,
// the decrypted mapper device's UUID (via the MapperCache, populated
// strictly before this module runs); otherwise the partition's own UUID.
func fstabSource(ctx Context, m mount.Mount) (string, error) {
	if m.IsEncrypted() {
		mapperPath, ok := ctx.MapperCache.Get(m.PartitionPath)
		if !ok {
			return "", errs.New(errs.InvariantViolation, "mapper cache has no entry for LUKS mount %s", m.PartitionPath)
		}
		uuid, err := blkidUUID(mapperPath)
		if err != nil {
			return "", err
		}
		return uuid, nil
	}
	return blkidUUID(m.PartitionPath)
}

func blkidUUID(node string) (string, error) {
	cmd := execCommand("blkid", "-s", "UUID", "-o", "value", node)
	out, err := cmd.Output()
	if err != nil {
		return "", errs.Tool(errs.ExternalToolFailed, "blkid", exitCode(err), err.Error())
	}
	return strings.TrimSpace(string(out)), nil
}

// fstabDumpPass: dump is always 0; pass is 0 for btrfs/xfs, 1 for root, 2
// otherwise.
func fstabDumpPass(fsType, mountpoint string) (dump, pass int) {
	if fsType == "btrfs" || fsType == "xfs" {
		return 0, 0
	}
	if mountpoint == "/" {
		return 0, 1
	}
	return 0, 2
}

// parseProcMounts maps mountpoint -> filesystem type from /proc/mounts
// text (fields: source, mountpoint, fstype, options, freq, passno).
func parseProcMounts(text string) map[string]string {
	out := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		out[fields[1]] = fields[2]
	}
	return out
}
