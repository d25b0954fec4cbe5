package container

import (
	"os"
	"testing"

	"github.com/FyraLabs/readymade/internal/errs"
	"github.com/FyraLabs/readymade/internal/helper"
	"github.com/FyraLabs/readymade/internal/mount"
	"github.com/FyraLabs/readymade/internal/partutil"
)

// TestEnterRejectsMountSetBeforeTouchingTheFilesystem exercises the one
// part of Enter that doesn't require root or real mounts: ms.Validate()
// runs before any bind mount is attempted, so an invalid set fails fast
// without needing CAP_SYS_ADMIN.
func TestEnterRejectsMountSetBeforeTouchingTheFilesystem(t *testing.T) {
	asserter := helper.Asserter{T: t}
	ms := mount.MountSet{
		{PartitionPath: "/dev/sda1", MountPoint: "/boot/efi", GptType: partutil.ESPTypeGUID},
	}
	_, err := Enter(t.TempDir(), ms)
	asserter.AssertErrKind(err, errs.InvariantViolation)
}

// TestBindMountsAreFixedAndOrdered documents the fixed bind mount order
// Release must tear down in reverse; a change here is a behavior change,
// not a refactor.
func TestBindMountsAreFixedAndOrdered(t *testing.T) {
	want := []string{"/proc", "/sys", "/dev", "/dev/pts", "/run"}
	if len(bindMounts) != len(want) {
		t.Fatalf("bindMounts = %v, want %v", bindMounts, want)
	}
	for i, v := range want {
		if bindMounts[i] != v {
			t.Errorf("bindMounts[%d] = %q, want %q", i, bindMounts[i], v)
		}
	}
}

// TestUnmountAllClearsMountedWithoutARealMount exercises the bookkeeping
// in unmountAll against a Container whose mounted list was populated by
// hand rather than by Enter, so the reverse-order unmount attempts hit
// paths that were never actually mounted. unix.Unmount on a non-mountpoint
// fails and is logged, not returned, so this never needs root to observe
// that c.mounted is always reset to nil afterward.
func TestUnmountAllClearsMountedWithoutARealMount(t *testing.T) {
	dir := t.TempDir()
	c := &Container{root: dir, mounted: []string{dir + "/a", dir + "/b"}}
	c.unmountAll()
	if c.mounted != nil {
		t.Errorf("unmountAll() left mounted = %v, want nil", c.mounted)
	}
}

// TestDestroyRemovesScratchRoot exercises the non-privileged half of the
// Release/Destroy split: Destroy only ever removes c.root, never touches
// mount state, so it's safe to call against a plain temp directory.
func TestDestroyRemovesScratchRoot(t *testing.T) {
	dir := t.TempDir()
	c := &Container{root: dir}
	c.Destroy()
	if _, err := os.Stat(dir); err == nil {
		t.Errorf("Destroy() did not remove %s", dir)
	}
}
