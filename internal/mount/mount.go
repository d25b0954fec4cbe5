// Package mount models the Mount/MountSet data model: the ordered
// partition-to-mountpoint mapping produced by a disk provisioner and
// consumed by the filesystem provisioner, chroot container and fstab
// generator.
package mount

import (
	"sort"
	"strings"

	"github.com/FyraLabs/readymade/internal/errs"
)

// EncryptionKind selects how a Mount's underlying partition is unlocked.
type EncryptionKind string

const (
	KeyFile     EncryptionKind = "KeyFile"
	Tpm2        EncryptionKind = "Tpm2"
	KeyFileTpm2 EncryptionKind = "KeyFileTpm2"
)

// Mount describes one partition-to-mountpoint binding.
type Mount struct {
	PartitionPath string         `json:"partition_path"`
	MountPoint    string         `json:"mountpoint"`
	MountOptions  string         `json:"mount_options,omitempty"`
	Encryption    EncryptionKind `json:"encryption,omitempty"`
	Label         string         `json:"label,omitempty"`

	// GptType is the partition's GPT type GUID; empty until systemd-repart's
	// output or the Manual provisioner's read of the live partition table
	// supplies it.
	GptType string `json:"gpt_type,omitempty"`

	// PartitionUUID is the GPT partition UUID, used by Grub2's UEFI stub
	// to locate the XBOOTLDR partition by UUID rather than by label.
	PartitionUUID string `json:"partition_uuid,omitempty"`
}

// UUID returns the mount's partition UUID (empty if undiscovered).
func (m Mount) UUID() string { return m.PartitionUUID }

// IsEncrypted reports whether this mount's underlying node is LUKS.
func (m Mount) IsEncrypted() bool { return m.Encryption != "" }

// UsesTPM2 reports whether this mount's encryption involves a TPM2-sealed
// key.
func (m Mount) UsesTPM2() bool {
	return m.Encryption == Tpm2 || m.Encryption == KeyFileTpm2
}

// MountSet is an ordered sequence of Mount.
type MountSet []Mount

// componentCount returns the number of non-empty path segments in an
// absolute mountpoint; "/" has zero.
func componentCount(p string) int {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return 0
	}
	return strings.Count(trimmed, "/") + 1
}

// Sort orders the set canonically: root first, then by increasing
// component count, ties broken lexicographically on the mountpoint. This is
// both the mount order and, reversed, the unmount order.
func (ms MountSet) Sort() {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		if a.MountPoint == "/" && b.MountPoint != "/" {
			return true
		}
		if b.MountPoint == "/" && a.MountPoint != "/" {
			return false
		}
		ca, cb := componentCount(a.MountPoint), componentCount(b.MountPoint)
		if ca != cb {
			return ca < cb
		}
		return a.MountPoint < b.MountPoint
	})
}

// Sorted returns a sorted copy, leaving ms untouched.
func (ms MountSet) Sorted() MountSet {
	out := make(MountSet, len(ms))
	copy(out, ms)
	out.Sort()
	return out
}

// Reversed returns a copy in unmount order (the reverse of canonical mount
// order).
func (ms MountSet) Reversed() MountSet {
	sorted := ms.Sorted()
	out := make(MountSet, len(sorted))
	for i, m := range sorted {
		out[len(sorted)-1-i] = m
	}
	return out
}

// Validate checks that the set contains exactly one root mount.
func (ms MountSet) Validate() error {
	roots := 0
	for _, m := range ms {
		if m.MountPoint == "/" {
			roots++
		}
	}
	if roots != 1 {
		return errs.New(errs.InvariantViolation, "mount set must contain exactly one root mount, found %d", roots)
	}
	return nil
}

// RepartPartition is one entry of the JSON array systemd-repart emits with
// --json=pretty. The minimal field set from the data model is required;
// the remaining fields round-trip systemd-repart's actual output but are
// not relied on by any pipeline component.
type RepartPartition struct {
	TypeGUID string `json:"type_uuid"`
	Label    string `json:"label"`
	UUID     string `json:"uuid"`
	PartNo   int    `json:"partno"`
	Node     string `json:"node"`
	Offset   int64  `json:"offset"`
	RawSize  int64  `json:"raw_size"`
	Activity string `json:"activity"`

	// Round-tripped but unused by this installer.
	File       string `json:"file,omitempty"`
	OldSize    int64  `json:"old_size,omitempty"`
	OldPadding int64  `json:"old_padding,omitempty"`
	RawPadding int64  `json:"raw_padding,omitempty"`
}

// RepartOutput is the parsed systemd-repart JSON array.
type RepartOutput []RepartPartition

// FindByTypeGUID returns the first partition whose type GUID matches,
// case-insensitively.
func (ro RepartOutput) FindByTypeGUID(guid string) (RepartPartition, bool) {
	for _, p := range ro {
		if strings.EqualFold(p.TypeGUID, guid) {
			return p, true
		}
	}
	return RepartPartition{}, false
}
