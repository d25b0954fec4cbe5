// Package fs implements the two filesystem provisioners — Copy and Bootc —
// polymorphic over Run(playbook, mounts) and an optional Cleanup.
package fs

import (
	"github.com/FyraLabs/readymade/internal/crypt"
	"github.com/FyraLabs/readymade/internal/mount"
	"github.com/FyraLabs/readymade/internal/playbook"
)

// ScratchRoot is where mounts are assembled before the chroot container
// takes over.
const ScratchRoot = "/run/readymade-scratch"

// Provisioner populates a mounted tree with the target root filesystem
// content.
type Provisioner interface {
	Run(pb *playbook.Playbook, mounts mount.MountSet) error
	Cleanup(pb *playbook.Playbook, mounts mount.MountSet) error
}

// ForCopyMode selects the filesystem provisioner implied by the playbook's
// copy_mode.
func ForCopyMode(pb *playbook.Playbook, cache *crypt.MapperCache) Provisioner {
	if pb.CopyMode.Kind == playbook.CopyModeBootc {
		return &Bootc{Cache: cache}
	}
	return &Copy{Cache: cache}
}
