// Package disk implements the two disk provisioners — Repart and Manual —
// polymorphic over a single Run(playbook) (mount.MountSet, error)
// capability, selected by ForCopyMode from the playbook's installation
// type.
package disk

import (
	"github.com/FyraLabs/readymade/internal/mount"
	"github.com/FyraLabs/readymade/internal/playbook"
)

// Provisioner produces a MountSet for one install run.
type Provisioner interface {
	Run(pb *playbook.Playbook) (mount.MountSet, error)
}

// ForCopyMode selects the disk provisioner implied by a playbook: Manual
// for Custom installs, Repart for everything else (WholeDisk, DualBoot,
// ChromebookInstall all provision via systemd-repart; only the template
// set they're driven with differs, which is a config-layer concern, not a
// provisioner-selection one).
func ForCopyMode(pb *playbook.Playbook, opts RepartOptions) Provisioner {
	if pb.InstallationType.Kind == playbook.Custom {
		return &Manual{}
	}
	return &Repart{Options: opts}
}
