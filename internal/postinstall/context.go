// Package postinstall implements the post-install module pipeline executed
// inside the chroot container: bootloader, initramfs, kernel, fstab,
// cleanup and branding modules sharing one immutable Context value.
package postinstall

import (
	"github.com/FyraLabs/readymade/internal/crypt"
	"github.com/FyraLabs/readymade/internal/mount"
)

// Context is passed immutably to every module.
type Context struct {
	DestinationDisk string
	UEFI            bool
	ESPPartition    *mount.Mount
	XBootldrMount   *mount.Mount
	Locale          string
	CryptData       *crypt.CryptData
	DistroName      string

	// Mounts is the full mount set, needed by Fstab.
	Mounts mount.MountSet
	// MapperCache resolves decrypted device paths when generating fstab
	// UUIDs for LUKS mounts.
	MapperCache *crypt.MapperCache
}

// Module is a single idempotent unit of post-install configuration work,
// run inside the chroot.
type Module interface {
	Name() string
	Run(ctx Context) error
}

// Pipeline runs modules in the configuration-declared order. The first
// failure aborts the remaining modules; it does not recover locally.
type Pipeline struct {
	Modules []Module
}

func (p Pipeline) Run(ctx Context) error {
	for _, m := range p.Modules {
		if err := m.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}
