package postinstall

import (
	"github.com/FyraLabs/readymade/internal/arch"
	"github.com/FyraLabs/readymade/internal/errs"
	"github.com/FyraLabs/readymade/internal/partutil"
)

// EfiStub creates a UEFI boot entry for the installed system. It only runs
// when UEFI was used and an ESP was discovered.
type EfiStub struct{}

func (EfiStub) Name() string { return "EfiStub" }

func (EfiStub) Run(ctx Context) error {
	if !ctx.UEFI || ctx.ESPPartition == nil {
		return nil
	}

	partNo, err := partutil.PartitionNumber(ctx.ESPPartition.PartitionPath)
	if err != nil {
		return err
	}
	wholeDisk, err := partutil.WholeDisk(ctx.ESPPartition.PartitionPath)
	if err != nil {
		return err
	}

	shim := arch.ShimName(arch.HostArch())
	if shim == "" {
		return errs.New(errs.InvariantViolation, "no known UEFI shim for host architecture %s", arch.HostArch())
	}

	return run(errs.ExternalToolFailed, "efibootmgr",
		"--create",
		"--disk", wholeDisk,
		"--part", itoa(partNo),
		"--label", ctx.DistroName,
		"--loader", "\\EFI\\fedora\\"+shim)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [12]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}
