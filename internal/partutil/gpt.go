package partutil

import (
	"strings"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/partition/gpt"

	"github.com/FyraLabs/readymade/internal/errs"
)

// DiscoverGptType opens the whole-disk node and returns the GPT type GUID
// and partition UUID of the given partition number. Used to enrich
// Custom-install mount sets, which carry only a partition path, with the
// live GPT metadata ESP/XBOOTLDR discovery needs — the same metadata the
// Repart provisioner already gets for free from systemd-repart's JSON
// output.
func DiscoverGptType(wholeDisk string, partNo int) (typeGUID, partitionUUID string, err error) {
	d, openErr := diskfs.Open(wholeDisk)
	if openErr != nil {
		return "", "", errs.Wrap(errs.IO, openErr, "opening %s", wholeDisk)
	}
	defer d.Close()

	pt, tableErr := d.GetPartitionTable()
	if tableErr != nil {
		return "", "", errs.Wrap(errs.IO, tableErr, "reading partition table of %s", wholeDisk)
	}

	table, ok := pt.(*gpt.Table)
	if !ok {
		return "", "", errs.New(errs.InvariantViolation, "%s does not use a GPT partition table", wholeDisk)
	}
	if partNo < 1 || partNo > len(table.Partitions) {
		return "", "", errs.New(errs.InvariantViolation, "partition %d not found on %s", partNo, wholeDisk)
	}

	p := table.Partitions[partNo-1]
	return strings.ToUpper(string(p.Type)), strings.ToUpper(p.GUID), nil
}
