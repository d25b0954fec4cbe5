package disk

import (
	"github.com/sirupsen/logrus"

	"github.com/FyraLabs/readymade/internal/mount"
	"github.com/FyraLabs/readymade/internal/partutil"
	"github.com/FyraLabs/readymade/internal/playbook"
)

// Manual returns the playbook-supplied mount set verbatim, after ordering.
// Used for Custom installs where the caller already knows the partition
// layout.
type Manual struct{}

func (m *Manual) Run(pb *playbook.Playbook) (mount.MountSet, error) {
	ms := pb.InstallationType.MountSet.Sorted()
	if err := ms.Validate(); err != nil {
		return nil, err
	}
	enrichGptType(ms)
	return ms, nil
}

// enrichGptType fills in GptType/PartitionUUID for mounts the caller didn't
// already annotate, by reading the live GPT table. A Custom install only
// supplies partition_path and mountpoint; the type GUID a Repart install
// gets for free from systemd-repart's JSON has to be discovered here
// instead. Failures are not returned: a path that does not parse as a
// partition node is skipped silently, and a failed GPT read is logged at
// debug level and skipped. ESP/XBOOTLDR discovery is
// only needed by the post-install pipeline's EfiStub/Grub2 modules, and a
// BIOS-only Custom install has no use for it.
func enrichGptType(ms mount.MountSet) {
	for i, m := range ms {
		if m.GptType != "" {
			continue
		}
		partNo, err := partutil.PartitionNumber(m.PartitionPath)
		if err != nil {
			continue
		}
		wholeDisk, err := partutil.WholeDisk(m.PartitionPath)
		if err != nil {
			continue
		}
		typeGUID, uuid, err := partutil.DiscoverGptType(wholeDisk, partNo)
		if err != nil {
			logrus.Debugf("disk: discovering GPT type for %s: %v", m.PartitionPath, err)
			continue
		}
		ms[i].GptType = typeGUID
		ms[i].PartitionUUID = uuid
	}
}
