package crypt

import (
	"fmt"
	"strings"

	"github.com/FyraLabs/readymade/internal/errs"
	"github.com/FyraLabs/readymade/internal/mount"
)

// CryptData is the synthesized /etc/crypttab text plus kernel command-line
// fragments required to boot an encrypted system.
type CryptData struct {
	CrypttabText       string
	KernelCmdlineFrags []string
	UsesTPM2           bool
}

// LuksUUIDFunc resolves the LUKS UUID for a node; overridden in tests.
type LuksUUIDFunc func(node string) (string, error)

// GenerateCryptData builds CryptData from the mounts whose underlying node
// is LUKS. It returns (nil, nil) if no mount is encrypted. Every LUKS mount
// must carry a Label; a missing label is ConfigShape, not a panic.
func GenerateCryptData(ms mount.MountSet, uuidOf LuksUUIDFunc) (*CryptData, error) {
	var crypttabLines []string
	var cmdlineFrags []string
	usesTPM2 := false
	hasLuks := false

	for _, m := range ms {
		if !m.IsEncrypted() {
			continue
		}
		hasLuks = true
		if m.Label == "" {
			return nil, errs.New(errs.ConfigShape, "LUKS mount at %s has no label", m.MountPoint)
		}
		uuid, err := uuidOf(m.PartitionPath)
		if err != nil {
			return nil, err
		}

		extraOpts := ""
		if m.UsesTPM2() {
			extraOpts = "tpm2-device=auto,"
			usesTPM2 = true
		}

		crypttabLines = append(crypttabLines, fmt.Sprintf("%s\tUUID=%s\tnone\t%sluks,discard", m.Label, uuid, extraOpts))
		cmdlineFrags = append(cmdlineFrags, fmt.Sprintf("rd.luks.name=%s=%s", uuid, m.Label))
	}

	if !hasLuks {
		return nil, nil
	}
	if usesTPM2 {
		cmdlineFrags = append(cmdlineFrags, "rd.luks.options=tpm2-device=auto")
	}

	return &CryptData{
		CrypttabText:       strings.Join(crypttabLines, "\n") + "\n",
		KernelCmdlineFrags: cmdlineFrags,
		UsesTPM2:           usesTPM2,
	}, nil
}
