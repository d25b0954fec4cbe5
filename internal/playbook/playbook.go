// Package playbook describes the finalized, serializable input to one
// install run.
package playbook

import (
	"encoding/json"

	"github.com/FyraLabs/readymade/internal/errs"
	"github.com/FyraLabs/readymade/internal/mount"
)

// InstallationTypeKind discriminates the InstallationType variant. Encoded
// externally with a "type" tag so the playbook JSON stays forward
// compatible as new installation types are added.
type InstallationTypeKind string

const (
	WholeDisk         InstallationTypeKind = "WholeDisk"
	DualBoot          InstallationTypeKind = "DualBoot"
	ChromebookInstall InstallationTypeKind = "ChromebookInstall"
	Custom            InstallationTypeKind = "Custom"
)

// InstallationType is a tagged variant. Only the field matching Kind is
// meaningful.
type InstallationType struct {
	Kind InstallationTypeKind `json:"type"`

	// DualBoot
	ShrinkToMiB uint64 `json:"shrink_to_mib,omitempty"`

	// Custom
	MountSet mount.MountSet `json:"mount_set,omitempty"`
}

// Encryption holds the LUKS passphrase and TPM2 selection for a run.
type Encryption struct {
	Passphrase string `json:"passphrase"`
	UseTPM2    bool   `json:"use_tpm2"`
}

// CopyModeKind discriminates the CopyMode variant.
type CopyModeKind string

const (
	CopyModeRepart CopyModeKind = "Repart"
	CopyModeBootc  CopyModeKind = "Bootc"
)

// CopyMode is a tagged variant: either the traditional repart+file-copy path
// or bootc container-image deployment.
type CopyMode struct {
	Kind CopyModeKind `json:"module"`

	// Bootc
	SourceImgref      string   `json:"source_imgref,omitempty"`
	TargetImgref      string   `json:"target_imgref,omitempty"`
	EnforceSigpolicy  bool     `json:"enforce_sigpolicy,omitempty"`
	KernelArgs        []string `json:"kernel_args,omitempty"`
	ExtraArgs         []string `json:"extra_args,omitempty"`
}

// Distro identifies the branding used in post-install modules and the
// bento UI hints carried in the config file.
type Distro struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// PostInstallModuleKind discriminates a post-install pipeline entry. The
// concrete option fields live on PostInstallModule itself (the pipeline is
// small and fixed, so one struct with optional fields reads cleaner than a
// dozen single-field wrapper types) and are empty for modules that take no
// configuration.
type PostInstallModuleKind string

const (
	ModuleGrub2           PostInstallModuleKind = "Grub2"
	ModuleCleanupBoot      PostInstallModuleKind = "CleanupBoot"
	ModuleReinstallKernel PostInstallModuleKind = "ReinstallKernel"
	ModuleDracut          PostInstallModuleKind = "Dracut"
	ModuleFstab           PostInstallModuleKind = "Fstab"
	ModuleSELinux         PostInstallModuleKind = "SELinux"
	ModulePrepareFedora   PostInstallModuleKind = "PrepareFedora"
	ModuleEfiStub         PostInstallModuleKind = "EfiStub"
	ModuleScript          PostInstallModuleKind = "Script"
	ModuleInitialSetup    PostInstallModuleKind = "InitialSetup"
	ModuleLanguage        PostInstallModuleKind = "Language"
)

type PostInstallModule struct {
	Module PostInstallModuleKind `json:"module"`

	// ReinstallKernel
	BuildRescueImage bool `json:"build_rescue_image,omitempty"`
}

// Playbook is the immutable input to one install run.
type Playbook struct {
	DestinationDisk  string           `json:"destination_disk"`
	DestinationLabel string           `json:"destination_label"`
	InstallationType InstallationType `json:"installation_type"`
	Encryption       *Encryption      `json:"encryption,omitempty"`
	CopyMode         CopyMode         `json:"copy_mode"`
	PostInstall      []PostInstallModule `json:"postinstall"`
	Distro           Distro           `json:"distro"`
	Locale           string           `json:"locale"`
}

// reservedHeadroomMiB is subtracted from the disk size before validating a
// DualBoot shrink request, leaving room for partition alignment and the GPT
// backup header.
const reservedHeadroomMiB = 64

// Validate checks the invariants from the data model: Custom installs carry
// a non-empty mount set, encrypted installs carry a non-empty passphrase,
// and a DualBoot shrink request fits within the disk.
func (p *Playbook) Validate(diskSizeMiB uint64) error {
	switch p.InstallationType.Kind {
	case Custom:
		if len(p.InstallationType.MountSet) == 0 {
			return errs.New(errs.InvariantViolation, "Custom install requires a non-empty mount set")
		}
	case DualBoot:
		if diskSizeMiB > 0 && p.InstallationType.ShrinkToMiB > diskSizeMiB-reservedHeadroomMiB {
			return errs.New(errs.InvariantViolation, "DualBoot shrink_to_mib %d exceeds available space on a %d MiB disk", p.InstallationType.ShrinkToMiB, diskSizeMiB)
		}
	}
	if p.Encryption != nil && p.Encryption.Passphrase == "" {
		return errs.New(errs.InvariantViolation, "encryption is set but passphrase is empty")
	}
	return nil
}

// Decode parses playbook JSON (as read from the non-interactive installer's
// stdin) into a Playbook, then checks the decoded result against the
// struct-reflected schema's required fields. encoding/json alone cannot
// tell a present-but-empty field from an absent one, so this second pass
// is what actually catches e.g. a missing distro name.
func Decode(r []byte) (*Playbook, error) {
	if err := validateTopLevelShape(r); err != nil {
		return nil, err
	}
	var p Playbook
	if err := json.Unmarshal(r, &p); err != nil {
		return nil, errs.Wrap(errs.ConfigShape, err, "decoding playbook JSON")
	}
	if err := validateShape(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
