package postinstall

import (
	"os"
	"regexp"
	"strings"

	"github.com/FyraLabs/readymade/internal/errs"
)

const grubDefaultPath = "/etc/default/grub"
const grubStubPath = "/boot/efi/EFI/fedora/grub.cfg"

// grubStubTemplate is the fedora stage-1 grub.cfg stub written on UEFI
// before grub2-mkconfig regenerates the real configuration; %XBOOTLDR_UUID%
// is substituted with the XBOOTLDR partition's UUID.
const grubStubTemplate = `search --no-floppy --fs-uuid --set=dev %XBOOTLDR_UUID%
set prefix=($dev)/grub2
export $prefix
configfile $prefix/grub.cfg
`

// Grub2 writes /etc/default/grub (prepending LUKS kernel args), and on
// UEFI writes the stage-1 stub before running grub2-mkconfig; on BIOS runs
// grub2-install against the destination disk.
type Grub2 struct{}

func (Grub2) Name() string { return "Grub2" }

func (Grub2) Run(ctx Context) error {
	if err := updateGrubCmdline(ctx); err != nil {
		return err
	}

	if ctx.UEFI {
		if ctx.XBootldrMount == nil || ctx.XBootldrMount.UUID() == "" {
			return errs.New(errs.InvariantViolation, "no XBOOTLDR partition discovered for UEFI grub2 stub")
		}
		stub := strings.ReplaceAll(grubStubTemplate, "%XBOOTLDR_UUID%", ctx.XBootldrMount.UUID())
		if err := os.MkdirAll(dirOf(grubStubPath), 0o755); err != nil {
			return errs.Wrap(errs.IO, err, "creating %s", dirOf(grubStubPath))
		}
		if err := os.WriteFile(grubStubPath, []byte(stub), 0o644); err != nil {
			return errs.Wrap(errs.IO, err, "writing %s", grubStubPath)
		}
		return run(errs.ExternalToolFailed, "grub2-mkconfig", "-o", "/boot/grub2/grub.cfg")
	}

	return run(errs.ExternalToolFailed, "grub2-install", "--target=i386-pc", "--recheck", "--force", ctx.DestinationDisk)
}

var grubCmdlineRE = regexp.MustCompile(`(?m)^GRUB_CMDLINE_LINUX="([^"]*)"$`)

func updateGrubCmdline(ctx Context) error {
	return updateGrubCmdlineAt(grubDefaultPath, ctx)
}

func updateGrubCmdlineAt(path string, ctx Context) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(errs.IO, err, "reading %s", path)
	}

	var prefix string
	if ctx.CryptData != nil {
		prefix = strings.Join(ctx.CryptData.KernelCmdlineFrags, " ") + " "
	}

	text := string(data)
	if grubCmdlineRE.MatchString(text) {
		text = grubCmdlineRE.ReplaceAllStringFunc(text, func(m string) string {
			sub := grubCmdlineRE.FindStringSubmatch(m)
			return `GRUB_CMDLINE_LINUX="` + prefix + sub[1] + `"`
		})
	} else {
		text += "\nGRUB_CMDLINE_LINUX=\"" + prefix + "rhgb quiet\"\n"
	}

	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return errs.Wrap(errs.IO, err, "writing %s", path)
	}
	return nil
}

func dirOf(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return "/"
	}
	return path[:idx]
}
