// Package arch maps the host architecture to the identifiers the
// post-install pipeline needs: the shim EFI binary name and the grub2
// platform target.
package arch

import (
	"os/exec"
	"strings"
)

const (
	X86_64  = "x86_64"
	AARCH64 = "aarch64"
	PPC64LE = "ppc64le"
	S390X   = "s390x"
)

// HostArch returns the host architecture as reported by uname -m.
func HostArch() string {
	cmd := exec.Command("uname", "-m")
	out, _ := cmd.Output() // nolint: errcheck
	return strings.TrimSpace(string(out))
}

// ShimName returns the fedora-branded shim EFI binary name for arch, or ""
// if the architecture has no known UEFI shim.
func ShimName(arch string) string {
	switch arch {
	case X86_64:
		return "shimx64.efi"
	case AARCH64:
		return "shimaa64.efi"
	default:
		return ""
	}
}

// Grub2Target returns the grub2-mkconfig/grub2-install platform target for
// arch, or "" if unknown.
func Grub2Target(arch string) string {
	switch arch {
	case X86_64:
		return "x86_64-efi"
	case AARCH64:
		return "arm64-efi"
	case PPC64LE:
		return "powerpc-ieee1275"
	case S390X:
		return "s390x-emu"
	default:
		return ""
	}
}
