package postinstall

import "github.com/FyraLabs/readymade/internal/errs"

// SELinux relabels the filesystem against the targeted policy.
type SELinux struct{}

func (SELinux) Name() string { return "SELinux" }

func (SELinux) Run(ctx Context) error {
	return run(errs.ExternalToolFailed, "setfiles",
		"-e", "/proc", "-e", "/sys",
		"/etc/selinux/targeted/contexts/files/file_contexts", "/")
}
