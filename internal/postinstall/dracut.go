package postinstall

import "github.com/FyraLabs/readymade/internal/errs"

// Dracut regenerates the initramfs for every installed kernel.
type Dracut struct{}

func (Dracut) Name() string { return "Dracut" }

func (Dracut) Run(ctx Context) error {
	return run(errs.ExternalToolFailed, "dracut",
		"--force", "--parallel", "--regenerate-all",
		"--hostonly", "--strip", "--aggressive-strip")
}
