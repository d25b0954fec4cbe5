package postinstall

import (
	"os"

	"github.com/FyraLabs/readymade/internal/errs"
)

// InitialSetup creates the empty marker file that triggers first-boot
// configuration.
type InitialSetup struct{}

func (InitialSetup) Name() string { return "InitialSetup" }

func (InitialSetup) Run(ctx Context) error {
	f, err := os.Create("/.unconfigured")
	if err != nil {
		return errs.Wrap(errs.IO, err, "creating /.unconfigured")
	}
	return f.Close()
}
