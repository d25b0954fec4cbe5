package postinstall

import (
	"os/exec"

	"github.com/FyraLabs/readymade/internal/errs"
)

// execCommand is overridden in tests.
var execCommand = exec.Command

// run invokes name with args, returning ExternalToolFailed with a captured
// stderr/stdout tail on non-zero exit.
func run(kind errs.Kind, name string, args ...string) error {
	cmd := execCommand(name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errs.Tool(kind, name, exitCode(err), tail(string(out)))
	}
	return nil
}

func exitCode(err error) int {
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}

const maxTail = 4096

func tail(s string) string {
	if len(s) <= maxTail {
		return s
	}
	return s[len(s)-maxTail:]
}
