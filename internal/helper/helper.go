// Package helper holds small process-level utilities shared by the CLI and
// its tests that don't belong to any one install-pipeline package.
package helper

import (
	"io"
	"os"
)

// CaptureStd redirects *toCap (os.Stdout or os.Stderr) through a pipe and
// returns a reader for what gets printed plus a teardown that restores the
// original file. Used by the CLI to swallow go-flags' own error/help
// formatting while it decides whether to print it.
func CaptureStd(toCap **os.File) (io.Reader, func(), error) {
	stdCap, stdCapW, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	oldStdCap := *toCap
	*toCap = stdCapW
	closed := false
	return stdCap, func() {
		if closed {
			return
		}
		*toCap = oldStdCap
		stdCapW.Close()
		closed = true
	}, nil
}
