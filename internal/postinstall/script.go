package postinstall

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/FyraLabs/readymade/internal/errs"
)

// scriptPaths lists the fixed single scripts, run in this order, before
// the two postinstall.d directories are walked.
var scriptPaths = []string{
	"/etc/readymade/postinstall.sh",
	"/usr/share/readymade/postinstall.sh",
}

var scriptDirs = []string{
	"/etc/readymade/postinstall.d",
	"/usr/share/readymade/postinstall.d",
}

// Script runs the fixed postinstall scripts, then every executable regular
// file in postinstall.d, each receiving the Context as JSON on stdin. A
// non-zero exit is fatal, surfacing the script path and captured output.
type Script struct{}

func (Script) Name() string { return "Script" }

func (Script) Run(ctx Context) error {
	payload, err := json.Marshal(contextJSON(ctx))
	if err != nil {
		return errs.Wrap(errs.IO, err, "marshaling context for postinstall scripts")
	}

	for _, path := range scriptPaths {
		if !isExecutableRegularFile(path) {
			continue
		}
		if err := runScript(path, payload); err != nil {
			return err
		}
	}

	for _, dir := range scriptDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errs.Wrap(errs.IO, err, "reading %s", dir)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		sort.Strings(names)
		for _, name := range names {
			path := filepath.Join(dir, name)
			if !isExecutableRegularFile(path) {
				continue
			}
			if err := runScript(path, payload); err != nil {
				return err
			}
		}
	}
	return nil
}

func isExecutableRegularFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}

func runScript(path string, stdin []byte) error {
	cmd := execCommand(path)
	cmd.Stdin = bytes.NewReader(stdin)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errs.Tool(errs.ExternalToolFailed, path, exitCode(err), tail(string(out)))
	}
	return nil
}

// contextJSON is the JSON-serializable projection of Context handed to
// postinstall scripts on stdin.
func contextJSON(ctx Context) map[string]any {
	m := map[string]any{
		"destination_disk": ctx.DestinationDisk,
		"uefi":             ctx.UEFI,
		"locale":           ctx.Locale,
		"distro_name":      ctx.DistroName,
	}
	return m
}
