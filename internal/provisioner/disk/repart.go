package disk

import (
	"encoding/json"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/FyraLabs/readymade/internal/errs"
	"github.com/FyraLabs/readymade/internal/mount"
	"github.com/FyraLabs/readymade/internal/playbook"
	"github.com/FyraLabs/readymade/internal/template"
)

// transientBusyTail is the literal stderr suffix the supervisor recognizes
// as a retryable transient failure.
const transientBusyTail = "Failed to reread partition table: Device or resource busy\n"

// RepartOptions carries the Repart-specific knobs resolved once per
// install run (layered template directory, optional LUKS keyfile).
type RepartOptions struct {
	DefinitionsDir string
	KeyFilePath    string // empty when the install is unencrypted
	DryRun         bool
}

// DryRunFromEnv mirrors READYMADE_DRY_RUN: default yes in debug builds, no
// in release; "0"/"1" override explicitly.
func DryRunFromEnv(debugBuild bool) bool {
	switch os.Getenv("READYMADE_DRY_RUN") {
	case "1":
		return true
	case "0":
		return false
	default:
		return debugBuild
	}
}

// Repart provisions the destination disk by invoking systemd-repart against
// a layered template directory.
type Repart struct {
	Options RepartOptions

	// execCommand is overridden in tests.
	execCommand func(name string, args ...string) *exec.Cmd
}

func (r *Repart) cmd(name string, args ...string) *exec.Cmd {
	if r.execCommand != nil {
		return r.execCommand(name, args...)
	}
	return exec.Command(name, args...)
}

func (r *Repart) Run(pb *playbook.Playbook) (mount.MountSet, error) {
	defs, err := template.ReadDefinitions(r.Options.DefinitionsDir)
	if err != nil {
		return nil, err
	}

	args := []string{
		boolFlag("--dry-run", r.Options.DryRun),
		"--definitions=" + r.Options.DefinitionsDir,
		"--empty=force",
		"--offline=false",
		"--json=pretty",
	}

	isBootc := pb.CopyMode.Kind == playbook.CopyModeBootc
	var dev *deviceLock
	if !isBootc {
		source, err := ResolveCopySource()
		if err != nil {
			return nil, err
		}
		args = append(args, "--copy-source="+source)
	}
	if r.Options.KeyFilePath != "" {
		args = append(args, "--key-file="+r.Options.KeyFilePath)
	}

	dev, err = lockDevice(pb.DestinationDisk)
	if err != nil {
		return nil, err
	}
	defer dev.Unlock()

	args = append(args, pb.DestinationDisk)

	cmd := r.cmd("systemd-repart", args...)
	cmd.Env = append(os.Environ(), "SYSTEMD_REPART_MKFS_OPTIONS_BTRFS=--nodiscard")

	stdout, stderrTail, err := runCaptured(cmd)
	if err != nil {
		if strings.HasSuffix(stderrTail, transientBusyTail) {
			return nil, &errs.Error{Kind: errs.Transient, Msg: "systemd-repart: device busy", Tool: "systemd-repart", StderrTail: stderrTail}
		}
		return nil, &errs.Error{Kind: errs.RepartFailed, Msg: "systemd-repart failed", Tool: "systemd-repart", StderrTail: stderrTail, Err: err}
	}

	var out mount.RepartOutput
	if err := json.Unmarshal(stdout, &out); err != nil {
		return nil, &errs.Error{Kind: errs.RepartFailed, Msg: "parsing systemd-repart JSON", Err: err}
	}

	return buildMountSet(defs, out)
}

// buildMountSet joins sorted template files with systemd-repart's output
// partitions by index order, since repart emits output in the same order
// the definitions were applied.
func buildMountSet(defs []template.ParsedTemplate, out mount.RepartOutput) (mount.MountSet, error) {
	if len(defs) != len(out) {
		logrus.Warnf("disk: %d templates but %d repart output partitions; joining by min length", len(defs), len(out))
	}
	n := len(defs)
	if len(out) < n {
		n = len(out)
	}

	var ms mount.MountSet
	for i := 0; i < n; i++ {
		def := defs[i]
		if def.MountPoint == "" {
			continue
		}
		enc := mount.EncryptionKind("")
		switch def.Encrypt {
		case "key-file":
			enc = mount.KeyFile
		case "key-file+tpm2":
			enc = mount.KeyFileTpm2
		}
		ms = append(ms, mount.Mount{
			PartitionPath: out[i].Node,
			MountPoint:    def.MountPoint,
			MountOptions:  def.MountOptions,
			Encryption:    enc,
			Label:         def.Label,
			GptType:       out[i].TypeGUID,
			PartitionUUID: out[i].UUID,
		})
	}
	ms.Sort()
	if err := ms.Validate(); err != nil {
		return nil, err
	}
	return ms, nil
}

func boolFlag(name string, v bool) string {
	if v {
		return name + "=yes"
	}
	return name + "=no"
}

// runCaptured runs cmd, returning stdout bytes and a bounded tail of
// stderr for error reporting.
func runCaptured(cmd *exec.Cmd) ([]byte, string, error) {
	var stdout strings.Builder
	var stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	tail := stderr.String()
	const maxTail = 4096
	if len(tail) > maxTail {
		tail = tail[len(tail)-maxTail:]
	}
	return []byte(stdout.String()), tail, err
}
