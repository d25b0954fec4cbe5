// Package export writes the on-success state dump consumed for debugging
// and support: format version, installer version, the finalized playbook
// with its passphrase redacted, and (for Repart installs) the parsed
// template set.
package export

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/FyraLabs/readymade/internal/errs"
	"github.com/FyraLabs/readymade/internal/playbook"
	"github.com/FyraLabs/readymade/internal/template"
)

// StatePath is where the state dump is written.
const StatePath = "/var/lib/readymade/state.json"

// FormatVersion is an opaque version string for the dump's own shape.
const FormatVersion = "1"

// redactedPlaybook mirrors playbook.Playbook's JSON shape but always
// reports the literal "REDACTED" for the encryption passphrase field,
// regardless of the real input.
type redactedPlaybook struct {
	playbook.Playbook
	EncryptionKey string `json:"encryption_key"`
}

// StateDump is the exported JSON document.
type StateDump struct {
	FormatVersion   string                      `json:"format_version"`
	InstallerVersion string                     `json:"installer_version"`
	DebugBuild      bool                        `json:"debug_build"`
	Playbook        redactedPlaybook            `json:"playbook"`
	Templates       []template.ParsedTemplate   `json:"templates,omitempty"`
}

// Build assembles a StateDump for pb. templates is nil unless the install
// used the Repart provisioner.
func Build(pb *playbook.Playbook, installerVersion string, debugBuild bool, templates []template.ParsedTemplate) StateDump {
	rp := redactedPlaybook{Playbook: *pb, EncryptionKey: "REDACTED"}
	rp.Playbook.Encryption = nil // the passphrase must never appear verbatim in the dump
	return StateDump{
		FormatVersion:    FormatVersion,
		InstallerVersion: installerVersion,
		DebugBuild:       debugBuild,
		Playbook:         rp,
		Templates:        templates,
	}
}

// Write serializes dump to StatePath, creating parent directories as
// needed.
func Write(dump StateDump) error {
	return WriteTo(StatePath, dump)
}

// WriteTo serializes dump to an arbitrary path; used directly by tests.
func WriteTo(path string, dump StateDump) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Wrap(errs.IO, err, "creating %s", filepath.Dir(path))
	}
	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return errs.Wrap(errs.IO, err, "marshaling state dump")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Wrap(errs.IO, err, "writing %s", path)
	}
	return nil
}
