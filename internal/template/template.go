// Package template implements the partition-template layering step: a
// writable copy of a read-only template directory, with an optional
// encryption-enabling edit applied to 50-root.conf before the templates
// are consumed by the Repart provisioner.
package template

import (
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v2"

	"github.com/FyraLabs/readymade/internal/errs"
	"github.com/FyraLabs/readymade/internal/fsutil"
	"github.com/FyraLabs/readymade/internal/sysini"
)

// ScratchDir is the default destination for layered templates.
const ScratchDir = "/run/readymade-install"

// metaFilename is the optional sidecar dropped next to a set of partition
// templates, carrying a human label for log messages only.
const metaFilename = "meta.yaml"

// Meta is the decoded form of a template directory's meta.yaml. Every field
// is optional; an absent sidecar behaves as a zero Meta.
type Meta struct {
	Label string `yaml:"label"`
}

// readMeta loads dir's meta.yaml sidecar if present. A missing sidecar is
// not an error; a malformed one is.
func readMeta(dir string) (Meta, error) {
	data, err := os.ReadFile(filepath.Join(dir, metaFilename))
	if os.IsNotExist(err) {
		return Meta{}, nil
	}
	if err != nil {
		return Meta{}, errs.Wrap(errs.IO, err, "reading %s", metaFilename)
	}
	var m Meta
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Meta{}, errs.Wrap(errs.ConfigShape, err, "parsing %s", metaFilename)
	}
	return m, nil
}

// Layer copies templateDir's entire tree to dst (ScratchDir by default),
// preserving file mode and xattrs. It fails with IO if the copy fails or
// templateDir does not exist. The returned Meta reflects templateDir's
// meta.yaml sidecar, if any, for the caller to use in log messages.
func Layer(templateDir, dst string) (string, Meta, error) {
	if _, err := os.Stat(templateDir); err != nil {
		return "", Meta{}, errs.Wrap(errs.IO, err, "template directory %s", templateDir)
	}
	meta, err := readMeta(templateDir)
	if err != nil {
		return "", Meta{}, err
	}
	if err := fsutil.CopyTree(templateDir, dst); err != nil {
		return "", Meta{}, err
	}
	return dst, meta, nil
}

// EnableEncryption edits 50-root.conf in the scratch directory, setting
// [Partition] Encrypt to "key-file" or "key-file+tpm2".
func EnableEncryption(scratchDir string, useTPM2 bool) error {
	path := filepath.Join(scratchDir, "50-root.conf")
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(errs.IO, err, "reading %s", path)
	}
	edited, err := sysini.SetEncryptToFile(string(data), useTPM2)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
		return errs.Wrap(errs.IO, err, "writing %s", path)
	}
	return nil
}

// ParsedTemplate is one partition-definition template file, sufficient for
// Repart's mountpoint/options/encryption/label extraction.
type ParsedTemplate struct {
	Filename      string
	Type          string
	MountPoint    string // mountpoint only, options split off into MountOptions
	MountOptions  string
	Encrypt       string
	Label         string
}

// ReadDefinitions parses every file in dir (sorted lexicographically),
// extracting the Partition.{Type, MountPoint, Encrypt, Label} fields.
// The meta.yaml sidecar, if present, is skipped: it isn't a partition
// template.
func ReadDefinitions(dir string) ([]ParsedTemplate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.Wrap(errs.IO, err, "reading template directory %s", dir)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && e.Name() != metaFilename {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]ParsedTemplate, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, errs.Wrap(errs.IO, err, "reading %s", name)
		}
		parsed, err := parseTemplateFile(name, string(data))
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}

func parseTemplateFile(name, text string) (ParsedTemplate, error) {
	f, err := sysini.Parse(text)
	if err != nil {
		return ParsedTemplate{}, err
	}
	if !f.HasSection("Partition") {
		return ParsedTemplate{}, errs.New(errs.ConfigShape, "%s has no [Partition] section", name)
	}
	sec := f.Section("Partition")

	pt := ParsedTemplate{Filename: name}
	if v, ok := sec.Get("Type"); ok {
		pt.Type = v.String()
	}
	if v, ok := sec.Get("Encrypt"); ok {
		pt.Encrypt = v.String()
	}
	if v, ok := sec.Get("Label"); ok {
		pt.Label = v.String()
	}
	if v, ok := sec.Get("MountPoint"); ok {
		raw := v.String()
		mp, opts, _ := splitOnFirstColon(raw)
		pt.MountPoint = mp
		pt.MountOptions = opts
	}
	return pt, nil
}

// splitOnFirstColon splits "MountPoint" on the first ':' into mountpoint
// and mount options, ignoring additional ':' segments.
func splitOnFirstColon(s string) (mountpoint, options string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}
