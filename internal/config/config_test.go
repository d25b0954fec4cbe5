package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/FyraLabs/readymade/internal/errs"
	"github.com/FyraLabs/readymade/internal/helper"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "readymade.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

func TestLoadFromParsesWellFormedConfig(t *testing.T) {
	path := writeConfig(t, `
no_langpage = false

[distro]
name = "Example OS"
icon = "example"

[install]
allowed_installtypes = ["WholeDisk", "Custom"]
copy_mode = "Repart"
bootc_enforce_sigpolicy = true

[[postinstall]]
module = "Grub2"

[[postinstall]]
module = "Dracut"

[[bento]]
title = "Welcome"
desc = "Get started"
link = "https://example.test"
icon = "welcome"
`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Distro.Name != "Example OS" {
		t.Errorf("distro.name = %q", cfg.Distro.Name)
	}
	if len(cfg.Install.AllowedInstallTypes) != 2 {
		t.Errorf("allowed_installtypes = %+v", cfg.Install.AllowedInstallTypes)
	}
	if len(cfg.PostInstall) != 2 || cfg.PostInstall[0].Module != "Grub2" {
		t.Errorf("postinstall = %+v", cfg.PostInstall)
	}
	if len(cfg.Bento) != 1 {
		t.Errorf("bento = %+v", cfg.Bento)
	}
}

func TestLoadFromRejectsMalformedTOML(t *testing.T) {
	asserter := helper.Asserter{T: t}
	path := writeConfig(t, `this is not = valid [[[ toml`)
	_, err := LoadFrom(path)
	asserter.AssertErrKind(err, errs.ConfigShape)
}

func TestLoadFromRejectsTooManyBentoEntries(t *testing.T) {
	asserter := helper.Asserter{T: t}
	path := writeConfig(t, `
[[bento]]
title = "One"
[[bento]]
title = "Two"
[[bento]]
title = "Three"
[[bento]]
title = "Four"
`)
	_, err := LoadFrom(path)
	asserter.AssertErrKind(err, errs.ConfigShape)
}

func TestLoadFromPropagatesMissingFileAsIO(t *testing.T) {
	asserter := helper.Asserter{T: t}
	_, err := LoadFrom(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	asserter.AssertErrKind(err, errs.IO)
}

func TestPathHonorsEnvOverride(t *testing.T) {
	t.Setenv(ConfigEnv, "/tmp/custom-readymade.toml")
	if got := Path(); got != "/tmp/custom-readymade.toml" {
		t.Errorf("Path() = %q, want override", got)
	}
}

func TestPathDefaultsWhenEnvUnset(t *testing.T) {
	t.Setenv(ConfigEnv, "")
	if got := Path(); got != DefaultPath {
		t.Errorf("Path() = %q, want %q", got, DefaultPath)
	}
}
