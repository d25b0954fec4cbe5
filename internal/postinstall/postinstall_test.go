package postinstall

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FyraLabs/readymade/internal/crypt"
	"github.com/FyraLabs/readymade/internal/errs"
	"github.com/FyraLabs/readymade/internal/mount"
	"github.com/FyraLabs/readymade/internal/playbook"
)

func TestFstabDumpPass(t *testing.T) {
	cases := []struct {
		fsType, mp   string
		dump, pass int
	}{
		{"btrfs", "/", 0, 0},
		{"xfs", "/data", 0, 0},
		{"ext4", "/", 0, 1},
		{"ext4", "/home", 0, 2},
	}
	for _, c := range cases {
		dump, pass := fstabDumpPass(c.fsType, c.mp)
		if dump != c.dump || pass != c.pass {
			t.Fatalf("%s %s: want dump=%d pass=%d got dump=%d pass=%d", c.fsType, c.mp, c.dump, c.pass, dump, pass)
		}
	}
}

func TestParseProcMounts(t *testing.T) {
	text := "/dev/sda2 / ext4 rw,relatime 0 0\n/dev/sda1 /boot vfat rw 0 0\n"
	got := parseProcMounts(text)
	if got["/"] != "ext4" || got["/boot"] != "vfat" {
		t.Fatalf("unexpected parse result: %+v", got)
	}
}

func TestFstabSkipsWhenNotRepart(t *testing.T) {
	dir := t.TempDir()
	orig, _ := os.Getwd()
	defer os.Chdir(orig)
	os.Chdir(dir)

	f := Fstab{CopyMode: playbook.CopyModeBootc}
	if err := f.Run(Context{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "etc/fstab")); err == nil {
		t.Fatal("expected fstab not written for non-repart copy mode")
	}
}

func TestLanguageLineFormat(t *testing.T) {
	locale := "en_US.UTF-8"
	want := "LANG=" + locale + "\nLANGUAGE=" + locale + "\nLC_MESSAGES=" + locale + "\n"
	got := languageConfText(locale)
	if got != want {
		t.Fatalf("want %q got %q", want, got)
	}
}

func TestScriptNonZeroExitSurfacesFailure(t *testing.T) {
	orig := execCommand
	execCommand = func(name string, args ...string) *exec.Cmd {
		return exec.Command("sh", "-c", "echo boom 1>&2; exit 1")
	}
	defer func() { execCommand = orig }()

	err := runScript("/etc/readymade/postinstall.d/50-x.sh", []byte("{}"))
	if err == nil {
		t.Fatal("expected error from non-zero exit script")
	}
	e, ok := err.(*errs.Error)
	if !ok {
		t.Fatalf("expected *errs.Error, got %T", err)
	}
	if e.Kind != errs.ExternalToolFailed {
		t.Errorf("Kind = %v, want ExternalToolFailed", e.Kind)
	}
	if e.Tool != "/etc/readymade/postinstall.d/50-x.sh" {
		t.Errorf("Tool = %q, want the script path", e.Tool)
	}
	if e.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", e.ExitCode)
	}
	if !strings.Contains(e.StderrTail, "boom") {
		t.Errorf("StderrTail = %q, want it to contain captured stderr", e.StderrTail)
	}
}

func TestEfiStubSkippedWithoutESP(t *testing.T) {
	e := EfiStub{}
	if err := e.Run(Context{UEFI: true, ESPPartition: nil}); err != nil {
		t.Fatalf("expected no-op without ESP, got %v", err)
	}
}

func TestMapperCacheVisibleFromContext(t *testing.T) {
	cache := crypt.NewMapperCache()
	cache.Insert("/dev/sda2", "/dev/mapper/root")
	ctx := Context{MapperCache: cache, Mounts: mount.MountSet{{PartitionPath: "/dev/sda2", MountPoint: "/", Encryption: mount.KeyFile}}}
	if _, ok := ctx.MapperCache.Get("/dev/sda2"); !ok {
		t.Fatal("expected mapper cache entry to be visible from Context")
	}
}

type recordingModule struct {
	name    string
	fail    bool
	entered *[]string
}

func (m recordingModule) Name() string { return m.name }

func (m recordingModule) Run(Context) error {
	*m.entered = append(*m.entered, m.name)
	if m.fail {
		return errs.New(errs.ExternalToolFailed, "%s failed", m.name)
	}
	return nil
}

func TestPipelineStopsAtFirstFailure(t *testing.T) {
	var entered []string
	p := Pipeline{Modules: []Module{
		recordingModule{name: "a", entered: &entered},
		recordingModule{name: "b", fail: true, entered: &entered},
		recordingModule{name: "c", entered: &entered},
	}}

	err := p.Run(Context{})
	if err == nil {
		t.Fatal("expected error from failing module")
	}
	if want := []string{"a", "b"}; !equalStrings(entered, want) {
		t.Fatalf("entered = %v, want %v (module c must not run)", entered, want)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
