package sysini

import (
	"strings"
	"testing"

	"github.com/FyraLabs/readymade/internal/errs"
)

func TestParseSections(t *testing.T) {
	f, err := Parse("[Partition]\nType=root\nMountPoint=/\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok := f.Section("Partition").Get("Type")
	if !ok || v.String() != "root" {
		t.Fatalf("expected Type=root, got %v ok=%v", v, ok)
	}
}

func TestParseDuplicateKeysBecomeList(t *testing.T) {
	f, err := Parse("[Partition]\nMountPoint=/:opt1\nMountPoint=/home:opt2\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ := f.Section("Partition").Get("MountPoint")
	list := v.List()
	if len(list) != 2 || list[0] != "/:opt1" || list[1] != "/home:opt2" {
		t.Fatalf("expected 2-element list, got %v", list)
	}
}

func TestParseCommentsAndBlankLines(t *testing.T) {
	f, err := Parse("# comment\n\n; another\n[Partition]\nType=root\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.HasSection("Partition") {
		t.Fatal("expected Partition section")
	}
}

func TestParseQuotedEscapes(t *testing.T) {
	f, err := Parse(`[Partition]
Label="hello\nworld"
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ := f.Section("Partition").Get("Label")
	if v.String() != "hello\nworld" {
		t.Fatalf("unexpected unescape: %q", v.String())
	}
}

func TestSetEncryptToFileNoTPM(t *testing.T) {
	out, err := SetEncryptToFile("[Partition]\nType=root\n", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Encrypt=key-file") || strings.Contains(out, "key-file+tpm2") {
		t.Fatalf("expected Encrypt=key-file, got %q", out)
	}
}

func TestSetEncryptToFileWithTPM(t *testing.T) {
	out, err := SetEncryptToFile("[Partition]\nType=root\n", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Encrypt=key-file+tpm2") {
		t.Fatalf("expected Encrypt=key-file+tpm2, got %q", out)
	}
}

func TestSetEncryptToFileMissingSectionIsConfigShape(t *testing.T) {
	_, err := SetEncryptToFile("[Other]\nFoo=bar\n", false)
	if !errs.OfKind(err, errs.ConfigShape) {
		t.Fatalf("expected ConfigShape error for missing [Partition] section, got %v", err)
	}
}
