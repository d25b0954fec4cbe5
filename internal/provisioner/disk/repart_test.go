package disk

import (
	"testing"

	"github.com/FyraLabs/readymade/internal/mount"
	"github.com/FyraLabs/readymade/internal/template"
)

func TestBoolFlag(t *testing.T) {
	if boolFlag("--dry-run", true) != "--dry-run=yes" {
		t.Fatal("expected yes")
	}
	if boolFlag("--dry-run", false) != "--dry-run=no" {
		t.Fatal("expected no")
	}
}

func TestBuildMountSetJoinsByIndexAndDropsEmptyMountpoints(t *testing.T) {
	defs := []template.ParsedTemplate{
		{Filename: "10-root.conf", MountPoint: "/", Label: "root"},
		{Filename: "20-swap.conf", MountPoint: ""},
		{Filename: "30-boot.conf", MountPoint: "/boot"},
	}
	out := mount.RepartOutput{
		{Node: "/dev/sda2"},
		{Node: "/dev/sda3"},
		{Node: "/dev/sda1"},
	}
	ms, err := buildMountSet(defs, out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ms) != 2 {
		t.Fatalf("expected 2 mounts (empty mountpoint dropped), got %d: %+v", len(ms), ms)
	}
	if ms[0].MountPoint != "/" || ms[0].PartitionPath != "/dev/sda2" {
		t.Fatalf("expected root first from sda2, got %+v", ms[0])
	}
}

func TestBuildMountSetEncryptionMapping(t *testing.T) {
	defs := []template.ParsedTemplate{
		{Filename: "10-root.conf", MountPoint: "/", Label: "root", Encrypt: "key-file+tpm2"},
	}
	out := mount.RepartOutput{{Node: "/dev/sda2"}}
	ms, err := buildMountSet(defs, out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ms[0].Encryption != mount.KeyFileTpm2 {
		t.Fatalf("expected KeyFileTpm2, got %v", ms[0].Encryption)
	}
}
