package mount

import "testing"

func TestSortRootFirst(t *testing.T) {
	ms := MountSet{
		{MountPoint: "/boot/efi"},
		{MountPoint: "/home"},
		{MountPoint: "/"},
		{MountPoint: "/boot"},
	}
	sorted := ms.Sorted()
	if sorted[0].MountPoint != "/" {
		t.Fatalf("expected / first, got %s", sorted[0].MountPoint)
	}
}

func TestSortShallowerFirst(t *testing.T) {
	ms := MountSet{
		{MountPoint: "/boot/efi"},
		{MountPoint: "/boot"},
		{MountPoint: "/"},
	}
	sorted := ms.Sorted()
	want := []string{"/", "/boot", "/boot/efi"}
	for i, m := range sorted {
		if m.MountPoint != want[i] {
			t.Fatalf("index %d: want %s got %s", i, want[i], m.MountPoint)
		}
	}
}

func TestSortLexicographicTieBreak(t *testing.T) {
	ms := MountSet{
		{MountPoint: "/var"},
		{MountPoint: "/home"},
		{MountPoint: "/"},
	}
	sorted := ms.Sorted()
	want := []string{"/", "/home", "/var"}
	for i, m := range sorted {
		if m.MountPoint != want[i] {
			t.Fatalf("index %d: want %s got %s", i, want[i], m.MountPoint)
		}
	}
}

func TestReversedIsExactReverseOfSorted(t *testing.T) {
	ms := MountSet{
		{MountPoint: "/boot/efi"},
		{MountPoint: "/"},
		{MountPoint: "/boot"},
	}
	sorted := ms.Sorted()
	reversed := ms.Reversed()
	n := len(sorted)
	for i := range sorted {
		if sorted[i].MountPoint != reversed[n-1-i].MountPoint {
			t.Fatalf("reversed is not exact reverse of sorted at %d", i)
		}
	}
}

func TestValidateRequiresExactlyOneRoot(t *testing.T) {
	if err := (MountSet{{MountPoint: "/home"}}).Validate(); err == nil {
		t.Fatal("expected error for missing root")
	}
	if err := (MountSet{{MountPoint: "/"}, {MountPoint: "/"}}).Validate(); err == nil {
		t.Fatal("expected error for duplicate root")
	}
	if err := (MountSet{{MountPoint: "/"}}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFindByTypeGUIDCaseInsensitive(t *testing.T) {
	ro := RepartOutput{{TypeGUID: "C12A7328-F81F-11D2-BA4B-00A0C93EC93B", Node: "/dev/sda1"}}
	p, ok := ro.FindByTypeGUID("c12a7328-f81f-11d2-ba4b-00a0c93ec93b")
	if !ok || p.Node != "/dev/sda1" {
		t.Fatalf("expected case-insensitive match, got %+v ok=%v", p, ok)
	}
}
