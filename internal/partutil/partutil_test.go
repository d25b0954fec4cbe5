package partutil

import (
	"testing"

	"github.com/FyraLabs/readymade/internal/errs"
)

func TestPartitionNumber(t *testing.T) {
	cases := []struct {
		node string
		want int
	}{
		{"/dev/sda1", 1},
		{"/dev/nvme0n1p2", 2},
		{"/dev/mmcblk0p10", 10},
	}
	for _, c := range cases {
		got, err := PartitionNumber(c.node)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.node, err)
		}
		if got != c.want {
			t.Fatalf("%s: want %d got %d", c.node, c.want, got)
		}
	}
}

func TestPartitionNumberWholeDiskIsInvariantViolation(t *testing.T) {
	_, err := PartitionNumber("/dev/sda")
	if !errs.OfKind(err, errs.InvariantViolation) {
		t.Fatalf("expected InvariantViolation, got %v", err)
	}
}

func TestPartitionNumberMissingPathIsIO(t *testing.T) {
	_, err := PartitionNumber("/tmp/foo-does-not-exist-readymade-test")
	if !errs.OfKind(err, errs.IO) {
		t.Fatalf("expected IO, got %v", err)
	}
}

func TestWholeDisk(t *testing.T) {
	cases := []struct {
		node string
		want string
	}{
		{"/dev/sda1", "/dev/sda"},
		{"/dev/nvme0n1p2", "/dev/nvme0n1"},
	}
	for _, c := range cases {
		got, err := WholeDisk(c.node)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.node, err)
		}
		if got != c.want {
			t.Fatalf("%s: want %s got %s", c.node, c.want, got)
		}
	}
}
