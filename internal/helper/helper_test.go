package helper

import (
	"fmt"
	"io"
	"os"
	"testing"
)

func TestCaptureStdCapturesWrites(t *testing.T) {
	var target *os.File = os.Stdout
	reader, teardown, err := CaptureStd(&target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fmt.Fprint(target, "captured line")
	teardown()

	out, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("reading captured output: %v", err)
	}
	if string(out) != "captured line" {
		t.Errorf("captured output = %q, want %q", string(out), "captured line")
	}
}

func TestCaptureStdTeardownRestoresOriginal(t *testing.T) {
	original := os.Stdout
	target := os.Stdout
	_, teardown, err := CaptureStd(&target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target == original {
		t.Fatal("expected target to be redirected during capture")
	}
	teardown()
	if target != original {
		t.Error("expected teardown to restore the original file")
	}
}

func TestCaptureStdTeardownIsIdempotent(t *testing.T) {
	target := os.Stdout
	_, teardown, err := CaptureStd(&target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	teardown()
	teardown() // must not panic or double-close
}
