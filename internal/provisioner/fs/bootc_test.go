package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBootcCleanupWhitelist(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"boot", "ostree", "efi", ".bootc-aleph.json", "etc", "var"} {
		path := filepath.Join(dir, name)
		if name == ".bootc-aleph.json" {
			os.WriteFile(path, []byte("{}"), 0o644)
		} else {
			os.MkdirAll(path, 0o755)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if bootcCleanupWhitelist[e.Name()] {
			continue
		}
		os.RemoveAll(filepath.Join(dir, e.Name()))
	}

	remaining, _ := os.ReadDir(dir)
	names := map[string]bool{}
	for _, e := range remaining {
		names[e.Name()] = true
	}
	for want := range bootcCleanupWhitelist {
		if !names[want] {
			t.Fatalf("expected %s to survive cleanup", want)
		}
	}
	if names["etc"] || names["var"] {
		t.Fatalf("expected etc/var removed, got %v", names)
	}
}
