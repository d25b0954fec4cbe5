package postinstall

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FyraLabs/readymade/internal/crypt"
)

func TestUpdateGrubCmdlinePrependsLuksFragments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grub")
	if err := os.WriteFile(path, []byte(`GRUB_CMDLINE_LINUX="rhgb quiet"`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := Context{CryptData: &crypt.CryptData{KernelCmdlineFrags: []string{"rd.luks.name=uuid=root", "rd.luks.options=tpm2-device=auto"}}}
	if err := updateGrubCmdlineAt(path, ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, _ := os.ReadFile(path)
	text := string(data)
	if !strings.Contains(text, `GRUB_CMDLINE_LINUX="rd.luks.name=uuid=root rd.luks.options=tpm2-device=auto rhgb quiet"`) {
		t.Fatalf("unexpected grub cmdline: %q", text)
	}
}
