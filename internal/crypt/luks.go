package crypt

import (
	"os"
	"strings"

	"github.com/FyraLabs/readymade/internal/errs"
)

// IsLuks runs cryptsetup isLuks and reports the result from its exit
// status.
func IsLuks(node string) bool {
	cmd := execCommand("cryptsetup", "isLuks", node)
	return cmd.Run() == nil
}

// LuksUUID returns the trimmed stdout of cryptsetup luksUUID.
func LuksUUID(node string) (string, error) {
	cmd := execCommand("cryptsetup", "luksUUID", node)
	out, err := cmd.Output()
	if err != nil {
		return "", errs.Tool(errs.CryptsetupFailed, "cryptsetup luksUUID", exitCode(err), stderrTail(err))
	}
	return strings.TrimSpace(string(out)), nil
}

// UniqueMapperLabel derives a /dev/mapper label from a mountpoint: "/"
// becomes "root"; otherwise the leading slash is stripped and interior
// slashes become hyphens. If the resulting /dev/mapper/<label> path already
// exists, a numeric suffix -1, -2, ... is appended until unique.
func UniqueMapperLabel(mountpoint string) string {
	base := "root"
	if mountpoint != "/" {
		base = strings.ReplaceAll(strings.TrimPrefix(mountpoint, "/"), "/", "-")
	}
	label := base
	for i := 1; mapperExists(label); i++ {
		label = base + "-" + itoa(i)
	}
	return label
}

func mapperExists(label string) bool {
	_, err := os.Stat("/dev/mapper/" + label)
	return err == nil
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// Decrypt opens a LUKS node, consulting the cache first. On a cache miss it
// writes the passphrase to a process-scoped 0600 temp file, invokes
// cryptsetup open in batch mode, records the mapper path in the cache, and
// returns it.
func Decrypt(cache *MapperCache, node, passphrase, label string) (string, error) {
	if existing, ok := cache.Get(node); ok {
		return existing, nil
	}

	tmp, err := os.CreateTemp("", "readymade-luks-*.key")
	if err != nil {
		return "", errs.Wrap(errs.IO, err, "creating temp keyfile for %s", node)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return "", errs.Wrap(errs.IO, err, "chmod temp keyfile for %s", node)
	}
	if _, err := tmp.WriteString(passphrase); err != nil {
		tmp.Close()
		return "", errs.Wrap(errs.IO, err, "writing temp keyfile for %s", node)
	}
	if err := tmp.Close(); err != nil {
		return "", errs.Wrap(errs.IO, err, "closing temp keyfile for %s", node)
	}

	cmd := execCommand("cryptsetup", "open", node, label, "--batch-mode", "--key-file", tmp.Name())
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", errs.Tool(errs.CryptsetupFailed, "cryptsetup open", exitCode(err), tail(string(out)))
	}

	mapperPath := "/dev/mapper/" + label
	cache.Insert(node, mapperPath)
	return mapperPath, nil
}

func closeMapper(label string) error {
	cmd := execCommand("cryptsetup", "close", label)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errs.Tool(errs.CryptsetupFailed, "cryptsetup close", exitCode(err), tail(string(out)))
	}
	return nil
}
