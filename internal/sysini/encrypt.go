package sysini

import "github.com/FyraLabs/readymade/internal/errs"

// SetEncryptToFile parses a systemd-unit-style partition template, locates
// section [Partition], and sets key Encrypt to "key-file" or
// "key-file+tpm2" depending on tpm. It returns the file serialized back to
// text. A missing [Partition] section is ConfigShape.
func SetEncryptToFile(text string, tpm bool) (string, error) {
	f, err := Parse(text)
	if err != nil {
		return "", err
	}
	if !f.HasSection("Partition") {
		return "", errs.New(errs.ConfigShape, "template has no [Partition] section")
	}
	value := "key-file"
	if tpm {
		value = "key-file+tpm2"
	}
	f.Section("Partition").Set("Encrypt", value)
	return f.String(), nil
}
