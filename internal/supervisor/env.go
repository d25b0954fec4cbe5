package supervisor

import (
	"os"
	"strings"
)

// whitelistedEnv forwards only REPART_* and READYMADE_* variables from the
// caller's environment into the privileged subprocess, plus the fixed
// NO_COLOR, READYMADE_LOG and RUST_BACKTRACE values. Preserving this
// whitelist avoids leaking unrelated caller environment into the
// privileged installer.
func whitelistedEnv(logLevel string) []string {
	var out []string
	for _, kv := range os.Environ() {
		name, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if strings.HasPrefix(name, "REPART_") || strings.HasPrefix(name, "READYMADE_") {
			out = append(out, kv)
		}
	}
	out = append(out,
		"NO_COLOR=1",
		"READYMADE_LOG="+logLevel,
		"RUST_BACKTRACE=full",
	)
	return out
}
