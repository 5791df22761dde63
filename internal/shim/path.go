package shim

import (
	"fmt"
	"os"
	"path/filepath"
)

// IsOnPath reports whether binDir appears in PATH. When it does not, the
// returned string tells the user how to fix it.
func IsOnPath(binDir string) (bool, string) {
	want := filepath.Clean(binDir)
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		if dir == "" {
			continue
		}
		if filepath.Clean(dir) == want {
			return true, ""
		}
	}
	return false, fmt.Sprintf(
		"%s is not on PATH; run 'condax ensure-path' or add:\n  export PATH=%q:$PATH",
		binDir, binDir,
	)
}
