package conda

import (
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// defaultPathExt is used on Windows when PATHEXT is unset.
const defaultPathExt = ".COM;.EXE;.BAT;.CMD;.VBS;.JS;.WS;.MSC;.PY"

// DetermineExecutables returns the absolute paths of the applications the
// package name provides in the environment at prefix, sorted.
//
// It returns an error wrapping ErrNoManifest when the package has no manifest
// in the environment.
func DetermineExecutables(prefix, name string) ([]string, error) {
	return determineExecutables(prefix, name, runtime.GOOS == "windows")
}

func determineExecutables(prefix, name string, windows bool) ([]string, error) {
	m, err := FindManifest(prefix, name)
	if err != nil {
		return nil, err
	}

	var pathExt map[string]bool
	if windows {
		pathExt = windowsPathExt()
	}

	var executables []string
	for _, rel := range m.Files {
		rel = strings.ReplaceAll(rel, `\`, "/")
		if !inExecutableDir(rel, windows) {
			continue
		}

		abs := filepath.Join(prefix, filepath.FromSlash(rel))
		info, err := os.Stat(abs)
		if err != nil || info.IsDir() {
			continue
		}

		if windows {
			if !pathExt[strings.ToLower(path.Ext(rel))] {
				continue
			}
		} else if info.Mode().Perm()&0111 == 0 {
			continue
		}

		executables = append(executables, abs)
	}

	sort.Strings(executables)
	return executables, nil
}

// inExecutableDir reports whether the manifest entry rel lives directly in a
// directory that holds applications: bin or sbin on POSIX; Scripts or
// Library/**/bin on Windows. Comparison is case-insensitive.
func inExecutableDir(rel string, windows bool) bool {
	dir := path.Dir(rel)
	if dir == "." {
		return false
	}
	parent := strings.ToLower(path.Base(dir))

	if !windows {
		return parent == "bin" || parent == "sbin"
	}

	if parent == "scripts" {
		return true
	}
	top := strings.ToLower(strings.SplitN(rel, "/", 2)[0])
	return parent == "bin" && top == "library"
}

func windowsPathExt() map[string]bool {
	raw := os.Getenv("PATHEXT")
	if raw == "" {
		raw = defaultPathExt
	}
	exts := make(map[string]bool)
	for _, ext := range strings.Split(raw, ";") {
		if ext = strings.TrimSpace(ext); ext != "" {
			exts[strings.ToLower(ext)] = true
		}
	}
	return exts
}

// AppNames returns the base names of executable paths, preserving order.
func AppNames(executables []string) []string {
	names := make([]string, 0, len(executables))
	for _, exe := range executables {
		names = append(names, filepath.Base(exe))
	}
	return names
}
