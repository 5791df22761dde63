package conda

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// MetaDir is the directory inside an environment holding package manifests.
const MetaDir = "conda-meta"

// FindManifest returns the manifest of the package named name installed in the
// environment at prefix.
//
// Candidates are <prefix>/conda-meta/<name>-*.json in lexicographic order; the
// first whose "name" field equals name wins. Several files can share the name
// prefix (e.g. "python-3.11..." and "python-dateutil-..."), hence the check.
func FindManifest(prefix, name string) (*Manifest, error) {
	pattern := filepath.Join(prefix, MetaDir, escapeGlob(name)+"-*.json")
	candidates, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad manifest pattern %s: %w", pattern, err)
	}

	for _, path := range candidates {
		m, err := readManifest(path)
		if err != nil {
			return nil, err
		}
		if m.Name == name {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: no manifest for %q in %s", ErrNoManifest, name, prefix)
}

// PackageInfo returns name, version and build of an installed package, or
// empty strings when the package is not installed in the environment.
func PackageInfo(prefix, name string) (string, string, string) {
	m, err := FindManifest(prefix, name)
	if err != nil {
		return "", "", ""
	}
	return m.Name, m.Version, m.Build
}

// HasEnv reports whether an environment exists at prefix.
func HasEnv(prefix string) bool {
	info, err := os.Stat(filepath.Join(prefix, MetaDir))
	return err == nil && info.IsDir()
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// escapeGlob quotes glob metacharacters in a package name. filepath.Match
// has no escaping on Windows, where names are used as-is.
func escapeGlob(s string) string {
	if runtime.GOOS == "windows" {
		return s
	}
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
