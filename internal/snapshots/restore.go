package snapshots

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/condax/internal/metadata"
)

// ReadExport lists the importable environments in dir, sorted by name.
func ReadExport(dir string) ([]Entry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read export directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	specs, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(specs)

	entries := make([]Entry, 0, len(specs))
	for _, spec := range specs {
		env := strings.TrimSuffix(filepath.Base(spec), ".yml")
		entry := Entry{Env: env, SpecFile: spec}
		if md := filepath.Join(dir, env+".json"); fileExists(md) {
			entry.MetadataFile = md
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// LoadIndex reads the export summary of dir. It returns nil when the
// directory has no index, as with exports made by hand.
func LoadIndex(dir string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(dir, IndexFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read export index: %w", err)
	}
	var index Index
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse export index: %w", err)
	}
	return &index, nil
}

// RestoreMetadata copies the exported metadata of e into the environment at
// prefix and loads it back. It returns nil when e has no metadata file.
func RestoreMetadata(e Entry, prefix string) (*metadata.Metadata, error) {
	if e.MetadataFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(e.MetadataFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", e.MetadataFile, err)
	}
	if err := os.WriteFile(metadata.Path(prefix), data, 0644); err != nil {
		return nil, fmt.Errorf("failed to restore metadata of %s: %w", e.Env, err)
	}
	return metadata.Load(prefix)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
