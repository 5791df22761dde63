// Package metadata persists which packages of an environment own which
// exposed apps.
//
// Each environment carries one JSON file at <prefix>/condax_metadata.json
// recording its main package and any injected packages. The main package's
// apps are always exposed; an injected package's apps are exposed only when
// it was injected with include_apps.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/blackwell-systems/condax/internal/fsutil"
)

// FileName is the metadata file name inside an environment prefix.
const FileName = "condax_metadata.json"

// ErrMalformed is returned by Load when the metadata file exists but is empty
// or cannot be parsed.
var ErrMalformed = errors.New("malformed condax metadata")

// Package is one package record. Fields are declared in key order so the
// encoded JSON is stable.
type Package struct {
	Apps        []string `json:"apps"`
	IncludeApps bool     `json:"include_apps"`
	Name        string   `json:"name"`
}

// Metadata is the ownership record of one environment.
type Metadata struct {
	InjectedPackages []Package `json:"injected_packages"`
	MainPackage      Package   `json:"main_package"`

	prefix string
}

// Path returns the metadata file path for the environment at prefix.
func Path(prefix string) string {
	return filepath.Join(prefix, FileName)
}

// Create returns fresh metadata for the environment at prefix with main as
// its main package and no injected packages. Nothing is written until Save.
func Create(prefix, main string, apps []string) *Metadata {
	return &Metadata{
		InjectedPackages: []Package{},
		MainPackage:      Package{Apps: normalize(apps), IncludeApps: true, Name: main},
		prefix:           prefix,
	}
}

// Load reads the metadata of the environment at prefix. It returns nil and
// no error when the file does not exist.
func Load(prefix string) (*Metadata, error) {
	path := Path(prefix)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrMalformed, path)
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	if m.MainPackage.Name == "" {
		return nil, fmt.Errorf("%w: %s has no main package", ErrMalformed, path)
	}

	m.prefix = prefix
	m.MainPackage.IncludeApps = true
	m.MainPackage.Apps = normalize(m.MainPackage.Apps)
	if m.InjectedPackages == nil {
		m.InjectedPackages = []Package{}
	}
	for i := range m.InjectedPackages {
		m.InjectedPackages[i].Apps = normalize(m.InjectedPackages[i].Apps)
	}
	return &m, nil
}

// Prefix returns the environment prefix the metadata belongs to.
func (m *Metadata) Prefix() string { return m.prefix }

// Inject records name as injected, replacing any earlier record of the same name.
func (m *Metadata) Inject(name string, apps []string, includeApps bool) {
	m.Uninject(name)
	m.InjectedPackages = append(m.InjectedPackages, Package{
		Apps:        normalize(apps),
		IncludeApps: includeApps,
		Name:        name,
	})
}

// Uninject drops the record of name. Absent names are ignored.
func (m *Metadata) Uninject(name string) {
	kept := m.InjectedPackages[:0]
	for _, p := range m.InjectedPackages {
		if p.Name != name {
			kept = append(kept, p)
		}
	}
	m.InjectedPackages = kept
}

// Injected returns the record of the injected package name.
func (m *Metadata) Injected(name string) (Package, bool) {
	for _, p := range m.InjectedPackages {
		if p.Name == name {
			return p, true
		}
	}
	return Package{}, false
}

// InjectedNames returns the injected package names in record order.
func (m *Metadata) InjectedNames() []string {
	names := make([]string, 0, len(m.InjectedPackages))
	for _, p := range m.InjectedPackages {
		names = append(names, p.Name)
	}
	return names
}

// SetApps replaces the app list of the main or an injected package.
// It reports whether name was found.
func (m *Metadata) SetApps(name string, apps []string) bool {
	if m.MainPackage.Name == name {
		m.MainPackage.Apps = normalize(apps)
		return true
	}
	for i := range m.InjectedPackages {
		if m.InjectedPackages[i].Name == name {
			m.InjectedPackages[i].Apps = normalize(apps)
			return true
		}
	}
	return false
}

// ExposedApps returns the apps that should have wrappers: the main package's
// apps plus those of every injected package with IncludeApps set. The result
// is sorted and free of duplicates.
func (m *Metadata) ExposedApps() []string {
	set := make(map[string]bool)
	for _, app := range m.MainPackage.Apps {
		set[app] = true
	}
	for _, p := range m.InjectedPackages {
		if !p.IncludeApps {
			continue
		}
		for _, app := range p.Apps {
			set[app] = true
		}
	}
	apps := make([]string, 0, len(set))
	for app := range set {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	return apps
}

// Encode returns the JSON form of m: 4-space indent, fixed key order.
func (m *Metadata) Encode() ([]byte, error) {
	return json.MarshalIndent(m, "", "    ")
}

// Save writes m to its environment's metadata file, replacing it atomically.
func (m *Metadata) Save() error {
	if m.prefix == "" {
		return errors.New("metadata has no environment prefix")
	}
	data, err := m.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	return fsutil.WriteFileAtomic(Path(m.prefix), data, 0644)
}

// Remove deletes the metadata file of the environment at prefix, if present.
func Remove(prefix string) error {
	if err := os.Remove(Path(prefix)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// normalize returns a non-nil copy of apps so records encode as [] not null.
func normalize(apps []string) []string {
	out := make([]string, 0, len(apps))
	return append(out, apps...)
}
