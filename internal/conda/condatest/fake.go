// Package condatest provides an in-process conda.Manager that materializes
// environments on disk, for tests of code that discovers and links apps.
package condatest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/condax/internal/conda"
)

// Executable is the path the fake reports from Executable.
const Executable = "/opt/conda/bin/conda"

// Package describes what installing a package puts into an environment.
type Package struct {
	Version string
	Build   string
	// Apps are executable names placed in the platform's bin directory.
	Apps []string
	// Libs are non-executable files, relative to the prefix.
	Libs []string
}

// Call records one Manager method invocation.
type Call struct {
	Verb   string
	Prefix string
	Args   []string
}

// Manager is a fake conda.Manager backed by a catalog of packages.
//
// Changing Catalog between calls simulates new releases: UpdateEnv
// reinstalls every affected package from the current catalog.
type Manager struct {
	mu sync.Mutex

	Catalog map[string]Package
	// FailUpdate makes UpdateEnv fail with a non-zero exit.
	FailUpdate bool
	Calls      []Call
}

// New returns a Manager with the given catalog.
func New(catalog map[string]Package) *Manager {
	return &Manager{Catalog: catalog}
}

var _ conda.Manager = (*Manager)(nil)

// Executable implements conda.Manager.
func (m *Manager) Executable() string { return Executable }

// CreateEnv implements conda.Manager.
func (m *Manager) CreateEnv(_ context.Context, prefix string, channels, specs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("create", prefix, specs)

	if conda.HasEnv(prefix) {
		return m.exit("create", prefix, fmt.Errorf("prefix already exists: %s", prefix))
	}
	if err := os.MkdirAll(filepath.Join(prefix, conda.MetaDir), 0755); err != nil {
		return err
	}
	for _, spec := range specs {
		if err := m.install(prefix, spec); err != nil {
			os.RemoveAll(prefix)
			return m.exit("create", prefix, err)
		}
	}
	return nil
}

// RemoveEnv implements conda.Manager.
func (m *Manager) RemoveEnv(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("remove", prefix, nil)
	return os.RemoveAll(prefix)
}

// UpdateEnv implements conda.Manager.
func (m *Manager) UpdateEnv(_ context.Context, prefix string, channels, specs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("update", prefix, specs)

	if m.FailUpdate {
		return m.exit("update", prefix, fmt.Errorf("simulated update failure"))
	}
	if !conda.HasEnv(prefix) {
		return m.exit("update", prefix, fmt.Errorf("no environment at %s", prefix))
	}

	if len(specs) == 0 {
		installed, err := installedNames(prefix)
		if err != nil {
			return err
		}
		specs = installed
	}

	for _, spec := range specs {
		name, _ := conda.SplitMatchSpec(spec)
		if err := m.uninstall(prefix, name); err != nil {
			return err
		}
		if err := m.install(prefix, spec); err != nil {
			return m.exit("update", prefix, err)
		}
	}
	return nil
}

// Install implements conda.Manager.
func (m *Manager) Install(_ context.Context, prefix string, channels, specs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("install", prefix, specs)

	if !conda.HasEnv(prefix) {
		return m.exit("install", prefix, fmt.Errorf("no environment at %s", prefix))
	}
	for _, spec := range specs {
		name, _ := conda.SplitMatchSpec(spec)
		if err := m.uninstall(prefix, name); err != nil {
			return err
		}
		if err := m.install(prefix, spec); err != nil {
			return m.exit("install", prefix, err)
		}
	}
	return nil
}

// Uninstall implements conda.Manager.
func (m *Manager) Uninstall(_ context.Context, prefix string, names []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("uninstall", prefix, names)

	for _, name := range names {
		if err := m.uninstall(prefix, name); err != nil {
			return err
		}
	}
	return nil
}

// exportFile is the YAML document ExportEnv writes and CreateEnvFromFile reads.
type exportFile struct {
	Name         string   `yaml:"name"`
	Dependencies []string `yaml:"dependencies"`
}

// ExportEnv implements conda.Manager.
func (m *Manager) ExportEnv(_ context.Context, prefix string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("export", prefix, nil)

	names, err := installedNames(prefix)
	if err != nil {
		return nil, err
	}
	doc := exportFile{Name: filepath.Base(prefix)}
	for _, name := range names {
		_, version, build := conda.PackageInfo(prefix, name)
		doc.Dependencies = append(doc.Dependencies, name+"="+version+"="+build)
	}
	return yaml.Marshal(doc)
}

// CreateEnvFromFile implements conda.Manager.
func (m *Manager) CreateEnvFromFile(_ context.Context, prefix, file string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("create-from-file", prefix, []string{file})

	data, err := os.ReadFile(file)
	if err != nil {
		return m.exit("create", prefix, err)
	}
	var doc exportFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return m.exit("create", prefix, err)
	}
	if err := os.MkdirAll(filepath.Join(prefix, conda.MetaDir), 0755); err != nil {
		return err
	}
	for _, dep := range doc.Dependencies {
		// name=version=build
		parts := strings.SplitN(dep, "=", 3)
		if err := m.install(prefix, parts[0]); err != nil {
			return m.exit("create", prefix, err)
		}
	}
	return nil
}

// CallsFor returns the recorded calls with the given verb.
func (m *Manager) CallsFor(verb string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Call
	for _, c := range m.Calls {
		if c.Verb == verb {
			out = append(out, c)
		}
	}
	return out
}

func (m *Manager) record(verb, prefix string, args []string) {
	m.Calls = append(m.Calls, Call{Verb: verb, Prefix: prefix, Args: append([]string(nil), args...)})
}

func (m *Manager) exit(verb, prefix string, err error) error {
	return &conda.ExitError{Args: []string{Executable, verb, "--prefix", prefix}, Code: 1, Err: err}
}

// install writes the manifest and files of spec into prefix. An "=version"
// constraint overrides the catalog version.
func (m *Manager) install(prefix, spec string) error {
	name, matchers := conda.SplitMatchSpec(spec)
	pkg, ok := m.Catalog[name]
	if !ok {
		return fmt.Errorf("PackagesNotFoundError: %s", name)
	}
	version := pkg.Version
	if v := strings.TrimLeft(matchers, "="); v != "" && strings.HasPrefix(matchers, "=") {
		version = v
	}
	build := pkg.Build
	if build == "" {
		build = "0"
	}

	manifest := conda.Manifest{Name: name, Version: version, Build: build}
	for _, app := range pkg.Apps {
		rel := AppPath(app)
		if err := writeFile(prefix, rel, 0755); err != nil {
			return err
		}
		manifest.Files = append(manifest.Files, rel)
	}
	for _, lib := range pkg.Libs {
		if err := writeFile(prefix, lib, 0644); err != nil {
			return err
		}
		manifest.Files = append(manifest.Files, lib)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	file := filepath.Join(prefix, conda.MetaDir, name+"-"+version+"-"+build+".json")
	return os.WriteFile(file, data, 0644)
}

// uninstall removes the manifest and files of name; absent packages are ignored.
func (m *Manager) uninstall(prefix, name string) error {
	manifest, err := conda.FindManifest(prefix, name)
	if err != nil {
		return nil
	}
	for _, rel := range manifest.Files {
		if err := os.Remove(filepath.Join(prefix, filepath.FromSlash(rel))); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	file := filepath.Join(prefix, conda.MetaDir, name+"-"+manifest.Version+"-"+manifest.Build+".json")
	return os.Remove(file)
}

// AppPath is where the fake installs an app, relative to the prefix.
func AppPath(app string) string {
	if runtime.GOOS == "windows" {
		return "Scripts/" + app + ".exe"
	}
	return "bin/" + app
}

// AppName is the app name discovery reports for app.
func AppName(app string) string {
	return filepath.Base(filepath.FromSlash(AppPath(app)))
}

func writeFile(prefix, rel string, perm os.FileMode) error {
	abs := filepath.Join(prefix, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return err
	}
	return os.WriteFile(abs, []byte("#!/bin/sh\n"), perm)
}

// installedNames returns the package names with manifests in prefix, sorted.
func installedNames(prefix string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(prefix, conda.MetaDir))
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(prefix, conda.MetaDir, e.Name()))
		if err != nil {
			return nil, err
		}
		var m conda.Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names, nil
}
