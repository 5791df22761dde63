// Package core implements the condax operations: install, remove, update,
// inject, uninject, list, repair, export and import.
//
// Every operation follows the same shape. The package manager changes the
// environment, Executable Discovery reads what the environment now provides,
// the ownership metadata is updated, and the link reconciler converges the
// wrappers in the bin directory.
package core

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/blackwell-systems/condax/internal/conda"
	"github.com/blackwell-systems/condax/internal/config"
	"github.com/blackwell-systems/condax/internal/links"
	"github.com/blackwell-systems/condax/internal/metadata"
	"github.com/blackwell-systems/condax/internal/shim"
	"github.com/blackwell-systems/condax/internal/snapshots"
	"github.com/blackwell-systems/condax/internal/store"
)

// Error is a user-facing precondition failure, such as installing a package
// twice. Code is the process exit status.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string { return e.Message }

func userError(format string, args ...any) error {
	return &Error{Code: 1, Message: fmt.Sprintf(format, args...)}
}

// Condax runs operations against one configuration.
type Condax struct {
	cfg       config.Config
	conda     conda.Manager
	links     *links.Reconciler
	snapshots *snapshots.Manager
	history   *store.Store
	logger    *log.Logger
	out       io.Writer
}

// New returns a Condax using mgr as the package manager. User-facing status
// lines are written to out, diagnostics to logger.
func New(cfg config.Config, mgr conda.Manager, logger *log.Logger, out io.Writer) *Condax {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Condax{
		cfg:       cfg,
		conda:     mgr,
		links:     links.New(cfg.BinDir, mgr.Executable(), logger, out),
		snapshots: snapshots.New(nil, mgr),
		logger:    logger,
		out:       out,
	}
}

// WithHistory makes c record operations and exports in h.
func (c *Condax) WithHistory(h *store.Store) *Condax {
	c.history = h
	c.snapshots = snapshots.New(h, c.conda)
	return c
}

// Config returns the configuration c runs with.
func (c *Condax) Config() config.Config { return c.cfg }

// Envs returns the names of the environments in the prefix directory, sorted.
// Directories that are not package manager environments are ignored.
func (c *Condax) Envs() ([]string, error) {
	entries, err := os.ReadDir(c.cfg.PrefixDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read prefix directory %s: %w", c.cfg.PrefixDir, err)
	}

	var envs []string
	for _, e := range entries {
		if e.IsDir() && conda.HasEnv(c.cfg.EnvPrefix(e.Name())) {
			envs = append(envs, e.Name())
		}
	}
	sort.Strings(envs)
	return envs, nil
}

// History returns recorded operations for env (all envs when empty).
func (c *Condax) History(env string, limit int) ([]*store.Operation, error) {
	if c.history == nil {
		return nil, nil
	}
	return c.history.ListOperations(env, limit)
}

// loadMetadata returns the metadata of the environment at prefix. Missing
// metadata is rebuilt from discovery of the main package and saved; injected
// packages cannot be recovered that way and are lost.
func (c *Condax) loadMetadata(prefix string) (*metadata.Metadata, error) {
	md, err := metadata.Load(prefix)
	if err != nil {
		return nil, err
	}
	if md != nil {
		return md, nil
	}

	env := filepath.Base(prefix)
	exes, err := conda.DetermineExecutables(prefix, env)
	if err != nil {
		return nil, fmt.Errorf("cannot rebuild metadata of %s: %w", env, err)
	}
	md = metadata.Create(prefix, env, conda.AppNames(exes))
	if err := md.Save(); err != nil {
		return nil, err
	}
	c.logger.Warn("metadata was missing; rebuilt from the main package only", "env", env, "apps", md.MainPackage.Apps)
	return md, nil
}

// exposure resolves the apps md should expose to executable paths inside its
// environment. Apps whose package can no longer be discovered are kept as
// bare names so their wrappers are still written.
func (c *Condax) exposure(md *metadata.Metadata) links.Exposure {
	prefix := md.Prefix()
	paths := make(map[string]string)

	packages := []string{md.MainPackage.Name}
	for _, p := range md.InjectedPackages {
		if p.IncludeApps {
			packages = append(packages, p.Name)
		}
	}
	for _, name := range packages {
		exes, err := conda.DetermineExecutables(prefix, name)
		if err != nil {
			c.logger.Warn("cannot discover executables", "env", filepath.Base(prefix), "package", name, "err", err)
			continue
		}
		for _, exe := range exes {
			paths[filepath.Base(exe)] = exe
		}
	}

	apps := md.ExposedApps()
	exes := make([]string, 0, len(apps))
	for _, app := range apps {
		if p, ok := paths[app]; ok {
			exes = append(exes, p)
		} else {
			exes = append(exes, app)
		}
	}
	return links.Exposure{Prefix: prefix, Executables: exes}
}

// record appends an operation to history. Failures are logged, not returned.
func (c *Condax) record(action, env, pkg, spec string, apps []string) {
	if c.history == nil {
		return
	}
	op := &store.Operation{Action: action, Env: env, Package: pkg, Spec: spec, Apps: apps}
	if _, err := c.history.RecordOperation(op); err != nil {
		c.logger.Warn("failed to record history", "action", action, "env", env, "err", err)
	}
}

// warnIfNotOnPath tells the user when wrappers will not be found by the shell.
func (c *Condax) warnIfNotOnPath() {
	if ok, reason := shim.IsOnPath(c.cfg.BinDir); !ok {
		c.logger.Warn(reason)
	}
}

// filterApps returns the executables whose base names are in apps.
func filterApps(executables []string, apps map[string]bool) []string {
	var out []string
	for _, exe := range executables {
		if apps[filepath.Base(exe)] {
			out = append(out, exe)
		}
	}
	return out
}

// difference returns the elements of a not in b, sorted.
func difference(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, s := range b {
		inB[s] = true
	}
	var out []string
	for _, s := range a {
		if !inB[s] {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
