// Package links keeps the wrapper scripts in the bin directory in step with
// what each environment should expose.
//
// Ownership of a wrapper is read back from the wrapper itself: the
// environment name is the last element of the prefix it runs in. A wrapper
// is only removed on behalf of an environment when it decodes to that
// environment, or when it cannot be decoded at all.
package links

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/blackwell-systems/condax/internal/shim"
)

// defaultPerm is used for wrappers whose source executable cannot be stat'ed.
const defaultPerm os.FileMode = 0755

// Exposure is the desired wrapper set of one environment.
type Exposure struct {
	// Prefix is the environment prefix; its last element is the env name.
	Prefix string
	// Executables are absolute executable paths or bare app names.
	Executables []string
}

// EnvName returns the environment name of e.
func (e Exposure) EnvName() string { return filepath.Base(e.Prefix) }

// Reconciler creates, removes and prunes wrappers in one bin directory.
type Reconciler struct {
	binDir   string
	condaExe string
	style    shim.Style
	logger   *log.Logger
	out      io.Writer
}

// New returns a Reconciler writing wrappers that invoke condaExe into binDir.
// Status lines for the user go to out; diagnostics go to logger.
func New(binDir, condaExe string, logger *log.Logger, out io.Writer) *Reconciler {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Reconciler{
		binDir:   binDir,
		condaExe: condaExe,
		style:    shim.DefaultStyle(),
		logger:   logger,
		out:      out,
	}
}

// WithStyle returns a copy of r that writes wrappers in style s.
func (r *Reconciler) WithStyle(s shim.Style) *Reconciler {
	c := *r
	c.style = s
	return &c
}

// BinDir returns the directory wrappers are written to.
func (r *Reconciler) BinDir() string { return r.binDir }

// WrapperPath returns where the wrapper for an executable or app name lives.
func (r *Reconciler) WrapperPath(executable string) string {
	return r.style.Path(r.binDir, executable)
}

// CreateLinks writes a wrapper for each executable of the environment at
// prefix, in sorted order. An existing file at a wrapper path is left alone
// unless force is set, in which case it is replaced. It returns the app
// names that were linked.
func (r *Reconciler) CreateLinks(prefix string, executables []string, force bool) ([]string, error) {
	if err := os.MkdirAll(r.binDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create bin directory %s: %w", r.binDir, err)
	}

	sorted := append([]string(nil), executables...)
	sort.Strings(sorted)

	var created []string
	for _, exe := range sorted {
		app := filepath.Base(exe)
		path := r.WrapperPath(exe)

		if _, err := os.Lstat(path); err == nil {
			if !force {
				r.logger.Warn("file already exists; skipping (use --force to overwrite)", "app", app, "path", path)
				continue
			}
			if err := os.Remove(path); err != nil {
				r.logger.Error("cannot replace existing file", "path", path, "err", err)
				continue
			}
		}

		target := shim.Target{CondaExe: r.condaExe, Prefix: prefix, Executable: app}
		if err := shim.Write(r.style, path, target, sourcePerm(exe)); err != nil {
			return created, fmt.Errorf("failed to write wrapper for %s: %w", app, err)
		}
		r.logger.Debug("wrapper written", "app", app, "env", filepath.Base(prefix), "path", path)
		created = append(created, app)
	}

	if len(created) > 0 {
		fmt.Fprintln(r.out, "Created the following entrypoint links:")
		for _, app := range created {
			fmt.Fprintf(r.out, "    %s\n", app)
		}
	}
	return created, nil
}

// RemoveLinks deletes the wrappers of apps that belong to env.
//
// A wrapper decoding to another environment is kept. A wrapper that cannot
// be decoded is removed, since no environment can claim it. Missing wrappers
// and directories are skipped. It returns the app names whose wrappers were
// removed.
func (r *Reconciler) RemoveLinks(env string, apps []string) ([]string, error) {
	sorted := append([]string(nil), apps...)
	sort.Strings(sorted)

	var removed []string
	for _, app := range sorted {
		path := r.WrapperPath(app)
		t, err := shim.Read(path)
		switch {
		case errors.Is(err, shim.ErrNotFound):
			r.logger.Debug("no wrapper to remove", "app", app)
			continue
		case errors.Is(err, shim.ErrNotRegular):
			r.logger.Warn("not removing non-regular file", "path", path)
			continue
		case err != nil:
			r.logger.Warn("removing wrapper that cannot be attributed to any environment", "path", path, "err", err)
		case t.EnvName() != env:
			r.logger.Info("keeping wrapper owned by another environment", "app", app, "owner", t.EnvName(), "env", env)
			continue
		}

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed = append(removed, app)
	}

	if len(removed) > 0 {
		fmt.Fprintln(r.out, "Removed the following entrypoint links:")
		for _, app := range removed {
			fmt.Fprintf(r.out, "    %s\n", app)
		}
	}
	return removed, nil
}

// Prune sweeps the whole bin directory. Dangling symlinks are removed, and
// so is every condax wrapper whose environment and app are not part of
// exposures. It returns the removed file names.
func (r *Reconciler) Prune(exposures []Exposure) ([]string, error) {
	want := make(map[string]map[string]bool, len(exposures))
	for _, e := range exposures {
		names := make(map[string]bool, len(e.Executables))
		for _, exe := range e.Executables {
			names[r.style.Name(exe)] = true
		}
		want[e.EnvName()] = names
	}

	entries, err := os.ReadDir(r.binDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read bin directory %s: %w", r.binDir, err)
	}

	var pruned []string
	for _, entry := range entries {
		name := entry.Name()
		path := filepath.Join(r.binDir, name)

		if entry.Type()&os.ModeSymlink != 0 {
			if _, err := os.Stat(path); err == nil {
				continue
			}
			r.logger.Info("removing dangling symlink", "path", path)
		} else {
			if !shim.IsWrapper(path) {
				continue
			}
			t, err := shim.Read(path)
			if err == nil && want[t.EnvName()][name] {
				continue
			}
			if err != nil {
				r.logger.Warn("removing unreadable wrapper", "path", path, "err", err)
			} else {
				r.logger.Info("removing stale wrapper", "app", name, "env", t.EnvName())
			}
		}

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return pruned, fmt.Errorf("failed to remove %s: %w", path, err)
		}
		pruned = append(pruned, name)
	}
	return pruned, nil
}

// RecreateAll rewrites every wrapper of every exposure, replacing whatever
// is at the wrapper paths. It returns the number of wrappers written.
func (r *Reconciler) RecreateAll(exposures []Exposure) (int, error) {
	total := 0
	for _, e := range exposures {
		created, err := r.CreateLinks(e.Prefix, e.Executables, true)
		total += len(created)
		if err != nil {
			return total, fmt.Errorf("%s: %w", e.EnvName(), err)
		}
	}
	return total, nil
}

// sourcePerm returns the permission bits of exe, or defaultPerm when exe is
// a bare name or cannot be stat'ed. Wrappers are always user-executable.
func sourcePerm(exe string) os.FileMode {
	if !filepath.IsAbs(exe) {
		return defaultPerm
	}
	info, err := os.Stat(exe)
	if err != nil {
		return defaultPerm
	}
	return info.Mode().Perm() | 0100
}
