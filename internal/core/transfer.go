package core

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/blackwell-systems/condax/internal/conda"
	"github.com/blackwell-systems/condax/internal/snapshots"
	"github.com/blackwell-systems/condax/internal/store"
)

// Export writes every environment to dir as <env>.yml and <env>.json.
func (c *Condax) Export(ctx context.Context, dir string) (*snapshots.Index, error) {
	envs, err := c.Envs()
	if err != nil {
		return nil, err
	}
	prefixes := make([]string, 0, len(envs))
	for _, env := range envs {
		prefixes = append(prefixes, c.cfg.EnvPrefix(env))
	}

	index, err := c.snapshots.Export(ctx, prefixes, dir)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(c.out, "Exported %d environment(s) to %s\n", len(index.Envs), dir)
	return index, nil
}

// Exports returns the recorded export runs, newest first.
func (c *Condax) Exports() ([]*store.Export, error) {
	return c.snapshots.ListExports()
}

// ImportOptions controls Import.
type ImportOptions struct {
	// Force replaces environments that already exist and overwrites
	// existing files in the bin directory.
	Force bool
}

// Import recreates the environments exported to dir, restores their
// metadata and links their apps. Existing environments are skipped unless
// opts.Force is set. It returns the imported environment names.
func (c *Condax) Import(ctx context.Context, dir string, opts ImportOptions) ([]string, error) {
	entries, err := snapshots.ReadExport(dir)
	if err != nil {
		return nil, err
	}
	if err := c.checkIndex(dir, entries); err != nil {
		return nil, err
	}

	var imported []string
	for _, e := range entries {
		prefix := c.cfg.EnvPrefix(e.Env)
		if conda.HasEnv(prefix) {
			if !opts.Force {
				c.logger.Warn("environment already exists; skipping (use --force to replace)", "env", e.Env)
				continue
			}
			if err := c.remove(ctx, e.Env, prefix); err != nil {
				return imported, err
			}
		}

		if err := c.conda.CreateEnvFromFile(ctx, prefix, e.SpecFile); err != nil {
			return imported, err
		}

		md, err := snapshots.RestoreMetadata(e, prefix)
		if err != nil {
			return imported, err
		}
		if md == nil {
			if md, err = c.loadMetadata(prefix); err != nil {
				return imported, err
			}
		}

		exposure := c.exposure(md)
		if _, err := c.links.CreateLinks(prefix, exposure.Executables, opts.Force); err != nil {
			return imported, err
		}

		c.record(store.ActionImport, e.Env, md.MainPackage.Name, e.SpecFile, md.ExposedApps())
		fmt.Fprintf(c.out, "`%s` has been imported by condax\n", e.Env)
		imported = append(imported, e.Env)
	}
	return imported, nil
}

// checkIndex compares the export index of dir, when there is one, with the
// environment files actually present. An environment the index lists without
// its <env>.yml means the directory was only partly copied.
func (c *Condax) checkIndex(dir string, entries []snapshots.Entry) error {
	index, err := snapshots.LoadIndex(dir)
	if err != nil || index == nil {
		return err
	}
	if index.CondaExe != "" && filepath.Base(index.CondaExe) != filepath.Base(c.conda.Executable()) {
		c.logger.Warn("export was made with a different package manager",
			"exported_with", index.CondaExe, "using", c.conda.Executable())
	}

	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		present[e.Env] = true
	}
	var missing []string
	for _, e := range index.Envs {
		if !present[e.Name] {
			missing = append(missing, e.Name+".yml")
		}
	}
	if len(missing) > 0 {
		return userError("export directory %s is incomplete; missing %s", dir, strings.Join(missing, ", "))
	}
	return nil
}
