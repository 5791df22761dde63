package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/blackwell-systems/condax/internal/conda"
	"github.com/blackwell-systems/condax/internal/metadata"
	"github.com/blackwell-systems/condax/internal/store"
)

// UpdateOptions controls Update and UpdateAll.
type UpdateOptions struct {
	// UpdateSpecs passes the given spec to the package manager, e.g. to move
	// to "jq=1.7". Otherwise every package in the environment is updated.
	UpdateSpecs bool
}

// Update updates the environment of the package in spec and reconciles its
// wrappers: apps that appeared are linked, apps that disappeared are
// unlinked. If the package manager fails, the environment is removed and
// installed again with its recorded injections.
func (c *Condax) Update(ctx context.Context, spec string, opts UpdateOptions) error {
	name, _ := conda.SplitMatchSpec(spec)
	prefix := c.cfg.EnvPrefix(name)
	if !conda.HasEnv(prefix) {
		return userError("`%s` is not installed with condax", name)
	}

	md, err := c.loadMetadata(prefix)
	if err != nil {
		return err
	}
	before := md.ExposedApps()

	var specs []string
	if opts.UpdateSpecs {
		specs = []string{spec}
	}
	err = c.conda.UpdateEnv(ctx, prefix, c.cfg.Channels, specs)
	var exitErr *conda.ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintf(c.out, "`%s` could not be updated\n", name)
		fmt.Fprintln(c.out, "removing and recreating instead")
		c.logger.Warn("update failed; reinstalling", "env", name, "code", exitErr.Code)
		installSpec := name
		if opts.UpdateSpecs {
			installSpec = spec
		}
		return c.reinstall(ctx, md, installSpec)
	}
	if err != nil {
		return err
	}

	executables, err := c.refreshApps(md)
	if err != nil {
		return err
	}
	after := md.ExposedApps()

	added := make(map[string]bool)
	for _, app := range difference(after, before) {
		added[app] = true
	}
	if _, err := c.links.CreateLinks(prefix, filterApps(executables, added), true); err != nil {
		return err
	}
	if _, err := c.links.RemoveLinks(name, difference(before, after)); err != nil {
		return err
	}
	if err := md.Save(); err != nil {
		return err
	}

	c.record(store.ActionUpdate, name, name, spec, after)
	fmt.Fprintf(c.out, "`%s` has been updated by condax\n", name)
	return nil
}

// UpdateAll updates every environment in the prefix directory.
func (c *Condax) UpdateAll(ctx context.Context, opts UpdateOptions) error {
	envs, err := c.Envs()
	if err != nil {
		return err
	}
	for _, env := range envs {
		if err := c.Update(ctx, env, opts); err != nil {
			return fmt.Errorf("%s: %w", env, err)
		}
	}
	return nil
}

// refreshApps rediscovers the apps of every package recorded in md and
// stores them. It returns the executables of packages whose apps are
// exposed. The main package must still be discoverable.
func (c *Condax) refreshApps(md *metadata.Metadata) ([]string, error) {
	prefix := md.Prefix()

	mainExes, err := conda.DetermineExecutables(prefix, md.MainPackage.Name)
	if err != nil {
		return nil, err
	}
	md.SetApps(md.MainPackage.Name, conda.AppNames(mainExes))
	executables := mainExes

	for _, p := range md.InjectedPackages {
		exes, err := conda.DetermineExecutables(prefix, p.Name)
		if err != nil {
			c.logger.Warn("injected package no longer discoverable", "env", filepath.Base(prefix), "package", p.Name, "err", err)
		}
		md.SetApps(p.Name, conda.AppNames(exes))
		if p.IncludeApps {
			executables = append(executables, exes...)
		}
	}
	return executables, nil
}

// reinstall removes the environment of md and installs it again from spec,
// then injects the packages md recorded.
func (c *Condax) reinstall(ctx context.Context, md *metadata.Metadata, spec string) error {
	env := filepath.Base(md.Prefix())
	injected := append([]metadata.Package(nil), md.InjectedPackages...)

	if err := c.Remove(ctx, env); err != nil {
		return err
	}
	if err := c.Install(ctx, spec, InstallOptions{}); err != nil {
		return err
	}
	for _, p := range injected {
		if err := c.Inject(ctx, env, []string{p.Name}, InjectOptions{IncludeApps: p.IncludeApps}); err != nil {
			return fmt.Errorf("failed to re-inject %s: %w", p.Name, err)
		}
	}
	return nil
}
