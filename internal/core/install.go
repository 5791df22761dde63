package core

import (
	"context"
	"fmt"
	"os"

	"github.com/blackwell-systems/condax/internal/conda"
	"github.com/blackwell-systems/condax/internal/metadata"
	"github.com/blackwell-systems/condax/internal/store"
)

// InstallOptions controls Install.
type InstallOptions struct {
	// Force recreates an existing environment and overwrites existing files
	// in the bin directory.
	Force bool
}

// Install creates a new environment for the package in spec and exposes its
// apps. spec is a package name with an optional version constraint, e.g.
// "jq" or "jq=1.6".
func (c *Condax) Install(ctx context.Context, spec string, opts InstallOptions) error {
	name, _ := conda.SplitMatchSpec(spec)
	if name == "" {
		return userError("invalid package specification %q", spec)
	}
	prefix := c.cfg.EnvPrefix(name)

	if conda.HasEnv(prefix) {
		if !opts.Force {
			return userError("`%s` is already installed. Run `condax update %s` to update.", name, name)
		}
		c.logger.Info("recreating existing environment", "env", name)
		if err := c.remove(ctx, name, prefix); err != nil {
			return err
		}
	}

	c.logger.Debug("creating environment", "env", name, "spec", spec, "channels", c.cfg.Channels)
	if err := c.conda.CreateEnv(ctx, prefix, c.cfg.Channels, []string{spec}); err != nil {
		return err
	}

	exes, err := conda.DetermineExecutables(prefix, name)
	if err != nil {
		return err
	}
	md := metadata.Create(prefix, name, conda.AppNames(exes))
	if err := md.Save(); err != nil {
		return err
	}
	if _, err := c.links.CreateLinks(prefix, exes, opts.Force); err != nil {
		return err
	}

	c.record(store.ActionInstall, name, name, spec, md.MainPackage.Apps)
	fmt.Fprintf(c.out, "`%s` has been installed by condax\n", name)
	c.warnIfNotOnPath()
	return nil
}

// Remove unlinks the apps of the environment of name and deletes it.
func (c *Condax) Remove(ctx context.Context, name string) error {
	prefix := c.cfg.EnvPrefix(name)
	if !conda.HasEnv(prefix) {
		return userError("`%s` is not installed with condax", name)
	}
	if err := c.remove(ctx, name, prefix); err != nil {
		return err
	}
	c.record(store.ActionRemove, name, name, "", nil)
	fmt.Fprintf(c.out, "`%s` has been removed from condax\n", name)
	return nil
}

// remove unlinks every app the environment may own, then deletes it.
func (c *Condax) remove(ctx context.Context, env, prefix string) error {
	apps := c.ownedApps(env, prefix)
	if _, err := c.links.RemoveLinks(env, apps); err != nil {
		return err
	}
	if err := c.conda.RemoveEnv(ctx, prefix); err != nil {
		return err
	}
	// The package manager can leave an empty prefix behind.
	if err := os.RemoveAll(prefix); err != nil {
		return fmt.Errorf("failed to delete %s: %w", prefix, err)
	}
	return nil
}

// ownedApps returns every app name the environment could have linked: the
// exposure recorded in metadata plus what discovery finds for the main
// package. Unreadable metadata does not block removal.
func (c *Condax) ownedApps(env, prefix string) []string {
	set := make(map[string]bool)

	md, err := metadata.Load(prefix)
	if err != nil {
		c.logger.Warn("ignoring unreadable metadata during removal", "env", env, "err", err)
	}
	if md != nil {
		for _, app := range md.ExposedApps() {
			set[app] = true
		}
	}

	exes, err := conda.DetermineExecutables(prefix, env)
	if err != nil {
		c.logger.Debug("no executables discovered for main package", "env", env, "err", err)
	}
	for _, app := range conda.AppNames(exes) {
		set[app] = true
	}

	apps := make([]string, 0, len(set))
	for app := range set {
		apps = append(apps, app)
	}
	return apps
}
