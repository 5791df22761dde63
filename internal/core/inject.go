package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/blackwell-systems/condax/internal/conda"
	"github.com/blackwell-systems/condax/internal/store"
)

// InjectOptions controls Inject.
type InjectOptions struct {
	// IncludeApps exposes the injected packages' apps.
	IncludeApps bool
	// Force overwrites existing files in the bin directory.
	Force bool
}

// Inject installs specs into the existing environment env and records them
// as injected packages. Injecting a package again replaces its record.
func (c *Condax) Inject(ctx context.Context, env string, specs []string, opts InjectOptions) error {
	if len(specs) == 0 {
		return userError("no packages to inject")
	}
	prefix := c.cfg.EnvPrefix(env)
	if !conda.HasEnv(prefix) {
		return userError("`%s` does not exist; Abort injecting `%s`...", env, strings.Join(specs, " "))
	}

	md, err := c.loadMetadata(prefix)
	if err != nil {
		return err
	}

	if err := c.conda.Install(ctx, prefix, c.cfg.Channels, specs); err != nil {
		return err
	}

	before := md.ExposedApps()
	for _, spec := range specs {
		name, _ := conda.SplitMatchSpec(spec)
		exes, err := conda.DetermineExecutables(prefix, name)
		if err != nil {
			c.logger.Warn("no executables found for injected package", "env", env, "package", name, "err", err)
		}
		if opts.IncludeApps && len(exes) > 0 {
			if _, err := c.links.CreateLinks(prefix, exes, opts.Force); err != nil {
				return err
			}
		}

		apps := conda.AppNames(exes)
		md.Inject(name, apps, opts.IncludeApps)
		c.record(store.ActionInject, env, name, spec, apps)
		fmt.Fprintf(c.out, "`%s` has been injected to `%s`\n", name, env)
	}

	// Re-injecting without --include-apps withdraws apps exposed earlier.
	if _, err := c.links.RemoveLinks(env, difference(before, md.ExposedApps())); err != nil {
		return err
	}
	return md.Save()
}

// Uninject uninstalls the named packages from env and removes the wrappers
// only they exposed. A name counts as injected when it is recorded in the
// metadata or installed in the environment; if none of names is, nothing is
// changed and a user error is returned.
func (c *Condax) Uninject(ctx context.Context, env string, names []string) error {
	if len(names) == 0 {
		return userError("no packages to uninject")
	}
	prefix := c.cfg.EnvPrefix(env)
	if !conda.HasEnv(prefix) {
		return userError("`%s` does not exist; Abort uninjecting `%s`...", env, strings.Join(names, " "))
	}

	md, err := c.loadMetadata(prefix)
	if err != nil {
		return err
	}

	var present []string
	var linked []string
	for _, name := range names {
		if name == md.MainPackage.Name {
			return userError("`%s` is the main package of `%s`; use `condax remove %s`", name, env, env)
		}
		p, recorded := md.Injected(name)
		installed, _, _ := conda.PackageInfo(prefix, name)
		if !recorded && installed == "" {
			c.logger.Warn("package is not injected", "env", env, "package", name)
			continue
		}
		if recorded && p.IncludeApps {
			linked = append(linked, p.Apps...)
		}
		present = append(present, name)
	}
	if len(present) == 0 {
		return userError("`%s` is not injected to `%s`", strings.Join(names, " "), env)
	}

	for _, name := range present {
		md.Uninject(name)
	}
	// Apps still exposed by the main or another injected package stay linked.
	toUnlink := difference(linked, md.ExposedApps())

	if err := c.conda.Uninstall(ctx, prefix, present); err != nil {
		return err
	}
	if _, err := c.links.RemoveLinks(env, toUnlink); err != nil {
		return err
	}
	if err := md.Save(); err != nil {
		return err
	}

	for _, name := range present {
		c.record(store.ActionUninject, env, name, "", nil)
		fmt.Fprintf(c.out, "`%s` has been uninjected from `%s`\n", name, env)
	}
	return nil
}
