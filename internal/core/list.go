package core

import (
	"errors"
	"sort"

	"github.com/blackwell-systems/condax/internal/conda"
	"github.com/blackwell-systems/condax/internal/metadata"
)

// PackageInfo describes an installed package for listing.
type PackageInfo struct {
	Name        string
	Version     string
	Build       string
	Apps        []string
	IncludeApps bool
}

// EnvInfo describes one environment for listing.
type EnvInfo struct {
	Env           string
	Main          PackageInfo
	PythonVersion string
	// NoExecutables is set when the main package's apps cannot be discovered.
	NoExecutables bool
	Injected      []PackageInfo
}

// List describes every environment. Discovery failures are reported per
// environment, not returned.
func (c *Condax) List() ([]EnvInfo, error) {
	envs, err := c.Envs()
	if err != nil {
		return nil, err
	}

	infos := make([]EnvInfo, 0, len(envs))
	for _, env := range envs {
		prefix := c.cfg.EnvPrefix(env)
		info := EnvInfo{Env: env}

		name, version, build := conda.PackageInfo(prefix, env)
		if name == "" {
			name = env
		}
		info.Main = PackageInfo{Name: name, Version: version, Build: build, IncludeApps: true}
		_, info.PythonVersion, _ = conda.PackageInfo(prefix, "python")

		exes, err := conda.DetermineExecutables(prefix, env)
		switch {
		case errors.Is(err, conda.ErrNoManifest):
			info.NoExecutables = true
		case err != nil:
			c.logger.Warn("cannot discover executables", "env", env, "err", err)
			info.NoExecutables = true
		default:
			info.Main.Apps = conda.AppNames(exes)
			sort.Strings(info.Main.Apps)
			info.NoExecutables = len(exes) == 0
		}

		md, err := metadata.Load(prefix)
		if err != nil {
			c.logger.Warn("cannot read metadata", "env", env, "err", err)
		}
		if md != nil {
			for _, p := range md.InjectedPackages {
				_, v, b := conda.PackageInfo(prefix, p.Name)
				apps := append([]string(nil), p.Apps...)
				sort.Strings(apps)
				info.Injected = append(info.Injected, PackageInfo{
					Name:        p.Name,
					Version:     v,
					Build:       b,
					Apps:        apps,
					IncludeApps: p.IncludeApps,
				})
			}
		}

		infos = append(infos, info)
	}
	return infos, nil
}

// DuplicateApps returns app names exposed by more than one environment,
// sorted. Only one of them can own the wrapper.
func DuplicateApps(envs []EnvInfo) []string {
	counts := make(map[string]int)
	for _, e := range envs {
		seen := make(map[string]bool)
		add := func(apps []string) {
			for _, app := range apps {
				if !seen[app] {
					seen[app] = true
					counts[app]++
				}
			}
		}
		add(e.Main.Apps)
		for _, p := range e.Injected {
			if p.IncludeApps {
				add(p.Apps)
			}
		}
	}

	var dups []string
	for app, n := range counts {
		if n > 1 {
			dups = append(dups, app)
		}
	}
	sort.Strings(dups)
	return dups
}
