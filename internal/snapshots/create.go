package snapshots

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/condax/internal/conda"
	"github.com/blackwell-systems/condax/internal/metadata"
	"github.com/blackwell-systems/condax/internal/store"
)

// Export writes every environment in prefixes to dir: <env>.yml from the
// package manager and <env>.json from condax metadata when present. An
// index file summarizes the export, which is also recorded in history.
func (m *Manager) Export(ctx context.Context, prefixes []string, dir string) (*Index, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	index := &Index{
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		CondaExe:  m.conda.Executable(),
	}

	for _, prefix := range prefixes {
		env := filepath.Base(prefix)

		spec, err := m.conda.ExportEnv(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", env, err)
		}
		if err := os.WriteFile(filepath.Join(dir, env+".yml"), spec, 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s.yml: %w", env, err)
		}

		entry := IndexEnv{Name: env, MainPackage: env}

		md, err := metadata.Load(prefix)
		if err != nil {
			return nil, err
		}
		if md != nil {
			data, err := md.Encode()
			if err != nil {
				return nil, fmt.Errorf("failed to encode metadata of %s: %w", env, err)
			}
			if err := os.WriteFile(filepath.Join(dir, env+".json"), data, 0644); err != nil {
				return nil, fmt.Errorf("failed to write %s.json: %w", env, err)
			}
			entry.MainPackage = md.MainPackage.Name
			entry.Injected = md.InjectedNames()
		}
		_, entry.Version, _ = conda.PackageInfo(prefix, entry.MainPackage)

		index.Envs = append(index.Envs, entry)
	}

	data, err := yaml.Marshal(index)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, IndexFile), data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write export index: %w", err)
	}

	if m.store != nil {
		envs := make([]*store.ExportEnv, 0, len(index.Envs))
		for _, e := range index.Envs {
			envs = append(envs, &store.ExportEnv{Env: e.Name, MainPackage: e.MainPackage, Version: e.Version})
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			abs = dir
		}
		if _, err := m.store.InsertExport(abs, envs); err != nil {
			return nil, fmt.Errorf("failed to record export: %w", err)
		}
	}

	return index, nil
}

// ListExports returns recorded export runs, newest first.
func (m *Manager) ListExports() ([]*store.Export, error) {
	if m.store == nil {
		return nil, nil
	}
	exports, err := m.store.ListExports()
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	return exports, nil
}
