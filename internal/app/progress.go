package app

import (
	"context"
	"io"
	"path/filepath"

	"github.com/blackwell-systems/condax/internal/conda"
	"github.com/blackwell-systems/condax/internal/output"
)

// spinnerManager shows a spinner while each package manager call runs.
type spinnerManager struct {
	conda.Manager
	w io.Writer
}

func (m spinnerManager) spin(message string) func() {
	s := output.NewSpinner(message)
	s.SetWriter(m.w)
	s.Start()
	return s.Stop
}

func (m spinnerManager) CreateEnv(ctx context.Context, prefix string, channels, specs []string) error {
	defer m.spin("Creating environment " + filepath.Base(prefix))()
	return m.Manager.CreateEnv(ctx, prefix, channels, specs)
}

func (m spinnerManager) RemoveEnv(ctx context.Context, prefix string) error {
	defer m.spin("Removing environment " + filepath.Base(prefix))()
	return m.Manager.RemoveEnv(ctx, prefix)
}

func (m spinnerManager) UpdateEnv(ctx context.Context, prefix string, channels, specs []string) error {
	defer m.spin("Updating environment " + filepath.Base(prefix))()
	return m.Manager.UpdateEnv(ctx, prefix, channels, specs)
}

func (m spinnerManager) Install(ctx context.Context, prefix string, channels, specs []string) error {
	defer m.spin("Installing into " + filepath.Base(prefix))()
	return m.Manager.Install(ctx, prefix, channels, specs)
}

func (m spinnerManager) Uninstall(ctx context.Context, prefix string, names []string) error {
	defer m.spin("Uninstalling from " + filepath.Base(prefix))()
	return m.Manager.Uninstall(ctx, prefix, names)
}

func (m spinnerManager) CreateEnvFromFile(ctx context.Context, prefix, file string) error {
	defer m.spin("Creating environment " + filepath.Base(prefix))()
	return m.Manager.CreateEnvFromFile(ctx, prefix, file)
}
