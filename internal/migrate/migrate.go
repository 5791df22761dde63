// Package migrate moves state left by earlier condax releases into the
// current layout: the ~/.condaxrc config file and environments under
// ~/.condax.
package migrate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/blackwell-systems/condax/internal/conda"
)

const (
	legacyConfig = ".condaxrc"
	legacyEnvDir = ".condax"
)

// Options locates the legacy and current state.
type Options struct {
	// Home is the user's home directory holding the legacy files.
	Home string
	// ConfigFile is where the config file lives now.
	ConfigFile string
	// PrefixDir is where environments live now.
	PrefixDir string
	Logger    *log.Logger
}

// Result lists what FromOldVersion moved.
type Result struct {
	ConfigMoved bool
	// Envs are the environment names moved into the prefix directory.
	Envs []string
	// Skipped are legacy environments left in place because the prefix
	// directory already has one of the same name.
	Skipped []string
}

// FromOldVersion moves the legacy config file and environments. Targets that
// already exist are never overwritten. The legacy environment directory is
// deleted once it is empty. Wrappers are not touched; run a repair afterwards
// to point them at the new prefixes.
func FromOldVersion(opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	res := &Result{}

	moved, err := moveConfig(filepath.Join(opts.Home, legacyConfig), opts.ConfigFile, logger)
	if err != nil {
		return res, err
	}
	res.ConfigMoved = moved

	oldDir := filepath.Join(opts.Home, legacyEnvDir)
	entries, err := os.ReadDir(oldDir)
	if os.IsNotExist(err) {
		logger.Debug("no legacy environments", "dir", oldDir)
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("cannot read %s: %w", oldDir, err)
	}

	if err := os.MkdirAll(opts.PrefixDir, 0755); err != nil {
		return res, fmt.Errorf("cannot create prefix directory %s: %w", opts.PrefixDir, err)
	}

	for _, e := range entries {
		src := filepath.Join(oldDir, e.Name())
		if !e.IsDir() || !conda.HasEnv(src) {
			continue
		}
		dst := filepath.Join(opts.PrefixDir, e.Name())
		if _, err := os.Lstat(dst); err == nil {
			logger.Warn("environment already exists; leaving legacy copy in place", "env", e.Name(), "legacy", src)
			res.Skipped = append(res.Skipped, e.Name())
			continue
		}
		if err := os.Rename(src, dst); err != nil {
			return res, fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
		}
		logger.Info("moved environment", "env", e.Name(), "from", src, "to", dst)
		res.Envs = append(res.Envs, e.Name())
	}
	sort.Strings(res.Envs)
	sort.Strings(res.Skipped)

	if rest, err := os.ReadDir(oldDir); err == nil && len(rest) == 0 {
		if err := os.Remove(oldDir); err != nil {
			logger.Warn("cannot remove legacy directory", "dir", oldDir, "err", err)
		}
	}
	return res, nil
}

func moveConfig(src, dst string, logger *log.Logger) (bool, error) {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return false, nil
	}
	if _, err := os.Stat(dst); err == nil {
		logger.Warn("config file already exists; ignoring legacy config", "legacy", src, "config", dst)
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return false, fmt.Errorf("cannot create config directory: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return false, fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}
	logger.Info("moved config file", "from", src, "to", dst)
	return true, nil
}
