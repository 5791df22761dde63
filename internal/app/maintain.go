package app

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/condax/internal/config"
	"github.com/blackwell-systems/condax/internal/core"
	"github.com/blackwell-systems/condax/internal/migrate"
	"github.com/blackwell-systems/condax/internal/shell"
)

var (
	repairFlagMigrate bool

	exportFlagDir string

	importFlagForce bool
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Rewrite wrappers from recorded metadata",
	Long: `Make the bin directory match what each environment should expose.
Stale wrappers and dangling symlinks are removed and every exposed app's
wrapper is written again. Missing metadata is rebuilt from the main package.

With --migrate, the config file and environments of older condax releases
(~/.condaxrc and ~/.condax) are moved to their current locations first.`,
	Args: cobra.NoArgs,
	RunE: runRepair,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every environment to a directory",
	Long: `Write <env>.yml (the package manager's environment export) and
<env>.json (condax metadata) for every environment, plus an index file.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import DIR",
	Short: "Recreate environments from an export directory",
	Long: `Recreate each exported environment, restore its metadata and expose its
apps. Environments that already exist are skipped unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var ensurePathCmd = &cobra.Command{
	Use:   "ensure-path",
	Short: "Add the bin directory to PATH in your shell profile",
	Args:  cobra.NoArgs,
	RunE:  runEnsurePath,
}

func init() {
	repairCmd.Flags().BoolVar(&repairFlagMigrate, "migrate", false, "Migrate from an older condax layout first")

	exportCmd.Flags().StringVar(&exportFlagDir, "dir", "condax_exported", "Directory to export to")

	importCmd.Flags().BoolVarP(&importFlagForce, "force", "f", false, "Replace existing environments and overwrite existing files in the bin directory")

	RootCmd.AddCommand(repairCmd, exportCmd, importCmd, ensurePathCmd)
}

func runRepair(cmd *cobra.Command, args []string) error {
	if repairFlagMigrate {
		if err := runMigrate(cmd); err != nil {
			return err
		}
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	_, err = s.condax.Repair(cmd.Context())
	return err
}

// runMigrate runs before the session exists so that a migrated config file
// is the one the session loads.
func runMigrate(cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr())
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}

	target := configFile
	if target == "" {
		if target, err = config.DefaultConfigFile(home); err != nil {
			return err
		}
	}
	// The target config file may not exist until the legacy one is moved.
	cfg, err := config.Load(config.LoadOptions{ConfigFile: configFile, Home: home, Channels: channels})
	if errors.Is(err, config.ErrConfigNotFound) {
		cfg, err = config.Load(config.LoadOptions{Home: home, Channels: channels})
	}
	if err != nil {
		return err
	}

	res, err := migrate.FromOldVersion(migrate.Options{
		Home:       home,
		ConfigFile: target,
		PrefixDir:  cfg.PrefixDir,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	if res.ConfigMoved {
		fmt.Fprintf(cmd.ErrOrStderr(), "Moved ~/.condaxrc to %s\n", target)
	}
	if len(res.Envs) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Moved %d environment(s) to %s\n", len(res.Envs), cfg.PrefixDir)
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	_, err = s.condax.Export(cmd.Context(), exportFlagDir)
	return err
}

func runImport(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	_, err = s.condax.Import(cmd.Context(), args[0], core.ImportOptions{Force: importFlagForce})
	return err
}

func runEnsurePath(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: configFile})
	if err != nil {
		return err
	}

	status, profile, err := shell.EnsurePathEntry(cfg.BinDir)
	if err != nil {
		return err
	}
	out := cmd.ErrOrStderr()
	switch status {
	case shell.OnPath:
		fmt.Fprintf(out, "%s has already been added to PATH.\n", cfg.BinDir)
	case shell.NeedsRestart:
		fmt.Fprintf(out, "%s has already been added to PATH in %s.\n", cfg.BinDir, profile)
		fmt.Fprintln(out, "You likely need to open a new terminal or re-login for changes to your $PATH to take effect.")
	case shell.Added:
		fmt.Fprintf(out, "Success! Added %s to the PATH environment variable in %s.\n", cfg.BinDir, profile)
		fmt.Fprintln(out, "You likely need to open a new terminal or re-login for changes to your $PATH to take effect.")
	}
	return nil
}
