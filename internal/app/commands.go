package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/condax/internal/core"
)

var (
	installFlagForce bool

	updateFlagAll         bool
	updateFlagUpdateSpecs bool

	injectFlagEnv         string
	injectFlagIncludeApps bool
	injectFlagForce       bool

	uninjectFlagEnv string
)

var installCmd = &cobra.Command{
	Use:   "install [flags] PACKAGE...",
	Short: "Install packages, each into its own environment",
	Long: `Install each package into a new conda environment named after it and
create wrappers in the bin directory for the executables it provides.

A package may carry a version constraint, e.g. jq=1.6 or "numpy>=1.22".

Examples:
  condax install jq
  condax install -c conda-forge gh ripgrep
  condax install --force jq=1.7`,
	Args: minArgs(1, "package name"),
	RunE: runInstall,
}

var removeCmd = &cobra.Command{
	Use:     "remove PACKAGE...",
	Aliases: []string{"uninstall"},
	Short:   "Remove packages and their environments",
	Long: `Remove the environment of each package and the wrappers it owns.
Wrappers that now point at another environment are left alone.`,
	Args: minArgs(1, "package name"),
	RunE: runRemove,
}

var updateCmd = &cobra.Command{
	Use:   "update [flags] [PACKAGE...]",
	Short: "Update packages and refresh their wrappers",
	Long: `Update the environment of each package. Wrappers are created for
executables that appeared and removed for those that disappeared.

If the package manager fails, the environment is removed and recreated with
its injected packages.

Examples:
  condax update jq
  condax update --all
  condax update --update-specs "jq=1.7"`,
	RunE: runUpdate,
}

var injectCmd = &cobra.Command{
	Use:   "inject [flags] PACKAGE... -n ENV",
	Short: "Inject packages into an existing environment",
	Long: `Install packages into the environment of an installed package.
With --include-apps their executables are exposed as well.

Examples:
  condax inject numpy -n ipython
  condax inject ripgrep xsv -n gh --include-apps`,
	Args: minArgs(1, "package name"),
	RunE: runInject,
}

var uninjectCmd = &cobra.Command{
	Use:   "uninject PACKAGE... -n ENV",
	Short: "Uninject packages from an environment",
	Args:  minArgs(1, "package name"),
	RunE:  runUninject,
}

func init() {
	installCmd.Flags().BoolVarP(&installFlagForce, "force", "f", false, "Recreate an existing environment and overwrite existing files in the bin directory")

	updateCmd.Flags().BoolVar(&updateFlagAll, "all", false, "Update every environment")
	updateCmd.Flags().BoolVar(&updateFlagUpdateSpecs, "update-specs", false, "Pass the version constraints to the package manager")

	injectCmd.Flags().StringVarP(&injectFlagEnv, "name", "n", "", "Environment to inject into")
	injectCmd.Flags().BoolVar(&injectFlagIncludeApps, "include-apps", false, "Expose the executables of the injected packages")
	injectCmd.Flags().BoolVarP(&injectFlagForce, "force", "f", false, "Overwrite existing files in the bin directory")
	_ = injectCmd.MarkFlagRequired("name")

	uninjectCmd.Flags().StringVarP(&uninjectFlagEnv, "name", "n", "", "Environment to uninject from")
	_ = uninjectCmd.MarkFlagRequired("name")

	RootCmd.AddCommand(installCmd, removeCmd, updateCmd, injectCmd, uninjectCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	for _, spec := range args {
		if err := s.condax.Install(cmd.Context(), spec, core.InstallOptions{Force: installFlagForce}); err != nil {
			return err
		}
	}
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	for _, name := range args {
		if err := s.condax.Remove(cmd.Context(), name); err != nil {
			return err
		}
	}
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	if updateFlagAll && len(args) > 0 {
		return fmt.Errorf("--all cannot be combined with package names")
	}
	if !updateFlagAll && len(args) == 0 {
		return fmt.Errorf("missing package name; use --all to update every environment")
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := core.UpdateOptions{UpdateSpecs: updateFlagUpdateSpecs}
	if updateFlagAll {
		return s.condax.UpdateAll(cmd.Context(), opts)
	}
	for _, spec := range args {
		if err := s.condax.Update(cmd.Context(), spec, opts); err != nil {
			return err
		}
	}
	return nil
}

func runInject(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := core.InjectOptions{IncludeApps: injectFlagIncludeApps, Force: injectFlagForce}
	return s.condax.Inject(cmd.Context(), injectFlagEnv, args, opts)
}

func runUninject(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	return s.condax.Uninject(cmd.Context(), uninjectFlagEnv, args)
}
