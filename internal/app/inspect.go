package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/condax/internal/core"
	"github.com/blackwell-systems/condax/internal/output"
)

var (
	listFlagShort           bool
	listFlagIncludeInjected bool

	historyFlagLimit   int
	historyFlagExports bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List installed packages and their exposed apps",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

var historyCmd = &cobra.Command{
	Use:   "history [ENV]",
	Short: "Show recorded condax operations",
	Long: `Show the operations condax recorded, newest first, optionally only
those of one environment. With --exports, list past exports instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	listCmd.Flags().BoolVarP(&listFlagShort, "short", "s", false, "Print one 'name version' line per package")
	listCmd.Flags().BoolVar(&listFlagIncludeInjected, "include-injected", false, "Show packages injected into each environment")

	historyCmd.Flags().IntVarP(&historyFlagLimit, "limit", "l", 20, "Maximum number of entries (0 for all)")
	historyCmd.Flags().BoolVar(&historyFlagExports, "exports", false, "List past exports")

	RootCmd.AddCommand(listCmd, historyCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	envs, err := s.condax.List()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprint(out, output.RenderEnvList(envs, output.ListOptions{
		Short:           listFlagShort,
		IncludeInjected: listFlagIncludeInjected,
		PrefixDir:       s.cfg.PrefixDir,
		BinDir:          s.cfg.BinDir,
	}))
	if !listFlagShort {
		fmt.Fprint(out, output.RenderDuplicates(core.DuplicateApps(envs)))
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.history == nil {
		return fmt.Errorf("history database is unavailable at %s", s.cfg.HistoryDBPath())
	}
	out := cmd.OutOrStdout()

	if historyFlagExports {
		exports, err := s.condax.Exports()
		if err != nil {
			return err
		}
		fmt.Fprint(out, output.RenderExportTable(exports, time.Now()))
		return nil
	}

	env := ""
	if len(args) == 1 {
		env = args[0]
	}
	ops, err := s.condax.History(env, historyFlagLimit)
	if err != nil {
		return err
	}
	fmt.Fprint(out, output.RenderHistoryTable(ops, time.Now()))
	return nil
}
