package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/condax/internal/conda"
	"github.com/blackwell-systems/condax/internal/config"
	"github.com/blackwell-systems/condax/internal/core"
	"github.com/blackwell-systems/condax/internal/store"
)

var (
	configFile string
	verbose    int
	quiet      int
	channels   []string

	// RootCmd is the root command for condax
	RootCmd = &cobra.Command{
		Use:   "condax",
		Short: "Install and run command-line applications in isolated conda environments",
		Long: `condax installs each application into its own conda environment and
exposes the application's executables on your PATH through small wrapper
scripts in the bin directory.

Examples:
  # Install jq and put it on PATH
  condax install jq

  # Add ripgrep to gh's environment and expose rg too
  condax inject ripgrep -n gh --include-apps

  # Show what is installed
  condax list --include-injected

  # Rewrite every wrapper from recorded metadata
  condax repair`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// newManager builds the package manager client. Tests replace it.
var newManager = func(cfg config.Config, logger *log.Logger, stderr io.Writer) (conda.Manager, error) {
	exe, err := conda.Locate(cfg.CondaExe)
	if err != nil {
		return nil, err
	}
	logger.Debug("using package manager", "exe", exe)
	client := conda.NewClient(exe, io.Discard, stderr)
	if verbose > 0 || !isTerminal(stderr) {
		return client, nil
	}
	return spinnerManager{Manager: client, w: stderr}, nil
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ~/.config/condax/config.yaml)")
	RootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "more diagnostic output (repeatable)")
	RootCmd.PersistentFlags().CountVarP(&quiet, "quiet", "q", "less diagnostic output (repeatable)")
	RootCmd.PersistentFlags().StringArrayVarP(&channels, "channel", "c", nil, "conda channel to use; overrides config (repeatable)")

	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command. Cancelling ctx stops a running package
// manager subprocess.
func Execute(ctx context.Context) error {
	return RootCmd.ExecuteContext(ctx)
}

// session is the state one command runs with.
type session struct {
	condax  *core.Condax
	cfg     config.Config
	logger  *log.Logger
	history *store.Store
}

func (s *session) Close() {
	if s.history != nil {
		s.history.Close()
	}
}

// newSession loads the configuration and wires the package manager, the
// history database and the logger into a core.Condax. History is optional:
// when the database cannot be opened the command still runs.
func newSession(cmd *cobra.Command) (*session, error) {
	stderr := cmd.ErrOrStderr()
	logger := newLogger(stderr)

	cfg, err := config.Load(config.LoadOptions{ConfigFile: configFile, Channels: channels})
	if err != nil {
		return nil, err
	}
	logger.Debug("configuration loaded",
		"prefix_dir", cfg.PrefixDir, "bin_dir", cfg.BinDir, "channels", cfg.Channels)

	mgr, err := newManager(cfg, logger, stderr)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, logger: logger}
	s.condax = core.New(cfg, mgr, logger, stderr)

	h, err := store.Open(cfg.HistoryDBPath())
	if err != nil {
		logger.Warn("history disabled", "err", err)
	} else {
		s.history = h
		s.condax.WithHistory(h)
	}
	return s, nil
}

// newLogger returns the diagnostic logger for the -v/-q level.
func newLogger(w io.Writer) *log.Logger {
	level := log.InfoLevel
	switch {
	case verbose > 0:
		level = log.DebugLevel
	case quiet == 1:
		level = log.WarnLevel
	case quiet > 1:
		level = log.ErrorLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: "condax",
		Level:  level,
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// minArgs is cobra.MinimumNArgs with a message naming what is missing.
func minArgs(n int, what string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return fmt.Errorf("missing %s; see 'condax %s --help'", what, cmd.Name())
		}
		return nil
	}
}
