// Package config resolves condax settings into an immutable Config value.
//
// Settings are layered: built-in defaults, then the YAML config file, then
// CONDAX_* environment variables, then command-line overrides. The resulting
// Config is passed explicitly to every operation; nothing here is global.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DefaultChannels is used when neither the config file nor a condarc names any.
var DefaultChannels = []string{"conda-forge", "defaults"}

// Config holds the resolved settings for one condax invocation.
type Config struct {
	// PrefixDir holds one environment per main package.
	PrefixDir string
	// BinDir is where wrapper scripts are written. It should be on PATH.
	BinDir string
	// DataDir holds condax's own state (history database).
	DataDir string
	// Channels are passed to the package manager with --override-channels.
	Channels []string
	// CondaExe is the package manager executable; empty means "look it up".
	CondaExe string
}

// EnvPrefix returns the prefix directory of the environment named env.
func (c Config) EnvPrefix(env string) string {
	return filepath.Join(c.PrefixDir, env)
}

// HistoryDBPath returns the path of the SQLite history database.
func (c Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "condax.db")
}

// LoadOptions controls how Load resolves settings.
type LoadOptions struct {
	// ConfigFile is an explicit config file path. It must exist when set.
	ConfigFile string
	// Home overrides the user's home directory (tests).
	Home string
	// Channels override every other channel source when non-empty.
	Channels []string
}

// ErrConfigNotFound is returned when an explicitly named config file is missing.
var ErrConfigNotFound = errors.New("config file not found")

// Dir returns the condax config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/condax if XDG_CONFIG_HOME is not set.
func Dir(home string) (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		if home == "" {
			h, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			home = h
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "condax"), nil
}

// DefaultConfigFile returns the path of the config file read when no
// --config flag is given.
func DefaultConfigFile(home string) (string, error) {
	dir, err := Dir(home)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load resolves the configuration.
func Load(opts LoadOptions) (Config, error) {
	home := opts.Home
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("cannot determine home directory: %w", err)
		}
		home = h
	}

	v := viper.New()
	v.SetConfigType("yaml")

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(home, ".local", "share")
	}
	v.SetDefault("prefix_dir", filepath.Join(dataHome, "condax", "envs"))
	v.SetDefault("bin_dir", filepath.Join(home, ".local", "bin"))
	v.SetDefault("data_dir", filepath.Join(dataHome, "condax"))
	v.SetDefault("conda_exe", "")

	v.SetEnvPrefix("CONDAX")
	for _, key := range []string{"prefix_dir", "bin_dir", "data_dir", "channels", "conda_exe"} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	path := opts.ConfigFile
	explicit := path != ""
	if !explicit {
		p, err := DefaultConfigFile(home)
		if err != nil {
			return Config{}, fmt.Errorf("cannot determine config path: %w", err)
		}
		path = p
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if explicit {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}

	cfg := Config{
		PrefixDir: ExpandPath(v.GetString("prefix_dir"), home),
		BinDir:    ExpandPath(v.GetString("bin_dir"), home),
		DataDir:   ExpandPath(v.GetString("data_dir"), home),
		CondaExe:  v.GetString("conda_exe"),
		Channels:  channelList(v.GetStringSlice("channels")),
	}
	if cfg.CondaExe != "" && strings.ContainsRune(cfg.CondaExe, filepath.Separator) {
		cfg.CondaExe = ExpandPath(cfg.CondaExe, home)
	}

	switch {
	case len(opts.Channels) > 0:
		cfg.Channels = append([]string(nil), opts.Channels...)
	case len(cfg.Channels) == 0:
		channels, err := LoadCondarcChannels(home)
		if err != nil {
			return Config{}, err
		}
		cfg.Channels = channels
	}
	if len(cfg.Channels) == 0 {
		cfg.Channels = append([]string(nil), DefaultChannels...)
	}

	return cfg, nil
}

// channelList normalizes a channel list that may have arrived as a single
// comma-separated environment value.
func channelList(raw []string) []string {
	var out []string
	for _, item := range raw {
		for _, c := range strings.Split(item, ",") {
			if c = strings.TrimSpace(c); c != "" {
				out = append(out, c)
			}
		}
	}
	return out
}

// ExpandPath expands a leading ~ to home and returns a clean absolute path.
func ExpandPath(p, home string) string {
	if p == "" {
		return ""
	}
	if p == "~" {
		p = home
	} else if strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		p = filepath.Join(home, p[2:])
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
