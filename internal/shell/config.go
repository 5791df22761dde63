// Package shell adds the condax bin directory to the user's shell profile.
package shell

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Marker is the comment line written above the PATH entry.
const Marker = "# condax bin directory"

// Status reports what EnsurePathEntry did.
type Status int

const (
	// OnPath means dir is already on the current PATH; nothing was written.
	OnPath Status = iota
	// NeedsRestart means the profile already has the entry but the current
	// shell has not picked it up.
	NeedsRestart
	// Added means the entry was appended to the profile.
	Added
)

// ProfilePath returns the profile file for the shell named by $SHELL.
func ProfilePath(home string) (path string, fish bool) {
	switch filepath.Base(os.Getenv("SHELL")) {
	case "zsh":
		return filepath.Join(home, ".zprofile"), false
	case "bash":
		return filepath.Join(home, ".bash_profile"), false
	case "fish":
		return filepath.Join(home, ".config", "fish", "conf.d", "condax.fish"), true
	default:
		return filepath.Join(home, ".profile"), false
	}
}

// EnsurePathEntry checks whether dir is on PATH and, if not, appends a line
// adding it to the user's shell profile. It returns the profile path when one
// was consulted.
func EnsurePathEntry(dir string) (Status, string, error) {
	for _, entry := range filepath.SplitList(os.Getenv("PATH")) {
		if filepath.Clean(entry) == filepath.Clean(dir) {
			return OnPath, "", nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return OnPath, "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	configPath, fish := ProfilePath(home)

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return OnPath, "", fmt.Errorf("cannot create config directory %s: %w", filepath.Dir(configPath), err)
	}

	line, err := pathLine(dir, fish)
	if err != nil {
		return OnPath, "", err
	}

	// An entry left behind for a different bin directory does not count.
	if existing, err := os.ReadFile(configPath); err == nil {
		if hasLine(string(existing), line) {
			return NeedsRestart, configPath, nil
		}
	}

	f, err := os.OpenFile(configPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return OnPath, "", fmt.Errorf("cannot open config file %s: %w", configPath, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "\n%s\n%s\n", Marker, line); err != nil {
		return OnPath, "", fmt.Errorf("cannot write to config file %s: %w", configPath, err)
	}
	return Added, configPath, nil
}

func pathLine(dir string, fish bool) (string, error) {
	quoted, err := syntax.Quote(dir, syntax.LangBash)
	if err != nil {
		return "", fmt.Errorf("cannot quote %s for the shell: %w", dir, err)
	}
	if fish {
		return "fish_add_path " + quoted, nil
	}
	return "export PATH=" + quoted + ":\"$PATH\"", nil
}

func hasLine(text, line string) bool {
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) == line {
			return true
		}
	}
	return false
}
