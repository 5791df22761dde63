// Package conda drives the external package manager (conda, mamba or
// micromamba) and reads the environments it creates.
//
// Every subprocess call blocks until the package manager exits. A non-zero
// exit becomes an *ExitError carrying the exit code.
package conda

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Names lists the package manager executables condax recognizes, in lookup
// order. Wrapper scripts invoking any of them are parsed as condax wrappers.
var Names = []string{"mamba", "conda", "micromamba"}

// Manager is the package manager as seen by condax.
type Manager interface {
	// Executable is the path embedded in wrapper scripts.
	Executable() string
	CreateEnv(ctx context.Context, prefix string, channels, specs []string) error
	RemoveEnv(ctx context.Context, prefix string) error
	UpdateEnv(ctx context.Context, prefix string, channels, specs []string) error
	Install(ctx context.Context, prefix string, channels, specs []string) error
	Uninstall(ctx context.Context, prefix string, names []string) error
	ExportEnv(ctx context.Context, prefix string) ([]byte, error)
	CreateEnvFromFile(ctx context.Context, prefix, file string) error
}

// Client runs a real package manager executable.
type Client struct {
	exe    string
	stdout io.Writer
	stderr io.Writer
}

// Locate resolves the package manager executable. A configured path wins;
// otherwise the first of Names found on PATH is used.
func Locate(configured string) (string, error) {
	if configured != "" {
		if strings.ContainsRune(configured, filepath.Separator) {
			if _, err := os.Stat(configured); err != nil {
				return "", fmt.Errorf("package manager %s: %w", configured, err)
			}
			return configured, nil
		}
		p, err := exec.LookPath(configured)
		if err != nil {
			return "", fmt.Errorf("package manager %q not found on PATH: %w", configured, err)
		}
		return p, nil
	}
	for _, name := range Names {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no package manager found; install one of %s or set conda_exe", strings.Join(Names, ", "))
}

// NewClient returns a Client for exe. Package manager output goes to stdout
// and stderr; pass io.Discard to silence it.
func NewClient(exe string, stdout, stderr io.Writer) *Client {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Client{exe: exe, stdout: stdout, stderr: stderr}
}

// Executable returns the package manager path.
func (c *Client) Executable() string { return c.exe }

// CreateEnv creates a new environment at prefix holding specs.
func (c *Client) CreateEnv(ctx context.Context, prefix string, channels, specs []string) error {
	return c.run(ctx, c.args("create", prefix, channels, specs...))
}

// RemoveEnv removes the environment at prefix entirely.
func (c *Client) RemoveEnv(ctx context.Context, prefix string) error {
	return c.run(ctx, []string{c.exe, "remove", "--prefix", prefix, "--all", "--quiet", "--yes"})
}

// UpdateEnv updates specs in the environment, or every package when specs is empty.
func (c *Client) UpdateEnv(ctx context.Context, prefix string, channels, specs []string) error {
	if len(specs) == 0 {
		return c.run(ctx, c.args("update", prefix, channels, "--all"))
	}
	return c.run(ctx, c.args("update", prefix, channels, specs...))
}

// Install adds specs to an existing environment.
func (c *Client) Install(ctx context.Context, prefix string, channels, specs []string) error {
	return c.run(ctx, c.args("install", prefix, channels, specs...))
}

// Uninstall removes the named packages from an existing environment.
func (c *Client) Uninstall(ctx context.Context, prefix string, names []string) error {
	argv := []string{c.exe, "uninstall", "--prefix", prefix, "--quiet", "--yes"}
	return c.run(ctx, append(argv, names...))
}

// ExportEnv returns the environment specification as YAML.
func (c *Client) ExportEnv(ctx context.Context, prefix string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.exe, "env", "export", "--prefix", prefix)
	cmd.Stderr = c.stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, exitError(cmd.Args, err)
	}
	return out, nil
}

// CreateEnvFromFile creates an environment at prefix from an exported spec file.
func (c *Client) CreateEnvFromFile(ctx context.Context, prefix, file string) error {
	verb := []string{c.exe, "env", "create"}
	if isMicromamba(c.exe) {
		verb = []string{c.exe, "create"}
	}
	argv := append(verb, "--prefix", prefix, "--file", file, "--quiet")
	if isMicromamba(c.exe) {
		argv = append(argv, "--yes")
	}
	return c.run(ctx, argv)
}

// args builds [exe, verb, --prefix, p, --override-channels, --channel c..., --quiet, --yes, rest...].
func (c *Client) args(verb, prefix string, channels []string, rest ...string) []string {
	argv := []string{c.exe, verb, "--prefix", prefix, "--override-channels"}
	for _, ch := range channels {
		argv = append(argv, "--channel", ch)
	}
	argv = append(argv, "--quiet", "--yes")
	return append(argv, rest...)
}

func (c *Client) run(ctx context.Context, argv []string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = c.stdout
	cmd.Stderr = c.stderr
	if err := cmd.Run(); err != nil {
		return exitError(argv, err)
	}
	return nil
}

func exitError(argv []string, err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Args: argv, Code: exitErr.ExitCode(), Err: err}
	}
	return fmt.Errorf("failed to run %s: %w", argv[0], err)
}

// isMicromamba reports whether exe names micromamba, which has no "env" verbs.
func isMicromamba(exe string) bool {
	return ExecutableStem(exe) == "micromamba"
}

// ExecutableStem returns the base name of exe without a Windows executable
// extension, e.g. "C:\\tools\\conda.exe" -> "conda".
func ExecutableStem(exe string) string {
	base := exe
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	lower := strings.ToLower(base)
	for _, ext := range []string{".exe", ".bat", ".cmd"} {
		if strings.HasSuffix(lower, ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return base
}

// IsKnownExecutable reports whether exe is one of the recognized package managers.
func IsKnownExecutable(exe string) bool {
	stem := ExecutableStem(exe)
	for _, n := range Names {
		if stem == n {
			return true
		}
	}
	return false
}
