// Package output renders condax listings and history for the terminal.
//
// Rendering functions return strings. Colors are applied only when stdout
// is a TTY and NO_COLOR is unset.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"mvdan.cc/sh/v3/syntax"

	"github.com/blackwell-systems/condax/internal/core"
	"github.com/blackwell-systems/condax/internal/store"
)

var (
	packageStyle = lipgloss.NewStyle().Bold(true)
	appStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

func paint(style lipgloss.Style, text string) string {
	if IsColorEnabled() {
		return style.Render(text)
	}
	return text
}

// ListOptions controls RenderEnvList.
type ListOptions struct {
	// Short prints one "name version" line per environment.
	Short bool
	// IncludeInjected adds injected packages under each environment.
	IncludeInjected bool
	PrefixDir       string
	BinDir          string
}

// RenderEnvList renders the environments managed by condax.
func RenderEnvList(envs []core.EnvInfo, opts ListOptions) string {
	var sb strings.Builder

	if opts.Short {
		for _, e := range envs {
			fmt.Fprintf(&sb, "%s %s\n", e.Main.Name, e.Main.Version)
		}
		return sb.String()
	}

	fmt.Fprintf(&sb, "conda envs are in %s\n", opts.PrefixDir)
	fmt.Fprintf(&sb, "apps are exposed on your $PATH at %s\n", opts.BinDir)

	for _, e := range envs {
		sb.WriteString("  package ")
		sb.WriteString(paint(packageStyle, shellQuote(e.Main.Name)))
		fmt.Fprintf(&sb, " %s (%s)", e.Main.Version, e.Main.Build)
		if e.PythonVersion != "" {
			fmt.Fprintf(&sb, ", using Python %s", e.PythonVersion)
		}
		sb.WriteString("\n")

		if e.NoExecutables {
			sb.WriteString(paint(dimStyle, "    (no executables found)"))
			sb.WriteString("\n")
		}
		for _, app := range e.Main.Apps {
			fmt.Fprintf(&sb, "    - %s\n", paint(appStyle, app))
		}

		if !opts.IncludeInjected {
			continue
		}
		for _, p := range e.Injected {
			fmt.Fprintf(&sb, "    injected %s %s (%s)", shellQuote(p.Name), p.Version, p.Build)
			if p.IncludeApps {
				sb.WriteString(", apps included")
			}
			sb.WriteString("\n")
			for _, app := range p.Apps {
				if p.IncludeApps {
					fmt.Fprintf(&sb, "        - %s\n", paint(appStyle, app))
				} else {
					fmt.Fprintf(&sb, "        - %s\n", paint(dimStyle, app))
				}
			}
		}
	}
	return sb.String()
}

// RenderDuplicates renders the warning for app names exposed by more than one
// environment. It returns "" when there are none.
func RenderDuplicates(dups []string) string {
	if len(dups) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(paint(warnStyle, "[warning]"))
	sb.WriteString(" The following executables are duplicated:\n")
	for _, name := range dups {
		fmt.Fprintf(&sb, "    * %s\n", name)
	}
	return sb.String()
}

// RenderHistoryTable renders recorded operations, newest first.
func RenderHistoryTable(ops []*store.Operation, now time.Time) string {
	if len(ops) == 0 {
		return "No history recorded.\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-16s %-10s %-20s %-24s %s\n", "When", "Action", "Environment", "Package", "Apps")
	sb.WriteString(strings.Repeat("─", 84))
	sb.WriteString("\n")

	for _, op := range ops {
		pkg := op.Package
		if op.Spec != "" && op.Spec != op.Package {
			pkg = op.Spec
		}
		apps := append([]string(nil), op.Apps...)
		sort.Strings(apps)
		fmt.Fprintf(&sb, "%-16s %-10s %-20s %-24s %s\n",
			formatRelativeTime(op.CreatedAt, now),
			op.Action,
			truncate(op.Env, 20),
			truncate(pkg, 24),
			strings.Join(apps, ", "))
	}
	return sb.String()
}

// RenderExportTable renders recorded exports, newest first.
func RenderExportTable(exports []*store.Export, now time.Time) string {
	if len(exports) == 0 {
		return "No exports recorded.\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-6s %-16s %-6s %s\n", "ID", "When", "Envs", "Directory")
	sb.WriteString(strings.Repeat("─", 60))
	sb.WriteString("\n")
	for _, e := range exports {
		fmt.Fprintf(&sb, "%-6d %-16s %-6d %s\n", e.ID, formatRelativeTime(e.CreatedAt, now), e.EnvCount, e.ExportDir)
	}
	return sb.String()
}

// formatRelativeTime formats t relative to now, e.g. "3 hours ago".
func formatRelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	if now.Sub(t) < time.Minute && !t.After(now) {
		return "just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// shellQuote quotes a package name the way a shell user would type it.
func shellQuote(s string) string {
	q, err := syntax.Quote(s, syntax.LangBash)
	if err != nil {
		return s
	}
	return q
}
