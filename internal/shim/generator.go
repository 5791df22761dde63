// Package shim writes and reads the wrapper scripts condax places in the bin
// directory.
//
// Architecture:
//   - One wrapper per exposed app, named after the app (".bat" on Windows).
//   - The wrapper runs "<conda> run --prefix <env> --no-capture-output <app>"
//     and forwards all arguments.
//   - A marker comment identifies files condax generated; the prefix and app
//     name are recovered later by splitting the invocation line with the
//     word rules of the dialect it was written in (bash or cmd.exe).
//   - Wrappers are written to a temp file and renamed into place, so a
//     half-written script is never visible on PATH.
package shim

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/blackwell-systems/condax/internal/fsutil"
)

// Marker is the text every generated wrapper contains.
const Marker = "created by condax"

// Style selects the wrapper script dialect.
type Style int

const (
	// Posix wrappers are bash scripts with no extension.
	Posix Style = iota
	// Batch wrappers are Windows .bat files.
	Batch
)

// DefaultStyle returns the wrapper dialect for the running platform.
func DefaultStyle() Style {
	if runtime.GOOS == "windows" {
		return Batch
	}
	return Posix
}

// Ext returns the wrapper file extension.
func (s Style) Ext() string {
	if s == Batch {
		return ".bat"
	}
	return ""
}

// Name returns the wrapper file name for an executable or app name.
// Batch wrappers drop the executable's own extension: rg.exe -> rg.bat.
func (s Style) Name(executable string) string {
	base := baseName(executable)
	if s == Batch {
		return trimExt(base) + s.Ext()
	}
	return base
}

// Path returns the wrapper path for an executable inside binDir.
func (s Style) Path(binDir, executable string) string {
	return filepath.Join(binDir, s.Name(executable))
}

// Target is what a wrapper runs: an executable name inside an environment.
type Target struct {
	// CondaExe is the package manager the wrapper invokes.
	CondaExe string
	// Prefix is the environment prefix directory.
	Prefix string
	// Executable is the bare executable name, e.g. "rg" or "rg.exe".
	Executable string
}

// EnvName returns the environment name, the last element of Prefix. Both
// slash styles are accepted so Windows prefixes decode on any platform.
func (t Target) EnvName() string {
	return baseName(strings.TrimRight(t.Prefix, `/\`))
}

// Encode renders the wrapper script for t.
func Encode(s Style, t Target) (string, error) {
	if t.CondaExe == "" || t.Prefix == "" || t.Executable == "" {
		return "", fmt.Errorf("incomplete wrapper target %+v", t)
	}
	name := baseName(t.Executable)

	if s == Batch {
		words := make([]string, 0, 3)
		for _, w := range []string{t.CondaExe, t.Prefix, name} {
			q, err := batchQuote(w)
			if err != nil {
				return "", err
			}
			words = append(words, q)
		}
		lines := []string{
			batchHeader,
			"REM Entrypoint " + Marker,
			fmt.Sprintf("%s run --prefix %s --no-capture-output %s %%*", words[0], words[1], words[2]),
		}
		return strings.Join(lines, "\r\n") + "\r\n", nil
	}

	exe, err := syntax.Quote(t.CondaExe, syntax.LangBash)
	if err != nil {
		return "", fmt.Errorf("cannot quote %q: %w", t.CondaExe, err)
	}
	prefix, err := syntax.Quote(t.Prefix, syntax.LangBash)
	if err != nil {
		return "", fmt.Errorf("cannot quote %q: %w", t.Prefix, err)
	}
	quotedName, err := syntax.Quote(name, syntax.LangBash)
	if err != nil {
		return "", fmt.Errorf("cannot quote %q: %w", name, err)
	}

	lines := []string{
		"#!/usr/bin/env bash",
		"",
		"# Entrypoint " + Marker,
		fmt.Sprintf(`%s run --prefix %s --no-capture-output %s "$@"`, exe, prefix, quotedName),
	}
	return strings.Join(lines, "\n") + "\n", nil
}

// Write atomically writes the wrapper for t to path with permission bits perm,
// replacing anything already there.
func Write(s Style, path string, t Target, perm os.FileMode) error {
	content, err := Encode(s, t)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, []byte(content), perm)
}

// batchHeader is the first line of every batch wrapper. Parse uses it to pick
// cmd.exe word splitting over bash.
const batchHeader = "@echo off"

// batchQuote wraps s in double quotes for cmd.exe and doubles every '%' so
// the text is not taken for a variable reference. Quotes and line breaks
// cannot be expressed inside a cmd.exe word.
func batchQuote(s string) (string, error) {
	if strings.ContainsAny(s, "\"\r\n") {
		return "", fmt.Errorf("cannot quote %q for a batch file", s)
	}
	return `"` + strings.ReplaceAll(s, "%", "%%") + `"`, nil
}

// baseName returns the last element of p, treating both / and \ as separators.
func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}

// trimExt strips the final extension of name, if any.
func trimExt(name string) string {
	if ext := filepath.Ext(name); ext != "" && ext != name {
		return name[:len(name)-len(ext)]
	}
	return name
}
