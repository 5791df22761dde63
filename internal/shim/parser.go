package shim

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"mvdan.cc/sh/v3/shell"

	"github.com/blackwell-systems/condax/internal/conda"
)

// Errors returned by Read. None of them is fatal to a caller: each means
// "this file is not a wrapper condax can attribute to an environment".
var (
	ErrNotFound     = errors.New("wrapper does not exist")
	ErrNotRegular   = errors.New("not a regular file")
	ErrSymlink      = errors.New("symbolic link, not a condax wrapper")
	ErrNotText      = errors.New("not a text file")
	ErrNoInvocation = errors.New("no package manager run invocation found")
	ErrNameMismatch = errors.New("wrapper name does not match its executable")
)

// Read decodes the wrapper at path and returns what it runs.
//
// The executable named inside the wrapper must match the wrapper's own file
// name (ignoring extensions for .bat files); otherwise the wrapper is treated
// as foreign and ErrNameMismatch is returned.
func Read(path string) (*Target, error) {
	info, err := os.Lstat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot stat %s: %w", path, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrSymlink)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotText)
	}

	text := string(data)
	var t *Target
	if strings.EqualFold(filepath.Ext(path), Batch.Ext()) {
		t, err = parse(text, batchFields)
	} else {
		t, err = Parse(text)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	fileName := filepath.Base(path)
	if !namesMatch(fileName, t.Executable) {
		return nil, fmt.Errorf("%s runs %q: %w", path, t.Executable, ErrNameMismatch)
	}
	return t, nil
}

// Parse finds the first line of text that invokes a recognized package
// manager's "run" verb and extracts the prefix and executable from it.
// Text that starts with "@echo off" is split with cmd.exe rules, anything
// else with bash rules.
func Parse(text string) (*Target, error) {
	if isBatchText(text) {
		return parse(text, batchFields)
	}
	return parse(text, bashFields)
}

func parse(text string, split func(string) ([]string, error)) (*Target, error) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		words, err := split(line)
		if err != nil {
			continue
		}
		if t, ok := matchInvocation(words); ok {
			return t, nil
		}
	}
	return nil, ErrNoInvocation
}

// matchInvocation matches
// "<conda|mamba|micromamba> run [--prefix P | -p P] [flags...] EXE [args...]".
func matchInvocation(words []string) (*Target, bool) {
	if len(words) < 3 {
		return nil, false
	}

	exe := strings.TrimPrefix(words[0], "@")
	if !conda.IsKnownExecutable(exe) || words[1] != "run" {
		return nil, false
	}

	t := &Target{CondaExe: exe}
	args := words[2:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-p" || arg == "--prefix":
			if i+1 >= len(args) {
				return nil, false
			}
			i++
			t.Prefix = args[i]
		case strings.HasPrefix(arg, "--prefix="):
			t.Prefix = strings.TrimPrefix(arg, "--prefix=")
		case arg == "-n" || arg == "--name":
			// Named environments are not condax's; skip the value.
			i++
		case strings.HasPrefix(arg, "-"):
		default:
			t.Executable = arg
			if t.Prefix == "" {
				return nil, false
			}
			return t, true
		}
	}
	return nil, false
}

func bashFields(line string) ([]string, error) {
	return shell.Fields(line, noEnv)
}

// isBatchText reports whether the first non-blank line of text is the batch
// header.
func isBatchText(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return strings.EqualFold(line, batchHeader)
		}
	}
	return false
}

// batchFields splits line the way cmd.exe hands a command its arguments:
// words are separated by spaces or tabs, double quotes group a word and are
// dropped, and "%%" stands for a literal '%'. Dollar signs, backticks and
// backslashes have no meaning.
func batchFields(line string) ([]string, error) {
	var (
		words  []string
		word   strings.Builder
		inWord bool
		quoted bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			inWord = true
		case (r == ' ' || r == '\t') && !quoted:
			if inWord {
				words = append(words, word.String())
				word.Reset()
				inWord = false
			}
		default:
			word.WriteRune(r)
			inWord = true
		}
	}
	if quoted {
		return nil, errors.New("unterminated quote")
	}
	if inWord {
		words = append(words, word.String())
	}
	for i, w := range words {
		words[i] = strings.ReplaceAll(w, "%%", "%")
	}
	return words, nil
}

// noEnv expands every variable to the empty string so "$@" vanishes and no
// host environment leaks into decoded paths.
func noEnv(string) string { return "" }

// namesMatch compares a wrapper file name with the executable it runs.
func namesMatch(fileName, executable string) bool {
	executable = baseName(executable)
	if strings.EqualFold(filepath.Ext(fileName), Batch.Ext()) {
		return strings.EqualFold(trimExt(fileName), trimExt(executable))
	}
	return fileName == executable
}

// IsWrapper reports whether path is a condax-generated wrapper: an existing
// regular file (not a symlink), executable or a .bat file, whose text
// contains Marker near its start. It does not parse the invocation.
func IsWrapper(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	if info.Mode()&os.ModeSymlink != 0 || !info.Mode().IsRegular() {
		return false
	}
	isBatch := strings.EqualFold(filepath.Ext(path), Batch.Ext())
	if !isBatch && info.Mode().Perm()&0111 == 0 {
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, markerWindow)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false
	}
	return bytes.Contains(head[:n], []byte(Marker))
}

// markerWindow is how much of a file IsWrapper inspects. Generated wrappers
// carry Marker within their first three lines.
const markerWindow = 4096
