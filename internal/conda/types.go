package conda

import (
	"errors"
	"fmt"
)

// Manifest is the subset of a conda-meta/<name>-<version>-<build>.json record
// condax reads.
type Manifest struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Build   string   `json:"build"`
	Files   []string `json:"files"`
}

// ErrNoManifest is returned when no installed-file manifest matches a package.
var ErrNoManifest = errors.New("could not determine package files")

// ExitError reports a package manager subprocess that exited non-zero.
// Code is the exit status and should become condax's own exit status.
type ExitError struct {
	Args []string
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	verb := ""
	if len(e.Args) > 1 {
		verb = e.Args[1]
	}
	return fmt.Sprintf("package manager %s failed with exit code %d", verb, e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }
