package app

import (
	"errors"
	"fmt"
	"io"

	"github.com/blackwell-systems/condax/internal/conda"
	"github.com/blackwell-systems/condax/internal/core"
)

// ExitCode reports err on w and returns the process exit status for it.
// User precondition failures print their message as is; a failed package
// manager run passes its own exit status through.
func ExitCode(err error, w io.Writer) int {
	if err == nil {
		return 0
	}

	var userErr *core.Error
	if errors.As(err, &userErr) {
		fmt.Fprintln(w, userErr.Message)
		return userErr.Code
	}

	fmt.Fprintf(w, "Error: %v\n", err)
	var exitErr *conda.ExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return 1
}
