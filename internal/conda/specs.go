package conda

import (
	"regexp"
	"strings"
)

var specOperator = regexp.MustCompile(`<=|>=|==|!=|<|>|=`)

// SplitMatchSpec splits a package match specification into the package name
// and the version constraint that follows it.
//
//	"numpy=1.11"    -> ("numpy", "=1.11")
//	"numpy>=1.8,<2" -> ("numpy", ">=1.8,<2")
//	"numpy"         -> ("numpy", "")
func SplitMatchSpec(spec string) (string, string) {
	loc := specOperator.FindStringIndex(spec)
	if loc == nil {
		return strings.TrimSpace(spec), ""
	}
	return strings.TrimSpace(spec[:loc[0]]), strings.TrimSpace(spec[loc[0]:])
}
