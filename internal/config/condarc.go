package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// condarc is the subset of a conda/mamba rc file condax reads.
type condarc struct {
	Channels []string `yaml:"channels"`
}

// CondarcPaths lists the rc files searched for channels. Earlier paths win.
func CondarcPaths(home string) []string {
	return []string{
		filepath.Join(home, ".mambarc"),
		filepath.Join(home, ".condarc"),
	}
}

// LoadCondarcChannels returns the channels of the first rc file that names
// any. It returns nil when none does.
func LoadCondarcChannels(home string) ([]string, error) {
	for _, p := range CondarcPaths(home) {
		data, err := os.ReadFile(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}

		var rc condarc
		if err := yaml.Unmarshal(data, &rc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", p, err)
		}
		if len(rc.Channels) > 0 {
			return rc.Channels, nil
		}
	}
	return nil, nil
}
