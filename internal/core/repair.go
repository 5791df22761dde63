package core

import (
	"context"
	"fmt"

	"github.com/blackwell-systems/condax/internal/links"
	"github.com/blackwell-systems/condax/internal/store"
)

// RepairResult summarizes a Repair run.
type RepairResult struct {
	Envs    int
	Pruned  []string
	Written int
}

// Repair makes the bin directory match the metadata of every environment.
// Missing metadata is rebuilt from discovery of the main package; malformed
// metadata aborts the repair. Stale wrappers and dangling symlinks are
// pruned, then every exposed app's wrapper is rewritten.
func (c *Condax) Repair(ctx context.Context) (*RepairResult, error) {
	envs, err := c.Envs()
	if err != nil {
		return nil, err
	}

	exposures := make([]links.Exposure, 0, len(envs))
	for _, env := range envs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		md, err := c.loadMetadata(c.cfg.EnvPrefix(env))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", env, err)
		}
		exposures = append(exposures, c.exposure(md))
	}

	pruned, err := c.links.Prune(exposures)
	if err != nil {
		return nil, err
	}
	written, err := c.links.RecreateAll(exposures)
	if err != nil {
		return nil, err
	}

	for _, e := range exposures {
		c.record(store.ActionRepair, e.EnvName(), e.EnvName(), "", nil)
	}
	if len(pruned) > 0 {
		fmt.Fprintln(c.out, "Pruned the following stale links:")
		for _, name := range pruned {
			fmt.Fprintf(c.out, "    %s\n", name)
		}
	}
	fmt.Fprintf(c.out, "Repaired links of %d environment(s)\n", len(exposures))
	return &RepairResult{Envs: len(exposures), Pruned: pruned, Written: written}, nil
}
