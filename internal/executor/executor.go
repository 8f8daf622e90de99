// Package executor runs a frozen pipeline with a worker pool. It resolves
// each node's inputs from upstream outputs and constant bindings, fans map
// nodes out one invocation per list element with order preserved, honors
// the nodes' scheduling hints, and fails fast: the first error cancels the
// run and skips every transitive dependent.
package executor

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/nvolkov/anatref/internal/pipeline"
	"github.com/nvolkov/anatref/internal/registry"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrNotFrozen is returned when the pipeline was never validated.
	ErrNotFrozen = errors.New("pipeline must be frozen before execution")
	// ErrEmptyMapInput is returned when a map node receives a list with no
	// elements. Construction does not pre-validate this case; it surfaces
	// here, at the first map step that sees the empty list.
	ErrEmptyMapInput = errors.New("map step received an empty input list")
)

// Options tunes one executor instance.
type Options struct {
	// Workers is the worker-pool size and the total CPU budget shared by
	// all concurrent step invocations. Defaults to runtime.NumCPU().
	Workers int
	// WorkDir is the root under which every run creates its node output
	// directories. Required.
	WorkDir string
}

// Executor interprets frozen pipelines against a handler registry.
type Executor struct {
	pipe    *pipeline.Pipeline
	reg     *registry.Registry
	workers int
	workDir string
	cpu     *semaphore.Weighted
}

// Result is the outcome of one successful run: the values published on the
// pipeline's output node, keyed by port name.
type Result struct {
	RunID   string
	Outputs map[string]cty.Value
}

// New creates an executor for the given pipeline. The pipeline must be
// frozen and every step kind it uses must have a registered handler.
func New(pipe *pipeline.Pipeline, reg *registry.Registry, opts Options) (*Executor, error) {
	if !pipe.Frozen() {
		return nil, ErrNotFrozen
	}
	if opts.WorkDir == "" {
		return nil, errors.New("executor requires a work directory")
	}
	if err := reg.Validate(pipe); err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", pipe.Name(), err)
	}
	workers := opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Executor{
		pipe:    pipe,
		reg:     reg,
		workers: workers,
		workDir: opts.WorkDir,
		cpu:     semaphore.NewWeighted(int64(workers)),
	}, nil
}
