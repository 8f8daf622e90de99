package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/nvolkov/anatref/internal/ctxlog"
	"github.com/nvolkov/anatref/internal/pipeline"
	"github.com/zclconf/go-cty/cty"
)

type nodeState int32

const (
	statePending nodeState = iota
	stateRunning
	stateDone
	stateFailed
	stateSkipped
)

// runState is the mutable per-run bookkeeping layered over the immutable
// pipeline: node states, dependency counters, published port values, and
// the first failure.
type runState struct {
	runID  string
	dir    string
	cancel context.CancelFunc

	states map[string]*atomic.Int32
	deps   map[string]*atomic.Int32
	ready  chan *pipeline.Node
	wg     sync.WaitGroup

	mu     sync.Mutex
	values map[pipeline.PortRef]cty.Value

	failOnce sync.Once
	failErr  error
}

// Run executes the pipeline to completion and returns the output node's
// published ports. The context carries the logger and cancels the run.
func (e *Executor) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	logger := ctxlog.FromContext(ctx).With("pipeline", e.pipe.Name(), "run_id", runID)
	ctx = ctxlog.WithLogger(ctx, logger)

	runDir := filepath.Join(e.workDir, runID[:8])
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	nodes := e.pipe.Nodes()
	rs := &runState{
		runID:  runID,
		dir:    runDir,
		cancel: cancel,
		states: make(map[string]*atomic.Int32, len(nodes)),
		deps:   make(map[string]*atomic.Int32, len(nodes)),
		ready:  make(chan *pipeline.Node, len(nodes)),
		values: make(map[pipeline.PortRef]cty.Value),
	}
	for _, n := range nodes {
		rs.states[n.ID()] = new(atomic.Int32)
		counter := new(atomic.Int32)
		counter.Store(int32(len(e.pipe.Dependencies(n.ID()))))
		rs.deps[n.ID()] = counter
	}
	rs.wg.Add(len(nodes))

	logger.Info("Starting pipeline run.", "nodes", len(nodes), "workers", e.workers)

	var workerWG sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		workerWG.Add(1)
		go func(workerID int) {
			defer workerWG.Done()
			for n := range rs.ready {
				e.process(ctx, rs, n)
			}
		}(i)
	}

	for _, n := range nodes {
		if rs.deps[n.ID()].Load() == 0 {
			rs.ready <- n
		}
	}

	rs.wg.Wait()
	close(rs.ready)
	workerWG.Wait()

	if rs.failErr != nil {
		logger.Error("Pipeline run failed.", "error", rs.failErr)
		return nil, rs.failErr
	}

	out := e.pipe.OutputNode()
	outputs := make(map[string]cty.Value, len(out.Spec().Outputs))
	rs.mu.Lock()
	for _, port := range out.Spec().Outputs {
		outputs[port.Name] = rs.values[pipeline.Ref(out.ID(), port.Name)]
	}
	rs.mu.Unlock()

	logger.Info("Pipeline run finished.")
	return &Result{RunID: runID, Outputs: outputs}, nil
}

// process executes one node and unlocks its dependents. Inline dependents
// run in this same goroutine instead of being queued; everything else goes
// back to the worker pool.
func (e *Executor) process(ctx context.Context, rs *runState, n *pipeline.Node) {
	logger := ctxlog.FromContext(ctx).With("node", n.ID())
	st := rs.states[n.ID()]

	if ctx.Err() != nil {
		if st.CompareAndSwap(int32(statePending), int32(stateSkipped)) {
			logger.Debug("Node skipped, run cancelled.")
			rs.wg.Done()
			e.skipDependents(ctx, rs, n.ID())
		}
		return
	}
	if !st.CompareAndSwap(int32(statePending), int32(stateRunning)) {
		return
	}

	logger.Debug("Node execution started.", "kind", n.Spec().Kind, "map", n.IsMap())
	err := e.executeNode(ctx, rs, n)
	if err != nil {
		logger.Error("Node execution failed.", "error", err)
		st.Store(int32(stateFailed))
		rs.fail(fmt.Errorf("node %q: %w", n.ID(), err))
		rs.wg.Done()
		e.skipDependents(ctx, rs, n.ID())
		return
	}

	logger.Debug("Node execution succeeded.")
	st.Store(int32(stateDone))
	rs.wg.Done()

	for _, dep := range e.pipe.Dependents(n.ID()) {
		if rs.deps[dep].Add(-1) != 0 {
			continue
		}
		next, _ := e.pipe.Node(dep)
		if next.Hints().Inline {
			logger.Debug("Running inline dependent without scheduling.", "dependent", dep)
			e.process(ctx, rs, next)
		} else {
			rs.ready <- next
		}
	}
}

// skipDependents transitively marks every dependent of the failed or
// skipped node as skipped.
func (e *Executor) skipDependents(ctx context.Context, rs *runState, id string) {
	logger := ctxlog.FromContext(ctx)
	for _, dep := range e.pipe.Dependents(id) {
		if rs.states[dep].CompareAndSwap(int32(statePending), int32(stateSkipped)) {
			logger.Debug("Skipping dependent node.", "node", dep)
			rs.wg.Done()
			e.skipDependents(ctx, rs, dep)
		}
	}
}

// fail records the first failure and cancels the run.
func (rs *runState) fail(err error) {
	rs.failOnce.Do(func() {
		rs.failErr = err
		rs.cancel()
	})
}
