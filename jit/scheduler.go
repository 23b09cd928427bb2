package jit

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Batch scheduler
// ---------------------------------------------------------------------------
// Concurrency contract: the host holds its runtime-wide exclusivity lock for
// the whole batch, excluding unrelated threads. Within the batch's
// cooperating worker group only genuinely mutating operations (queue and
// retry-list mutation, registry and timing-table writes) take the
// serialization guard below; read-only inspection of runtime metadata runs
// in parallel. Outside a batch the guard is a no-op, because the coarse
// host lock already serializes every caller.

// threadedContext is the transient scheduling state for one batch: a
// consumable unit sequence, the shared retry list, and the running flag
// that both arms the serialization guard and makes top-level registration
// fatal.
type threadedContext struct {
	mu      sync.Mutex
	running atomic.Bool

	units []CompilationUnit
	next  int
	retry []CompilationUnit
}

func (tc *threadedContext) start(units []CompilationUnit) {
	tc.units = units
	tc.next = 0
	tc.retry = nil
	tc.running.Store(true)
}

// nextUnit atomically takes one unit off the queue; ok is false once the
// queue is exhausted.
func (tc *threadedContext) nextUnit() (u CompilationUnit, ok bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.next >= len(tc.units) {
		return nil, false
	}
	u = tc.units[tc.next]
	tc.next++
	return u, true
}

// end clears the running flag and hands back the retry list.
func (tc *threadedContext) end() []CompilationUnit {
	tc.running.Store(false)
	retry := tc.retry
	tc.units = nil
	tc.retry = nil
	return retry
}

// lockThreaded acquires the serialization guard while a batch is running
// and is a no-op otherwise. Callers invoke the returned func to release.
func (c *Controller) lockThreaded() func() {
	if !c.threaded.running.Load() {
		return func() {}
	}
	c.threaded.mu.Lock()
	return c.threaded.mu.Unlock
}

// compileUnit dispatches one unit to the backend. Without a backend every
// unit is simply not ready. A pending CodeUnit without a side context means
// the registry is corrupt, which is fatal.
func (c *Controller) compileUnit(u CompilationUnit) Outcome {
	if c.backend == nil {
		return OutcomeNotReady
	}
	switch u := u.(type) {
	case FunctionUnit:
		done := c.startTimer(u.Fn)
		out := c.backend.CompileFunction(u.Fn)
		done()
		return out
	case CodeUnit:
		ctx, ok := c.codeData[u]
		if !ok {
			panic("jit: registered code unit has no context")
		}
		return c.backend.CompileCode(ctx.Module, ctx.Globals, u.Code)
	}
	panic("jit: unknown compilation unit variant")
}

func (c *Controller) compileWorker(id int) {
	c.logger.Debug("compile worker started", zap.Int("worker", id))
	for {
		u, ok := c.threaded.nextUnit()
		if !ok {
			break
		}
		unlock := c.lockThreaded()
		c.attempted++
		unlock()
		if c.compileUnit(u) == OutcomeRetry {
			unlock := c.lockThreaded()
			c.retried++
			c.threaded.retry = append(c.threaded.retry, u)
			unlock()
			c.logger.Debug("retrying compile", zap.String("unit", u.QualifiedName()))
		}
	}
	c.logger.Debug("compile worker finished", zap.Int("worker", id))
}

// multithreadCompileAll drains the given units with the configured worker
// count, then recompiles every retried unit serially on the calling
// thread. A single-threaded second attempt cannot observe the transient
// race that forced the retry, so the batch always terminates. Running this
// with zero workers is a misconfiguration, not a soft error.
func (c *Controller) multithreadCompileAll(units []CompilationUnit) {
	workers := c.cfg.BatchCompileWorkers
	if workers <= 0 {
		panic("jit: zero workers for batch compile")
	}

	// Take over locking responsibility for the cooperating worker group,
	// and hand it back no matter how the batch ends.
	restore := func() {}
	if c.relaxHostChecks != nil {
		restore = c.relaxHostChecks()
	}
	defer restore()

	c.threaded.start(units)

	var wg sync.WaitGroup
	// Spawn under the guard: some host environments intercept thread
	// creation to run callbacks that must not interleave with workers.
	unlock := c.lockThreaded()
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.compileWorker(id)
		}(i)
	}
	unlock()
	wg.Wait()

	for _, u := range c.threaded.end() {
		c.compileUnit(u)
	}
}

// ErrCompileTestDisabled is returned by MultithreadedCompileTest when the
// retention mode is off.
var ErrCompileTestDisabled = errors.New("jit: multithreaded compile test not enabled")

// MultithreadedCompileTest recompiles every unit ever registered through
// the batch path, after clearing the backend's cache. Only available in
// test-retention mode. The retained list is consumed by the run.
func (c *Controller) MultithreadedCompileTest() error {
	if !c.cfg.MultithreadedCompileTest {
		return ErrCompileTestDisabled
	}
	c.attempted = 0
	c.retried = 0
	c.logger.Info("recompiling retained units", zap.Int("count", len(c.retained)))
	if c.backend != nil {
		c.backend.ClearCache()
	}

	start := time.Now()
	c.multithreadCompileAll(c.retained)
	elapsed := time.Since(start)

	c.logger.Info("batch compile test finished",
		zap.Duration("elapsed", elapsed),
		zap.Int64("attempted", c.attempted),
		zap.Int64("retried", c.retried))
	c.retained = nil
	return nil
}

// CompileTestStats returns the attempt and retry counters of the last
// batch compile test.
func (c *Controller) CompileTestStats() (attempted, retried int64) {
	return c.attempted, c.retried
}
