package jit

import (
	"fmt"
	"testing"

	"github.com/penguin-wwy/cinder/config"
)

func TestBatchCompileDrainsAllUnits(t *testing.T) {
	cfg := config.Default()
	cfg.BatchCompileWorkers = 4
	backend := newFakeBackend()
	c := newTestController(cfg, backend, nil)

	mod := &Module{Name: "pkg"}
	fns := make([]*Function, 0, 20)
	for i := 0; i < 20; i++ {
		fn := makeFunc(mod, fmt.Sprintf("pkg.fn%02d", i))
		fns = append(fns, fn)
		c.RegisterFunction(fn)
	}

	c.Disable(true)

	for _, fn := range fns {
		if !backend.compiledFns[fn] {
			t.Errorf("%s not compiled by the batch", fn.QualName)
		}
	}
	if len(c.PendingUnits()) != 0 {
		t.Error("pending set should be empty after the batch")
	}
}

func TestBatchRetriesRunAfterAllFirstAttempts(t *testing.T) {
	cfg := config.Default()
	cfg.BatchCompileWorkers = 3
	backend := newFakeBackend()
	c := newTestController(cfg, backend, nil)

	mod := &Module{Name: "pkg"}
	retried := map[string]bool{}
	for i := 0; i < 12; i++ {
		fn := makeFunc(mod, fmt.Sprintf("pkg.fn%02d", i))
		c.RegisterFunction(fn)
		if i%3 == 0 {
			backend.retriesLeft[fn.QualName] = 1
			retried[fn.QualName] = true
		}
	}

	c.Disable(true)

	// Every unit must end up compiled, retried ones included.
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("pkg.fn%02d", i)
		compiled := false
		for fn := range backend.compiledFns {
			if fn.QualName == name {
				compiled = true
			}
		}
		if !compiled {
			t.Errorf("%s not compiled", name)
		}
	}

	// Second attempts happen strictly after every first attempt: the
	// retry pass does not start until the workers drain the queue.
	maxFirst, minSecond := 0, int(^uint(0)>>1)
	for _, a := range backend.attempts {
		switch a.n {
		case 1:
			if a.seq > maxFirst {
				maxFirst = a.seq
			}
		case 2:
			if !retried[a.name] {
				t.Errorf("%s retried but was not scripted to", a.name)
			}
			if a.seq < minSecond {
				minSecond = a.seq
			}
		default:
			t.Errorf("%s attempted %d times", a.name, a.n)
		}
	}
	if minSecond <= maxFirst {
		t.Errorf("second attempt at seq %d before last first attempt at seq %d",
			minSecond, maxFirst)
	}
}

func TestBatchWithZeroWorkersPanics(t *testing.T) {
	cfg := config.Default()
	backend := newFakeBackend()
	c := newTestController(cfg, backend, nil)

	defer func() {
		if recover() == nil {
			t.Error("batch with zero workers should panic")
		}
	}()
	c.multithreadCompileAll([]CompilationUnit{})
}

func TestBatchRelaxesAndRestoresHostChecks(t *testing.T) {
	cfg := config.Default()
	cfg.BatchCompileWorkers = 2
	backend := newFakeBackend()

	relaxed, restored := 0, 0
	c := NewController(cfg, Options{
		Backend: backend,
		RelaxHostChecks: func() func() {
			relaxed++
			return func() { restored++ }
		},
	})

	c.RegisterFunction(makeFunc(&Module{Name: "pkg"}, "pkg.foo"))
	c.Disable(true)

	if relaxed != 1 || restored != 1 {
		t.Errorf("relaxed=%d restored=%d, want 1/1", relaxed, restored)
	}
}

func TestMultithreadedCompileTest(t *testing.T) {
	cfg := config.Default()
	cfg.BatchCompileWorkers = 2
	cfg.MultithreadedCompileTest = true
	backend := newFakeBackend()
	c := newTestController(cfg, backend, nil)

	mod := &Module{Name: "pkg"}
	a := makeFunc(mod, "pkg.a")
	b := makeFunc(mod, "pkg.b")
	c.RegisterFunction(a)
	c.RegisterFunction(b)
	backend.retriesLeft["pkg.b"] = 1

	if err := c.MultithreadedCompileTest(); err != nil {
		t.Fatal(err)
	}

	if backend.cleared != 1 {
		t.Errorf("cache cleared %d times, want 1", backend.cleared)
	}
	if !backend.compiledFns[a] || !backend.compiledFns[b] {
		t.Error("both retained functions should be recompiled")
	}
	attempted, retried := c.CompileTestStats()
	if attempted != 2 {
		t.Errorf("attempted = %d, want 2", attempted)
	}
	if retried != 1 {
		t.Errorf("retried = %d, want 1", retried)
	}

	// The retained list is consumed; a second run recompiles nothing.
	if err := c.MultithreadedCompileTest(); err != nil {
		t.Fatal(err)
	}
	if got, _ := c.CompileTestStats(); got != 0 {
		t.Errorf("attempted = %d on empty rerun, want 0", got)
	}
}

func TestMultithreadedCompileTestDisabled(t *testing.T) {
	backend := newFakeBackend()
	c := newTestController(config.Default(), backend, nil)

	if err := c.MultithreadedCompileTest(); err != ErrCompileTestDisabled {
		t.Errorf("err = %v, want ErrCompileTestDisabled", err)
	}
}
