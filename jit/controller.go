package jit

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/penguin-wwy/cinder/config"
)

// InitState tracks the controller lifecycle.
type InitState int

const (
	StateUninitialized InitState = iota
	StateInitialized
	StateFinalized
)

// Options carries the controller's collaborators. Only Backend is required
// for compilation to happen; everything else has a working zero value.
type Options struct {
	// Backend performs compilation and owns the compiled-code cache.
	Backend Backend

	// List is the inclusion list. When nil and the config names a list
	// file, the controller loads one itself.
	List InclusionList

	// InlineCaches receives type-change notifications for call-site
	// caches, independently of the backend's own invalidation.
	InlineCaches InlineCacheChannel

	// Logger defaults to a nop logger.
	Logger *zap.Logger

	// RelaxHostChecks, when set, is invoked before batch workers spawn to
	// relax the host runtime's single-thread-safety assertions for the
	// cooperating worker group. The returned function restores the prior
	// state and is called unconditionally when the batch ends.
	RelaxHostChecks func() func()
}

// Controller owns every shared table of the JIT control plane: the pending
// unit registry, code-unit side contexts, profiling and deopt state, and
// the batch scheduler. The host is expected to hold its runtime-wide
// exclusivity lock around all calls; the controller's own serialization
// guard only engages while a batch compile is running.
type Controller struct {
	cfg    config.Config
	logger *zap.Logger

	state   InitState
	enabled bool

	backend      Backend
	inlineCaches InlineCacheChannel
	list         InclusionList

	relaxHostChecks func() func()

	threaded threadedContext

	// Registry tables. Every CodeUnit in pending has an entry in codeData;
	// that invariant is fatal if violated.
	pending  map[CompilationUnit]struct{}
	codeData map[CodeUnit]UnitContext

	// retained keeps every registered unit alive for the batch compile
	// test; only populated in that mode.
	retained []CompilationUnit

	// listMemo caches positive eligibility results per code object.
	// Negative results are never cached: a later-added pattern must still
	// be able to admit the code.
	listMemo map[*CodeObject]bool

	compileTimes     map[*Function]time.Duration
	totalCompileTime time.Duration
	batchTime        time.Duration

	attempted int64
	retried   int64

	typeProfiles map[*CodeObject]*codeProfile
	deoptStats   map[deoptKey]*deoptStat
}

// NewController creates an initialized controller. When the config names an
// inclusion-list file and no list is supplied, the controller parses it; a
// parse failure logs a warning and leaves compilation disabled, mirroring
// the fallback-to-interpreter contract.
func NewController(cfg config.Config, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	list := opts.List
	if list == nil && cfg.ListFile != "" {
		var err error
		if cfg.AllowListWildcards {
			wl := NewWildcardList()
			err = wl.ParseFile(cfg.ListFile)
			list = wl
		} else {
			l := NewList()
			err = l.ParseFile(cfg.ListFile)
			list = l
		}
		if err != nil {
			logger.Warn("cannot parse inclusion list, disabling compilation",
				zap.String("file", cfg.ListFile), zap.Error(err))
			list = nil
			cfg.Enabled = false
		}
	}

	return &Controller{
		cfg:             cfg,
		logger:          logger,
		state:           StateInitialized,
		enabled:         cfg.Enabled,
		backend:         opts.Backend,
		inlineCaches:    opts.InlineCaches,
		list:            list,
		relaxHostChecks: opts.RelaxHostChecks,
		pending:         make(map[CompilationUnit]struct{}),
		codeData:        make(map[CodeUnit]UnitContext),
		listMemo:        make(map[*CodeObject]bool),
		compileTimes:    make(map[*Function]time.Duration),
		typeProfiles:    make(map[*CodeObject]*codeProfile),
		deoptStats:      make(map[deoptKey]*deoptStat),
	}
}

// IsEnabled reports whether new registrations are accepted.
func (c *Controller) IsEnabled() bool {
	return c.state == StateInitialized && c.enabled
}

// Enable turns compilation back on. A no-op after Finalize.
func (c *Controller) Enable() {
	if c.state == StateInitialized {
		c.enabled = true
	}
}

// Disable turns compilation off. With flush set, every pending unit is
// compiled first: in parallel when workers are configured, else serially on
// the calling thread. A flushing drain clears the pending set and all
// code-unit contexts and records its wall-clock duration; without flush
// both tables are left as they are. The enabled flag is cleared either way.
func (c *Controller) Disable(flush bool) {
	if flush {
		start := time.Now()
		if c.cfg.BatchCompileWorkers > 0 {
			c.multithreadCompileAll(c.PendingUnits())
			c.pending = make(map[CompilationUnit]struct{})
		} else {
			units := c.pending
			c.pending = make(map[CompilationUnit]struct{})
			for u := range units {
				c.compileUnit(u)
			}
		}
		c.batchTime = time.Since(start)
		c.codeData = make(map[CodeUnit]UnitContext)
	}
	c.enabled = false
}

// Finalize tears the controller down. Profiling and deopt state is dropped,
// optionally after being logged, and further registrations or re-enables
// are refused. The backend's compiled code survives finalization; the host
// releases it unit by unit as objects die.
func (c *Controller) Finalize() {
	if c.cfg.DumpStats {
		c.logger.Info("runtime stats at finalize",
			zap.Int("profiled_codes", len(c.typeProfiles)),
			zap.Int("deopt_sites", len(c.deoptStats)),
			zap.Duration("total_compile_time", c.totalCompileTime))
	}
	c.typeProfiles = make(map[*CodeObject]*codeProfile)
	c.deoptStats = make(map[deoptKey]*deoptStat)
	if c.state != StateInitialized {
		return
	}
	c.list = nil
	c.enabled = false
	c.state = StateFinalized
}

// onList runs the eligibility policy for a code object in the given module
// context.
func (c *Controller) onList(code *CodeObject, module, qualname string) bool {
	if code.Flags&CodeSuppressJIT != 0 {
		return false
	}
	isStatic := code.Flags&CodeStaticallyCompiled != 0
	if c.list == nil || (isStatic && c.cfg.CompileAllStaticFunctions) {
		// No list configured, or static code with the blanket override.
		return true
	}
	unlock := c.lockThreaded()
	hit := c.listMemo[code]
	unlock()
	if hit {
		return true
	}
	if eligible, ok := c.list.MatchCode(code); ok && eligible {
		c.memoize(code)
		return true
	}
	if c.list.MatchName(module, qualname) {
		c.memoize(code)
		return true
	}
	return false
}

func (c *Controller) memoize(code *CodeObject) {
	unlock := c.lockThreaded()
	c.listMemo[code] = true
	unlock()
}

// RegisterFunction offers a function to the control plane. Previously
// compiled code is re-attached even when compilation is disabled, as long
// as the controller has not been finalized. Otherwise the function is
// screened by the eligibility policy and, when a list is configured, its
// constant pool is scanned for nested eligible code objects. Returns
// whether the function itself became pending.
//
// Calling this during a running batch is a fatal programming error; use
// CompileFunction for synchronous compiles from inside a batch worker.
func (c *Controller) RegisterFunction(fn *Function) bool {
	if c.backend != nil && c.state != StateFinalized &&
		c.backend.AttachExistingCode(fn) == OutcomeOk {
		return true
	}
	if !c.IsEnabled() {
		return false
	}
	if c.threaded.running.Load() {
		panic("jit: RegisterFunction called during a running batch compile")
	}

	registered := false
	if c.onList(fn.Code, fn.moduleName(), fn.QualName) {
		c.registerUnit(FunctionUnit{Fn: fn})
		registered = true
	}

	// With an active list, nested code objects may be individually
	// eligible even when the enclosing function is not.
	if c.list != nil {
		c.discoverNested(fn)
	}
	return registered
}

func (c *Controller) registerUnit(u CompilationUnit) {
	if c.cfg.MultithreadedCompileTest {
		c.retained = append(c.retained, u)
	}
	c.pending[u] = struct{}{}
}

// FunctionDestroyed removes a dying function from the registry and tells
// the backend to release its compiled code. The release notification is
// unconditional: compiled code can outlive the enabled flag.
func (c *Controller) FunctionDestroyed(fn *Function) {
	if c.IsEnabled() {
		delete(c.pending, FunctionUnit{Fn: fn})
	}
	if c.backend != nil {
		c.backend.ReleaseUnit(FunctionUnit{Fn: fn})
	}
}

// CodeDestroyed removes a dying code object from the registry, its side
// context included, and releases backend resources.
func (c *Controller) CodeDestroyed(code *CodeObject) {
	if c.IsEnabled() {
		delete(c.pending, CodeUnit{Code: code})
		delete(c.codeData, CodeUnit{Code: code})
	}
	if c.backend != nil {
		c.backend.ReleaseUnit(CodeUnit{Code: code})
	}
}

// TypeModified forwards a type mutation to both invalidation channels: the
// backend's specialized-code cache and the call-site inline caches. The two
// are populated and consumed independently, so both must hear about it.
func (c *Controller) TypeModified(t *Type) {
	if c.backend != nil {
		c.backend.InvalidateTypeSpecializations(t)
	}
	if c.inlineCaches != nil {
		c.inlineCaches.NotifyTypeChanged(t)
	}
}

// TypeDestroyed forwards type destruction to the backend.
func (c *Controller) TypeDestroyed(t *Type) {
	if c.backend != nil {
		c.backend.TypeDestroyed(t)
	}
}

// FunctionModified forwards function mutation (changed code or globals) to
// the backend.
func (c *Controller) FunctionModified(fn *Function) {
	if c.backend != nil {
		c.backend.FunctionModified(fn)
	}
}

// CompileFunction compiles one function synchronously on the calling
// thread. Safe to call from inside a batch worker; the unit is removed from
// the pending set under the serialization guard before the backend runs.
// The backend call itself stays outside the guard: Backend compile entry
// points are internally thread-safe, and the guard covers only the shared
// registry and timing tables.
func (c *Controller) CompileFunction(fn *Function) Outcome {
	if c.backend == nil {
		return OutcomeNotReady
	}
	if !c.onList(fn.Code, fn.moduleName(), fn.QualName) {
		return OutcomeDeclined
	}
	unlock := c.lockThreaded()
	delete(c.pending, FunctionUnit{Fn: fn})
	unlock()

	done := c.startTimer(fn)
	out := c.backend.CompileFunction(fn)
	done()
	return out
}

// ForceCompile compiles the function immediately if it is pending,
// reporting whether a compile was attempted.
func (c *Controller) ForceCompile(fn *Function) bool {
	if _, ok := c.pending[FunctionUnit{Fn: fn}]; !ok {
		return false
	}
	c.CompileFunction(fn)
	return true
}

// IsCompiled reports whether the function currently has native code.
func (c *Controller) IsCompiled(fn *Function) bool {
	return c.backend != nil && c.backend.IsCompiled(fn)
}

// CompiledFunctions lists every function with live native code.
func (c *Controller) CompiledFunctions() []*Function {
	if c.backend == nil {
		return nil
	}
	return c.backend.CompiledFunctions()
}

// PendingUnits returns the registered-but-uncompiled units, sorted by
// qualified name for stable operator output.
func (c *Controller) PendingUnits() []CompilationUnit {
	units := make([]CompilationUnit, 0, len(c.pending))
	for u := range c.pending {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool {
		return units[i].QualifiedName() < units[j].QualifiedName()
	})
	return units
}

// CodeSize returns the native code size in bytes for a compiled function,
// 0 when uncompiled or no backend is attached.
func (c *Controller) CodeSize(fn *Function) int {
	if c.backend == nil {
		return 0
	}
	return c.backend.CodeSize(fn)
}

// StackSize returns the native stack size in bytes for a compiled function.
func (c *Controller) StackSize(fn *Function) int {
	if c.backend == nil {
		return 0
	}
	return c.backend.StackSize(fn)
}

// SpillStackSize returns the stack bytes used for register spills.
func (c *Controller) SpillStackSize(fn *Function) int {
	if c.backend == nil {
		return 0
	}
	return c.backend.SpillStackSize(fn)
}

// startTimer begins timing one compile attempt. The returned func records
// the elapsed time into the cumulative counter and, for the first attempt
// only, the per-function table.
func (c *Controller) startTimer(fn *Function) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		unlock := c.lockThreaded()
		c.totalCompileTime += d
		if _, ok := c.compileTimes[fn]; !ok {
			c.compileTimes[fn] = d
		}
		unlock()
	}
}

// CompilationTime returns the cumulative wall-clock time spent compiling.
func (c *Controller) CompilationTime() time.Duration {
	return c.totalCompileTime
}

// FunctionCompilationTime returns the recorded compile time for one
// function.
func (c *Controller) FunctionCompilationTime(fn *Function) (time.Duration, bool) {
	d, ok := c.compileTimes[fn]
	return d, ok
}

// BatchCompilationTime returns the duration of the most recent flushing
// drain.
func (c *Controller) BatchCompilationTime() time.Duration {
	return c.batchTime
}
