package jit

// Outcome is the result of one compile attempt. Failure is always an
// acceptable outcome; the host falls back to uncompiled execution.
type Outcome int

const (
	// OutcomeOk: the unit compiled and its native code is attached.
	OutcomeOk Outcome = iota

	// OutcomeDeclined: the unit was filtered out or the backend chose not
	// to specialize it. A normal no-op, not an error.
	OutcomeDeclined

	// OutcomeRetry: a transient condition prevented compilation. The batch
	// scheduler requeues the unit; never surfaced to a user.
	OutcomeRetry

	// OutcomeNotReady: the backend is not initialized. The caller treats
	// the unit as uncompiled.
	OutcomeNotReady

	// OutcomeFailed: an unexpected backend failure for this unit only.
	// Other units in the same batch proceed independently.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOk:
		return "ok"
	case OutcomeDeclined:
		return "declined"
	case OutcomeRetry:
		return "retry"
	case OutcomeNotReady:
		return "not-ready"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Backend is the compilation backend collaborator. It owns code generation,
// the compiled-code cache and per-function native metadata; the control
// plane only decides what to hand it and when. Implementations must be
// internally thread-safe for the compile entry points, which run
// concurrently across batch workers.
type Backend interface {
	// CompileFunction compiles a function unit.
	CompileFunction(fn *Function) Outcome

	// CompileCode compiles a bare code unit using the module and globals
	// recorded in its UnitContext.
	CompileCode(module *Module, globals *Globals, code *CodeObject) Outcome

	// AttachExistingCode re-attaches previously compiled native code to a
	// function, returning OutcomeOk when code was found.
	AttachExistingCode(fn *Function) Outcome

	// ReleaseUnit frees any compiled-code resources held for the unit.
	ReleaseUnit(u CompilationUnit)

	// InvalidateTypeSpecializations drops specialized code keyed by the
	// modified type.
	InvalidateTypeSpecializations(t *Type)

	// TypeDestroyed and FunctionModified propagate host lifecycle events
	// into the backend's caches.
	TypeDestroyed(t *Type)
	FunctionModified(fn *Function)

	// IsCompiled reports whether the function currently has native code.
	IsCompiled(fn *Function) bool

	// CompiledFunctions lists every function with live native code.
	CompiledFunctions() []*Function

	// Per-function native code metrics; 0 when the function is not
	// compiled.
	CodeSize(fn *Function) int
	StackSize(fn *Function) int
	SpillStackSize(fn *Function) int

	// ClearCache drops all compiled code. Used by the batch compile test
	// harness before recompiling retained units.
	ClearCache()
}

// InlineCacheChannel receives type-change notifications for call-site
// inline caches. It is independent of the backend's specialized-code
// invalidation: the two caches are populated and consumed separately.
type InlineCacheChannel interface {
	NotifyTypeChanged(t *Type)
}
