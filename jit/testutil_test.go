package jit

import (
	"sync"
)

// fakeBackend is a scriptable Backend for tests. Outcomes are keyed by
// qualified name; retriesLeft makes a unit fail with OutcomeRetry that many
// times before compiling. Every compile attempt is recorded with a global
// sequence number so tests can assert ordering across workers.
type fakeBackend struct {
	mu sync.Mutex

	retriesLeft map[string]int
	declined    map[string]bool
	failed      map[string]bool

	compiledFns   map[*Function]bool
	compiledCodes map[*CodeObject]bool
	attachable    map[*Function]bool

	released    []CompilationUnit
	invalidated []*Type
	destroyed   []*Type
	modified    []*Function

	seq      int
	attempts []attempt
	cleared  int

	codeSizes map[*Function]int
}

type attempt struct {
	name string
	n    int // 1 for the first attempt, 2 for a retry's second attempt
	seq  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		retriesLeft:   make(map[string]int),
		declined:      make(map[string]bool),
		failed:        make(map[string]bool),
		compiledFns:   make(map[*Function]bool),
		compiledCodes: make(map[*CodeObject]bool),
		attachable:    make(map[*Function]bool),
		codeSizes:     make(map[*Function]int),
	}
}

func (b *fakeBackend) record(name string) (int, Outcome) {
	b.seq++
	n := 1
	for i := len(b.attempts) - 1; i >= 0; i-- {
		if b.attempts[i].name == name {
			n = b.attempts[i].n + 1
			break
		}
	}
	b.attempts = append(b.attempts, attempt{name: name, n: n, seq: b.seq})

	switch {
	case b.retriesLeft[name] > 0:
		b.retriesLeft[name]--
		return n, OutcomeRetry
	case b.declined[name]:
		return n, OutcomeDeclined
	case b.failed[name]:
		return n, OutcomeFailed
	}
	return n, OutcomeOk
}

func (b *fakeBackend) CompileFunction(fn *Function) Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, out := b.record(fn.QualName)
	if out == OutcomeOk {
		b.compiledFns[fn] = true
	}
	return out
}

func (b *fakeBackend) CompileCode(module *Module, globals *Globals, code *CodeObject) Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, out := b.record(code.QualName)
	if out == OutcomeOk {
		b.compiledCodes[code] = true
	}
	return out
}

func (b *fakeBackend) AttachExistingCode(fn *Function) Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.attachable[fn] {
		b.compiledFns[fn] = true
		return OutcomeOk
	}
	return OutcomeDeclined
}

func (b *fakeBackend) ReleaseUnit(u CompilationUnit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = append(b.released, u)
}

func (b *fakeBackend) InvalidateTypeSpecializations(t *Type) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.invalidated = append(b.invalidated, t)
}

func (b *fakeBackend) TypeDestroyed(t *Type) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.destroyed = append(b.destroyed, t)
}

func (b *fakeBackend) FunctionModified(fn *Function) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.modified = append(b.modified, fn)
}

func (b *fakeBackend) IsCompiled(fn *Function) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.compiledFns[fn]
}

func (b *fakeBackend) CompiledFunctions() []*Function {
	b.mu.Lock()
	defer b.mu.Unlock()
	fns := make([]*Function, 0, len(b.compiledFns))
	for fn := range b.compiledFns {
		fns = append(fns, fn)
	}
	return fns
}

func (b *fakeBackend) CodeSize(fn *Function) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.codeSizes[fn]
}

func (b *fakeBackend) StackSize(fn *Function) int      { return 0 }
func (b *fakeBackend) SpillStackSize(fn *Function) int { return 0 }

func (b *fakeBackend) ClearCache() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleared++
	b.compiledFns = make(map[*Function]bool)
	b.compiledCodes = make(map[*CodeObject]bool)
}

func (b *fakeBackend) releaseCount(u CompilationUnit) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.released {
		if r == u {
			n++
		}
	}
	return n
}

// fakeICChannel records inline-cache invalidation notifications.
type fakeICChannel struct {
	notified []*Type
}

func (ch *fakeICChannel) NotifyTypeChanged(t *Type) {
	ch.notified = append(ch.notified, t)
}

// makeCode builds a code object with a two-instruction body so line lookup
// and hashing have something to chew on.
func makeCode(qual, file string, firstLine int, consts ...any) *CodeObject {
	return &CodeObject{
		QualName:  qual,
		Filename:  file,
		FirstLine: firstLine,
		Consts:    consts,
		Instrs: []Instruction{
			{Offset: 0, Line: firstLine, Op: OpLoadFast},
			{Offset: 2, Line: firstLine + 1, Op: OpReturnValue},
		},
	}
}

func makeFunc(mod *Module, qual string) *Function {
	return &Function{
		QualName: qual,
		Module:   mod,
		Globals:  &Globals{Vars: map[string]any{}},
		Code:     makeCode(qual, "test.py", 10),
	}
}
