package jit

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// ---------------------------------------------------------------------------
// Host object model
// ---------------------------------------------------------------------------
// The control plane does not own these objects; the host runtime creates and
// destroys them and notifies the Controller through the lifecycle hooks. The
// host guarantees pointer identity for the lifetime of each object, which is
// what the registry tables key on.

// Type is a runtime type. Pointer identity distinguishes types; Name and
// Module are display metadata only.
type Type struct {
	Name   string
	Module string
}

// DisplayName returns "module:name" when the type has a module, else the
// bare name. A nil type renders as "<NULL>", matching what profiling tables
// record for absent operands.
func (t *Type) DisplayName() string {
	if t == nil {
		return "<NULL>"
	}
	if t.Module != "" {
		return t.Module + ":" + t.Name
	}
	return t.Name
}

// Module is a host module object. Pointer identity matters; Name is used for
// inclusion-list matching.
type Module struct {
	Name string
}

// Globals is a module-level variable dictionary. It is opaque to the control
// plane and carried by pointer so side-table entries can be compared.
type Globals struct {
	Vars map[string]any
}

// CodeFlags carry host-level properties of a code object that the
// eligibility policy consults.
type CodeFlags uint32

const (
	// CodeStaticallyCompiled marks code produced by the host's static
	// compiler. With CompileAllStaticFunctions set, such code bypasses the
	// inclusion list.
	CodeStaticallyCompiled CodeFlags = 1 << iota

	// CodeSuppressJIT marks code the host has opted out of compilation.
	CodeSuppressJIT
)

// Instruction is one decoded bytecode instruction of a code object.
type Instruction struct {
	Offset int // byte offset within the code
	Line   int // source line, -1 if unknown
	Op     Opcode
	Arg    int
}

// CodeObject is a compiled source-level unit: the bytecode body of a
// function, lambda, comprehension or class body. A bare code object carries
// neither module nor globals; those arrive through a UnitContext when the
// code is registered via nested discovery.
type CodeObject struct {
	QualName  string
	Filename  string
	FirstLine int
	Flags     CodeFlags

	// Consts is the constant pool. Nested code objects appear here as
	// *CodeObject entries.
	Consts []any

	Instrs []Instruction
}

// Suppress marks the code as never eligible for compilation.
func (co *CodeObject) Suppress() {
	co.Flags |= CodeSuppressJIT
}

// LineAt returns the source line for the instruction at the given byte
// offset, or -1 when the offset does not resolve to an instruction.
func (co *CodeObject) LineAt(offset int) int {
	for i := range co.Instrs {
		if co.Instrs[i].Offset == offset {
			return co.Instrs[i].Line
		}
	}
	return -1
}

// Hash returns a stable numeric content hash of the instruction stream.
// Reports carry it as the identity of a code object across processes, where
// pointer identity is meaningless.
func (co *CodeObject) Hash() uint64 {
	d := xxhash.New()
	var buf [8]byte
	for i := range co.Instrs {
		in := &co.Instrs[i]
		binary.LittleEndian.PutUint32(buf[0:4], uint32(in.Op))
		binary.LittleEndian.PutUint32(buf[4:8], uint32(in.Arg))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// Function is a host function object: a code object bound to a module and
// its globals.
type Function struct {
	QualName string
	Module   *Module
	Globals  *Globals
	Code     *CodeObject
}

// moduleName is a nil-safe accessor used by the eligibility policy.
func (fn *Function) moduleName() string {
	if fn.Module == nil {
		return ""
	}
	return fn.Module.Name
}
