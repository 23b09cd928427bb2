package jit

// ---------------------------------------------------------------------------
// Compilation units
// ---------------------------------------------------------------------------

// CompilationUnit is a candidate for compilation: either a function or a
// bare code object found through nested discovery. The two variants are
// closed; the kind is resolved once at registration and the registry keys on
// the unit value, so wrapping the same host object twice yields the same
// unit.
type CompilationUnit interface {
	// QualifiedName returns the unit's dotted name, or "" when the host
	// never assigned one.
	QualifiedName() string

	// sealed restricts implementations to this package's two variants.
	sealed()
}

// FunctionUnit wraps a host function object.
type FunctionUnit struct {
	Fn *Function
}

func (u FunctionUnit) QualifiedName() string { return u.Fn.QualName }
func (FunctionUnit) sealed()                 {}

// CodeUnit wraps a bare code object. It carries neither module nor globals;
// the registry holds those in a UnitContext for as long as the unit is
// pending.
type CodeUnit struct {
	Code *CodeObject
}

func (u CodeUnit) QualifiedName() string { return u.Code.QualName }
func (CodeUnit) sealed()                 {}

// UnitContext is the side-table entry for a CodeUnit: the module and
// globals inherited from the enclosing function at discovery time.
type UnitContext struct {
	Module  *Module
	Globals *Globals
}
