package jit

// ---------------------------------------------------------------------------
// Runtime type profiling
// ---------------------------------------------------------------------------

// codeProfile is the per-code-object observation state: a bulk untyped hit
// counter plus one bounded histogram per profiled instruction offset. Both
// accounting paths are independent; the report reconciles them.
type codeProfile struct {
	totalHits int64
	sites     map[int]*profileSite
}

type profileSite struct {
	op   Opcode
	hist *TypeHistogram
}

func (c *Controller) profileFor(code *CodeObject) *codeProfile {
	cp := c.typeProfiles[code]
	if cp == nil {
		cp = &codeProfile{sites: make(map[int]*profileSite)}
		c.typeProfiles[code] = cp
	}
	return cp
}

// ProfileInstruction records the operand types of one executed
// instruction. stack holds the value-stack types with the top at the end;
// offset is the instruction's byte offset within code. How many slots are
// profiled depends on the opcode: unary operations profile the top, binary
// two slots, subscript-assignment three, and call-shaped opcodes slots
// derived from their own operand count. Opcodes with no profile shape are
// ignored.
func (c *Controller) ProfileInstruction(code *CodeObject, stack []*Type, offset int, op Opcode, arg int) {
	info, known := opTable[op]
	if !known || info.shape == shapeNone {
		return
	}

	site := c.profileFor(code).sites[offset]
	if site == nil {
		site = &profileSite{
			op:   op,
			hist: newTypeHistogram(profilerRows, info.shape.arity()),
		}
		c.typeProfiles[code].sites[offset] = site
	}

	// slot i counts down from the top of the stack.
	at := func(i int) *Type {
		idx := len(stack) - 1 - i
		if idx < 0 || idx >= len(stack) {
			return nil
		}
		return stack[idx]
	}

	switch info.shape {
	case shapeTop:
		site.hist.Record(at(0))
	case shapePair:
		site.hist.Record(at(1), at(0))
	case shapeTriple:
		site.hist.Record(at(2), at(1), at(0))
	case shapeCall:
		site.hist.Record(at(arg))
	case shapeCallMethod:
		site.hist.Record(at(arg), at(arg + 1))
	}
}

// CountInstructions adds n untyped instruction executions to a code
// object's total. The interpreter batches these to keep the hook off the
// per-instruction fast path.
func (c *Controller) CountInstructions(code *CodeObject, n int64) {
	c.profileFor(code).totalHits += n
}
