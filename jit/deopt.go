package jit

// DeoptReason classifies why compiled code fell back to the interpreter.
type DeoptReason int

const (
	DeoptGuardFailure DeoptReason = iota
	DeoptTypeChange
	DeoptUnhandledException
	DeoptUnsupportedValue
)

func (r DeoptReason) String() string {
	switch r {
	case DeoptGuardFailure:
		return "GuardFailure"
	case DeoptTypeChange:
		return "TypeChange"
	case DeoptUnhandledException:
		return "UnhandledException"
	case DeoptUnsupportedValue:
		return "UnsupportedValue"
	}
	return "Unknown"
}

// deoptKey identifies one deopt site: the code, the byte offset of the
// resuming instruction, and the fixed reason/description the backend
// attached to the exit.
type deoptKey struct {
	code   *CodeObject
	offset int
	reason DeoptReason
	descr  string
}

// deoptStat accumulates events for one site. guilty is a single-column
// bounded histogram of the runtime types that invalidated the compiled
// assumption; count also covers events with no guilty type.
type deoptStat struct {
	count  uint64
	guilty *TypeHistogram
}

// RecordDeopt notes one fallback event. guilty may be nil when the exit
// had no type involved.
func (c *Controller) RecordDeopt(code *CodeObject, offset int, reason DeoptReason, descr string, guilty *Type) {
	key := deoptKey{code: code, offset: offset, reason: reason, descr: descr}
	stat := c.deoptStats[key]
	if stat == nil {
		stat = &deoptStat{guilty: newTypeHistogram(profilerRows, 1)}
		c.deoptStats[key] = stat
	}
	stat.count++
	if guilty != nil {
		stat.guilty.Record(guilty)
	}
}

// ClearDeoptStats drops all accumulated deopt state without building a
// report.
func (c *Controller) ClearDeoptStats() {
	c.deoptStats = make(map[deoptKey]*deoptStat)
}
