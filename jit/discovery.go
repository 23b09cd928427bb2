package jit

// findNestedCodes walks a constant pool breadth-first, collecting every
// reachable code object that passes the eligibility policy under the given
// module. Code values can be shared between pools, so a visited set keyed
// by code identity prevents duplicate work; the structure is acyclic but
// not tree-shaped. Only accepted codes are descended into, and candidates
// without a resolvable qualified name are skipped.
func (c *Controller) findNestedCodes(module string, root *CodeObject) []*CodeObject {
	queue := [][]any{root.Consts}
	visited := map[*CodeObject]struct{}{root: {}}
	var result []*CodeObject

	for len(queue) > 0 {
		consts := queue[0]
		queue = queue[1:]

		for _, konst := range consts {
			code, isCode := konst.(*CodeObject)
			if !isCode {
				continue
			}
			if _, seen := visited[code]; seen {
				continue
			}
			visited[code] = struct{}{}
			if code.QualName == "" || !c.onList(code, module, code.QualName) {
				continue
			}
			result = append(result, code)
			queue = append(queue, code.Consts)
		}
	}
	return result
}

// discoverNested registers every eligible code object nested in the
// function's constant pool. Bare code carries neither module nor globals,
// so each accepted unit inherits both from the enclosing function via a
// UnitContext side entry.
func (c *Controller) discoverNested(fn *Function) {
	for _, code := range c.findNestedCodes(fn.moduleName(), fn.Code) {
		unit := CodeUnit{Code: code}
		c.registerUnit(unit)
		c.codeData[unit] = UnitContext{Module: fn.Module, Globals: fn.Globals}
	}
}
