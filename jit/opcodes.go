package jit

import "fmt"

// Opcode identifies a host bytecode operation. The control plane does not
// interpret bytecode; it only needs each opcode's name for reports and its
// profile shape, which decides how many operand types the instruction hook
// records.
type Opcode uint16

const (
	OpNop Opcode = iota

	// Data movement: never profiled.
	OpLoadConst
	OpLoadFast
	OpStoreFast
	OpPopTop
	OpJumpAbsolute
	OpMakeFunction

	// Unary: profile the stack top.
	OpUnaryNegative
	OpUnaryNot
	OpUnaryInvert
	OpGetIter
	OpForIter
	OpLoadAttr
	OpLoadMethod
	OpStoreGlobal
	OpUnpackSequence
	OpPopJumpIfFalse
	OpPopJumpIfTrue
	OpReturnValue
	OpYieldValue

	// Binary: profile the two topmost slots, left operand first.
	OpBinaryAdd
	OpBinarySubtract
	OpBinaryMultiply
	OpBinaryTrueDivide
	OpBinaryFloorDivide
	OpBinaryModulo
	OpBinarySubscr
	OpInplaceAdd
	OpCompareOp
	OpStoreAttr
	OpListAppend
	OpMapAdd

	// Ternary: subscript assignment profiles value, container, index.
	OpStoreSubscr

	// Call-shaped: the profiled slots depend on the instruction's own
	// operand count.
	OpCallFunction
	OpCallMethod
)

// profileShape classifies how an opcode is profiled.
type profileShape uint8

const (
	shapeNone profileShape = iota
	shapeTop
	shapePair
	shapeTriple
	shapeCall       // profiles the callable below Arg positional args
	shapeCallMethod // profiles the receiver and the method object
)

// arity returns the number of columns a histogram for this shape needs.
// Call shapes profile a fixed number of slots even though which slots they
// are depends on the instruction operand.
func (s profileShape) arity() int {
	switch s {
	case shapeTop, shapeCall:
		return 1
	case shapePair, shapeCallMethod:
		return 2
	case shapeTriple:
		return 3
	}
	return 0
}

type opInfo struct {
	name  string
	shape profileShape
}

var opTable = map[Opcode]opInfo{
	OpNop:          {"NOP", shapeNone},
	OpLoadConst:    {"LOAD_CONST", shapeNone},
	OpLoadFast:     {"LOAD_FAST", shapeNone},
	OpStoreFast:    {"STORE_FAST", shapeNone},
	OpPopTop:       {"POP_TOP", shapeNone},
	OpJumpAbsolute: {"JUMP_ABSOLUTE", shapeNone},
	OpMakeFunction: {"MAKE_FUNCTION", shapeNone},

	OpUnaryNegative:  {"UNARY_NEGATIVE", shapeTop},
	OpUnaryNot:       {"UNARY_NOT", shapeTop},
	OpUnaryInvert:    {"UNARY_INVERT", shapeTop},
	OpGetIter:        {"GET_ITER", shapeTop},
	OpForIter:        {"FOR_ITER", shapeTop},
	OpLoadAttr:       {"LOAD_ATTR", shapeTop},
	OpLoadMethod:     {"LOAD_METHOD", shapeTop},
	OpStoreGlobal:    {"STORE_GLOBAL", shapeTop},
	OpUnpackSequence: {"UNPACK_SEQUENCE", shapeTop},
	OpPopJumpIfFalse: {"POP_JUMP_IF_FALSE", shapeTop},
	OpPopJumpIfTrue:  {"POP_JUMP_IF_TRUE", shapeTop},
	OpReturnValue:    {"RETURN_VALUE", shapeTop},
	OpYieldValue:     {"YIELD_VALUE", shapeTop},

	OpBinaryAdd:         {"BINARY_ADD", shapePair},
	OpBinarySubtract:    {"BINARY_SUBTRACT", shapePair},
	OpBinaryMultiply:    {"BINARY_MULTIPLY", shapePair},
	OpBinaryTrueDivide:  {"BINARY_TRUE_DIVIDE", shapePair},
	OpBinaryFloorDivide: {"BINARY_FLOOR_DIVIDE", shapePair},
	OpBinaryModulo:      {"BINARY_MODULO", shapePair},
	OpBinarySubscr:      {"BINARY_SUBSCR", shapePair},
	OpInplaceAdd:        {"INPLACE_ADD", shapePair},
	OpCompareOp:         {"COMPARE_OP", shapePair},
	OpStoreAttr:         {"STORE_ATTR", shapePair},
	OpListAppend:        {"LIST_APPEND", shapePair},
	OpMapAdd:            {"MAP_ADD", shapePair},

	OpStoreSubscr: {"STORE_SUBSCR", shapeTriple},

	OpCallFunction: {"CALL_FUNCTION", shapeCall},
	OpCallMethod:   {"CALL_METHOD", shapeCallMethod},
}

// Name returns the opcode's report name, or "OP_<n>" for opcodes outside
// the table.
func (op Opcode) Name() string {
	if info, ok := opTable[op]; ok {
		return info.name
	}
	return fmt.Sprintf("OP_%d", op)
}
