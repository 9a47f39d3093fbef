// Package opcode defines the bytecode instruction set shared by the
// compiler (which emits it) and the VM (which interprets it).
package opcode

import "fmt"

type Op byte

const (
	OpConstant Op = iota
	OpNull
	OpTrue
	OpFalse

	OpGetLocal
	OpSetLocal

	OpDefineGlobal
	OpGetGlobal
	OpSetGlobal

	OpGetUpvalue
	OpSetUpvalue
	OpCloseUpvalue

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpNeg
	OpNot
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual

	OpArrayBuild
	OpIndexGet
	OpIndexSet

	OpJump
	OpJumpIfFalse
	OpLoop
	OpCall
	OpInvoke
	OpSuperInvoke
	OpReturn
	OpPrint
	OpPop
	OpDup
	OpDup2

	OpClass
	OpInherit
	OpMethod
	OpGetProperty
	OpSetProperty
	OpGetSuper

	OpClosure

	OpPushHandler
	OpPopHandler
	OpRaise

	OpImport
)

// Definition describes an opcode's mnemonic and the width (in bytes) of each
// of its inline operands, for the disassembler.
type Definition struct {
	Name          string
	OperandWidths []int
}

var definitions = map[Op]*Definition{
	OpConstant: {"OpConstant", []int{2}},
	OpNull:     {"OpNull", []int{}},
	OpTrue:     {"OpTrue", []int{}},
	OpFalse:    {"OpFalse", []int{}},

	OpGetLocal: {"OpGetLocal", []int{2}},
	OpSetLocal: {"OpSetLocal", []int{2}},

	OpDefineGlobal: {"OpDefineGlobal", []int{2}},
	OpGetGlobal:    {"OpGetGlobal", []int{2}},
	OpSetGlobal:    {"OpSetGlobal", []int{2}},

	OpGetUpvalue:   {"OpGetUpvalue", []int{2}},
	OpSetUpvalue:   {"OpSetUpvalue", []int{2}},
	OpCloseUpvalue: {"OpCloseUpvalue", []int{}},

	OpAdd:          {"OpAdd", []int{}},
	OpSub:          {"OpSub", []int{}},
	OpMul:          {"OpMul", []int{}},
	OpDiv:          {"OpDiv", []int{}},
	OpMod:          {"OpMod", []int{}},
	OpPow:          {"OpPow", []int{}},
	OpNeg:          {"OpNeg", []int{}},
	OpNot:          {"OpNot", []int{}},
	OpEqual:        {"OpEqual", []int{}},
	OpNotEqual:     {"OpNotEqual", []int{}},
	OpLess:         {"OpLess", []int{}},
	OpLessEqual:    {"OpLessEqual", []int{}},
	OpGreater:      {"OpGreater", []int{}},
	OpGreaterEqual: {"OpGreaterEqual", []int{}},

	OpArrayBuild: {"OpArrayBuild", []int{2}},
	OpIndexGet:   {"OpIndexGet", []int{}},
	OpIndexSet:   {"OpIndexSet", []int{}},

	OpJump:        {"OpJump", []int{2}},
	OpJumpIfFalse: {"OpJumpIfFalse", []int{2}},
	OpLoop:        {"OpLoop", []int{2}},
	OpCall:        {"OpCall", []int{1}},
	OpInvoke:      {"OpInvoke", []int{2, 1}},
	OpSuperInvoke: {"OpSuperInvoke", []int{2, 1}},
	OpReturn:      {"OpReturn", []int{}},
	OpPrint:       {"OpPrint", []int{}},
	OpPop:         {"OpPop", []int{}},
	OpDup:         {"OpDup", []int{}},
	OpDup2:        {"OpDup2", []int{}},

	OpClass:       {"OpClass", []int{2}},
	OpInherit:     {"OpInherit", []int{}},
	OpMethod:      {"OpMethod", []int{2}},
	OpGetProperty: {"OpGetProperty", []int{2}},
	OpSetProperty: {"OpSetProperty", []int{2}},
	OpGetSuper:    {"OpGetSuper", []int{2}},

	// OpClosure's fixed operand is the function's constant-pool index; the
	// (is_local, index) capture pairs that follow it are variable-length and
	// are read directly by the compiler/VM rather than through Definition.
	OpClosure: {"OpClosure", []int{2}},

	// OpPushHandler's fixed operand is an index into Chunk.Handlers, which
	// carries the catch IP, accepted type names, and bind slot; those can't
	// be known until the catch clause is parsed, so they live in a side
	// table mutated in place rather than packed inline like OpClosure's
	// capture pairs.
	OpPushHandler: {"OpPushHandler", []int{2}},
	OpPopHandler:  {"OpPopHandler", []int{}},
	OpRaise:       {"OpRaise", []int{}},

	OpImport: {"OpImport", []int{2}},
}

func Lookup(op Op) (*Definition, error) {
	def, ok := definitions[op]
	if !ok {
		return nil, fmt.Errorf("opcode %d undefined", op)
	}
	return def, nil
}

func (op Op) String() string {
	if def, ok := definitions[op]; ok {
		return def.Name
	}
	return fmt.Sprintf("OP(%d)", byte(op))
}
