package main

import (
	"fmt"

	"canidae/pkg/opcode"
	"canidae/pkg/value"
)

// disassemble prints a chunk and every function constant it nests,
// recursively, labelled by name like a clox-style "== name ==" dump.
func disassemble(fn *value.Function) {
	disassembleChunk(fn)
	for _, c := range fn.Chunk.Constants {
		if nested, ok := c.(*value.Function); ok {
			disassemble(nested)
		}
	}
}

func disassembleChunk(fn *value.Function) {
	name := fn.Name
	if name == "" {
		name = "script"
	}
	fmt.Printf("== %s ==\n", name)
	chunk := fn.Chunk
	offset := 0
	for offset < len(chunk.Code) {
		offset = disassembleInstruction(chunk, offset)
	}
}

func disassembleInstruction(chunk *value.Chunk, offset int) int {
	op := opcode.Op(chunk.Code[offset])
	line := chunk.Lines[offset]
	fmt.Printf("%04d %4d %s", offset, line, op)

	def, err := opcode.Lookup(op)
	if err != nil {
		fmt.Println()
		return offset + 1
	}

	next := offset + 1
	for _, width := range def.OperandWidths {
		var operand int
		for i := 0; i < width; i++ {
			operand = operand<<8 | int(chunk.Code[next])
			next++
		}
		fmt.Printf(" %d", operand)
	}

	switch op {
	case opcode.OpClosure:
		idx := readOperand(chunk, offset+1, 2)
		fn := chunk.Constants[idx].(*value.Function)
		next = offset + 3
		for i := 0; i < fn.UpvalueCount; i++ {
			isLocal := chunk.Code[next]
			index := readOperand(chunk, next+1, 2)
			fmt.Printf(" (local=%d idx=%d)", isLocal, index)
			next += 3
		}
	case opcode.OpPushHandler:
		idx := readOperand(chunk, offset+1, 2)
		h := chunk.Handlers[idx]
		fmt.Printf(" (catchIP=%d types=%v bindSlot=%d)", h.CatchIP, h.Types, h.BindSlot)
	}

	fmt.Println()
	return next
}

func readOperand(chunk *value.Chunk, at, width int) int {
	v := 0
	for i := 0; i < width; i++ {
		v = v<<8 | int(chunk.Code[at+i])
	}
	return v
}
