// Package compiler implements Canidae's single-pass compiler: a Pratt
// expression parser and lexical-scope resolver that emit bytecode directly
// as they consume the token stream, with no separate AST stage.
package compiler

import (
	"fmt"

	"canidae/pkg/diag"
	"canidae/pkg/opcode"
	"canidae/pkg/scanner"
	"canidae/pkg/token"
	"canidae/pkg/value"
)

type funcType int

const (
	typeScript funcType = iota
	typeFunction
	typeMethod
	typeInitializer
)

type local struct {
	name       string
	depth      int
	isCaptured bool
}

type upvalueRef struct {
	index   int
	isLocal bool
}

type loopCtx struct {
	scopeDepth    int
	breakJumps    []int
	continueJumps []int
}

type classCtx struct {
	enclosing     *classCtx
	hasSuperclass bool
}

// functionCompiler holds the per-function compile-time state described in
// spec.md §4.2: locals, scope depth, upvalues, and the loop-context stack
// used to patch break/continue jumps.
type functionCompiler struct {
	enclosing *functionCompiler
	function  *value.Function
	typ       funcType

	locals     []local
	scopeDepth int
	upvalues   []upvalueRef
	loops      []loopCtx
}

// Compiler drives the scanner one token at a time and emits bytecode as it
// recognizes grammar productions; there is no intermediate tree.
type Compiler struct {
	sc       *scanner.Scanner
	current  token.Token
	previous token.Token

	fc      *functionCompiler
	classes *classCtx

	errors    []diag.CompileError
	panicMode bool
}

// New prepares a compiler over source for top-level script compilation.
func New(source string) *Compiler {
	c := &Compiler{sc: scanner.New(source)}
	c.fc = newFunctionCompiler(nil, typeScript, "")
	c.advance()
	return c
}

func newFunctionCompiler(enclosing *functionCompiler, typ funcType, name string) *functionCompiler {
	fc := &functionCompiler{
		enclosing: enclosing,
		typ:       typ,
		function:  &value.Function{Name: name, Chunk: value.NewChunk()},
	}
	// Slot 0 is reserved for the callable itself (script/function) or the
	// receiver (methods); giving it an empty/"this" name keeps it
	// unresolvable by ordinary identifier lookups except inside methods.
	selfName := ""
	if typ == typeMethod || typ == typeInitializer {
		selfName = "this"
	}
	fc.locals = append(fc.locals, local{name: selfName, depth: 0})
	if typ != typeScript {
		fc.scopeDepth = 1 // function bodies compile as if already in a block
	}
	return fc
}

// Compile runs the whole program and returns the top-level Function plus any
// compile errors accumulated along the way. Exit code 65 is the caller's
// responsibility (see pkg/diag).
func (c *Compiler) Compile() (*value.Function, []diag.CompileError) {
	for !c.check(token.EOF) {
		c.declaration()
	}
	c.emitReturn()
	if len(c.errors) > 0 {
		return nil, c.errors
	}
	return c.fc.function, nil
}

// --- token stream plumbing ---

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.sc.Next()
		if c.current.Type != token.ILLEGAL {
			break
		}
		c.errorAtCurrent(c.current.Lexeme)
	}
}

func (c *Compiler) check(t token.Type) bool { return c.current.Type == t }

func (c *Compiler) match(t token.Type) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t token.Type, msg string) {
	if c.current.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.current, msg) }
func (c *Compiler) errorAtPrevious(msg string) { c.errorAt(c.previous, msg) }

func (c *Compiler) errorAt(tok token.Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	lexeme := tok.Lexeme
	if tok.Type == token.EOF {
		lexeme = ""
	}
	c.errors = append(c.errors, diag.CompileError{Line: tok.Line, Lexeme: lexeme, Message: msg})
}

// synchronize discards tokens until a likely statement boundary, so one
// syntax error doesn't cascade into dozens of spurious ones.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Type != token.EOF {
		if c.previous.Type == token.SEMICOLON {
			return
		}
		switch c.current.Type {
		case token.CLASS, token.FUN, token.VAR, token.FOR, token.IF,
			token.WHILE, token.PRINT, token.RETURN, token.TRY, token.IMPORT:
			return
		}
		c.advance()
	}
}

// --- emission helpers ---

func (c *Compiler) chunk() *value.Chunk { return c.fc.function.Chunk }

func (c *Compiler) emitByte(b byte) int {
	return c.chunk().Write(b, c.previous.Line)
}

func (c *Compiler) emitOp(op opcode.Op) int { return c.emitByte(byte(op)) }

func (c *Compiler) emitOpU16(op opcode.Op, operand int) {
	c.emitOp(op)
	c.emitU16(operand)
}

func (c *Compiler) emitU16(v int) {
	c.emitByte(byte(v >> 8))
	c.emitByte(byte(v))
}

func (c *Compiler) emitU8(v int) { c.emitByte(byte(v)) }

func (c *Compiler) emitConstant(v value.Value) int {
	return c.chunk().AddConstant(v)
}

func (c *Compiler) identifierConstant(name string) int {
	return c.emitConstant(value.String(name))
}

func (c *Compiler) emitReturn() {
	if c.fc.typ == typeInitializer {
		c.emitOpU16(opcode.OpGetLocal, 0)
	} else {
		c.emitOp(opcode.OpNull)
	}
	c.emitOp(opcode.OpReturn)
}

// emitJump emits op followed by a placeholder 2-byte offset and returns the
// offset of the first placeholder byte, for a later patchJump.
func (c *Compiler) emitJump(op opcode.Op) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.chunk().Code) - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := len(c.chunk().Code) - offset - 2
	if jump > 0xffff {
		c.errorAtPrevious("Jump target too large.")
		return
	}
	c.chunk().Code[offset] = byte(jump >> 8)
	c.chunk().Code[offset+1] = byte(jump)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(opcode.OpLoop)
	offset := len(c.chunk().Code) - loopStart + 2
	if offset > 0xffff {
		c.errorAtPrevious("Loop body too large.")
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset))
}

// --- scopes and locals ---

func (c *Compiler) beginScope() { c.fc.scopeDepth++ }

func (c *Compiler) endScope() {
	c.fc.scopeDepth--
	fc := c.fc
	for len(fc.locals) > 0 && fc.locals[len(fc.locals)-1].depth > fc.scopeDepth {
		if fc.locals[len(fc.locals)-1].isCaptured {
			c.emitOp(opcode.OpCloseUpvalue)
		} else {
			c.emitOp(opcode.OpPop)
		}
		fc.locals = fc.locals[:len(fc.locals)-1]
	}
}

func (c *Compiler) declareVariable(name string) {
	if c.fc.scopeDepth == 0 {
		return // globals are resolved dynamically by name, no local slot
	}
	for i := len(c.fc.locals) - 1; i >= 0; i-- {
		l := c.fc.locals[i]
		if l.depth != -1 && l.depth < c.fc.scopeDepth {
			break
		}
		if l.name == name {
			c.errorAtPrevious("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) addLocal(name string) {
	c.fc.locals = append(c.fc.locals, local{name: name, depth: -1})
}

func (c *Compiler) markInitialized() {
	if c.fc.scopeDepth == 0 {
		return
	}
	c.fc.locals[len(c.fc.locals)-1].depth = c.fc.scopeDepth
}

// parseVariable consumes an identifier and returns the global-name constant
// index to use if this turns out to be a global (ignored for locals).
func (c *Compiler) parseVariable(errMsg string) int {
	c.consume(token.IDENT, errMsg)
	name := c.previous.Lexeme
	c.declareVariable(name)
	if c.fc.scopeDepth > 0 {
		return -1
	}
	return c.identifierConstant(name)
}

func (c *Compiler) defineVariable(globalConst int) {
	if c.fc.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpU16(opcode.OpDefineGlobal, globalConst)
}

// resolveLocal looks up name among fc's locals, innermost scope first. A
// local whose depth is still -1 is mid-initialization (its own initializer
// expression is what's being compiled), so reading it here is an error
// rather than a legal self-reference to garbage stack contents.
func resolveLocal(c *Compiler, fc *functionCompiler, name string) int {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		if fc.locals[i].name == name {
			if fc.locals[i].depth == -1 {
				c.errorAtPrevious("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

func resolveUpvalue(c *Compiler, fc *functionCompiler, name string) int {
	if fc.enclosing == nil {
		return -1
	}
	if slot := resolveLocal(c, fc.enclosing, name); slot != -1 {
		fc.enclosing.locals[slot].isCaptured = true
		return addUpvalue(fc, slot, true)
	}
	if up := resolveUpvalue(c, fc.enclosing, name); up != -1 {
		return addUpvalue(fc, up, false)
	}
	return -1
}

func addUpvalue(fc *functionCompiler, index int, isLocal bool) int {
	for i, uv := range fc.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	fc.upvalues = append(fc.upvalues, upvalueRef{index: index, isLocal: isLocal})
	fc.function.UpvalueCount = len(fc.upvalues)
	return len(fc.upvalues) - 1
}

func (c *Compiler) assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		c.errorAtPrevious(fmt.Sprintf(format, args...))
	}
}
