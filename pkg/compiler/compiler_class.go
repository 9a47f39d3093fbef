package compiler

import (
	"canidae/pkg/opcode"
	"canidae/pkg/token"
)

// function compiles a function body (top-level fun, method, or initializer)
// into its own functionCompiler, then emits the enclosing chunk's `closure`
// instruction plus one (is_local, index) pair per captured upvalue.
func (c *Compiler) function(typ funcType, name string) {
	child := newFunctionCompiler(c.fc, typ, name)
	c.fc = child

	c.consume(token.LPAREN, "Expect '(' after function name.")
	if !c.check(token.RPAREN) {
		for {
			c.fc.function.Arity++
			paramConst := c.parseVariable("Expect parameter name.")
			c.defineVariable(paramConst)
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "Expect ')' after parameters.")
	c.consume(token.LBRACE, "Expect '{' before function body.")
	c.blockStatements()
	c.emitReturn()

	fn := c.fc.function
	upvalues := c.fc.upvalues
	c.fc = c.fc.enclosing

	idx := c.emitConstant(fn)
	c.emitOpU16(opcode.OpClosure, idx)
	for _, uv := range upvalues {
		if uv.isLocal {
			c.emitU8(1)
		} else {
			c.emitU8(0)
		}
		c.emitU16(uv.index)
	}
}

func (c *Compiler) method() {
	c.consume(token.IDENT, "Expect method name.")
	name := c.previous.Lexeme
	nameConst := c.identifierConstant(name)
	typ := typeMethod
	if name == "init" {
		typ = typeInitializer
	}
	c.function(typ, name)
	c.emitOpU16(opcode.OpMethod, nameConst)
}

// classDeclaration follows the clox pattern of binding a synthetic "super"
// local holding the superclass reference, live for the lexical scope of the
// class body, rather than re-deriving the superclass dynamically at
// super-call time.
func (c *Compiler) classDeclaration() {
	c.consume(token.IDENT, "Expect class name.")
	name := c.previous.Lexeme
	nameConst := c.identifierConstant(name)
	c.declareVariable(name)
	c.emitOpU16(opcode.OpClass, nameConst)
	c.defineVariable(nameConst)

	cctx := &classCtx{enclosing: c.classes}
	c.classes = cctx

	if c.match(token.COLON) {
		c.consume(token.IDENT, "Expect superclass name.")
		superName := c.previous.Lexeme
		if superName == name {
			c.errorAtPrevious("A class can't inherit from itself.")
		}
		c.namedVariable(superName, false)

		c.beginScope()
		c.addLocal("super")
		c.markInitialized()

		c.namedVariable(name, false)
		c.emitOp(opcode.OpInherit)
		cctx.hasSuperclass = true
	}

	c.namedVariable(name, false)
	c.consume(token.LBRACE, "Expect '{' before class body.")
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.method()
	}
	c.consume(token.RBRACE, "Expect '}' after class body.")
	c.emitOp(opcode.OpPop)

	if cctx.hasSuperclass {
		c.endScope()
	}
	c.classes = cctx.enclosing
}
