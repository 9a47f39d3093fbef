package compiler

import (
	"canidae/pkg/opcode"
	"canidae/pkg/token"
	"canidae/pkg/value"
)

func (c *Compiler) declaration() {
	switch {
	case c.match(token.CLASS):
		c.classDeclaration()
	case c.match(token.FUN):
		c.funDeclaration()
	case c.match(token.VAR):
		c.varDeclaration()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) funDeclaration() {
	global := c.parseVariable("Expect function name.")
	name := c.previous.Lexeme
	c.markInitialized()
	c.function(typeFunction, name)
	c.defineVariable(global)
}

func (c *Compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")
	if c.match(token.ASSIGN) {
		c.expression()
	} else {
		c.emitOp(opcode.OpNull)
	}
	c.consume(token.SEMICOLON, "Expect ';' after variable declaration.")
	c.defineVariable(global)
}

func (c *Compiler) statement() {
	switch {
	case c.match(token.PRINT):
		c.printStatement()
	case c.match(token.IF):
		c.ifStatement()
	case c.match(token.WHILE):
		c.whileStatement()
	case c.match(token.DO):
		c.doWhileStatement()
	case c.match(token.FOR):
		c.forStatement()
	case c.match(token.LBRACE):
		c.block()
	case c.match(token.BREAK):
		c.breakStatement()
	case c.match(token.CONTINUE):
		c.continueStatement()
	case c.match(token.RETURN):
		c.returnStatement()
	case c.match(token.IMPORT):
		c.importStatement()
	case c.match(token.TRY):
		c.tryStatement()
	case c.match(token.RAISE):
		c.raiseStatement()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after value.")
	c.emitOp(opcode.OpPrint)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after expression.")
	c.emitOp(opcode.OpPop)
}

func (c *Compiler) blockStatements() {
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RBRACE, "Expect '}' after block.")
}

func (c *Compiler) block() {
	c.beginScope()
	c.blockStatements()
	c.endScope()
}

func (c *Compiler) ifStatement() {
	c.expression()
	thenJump := c.emitJump(opcode.OpJumpIfFalse)
	c.emitOp(opcode.OpPop)
	c.statement()

	elseJump := c.emitJump(opcode.OpJump)
	c.patchJump(thenJump)
	c.emitOp(opcode.OpPop)
	if c.match(token.ELSE) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) discardLocalsAbove(depth int) {
	fc := c.fc
	for i := len(fc.locals) - 1; i >= 0 && fc.locals[i].depth > depth; i-- {
		if fc.locals[i].isCaptured {
			c.emitOp(opcode.OpCloseUpvalue)
		} else {
			c.emitOp(opcode.OpPop)
		}
	}
}

func (c *Compiler) whileStatement() {
	fc := c.fc
	loopStart := len(c.chunk().Code)
	c.expression()
	c.consume(token.DO, "Expect 'do' after condition.")
	exitJump := c.emitJump(opcode.OpJumpIfFalse)
	c.emitOp(opcode.OpPop)

	fc.loops = append(fc.loops, loopCtx{scopeDepth: fc.scopeDepth})
	for !c.check(token.END) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.END, "Expect 'end' after loop body.")

	lc := fc.loops[len(fc.loops)-1]
	fc.loops = fc.loops[:len(fc.loops)-1]
	for _, j := range lc.continueJumps {
		c.patchJump(j)
	}

	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	c.emitOp(opcode.OpPop)
	for _, j := range lc.breakJumps {
		c.patchJump(j)
	}
}

func (c *Compiler) doWhileStatement() {
	fc := c.fc
	bodyStart := len(c.chunk().Code)
	fc.loops = append(fc.loops, loopCtx{scopeDepth: fc.scopeDepth})
	for !c.check(token.WHILE) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.WHILE, "Expect 'while' after 'do' block.")

	lc := fc.loops[len(fc.loops)-1]
	fc.loops = fc.loops[:len(fc.loops)-1]
	for _, j := range lc.continueJumps {
		c.patchJump(j)
	}

	c.expression()
	c.consume(token.END, "Expect 'end' after condition.")
	exitJump := c.emitJump(opcode.OpJumpIfFalse)
	c.emitOp(opcode.OpPop)
	c.emitLoop(bodyStart)
	c.patchJump(exitJump)
	c.emitOp(opcode.OpPop)
	for _, j := range lc.breakJumps {
		c.patchJump(j)
	}
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(token.LPAREN, "Expect '(' after 'for'.")
	switch {
	case c.match(token.SEMICOLON):
	case c.match(token.VAR):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := len(c.chunk().Code)
	exitJump := -1
	if !c.check(token.SEMICOLON) {
		c.expression()
		exitJump = c.emitJump(opcode.OpJumpIfFalse)
		c.emitOp(opcode.OpPop)
	}
	c.consume(token.SEMICOLON, "Expect ';' after loop condition.")

	if !c.check(token.RPAREN) {
		bodyJump := c.emitJump(opcode.OpJump)
		incrementStart := len(c.chunk().Code)
		c.expression()
		c.emitOp(opcode.OpPop)
		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}
	c.consume(token.RPAREN, "Expect ')' after for clauses.")

	fc := c.fc
	fc.loops = append(fc.loops, loopCtx{scopeDepth: fc.scopeDepth})
	c.consume(token.LBRACE, "Expect '{' before for body.")
	c.block()

	lc := fc.loops[len(fc.loops)-1]
	fc.loops = fc.loops[:len(fc.loops)-1]
	for _, j := range lc.continueJumps {
		c.patchJump(j)
	}
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(opcode.OpPop)
	}
	for _, j := range lc.breakJumps {
		c.patchJump(j)
	}
	c.endScope()
}

func (c *Compiler) breakStatement() {
	c.consume(token.SEMICOLON, "Expect ';' after 'break'.")
	if len(c.fc.loops) == 0 {
		c.errorAtPrevious("Can't use 'break' outside of a loop.")
		return
	}
	lc := &c.fc.loops[len(c.fc.loops)-1]
	c.discardLocalsAbove(lc.scopeDepth)
	j := c.emitJump(opcode.OpJump)
	lc.breakJumps = append(lc.breakJumps, j)
}

func (c *Compiler) continueStatement() {
	c.consume(token.SEMICOLON, "Expect ';' after 'continue'.")
	if len(c.fc.loops) == 0 {
		c.errorAtPrevious("Can't use 'continue' outside of a loop.")
		return
	}
	lc := &c.fc.loops[len(c.fc.loops)-1]
	c.discardLocalsAbove(lc.scopeDepth)
	j := c.emitJump(opcode.OpJump)
	lc.continueJumps = append(lc.continueJumps, j)
}

func (c *Compiler) returnStatement() {
	if c.match(token.SEMICOLON) {
		c.emitReturn()
		return
	}
	if c.fc.typ == typeInitializer {
		c.errorAtPrevious("Can't return a value from an initializer.")
	}
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after return value.")
	c.emitOp(opcode.OpReturn)
}

func (c *Compiler) importStatement() {
	if !c.check(token.IDENT) {
		c.errorAtCurrent("Expect module name after 'import'.")
	} else {
		c.advance()
	}
	name := c.previous.Lexeme
	nameConst := c.identifierConstant(name)
	c.consume(token.SEMICOLON, "Expect ';' after import.")
	c.emitOpU16(opcode.OpImport, nameConst)
}

// tryStatement compiles spec.md's try/catch form. The catch clause's
// accepted types and bind slot are only known once we've parsed past the
// try body, so OpPushHandler's operand is an index into Chunk.Handlers,
// filled in after the fact, rather than inline variable-length operands.
func (c *Compiler) tryStatement() {
	handlerIdx := len(c.chunk().Handlers)
	c.chunk().Handlers = append(c.chunk().Handlers, value.HandlerInfo{BindSlot: -1})
	c.emitOpU16(opcode.OpPushHandler, handlerIdx)

	c.consume(token.LBRACE, "Expect '{' after 'try'.")
	c.beginScope()
	c.blockStatements()
	c.endScope()

	c.emitOp(opcode.OpPopHandler)
	endJump := c.emitJump(opcode.OpJump)

	catchIP := len(c.chunk().Code)
	c.chunk().Handlers[handlerIdx].CatchIP = catchIP

	c.consume(token.CATCH, "Expect 'catch' after try block.")
	var typeConsts []int
	bindName := ""
	if c.match(token.LPAREN) {
		for {
			c.consume(token.IDENT, "Expect exception type name.")
			typeConsts = append(typeConsts, c.identifierConstant(c.previous.Lexeme))
			if !c.match(token.COMMA) {
				break
			}
		}
		if c.match(token.AS) {
			c.consume(token.IDENT, "Expect binding name after 'as'.")
			bindName = c.previous.Lexeme
		}
		c.consume(token.RPAREN, "Expect ')' after catch clause.")
	}
	c.chunk().Handlers[handlerIdx].Types = typeConsts

	c.consume(token.LBRACE, "Expect '{' before catch block.")
	c.beginScope()
	if bindName != "" {
		c.addLocal(bindName)
		c.markInitialized()
		c.chunk().Handlers[handlerIdx].BindSlot = len(c.fc.locals) - 1
	}
	c.blockStatements()
	c.endScope()

	c.patchJump(endJump)
	c.consume(token.END, "Expect 'end' after catch block.")
}

func (c *Compiler) raiseStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after raise expression.")
	c.emitOp(opcode.OpRaise)
}
