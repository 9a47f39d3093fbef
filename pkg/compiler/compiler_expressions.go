package compiler

import (
	"strconv"

	"canidae/pkg/opcode"
	"canidae/pkg/token"
	"canidae/pkg/value"
)

// Precedence mirrors spec.md's table, low to high.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecPower
	PrecUnary
	PrecCall
	PrecPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type rule struct {
	prefix parseFn
	infix  parseFn
	prec   Precedence
}

var rules map[token.Type]rule

func init() {
	rules = map[token.Type]rule{
		token.LPAREN:    {grouping, call, PrecCall},
		token.DOT:       {nil, dot, PrecCall},
		token.LBRACKET:  {arrayLiteral, subscript, PrecCall},
		token.MINUS:     {unary, binary, PrecTerm},
		token.PLUS:      {nil, binary, PrecTerm},
		token.SLASH:     {nil, binary, PrecFactor},
		token.STAR:      {nil, binary, PrecFactor},
		token.PERCENT:   {nil, binary, PrecFactor},
		token.CARET:     {nil, binary, PrecPower},
		token.NOT:       {unary, nil, PrecNone},
		token.NOT_EQ:    {nil, binary, PrecEquality},
		token.EQ:        {nil, binary, PrecEquality},
		token.GT:        {nil, binary, PrecComparison},
		token.GT_EQ:     {nil, binary, PrecComparison},
		token.LT:        {nil, binary, PrecComparison},
		token.LT_EQ:     {nil, binary, PrecComparison},
		token.IDENT:     {variableExpr, nil, PrecNone},
		token.NUMBER:    {numberLit, nil, PrecNone},
		token.STRING:    {stringLit, nil, PrecNone},
		token.TRUE:      {literalLit, nil, PrecNone},
		token.FALSE:     {literalLit, nil, PrecNone},
		token.NULL:      {literalLit, nil, PrecNone},
		token.AND:       {nil, and_, PrecAnd},
		token.OR:        {nil, or_, PrecOr},
		token.THIS:      {thisExpr, nil, PrecNone},
		token.SUPER:     {superExpr, nil, PrecNone},
	}
}

func getRule(t token.Type) rule { return rules[t] }

func (c *Compiler) expression() { c.parsePrecedence(PrecAssignment) }

func (c *Compiler) parsePrecedence(prec Precedence) {
	c.advance()
	prefix := getRule(c.previous.Type).prefix
	if prefix == nil {
		c.errorAtPrevious("Expect expression.")
		return
	}
	canAssign := prec <= PrecAssignment
	prefix(c, canAssign)

	for prec <= getRule(c.current.Type).prec {
		c.advance()
		infix := getRule(c.previous.Type).infix
		infix(c, canAssign)
	}

	if canAssign && c.isCompoundAssignToken(c.current.Type) {
		c.errorAtCurrent("Invalid assignment target.")
	}
}

func (c *Compiler) isCompoundAssignToken(t token.Type) bool {
	switch t {
	case token.ASSIGN, token.PLUS_EQ, token.MINUS_EQ, token.STAR_EQ, token.SLASH_EQ, token.PCT_EQ, token.CARET_EQ:
		return true
	}
	return false
}

func (c *Compiler) matchAssignOp() bool {
	if c.isCompoundAssignToken(c.current.Type) {
		c.advance()
		return true
	}
	return false
}

func (c *Compiler) emitCompoundOp(tok token.Type) {
	switch tok {
	case token.PLUS_EQ:
		c.emitOp(opcode.OpAdd)
	case token.MINUS_EQ:
		c.emitOp(opcode.OpSub)
	case token.STAR_EQ:
		c.emitOp(opcode.OpMul)
	case token.SLASH_EQ:
		c.emitOp(opcode.OpDiv)
	case token.PCT_EQ:
		c.emitOp(opcode.OpMod)
	case token.CARET_EQ:
		c.emitOp(opcode.OpPow)
	}
}

func (c *Compiler) argumentList() int {
	argCount := 0
	if !c.check(token.RPAREN) {
		for {
			c.expression()
			argCount++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "Expect ')' after arguments.")
	return argCount
}

func grouping(c *Compiler, canAssign bool) {
	c.expression()
	c.consume(token.RPAREN, "Expect ')' after expression.")
}

func call(c *Compiler, canAssign bool) {
	argCount := c.argumentList()
	c.emitOp(opcode.OpCall)
	c.emitU8(argCount)
}

func unary(c *Compiler, canAssign bool) {
	opType := c.previous.Type
	c.parsePrecedence(PrecUnary)
	switch opType {
	case token.MINUS:
		c.emitOp(opcode.OpNeg)
	case token.NOT:
		c.emitOp(opcode.OpNot)
	}
}

func binary(c *Compiler, canAssign bool) {
	opType := c.previous.Type
	r := getRule(opType)
	next := r.prec + 1
	if opType == token.CARET { // right-associative
		next = r.prec
	}
	c.parsePrecedence(next)
	switch opType {
	case token.PLUS:
		c.emitOp(opcode.OpAdd)
	case token.MINUS:
		c.emitOp(opcode.OpSub)
	case token.STAR:
		c.emitOp(opcode.OpMul)
	case token.SLASH:
		c.emitOp(opcode.OpDiv)
	case token.PERCENT:
		c.emitOp(opcode.OpMod)
	case token.CARET:
		c.emitOp(opcode.OpPow)
	case token.EQ:
		c.emitOp(opcode.OpEqual)
	case token.NOT_EQ:
		c.emitOp(opcode.OpNotEqual)
	case token.LT:
		c.emitOp(opcode.OpLess)
	case token.LT_EQ:
		c.emitOp(opcode.OpLessEqual)
	case token.GT:
		c.emitOp(opcode.OpGreater)
	case token.GT_EQ:
		c.emitOp(opcode.OpGreaterEqual)
	}
}

func and_(c *Compiler, canAssign bool) {
	endJump := c.emitJump(opcode.OpJumpIfFalse)
	c.emitOp(opcode.OpPop)
	c.parsePrecedence(PrecAnd)
	c.patchJump(endJump)
}

func or_(c *Compiler, canAssign bool) {
	elseJump := c.emitJump(opcode.OpJumpIfFalse)
	endJump := c.emitJump(opcode.OpJump)
	c.patchJump(elseJump)
	c.emitOp(opcode.OpPop)
	c.parsePrecedence(PrecOr)
	c.patchJump(endJump)
}

func numberLit(c *Compiler, canAssign bool) {
	f, _ := strconv.ParseFloat(c.previous.Lexeme, 64)
	idx := c.emitConstant(value.Number(f))
	c.emitOpU16(opcode.OpConstant, idx)
}

func stringLit(c *Compiler, canAssign bool) {
	s, _ := c.previous.Literal.(string)
	idx := c.emitConstant(value.String(s))
	c.emitOpU16(opcode.OpConstant, idx)
}

func literalLit(c *Compiler, canAssign bool) {
	switch c.previous.Type {
	case token.TRUE:
		c.emitOp(opcode.OpTrue)
	case token.FALSE:
		c.emitOp(opcode.OpFalse)
	case token.NULL:
		c.emitOp(opcode.OpNull)
	}
}

func arrayLiteral(c *Compiler, canAssign bool) {
	count := 0
	if !c.check(token.RBRACKET) {
		for {
			c.expression()
			count++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RBRACKET, "Expect ']' after array elements.")
	c.emitOpU16(opcode.OpArrayBuild, count)
}

func subscript(c *Compiler, canAssign bool) {
	c.expression()
	c.consume(token.RBRACKET, "Expect ']' after index.")

	if canAssign && c.current.Type == token.ASSIGN {
		c.advance()
		c.expression()
		c.emitOp(opcode.OpIndexSet)
	} else if canAssign && c.isCompoundAssignToken(c.current.Type) {
		opTok := c.current.Type
		c.advance()
		c.emitOp(opcode.OpDup2)
		c.emitOp(opcode.OpIndexGet)
		c.expression()
		c.emitCompoundOp(opTok)
		c.emitOp(opcode.OpIndexSet)
	} else {
		c.emitOp(opcode.OpIndexGet)
	}
}

func dot(c *Compiler, canAssign bool) {
	c.consume(token.IDENT, "Expect property name after '.'.")
	name := c.previous.Lexeme
	nameConst := c.identifierConstant(name)

	switch {
	case canAssign && c.current.Type == token.ASSIGN:
		c.advance()
		c.expression()
		c.emitOpU16(opcode.OpSetProperty, nameConst)
	case canAssign && c.isCompoundAssignToken(c.current.Type):
		opTok := c.current.Type
		c.advance()
		c.emitOp(opcode.OpDup)
		c.emitOpU16(opcode.OpGetProperty, nameConst)
		c.expression()
		c.emitCompoundOp(opTok)
		c.emitOpU16(opcode.OpSetProperty, nameConst)
	case c.match(token.LPAREN):
		argCount := c.argumentList()
		c.emitOp(opcode.OpInvoke)
		c.emitU16(nameConst)
		c.emitU8(argCount)
	default:
		c.emitOpU16(opcode.OpGetProperty, nameConst)
	}
}

func variableExpr(c *Compiler, canAssign bool) {
	c.namedVariable(c.previous.Lexeme, canAssign)
}

func (c *Compiler) namedVariable(name string, canAssign bool) {
	var getOp, setOp opcode.Op
	arg := resolveLocal(c, c.fc, name)
	if arg != -1 {
		getOp, setOp = opcode.OpGetLocal, opcode.OpSetLocal
	} else if up := resolveUpvalue(c, c.fc, name); up != -1 {
		arg = up
		getOp, setOp = opcode.OpGetUpvalue, opcode.OpSetUpvalue
	} else {
		arg = c.identifierConstant(name)
		getOp, setOp = opcode.OpGetGlobal, opcode.OpSetGlobal
	}

	if canAssign && c.matchAssignOp() {
		opTok := c.previous.Type
		if opTok == token.ASSIGN {
			c.expression()
		} else {
			c.emitOpU16(getOp, arg)
			c.expression()
			c.emitCompoundOp(opTok)
		}
		c.emitOpU16(setOp, arg)
		return
	}
	c.emitOpU16(getOp, arg)
}

func thisExpr(c *Compiler, canAssign bool) {
	if c.classes == nil {
		c.errorAtPrevious("Can't use 'this' outside of a class.")
	}
	c.namedVariable("this", false)
}

func superExpr(c *Compiler, canAssign bool) {
	if c.classes == nil {
		c.errorAtPrevious("Can't use 'super' outside of a class.")
	} else if !c.classes.hasSuperclass {
		c.errorAtPrevious("Can't use 'super' in a class with no superclass.")
	}
	c.consume(token.DOT, "Expect '.' after 'super'.")
	c.consume(token.IDENT, "Expect superclass method name.")
	name := c.previous.Lexeme
	nameConst := c.identifierConstant(name)
	c.namedVariable("this", false)

	if c.match(token.LPAREN) {
		argCount := c.argumentList()
		c.namedVariable("super", false)
		c.emitOp(opcode.OpSuperInvoke)
		c.emitU16(nameConst)
		c.emitU8(argCount)
	} else {
		c.namedVariable("super", false)
		c.emitOpU16(opcode.OpGetSuper, nameConst)
	}
}
