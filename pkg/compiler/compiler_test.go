package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"canidae/pkg/opcode"
)

func compileOK(t *testing.T, src string) *Compiler {
	t.Helper()
	c := New(src)
	fn, errs := c.Compile()
	assert.Empty(t, errs, "unexpected compile errors: %v", errs)
	assert.NotNil(t, fn)
	return c
}

func TestSimpleArithmeticEmitsExpectedOpcodes(t *testing.T) {
	c := New("print 1 + 2;")
	fn, errs := c.Compile()
	assert.Empty(t, errs)
	code := fn.Chunk.Code
	assert.Contains(t, code, byte(opcode.OpAdd))
	assert.Contains(t, code, byte(opcode.OpPrint))
}

func TestLocalVariablesDoNotEmitGlobalOps(t *testing.T) {
	c := New("{ var a = 1; a = a + 1; print a; }")
	fn, errs := c.Compile()
	assert.Empty(t, errs)
	for _, b := range fn.Chunk.Code {
		assert.NotEqual(t, byte(opcode.OpDefineGlobal), b)
		assert.NotEqual(t, byte(opcode.OpGetGlobal), b)
		assert.NotEqual(t, byte(opcode.OpSetGlobal), b)
	}
}

func TestClosureCapturesOuterLocal(t *testing.T) {
	src := `
	fun makeCounter() {
		var count = 0;
		fun inc() {
			count = count + 1;
			return count;
		}
		return inc;
	}
	`
	compileOK(t, src)
}

func TestSelfReadInInitializerIsAnError(t *testing.T) {
	c := New("{ var a = a; }")
	_, errs := c.Compile()
	assert.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if e.Message == "Can't read local variable in its own initializer." {
			found = true
		}
	}
	assert.True(t, found, "expected self-initializer error, got %v", errs)
}

func TestDuplicateLocalInSameScopeIsAnError(t *testing.T) {
	c := New("{ var a = 1; var a = 2; }")
	_, errs := c.Compile()
	assert.NotEmpty(t, errs)
}

func TestThisOutsideMethodIsAnError(t *testing.T) {
	c := New("print this;")
	_, errs := c.Compile()
	assert.NotEmpty(t, errs)
	assert.Equal(t, "this", errs[0].Lexeme)
}

func TestSuperOutsideSubclassIsAnError(t *testing.T) {
	c := New(`class A { greet() { print super.greet; } }`)
	_, errs := c.Compile()
	assert.NotEmpty(t, errs)
	assert.Equal(t, "super", errs[0].Lexeme)
}

func TestMissingSemicolonIsAnError(t *testing.T) {
	c := New("var a = 1")
	_, errs := c.Compile()
	assert.NotEmpty(t, errs)
}

func TestEmptyConditionProducesExpectExpression(t *testing.T) {
	c := New("while do print 1; end")
	_, errs := c.Compile()
	assert.NotEmpty(t, errs)
	assert.Equal(t, 1, errs[0].Line)
	assert.Equal(t, "do", errs[0].Lexeme)
	assert.Equal(t, "Expect expression.", errs[0].Message)
}

func TestClassWithMethodsCompiles(t *testing.T) {
	src := `
	class A { greet() { print "hi"; } }
	class B : A { greet() { super.greet(); print "bye"; } }
	B().greet();
	`
	compileOK(t, src)
}

func TestTryCatchRegistersHandler(t *testing.T) {
	src := `try { raise "boom"; } catch { print "Caught"; } end`
	c := New(src)
	fn, errs := c.Compile()
	assert.Empty(t, errs)
	assert.Len(t, fn.Chunk.Handlers, 1)
	assert.Equal(t, -1, fn.Chunk.Handlers[0].BindSlot)
}

func TestTryCatchWithTypedBinding(t *testing.T) {
	src := `try { raise "boom"; } catch (ValueError as e) { print e; } end`
	c := New(src)
	fn, errs := c.Compile()
	assert.Empty(t, errs)
	assert.Len(t, fn.Chunk.Handlers, 1)
	assert.Len(t, fn.Chunk.Handlers[0].Types, 1)
	assert.GreaterOrEqual(t, fn.Chunk.Handlers[0].BindSlot, 0)
}
