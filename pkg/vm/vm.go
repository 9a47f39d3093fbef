// Package vm implements Canidae's stack-based bytecode interpreter: the
// frame stack, value stack, open-upvalue list, globals table, import cache,
// and exception handler stack described by the compiler's Chunk output.
package vm

import (
	"fmt"
	"io"
	"os"

	"canidae/pkg/diag"
	"canidae/pkg/opcode"
	"canidae/pkg/value"
)

const (
	stackMax  = 1 << 16
	maxFrames = 1024
)

// Frame is one active invocation record, per spec.md §3.3: slot 0 of the
// window beginning at slotBase is the callable itself (or the receiver).
type Frame struct {
	closure  *value.Closure
	ip       int
	slotBase int
}

type openUV struct {
	slot int
	uv   *value.Upvalue
}

type handlerEntry struct {
	frameDepth int
	stackDepth int
	catchIP    int
	typeNames  []string
	bindSlot   int
}

// VM is single-threaded and non-reentrant; one instance owns its entire
// value stack, frame stack, globals table, and import cache, which keeps
// multiple independent interpreters safe to run in separate goroutines.
type VM struct {
	stack [stackMax]value.Value
	sp    int

	frames []*Frame

	globals      map[string]value.Value
	openUpvalues []openUV
	handlers     []handlerEntry

	importCache map[string]*value.Instance
	baseDir     string

	genericExceptionType *value.ExceptionType
	runtimeErrorType     *value.ExceptionType

	uncaughtExc *value.Exception

	Stdout io.Writer
	Stderr io.Writer
}

// New constructs a VM ready to run fn as the top-level script. baseDir is
// the directory imports are resolved relative to.
func New(fn *value.Function, baseDir string) *VM {
	vm := &VM{
		globals:     map[string]value.Value{},
		importCache: map[string]*value.Instance{},
		baseDir:     baseDir,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}
	vm.seedExceptionHierarchy()
	closure := &value.Closure{Function: fn}
	vm.push(closure)
	vm.frames = append(vm.frames, &Frame{closure: closure, ip: 0, slotBase: 0})
	return vm
}

func (vm *VM) seedExceptionHierarchy() {
	vm.genericExceptionType = value.NewExceptionType("Exception", nil)
	vm.runtimeErrorType = value.NewExceptionType("RuntimeError", vm.genericExceptionType)
	vm.globals["Exception"] = vm.genericExceptionType
	vm.globals["RuntimeError"] = vm.runtimeErrorType
	for _, name := range []string{"ValueError", "TypeError", "IndexError", "ImportError", "ArgumentError"} {
		vm.globals[name] = value.NewExceptionType(name, vm.genericExceptionType)
	}
}

// Global looks up a global binding by name. SetGlobal is what the driver
// and natives use to install additional embedding-contract entries before
// Run.
func (vm *VM) Global(name string) (value.Value, bool) {
	v, ok := vm.globals[name]
	return v, ok
}

func (vm *VM) SetGlobal(name string, v value.Value) {
	vm.globals[name] = v
}

// AllGlobals exposes the live globals table, used by the REPL driver to
// carry bindings from one evaluated line's VM into the next.
func (vm *VM) AllGlobals() map[string]value.Value {
	return vm.globals
}

func (vm *VM) push(v value.Value) {
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() value.Value {
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.sp-1-distance]
}

func (vm *VM) readU8(f *Frame) byte {
	b := f.closure.Function.Chunk.Code[f.ip]
	f.ip++
	return b
}

func (vm *VM) readU16(f *Frame) int {
	hi := vm.readU8(f)
	lo := vm.readU8(f)
	return int(hi)<<8 | int(lo)
}

// Run executes until the top-level frame returns, or until an uncaught
// exception propagates to the driver.
func (vm *VM) Run() *diag.RuntimeError {
	return vm.runLoop(0)
}

// runLoop executes instructions until the frame stack depth drops to
// stopDepth (0 for the top-level script) or an uncaught exception occurs.
// stringify reenters it with stopDepth set to the depth before a nested
// "str" method call, letting that call run to completion with the same
// dispatch table instead of a duplicated one.
func (vm *VM) runLoop(stopDepth int) *diag.RuntimeError {
	for {
		frame := vm.frames[len(vm.frames)-1]
		code := frame.closure.Function.Chunk.Code
		op := opcode.Op(code[frame.ip])
		frame.ip++

		switch op {
		case opcode.OpConstant:
			idx := vm.readU16(frame)
			vm.push(frame.closure.Function.Chunk.Constants[idx])
		case opcode.OpNull:
			vm.push(value.Null)
		case opcode.OpTrue:
			vm.push(value.Bool(true))
		case opcode.OpFalse:
			vm.push(value.Bool(false))

		case opcode.OpPop:
			vm.pop()
		case opcode.OpDup:
			vm.push(vm.peek(0))
		case opcode.OpDup2:
			a, b := vm.peek(1), vm.peek(0)
			vm.push(a)
			vm.push(b)

		case opcode.OpGetLocal:
			idx := vm.readU16(frame)
			vm.push(vm.stack[frame.slotBase+idx])
		case opcode.OpSetLocal:
			idx := vm.readU16(frame)
			vm.stack[frame.slotBase+idx] = vm.peek(0)

		case opcode.OpDefineGlobal:
			idx := vm.readU16(frame)
			name := string(frame.closure.Function.Chunk.Constants[idx].(value.String))
			vm.globals[name] = vm.pop()
		case opcode.OpGetGlobal:
			idx := vm.readU16(frame)
			name := string(frame.closure.Function.Chunk.Constants[idx].(value.String))
			if v, ok := vm.globals[name]; ok {
				vm.push(v)
			} else {
				vm.push(value.Null)
			}
		case opcode.OpSetGlobal:
			idx := vm.readU16(frame)
			name := string(frame.closure.Function.Chunk.Constants[idx].(value.String))
			if _, ok := vm.globals[name]; !ok {
				if !vm.fault("Undefined variable '%s'.", name) {
					return vm.uncaughtError()
				}
				continue
			}
			vm.globals[name] = vm.peek(0)

		case opcode.OpGetUpvalue:
			idx := vm.readU16(frame)
			vm.push(frame.closure.Upvalues[idx].Get())
		case opcode.OpSetUpvalue:
			idx := vm.readU16(frame)
			frame.closure.Upvalues[idx].Set(vm.peek(0))
		case opcode.OpCloseUpvalue:
			vm.closeUpvalues(vm.sp - 1)
			vm.pop()

		case opcode.OpAdd, opcode.OpSub, opcode.OpMul, opcode.OpDiv, opcode.OpMod, opcode.OpPow:
			if !vm.arithmetic(op) {
				return vm.uncaughtError()
			}
		case opcode.OpNeg:
			n, ok := vm.peek(0).(value.Number)
			if !ok {
				vm.pop()
				if !vm.fault("Operand must be a number.") {
					return vm.uncaughtError()
				}
				continue
			}
			vm.pop()
			vm.push(-n)
		case opcode.OpNot:
			vm.push(value.Bool(!value.Truthy(vm.pop())))

		case opcode.OpEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))
		case opcode.OpNotEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(!value.Equal(a, b)))
		case opcode.OpLess, opcode.OpLessEqual, opcode.OpGreater, opcode.OpGreaterEqual:
			if !vm.compare(op) {
				return vm.uncaughtError()
			}

		case opcode.OpArrayBuild:
			n := vm.readU16(frame)
			elems := make([]value.Value, n)
			copy(elems, vm.stack[vm.sp-n:vm.sp])
			vm.sp -= n
			vm.push(value.NewArray(elems))
		case opcode.OpIndexGet:
			if !vm.indexGet() {
				return vm.uncaughtError()
			}
		case opcode.OpIndexSet:
			if !vm.indexSet() {
				return vm.uncaughtError()
			}

		case opcode.OpJump:
			offset := vm.readU16(frame)
			frame.ip += offset
		case opcode.OpJumpIfFalse:
			offset := vm.readU16(frame)
			if !value.Truthy(vm.peek(0)) {
				frame.ip += offset
			}
		case opcode.OpLoop:
			offset := vm.readU16(frame)
			frame.ip -= offset

		case opcode.OpPrint:
			fmt.Fprintln(vm.Stdout, vm.stringify(vm.pop()))

		case opcode.OpCall:
			argCount := int(vm.readU8(frame))
			callee := vm.peek(argCount)
			if !vm.callValue(callee, argCount) {
				return vm.uncaughtError()
			}
		case opcode.OpInvoke:
			nameIdx := vm.readU16(frame)
			argCount := int(vm.readU8(frame))
			name := string(frame.closure.Function.Chunk.Constants[nameIdx].(value.String))
			if !vm.invoke(name, argCount) {
				return vm.uncaughtError()
			}
		case opcode.OpSuperInvoke:
			nameIdx := vm.readU16(frame)
			argCount := int(vm.readU8(frame))
			name := string(frame.closure.Function.Chunk.Constants[nameIdx].(value.String))
			if !vm.superInvoke(name, argCount) {
				return vm.uncaughtError()
			}

		case opcode.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.slotBase)
			vm.frames = vm.frames[:len(vm.frames)-1]
			vm.sp = frame.slotBase
			// A return from inside a try body leaves that try's handler
			// behind; drop every handler that belonged to the popped frame.
			for len(vm.handlers) > 0 && vm.handlers[len(vm.handlers)-1].frameDepth > len(vm.frames) {
				vm.handlers = vm.handlers[:len(vm.handlers)-1]
			}
			if len(vm.frames) == stopDepth {
				if stopDepth == 0 {
					return nil
				}
				vm.push(result)
				return nil
			}
			vm.push(result)

		case opcode.OpClass:
			idx := vm.readU16(frame)
			name := string(frame.closure.Function.Chunk.Constants[idx].(value.String))
			vm.push(value.NewClass(name, nil))
		case opcode.OpInherit:
			sub, ok := vm.pop().(*value.Class)
			if !ok {
				if !vm.fault("Superclass must be a class.") {
					return vm.uncaughtError()
				}
				continue
			}
			super, ok := vm.peek(0).(*value.Class)
			if !ok {
				if !vm.fault("Superclass must be a class.") {
					return vm.uncaughtError()
				}
				continue
			}
			sub.Superclass = super
		case opcode.OpMethod:
			idx := vm.readU16(frame)
			name := string(frame.closure.Function.Chunk.Constants[idx].(value.String))
			method := vm.pop().(*value.Closure)
			class := vm.peek(0).(*value.Class)
			class.Methods[name] = method
		case opcode.OpGetProperty:
			idx := vm.readU16(frame)
			name := string(frame.closure.Function.Chunk.Constants[idx].(value.String))
			if !vm.getProperty(name) {
				return vm.uncaughtError()
			}
		case opcode.OpSetProperty:
			idx := vm.readU16(frame)
			name := string(frame.closure.Function.Chunk.Constants[idx].(value.String))
			if !vm.setProperty(name) {
				return vm.uncaughtError()
			}
		case opcode.OpGetSuper:
			idx := vm.readU16(frame)
			name := string(frame.closure.Function.Chunk.Constants[idx].(value.String))
			if !vm.getSuper(name) {
				return vm.uncaughtError()
			}

		case opcode.OpClosure:
			idx := vm.readU16(frame)
			fn := frame.closure.Function.Chunk.Constants[idx].(*value.Function)
			closure := &value.Closure{Function: fn, Upvalues: make([]*value.Upvalue, fn.UpvalueCount)}
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := vm.readU8(frame) != 0
				index := vm.readU16(frame)
				if isLocal {
					closure.Upvalues[i] = vm.captureUpvalue(frame.slotBase + index)
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}
			vm.push(closure)

		case opcode.OpPushHandler:
			idx := vm.readU16(frame)
			info := frame.closure.Function.Chunk.Handlers[idx]
			names := make([]string, len(info.Types))
			for i, c := range info.Types {
				names[i] = string(frame.closure.Function.Chunk.Constants[c].(value.String))
			}
			vm.handlers = append(vm.handlers, handlerEntry{
				frameDepth: len(vm.frames),
				stackDepth: vm.sp,
				catchIP:    info.CatchIP,
				typeNames:  names,
				bindSlot:   info.BindSlot,
			})
		case opcode.OpPopHandler:
			vm.handlers = vm.handlers[:len(vm.handlers)-1]
		case opcode.OpRaise:
			if !vm.doRaise() {
				return vm.uncaughtError()
			}

		case opcode.OpImport:
			idx := vm.readU16(frame)
			name := string(frame.closure.Function.Chunk.Constants[idx].(value.String))
			if !vm.doImport(name) {
				return vm.uncaughtError()
			}

		default:
			if !vm.fault("Unknown opcode %d.", byte(op)) {
				return vm.uncaughtError()
			}
		}
	}
}

func (vm *VM) closeUpvalues(fromSlot int) {
	i := 0
	for i < len(vm.openUpvalues) && vm.openUpvalues[i].slot >= fromSlot {
		vm.openUpvalues[i].uv.Close()
		i++
	}
	vm.openUpvalues = vm.openUpvalues[i:]
}

func (vm *VM) captureUpvalue(slot int) *value.Upvalue {
	for _, o := range vm.openUpvalues {
		if o.slot == slot {
			return o.uv
		}
	}
	uv := &value.Upvalue{Location: &vm.stack[slot]}
	insertAt := len(vm.openUpvalues)
	for i, o := range vm.openUpvalues {
		if o.slot < slot {
			insertAt = i
			break
		}
	}
	vm.openUpvalues = append(vm.openUpvalues, openUV{})
	copy(vm.openUpvalues[insertAt+1:], vm.openUpvalues[insertAt:])
	vm.openUpvalues[insertAt] = openUV{slot: slot, uv: uv}
	return uv
}

// stringify renders a value for `print`, consulting a user-defined "str"
// method on instances before falling back to the default representation
// (spec.md's open question on Instance formatting).
func (vm *VM) stringify(v value.Value) string {
	inst, ok := v.(*value.Instance)
	if !ok {
		return v.String()
	}
	method, ok := inst.Class.FindMethod("str")
	if !ok {
		return v.String()
	}
	stopDepth := len(vm.frames)
	vm.push(inst)
	if !vm.invokeClosure(method, 0) {
		return v.String()
	}
	if err := vm.runLoop(stopDepth); err != nil {
		return v.String()
	}
	result := vm.pop()
	if s, ok := result.(value.String); ok {
		return string(s)
	}
	return result.String()
}
