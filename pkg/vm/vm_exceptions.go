package vm

import (
	"fmt"

	"canidae/pkg/diag"
	"canidae/pkg/value"
)

// fault raises a host-detected runtime fault (type error, bad index,
// arity mismatch, ...) as a RuntimeError exception, going through the same
// handler-stack search as a user `raise`.
func (vm *VM) fault(format string, args ...interface{}) bool {
	msg := fmt.Sprintf(format, args...)
	return vm.raise(value.NewException(vm.runtimeErrorType, msg))
}

// raise searches the handler stack from innermost outward. A handler
// that doesn't match the exception's type is discarded along with the
// ones above it — spec.md's unwind pops frames and handler entries until
// a matching handler is found, or the handler stack runs dry.
func (vm *VM) raise(exc *value.Exception) bool {
	for len(vm.handlers) > 0 {
		h := vm.handlers[len(vm.handlers)-1]
		vm.handlers = vm.handlers[:len(vm.handlers)-1]

		if len(h.typeNames) > 0 && !matchesAny(exc.Type, h.typeNames) {
			continue
		}

		vm.frames = vm.frames[:h.frameDepth]
		vm.sp = h.stackDepth
		frame := vm.frames[len(vm.frames)-1]
		frame.ip = h.catchIP
		if h.bindSlot >= 0 {
			// The catch block's endScope will emit a pop for this local same
			// as any other, so it has to actually occupy the top of stack,
			// not just be poked into the array underneath sp.
			vm.stack[frame.slotBase+h.bindSlot] = exc
			vm.sp = frame.slotBase + h.bindSlot + 1
		}
		return true
	}
	vm.uncaughtExc = exc
	return false
}

func matchesAny(typ *value.ExceptionType, names []string) bool {
	for _, n := range names {
		if typ.Matches(n) {
			return true
		}
	}
	return false
}

// doRaise implements OpRaise: a raised String is wrapped into a generic
// exception, an ExceptionType is instantiated with no message, and an
// Exception value is propagated as-is.
func (vm *VM) doRaise() bool {
	v := vm.pop()
	var exc *value.Exception
	switch vv := v.(type) {
	case value.String:
		exc = value.NewException(vm.genericExceptionType, string(vv))
	case *value.ExceptionType:
		exc = value.NewException(vv, "")
	case *value.Exception:
		exc = vv
	default:
		return vm.fault("Can only raise strings, exception types, or exceptions.")
	}
	return vm.raise(exc)
}

// uncaughtError builds the final diagnostic once an exception has run the
// handler stack dry. The frame stack is still intact at this point (raise
// only truncates it on a successful match), so it doubles as the trace.
func (vm *VM) uncaughtError() *diag.RuntimeError {
	trace := make([]diag.StackTraceEntry, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		f := vm.frames[i]
		line := 0
		lines := f.closure.Function.Chunk.Lines
		if idx := f.ip - 1; idx >= 0 && idx < len(lines) {
			line = lines[idx]
		}
		desc := "script"
		if f.closure.Function.Name != "" {
			desc = "<function " + f.closure.Function.Name + ">"
		}
		trace = append(trace, diag.StackTraceEntry{Line: line, FunctionDesc: desc})
	}
	return &diag.RuntimeError{Message: vm.uncaughtExc.String(), Trace: trace}
}
