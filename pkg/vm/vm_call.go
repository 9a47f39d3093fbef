package vm

import "canidae/pkg/value"

// callValue dispatches a generic OpCall to whatever the callee is: a
// closure, a native, a class (construction), or a bound method.
func (vm *VM) callValue(callee value.Value, argCount int) bool {
	resultSlot := vm.sp - argCount - 1

	switch fn := callee.(type) {
	case *value.Closure:
		return vm.invokeClosure(fn, argCount)
	case *value.NativeFn:
		if fn.Arity >= 0 && argCount != fn.Arity {
			return vm.fault("Function '%s' expects %d arguments (got %d).", fn.Name, fn.Arity, argCount)
		}
		args := make([]value.Value, argCount)
		copy(args, vm.stack[vm.sp-argCount:vm.sp])
		result, err := fn.Fn(args)
		if err != nil {
			return vm.fault("%s", err.Error())
		}
		vm.stack[resultSlot] = result
		vm.sp = resultSlot + 1
		return true
	case *value.Class:
		instance := value.NewInstance(fn)
		if init, ok := fn.FindMethod("init"); ok {
			vm.stack[resultSlot] = instance
			return vm.invokeClosure(init, argCount)
		}
		if argCount != 0 {
			return vm.fault("Expected 0 arguments but got %d.", argCount)
		}
		vm.stack[resultSlot] = instance
		vm.sp = resultSlot + 1
		return true
	case *value.BoundMethod:
		vm.stack[resultSlot] = fn.Receiver
		return vm.invokeClosure(fn.Method, argCount)
	default:
		return vm.fault("Can only call functions, classes, and methods.")
	}
}

func (vm *VM) invokeClosure(closure *value.Closure, argCount int) bool {
	if argCount != closure.Function.Arity {
		name := closure.Function.Name
		if name == "" {
			name = "script"
		}
		return vm.fault("Function '%s' expects %d arguments (got %d).", name, closure.Function.Arity, argCount)
	}
	if len(vm.frames) >= maxFrames {
		return vm.fault("Stack overflow.")
	}
	frame := &Frame{closure: closure, ip: 0, slotBase: vm.sp - argCount - 1}
	vm.frames = append(vm.frames, frame)
	return true
}

// invoke fuses a property lookup with a call, avoiding a BoundMethod
// allocation for the common case of calling a method directly. A field
// holding a callable still falls back to field-then-call, per spec.
func (vm *VM) invoke(name string, argCount int) bool {
	receiver := vm.peek(argCount)
	inst, ok := receiver.(*value.Instance)
	if !ok {
		return vm.fault("Only instances have methods.")
	}
	if field, ok := inst.Fields[name]; ok {
		vm.stack[vm.sp-argCount-1] = field
		return vm.callValue(field, argCount)
	}
	method, ok := inst.Class.FindMethod(name)
	if !ok {
		return vm.fault("Undefined property '%s'.", name)
	}
	return vm.invokeClosure(method, argCount)
}

func (vm *VM) superInvoke(name string, argCount int) bool {
	super, ok := vm.pop().(*value.Class)
	if !ok {
		return vm.fault("Superclass must be a class.")
	}
	method, ok := super.FindMethod(name)
	if !ok {
		return vm.fault("Undefined property '%s'.", name)
	}
	return vm.invokeClosure(method, argCount)
}

func (vm *VM) getProperty(name string) bool {
	inst, ok := vm.peek(0).(*value.Instance)
	if !ok {
		return vm.fault("Only instances have properties.")
	}
	if field, ok := inst.Fields[name]; ok {
		vm.pop()
		vm.push(field)
		return true
	}
	if method, ok := inst.Class.FindMethod(name); ok {
		vm.pop()
		vm.push(&value.BoundMethod{Receiver: inst, Method: method})
		return true
	}
	return vm.fault("Undefined property '%s'.", name)
}

func (vm *VM) setProperty(name string) bool {
	val := vm.pop()
	inst, ok := vm.pop().(*value.Instance)
	if !ok {
		return vm.fault("Only instances have fields.")
	}
	inst.Fields[name] = val
	vm.push(val)
	return true
}

func (vm *VM) getSuper(name string) bool {
	super, ok := vm.pop().(*value.Class)
	if !ok {
		return vm.fault("Superclass must be a class.")
	}
	this, ok := vm.pop().(*value.Instance)
	if !ok {
		return vm.fault("'super' used outside of a method.")
	}
	method, ok := super.FindMethod(name)
	if !ok {
		return vm.fault("Undefined property '%s'.", name)
	}
	vm.push(&value.BoundMethod{Receiver: this, Method: method})
	return true
}
