package vm

import (
	"canidae/pkg/opcode"
	"canidae/pkg/value"
)

// arithmetic handles +, -, *, /, %, ^. Addition is overloaded for two
// strings and for two arrays (concatenation); every other combination, and
// every other operator, requires both operands to be numbers.
func (vm *VM) arithmetic(op opcode.Op) bool {
	b, a := vm.pop(), vm.pop()

	if op == opcode.OpAdd {
		if as, ok := a.(value.String); ok {
			if bs, ok := b.(value.String); ok {
				vm.push(as + bs)
				return true
			}
		}
		if aa, ok := a.(*value.Array); ok {
			if ba, ok := b.(*value.Array); ok {
				elems := make([]value.Value, 0, len(aa.Elements)+len(ba.Elements))
				elems = append(elems, aa.Elements...)
				elems = append(elems, ba.Elements...)
				vm.push(value.NewArray(elems))
				return true
			}
		}
	}

	an, aok := a.(value.Number)
	bn, bok := b.(value.Number)
	if !aok || !bok {
		return vm.fault("Operands must be numbers.")
	}

	switch op {
	case opcode.OpAdd:
		vm.push(an + bn)
	case opcode.OpSub:
		vm.push(an - bn)
	case opcode.OpMul:
		vm.push(an * bn)
	case opcode.OpDiv:
		if bn == 0 {
			return vm.fault("Division by zero.")
		}
		vm.push(an / bn)
	case opcode.OpMod:
		if bn == 0 {
			return vm.fault("Division by zero.")
		}
		vm.push(value.Number(int64(an) % int64(bn)))
	case opcode.OpPow:
		vm.push(powNumber(an, bn))
	}
	return true
}

func powNumber(base, exp value.Number) value.Number {
	result := value.Number(1)
	n := int(exp)
	neg := n < 0
	if neg {
		n = -n
	}
	for i := 0; i < n; i++ {
		result *= base
	}
	if neg {
		result = 1 / result
	}
	return result
}

func (vm *VM) compare(op opcode.Op) bool {
	b, a := vm.pop(), vm.pop()

	an, aIsNum := a.(value.Number)
	bn, bIsNum := b.(value.Number)
	as, aIsStr := a.(value.String)
	bs, bIsStr := b.(value.String)

	var less bool
	switch {
	case aIsNum && bIsNum:
		less = an < bn
	case aIsStr && bIsStr:
		less = as < bs
	case sameTag(a, b):
		return vm.fault("Cannot perform comparison on objects of different type.")
	default:
		return vm.fault("Cannot perform comparison on values of different type.")
	}

	equal := (aIsNum && an == bn) || (aIsStr && as == bs)
	switch op {
	case opcode.OpLess:
		vm.push(value.Bool(less))
	case opcode.OpLessEqual:
		vm.push(value.Bool(less || equal))
	case opcode.OpGreater:
		vm.push(value.Bool(!less && !equal))
	case opcode.OpGreaterEqual:
		vm.push(value.Bool(!less))
	}
	return true
}

func sameTag(a, b value.Value) bool {
	switch a.(type) {
	case value.Number:
		_, ok := b.(value.Number)
		return ok
	case value.String:
		_, ok := b.(value.String)
		return ok
	case value.Bool:
		_, ok := b.(value.Bool)
		return ok
	case *value.Array:
		_, ok := b.(*value.Array)
		return ok
	case *value.Instance:
		_, ok := b.(*value.Instance)
		return ok
	}
	return false
}

func (vm *VM) indexGet() bool {
	idxVal := vm.pop()
	target := vm.pop()
	idx, ok := idxVal.(value.Number)
	if !ok {
		return vm.fault("Array index must be a number.")
	}
	i := int(idx)

	switch t := target.(type) {
	case *value.Array:
		n := len(t.Elements)
		resolved, ok := resolveIndex(i, n)
		if !ok {
			return vm.indexFault(i, n, "array")
		}
		vm.push(t.Elements[resolved])
		return true
	case value.String:
		n := len(t)
		resolved, ok := resolveIndex(i, n)
		if !ok {
			return vm.indexFault(i, n, "string")
		}
		vm.push(value.String(string(t[resolved])))
		return true
	default:
		return vm.fault("Cannot index into value of this type.")
	}
}

func (vm *VM) indexSet() bool {
	val := vm.pop()
	idxVal := vm.pop()
	target := vm.pop()
	arr, ok := target.(*value.Array)
	if !ok {
		return vm.fault("Attempt to set at index of non-array value.")
	}
	idx, ok := idxVal.(value.Number)
	if !ok {
		return vm.fault("Array index must be a number.")
	}
	i := int(idx)
	n := len(arr.Elements)
	resolved, ok := resolveIndex(i, n)
	if !ok {
		return vm.indexFault(i, n, "array")
	}
	arr.Elements[resolved] = val
	vm.push(val)
	return true
}

func resolveIndex(i, n int) (int, bool) {
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

func (vm *VM) indexFault(i, n int, kind string) bool {
	if i >= 0 {
		return vm.fault("%s index %d exceeds max index of %s (%d).", capitalize(kind), i, kind, n-1)
	}
	return vm.fault("Index is less than min index of %s (-%d).", kind, n)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-('a'-'A')) + s[1:]
}
