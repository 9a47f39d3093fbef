package value

import "testing"

func TestNumberStringHasNoTrailingZeros(t *testing.T) {
	if got := Number(3).String(); got != "3" {
		t.Errorf("Number(3).String() = %q, want %q", got, "3")
	}
	if got := Number(3.5).String(); got != "3.5" {
		t.Errorf("Number(3.5).String() = %q, want %q", got, "3.5")
	}
}

func TestArrayStringFormatsCommaSeparated(t *testing.T) {
	arr := NewArray([]Value{Number(1), Number(2), String("x")})
	if got := arr.String(); got != "[1, 2, x]" {
		t.Errorf("Array.String() = %q", got)
	}
}

func TestInstanceDefaultStringIsClassNameInBrackets(t *testing.T) {
	class := NewClass("Dog", nil)
	inst := NewInstance(class)
	if got := inst.String(); got != "<Dog>" {
		t.Errorf("Instance.String() = %q, want <Dog>", got)
	}
}

func TestFindMethodWalksSuperclassChain(t *testing.T) {
	base := NewClass("Animal", nil)
	base.Methods["speak"] = &Closure{Function: &Function{Name: "speak"}}
	derived := NewClass("Dog", base)

	m, ok := derived.FindMethod("speak")
	if !ok || m.Function.Name != "speak" {
		t.Fatalf("expected to find inherited method, got %v %v", m, ok)
	}
}

func TestExceptionTypeMatchesAncestors(t *testing.T) {
	root := NewExceptionType("Exception", nil)
	child := NewExceptionType("ValueError", root)
	if !child.Matches("Exception") {
		t.Error("expected ValueError to match ancestor Exception")
	}
	if child.Matches("TypeError") {
		t.Error("did not expect ValueError to match unrelated TypeError")
	}
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Null, false},
		{Bool(false), false},
		{Bool(true), true},
		{Number(0), true},
		{String(""), true},
		{NewArray(nil), true},
	}
	for _, c := range cases {
		if got := Truthy(c.v); got != c.want {
			t.Errorf("Truthy(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestEqualNeverErrorsAcrossTags(t *testing.T) {
	if Equal(Number(1), String("1")) {
		t.Error("expected Number(1) != String(\"1\")")
	}
	if !Equal(Null, Null) {
		t.Error("expected Null == Null")
	}
	a := NewInstance(NewClass("A", nil))
	b := NewInstance(NewClass("A", nil))
	if Equal(a, b) {
		t.Error("expected distinct instances to compare unequal (identity semantics)")
	}
	if !Equal(a, a) {
		t.Error("expected an instance to equal itself")
	}
}

func TestUpvalueOpenThenClose(t *testing.T) {
	var slot Value = Number(42)
	uv := &Upvalue{Location: &slot}
	if uv.Get() != slot {
		t.Fatalf("expected open upvalue to read through Location")
	}
	uv.Set(Number(7))
	if slot != Number(7) {
		t.Fatalf("expected Set to write through Location while open")
	}
	uv.Close()
	if uv.Location != nil {
		t.Fatalf("expected Location to be nil after Close")
	}
	if uv.Get() != Number(7) {
		t.Fatalf("expected closed upvalue to retain its last value")
	}
}
