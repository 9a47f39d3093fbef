package vm

import (
	"bytes"
	"strings"
	"testing"

	"canidae/pkg/compiler"
)

func runScript(t *testing.T, src string) (string, *VM) {
	t.Helper()
	c := compiler.New(src)
	fn, errs := c.Compile()
	if len(errs) > 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	var out bytes.Buffer
	machine := New(fn, ".")
	machine.Stdout = &out
	if rerr := machine.Run(); rerr != nil {
		t.Fatalf("unexpected runtime error: %v", rerr)
	}
	return out.String(), machine
}

func TestPrintArithmetic(t *testing.T) {
	out, _ := runScript(t, `print 1 + 2 * 3;`)
	if strings.TrimSpace(out) != "7" {
		t.Errorf("got %q", out)
	}
}

func TestStringConcatenation(t *testing.T) {
	out, _ := runScript(t, `print "foo" + "bar";`)
	if strings.TrimSpace(out) != "foobar" {
		t.Errorf("got %q", out)
	}
}

func TestClosureCounterKeepsState(t *testing.T) {
	src := `
	fun makeCounter() {
		var n = 0;
		fun inc() {
			n = n + 1;
			return n;
		}
		return inc;
	}
	var c = makeCounter();
	print c();
	print c();
	print c();
	`
	out, _ := runScript(t, src)
	lines := strings.Fields(out)
	if strings.Join(lines, ",") != "1,2,3" {
		t.Errorf("got %q", out)
	}
}

func TestClassInheritanceAndSuper(t *testing.T) {
	src := `
	class Animal {
		init(name) { this.name = name; }
		speak() { return "..."; }
	}
	class Dog : Animal {
		speak() { return this.name + " says " + super.speak() + "woof"; }
	}
	var d = Dog("Rex");
	print d.speak();
	`
	out, _ := runScript(t, src)
	if strings.TrimSpace(out) != "Rex says ...woof" {
		t.Errorf("got %q", out)
	}
}

func TestArrayIndexingAndNegativeIndex(t *testing.T) {
	src := `
	var a = [10, 20, 30];
	print a[0];
	print a[-1];
	a[1] += 5;
	print a[1];
	`
	out, _ := runScript(t, src)
	got := strings.Fields(out)
	want := []string{"10", "30", "25"}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("line %d: got %q want %q", i, got[i], w)
		}
	}
}

func TestArrayOutOfBoundsMessage(t *testing.T) {
	c := compiler.New(`var a = [1, 2, 3]; print a[3];`)
	fn, errs := c.Compile()
	if len(errs) > 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	machine := New(fn, ".")
	rerr := machine.Run()
	if rerr == nil {
		t.Fatal("expected a runtime error")
	}
	if !strings.Contains(rerr.Message, "Array index 3 exceeds max index of array (2)") {
		t.Errorf("got message %q", rerr.Message)
	}
}

func TestArrayNegativeOutOfBoundsMessage(t *testing.T) {
	c := compiler.New(`var a = [1, 2, 3]; print a[-4];`)
	fn, errs := c.Compile()
	if len(errs) > 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	machine := New(fn, ".")
	rerr := machine.Run()
	if rerr == nil {
		t.Fatal("expected a runtime error")
	}
	if !strings.Contains(rerr.Message, "Index is less than min index of array (-3)") {
		t.Errorf("got message %q", rerr.Message)
	}
}

func TestArrayConcatenation(t *testing.T) {
	out, _ := runScript(t, `print [1, 2, 3] + [4, 5, 6];`)
	if strings.TrimSpace(out) != "[1, 2, 3, 4, 5, 6]" {
		t.Errorf("got %q", out)
	}
}

func TestTryCatchHandlesTypedException(t *testing.T) {
	src := `
	try {
		raise ValueError;
	} catch (ValueError as e) {
		print "caught";
	} end
	`
	out, _ := runScript(t, src)
	if strings.TrimSpace(out) != "caught" {
		t.Errorf("got %q", out)
	}
}

func TestUncaughtRaiseProducesRuntimeError(t *testing.T) {
	c := compiler.New(`raise "boom";`)
	fn, errs := c.Compile()
	if len(errs) > 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	machine := New(fn, ".")
	rerr := machine.Run()
	if rerr == nil {
		t.Fatal("expected an uncaught runtime error")
	}
	if !strings.Contains(rerr.Message, "boom") {
		t.Errorf("got %q", rerr.Message)
	}
}

func TestBreakAndContinueInWhileLoop(t *testing.T) {
	src := `
	var i = 0;
	var sum = 0;
	while i < 10 do
		i = i + 1;
		if i == 5 { continue; }
		if i == 8 { break; }
		sum = sum + i;
	end
	print sum;
	`
	out, _ := runScript(t, src)
	if strings.TrimSpace(out) != "23" {
		t.Errorf("got %q", out)
	}
}

func TestUndeclaredGlobalReadYieldsNull(t *testing.T) {
	out, _ := runScript(t, `print undeclaredThing;`)
	if strings.TrimSpace(out) != "null" {
		t.Errorf("got %q", out)
	}
}
