package vm

import (
	"os"
	"path/filepath"

	"canidae/pkg/compiler"
	"canidae/pkg/value"
)

// doImport resolves name.can relative to baseDir, compiles and executes it
// at most once per absolute path (repeat imports, including cycles, reuse
// the cached module), and binds the result as a global named after the
// module's base filename.
func (vm *VM) doImport(name string) bool {
	path := filepath.Join(vm.baseDir, name+".can")
	abs, err := filepath.Abs(path)
	if err != nil {
		return vm.fault("Cannot resolve module '%s'.", name)
	}

	if mod, ok := vm.importCache[abs]; ok {
		vm.globals[name] = mod
		return true
	}

	// Register a placeholder before running the module body so a cyclic
	// import observes the partially-populated module instead of recursing.
	placeholder := value.NewInstance(value.NewClass("module:"+name, nil))
	vm.importCache[abs] = placeholder
	vm.globals[name] = placeholder

	src, err := os.ReadFile(path)
	if err != nil {
		return vm.fault("Could not open file %s.", abs)
	}

	c := compiler.New(string(src))
	fn, errs := c.Compile()
	if len(errs) > 0 {
		return vm.fault("Module '%s' failed to compile: %s", name, errs[0].Error())
	}

	sub := New(fn, filepath.Dir(abs))
	sub.importCache = vm.importCache
	if rerr := sub.Run(); rerr != nil {
		return vm.fault("Module '%s' raised: %s", name, rerr.Message)
	}

	for k, v := range sub.globals {
		placeholder.Fields[k] = v
	}
	return true
}
