package main

import (
	"context"
	"fmt"
	"io"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v3"

	"canidae/pkg/compiler"
	"canidae/pkg/diag"
	"canidae/pkg/natives"
	"canidae/pkg/value"
	"canidae/pkg/vm"
)

// runRepl evaluates one line at a time. Each line compiles and runs in its
// own short-lived VM, but globals are threaded from one VM into the next
// so a variable declared on one line is visible on the next.
func runRepl(ctx context.Context, cmd *cli.Command) error {
	rl, err := readline.New("canidae> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	globals := map[string]value.Value{}

	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}

		c := compiler.New(line)
		fn, errs := c.Compile()
		if len(errs) > 0 {
			diag.Report(rl.Stderr(), errs)
			continue
		}

		machine := vm.New(fn, ".")
		natives.Install(machine)
		for k, v := range globals {
			machine.SetGlobal(k, v)
		}

		if rerr := machine.Run(); rerr != nil {
			fmt.Fprintln(rl.Stderr(), rerr.Error())
			continue
		}
		globals = machine.AllGlobals()
	}
}
