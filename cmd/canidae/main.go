// Command canidae is the reference driver for the language: compile a
// script, run it, or drop into a REPL.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"canidae/pkg/compiler"
	"canidae/pkg/config"
	"canidae/pkg/diag"
	"canidae/pkg/natives"
	"canidae/pkg/vm"
)

func main() {
	config.Load()

	cmd := &cli.Command{
		Name:  "canidae",
		Usage: "compile and run Canidae scripts",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "abort the script if it runs longer than this",
			},
			&cli.BoolFlag{
				Name:  "disasm",
				Usage: "print the compiled bytecode instead of running it",
			},
		},
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "path"},
		},
		Action: run,
		Commands: []*cli.Command{
			{
				Name:   "repl",
				Usage:  "start an interactive session",
				Action: runRepl,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(diag.ExitRuntime)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return runRepl(ctx, cmd)
	}

	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(diag.ExitRuntime)
	}

	c := compiler.New(string(src))
	fn, errs := c.Compile()
	if len(errs) > 0 {
		os.Exit(diag.Report(os.Stderr, errs))
	}

	if cmd.Bool("disasm") {
		disassemble(fn)
		return nil
	}

	machine := vm.New(fn, filepath.Dir(path))
	natives.Install(machine)

	if timeout := cmd.Duration("timeout"); timeout > 0 {
		os.Exit(runWithTimeout(machine, timeout))
	}

	if rerr := machine.Run(); rerr != nil {
		os.Exit(diag.ReportRuntime(os.Stderr, rerr))
	}
	os.Exit(diag.ExitOK)
	return nil
}

func runWithTimeout(machine *vm.VM, timeout time.Duration) int {
	done := make(chan *diag.RuntimeError, 1)
	go func() { done <- machine.Run() }()
	select {
	case rerr := <-done:
		if rerr != nil {
			return diag.ReportRuntime(os.Stderr, rerr)
		}
		return diag.ExitOK
	case <-time.After(timeout):
		fmt.Fprintln(os.Stderr, "script exceeded its timeout")
		return diag.ExitRuntime
	}
}
