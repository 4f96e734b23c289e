// Tarn CLI - parses, compiles and runs Tarn assembly programs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/tarnlang/tarn/asm"
	"github.com/tarnlang/tarn/compiler"
	"github.com/tarnlang/tarn/manifest"
	"github.com/tarnlang/tarn/vm"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	entry := flag.String("m", "", "Entry function override (default: the program's .entry declaration)")
	globalRegs := flag.Int("g", 0, "Global environment dynamic register count (default: manifest or 8)")
	dump := flag.Bool("dump", false, "Disassemble the compiled program and exit")
	traceStore := flag.String("trace-store", "", "Record executed instructions to a SQLite database at this path")
	snapshot := flag.String("snapshot", "", "Write a CBOR machine-state snapshot to this path after the run")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tarn [options] program.tasm\n\n")
		fmt.Fprintf(os.Stderr, "Compiles and runs a Tarn assembly program.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tarn prog.tasm                  # Run prog.tasm\n")
		fmt.Fprintf(os.Stderr, "  tarn -dump prog.tasm            # Show compiled instructions\n")
		fmt.Fprintf(os.Stderr, "  tarn -m main2 prog.tasm         # Run a different entry function\n")
		fmt.Fprintf(os.Stderr, "  tarn -trace-store t.db prog.tasm  # Record an execution trace\n")
	}
	flag.Parse()

	if *verbose {
		commonlog.Configure(1, nil)
	} else {
		commonlog.Configure(0, nil)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	// Pick up the tarn.toml governing the program file; flags override it.
	man, err := manifest.FindAndLoad(filepath.Dir(path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	globalCount := manifest.DefaultGlobalRegisters
	if man != nil {
		globalCount = man.Run.GlobalRegisters
		if *entry == "" {
			*entry = man.Run.Entry
		}
		if *traceStore == "" {
			*traceStore = man.Trace.Store
		}
		if *snapshot == "" {
			*snapshot = man.Trace.Snapshot
		}
	}
	if *globalRegs > 0 {
		globalCount = *globalRegs
	}

	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	symbolic, err := asm.Parse(string(source))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: parse errors:\n%v\n", path, err)
		os.Exit(1)
	}
	if *entry != "" {
		symbolic.Entry = *entry
	}

	prog, err := compiler.CompileProgram(symbolic)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: compile errors:\n%v\n", path, err)
		os.Exit(1)
	}

	if *dump {
		names := make([]string, 0, len(prog.Functions))
		for name := range prog.Functions {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Print(vm.Disassemble(prog.Functions[name], prog.Registry))
		}
		return
	}

	machine, err := vm.NewMachine(prog, globalCount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *traceStore != "" {
		store, err := vm.OpenTraceStore(*traceStore)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		machine.SetTracer(store)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runErr := machine.Run(ctx)

	if *snapshot != "" {
		snap := vm.CaptureSnapshot(machine.GlobalEnvironment())
		data, err := snap.Marshal()
		if err == nil {
			err = os.WriteFile(*snapshot, data, 0o644)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: writing snapshot: %v\n", err)
		}
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
	if *verbose {
		fmt.Printf("Executed %d instructions\n", machine.Steps())
	}
}
