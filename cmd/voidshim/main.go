// Command voidshim launches a process graph with every process
// confined in its own namespace set, wired together by shim-managed
// pipes, and supervises the result until no processes remain.
package main

import (
	"fmt"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/voidshim/go-voidshim/debug"
	"github.com/voidshim/go-voidshim/orchestrator"
	"github.com/voidshim/go-voidshim/spec"
)

// exit code for shim-level failures, distinct from anything a mapped
// child status can produce via the aggregation rule
const exitSetupFailure = 255

func main() {
	os.Exit(run())
}

func run() int {
	var (
		specPath = flag.StringP("spec", "s", "", "process graph specification file (.json, .jsonc, .yaml)")
		debugRun = flag.BoolP("debug", "d", false, "stop each new process before exec so a debugger can attach")
		verbose  = flag.BoolP("verbose", "v", false, "verbose logging")
		sealExec = flag.Bool("memfd", false, "seal target binaries into a memfd before exec")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *specPath == "" {
		fmt.Fprintln(os.Stderr, "voidshim: a specification file is required")
		flag.Usage()
		return exitSetupFailure
	}

	graph, err := spec.LoadFile(*specPath)
	if err != nil {
		logger.Error("load specification", "path", *specPath, "err", err)
		return exitSetupFailure
	}

	code, err := orchestrator.New(orchestrator.Config{
		Graph:    graph,
		Debug:    debug.Controller{Enabled: *debugRun},
		SealExec: *sealExec,
		Logger:   logger,
	}).Run()
	if err != nil {
		logger.Error("run failed", "err", err)
		return exitSetupFailure
	}
	return code
}
