// Command adalanche-collector runs one collection pass (and, with --loop,
// repeated passes) against an Active Directory domain and writes the
// results as JSON, optionally bundled into a zip.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lkarlslund/adalanche-collector/internal/collect"
	"github.com/lkarlslund/adalanche-collector/internal/collectlog"
	"github.com/lkarlslund/adalanche-collector/internal/processor"
	"github.com/lkarlslund/adalanche-collector/internal/runopts"
	"github.com/lkarlslund/adalanche-collector/internal/status"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	opts, err := runopts.Parse(argv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	collectlog.SetVerbosity(opts.Verbosity)

	rc := opts.ToRunContext()
	rc.CollectorVersion = version
	rc.Processors = processor.NewSet()

	backend, err := runopts.NewCacheBackend(rc.Context(), opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	rc.CacheBackend = backend

	if opts.TUI {
		rc.Status = status.NewTUIReporter(opts.StatusInterval)
	} else {
		rc.Status = status.NewBarReporter(os.Stderr, opts.StatusInterval)
	}
	defer rc.Status.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		collectlog.L.Warn().Msg("main: interrupt received, requesting deferred cancellation")
		rc.RequestLoopCancellation()
		<-sigCh // second signal forces an immediate stop
		collectlog.L.Warn().Msg("main: second interrupt received, cancelling now")
		rc.CancelNow()
	}()

	started := time.Now()
	collect.Run(rc)

	faulted, reason := rc.Faulted()
	status.PrintSummary(os.Stderr, status.Summary{
		Phase:       "run",
		Duration:    time.Since(started),
		Faulted:     faulted,
		FaultReason: reason,
	})

	if faulted {
		return 1
	}
	return 0
}
