// Package collect implements the collection orchestration engine: the link
// runner, domain discoverer, producer set, worker pool, output router
// wiring, the collection task and the loop manager. RunContext is the single
// mutable value every link reads and narrows.
package collect

import (
	"context"
	"sync"
	"time"

	"github.com/lkarlslund/adalanche-collector/internal/cache"
	"github.com/lkarlslund/adalanche-collector/internal/methods"
	"github.com/lkarlslund/adalanche-collector/internal/processor"
	"github.com/lkarlslund/adalanche-collector/internal/status"
)

// EnumerationDomain is one domain targeted for enumeration. Identity is
// DomainSid; Name and DomainSid are always upper-cased.
type EnumerationDomain struct {
	Name      string
	DomainSid string
}

// Credentials bundles the optional LDAP bind identity.
type Credentials struct {
	Username string
	Password string
}

// RunContext is the single mutable value the link runner threads through
// every named step. Concurrent stages inside one collection task only ever
// read it or mutate disjoint fields (counters, cache, cancellation) after
// links have finished setting it up.
type RunContext struct {
	// Identity / targeting
	DomainName       string
	Domains          []EnumerationDomain
	SearchBase       string
	LdapFilter       string
	ComputerFilePath string

	// Output
	CacheFilePath    string
	OutputDirectory  string
	OutputPrefix     string
	ZipFilename      string
	ZipPassword      string

	// Collection configuration
	CollectionMethods methods.Method
	DCOnly            bool
	Attributes        []string

	// Timing
	Jitter        int // percent, 0-100
	Throttle      time.Duration
	StatusInterval time.Duration
	LoopDuration  time.Duration
	LoopInterval  time.Duration
	LoopEnd       time.Time

	// Credentials
	Creds Credentials

	// Concurrency
	Threads           int
	cancel            context.CancelFunc
	ctx               context.Context
	currentTask       *TaskHandle
	loopTimer         *LoopTimer

	// State flags
	IsFaulted                bool
	FaultReason              string
	InitialCompleted         bool
	NeedsCancellation        bool
	MemCache                 bool
	NoOutput                 bool
	Stealth                  bool
	Loop                     bool
	CollectAllProperties     bool
	ExcludeDomainControllers bool
	RecurseDomains           bool
	SearchForest             bool
	InvalidateCache          bool
	NoZip                    bool
	PrettyPrint              bool
	RandomizeFilenames       bool
	SkipRegistryLoggedOn     bool

	// Dependencies injected by cmd/ before the link runner starts.
	LDAPDialer       LDAPDialer
	Processors       *processor.Set
	Cache            *cache.Cache
	CacheBackend     cache.Backend
	CollectorVersion string
	Status           status.Reporter

	procStart string

	mu sync.Mutex // guards FaultReason/IsFaulted from concurrent Fault() calls
}

// NewRunContext returns a RunContext with its cancellation machinery wired
// up and ready for the link runner. procStart stamps every writer and the
// zip filename for this run, fixed once so a base run and its loop passes
// don't drift mid-run.
func NewRunContext() *RunContext {
	ctx, cancel := context.WithCancel(context.Background())
	return &RunContext{
		ctx:       ctx,
		cancel:    cancel,
		Threads:   1,
		Status:    status.NewNoop(),
		procStart: time.Now().UTC().Format("20060102150405"),
	}
}

// procStartStamp returns the fixed timestamp stem used in every output
// filename for this run.
func (rc *RunContext) procStartStamp() string { return rc.procStart }

// Context returns the cancellation-bearing context shared by every producer,
// worker and writer goroutine started from this run.
func (rc *RunContext) Context() context.Context { return rc.ctx }

// CancelNow fires the "cancel immediately" signal: every goroutine selecting
// on rc.Context().Done() unblocks right away.
func (rc *RunContext) CancelNow() { rc.cancel() }

// Cancelled reports whether CancelNow has already fired.
func (rc *RunContext) Cancelled() bool {
	select {
	case <-rc.ctx.Done():
		return true
	default:
		return false
	}
}

// Fault marks the run faulted with reason, the one mutation every link and
// goroutine is allowed to make concurrently.
func (rc *RunContext) Fault(reason string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if !rc.IsFaulted {
		rc.IsFaulted = true
		rc.FaultReason = reason
	}
}

// Faulted reports the current fault state under the same lock Fault uses.
func (rc *RunContext) Faulted() (bool, string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.IsFaulted, rc.FaultReason
}

// RequestLoopCancellation sets NeedsCancellation: a deferred cancel, observed
// by StartLoop at the next loop-iteration boundary rather than immediately.
// Producers and workers do not check it, so a pass already running (the base
// pass included) runs to completion.
func (rc *RunContext) RequestLoopCancellation() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.NeedsCancellation = true
}

// NeedsCancel reports whether a deferred cancellation has been requested.
func (rc *RunContext) NeedsCancel() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.NeedsCancellation
}

// TaskHandle tracks the most recently started collection task pass.
// AwaitBaseRunCompletion/AwaitLoopCompletion both await whatever handle was
// most recently assigned — StartLoop reassigns rc.currentTask
// and the runner always awaits that field, not a stale copy.
type TaskHandle struct {
	done chan struct{}
	err  error
}

func newTaskHandle() *TaskHandle { return &TaskHandle{done: make(chan struct{})} }

func (h *TaskHandle) finish(err error) {
	h.err = err
	close(h.done)
}

// Await blocks until the task handle's pass completes.
func (h *TaskHandle) Await() error {
	<-h.done
	return h.err
}

// SetCurrentTask records the latest Collection Task handle, per the
// most-recently-assigned-handle rule above.
func (rc *RunContext) SetCurrentTask(h *TaskHandle) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.currentTask = h
}

// CurrentTask returns whatever handle was most recently assigned.
func (rc *RunContext) CurrentTask() *TaskHandle {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.currentTask
}
