// Worker pool: N concurrent workers pull DirectoryObjects off one
// channel, run them through the Processor set and forward emitted records to
// the output stage.
package collect

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/lkarlslund/adalanche-collector/internal/collectlog"
	"github.com/lkarlslund/adalanche-collector/internal/ldapobj"
	"github.com/lkarlslund/adalanche-collector/internal/output"
	"github.com/lkarlslund/adalanche-collector/internal/processor"
)

// WorkerPool drains a DirectoryObject channel into a Record channel through
// rc.Processors, running max(1, rc.Threads) workers concurrently.
type WorkerPool struct {
	rc *RunContext
}

// NewWorkerPool builds a pool bound to rc's thread count and processor set.
func NewWorkerPool(rc *RunContext) *WorkerPool {
	return &WorkerPool{rc: rc}
}

// Run starts the configured number of workers and returns immediately; wg is
// incremented once per worker and Done is called as each exits, so the
// Collection Task can close the output channel once every worker has
// finished.
func (wp *WorkerPool) Run(ctx context.Context, in <-chan *ldapobj.DirectoryObject, out chan<- output.Record, wg *sync.WaitGroup) {
	n := wp.rc.Threads
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go wp.worker(ctx, in, out, wg)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, in <-chan *ldapobj.DirectoryObject, out chan<- output.Record, wg *sync.WaitGroup) {
	defer wg.Done()

	opts := processor.Options{
		Methods:              wp.rc.CollectionMethods,
		CollectAllProperties: wp.rc.CollectAllProperties,
		SkipRegistryLoggedOn: wp.rc.SkipRegistryLoggedOn,
	}

	for {
		select {
		case <-ctx.Done():
			return
		case obj, ok := <-in:
			if !ok {
				return
			}
			wp.throttle(ctx)

			kind := processor.InferKind(obj)
			records, err := wp.rc.Processors.Process(ctx, kind, obj, opts)
			wp.rc.Status.ObjectProcessed()
			if err != nil {
				collectlog.L.Warn().Err(err).Str("dn", obj.DN()).Msg("worker pool: processor error, skipping object")
				continue
			}
			for _, rec := range records {
				select {
				case <-ctx.Done():
					return
				case out <- rec:
				}
			}
		}
	}
}

// throttle sleeps for rc.Throttle plus up to rc.Jitter percent of it, the
// per-object pacing knob that keeps a run from hammering a domain controller.
func (wp *WorkerPool) throttle(ctx context.Context) {
	if wp.rc.Throttle <= 0 {
		return
	}
	d := wp.rc.Throttle
	if wp.rc.Jitter > 0 {
		extra := time.Duration(rand.Int63n(int64(d) * int64(wp.rc.Jitter) / 100))
		d += extra
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
