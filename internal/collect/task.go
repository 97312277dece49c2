// Collection task: one full producer -> worker pool -> output router
// pass over every target domain, followed by zip packaging and a cache save.
// The link runner starts one task for the base run and one per loop tick.
package collect

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/lkarlslund/adalanche-collector/internal/cache"
	"github.com/lkarlslund/adalanche-collector/internal/collectlog"
	"github.com/lkarlslund/adalanche-collector/internal/ldapobj"
	"github.com/lkarlslund/adalanche-collector/internal/output"
	"github.com/lkarlslund/adalanche-collector/internal/zipper"
)

// Task runs one Collection Task pass against rc.Domains.
type Task struct {
	rc       *RunContext
	loopPass bool
}

// NewTask builds a pass against the currently-resolved domain list.
// loopPass selects the loop-pass zip filename default over the base one.
func NewTask(rc *RunContext, loopPass bool) *Task {
	return &Task{rc: rc, loopPass: loopPass}
}

// Run executes the full pass: fan the target domains out across the
// producer strategy, drain through the worker pool into the output router,
// join every stage in order, flush, zip, and persist the resolver cache.
// A producer error against one domain is logged and does not abort the
// others; it is however folded into the returned error so the caller (and
// thus TaskHandle.Await) observes the run was incomplete.
func (t *Task) Run(ctx context.Context) error {
	rc := t.rc

	router := output.NewRouter(output.Config{
		OutputDir:         rc.OutputDirectory,
		OutputPrefix:      rc.OutputPrefix,
		ProcStartTime:     rc.procStartStamp(),
		PrettyPrint:       rc.PrettyPrint,
		RandomizeFilename: rc.RandomizeFilenames,
		NoOutput:          rc.NoOutput,
	})

	objects := make(chan *ldapobj.DirectoryObject, 256)
	records := make(chan output.Record, 256)

	var pumpWG sync.WaitGroup
	pumpWG.Add(1)
	go func() {
		defer pumpWG.Done()
		router.Pump(records)
	}()

	var workerWG sync.WaitGroup
	NewWorkerPool(rc).Run(ctx, objects, records, &workerWG)

	var prodWG sync.WaitGroup
	var prodErrMu sync.Mutex
	var prodErr error

	for _, domain := range rc.Domains {
		prodWG.Add(1)
		go func(d EnumerationDomain) {
			defer prodWG.Done()
			if err := t.produceDomain(ctx, SelectProducer(rc), d, objects); err != nil {
				collectlog.L.Warn().Err(err).Str("domain", d.Name).Msg("collection task: producer failed for domain")
				prodErrMu.Lock()
				if prodErr == nil {
					prodErr = err
				}
				prodErrMu.Unlock()
			}
		}(domain)
	}

	prodWG.Wait()
	close(objects)
	workerWG.Wait()
	close(records)
	pumpWG.Wait()

	if err := router.FlushAll(rc.CollectorVersion, uint32(rc.CollectionMethods)); err != nil {
		rc.Fault(fmt.Sprintf("collection task: %v", err))
		return err
	}

	if !rc.NoZip {
		if err := t.bundle(router); err != nil {
			rc.Fault(fmt.Sprintf("collection task: %v", err))
			return err
		}
	}

	if err := cache.Save(ctx, rc.CacheBackend, rc.Cache, rc.MemCache); err != nil {
		collectlog.L.Warn().Err(err).Msg("collection task: cache save failed, continuing")
	}

	return prodErr
}

func (t *Task) produceDomain(ctx context.Context, p Producer, d EnumerationDomain, out chan<- *ldapobj.DirectoryObject) error {
	client, err := t.rc.LDAPDialer(d)
	if err != nil {
		return fmt.Errorf("dial %s: %w", d.Name, err)
	}
	defer client.Close()
	return p.Produce(ctx, t.rc, d, client, out)
}

func (t *Task) bundle(router *output.Router) error {
	files := router.Files()
	if len(files) == 0 {
		return nil
	}
	name := t.rc.ZipFilename
	if name == "" {
		name = zipper.DefaultName(t.rc.procStartStamp(), t.rc.OutputPrefix, t.loopPass)
	}
	dest := filepath.Join(t.rc.OutputDirectory, name)
	return zipper.Bundle(dest, files, t.rc.ZipPassword)
}
