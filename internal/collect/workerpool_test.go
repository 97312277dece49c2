package collect

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lkarlslund/adalanche-collector/internal/ldapobj"
	"github.com/lkarlslund/adalanche-collector/internal/output"
	"github.com/lkarlslund/adalanche-collector/internal/processor"
)

type recordingProcessor struct {
	mu  sync.Mutex
	dns []string
}

func (p *recordingProcessor) Process(_ context.Context, obj *ldapobj.DirectoryObject, _ processor.Options) ([]output.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dns = append(p.dns, obj.DN())
	return []output.Record{{Kind: output.KindUser, Payload: obj.DN()}}, nil
}

func TestWorkerPoolDispatchesEveryObjectAndClosesOnInputClose(t *testing.T) {
	rc := NewRunContext()
	rc.Threads = 3
	rc.Processors = processor.NewSet()
	proc := &recordingProcessor{}
	rc.Processors.RegisterKind(output.KindUser, proc)

	in := make(chan *ldapobj.DirectoryObject, 10)
	out := make(chan output.Record, 10)
	for i := 0; i < 5; i++ {
		in <- ldapobj.New(&ldap.Entry{DN: "user", Attributes: []*ldap.EntryAttribute{{Name: "objectClass", Values: []string{"user"}}}})
	}
	close(in)

	var wg sync.WaitGroup
	NewWorkerPool(rc).Run(context.Background(), in, out, &wg)

	wg.Wait()
	close(out)

	var got []output.Record
	for rec := range out {
		got = append(got, rec)
	}
	require.Len(t, got, 5)
	assert.Len(t, proc.dns, 5)
}

func TestWorkerPoolStopsOnContextCancel(t *testing.T) {
	rc := NewRunContext()
	rc.Threads = 1
	rc.Processors = processor.NewSet()

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan *ldapobj.DirectoryObject)
	out := make(chan output.Record)

	var wg sync.WaitGroup
	NewWorkerPool(rc).Run(ctx, in, out, &wg)
	cancel()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker pool did not stop after context cancellation")
	}
}
