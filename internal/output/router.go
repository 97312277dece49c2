package output

import (
	"fmt"

	"github.com/lkarlslund/adalanche-collector/internal/collectlog"
)

// Router owns one Writer per Kind and dispatches each incoming Record by its
// Kind: it partitions output records by kind, with each writer appending to
// its own file.
type Router struct {
	writers map[Kind]*Writer
}

// NewRouter builds a writer for every kind in AllKinds.
func NewRouter(cfg Config) *Router {
	r := &Router{writers: make(map[Kind]*Writer, len(AllKinds))}
	for _, k := range AllKinds {
		r.writers[k] = NewWriter(k, cfg)
	}
	return r
}

// Pump drains records until the channel closes, routing each by Kind. It
// runs as the output router's single drain goroutine.
func (r *Router) Pump(records <-chan Record) {
	for rec := range records {
		w, ok := r.writers[rec.Kind]
		if !ok {
			collectlog.L.Warn().Str("kind", string(rec.Kind)).Msg("output: dropping record of unknown kind")
			continue
		}
		w.Write(rec.Payload)
	}
}

// FlushAll flushes every writer, collecting the first error encountered — a
// writer error (e.g. file pre-existence) is treated as a run fault — but
// still attempts every writer so a filename collision on one kind doesn't
// suppress the others' output.
func (r *Router) FlushAll(collectorVersion string, methods uint32) error {
	var firstErr error
	for _, k := range AllKinds {
		w := r.writers[k]
		if err := w.Flush(collectorVersion, methods); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("output: flush %s: %w", k, err)
		}
	}
	return firstErr
}

// Writer returns the writer for kind. Zip packaging enumerates the files
// actually produced through Files, not through this accessor.
func (r *Router) Writer(k Kind) *Writer { return r.writers[k] }

// Files returns the paths of every writer that actually produced a file.
func (r *Router) Files() []string {
	var out []string
	for _, k := range AllKinds {
		if p := r.writers[k].Path(); p != "" {
			out = append(out, p)
		}
	}
	return out
}
