// Package processor declares the per-object Processor boundary. ACL parsing,
// session enumeration, registry queries and SPN parsing are all out of scope
// for the orchestration engine itself, treated as pluggable Processors
// invoked per object; this package only provides the seam the worker pool
// calls through. It ships no Processor implementation of its own.
package processor

import (
	"context"

	"github.com/lkarlslund/adalanche-collector/internal/ldapobj"
	"github.com/lkarlslund/adalanche-collector/internal/methods"
	"github.com/lkarlslund/adalanche-collector/internal/output"
)

// Options carries the per-dispatch bits the worker pool must thread through
// to a Processor without interpreting them itself: CollectAllProperties and
// SkipRegistryLoggedOn are both consumed entirely by real processors, never
// by the orchestration engine.
type Options struct {
	Methods               methods.Method
	CollectAllProperties  bool
	SkipRegistryLoggedOn  bool
}

// Processor turns one DirectoryObject into zero or more OutputRecords.
type Processor interface {
	// Process is called once per dequeued object. ctx carries per-run
	// cancellation; implementations should check it on any blocking call
	// (session enumeration, registry reads) and return promptly.
	Process(ctx context.Context, obj *ldapobj.DirectoryObject, opts Options) ([]output.Record, error)
}

// Set dispatches to the Processor registered for an object's inferred kind.
type Set struct {
	byKind map[output.Kind]Processor
}

// NewSet builds an empty dispatch table; RegisterKind populates it.
func NewSet() *Set {
	return &Set{byKind: make(map[output.Kind]Processor)}
}

// RegisterKind assigns p as the handler for objects inferred to be kind.
func (s *Set) RegisterKind(kind output.Kind, p Processor) {
	s.byKind[kind] = p
}

// Process dispatches obj to the processor registered for kind, returning no
// records (not an error) when nothing is registered for that kind.
func (s *Set) Process(ctx context.Context, kind output.Kind, obj *ldapobj.DirectoryObject, opts Options) ([]output.Record, error) {
	p, ok := s.byKind[kind]
	if !ok {
		return nil, nil
	}
	return p.Process(ctx, obj, opts)
}
