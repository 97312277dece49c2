// Package output defines the tagged-union Record and the MetaTag written as
// the footer of every per-kind JSON file.
package output

// Kind is the tag that routes a Record to its writer.
type Kind string

const (
	KindUser      Kind = "users"
	KindGroup     Kind = "groups"
	KindComputer  Kind = "computers"
	KindDomain    Kind = "domains"
	KindGPO       Kind = "gpos"
	KindOU        Kind = "ous"
	KindContainer Kind = "containers"
	KindCertTemplate Kind = "certtemplates"
	KindCertAuthority Kind = "certauthorities"
)

// AllKinds enumerates every writer the output router owns, so the
// collection task can guarantee a writer with zero records never creates a
// file.
var AllKinds = []Kind{
	KindUser, KindGroup, KindComputer, KindDomain,
	KindGPO, KindOU, KindContainer, KindCertTemplate, KindCertAuthority,
}

// Record is one Processor-emitted output item: its Kind selects the writer,
// Payload is the already-serializable value the concrete Processor produced.
// The concrete per-kind record schema is left to the (out of scope) Processor;
// the engine only needs Kind to route and Payload to marshal.
type Record struct {
	Kind    Kind
	Payload any
}

// MetaTag is the footer written for every output file.
type MetaTag struct {
	Count             int    `json:"count"`
	CollectionMethods uint32 `json:"collection_methods"`
	DataType          string `json:"type"`
	Version           int    `json:"version"`
	CollectorVersion  string `json:"collector_version"`
}

// ProtocolVersion is the contract version with the downstream ingestor.
const ProtocolVersion = 6
