package output

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/uuid"
	jsoniter "github.com/json-iterator/go"
)

// qjson is the package-level jsoniter config used for all envelope
// marshaling (qjson = jsoniter.ConfigCompatibleWithStandardLibrary).
var qjson = jsoniter.ConfigCompatibleWithStandardLibrary

// Writer owns one output file for one Kind. Records are buffered until
// Flush so the file is only created once at least one record has arrived —
// a writer that never received a record leaves no file on disk — and Flush
// can remain idempotent.
type Writer struct {
	mu sync.Mutex

	DataType string
	Kind     Kind

	dir               string
	prefix            string
	procStart         string
	pretty            bool
	randomizeFilename bool
	noOp              bool

	queue    []any
	count    int
	flushed  bool
	path     string
	fileOpen bool
}

// Config bundles the naming inputs every Writer in a run shares.
type Config struct {
	OutputDir         string
	OutputPrefix      string
	ProcStartTime     string // stable across every writer+the zip for one run
	PrettyPrint       bool
	RandomizeFilename bool
	NoOutput          bool
}

// NewWriter builds a Writer for kind, not touching the filesystem yet.
func NewWriter(kind Kind, cfg Config) *Writer {
	return &Writer{
		DataType:          string(kind),
		Kind:              kind,
		dir:               cfg.OutputDir,
		prefix:            cfg.OutputPrefix,
		procStart:         cfg.ProcStartTime,
		pretty:            cfg.PrettyPrint,
		randomizeFilename: cfg.RandomizeFilename,
		noOp:              cfg.NoOutput,
	}
}

// Write enqueues one already-typed record payload. A no-op when NoOutput is
// set: the record is counted towards nothing and never touches disk.
func (w *Writer) Write(payload any) {
	if w.noOp {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.queue = append(w.queue, payload)
}

// resolveFileName implements the output naming scheme:
// "<procStartTime>_<?prefix_>[<randomName>|<dataType>].<ext>".
func (w *Writer) resolveFileName() (string, error) {
	stem := w.DataType
	if w.randomizeFilename {
		id, err := uuid.NewV4()
		if err != nil {
			return "", fmt.Errorf("output: generate random filename: %w", err)
		}
		stem = id.String()
	}

	name := w.procStart + "_"
	if w.prefix != "" {
		name += w.prefix + "_"
	}
	name += stem + ".json"

	full := filepath.Join(w.dir, name)
	if _, err := os.Stat(full); err == nil {
		return "", fmt.Errorf("output: filename collision, refusing to overwrite %s", full)
	}
	return full, nil
}

// Flush writes the accumulated queue as the JSON envelope and closes the
// file. Idempotent: a second call is a no-op.
// methods is the CollectionMethods bitset stamped into the meta footer.
func (w *Writer) Flush(collectorVersion string, methods uint32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.flushed || w.noOp || len(w.queue) == 0 {
		w.flushed = true
		return nil
	}

	path, err := w.resolveFileName()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("output: mkdir for %s: %w", path, err)
	}

	var buf bytes.Buffer
	buf.WriteString(`{"data":[`)
	for i, rec := range w.queue {
		if i > 0 {
			buf.WriteByte(',')
		}
		raw, err := marshal(rec, w.pretty)
		if err != nil {
			return fmt.Errorf("output: marshal %s record %d: %w", w.DataType, i, err)
		}
		buf.Write(raw)
	}
	buf.WriteString(`],"meta":`)

	meta := MetaTag{
		Count:             len(w.queue),
		CollectionMethods: methods,
		DataType:          w.DataType,
		Version:           ProtocolVersion,
		CollectorVersion:  collectorVersion,
	}
	metaRaw, err := marshal(meta, w.pretty)
	if err != nil {
		return fmt.Errorf("output: marshal meta for %s: %w", w.DataType, err)
	}
	buf.Write(metaRaw)
	buf.WriteByte('}')

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}

	w.path = path
	w.fileOpen = true
	w.count = len(w.queue)
	w.flushed = true
	return nil
}

func marshal(v any, pretty bool) ([]byte, error) {
	if pretty {
		return qjson.MarshalIndent(v, "", "  ")
	}
	return qjson.Marshal(v)
}

// Path returns the resolved output file path, empty if nothing was flushed.
func (w *Writer) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}
