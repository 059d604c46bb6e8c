package column

import (
	"bytes"
	"fmt"
	"reflect"
	"sync"

	"github.com/c2h5oh/datasize"
	pq "github.com/parquet-go/parquet-go"

	"github.com/ahcal-reco/ahcal-reco/internal/errkind"
	"github.com/ahcal-reco/ahcal-reco/pkg/rlog"
)

// Writer owns one tabular dataset and a map of column-name to typed
// buffer, per spec §4.D. Columns are declared lazily on first bind;
// Fill snapshots every bound column's current pointee into a new row.
type Writer struct {
	mu     sync.Mutex
	target Target
	name   string

	order  []string
	kinds  map[string]Kind
	ptrs   map[string]reflect.Value // pointer values, one per column
	rows   []map[string]interface{}

	warnBytes int64
	curBytes  int64
	warned    bool
	closed    bool
}

// NewWriter creates a writer that will persist to target under name
// once Close is called. warnThreshold is a soft, log-only budget (the
// teacher's ParquetWriter rotates physical files past this size; we
// keep a single dataset per spec and only warn, since §4.D specifies
// one dataset, not a shard sequence).
func NewWriter(target Target, name string, warnThreshold datasize.ByteSize) *Writer {
	return &Writer{
		target:    target,
		name:      name,
		kinds:     map[string]Kind{},
		ptrs:      map[string]reflect.Value{},
		warnBytes: int64(warnThreshold.Bytes()),
	}
}

// GetOrMakeColumn returns the stable address a field descriptor should
// write a value of type T into for column name. A second call with a
// mismatched T is a type-mismatch error (spec §7).
func GetOrMakeColumn[T any](w *Writer, name string) (*T, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	wantKind, err := kindOf(reflect.TypeOf(*new(T)))
	if err != nil {
		return nil, err
	}

	if existing, ok := w.ptrs[name]; ok {
		if w.kinds[name] != wantKind {
			return nil, fmt.Errorf("column: %w: column %q already declared as a different type", errkind.ErrTypeMismatch, name)
		}
		return existing.Interface().(*T), nil
	}

	v := new(T)
	w.order = append(w.order, name)
	w.kinds[name] = wantKind
	w.ptrs[name] = reflect.ValueOf(v)
	return v, nil
}

// Fill advances one row: it snapshots the current value of every bound
// column address and buffers it as the next entry (spec §4.D "fill()
// advances one row").
func (w *Writer) Fill() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("column: Fill called after Close")
	}

	row := make(map[string]interface{}, len(w.order))
	for _, name := range w.order {
		row[name] = w.ptrs[name].Elem().Interface()
		w.curBytes += estimateSize(row[name])
	}
	w.rows = append(w.rows, row)

	if w.warnBytes > 0 && w.curBytes > w.warnBytes && !w.warned {
		rlog.Warnf("column writer %q: buffered data exceeds %d bytes, dataset %q still growing in memory", w.name, w.warnBytes, w.name)
		w.warned = true
	}
	return nil
}

func estimateSize(v interface{}) int64 {
	switch x := v.(type) {
	case string:
		return int64(len(x)) + 8
	case []byte:
		return int64(len(x)) + 8
	default:
		return 8
	}
}

// NumRows reports how many entries have been buffered so far.
func (w *Writer) NumRows() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.rows)
}

// Close encodes every buffered row into the dataset's parquet
// representation and hands the bytes to the target, exactly the
// buffer-then-flush shape of the teacher's ParquetWriter.Flush.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	if len(w.order) == 0 {
		return nil
	}

	schema := buildSchema(w.name, w.order, w.kinds)

	rows := make([]pq.Row, len(w.rows))
	for i, r := range w.rows {
		row := make(pq.Row, len(w.order))
		for col, name := range w.order {
			row[col] = w.kinds[name].value(r[name]).Level(0, 0, col)
		}
		rows[i] = row
	}

	var buf bytes.Buffer
	pw := pq.NewWriter(&buf, schema, pq.Compression(&pq.Zstd))
	if _, err := pw.WriteRows(rows); err != nil {
		return fmt.Errorf("column: write rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("column: close parquet writer: %w", err)
	}

	if err := w.target.WriteFile(w.name, buf.Bytes()); err != nil {
		return fmt.Errorf("column: write dataset %q: %w", w.name, err)
	}

	rlog.Infof("column writer: wrote %q (%d rows, %d columns, %d bytes)", w.name, len(w.rows), len(w.order), buf.Len())
	return nil
}
