package column

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	pq "github.com/parquet-go/parquet-go"

	"github.com/ahcal-reco/ahcal-reco/internal/errkind"
)

// Reader owns an opened dataset and, for every bound column name, a
// stable address that is populated with the current entry's value
// (spec §4.D). The whole dataset is decoded eagerly at Open time since
// parquet-go's schema discovery needs the file up front and the
// datasets this pipeline reads are run-scoped, not streamed.
type Reader struct {
	mu   sync.Mutex
	rows []map[string]interface{}

	fileKinds map[string]Kind
	addrs     map[string]reflect.Value
	kinds     map[string]Kind

	current int
}

// Open decodes the named dataset from target.
func Open(target Target, name string) (*Reader, error) {
	data, err := target.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("column: %w: open dataset %q: %v", errkind.ErrMissingInput, name, err)
	}

	file, err := pq.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("column: %w: parse dataset %q: %v", errkind.ErrMissingInput, name, err)
	}

	leaves := file.Schema().Columns()
	fileKinds, err := leafKinds(file.Schema())
	if err != nil {
		return nil, err
	}

	pr := pq.NewReader(file, file.Schema())
	defer pr.Close()

	numRows := int(file.NumRows())
	buf := make([]pq.Row, 128)
	rows := make([]map[string]interface{}, 0, numRows)

	for {
		n, err := pr.ReadRows(buf)
		for i := 0; i < n; i++ {
			row := make(map[string]interface{}, len(leaves))
			for col, path := range leaves {
				colName := path[len(path)-1]
				row[colName] = fileKinds[colName].fromValue(buf[i][col])
			}
			rows = append(rows, row)
		}
		if err != nil {
			break
		}
	}

	return &Reader{
		rows:      rows,
		fileKinds: fileKinds,
		addrs:     map[string]reflect.Value{},
		kinds:     map[string]Kind{},
		current:   -1,
	}, nil
}

func leafKinds(schema *pq.Schema) (map[string]Kind, error) {
	out := map[string]Kind{}
	for _, path := range schema.Columns() {
		name := path[len(path)-1]
		leaf, ok := schema.Lookup(path...)
		if !ok {
			return nil, fmt.Errorf("column: schema lookup failed for %v", path)
		}
		k, err := kindFromNode(leaf.Node)
		if err != nil {
			return nil, err
		}
		out[name] = k
	}
	return out, nil
}

func kindFromNode(n pq.Node) (Kind, error) {
	t := n.Type()
	switch t.Kind() {
	case pq.Int32:
		return KindInt32, nil
	case pq.Int64:
		return KindInt64, nil
	case pq.Float:
		return KindFloat32, nil
	case pq.Double:
		return KindFloat64, nil
	case pq.ByteArray:
		if t.LogicalType() != nil && t.LogicalType().UTF8 != nil {
			return KindString, nil
		}
		return KindBytes, nil
	case pq.Boolean:
		return KindBool, nil
	default:
		return 0, fmt.Errorf("column: unsupported parquet type %v", t)
	}
}

// NumEntries returns the row (event) count of the dataset.
func (r *Reader) NumEntries() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// GetOrMakeAddress binds name to a fresh address of type T, populating
// it immediately if an entry is already current.
func GetOrMakeAddress[T any](r *Reader, name string) (*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wantKind, err := kindOf(reflect.TypeOf(*new(T)))
	if err != nil {
		return nil, err
	}

	if existing, ok := r.addrs[name]; ok {
		if r.kinds[name] != wantKind {
			return nil, fmt.Errorf("column: %w: column %q already bound as a different type", errkind.ErrTypeMismatch, name)
		}
		return existing.Interface().(*T), nil
	}

	if fk, ok := r.fileKinds[name]; ok && fk != wantKind {
		return nil, fmt.Errorf("column: %w: column %q is %v in the dataset, not %v", errkind.ErrTypeMismatch, name, fk, wantKind)
	}

	v := new(T)
	r.addrs[name] = reflect.ValueOf(v)
	r.kinds[name] = wantKind

	if r.current >= 0 && r.current < len(r.rows) {
		if raw, ok := r.rows[r.current][name]; ok {
			reflect.ValueOf(v).Elem().Set(reflect.ValueOf(raw))
		}
	}
	return v, nil
}

// ReadEntry seeks to row i and repopulates every bound address.
func (r *Reader) ReadEntry(i int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.rows) {
		return fmt.Errorf("column: %w: entry %d out of range (%d rows)", errkind.ErrMissingInput, i, len(r.rows))
	}
	r.current = i
	r.populateLocked()
	return nil
}

// Next advances to the following row, returning false past the end.
func (r *Reader) Next() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current+1 >= len(r.rows) {
		return false
	}
	r.current++
	r.populateLocked()
	return true
}

func (r *Reader) populateLocked() {
	row := r.rows[r.current]
	for name, addr := range r.addrs {
		if raw, ok := row[name]; ok {
			addr.Elem().Set(reflect.ValueOf(raw))
		}
	}
}

// SequenceLen reports the number of elements encoded in a
// JSON-array-valued (Bytes) column for the current entry, used by
// sequence field descriptors to learn how many rows to allocate
// (spec §4.D ReaderRegistry: "queries the first field's column size").
func (r *Reader) SequenceLen(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current < 0 || r.current >= len(r.rows) {
		return 0, fmt.Errorf("column: %w: no current entry", errkind.ErrMissingInput)
	}
	raw, ok := r.rows[r.current][name]
	if !ok {
		return 0, fmt.Errorf("column: %w: column %q not present", errkind.ErrMissingInput, name)
	}
	data, ok := raw.([]byte)
	if !ok {
		return 0, fmt.Errorf("column: column %q is not a sequence column", name)
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return 0, fmt.Errorf("column: decode sequence column %q: %w", name, err)
	}
	return len(arr), nil
}
