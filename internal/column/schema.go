package column

import (
	"fmt"
	"reflect"

	pq "github.com/parquet-go/parquet-go"
)

// Kind identifies the scalar storage type of a declared column. Nested
// or sequence-valued record fields are flattened to Bytes (a
// JSON-encoded blob) by the field descriptors in package edm, the same
// way the teacher's own ParquetJobRow stores semi-structured data
// (ResourcesJSON, TagsJSON, ...) as a plain byte column rather than a
// nested parquet structure.
type Kind int

const (
	KindInt32 Kind = iota
	KindInt64
	KindFloat32
	KindFloat64
	KindString
	KindBool
	KindBytes
)

func kindOf(t reflect.Type) (Kind, error) {
	switch t.Kind() {
	case reflect.Int32:
		return KindInt32, nil
	case reflect.Int, reflect.Int64:
		return KindInt64, nil
	case reflect.Float32:
		return KindFloat32, nil
	case reflect.Float64:
		return KindFloat64, nil
	case reflect.String:
		return KindString, nil
	case reflect.Bool:
		return KindBool, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return KindBytes, nil
		}
	}
	return 0, fmt.Errorf("column: unsupported column go type %s", t)
}

func (k Kind) node() pq.Node {
	switch k {
	case KindInt32:
		return pq.Leaf(pq.Int32Type)
	case KindInt64:
		return pq.Leaf(pq.Int64Type)
	case KindFloat32:
		return pq.Leaf(pq.FloatType)
	case KindFloat64:
		return pq.Leaf(pq.DoubleType)
	case KindString:
		return pq.String()
	case KindBool:
		return pq.Leaf(pq.BooleanType)
	case KindBytes:
		return pq.Leaf(pq.ByteArrayType)
	default:
		panic("column: unreachable kind")
	}
}

func (k Kind) value(v interface{}) pq.Value {
	switch k {
	case KindInt32:
		return pq.ValueOf(v.(int32))
	case KindInt64:
		return pq.ValueOf(toInt64(v))
	case KindFloat32:
		return pq.ValueOf(v.(float32))
	case KindFloat64:
		return pq.ValueOf(v.(float64))
	case KindString:
		return pq.ValueOf(v.(string))
	case KindBool:
		return pq.ValueOf(v.(bool))
	case KindBytes:
		return pq.ValueOf(v.([]byte))
	default:
		panic("column: unreachable kind")
	}
}

func toInt64(v interface{}) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	default:
		panic(fmt.Sprintf("column: not an int64-like value: %T", v))
	}
}

// fromValue converts a decoded parquet.Value back into the Go
// representation matching Kind, for populating a bound reader address.
func (k Kind) fromValue(v pq.Value) interface{} {
	switch k {
	case KindInt32:
		return v.Int32()
	case KindInt64:
		return v.Int64()
	case KindFloat32:
		return v.Float() // float32 accessor
	case KindFloat64:
		return v.Double()
	case KindString:
		return v.String()
	case KindBool:
		return v.Boolean()
	case KindBytes:
		return append([]byte(nil), v.ByteArray()...)
	default:
		panic("column: unreachable kind")
	}
}

// buildSchema assembles a parquet.Schema from columns in stable order.
func buildSchema(name string, order []string, kinds map[string]Kind) *pq.Schema {
	group := pq.Group{}
	for _, n := range order {
		group[n] = kinds[n].node()
	}
	return pq.NewSchema(name, group)
}
