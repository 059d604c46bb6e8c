package ioreader

import "reflect"

// deref unwraps the *T a registry.Entry.Read returns for a scalar
// record (edm/register.go's scalarEntry) into the plain T value the
// rest of this codebase stores and fetches through store.Put/store.Get
// (see DESIGN.md: the registry's Read/Write pair is pointer-symmetric
// for scalars, but the EventStore convention is value-symmetric).
// Slice-valued entries (sliceEntry) already return []T directly and
// pass through unchanged.
func deref(v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		return rv.Elem().Interface()
	}
	return v
}
