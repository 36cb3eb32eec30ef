package prism

import "reflect"

// FieldSet records which field names were explicitly supplied at
// construction or explicit update, as opposed to merely holding their
// defaults. ExcludeUnset consults it during projection.
type FieldSet map[string]struct{}

// Has reports whether the named field was explicitly set.
func (s FieldSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// clone returns an independent copy of the set.
func (s FieldSet) clone() FieldSet {
	out := make(FieldSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Tracker exposes an instance's fields-set bookkeeping to the engine.
// Instances whose type does not implement it are treated as fully
// explicitly set, so ExcludeUnset never omits their fields.
type Tracker interface {
	FieldsSet() FieldSet
}

// fieldSetWriter is how Copy rewrites bookkeeping on the duplicate.
// Meta implements it; the engine never mutates a source instance.
type fieldSetWriter interface {
	resetFieldSet(FieldSet)
}

// Meta is the embeddable per-instance bookkeeping record. The
// construction pipeline marks fields as they are explicitly supplied:
//
//	type User struct {
//	    prism.Meta
//	    Name string `name:"name"`
//	}
//
//	u := User{Name: "John"}
//	u.MarkSet("name")
//
// The Meta field itself never appears in projected output.
type Meta struct {
	set FieldSet
}

// MarkSet records the named fields as explicitly supplied.
func (m *Meta) MarkSet(names ...string) {
	if m.set == nil {
		m.set = make(FieldSet, len(names))
	}
	for _, n := range names {
		m.set[n] = struct{}{}
	}
}

// FieldsSet returns the live set of explicitly supplied field names.
func (m *Meta) FieldsSet() FieldSet {
	return m.set
}

func (m *Meta) resetFieldSet(s FieldSet) {
	m.set = s
}

var metaType = reflect.TypeOf(Meta{})

// fieldsSetOf extracts an instance's FieldSet via its Tracker. The
// second result reports whether the type carries bookkeeping at all;
// untracked types are treated as fully explicitly set. rv must be a
// struct value.
func fieldsSetOf(rv reflect.Value) (FieldSet, bool) {
	if rv.CanAddr() {
		if tr, ok := rv.Addr().Interface().(Tracker); ok {
			return tr.FieldsSet(), true
		}
	}
	if rv.CanInterface() {
		if tr, ok := rv.Interface().(Tracker); ok {
			return tr.FieldsSet(), true
		}
	}
	return nil, false
}
