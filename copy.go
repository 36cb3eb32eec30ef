package prism

import (
	"reflect"
	"time"
)

// Cloner allows types to provide their own deep copy logic. Copy with
// Deep() prefers Clone over reflection when the type implements it.
//
// The Clone method must return a deep copy where modifications to the
// clone do not affect the original value. For types containing
// pointers, slices, or maps, ensure these are also copied:
//
//	func (o Order) Clone() Order {
//	    items := make([]Item, len(o.Items))
//	    copy(items, o.Items)
//	    return Order{ID: o.ID, Items: items}
//	}
type Cloner[T any] interface {
	Clone() T
}

// copyOptions collects one copy call's policy.
type copyOptions struct {
	update map[string]any
	deep   bool
}

// CopyOption configures a copy call.
type CopyOption func(*copyOptions)

// WithUpdate overlays named top-level field values onto the copy after
// duplication, without re-validation. Overlaid fields are marked
// explicitly set on the copy's bookkeeping.
func WithUpdate(update map[string]any) CopyOption {
	return func(o *copyOptions) { o.update = update }
}

// Deep duplicates every owned nested value transitively, so the copy
// shares no mutable sub-objects with the source. Without it the copy
// is shallow: only the top-level field mapping is duplicated and
// nested values are shared with the original.
func Deep() CopyOption {
	return func(o *copyOptions) { o.deep = true }
}

// Copy duplicates an instance. The source is never mutated; its
// fields-set bookkeeping carries over to the copy, extended by any
// update keys.
func Copy[T any](src T, opts ...CopyOption) (T, error) {
	var o copyOptions
	for _, opt := range opts {
		opt(&o)
	}

	var zero T
	rv := reflect.ValueOf(src)
	isPtr := rv.Kind() == reflect.Pointer
	if isPtr {
		if rv.IsNil() {
			return zero, newEncodeError(ErrNotStruct, "", "nil", nil)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return zero, newEncodeError(ErrNotStruct, "", reflect.TypeOf(src).String(), nil)
	}
	rt := rv.Type()

	spec, err := defaultRegistry.specFor(rt)
	if err != nil {
		return zero, err
	}

	start := time.Now()

	// Shallow duplicate of the top-level field mapping, bookkeeping
	// included.
	dup := reflect.New(rt)
	dup.Elem().Set(rv)

	if o.deep {
		if cl, ok := any(src).(Cloner[T]); ok {
			cloned := reflect.ValueOf(cl.Clone())
			if isPtr {
				cloned = cloned.Elem()
			}
			dup.Elem().Set(cloned)
		} else {
			memo := make(map[uintptr]reflect.Value)
			if isPtr {
				// References back to the source root rewire to the copy.
				memo[reflect.ValueOf(src).Pointer()] = dup
			}
			deepenFields(dup.Elem(), memo)
		}
	}

	// Bookkeeping must be independent of the source even on shallow
	// copy; read it before the overlay touches anything.
	srcSet, tracked := fieldsSetOf(dup.Elem())

	for name, val := range o.update {
		f, ok := spec.field(name)
		if !ok {
			emitCopyComplete(spec.Name, copyKind(o.deep), len(o.update), time.Since(start), ErrUnknownField)
			return zero, newSpecError(ErrUnknownField, spec.Name, name, nil)
		}
		fv := dup.Elem().FieldByIndex(f.Index)
		if val == nil {
			fv.Set(reflect.Zero(fv.Type()))
			continue
		}
		uv := reflect.ValueOf(val)
		switch {
		case uv.Type().AssignableTo(fv.Type()):
			fv.Set(uv)
		case uv.Type().ConvertibleTo(fv.Type()):
			fv.Set(uv.Convert(fv.Type()))
		default:
			emitCopyComplete(spec.Name, copyKind(o.deep), len(o.update), time.Since(start), ErrBadUpdate)
			return zero, newSpecError(ErrBadUpdate, spec.Name, name, nil)
		}
	}

	if w, ok := dup.Interface().(fieldSetWriter); ok && (tracked || len(o.update) > 0) {
		set := srcSet.clone()
		for name := range o.update {
			set[name] = struct{}{}
		}
		w.resetFieldSet(set)
	}

	emitCopyComplete(spec.Name, copyKind(o.deep), len(o.update), time.Since(start), nil)

	if isPtr {
		return dup.Interface().(T), nil
	}
	return dup.Elem().Interface().(T), nil
}

func copyKind(deep bool) string {
	if deep {
		return "deep"
	}
	return "shallow"
}

// deepenFields replaces every settable reference field of v with a
// transitively independent copy. Unexported fields keep the shallow
// copy's contents; Meta's bookkeeping is rebuilt by Copy itself.
func deepenFields(v reflect.Value, memo map[uintptr]reflect.Value) {
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		if !f.CanSet() {
			continue
		}
		f.Set(deepValue(f, memo))
	}
}

// deepValue returns a transitively independent copy of src. memo keys
// on pointer identity so shared and cyclic references are duplicated
// once and rewired rather than expanded forever.
func deepValue(src reflect.Value, memo map[uintptr]reflect.Value) reflect.Value {
	switch src.Kind() {
	case reflect.Pointer:
		if src.IsNil() {
			return src
		}
		if cached, ok := memo[src.Pointer()]; ok {
			return cached
		}
		np := reflect.New(src.Type().Elem())
		memo[src.Pointer()] = np
		np.Elem().Set(deepValue(src.Elem(), memo))
		return np

	case reflect.Interface:
		if src.IsNil() {
			return src
		}
		return deepValue(src.Elem(), memo)

	case reflect.Struct:
		n := reflect.New(src.Type()).Elem()
		n.Set(src)
		deepenFields(n, memo)
		return n

	case reflect.Slice:
		if src.IsNil() {
			return src
		}
		n := reflect.MakeSlice(src.Type(), src.Len(), src.Len())
		for i := 0; i < src.Len(); i++ {
			n.Index(i).Set(deepValue(src.Index(i), memo))
		}
		return n

	case reflect.Array:
		n := reflect.New(src.Type()).Elem()
		for i := 0; i < src.Len(); i++ {
			n.Index(i).Set(deepValue(src.Index(i), memo))
		}
		return n

	case reflect.Map:
		if src.IsNil() {
			return src
		}
		n := reflect.MakeMapWithSize(src.Type(), src.Len())
		iter := src.MapRange()
		for iter.Next() {
			n.SetMapIndex(deepValue(iter.Key(), memo), deepValue(iter.Value(), memo))
		}
		return n

	default:
		return src
	}
}
