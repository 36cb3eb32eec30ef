package prism

import (
	"fmt"
	"reflect"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// dumpContext carries one dump call's flags and recursion state. It is
// local to the call: concurrent dumps over the same instance graph
// never share a context, so no locking is involved.
type dumpContext struct {
	reg *registry

	byAlias         bool
	excludeUnset    bool
	excludeDefaults bool
	excludeNone     bool
	roundTrip       bool
	maxDepth        int

	// active holds the pointer identities currently on the recursion
	// path. Revisiting one is a cycle, surfaced as ErrCycle.
	active map[uintptr]struct{}
}

// toNative projects an instance into the native value tree.
func toNative(v any, o *dumpOptions) (any, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, newEncodeError(ErrNotStruct, "", "nil", nil)
	}

	base := rv.Type()
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Kind() != reflect.Struct {
		return nil, newEncodeError(ErrNotStruct, "", rv.Type().String(), nil)
	}

	// An addressable copy lets nested values reach pointer-receiver
	// Tracker methods.
	if rv.Kind() != reflect.Pointer {
		p := reflect.New(rv.Type())
		p.Elem().Set(rv)
		rv = p
	}

	c := &dumpContext{
		reg:             defaultRegistry,
		byAlias:         o.byAlias,
		excludeUnset:    o.excludeUnset,
		excludeDefaults: o.excludeDefaults,
		excludeNone:     o.excludeNone,
		roundTrip:       o.roundTrip,
		maxDepth:        o.maxDepth,
		active:          make(map[uintptr]struct{}),
	}
	return c.encodeValue(rv, o.include, o.exclude, "", 0)
}

// encodeValue projects a single value using its effective selection
// trees. It dispatches on kind after consulting the type encoder table.
func (c *dumpContext) encodeValue(rv reflect.Value, inc, exc *Tree, path string, depth int) (any, error) {
	if depth > c.maxDepth {
		return nil, newEncodeError(ErrDepthExceeded, path, rv.Type().String(), nil)
	}

	for rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}

	rt := rv.Type()
	if enc := c.reg.typeEncoderFor(rt); enc != nil {
		out, err := enc(rv.Interface())
		if err != nil {
			return nil, newEncodeError(ErrEncoder, path, rt.String(), err)
		}
		return out, nil
	}
	if rt == jsonType {
		return encodeEmbedded(rv.Convert(jsonType).Interface().(JSON), c.roundTrip, path)
	}

	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		id := rv.Pointer()
		if _, on := c.active[id]; on {
			return nil, newEncodeError(ErrCycle, path, rt.String(), nil)
		}
		c.active[id] = struct{}{}
		defer delete(c.active, id)
		return c.encodeValue(rv.Elem(), inc, exc, path, depth+1)

	case reflect.Struct:
		return c.encodeStruct(rv, inc, exc, path, depth)

	case reflect.Slice:
		if rt.Elem().Kind() == reflect.Uint8 {
			return append([]byte(nil), rv.Bytes()...), nil
		}
		if rv.IsNil() {
			return nil, nil
		}
		id := rv.Pointer()
		if _, on := c.active[id]; on {
			return nil, newEncodeError(ErrCycle, path, rt.String(), nil)
		}
		c.active[id] = struct{}{}
		defer delete(c.active, id)
		return c.encodeSeq(rv, inc, exc, path, depth)

	case reflect.Array:
		return c.encodeSeq(rv, inc, exc, path, depth)

	case reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
		id := rv.Pointer()
		if _, on := c.active[id]; on {
			return nil, newEncodeError(ErrCycle, path, rt.String(), nil)
		}
		c.active[id] = struct{}{}
		defer delete(c.active, id)
		return c.encodeMap(rv, inc, exc, path, depth)

	default:
		return c.encodeScalar(rv, path)
	}
}

// encodeStruct walks an instance's fields in declaration order.
func (c *dumpContext) encodeStruct(rv reflect.Value, inc, exc *Tree, path string, depth int) (any, error) {
	rt := rv.Type()

	// Whole-instance override bypasses the per-field walk entirely.
	if enc := c.reg.instanceEncoderFor(rt); enc != nil {
		out, err := enc(rv.Interface())
		if err != nil {
			return nil, newEncodeError(ErrEncoder, path, rt.String(), err)
		}
		return out, nil
	}

	spec, err := c.reg.specFor(rt)
	if err != nil {
		return nil, err
	}

	if !rv.CanAddr() {
		p := reflect.New(rt)
		p.Elem().Set(rv)
		rv = p.Elem()
	}

	return c.encodeFields(rv, spec, spec.Fields, inc, exc, path, depth)
}

// encodeFields projects the given field list against rv. For normal
// projection the list is rv's own spec; for declared-type (view)
// projection it is the view type's list and values are located by name.
func (c *dumpContext) encodeFields(rv reflect.Value, valSpec *TypeSpec, fields []FieldSpec, inc, exc *Tree, path string, depth int) (any, error) {
	fs, tracked := fieldsSetOf(rv)
	out := orderedmap.New[string, any]()

	for i := range fields {
		f := &fields[i]

		fieldExc := mergeUnion(exc.forField(f.Name), f.Exclude)
		if fieldExc.IsWhole() {
			continue
		}

		incChild := inc.forField(f.Name)
		if inc.selective() && incChild == nil {
			continue
		}
		fieldInc := mergeIntersect(incChild, f.Include)

		vf := f
		if valSpec != nil {
			located, ok := valSpec.field(f.Name)
			if !ok {
				continue
			}
			vf = located
		}
		fv := rv.FieldByIndex(vf.Index)

		if c.excludeUnset && tracked && !fs.Has(f.Name) {
			continue
		}
		if c.excludeDefaults && f.HasDefault && fv.CanInterface() && reflect.DeepEqual(fv.Interface(), f.Default) {
			continue
		}
		if c.excludeNone && isNone(fv) {
			continue
		}

		key := f.Name
		if c.byAlias && f.Alias != "" {
			key = f.Alias
		}
		fieldPath := key
		if path != "" {
			fieldPath = path + "." + key
		}

		val := fv
		if fe := c.reg.fieldEncoderFor(rv.Type(), f.Name); fe != nil {
			res, err := fe(fv.Interface())
			if err != nil {
				return nil, newEncodeError(ErrEncoder, fieldPath, vf.Type.String(), err)
			}
			if fin, ok := res.(finalValue); ok {
				out.Set(key, fin.v)
				continue
			}
			if res == nil {
				out.Set(key, nil)
				continue
			}
			val = reflect.ValueOf(res)
		}

		if f.ViewName != "" {
			node, err := c.encodeView(val, f.ViewName, fieldInc, fieldExc, fieldPath, depth+1)
			if err != nil {
				return nil, err
			}
			out.Set(key, node)
			continue
		}

		node, err := c.encodeValue(val, fieldInc, fieldExc, fieldPath, depth+1)
		if err != nil {
			return nil, err
		}
		out.Set(key, node)
	}

	return out, nil
}

// encodeView projects a dynamic value using only the fields of the
// declared view type, discarding anything the richer subtype adds.
func (c *dumpContext) encodeView(rv reflect.Value, viewName string, inc, exc *Tree, path string, depth int) (any, error) {
	for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Kind() == reflect.Pointer {
			id := rv.Pointer()
			if _, on := c.active[id]; on {
				return nil, newEncodeError(ErrCycle, path, rv.Type().String(), nil)
			}
			c.active[id] = struct{}{}
			defer delete(c.active, id)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, newEncodeError(ErrNotStruct, path, rv.Type().String(), nil)
	}

	view, ok := c.reg.specByName(viewName)
	if !ok {
		return nil, newSpecError(ErrUnknownView, viewName, "", nil)
	}
	dynSpec, err := c.reg.specFor(rv.Type())
	if err != nil {
		return nil, err
	}

	if !rv.CanAddr() {
		p := reflect.New(rv.Type())
		p.Elem().Set(rv)
		rv = p.Elem()
	}

	return c.encodeFields(rv, dynSpec, view.Fields, inc, exc, path, depth)
}

// encodeSeq projects each element independently, with explicit index
// keys resolved against the sequence length and overlaid on the
// wildcard. An element whose effective exclude is whole is dropped; a
// selective include drops elements it does not name.
func (c *dumpContext) encodeSeq(rv reflect.Value, inc, exc *Tree, path string, depth int) (any, error) {
	n := rv.Len()
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		elemExc := exc.forIndex(i, n)
		if elemExc.IsWhole() {
			continue
		}
		elemInc := inc.forIndex(i, n)
		if inc.selective() && elemInc == nil {
			continue
		}
		node, err := c.encodeValue(rv.Index(i), elemInc, elemExc, fmt.Sprintf("%s[%d]", path, i), depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, nil
}

// encodeMap projects mapping entries in sorted key order, so output is
// deterministic regardless of Go's map iteration. Selection keys are
// the formatted map keys; the wildcard applies to every entry.
func (c *dumpContext) encodeMap(rv reflect.Value, inc, exc *Tree, path string, depth int) (any, error) {
	keys := rv.MapKeys()
	sortMapKeys(keys)

	out := orderedmap.New[string, any]()
	for _, k := range keys {
		ks := formatMapKey(k)
		entryExc := exc.forKey(ks)
		if entryExc.IsWhole() {
			continue
		}
		entryInc := inc.forKey(ks)
		if inc.selective() && entryInc == nil {
			continue
		}
		node, err := c.encodeValue(rv.MapIndex(k), entryInc, entryExc, path+"["+ks+"]", depth+1)
		if err != nil {
			return nil, err
		}
		out.Set(ks, node)
	}
	return out, nil
}

// encodeScalar passes through natively representable scalars, widening
// named kinds to their base type. Anything else is a surfaced failure
// carrying the field path.
func (c *dumpContext) encodeScalar(rv reflect.Value, path string) (any, error) {
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		return rv.String(), nil
	default:
		return nil, newEncodeError(ErrUnencodable, path, rv.Type().String(), nil)
	}
}

// isNone reports whether the value is the null sentinel: a nil pointer
// or nil interface. Nil slices and maps are empty values, not null.
func isNone(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// sortMapKeys orders map keys by their natural ordering per key kind.
func sortMapKeys(keys []reflect.Value) {
	if len(keys) == 0 {
		return
	}
	switch keys[0].Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		sort.Slice(keys, func(i, j int) bool { return keys[i].Int() < keys[j].Int() })
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		sort.Slice(keys, func(i, j int) bool { return keys[i].Uint() < keys[j].Uint() })
	case reflect.Float32, reflect.Float64:
		sort.Slice(keys, func(i, j int) bool { return keys[i].Float() < keys[j].Float() })
	case reflect.String:
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	default:
		sort.Slice(keys, func(i, j int) bool { return formatMapKey(keys[i]) < formatMapKey(keys[j]) })
	}
}

func formatMapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprint(k.Interface())
}
