package prism

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/zoobzio/sentinel"
)

func init() {
	// Register declaration tags with sentinel
	sentinel.Tag("name")
	sentinel.Tag("alias")
	sentinel.Tag("default")
	sentinel.Tag("include")
	sentinel.Tag("exclude")
	sentinel.Tag("view")
}

// declTags lists every struct tag the engine understands.
var declTags = []string{"name", "alias", "default", "include", "exclude", "view"}

// FieldSpec is the compiled per-field declaration: projection name,
// optional alias, declared default, and declaration-time selection
// fragments. Built once per type and immutable afterwards.
type FieldSpec struct {
	// Name is the projection name: the name tag when present, else the
	// Go field name. Selection trees, fields-set entries, and copy
	// updates all address fields by this name.
	Name string

	// Alias is the output key used when ByAlias is set. Empty means no
	// alias is registered.
	Alias string

	// Index is the reflect.Value.FieldByIndex access path.
	Index []int

	// Type is the field's static Go type.
	Type reflect.Type

	// Default is the declared default value, parsed from the default
	// tag into the field's type. Fields without the tag have no
	// declared default and are never omitted by ExcludeDefaults.
	Default    any
	HasDefault bool

	// Include and Exclude are declaration-time selection fragments
	// applying to this field's subtree. A whole Exclude removes the
	// field from every dump unconditionally.
	Include *Tree
	Exclude *Tree

	// ViewName names the registered type whose fields govern projection
	// of this field's dynamic value. Only meaningful for interface
	// fields; empty means the dynamic type projects in full.
	ViewName string
}

// TypeSpec is the compiled, ordered declaration of a struct type.
type TypeSpec struct {
	Name   string
	Type   reflect.Type
	Fields []FieldSpec

	byName map[string]*FieldSpec
}

// field returns the FieldSpec with the given projection name.
func (ts *TypeSpec) field(name string) (*FieldSpec, bool) {
	f, ok := ts.byName[name]
	return f, ok
}

// compileSpec builds a TypeSpec from sentinel metadata for rt. rt must
// be a struct type.
func compileSpec(rt reflect.Type) (*TypeSpec, error) {
	md := scanType(rt)
	if md == nil {
		return nil, newSpecError(ErrNotStruct, rt.String(), "", nil)
	}

	ts := &TypeSpec{
		Name:   md.TypeName,
		Type:   rt,
		Fields: make([]FieldSpec, 0, len(md.Fields)),
		byName: make(map[string]*FieldSpec, len(md.Fields)),
	}

	for _, field := range md.Fields {
		// Bookkeeping, not data
		if field.ReflectType == metaType {
			continue
		}

		fs := FieldSpec{
			Name:  field.Name,
			Index: field.Index,
			Type:  field.ReflectType,
		}
		if v, ok := field.Tags["name"]; ok && v != "" {
			fs.Name = v
		}
		fs.Alias = field.Tags["alias"]
		fs.ViewName = field.Tags["view"]

		if v, ok := field.Tags["default"]; ok {
			def, err := parseDefault(v, field.ReflectType)
			if err != nil {
				return nil, newSpecError(ErrBadDefault, ts.Name, fs.Name, err)
			}
			fs.Default = def
			fs.HasDefault = true
		}

		if v, ok := field.Tags["include"]; ok {
			tree, err := parsePaths(v)
			if err != nil {
				return nil, newSpecError(ErrBadSelector, ts.Name, fs.Name, err)
			}
			fs.Include = tree
		}
		if v, ok := field.Tags["exclude"]; ok {
			if v == Wildcard || v == "true" {
				fs.Exclude = wholeTree
			} else {
				tree, err := parsePaths(v)
				if err != nil {
					return nil, newSpecError(ErrBadSelector, ts.Name, fs.Name, err)
				}
				fs.Exclude = tree
			}
		}

		ts.Fields = append(ts.Fields, fs)
	}

	for i := range ts.Fields {
		ts.byName[ts.Fields[i].Name] = &ts.Fields[i]
	}

	return ts, nil
}

// scanType returns sentinel metadata for a struct type, falling back to
// a direct reflection walk for types sentinel has not seen.
func scanType(rt reflect.Type) *sentinel.Metadata {
	if md, ok := sentinel.Lookup(rt.String()); ok {
		return &md
	}

	if rt.Kind() != reflect.Struct {
		return nil
	}

	md := sentinel.Metadata{
		TypeName:    rt.Name(),
		PackageName: rt.PkgPath(),
		Fields:      make([]sentinel.FieldMetadata, 0, rt.NumField()),
	}

	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}

		fm := sentinel.FieldMetadata{
			Name:        sf.Name,
			Type:        sf.Type.String(),
			ReflectType: sf.Type,
			Index:       sf.Index,
			Tags:        parseDeclTags(sf.Tag),
		}

		switch sf.Type.Kind() {
		case reflect.Struct:
			fm.Kind = sentinel.KindStruct
		case reflect.Ptr:
			fm.Kind = sentinel.KindPointer
		case reflect.Slice, reflect.Array:
			fm.Kind = sentinel.KindSlice
		case reflect.Map:
			fm.Kind = sentinel.KindMap
		case reflect.Interface:
			fm.Kind = sentinel.KindInterface
		default:
			fm.Kind = sentinel.KindScalar
		}

		md.Fields = append(md.Fields, fm)
	}

	return &md
}

// parseDeclTags extracts the engine's declaration tags from a struct tag.
func parseDeclTags(tag reflect.StructTag) map[string]string {
	tags := make(map[string]string)
	for _, name := range declTags {
		if val, ok := tag.Lookup(name); ok {
			tags[name] = val
		}
	}
	return tags
}

// parseDefault parses a default tag literal into the field's type.
// Only scalar kinds accept a declared default.
func parseDefault(lit string, rt reflect.Type) (any, error) {
	out := reflect.New(rt).Elem()
	switch rt.Kind() {
	case reflect.String:
		out.SetString(lit)
	case reflect.Bool:
		b, err := strconv.ParseBool(lit)
		if err != nil {
			return nil, err
		}
		out.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			return nil, err
		}
		if out.OverflowInt(n) {
			return nil, fmt.Errorf("default %q overflows %s", lit, rt)
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(lit, 10, 64)
		if err != nil {
			return nil, err
		}
		if out.OverflowUint(n) {
			return nil, fmt.Errorf("default %q overflows %s", lit, rt)
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, err
		}
		out.SetFloat(f)
	default:
		return nil, fmt.Errorf("default tags are not supported on %s fields", rt.Kind())
	}
	return out.Interface(), nil
}
