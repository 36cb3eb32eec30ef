// Package prism provides selective, recursive projection and encoding
// of typed object graphs.
//
// prism converts a struct graph (scalars, nested structs, sequences,
// mappings) into either a plain native value tree or wire text, under a
// policy combining include/exclude selection trees, alias renaming,
// per-field and per-type custom encoders, and flags that omit unset,
// default, or null fields.
//
// # Declarations
//
// Field behavior is declared via struct tags, read through sentinel:
//
//	type User struct {
//	    prism.Meta
//	    FirstName string       `name:"first_name" alias:"firstName"`
//	    Password  prism.Secret `name:"password" exclude:"*"`
//	    Country   string       `name:"country" default:"USA"`
//	    Card      CardDetails  `name:"card" exclude:"number"`
//	}
//
//	name    - projection name (defaults to the Go field name)
//	alias   - output key used when ByAlias is set
//	default - declared default, consulted by ExcludeDefaults
//	include - declaration-time include fragment, dotted-path syntax
//	exclude - declaration-time exclude fragment; "*" removes the field
//	          from every dump unconditionally
//	view    - declared-type projection for interface fields
//
// The embedded prism.Meta records which fields were explicitly supplied
// (ExcludeUnset consults it); types without Meta are treated as fully
// set.
//
// # Dumping
//
//	native, err := prism.ToNative(user,
//	    prism.WithInclude(map[any]any{
//	        "first_name": true,
//	        "hobbies":    map[any]any{0: true, -1: []any{"name"}},
//	    }),
//	    prism.ExcludeNone(),
//	)
//
//	text, err := prism.ToText(user, prism.ByAlias(), prism.WithIndent(2))
//
// Selection trees merge deterministically: excludes by union (a key
// excluded anywhere stays excluded), includes by intersection (a
// call-level include narrows a declaration-time one). Sequence keys may
// be negative (counting from the end) or the "*" wildcard; an explicit
// index refines the wildcard without suppressing it elsewhere.
//
// # Wire formats
//
//	ToText   - JSON text, compact or indented
//	ToBinary - MessagePack bytes
//	ToYAML   - YAML text
//
// All three render the projector's ordered native tree, so output key
// order always matches declaration order.
//
// # Custom encoders
//
// Encoders are registered at declaration time, never discovered at
// runtime:
//
//	prism.RegisterFieldEncoder[User]("first_name", func(v any) (any, error) {
//	    return strings.ToUpper(v.(string)), nil
//	})
//	prism.RegisterInstanceEncoder[AuditStamp](func(v any) (any, error) {
//	    return v.(AuditStamp).String(), nil
//	})
//
// A field encoder's result is still projected structurally unless
// wrapped in prism.Final. An instance encoder replaces the instance's
// entire output, bypassing the per-field walk.
//
// Builtin type encoders cover time.Time (RFC 3339), time.Duration
// (seconds), uuid.UUID (canonical text), big.Int and big.Rat (decimal
// text), and Secret/SecretBytes (fixed-length masked rendering).
//
// # Copying
//
//	clone, err := prism.Copy(user,
//	    prism.WithUpdate(map[string]any{"first_name": "Jane"}),
//	    prism.Deep(),
//	)
//
// Shallow copies share nested values with the original; deep copies are
// fully independent. Updates overlay named top-level fields after the
// copy, without re-validation, and are marked explicitly set on the
// copy's bookkeeping.
package prism

import (
	"reflect"
	"time"
)

// DefaultMaxDepth bounds recursion over pathological object graphs.
// Override per call with WithMaxDepth.
const DefaultMaxDepth = 1000

// dumpOptions collects one dump call's policy.
type dumpOptions struct {
	include         *Tree
	exclude         *Tree
	byAlias         bool
	excludeUnset    bool
	excludeDefaults bool
	excludeNone     bool
	roundTrip       bool
	indent          int
	maxDepth        int
}

func newDumpOptions() *dumpOptions {
	return &dumpOptions{maxDepth: DefaultMaxDepth}
}

// Option configures a dump call.
type Option func(*dumpOptions) error

// WithInclude restricts output to the selected keys. spec is anything
// NewTree accepts. Merged by intersection with declaration-time
// include fragments; an absent include means "include everything not
// excluded".
func WithInclude(spec any) Option {
	return func(o *dumpOptions) error {
		t, err := buildTree(spec)
		if err != nil {
			return err
		}
		o.include = mergeIntersect(o.include, t)
		return nil
	}
}

// WithExclude removes the selected keys from output. spec is anything
// NewTree accepts. Merged by union with declaration-time exclude
// fragments; exclusion always wins over inclusion for the same key.
func WithExclude(spec any) Option {
	return func(o *dumpOptions) error {
		t, err := buildTree(spec)
		if err != nil {
			return err
		}
		o.exclude = mergeUnion(o.exclude, t)
		return nil
	}
}

// ByAlias keys output by each field's registered alias instead of its
// projection name.
func ByAlias() Option {
	return func(o *dumpOptions) error { o.byAlias = true; return nil }
}

// ExcludeUnset omits fields that were never explicitly supplied,
// per each instance's own fields-set bookkeeping.
func ExcludeUnset() Option {
	return func(o *dumpOptions) error { o.excludeUnset = true; return nil }
}

// ExcludeDefaults omits fields whose current value equals their
// declared default. Fields without a declared default are never
// omitted by this rule.
func ExcludeDefaults() Option {
	return func(o *dumpOptions) error { o.excludeDefaults = true; return nil }
}

// ExcludeNone omits fields holding the null sentinel (nil pointer or
// nil interface).
func ExcludeNone() Option {
	return func(o *dumpOptions) error { o.excludeNone = true; return nil }
}

// RoundTrip renders embedded structured-text (JSON) fields as compact
// canonical text instead of their parsed content, so re-parsing the
// output reproduces the original semantic value.
func RoundTrip() Option {
	return func(o *dumpOptions) error { o.roundTrip = true; return nil }
}

// WithIndent renders text output multi-line, each nesting level
// indented by width spaces. Only meaningful for ToText and ToYAML.
func WithIndent(width int) Option {
	return func(o *dumpOptions) error { o.indent = width; return nil }
}

// WithMaxDepth overrides the recursion bound for one call.
func WithMaxDepth(n int) Option {
	return func(o *dumpOptions) error { o.maxDepth = n; return nil }
}

// ToNative projects an instance into a native value tree: an
// insertion-ordered map per instance (declaration order), []any per
// sequence, scalars encoded per the type table. The source graph is
// never mutated.
func ToNative(v any, opts ...Option) (any, error) {
	native, _, err := dump(v, "native", opts)
	return native, err
}

// dump applies options, projects, and emits observability signals.
func dump(v any, mode string, opts []Option) (any, *dumpOptions, error) {
	o := newDumpOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, nil, err
		}
	}

	typeName := typeNameOf(v)
	start := time.Now()
	emitDumpStart(mode, typeName)

	native, err := toNative(v, o)
	emitDumpComplete(mode, typeName, time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}
	return native, o, nil
}

// typeNameOf names the instance type for signals.
func typeNameOf(v any) string {
	rt := reflect.TypeOf(v)
	if rt == nil {
		return "nil"
	}
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	return rt.String()
}
