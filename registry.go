package prism

import (
	"reflect"
	"sync"

	"github.com/zoobzio/sentinel"
)

// FieldEncoder replaces a single field's raw value during projection.
// The result is still subject to structural projection and type
// encoding unless wrapped in Final.
type FieldEncoder func(v any) (any, error)

// InstanceEncoder replaces an entire instance's projected output,
// bypassing the per-field walk.
type InstanceEncoder func(v any) (any, error)

// TypeEncoder renders a scalar of a registered type to its native
// representation (temporal values to calendar/clock text, identifiers
// to canonical text, secrets to their masked form).
type TypeEncoder func(v any) (any, error)

// finalValue marks a field-encoder result as final: structural
// projection and type encoding are skipped and the wrapped value is
// emitted as-is.
type finalValue struct {
	v any
}

// Final wraps a FieldEncoder result so no further projection applies.
func Final(v any) any {
	return finalValue{v: v}
}

// registry holds the compiled TypeSpecs and the encoder tables. Specs
// are compiled once per type with double-checked locking; encoder
// registration happens at declaration time, before the first dump of
// the types involved.
type registry struct {
	mu               sync.RWMutex
	specs            map[reflect.Type]*TypeSpec
	byName           map[string]*TypeSpec
	ambiguous        map[string]struct{}
	fieldEncoders    map[reflect.Type]map[string]FieldEncoder
	instanceEncoders map[reflect.Type]InstanceEncoder
	typeEncoders     map[reflect.Type]TypeEncoder
}

func newRegistry() *registry {
	r := &registry{
		specs:            make(map[reflect.Type]*TypeSpec),
		byName:           make(map[string]*TypeSpec),
		ambiguous:        make(map[string]struct{}),
		fieldEncoders:    make(map[reflect.Type]map[string]FieldEncoder),
		instanceEncoders: make(map[reflect.Type]InstanceEncoder),
		typeEncoders:     builtinTypeEncoders(),
	}
	return r
}

var defaultRegistry = newRegistry()

// Register compiles and caches the TypeSpec for T. Dump entry points
// compile specs on demand; registering explicitly catches declaration
// errors at startup and makes the type available as a view target.
func Register[T any]() error {
	sentinel.Scan[T]()
	rt := reflect.TypeFor[T]()
	_, err := defaultRegistry.specFor(rt)
	return err
}

// specFor returns the cached TypeSpec for rt, compiling it on first use.
func (r *registry) specFor(rt reflect.Type) (*TypeSpec, error) {
	// Fast path: read-lock cache check
	r.mu.RLock()
	if ts, ok := r.specs[rt]; ok {
		r.mu.RUnlock()
		return ts, nil
	}
	r.mu.RUnlock()

	ts, err := compileSpec(rt)
	if err != nil {
		return nil, err
	}

	// Slow path: publish with write-lock
	r.mu.Lock()

	// Double-check pattern
	if cached, ok := r.specs[rt]; ok {
		r.mu.Unlock()
		return cached, nil
	}

	r.specs[rt] = ts
	// View tags may name a type bare or package-qualified. The qualified
	// form is unique; a bare name shared by types in different packages
	// is ambiguous and resolves to neither.
	r.byName[rt.String()] = ts
	for _, bare := range []string{ts.Name, rt.Name()} {
		if bare == "" || bare == rt.String() {
			continue
		}
		if _, bad := r.ambiguous[bare]; bad {
			continue
		}
		if prev, ok := r.byName[bare]; ok && prev.Type != rt {
			delete(r.byName, bare)
			r.ambiguous[bare] = struct{}{}
			continue
		}
		r.byName[bare] = ts
	}
	r.mu.Unlock()

	emitTypeCompiled(ts.Name, len(ts.Fields))
	return ts, nil
}

// specByName returns a previously compiled TypeSpec by type name.
// Used to resolve view tags.
func (r *registry) specByName(name string) (*TypeSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ts, ok := r.byName[name]
	return ts, ok
}

// RegisterFieldEncoder binds an encoder to one field of T, addressed by
// projection name. The encoder receives the raw field value; its result
// still undergoes structural projection unless wrapped in Final.
func RegisterFieldEncoder[T any](field string, fn FieldEncoder) error {
	rt := reflect.TypeFor[T]()
	ts, err := defaultRegistry.specFor(rt)
	if err != nil {
		return err
	}
	if _, ok := ts.field(field); !ok {
		return newSpecError(ErrUnknownField, ts.Name, field, nil)
	}

	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	m := defaultRegistry.fieldEncoders[rt]
	if m == nil {
		m = make(map[string]FieldEncoder)
		defaultRegistry.fieldEncoders[rt] = m
	}
	m[field] = fn
	return nil
}

// RegisterInstanceEncoder binds a whole-instance encoder to T. During
// projection it short-circuits the per-field walk and its result is the
// instance's entire output.
func RegisterInstanceEncoder[T any](fn InstanceEncoder) error {
	rt := reflect.TypeFor[T]()
	if _, err := defaultRegistry.specFor(rt); err != nil {
		return err
	}

	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.instanceEncoders[rt] = fn
	return nil
}

// RegisterTypeEncoder binds a scalar encoder to a Go type, extending
// the builtin table (time.Time, time.Duration, uuid.UUID, big.Int,
// Secret, SecretBytes).
func RegisterTypeEncoder(rt reflect.Type, fn TypeEncoder) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.typeEncoders[rt] = fn
}

func (r *registry) fieldEncoderFor(rt reflect.Type, field string) FieldEncoder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fieldEncoders[rt][field]
}

func (r *registry) instanceEncoderFor(rt reflect.Type) InstanceEncoder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.instanceEncoders[rt]
}

func (r *registry) typeEncoderFor(rt reflect.Type) TypeEncoder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.typeEncoders[rt]
}

// Reset clears the compiled specs and registered encoders.
// This is primarily useful for test isolation.
func Reset() {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.specs = make(map[reflect.Type]*TypeSpec)
	defaultRegistry.byName = make(map[string]*TypeSpec)
	defaultRegistry.ambiguous = make(map[string]struct{})
	defaultRegistry.fieldEncoders = make(map[reflect.Type]map[string]FieldEncoder)
	defaultRegistry.instanceEncoders = make(map[reflect.Type]InstanceEncoder)
	defaultRegistry.typeEncoders = builtinTypeEncoders()
}
