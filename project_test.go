package prism

import (
	"errors"
	"strings"
	"testing"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type projAddress struct {
	Meta
	City string `name:"city"`
	Zip  string `name:"zip"`
}

type projUser struct {
	Meta
	Name    string         `name:"name" alias:"userName"`
	Country string         `name:"country" default:"USA"`
	Address *projAddress   `name:"address"`
	Card    Secret         `name:"card" exclude:"*"`
	Tags    []string       `name:"tags"`
	Scores  map[string]int `name:"scores"`
}

func mustNative(t *testing.T, v any, opts ...Option) *orderedmap.OrderedMap[string, any] {
	t.Helper()
	out, err := ToNative(v, opts...)
	if err != nil {
		t.Fatalf("ToNative() error: %v", err)
	}
	om, ok := out.(*orderedmap.OrderedMap[string, any])
	if !ok {
		t.Fatalf("ToNative() returned %T, want ordered map", out)
	}
	return om
}

func keysOf(om *orderedmap.OrderedMap[string, any]) []string {
	var keys []string
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

func TestProject_DeclarationOrder(t *testing.T) {
	Reset()
	u := projUser{Name: "John", Tags: []string{"a"}}

	om := mustNative(t, u)
	want := []string{"name", "country", "address", "tags", "scores"}
	if got := keysOf(om); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("keys = %v, want %v", got, want)
	}
}

func TestProject_FieldExcludeUnconditional(t *testing.T) {
	Reset()
	u := projUser{Name: "John", Card: Secret("4111")}

	for _, opts := range [][]Option{
		nil,
		{WithInclude(map[any]any{"card": true})},
		{WithExclude([]string{"name"})},
		{WithInclude(true)},
	} {
		om := mustNative(t, u, opts...)
		if _, ok := om.Get("card"); ok {
			t.Errorf("card must never appear (opts %v)", opts)
		}
	}
}

func TestProject_ByAlias(t *testing.T) {
	Reset()
	u := projUser{Name: "John"}

	om := mustNative(t, u, ByAlias())
	if _, ok := om.Get("userName"); !ok {
		t.Error("alias key missing")
	}
	if _, ok := om.Get("name"); ok {
		t.Error("declared name should not appear with ByAlias")
	}
	// country has no alias, keeps its name
	if _, ok := om.Get("country"); !ok {
		t.Error("fields without alias keep their projection name")
	}
}

func TestProject_ExcludeUnset(t *testing.T) {
	Reset()
	u := projUser{Name: "John", Country: "France"}
	u.MarkSet("name")

	om := mustNative(t, u, ExcludeUnset())
	if got := keysOf(om); len(got) != 1 || got[0] != "name" {
		t.Errorf("keys = %v, want [name]", got)
	}
}

func TestProject_ExcludeUnset_NestedOwnBookkeeping(t *testing.T) {
	Reset()
	type wheels struct {
		Meta
		Front string `name:"front"`
		Rear  string `name:"rear"`
	}
	type bike struct {
		Meta
		Name   string `name:"name"`
		Brand  string `name:"brand"`
		Wheels wheels `name:"wheels"`
	}

	b := bike{Name: "tourer", Brand: "acme", Wheels: wheels{Front: "26in", Rear: "26in"}}
	b.MarkSet("name", "wheels")
	b.Wheels.MarkSet("front")

	om := mustNative(t, b, ExcludeUnset())
	if got := keysOf(om); strings.Join(got, ",") != "name,wheels" {
		t.Errorf("outer keys = %v, want [name wheels]", got)
	}

	// Each nested instance is filtered by its own bookkeeping, not the
	// outer instance's.
	w, _ := om.Get("wheels")
	inner := w.(*orderedmap.OrderedMap[string, any])
	if got := keysOf(inner); len(got) != 1 || got[0] != "front" {
		t.Errorf("inner keys = %v, want [front]", got)
	}
}

func TestProject_ExcludeUnset_UntrackedType(t *testing.T) {
	Reset()
	type bare struct {
		A string `name:"a"`
	}

	om := mustNative(t, bare{A: "x"}, ExcludeUnset())
	if _, ok := om.Get("a"); !ok {
		t.Error("untracked types are treated as fully set")
	}
}

func TestProject_ExcludeDefaults(t *testing.T) {
	Reset()
	u := projUser{Name: "John", Country: "USA"}

	om := mustNative(t, u, ExcludeDefaults())
	if _, ok := om.Get("country"); ok {
		t.Error("value equal to declared default should be omitted")
	}
	// name has no declared default, stays even when zero
	om = mustNative(t, projUser{}, ExcludeDefaults())
	if _, ok := om.Get("name"); !ok {
		t.Error("fields without a declared default are never omitted")
	}

	u.Country = "France"
	om = mustNative(t, u, ExcludeDefaults())
	if _, ok := om.Get("country"); !ok {
		t.Error("non-default value should stay")
	}
}

func TestProject_ExcludeNone(t *testing.T) {
	Reset()
	u := projUser{Name: "John", Address: nil, Tags: nil}

	om := mustNative(t, u, ExcludeNone())
	if _, ok := om.Get("address"); ok {
		t.Error("nil pointer should be omitted")
	}
	// nil slices are empty values, not the null sentinel
	if _, ok := om.Get("tags"); !ok {
		t.Error("nil slice should stay")
	}
}

func TestProject_NestedPointer(t *testing.T) {
	Reset()
	u := projUser{Name: "John", Address: &projAddress{City: "Paris", Zip: "75001"}}

	om := mustNative(t, u, WithInclude(map[any]any{"address": []any{"city"}}))
	addr, _ := om.Get("address")
	inner := addr.(*orderedmap.OrderedMap[string, any])
	if city, _ := inner.Get("city"); city != "Paris" {
		t.Errorf("city = %v", city)
	}
	if _, ok := inner.Get("zip"); ok {
		t.Error("zip not selected by include")
	}
}

func TestProject_MapSortedDeterministic(t *testing.T) {
	Reset()
	u := projUser{Name: "John", Scores: map[string]int{"b": 2, "a": 1, "c": 3}}

	om := mustNative(t, u)
	scores, _ := om.Get("scores")
	inner := scores.(*orderedmap.OrderedMap[string, any])
	if got := keysOf(inner); strings.Join(got, "") != "abc" {
		t.Errorf("map keys = %v, want sorted", got)
	}
}

func TestProject_MapSelection(t *testing.T) {
	Reset()
	u := projUser{Name: "John", Scores: map[string]int{"a": 1, "b": 2}}

	om := mustNative(t, u, WithExclude(map[any]any{"scores": []any{"a"}}))
	scores, _ := om.Get("scores")
	inner := scores.(*orderedmap.OrderedMap[string, any])
	if _, ok := inner.Get("a"); ok {
		t.Error("excluded map entry should be dropped")
	}
	if _, ok := inner.Get("b"); !ok {
		t.Error("other entries stay")
	}
}

type cyclicNode struct {
	Meta
	Name string      `name:"name"`
	Next *cyclicNode `name:"next"`
}

func TestProject_CycleDetected(t *testing.T) {
	Reset()
	a := &cyclicNode{Name: "a"}
	b := &cyclicNode{Name: "b", Next: a}
	a.Next = b

	_, err := ToNative(a)
	if !errors.Is(err, ErrCycle) {
		t.Errorf("expected ErrCycle, got %v", err)
	}
}

func TestProject_SharedNotCyclic(t *testing.T) {
	Reset()
	shared := &cyclicNode{Name: "leaf"}
	type pair struct {
		Meta
		Left  *cyclicNode `name:"left"`
		Right *cyclicNode `name:"right"`
	}

	// The same node twice on sibling paths is sharing, not a cycle.
	if _, err := ToNative(pair{Left: shared, Right: shared}); err != nil {
		t.Errorf("ToNative() error: %v", err)
	}
}

func TestProject_DepthBound(t *testing.T) {
	Reset()
	head := &cyclicNode{Name: "0"}
	cur := head
	for i := 0; i < 50; i++ {
		next := &cyclicNode{Name: "n"}
		cur.Next = next
		cur = next
	}

	_, err := ToNative(head, WithMaxDepth(20))
	if !errors.Is(err, ErrDepthExceeded) {
		t.Errorf("expected ErrDepthExceeded, got %v", err)
	}
	if _, err := ToNative(head); err != nil {
		t.Errorf("default bound should admit 50 levels: %v", err)
	}
}

type badLeaf struct {
	Meta
	Name string   `name:"name"`
	Ch   chan int `name:"ch"`
}

func TestProject_UnencodablePath(t *testing.T) {
	Reset()
	type outer struct {
		Meta
		Inner badLeaf `name:"inner"`
	}

	_, err := ToNative(outer{Inner: badLeaf{Ch: make(chan int)}})
	if !errors.Is(err, ErrUnencodable) {
		t.Fatalf("expected ErrUnencodable, got %v", err)
	}
	var ee *EncodeError
	if !errors.As(err, &ee) {
		t.Fatal("expected *EncodeError")
	}
	if ee.Path != "inner.ch" {
		t.Errorf("path = %q, want inner.ch", ee.Path)
	}
}

func TestProject_FieldEncoder(t *testing.T) {
	Reset()
	err := RegisterFieldEncoder[projUser]("name", func(v any) (any, error) {
		return strings.ToUpper(v.(string)), nil
	})
	if err != nil {
		t.Fatalf("RegisterFieldEncoder() error: %v", err)
	}

	om := mustNative(t, projUser{Name: "john"})
	if name, _ := om.Get("name"); name != "JOHN" {
		t.Errorf("name = %v, want JOHN", name)
	}
}

func TestProject_FieldEncoderFinal(t *testing.T) {
	Reset()
	err := RegisterFieldEncoder[projUser]("card", func(v any) (any, error) {
		return Final("redacted"), nil
	})
	if err != nil {
		t.Fatalf("RegisterFieldEncoder() error: %v", err)
	}

	// The encoder result is final, but the field-level exclude still
	// removes the field before the encoder is consulted.
	om := mustNative(t, projUser{Card: Secret("4111")})
	if _, ok := om.Get("card"); ok {
		t.Error("field-level exclude wins over encoders")
	}

	err = RegisterFieldEncoder[projUser]("name", func(v any) (any, error) {
		return Final(map[string]string{"raw": v.(string)}), nil
	})
	if err != nil {
		t.Fatalf("RegisterFieldEncoder() error: %v", err)
	}
	om = mustNative(t, projUser{Name: "x"})
	name, _ := om.Get("name")
	if m, ok := name.(map[string]string); !ok || m["raw"] != "x" {
		t.Errorf("Final value should pass through untouched, got %v", name)
	}
}

func TestProject_InstanceEncoder(t *testing.T) {
	Reset()
	err := RegisterInstanceEncoder[projAddress](func(v any) (any, error) {
		a := v.(projAddress)
		return a.City + " " + a.Zip, nil
	})
	if err != nil {
		t.Fatalf("RegisterInstanceEncoder() error: %v", err)
	}

	om := mustNative(t, projUser{Address: &projAddress{City: "Paris", Zip: "75001"}})
	if addr, _ := om.Get("address"); addr != "Paris 75001" {
		t.Errorf("address = %v, want instance encoder output", addr)
	}
}

func TestProject_EncoderError(t *testing.T) {
	Reset()
	wantErr := errors.New("boom")
	err := RegisterFieldEncoder[projUser]("name", func(v any) (any, error) {
		return nil, wantErr
	})
	if err != nil {
		t.Fatalf("RegisterFieldEncoder() error: %v", err)
	}

	_, err = ToNative(projUser{Name: "x"})
	if !errors.Is(err, ErrEncoder) {
		t.Errorf("expected ErrEncoder, got %v", err)
	}
}

func TestProject_TimeField(t *testing.T) {
	Reset()
	type stamped struct {
		Meta
		At  time.Time     `name:"at"`
		Age time.Duration `name:"age"`
	}

	om := mustNative(t, stamped{
		At:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Age: 2 * time.Second,
	})
	if at, _ := om.Get("at"); at != "2024-03-01T12:00:00Z" {
		t.Errorf("at = %v", at)
	}
	if age, _ := om.Get("age"); age != 2.0 {
		t.Errorf("age = %v", age)
	}
}

func TestProject_NotStruct(t *testing.T) {
	Reset()
	for _, v := range []any{nil, 42, "text", []int{1}} {
		if _, err := ToNative(v); !errors.Is(err, ErrNotStruct) {
			t.Errorf("%T: expected ErrNotStruct, got %v", v, err)
		}
	}
}

func TestProject_SourceNotMutated(t *testing.T) {
	Reset()
	u := projUser{Name: "John", Tags: []string{"a", "b"}, Scores: map[string]int{"x": 1}}
	u.MarkSet("name")

	if _, err := ToNative(&u, ExcludeUnset(), ByAlias()); err != nil {
		t.Fatalf("ToNative() error: %v", err)
	}
	if u.Name != "John" || len(u.Tags) != 2 || u.Scores["x"] != 1 {
		t.Error("projection must not mutate the source")
	}
	if !u.FieldsSet().Has("name") || len(u.FieldsSet()) != 1 {
		t.Error("projection must not touch bookkeeping")
	}
}
