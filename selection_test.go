package prism

import (
	"errors"
	"testing"
)

func TestNewTree_Whole(t *testing.T) {
	tree, err := NewTree(true)
	if err != nil {
		t.Fatalf("NewTree() error: %v", err)
	}
	if !tree.IsWhole() {
		t.Error("NewTree(true) should be whole")
	}
}

func TestNewTree_Nil(t *testing.T) {
	tree, err := NewTree(nil)
	if err != nil {
		t.Fatalf("NewTree() error: %v", err)
	}
	if tree != nil {
		t.Error("NewTree(nil) should be no restriction")
	}
}

func TestNewTree_KeyedLiteral(t *testing.T) {
	tree, err := NewTree(map[any]any{
		"first_name": true,
		"address":    map[any]any{"country": []any{"name"}},
		"hobbies":    map[any]any{0: true, -1: []any{"name"}},
	})
	if err != nil {
		t.Fatalf("NewTree() error: %v", err)
	}

	if !tree.forField("first_name").IsWhole() {
		t.Error("first_name should be whole")
	}
	country := tree.forField("address").forField("country")
	if country == nil || country.IsWhole() {
		t.Error("address.country should be keyed")
	}
	if !country.forField("name").IsWhole() {
		t.Error("address.country.name should be whole")
	}
	if tree.forField("second_name") != nil {
		t.Error("second_name should be absent")
	}
}

func TestNewTree_StringSlice(t *testing.T) {
	tree, err := NewTree([]string{"name", "info"})
	if err != nil {
		t.Fatalf("NewTree() error: %v", err)
	}
	if !tree.forField("name").IsWhole() || !tree.forField("info").IsWhole() {
		t.Error("listed keys should be whole")
	}
}

func TestNewTree_BadKey(t *testing.T) {
	_, err := NewTree(map[any]any{3.5: true})
	if !errors.Is(err, ErrBadSelector) {
		t.Errorf("expected ErrBadSelector, got %v", err)
	}
}

func TestNewTree_BadLiteral(t *testing.T) {
	_, err := NewTree(42)
	if !errors.Is(err, ErrBadSelector) {
		t.Errorf("expected ErrBadSelector, got %v", err)
	}
}

func TestMergeUnion_WholeAbsorbs(t *testing.T) {
	keyed, _ := NewTree([]string{"a"})
	if !mergeUnion(wholeTree, keyed).IsWhole() {
		t.Error("union with whole should be whole")
	}
	if !mergeUnion(keyed, wholeTree).IsWhole() {
		t.Error("union with whole should be whole")
	}
}

func TestMergeUnion_Keys(t *testing.T) {
	a, _ := NewTree(map[any]any{"x": []any{"inner"}, "y": true})
	b, _ := NewTree(map[any]any{"x": []any{"other"}, "z": true})

	out := mergeUnion(a, b)
	x := out.forField("x")
	if !x.forField("inner").IsWhole() || !x.forField("other").IsWhole() {
		t.Error("overlapping keys should union recursively")
	}
	if !out.forField("y").IsWhole() || !out.forField("z").IsWhole() {
		t.Error("disjoint keys should both survive")
	}
}

func TestMergeUnion_NilIdentity(t *testing.T) {
	a, _ := NewTree([]string{"a"})
	if mergeUnion(nil, a) != a || mergeUnion(a, nil) != a {
		t.Error("nil should be the union identity")
	}
}

func TestMergeIntersect_WholeIdentity(t *testing.T) {
	a, _ := NewTree([]string{"a"})
	if mergeIntersect(wholeTree, a) != a {
		t.Error("whole should be absorbed by the other side")
	}
	if mergeIntersect(a, wholeTree) != a {
		t.Error("whole should be absorbed by the other side")
	}
}

func TestMergeIntersect_DropsDisjointKeys(t *testing.T) {
	a, _ := NewTree(map[any]any{"x": true, "y": true})
	b, _ := NewTree(map[any]any{"y": true, "z": true})

	out := mergeIntersect(a, b)
	if out.forField("x") != nil || out.forField("z") != nil {
		t.Error("keys present on only one side should be dropped")
	}
	if !out.forField("y").IsWhole() {
		t.Error("shared key should survive")
	}
}

func TestForIndex_Negative(t *testing.T) {
	tree, _ := NewTree(map[any]any{-1: []any{"name"}})

	for _, n := range []int{1, 2, 5} {
		sub := tree.forIndex(n-1, n)
		if sub == nil || !sub.forField("name").IsWhole() {
			t.Errorf("len %d: -1 should target the last element", n)
		}
		if n > 1 && tree.forIndex(0, n) != nil {
			t.Errorf("len %d: -1 should not target the first element", n)
		}
	}
}

func TestForIndex_WildcardOverlay(t *testing.T) {
	tree, _ := NewTree(map[any]any{
		Wildcard: []any{"name"},
		0:        []any{"info"},
	})

	first := tree.forIndex(0, 3)
	if !first.forField("name").IsWhole() || !first.forField("info").IsWhole() {
		t.Error("explicit index should refine the wildcard, not suppress it")
	}
	rest := tree.forIndex(1, 3)
	if !rest.forField("name").IsWhole() {
		t.Error("wildcard should still apply to other elements")
	}
	if rest.forField("info") != nil {
		t.Error("explicit refinement should not leak to other elements")
	}
}

func TestForKey_Wildcard(t *testing.T) {
	tree, _ := NewTree(map[any]any{Wildcard: []any{"a"}, "k": []any{"b"}})

	k := tree.forKey("k")
	if !k.forField("a").IsWhole() || !k.forField("b").IsWhole() {
		t.Error("explicit map key should union with wildcard")
	}
	other := tree.forKey("other")
	if !other.forField("a").IsWhole() {
		t.Error("wildcard should cover unnamed keys")
	}
}

func TestParsePaths(t *testing.T) {
	tree, err := parsePaths("card.number, hobbies.0.info, tags.*")
	if err != nil {
		t.Fatalf("parsePaths() error: %v", err)
	}

	if !tree.forField("card").forField("number").IsWhole() {
		t.Error("card.number should be selected whole")
	}
	if !tree.forField("hobbies").forIndex(0, 2).forField("info").IsWhole() {
		t.Error("hobbies.0.info should be selected whole")
	}
	if !tree.forField("tags").forKey("anything").IsWhole() {
		t.Error("tags.* should cover every entry")
	}
}

func TestParsePaths_Empty(t *testing.T) {
	tree, err := parsePaths("")
	if err != nil || tree != nil {
		t.Errorf("empty spec should be no restriction, got %v, %v", tree, err)
	}
}

func TestParsePaths_BadSegment(t *testing.T) {
	_, err := parsePaths("a..b")
	if !errors.Is(err, ErrBadSelector) {
		t.Errorf("expected ErrBadSelector, got %v", err)
	}
}

func TestTreeKeyString(t *testing.T) {
	cases := []struct {
		key  treeKey
		want string
	}{
		{nameKey("field"), "field"},
		{nameKey(Wildcard), "*"},
		{treeKey{kind: keyIndex, index: -1}, "-1"},
	}
	for _, tc := range cases {
		if got := tc.key.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}
