package prism

import (
	"fmt"
	"strconv"
	"strings"
)

// Wildcard is the selection key that applies to every element of a
// sequence or mapping field. An explicit index or key for the same field
// refines the wildcard's selection at that position without suppressing
// its effect elsewhere.
const Wildcard = "*"

// keyKind discriminates the three kinds of selection keys.
type keyKind uint8

const (
	keyName keyKind = iota // struct field or mapping key
	keyIndex               // sequence index, possibly negative
	keyWild                // wildcard marker
)

// treeKey is a single selection key. Exactly one of name/index is
// meaningful depending on kind.
type treeKey struct {
	kind  keyKind
	name  string
	index int
}

func (k treeKey) String() string {
	switch k.kind {
	case keyIndex:
		return strconv.Itoa(k.index)
	case keyWild:
		return Wildcard
	default:
		return k.name
	}
}

// Tree describes which fields or elements a dump should include or
// exclude, at arbitrary nesting depth. A whole tree applies to the
// entire subtree beneath its position; a keyed tree narrows per key.
//
// A nil *Tree means "no restriction": for an exclude tree nothing is
// excluded, and for an include tree everything not otherwise excluded
// is included.
type Tree struct {
	whole bool
	keys  map[treeKey]*Tree
}

// wholeTree is the canonical Whole node. Lookups on it return it
// unchanged, so a single shared instance suffices.
var wholeTree = &Tree{whole: true}

// NewTree builds a selection tree from a Go literal. Accepted forms:
//
//   - true — select the whole subtree
//   - *Tree — used as-is
//   - map[any]any, map[string]any, map[int]any — keyed tree; string keys
//     select struct fields or mapping entries ("*" is the wildcard),
//     int keys select sequence elements (negative counts from the end)
//   - []any, []string — shorthand for a keyed tree selecting each listed
//     key whole
//
// Example, mirroring a call-level include:
//
//	tree, err := prism.NewTree(map[any]any{
//	    "first_name": true,
//	    "address":    map[any]any{"country": []any{"name"}},
//	    "hobbies":    map[any]any{0: true, -1: []any{"name"}},
//	})
func NewTree(spec any) (*Tree, error) {
	return buildTree(spec)
}

func buildTree(spec any) (*Tree, error) {
	switch s := spec.(type) {
	case nil:
		return nil, nil
	case *Tree:
		return s, nil
	case bool:
		if s {
			return wholeTree, nil
		}
		return nil, nil
	case map[any]any:
		t := &Tree{keys: make(map[treeKey]*Tree, len(s))}
		for k, v := range s {
			tk, err := coerceKey(k)
			if err != nil {
				return nil, err
			}
			sub, err := buildTree(v)
			if err != nil {
				return nil, err
			}
			t.keys[tk] = mergeUnion(t.keys[tk], sub)
		}
		return t, nil
	case map[string]any:
		t := &Tree{keys: make(map[treeKey]*Tree, len(s))}
		for k, v := range s {
			sub, err := buildTree(v)
			if err != nil {
				return nil, err
			}
			t.keys[nameKey(k)] = mergeUnion(t.keys[nameKey(k)], sub)
		}
		return t, nil
	case map[int]any:
		t := &Tree{keys: make(map[treeKey]*Tree, len(s))}
		for k, v := range s {
			sub, err := buildTree(v)
			if err != nil {
				return nil, err
			}
			tk := treeKey{kind: keyIndex, index: k}
			t.keys[tk] = mergeUnion(t.keys[tk], sub)
		}
		return t, nil
	case []string:
		t := &Tree{keys: make(map[treeKey]*Tree, len(s))}
		for _, k := range s {
			t.keys[nameKey(k)] = wholeTree
		}
		return t, nil
	case []any:
		t := &Tree{keys: make(map[treeKey]*Tree, len(s))}
		for _, k := range s {
			tk, err := coerceKey(k)
			if err != nil {
				return nil, err
			}
			t.keys[tk] = wholeTree
		}
		return t, nil
	default:
		return nil, newSpecError(ErrBadSelector, "", "", fmt.Errorf("unsupported selection literal %T", spec))
	}
}

// coerceKey maps a literal key to a treeKey. Strings name struct fields
// or mapping entries ("*" is the wildcard); ints index sequences.
func coerceKey(k any) (treeKey, error) {
	switch v := k.(type) {
	case string:
		return nameKey(v), nil
	case int:
		return treeKey{kind: keyIndex, index: v}, nil
	default:
		return treeKey{}, newSpecError(ErrBadSelector, "", "", fmt.Errorf("unsupported selection key %T", k))
	}
}

func nameKey(s string) treeKey {
	if s == Wildcard {
		return treeKey{kind: keyWild}
	}
	return treeKey{kind: keyName, name: s}
}

// parsePaths builds a tree from the dotted-path mini-language used by
// the include/exclude struct tags: comma-separated paths whose segments
// are field names, integer indices, or "*". Each path selects its leaf
// whole; paths are unioned.
func parsePaths(s string) (*Tree, error) {
	var out *Tree
	for _, path := range strings.Split(s, ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		t := wholeTree
		segs := strings.Split(path, ".")
		for i := len(segs) - 1; i >= 0; i-- {
			seg := strings.TrimSpace(segs[i])
			if seg == "" {
				return nil, newSpecError(ErrBadSelector, "", "", fmt.Errorf("empty segment in path %q", path))
			}
			var tk treeKey
			if n, err := strconv.Atoi(seg); err == nil {
				tk = treeKey{kind: keyIndex, index: n}
			} else {
				tk = nameKey(seg)
			}
			t = &Tree{keys: map[treeKey]*Tree{tk: t}}
		}
		out = mergeUnion(out, t)
	}
	return out, nil
}

// IsWhole reports whether the tree applies to its entire subtree.
// A nil tree is not whole.
func (t *Tree) IsWhole() bool {
	return t != nil && t.whole
}

// mergeUnion combines two trees so that anything selected by either is
// selected by the result. Used for exclude trees: a key excluded at the
// field declaration or at the call site stays excluded.
func mergeUnion(a, b *Tree) *Tree {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.whole || b.whole {
		return wholeTree
	}
	out := &Tree{keys: make(map[treeKey]*Tree, len(a.keys)+len(b.keys))}
	for k, sub := range a.keys {
		out.keys[k] = sub
	}
	for k, sub := range b.keys {
		if prev, ok := out.keys[k]; ok {
			out.keys[k] = mergeUnion(prev, sub)
		} else {
			out.keys[k] = sub
		}
	}
	return out
}

// mergeIntersect combines two trees so that only what both select
// survives. Used for include trees: a key present on only one side is
// dropped, which is what lets an explicit call-level include narrow a
// declaration-time one. A nil tree is the identity (no restriction),
// and Whole is absorbed by the other side.
func mergeIntersect(a, b *Tree) *Tree {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.whole {
		return b
	}
	if b.whole {
		return a
	}
	out := &Tree{keys: make(map[treeKey]*Tree, len(a.keys))}
	for k, sub := range a.keys {
		if other, ok := b.keys[k]; ok {
			out.keys[k] = mergeIntersect(sub, other)
		}
	}
	return out
}

// forField returns the subtree governing a struct field or mapping
// entry. A whole tree governs everything beneath it. For mapping
// entries the wildcard applies to every key and is unioned with any
// explicit entry for the same key.
func (t *Tree) forField(name string) *Tree {
	if t == nil {
		return nil
	}
	if t.whole {
		return wholeTree
	}
	return t.keys[nameKey(name)]
}

// forKey is forField plus wildcard overlay, for mapping-typed fields.
func (t *Tree) forKey(name string) *Tree {
	if t == nil {
		return nil
	}
	if t.whole {
		return wholeTree
	}
	sub := t.keys[nameKey(name)]
	if wild, ok := t.keys[treeKey{kind: keyWild}]; ok {
		sub = mergeUnion(sub, wild)
	}
	return sub
}

// forIndex returns the subtree governing element i of a sequence of
// length n. Explicit indices are resolved against n, so -1 always means
// the last element; an explicit index is unioned with the wildcard
// rather than replacing it.
func (t *Tree) forIndex(i, n int) *Tree {
	if t == nil {
		return nil
	}
	if t.whole {
		return wholeTree
	}
	sub := t.keys[treeKey{kind: keyIndex, index: i}]
	if neg, ok := t.keys[treeKey{kind: keyIndex, index: i - n}]; ok {
		sub = mergeUnion(sub, neg)
	}
	if wild, ok := t.keys[treeKey{kind: keyWild}]; ok {
		sub = mergeUnion(sub, wild)
	}
	return sub
}

// selective reports whether the tree restricts its position to an
// explicit key set, i.e. is keyed rather than nil or whole. During
// projection a selective include omits children it does not name.
func (t *Tree) selective() bool {
	return t != nil && !t.whole
}
