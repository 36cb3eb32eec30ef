package prism

import (
	"encoding/json"
	"strings"
)

// ToText projects an instance and renders the result as JSON wire
// text: compact with no incidental whitespace by default, multi-line
// with WithIndent. Key order matches the projector's emission order,
// never re-sorted.
func ToText(v any, opts ...Option) ([]byte, error) {
	native, o, err := dump(v, "text", opts)
	if err != nil {
		return nil, err
	}
	return renderText(native, o.indent)
}

// renderText encodes a native value tree as JSON. The tree's mapping
// nodes marshal in insertion order, so no ordering is lost here.
func renderText(native any, indent int) ([]byte, error) {
	if indent > 0 {
		return json.MarshalIndent(native, "", strings.Repeat(" ", indent))
	}
	return json.Marshal(native)
}

// numberValue widens a json.Number for renderers that have no literal
// number form of their own.
func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, _ := n.Float64()
	return f
}
