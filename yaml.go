package prism

import (
	"bytes"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// ToYAML projects an instance and renders the result as YAML text.
// Mapping nodes are built explicitly so key order survives; WithIndent
// sets the indent width (yaml defaults to 4 otherwise).
func ToYAML(v any, opts ...Option) ([]byte, error) {
	native, o, err := dump(v, "yaml", opts)
	if err != nil {
		return nil, err
	}

	node, err := yamlNode(native)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	if o.indent > 0 {
		enc.SetIndent(o.indent)
	}
	if err := enc.Encode(node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// yamlNode converts a native value tree into a yaml document node.
func yamlNode(v any) (*yaml.Node, error) {
	switch t := v.(type) {
	case *orderedmap.OrderedMap[string, any]:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for pair := t.Oldest(); pair != nil; pair = pair.Next() {
			keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: pair.Key}
			valNode, err := yamlNode(pair.Value)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, keyNode, valNode)
		}
		return node, nil
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, elem := range t {
			elemNode, err := yamlNode(elem)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, elemNode)
		}
		return node, nil
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	default:
		node := &yaml.Node{}
		if err := node.Encode(t); err != nil {
			return nil, err
		}
		return node, nil
	}
}
