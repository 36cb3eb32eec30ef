package prism

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ToBinary projects an instance and renders the result as MessagePack
// bytes. Mapping entries are written in the projector's emission order
// (declaration order), which msgpack's own map encoding would not
// guarantee, so the native tree is streamed explicitly.
func ToBinary(v any, opts ...Option) ([]byte, error) {
	native, _, err := dump(v, "binary", opts)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := encodeBinary(enc, native); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeBinary(enc *msgpack.Encoder, v any) error {
	switch t := v.(type) {
	case *orderedmap.OrderedMap[string, any]:
		if err := enc.EncodeMapLen(t.Len()); err != nil {
			return err
		}
		for pair := t.Oldest(); pair != nil; pair = pair.Next() {
			if err := enc.EncodeString(pair.Key); err != nil {
				return err
			}
			if err := encodeBinary(enc, pair.Value); err != nil {
				return err
			}
		}
		return nil
	case []any:
		if err := enc.EncodeArrayLen(len(t)); err != nil {
			return err
		}
		for _, elem := range t {
			if err := encodeBinary(enc, elem); err != nil {
				return err
			}
		}
		return nil
	case nil:
		return enc.EncodeNil()
	default:
		return enc.Encode(t)
	}
}
