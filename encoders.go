package prism

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"reflect"
	"time"

	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// JSON is an embedded structured-text field: raw text that itself
// encodes structured content. Projection parses it — the parsed value
// appears in the output in place of the text — unless RoundTrip is set,
// in which case the content is re-rendered as compact canonical text.
type JSON []byte

var jsonType = reflect.TypeOf(JSON(nil))

// builtinTypeEncoders returns the default type-tag encoder table.
// Temporal values render as calendar/clock text, identifiers as their
// canonical text, secrets as the fixed masked rendering.
func builtinTypeEncoders() map[reflect.Type]TypeEncoder {
	return map[reflect.Type]TypeEncoder{
		reflect.TypeOf(time.Time{}): func(v any) (any, error) {
			return v.(time.Time).Format(time.RFC3339Nano), nil
		},
		reflect.TypeOf(time.Duration(0)): func(v any) (any, error) {
			return v.(time.Duration).Seconds(), nil
		},
		reflect.TypeOf(uuid.UUID{}): func(v any) (any, error) {
			return v.(uuid.UUID).String(), nil
		},
		reflect.TypeOf(big.Int{}): func(v any) (any, error) {
			n := v.(big.Int)
			return n.String(), nil
		},
		reflect.TypeOf(big.Rat{}): func(v any) (any, error) {
			r := v.(big.Rat)
			return r.RatString(), nil
		},
		reflect.TypeOf(Secret("")): func(v any) (any, error) {
			return v.(Secret).String(), nil
		},
		reflect.TypeOf(SecretBytes(nil)): func(v any) (any, error) {
			return v.(SecretBytes).String(), nil
		},
	}
}

// encodeEmbedded projects a JSON field per the round_trip flag.
func encodeEmbedded(raw JSON, roundTrip bool, path string) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	node, err := decodeOrdered(raw)
	if err != nil {
		return nil, newEncodeError(ErrBadEmbedded, path, jsonType.String(), err)
	}
	if !roundTrip {
		return node, nil
	}
	// Compact canonical text: semantically equal to the original,
	// whitespace normalized, key order as parsed.
	out, err := json.Marshal(node)
	if err != nil {
		return nil, newEncodeError(ErrBadEmbedded, path, jsonType.String(), err)
	}
	return string(out), nil
}

// decodeOrdered parses JSON text into the engine's native value shape:
// objects become insertion-ordered maps, arrays []any, numbers int64
// when integral and float64 otherwise.
func decodeOrdered(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	v, err := decodeOrderedValue(dec)
	if err != nil {
		return nil, err
	}
	// Trailing content after the first value is malformed
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing content after value")
	}
	return v, nil
}

func decodeOrderedValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := orderedmap.New[string, any]()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T, not string", keyTok)
				}
				val, err := decodeOrderedValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // closing '}'
				return nil, err
			}
			return obj, nil
		case '[':
			arr := make([]any, 0)
			for dec.More() {
				val, err := decodeOrderedValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil { // closing ']'
				return nil, err
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	default:
		// string, number, bool, nil
		if n, ok := tok.(json.Number); ok {
			return numberValue(n), nil
		}
		return tok, nil
	}
}
