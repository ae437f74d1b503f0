// Package wire implements the typed-value codec the server-action
// dispatcher (spec §4.F) and the generated client shims (spec §4.C)
// use to exchange `{args}` and return values over `/api/__rpc/...`.
// Plain JSON collapses Date to a string, drops undefined entirely, and
// cannot represent Map, Set, RegExp, BigInt, or byte arrays; spec §6's
// file-format contract requires all of those to round-trip, plus NaN
// staying distinct from null. This package tags each non-JSON-native
// value with a small envelope so the Go side and the generated
// JavaScript side agree on one wire shape.
//
// No third-party tagged-JSON library (e.g. a superjson/devalue
// equivalent) appears anywhere in the retrieval pack, so this is
// built directly on stdlib encoding/json, consistent with the
// process's "no suitable ecosystem library" justification rule.
package wire

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"
)

// typeTag names the envelope's "type" discriminator.
type typeTag string

const (
	tagDate      typeTag = "Date"
	tagRegExp    typeTag = "RegExp"
	tagMap       typeTag = "Map"
	tagSet       typeTag = "Set"
	tagBigInt    typeTag = "BigInt"
	tagBytes     typeTag = "Uint8Array"
	tagUndefined typeTag = "undefined"
	tagNaN       typeTag = "NaN"
)

// envelope is the on-wire shape of any value this package can't
// represent as a JSON primitive, array, or plain object.
type envelope struct {
	Type  typeTag         `json:"__peaque_wire__"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Date is a wire-preserved timestamp. Go callers decode a wire "Date"
// envelope into this type rather than time.Time directly so a
// round-trip through Encode reproduces the same envelope.
type Date struct{ ISO string }

// RegExp is a wire-preserved JavaScript regular expression literal.
type RegExp struct {
	Source string
	Flags  string
}

// Bytes is a wire-preserved byte array (JavaScript Uint8Array).
type Bytes []byte

// BigInt is a wire-preserved arbitrary-precision integer.
type BigInt struct{ *big.Int }

// Undefined is the wire-preserved JavaScript `undefined`, distinct
// from Go nil/JSON null.
type Undefined struct{}

// Envelope tag for NaN is handled transparently by Encode/Decode via
// the NaN float sentinel (math.IsNaN); callers never construct it.

// Call is the decoded body of an RPC POST request: the positional
// argument list passed to the invoked server action.
type Call struct {
	Args []any `json:"args"`
}

// Encode marshals v into the wire format, replacing any wire-aware
// value (Date, RegExp, Map, Set, BigInt, Bytes, Undefined, or a bare
// NaN float64) with its tagged envelope before falling back to
// encoding/json for everything else.
func Encode(v any) ([]byte, error) {
	return json.Marshal(prepare(v))
}

// Decode unmarshals wire-format bytes into a generic any value,
// restoring envelopes back into their typed Go representations.
func Decode(data []byte) (any, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("wire: decode: %w", err)
	}
	return restore(raw)
}

func prepare(v any) any {
	switch val := v.(type) {
	case Date:
		return envelope{Type: tagDate, Value: jsonString(val.ISO)}
	case RegExp:
		body, _ := json.Marshal(map[string]string{"source": val.Source, "flags": val.Flags})
		return envelope{Type: tagRegExp, Value: body}
	case BigInt:
		s := "0"
		if val.Int != nil {
			s = val.Int.String()
		}
		return envelope{Type: tagBigInt, Value: jsonString(s)}
	case Bytes:
		return envelope{Type: tagBytes, Value: jsonString(base64.StdEncoding.EncodeToString(val))}
	case Undefined:
		return envelope{Type: tagUndefined}
	case WireMap:
		return envelope{Type: tagMap, Value: mustMarshal(prepareEntries(val))}
	case WireSet:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = prepare(item)
		}
		return envelope{Type: tagSet, Value: mustMarshal(items)}
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = prepare(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = prepare(item)
		}
		return out
	case float64:
		if math.IsNaN(val) {
			return envelope{Type: tagNaN}
		}
		return val
	default:
		return v
	}
}

// WireMap marks a Go map as a JavaScript Map rather than a plain
// object, so it round-trips through a tagMap envelope instead of
// being flattened to JSON object fields.
type WireMap map[string]any

// WireSet marks a Go slice as a JavaScript Set rather than a plain
// array.
type WireSet []any

func prepareEntries(m map[string]any) [][2]any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([][2]any, 0, len(m))
	for _, k := range keys {
		entries = append(entries, [2]any{k, prepare(m[k])})
	}
	return entries
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}

func jsonString(s string) json.RawMessage {
	return mustMarshal(s)
}

// restore walks a decoded any tree (as produced by Decode's
// json.Decoder with UseNumber) and converts any recognized envelope
// object back into its typed Go representation.
func restore(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		if tag, ok := val["__peaque_wire__"]; ok {
			return restoreEnvelope(typeTag(fmt.Sprint(tag)), val["value"])
		}
		out := make(map[string]any, len(val))
		for k, sub := range val {
			r, err := restore(sub)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, sub := range val {
			r, err := restore(sub)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("wire: decoding number %q: %w", val, err)
		}
		return f, nil
	default:
		return v, nil
	}
}

func restoreEnvelope(tag typeTag, raw any) (any, error) {
	switch tag {
	case tagDate:
		return Date{ISO: fmt.Sprint(raw)}, nil
	case tagRegExp:
		m, _ := raw.(map[string]any)
		return RegExp{Source: fmt.Sprint(m["source"]), Flags: fmt.Sprint(m["flags"])}, nil
	case tagBigInt:
		n := new(big.Int)
		n.SetString(fmt.Sprint(raw), 10)
		return BigInt{n}, nil
	case tagBytes:
		data, err := base64.StdEncoding.DecodeString(fmt.Sprint(raw))
		if err != nil {
			return nil, fmt.Errorf("wire: decoding Uint8Array: %w", err)
		}
		return Bytes(data), nil
	case tagUndefined:
		return Undefined{}, nil
	case tagNaN:
		return math.NaN(), nil
	case tagMap:
		entries, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("wire: malformed Map envelope")
		}
		out := make(map[string]any, len(entries))
		for _, e := range entries {
			pair, ok := e.([]any)
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("wire: malformed Map entry")
			}
			r, err := restore(pair[1])
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(pair[0])] = r
		}
		return WireMap(out), nil
	case tagSet:
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("wire: malformed Set envelope")
		}
		out := make(WireSet, len(items))
		for i, it := range items {
			r, err := restore(it)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return nil, fmt.Errorf("wire: unknown envelope type %q", tag)
	}
}

// EncodeCall encodes a Call for the RPC request body.
func EncodeCall(args []any) ([]byte, error) {
	return Encode(map[string]any{"args": args})
}

// DecodeCall decodes an RPC request body into the positional argument
// list it carries.
func DecodeCall(data []byte) ([]any, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("wire: request body is not an object")
	}
	args, _ := m["args"].([]any)
	return args, nil
}
