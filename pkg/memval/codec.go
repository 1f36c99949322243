package memval

import (
	"encoding/json"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Codec serializes values into storage slots.
//
// Unmarshal must leave a nil pointer untouched (not allocate) when data
// encodes null, which is how stored null is told apart from a value.
type Codec interface {
	// Name identifies the codec in configuration and logs.
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

var (
	// JSON stores slots as JSON text. It is the default codec.
	JSON Codec = jsonCodec{}

	// CBOR stores slots as CBOR (RFC 8949). Mappings decode with string keys.
	CBOR Codec = newCBORCodec()
)

// CodecByName returns the codec registered under name ("json" or "cbor").
func CodecByName(name string) (Codec, bool) {
	switch name {
	case "", "json":
		return JSON, true
	case "cbor":
		return CBOR, true
	default:
		return nil, false
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() cborCodec {
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return cborCodec{enc: enc, dec: dec}
}

func (cborCodec) Name() string { return "cbor" }

func (c cborCodec) Marshal(v any) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c cborCodec) Unmarshal(data []byte, v any) error {
	return c.dec.Unmarshal(data, v)
}

// encodeSnapshot serializes a committed snapshot. Null encodes as the codec's null.
func encodeSnapshot[T any](c Codec, s Snapshot[T]) ([]byte, error) {
	if s.state != Present {
		return c.Marshal(nil)
	}
	return c.Marshal(s.value)
}

// decodeSnapshot deserializes a slot. Empty data and encoded null decode to a
// Null snapshot.
func decodeSnapshot[T any](c Codec, data []byte) (Snapshot[T], error) {
	if len(data) == 0 {
		return None[T](), nil
	}
	var v *T
	if err := c.Unmarshal(data, &v); err != nil {
		return Snapshot[T]{}, err
	}
	if v == nil {
		return None[T](), nil
	}
	return Some(*v), nil
}
