package models

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Document is a schemaless stored document. Values hold whatever the
// backend decoder produced, so numeric fields may arrive as any integer
// width or as float64 depending on the transport.
type Document map[string]any

var (
	docEnc = mustDocEncMode()
	docDec = mustDocDecMode()
)

func mustDocEncMode() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Errorf("models: building document encoder: %w", err))
	}
	return em
}

func mustDocDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(fmt.Errorf("models: building document decoder: %w", err))
	}
	return dm
}

// Clone returns a deep copy of the document by round-tripping it through
// CBOR. Nested maps come back as map[string]any regardless of how they
// were produced.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	raw, err := docEnc.Marshal(map[string]any(d))
	if err != nil {
		panic(fmt.Errorf("models: cloning document: %w", err))
	}
	var out Document
	if err := docDec.Unmarshal(raw, &out); err != nil {
		panic(fmt.Errorf("models: cloning document: %w", err))
	}
	return out
}

// ID returns the document's id as a string, if present.
func (d Document) ID() (string, bool) {
	s, ok := d["id"].(string)
	return s, ok && s != ""
}

// FrameNumber returns the document's one-based frame number, normalizing
// across the integer widths and float64 that decoders produce.
func FrameNumber(d Document) (int, bool) {
	v, ok := d[KeyFrameNumber]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// SampleRef returns the id of the sample a frame document belongs to.
func SampleRef(d Document) (string, bool) {
	s, ok := d[KeySampleRef].(string)
	return s, ok && s != ""
}
