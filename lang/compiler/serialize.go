package compiler

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
)

// Encode serializes m to w using encoding/gob. Only the exported pool and
// chunk fields round-trip; the compiler's internal dedup maps are not
// serialized. Ident/Number/String recreate them empty on first use, so
// constants added to a decoded Module are not deduplicated against the
// entries it was decoded with.
func Encode(w io.Writer, m *Module) error {
	return gob.NewEncoder(w).Encode(m)
}

// Decode deserializes a Module previously written by Encode and validates it
// before returning, rejecting a module whose closure/class indices are out
// of range.
func Decode(r io.Reader) (*Module, error) {
	var m Module
	if err := gob.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("compiler: decode module: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// EncodeBytes is a convenience wrapper around Encode for callers that want
// the serialized form as a byte slice.
func EncodeBytes(m *Module) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
