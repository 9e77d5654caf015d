// Filename: ir/codec.go
package ir

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Decode reads a JSON encoded translation unit, as emitted by an external
// front-end or by Encode.
func Decode(r io.Reader) (*TranslationUnit, error) {
	var tu TranslationUnit
	if err := json.NewDecoder(r).Decode(&tu); err != nil {
		return nil, fmt.Errorf("failed to decode translation unit: %w", err)
	}
	if tu.File == "" {
		return nil, fmt.Errorf("translation unit is missing its file name")
	}
	for i, f := range tu.Functions {
		if f == nil || f.Name == "" {
			return nil, fmt.Errorf("translation unit %s: function %d has no name", tu.File, i)
		}
	}
	return &tu, nil
}

// Encode writes the translation unit as indented JSON.
func Encode(w io.Writer, tu *TranslationUnit) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tu); err != nil {
		return fmt.Errorf("failed to encode translation unit: %w", err)
	}
	return nil
}
