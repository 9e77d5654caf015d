// Filename: catalog/loader.go
package catalog

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse decodes a YAML list of entries and validates each of them.
func Parse(data []byte) ([]Entry, error) {
	var entries []Entry
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&entries); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return entries, nil
}

// LoadFile reads a YAML catalog extension from disk.
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	entries, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog file %s: %w", path, err)
	}
	return entries, nil
}

// Build assembles a catalog from the defaults (unless disabled) and the given
// extension files, in order.
func Build(includeDefaults bool, files ...string) (*Catalog, error) {
	var entries []Entry
	if includeDefaults {
		entries = append(entries, DefaultEntries()...)
	}
	for _, f := range files {
		extra, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		entries = append(entries, extra...)
	}
	return New(entries...)
}

// Write encodes entries as YAML in the same shape Parse accepts.
func Write(w io.Writer, entries []Entry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	return enc.Close()
}
