// Package fixture provides named key/value sequences to insert into a tree:
// the built-in demonstration sequence and fixture files in JSON or YAML.
package fixture

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Fixture errors.
var (
	// ErrInvalidFixture is returned for documents that violate the fixture schema.
	ErrInvalidFixture = errors.New("invalid fixture")

	// ErrUnknownFormat is returned for files that are neither JSON nor YAML.
	ErrUnknownFormat = errors.New("unknown fixture format")
)

//go:embed schema.json
var schemaJSON []byte

// Format is the encoding of a fixture document.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DemoName is the name of the built-in demonstration fixture.
const DemoName = "demo"

// demoKeys exercises all three fixup cases, including inner-child rotations
// on both sides of the root.
var demoKeys = []int{10, 5, 15, 3, 7, 12, 17, 1, 9, 14, 20, 8, 11, 18, 6, 2}

// Entry is one key/value pair.
type Entry struct {
	Key   int `json:"key"   yaml:"key"`
	Value int `json:"value" yaml:"value"`
}

// Fixture is an ordered sequence of entries. Order matters: it decides the
// shape of the resulting tree.
type Fixture struct {
	Name    string  `json:"name,omitempty" yaml:"name,omitempty"`
	Entries []Entry `json:"entries"        yaml:"entries"`
}

// Inserter is implemented by rbtree.Tree, rbtree.SyncTree and rbtree.ShardedTree.
type Inserter interface {
	Insert(key, value int) error
}

// Demo returns the demonstration fixture. Every value equals its key.
func Demo() Fixture {
	return FromKeys(DemoName, demoKeys)
}

// FromKeys builds a fixture whose values equal the keys.
func FromKeys(name string, keys []int) Fixture {
	entries := make([]Entry, len(keys))
	for idx, key := range keys {
		entries[idx] = Entry{Key: key, Value: key}
	}

	return Fixture{Name: name, Entries: entries}
}

// Keys returns the keys in insertion order.
func (f Fixture) Keys() []int {
	keys := make([]int, len(f.Entries))
	for idx, entry := range f.Entries {
		keys[idx] = entry.Key
	}

	return keys
}

// InsertInto inserts every entry in order and stops at the first error.
func (f Fixture) InsertInto(dst Inserter) error {
	for _, entry := range f.Entries {
		err := dst.Insert(entry.Key, entry.Value)
		if err != nil {
			return fmt.Errorf("fixture %s: %w", f.Name, err)
		}
	}

	return nil
}

// FormatOf guesses the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Load reads and validates a fixture file. A fixture without a name is
// named after the file.
func Load(path string) (Fixture, error) {
	format, err := FormatOf(path)
	if err != nil {
		return Fixture{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}

	fix, err := Parse(data, format)
	if err != nil {
		return Fixture{}, fmt.Errorf("%s: %w", path, err)
	}

	if fix.Name == "" {
		fix.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return fix, nil
}

// document is the wire form; either Entries or Keys is set.
type document struct {
	Name    string `json:"name"`
	Entries []struct {
		Key   int  `json:"key"`
		Value *int `json:"value"`
	} `json:"entries"`
	Keys []int `json:"keys"`
}

// Parse decodes and validates a fixture document. Entries without a value
// get their key as value; a bare keys list does the same for every key.
func Parse(data []byte, format Format) (Fixture, error) {
	var generic any

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()

		err := dec.Decode(&generic)
		if err != nil {
			return Fixture{}, fmt.Errorf("%w: %w", ErrInvalidFixture, err)
		}
	case FormatYAML:
		err := yaml.Unmarshal(data, &generic)
		if err != nil {
			return Fixture{}, fmt.Errorf("%w: %w", ErrInvalidFixture, err)
		}
	default:
		return Fixture{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	err := validate(generic)
	if err != nil {
		return Fixture{}, err
	}

	// The document is schema-valid, so a JSON round trip decodes it strictly.
	normalized, err := json.Marshal(generic)
	if err != nil {
		return Fixture{}, fmt.Errorf("%w: %w", ErrInvalidFixture, err)
	}

	var doc document

	err = json.Unmarshal(normalized, &doc)
	if err != nil {
		return Fixture{}, fmt.Errorf("%w: %w", ErrInvalidFixture, err)
	}

	if doc.Keys != nil {
		return FromKeys(doc.Name, doc.Keys), nil
	}

	fix := Fixture{Name: doc.Name, Entries: make([]Entry, len(doc.Entries))}

	for idx, entry := range doc.Entries {
		fix.Entries[idx] = Entry{Key: entry.Key, Value: entry.Key}
		if entry.Value != nil {
			fix.Entries[idx].Value = *entry.Value
		}
	}

	return fix, nil
}

func validate(generic any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(generic),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFixture, err)
	}

	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		messages = append(messages, resultErr.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidFixture, strings.Join(messages, "; "))
}

// Marshal encodes f in the given format.
func (f Fixture) Marshal(format Format) ([]byte, error) {
	if f.Entries == nil {
		f.Entries = []Entry{}
	}

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode fixture: %w", err)
		}

		return data, nil
	case FormatYAML:
		data, err := yaml.Marshal(f)
		if err != nil {
			return nil, fmt.Errorf("encode fixture: %w", err)
		}

		return data, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
