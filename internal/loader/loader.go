// Package loader reads YAML definition files into raw field maps.
// It performs no domain validation; see package builder for that.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"security-content/internal/content"

	"gopkg.in/yaml.v3"
)

// DefaultMaxBytes is the largest definition file Load will read.
const DefaultMaxBytes = 4 * 1024 * 1024

// Definition is a parsed definition file.
type Definition struct {
	Path   string
	Fields RawFieldMap

	root *yaml.Node
}

// Decode decodes the definition into a typed struct using its yaml tags.
func (d *Definition) Decode(v any) error {
	if d.root == nil {
		return &content.ParseError{Path: d.Path, Err: errors.New("definition has no document")}
	}
	if err := d.root.Decode(v); err != nil {
		return &content.ParseError{Path: d.Path, Err: err}
	}
	return nil
}

// FileLoader reads definitions from the local filesystem.
type FileLoader struct {
	// MaxBytes caps the size of a definition file. Zero means DefaultMaxBytes.
	MaxBytes int64
}

// Load reads and parses the definition file at path.
func (l FileLoader) Load(path string) (*Definition, error) {
	maxBytes := l.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &content.NotFoundError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("stat definition %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, &content.NotFoundError{Path: path, Err: errors.New("path is a directory")}
	}
	if info.Size() > maxBytes {
		return nil, &content.ParseError{Path: path, Err: fmt.Errorf("file size %d exceeds limit %d", info.Size(), maxBytes)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &content.NotFoundError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("read definition %s: %w", path, err)
	}

	return Parse(path, data)
}

// Load reads the definition at path with the default FileLoader.
func Load(path string) (*Definition, error) {
	return FileLoader{}.Load(path)
}

// Parse parses definition bytes. path is only used for error messages.
func Parse(path string, data []byte) (*Definition, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &content.ParseError{Path: path, Err: err}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &content.ParseError{Path: path, Err: errors.New("empty document")}
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &content.ParseError{Path: path, Err: fmt.Errorf("line %d: top level must be a mapping", root.Line)}
	}

	val, err := convert(root)
	if err != nil {
		return nil, &content.ParseError{Path: path, Err: err}
	}
	fields, _ := val.Fields()

	return &Definition{Path: path, Fields: fields, root: root}, nil
}

// convert turns a YAML node into a Value.
func convert(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.AliasNode:
		if n.Alias == nil {
			return Value{}, fmt.Errorf("line %d: dangling alias", n.Line)
		}
		return convert(n.Alias)

	case yaml.ScalarNode:
		return convertScalar(n)

	case yaml.SequenceNode:
		items := make([]Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := convert(c)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return Sequence(items...), nil

	case yaml.MappingNode:
		m := make(RawFieldMap, len(n.Content)/2)
		merged := make(map[string]bool)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode {
				return Value{}, fmt.Errorf("line %d: mapping key must be a scalar", key.Line)
			}
			if key.ShortTag() == "!!merge" {
				src, err := convert(n.Content[i+1])
				if err != nil {
					return Value{}, err
				}
				if fields, ok := src.Fields(); ok {
					for k, v := range fields {
						if _, exists := m[k]; !exists {
							m[k] = v
							merged[k] = true
						}
					}
				}
				continue
			}
			if _, dup := m[key.Value]; dup && !merged[key.Value] {
				return Value{}, fmt.Errorf("line %d: duplicate key %q", key.Line, key.Value)
			}
			v, err := convert(n.Content[i+1])
			if err != nil {
				return Value{}, err
			}
			m[key.Value] = v
			delete(merged, key.Value)
		}
		return Map(m), nil
	}
	return Value{}, fmt.Errorf("line %d: unsupported node", n.Line)
}

func convertScalar(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return Value{}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case "!!int", "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, err
		}
		return Number(f), nil
	}
	// !!str, !!timestamp and custom tags keep their literal text.
	return String(n.Value), nil
}
