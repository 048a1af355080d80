package keyword

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/wakeline/internal/detect"
)

// ClassList is the ordered list of keyword class names. In YAML it is either
// a comma-separated string or a sequence of strings.
type ClassList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *ClassList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" {
			*l = nil
			return nil
		}
		*l = strings.Split(node.Value, ",")
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}
		*l = names
		return nil
	default:
		return fmt.Errorf("line %d: classes must be a string or a list", node.Line)
	}
}

// ParseClasses splits a comma-separated class list. Surrounding whitespace is
// trimmed; empty names are an error.
func ParseClasses(s string) (ClassList, error) {
	return ClassList(strings.Split(s, ",")).Normalize()
}

// Normalize trims every name and rejects an empty list or empty names.
func (l ClassList) Normalize() (ClassList, error) {
	if len(l) == 0 {
		return nil, fmt.Errorf("%w: keyword class list is empty", detect.ErrInvalidConfig)
	}
	out := make(ClassList, len(l))
	for i, name := range l {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: keyword class %d is empty", detect.ErrInvalidConfig, i)
		}
		out[i] = name
	}
	return out, nil
}

// metadata is the JSON document shipped next to keyword models.
type metadata struct {
	Classes []struct {
		Name string `json:"name"`
	} `json:"classes"`
}

// LoadMetadata reads the class names from a keyword metadata file of the form
// {"classes":[{"name":"..."}]}.
func LoadMetadata(path string) (ClassList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keyword: read metadata: %w", err)
	}
	var md metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("keyword: parse metadata %s: %w", path, err)
	}
	names := make(ClassList, len(md.Classes))
	for i, c := range md.Classes {
		names[i] = c.Name
	}
	return names.Normalize()
}
