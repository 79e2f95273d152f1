package workspace

import (
	"fmt"
	"strings"
)

// Registry holds all available file formats and provides auto-detection.
type Registry struct {
	formats []Format
}

var globalRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		formats: []Format{
			NewBinaryFormat(),
			NewJSONFormat(),
			NewYAMLFormat(),
		},
	}
}

// GetGlobalRegistry returns the singleton registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// Register adds a new format to the registry.
func (r *Registry) Register(f Format) {
	r.formats = append(r.formats, f)
}

// FindFormat detects the correct format for a file.
func (r *Registry) FindFormat(filePath string) (Format, error) {
	for _, f := range r.formats {
		can, err := f.CanDecode(filePath)
		if err != nil {
			continue
		}
		if can {
			return f, nil
		}
	}
	return nil, fmt.Errorf("no suitable format found for file: %s", filePath)
}

// GetFormatByName returns a format by its name.
func (r *Registry) GetFormatByName(name string) (Format, error) {
	name = strings.ToLower(name)
	for _, f := range r.formats {
		if strings.ToLower(f.Name()) == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("format not found: %s", name)
}
