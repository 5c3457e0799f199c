// Package templates provides embedded config templates for gwupdate init.
package templates

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed *.yaml
var templatesFS embed.FS

// Template is a named config file shipped with the binary.
type Template struct {
	Name        string
	Description string
	Content     []byte
}

// catalog is kept in name order; List relies on it.
var catalog = []struct {
	name        string
	description string
}{
	{"full", "Every option with its default value"},
	{"minimal", "Origin only, everything else default"},
	{"server", "Local HTTP API for a UI host, JSON logs"},
}

// List returns the names of the embedded templates.
func List() []string {
	names := make([]string, len(catalog))
	for i, entry := range catalog {
		names[i] = entry.name
	}
	return names
}

// Get returns the embedded template called name.
func Get(name string) (*Template, error) {
	for _, entry := range catalog {
		if entry.name != name {
			continue
		}
		content, err := templatesFS.ReadFile(name + ".yaml")
		if err != nil {
			return nil, fmt.Errorf("failed to read template '%s': %w", name, err)
		}
		return &Template{Name: name, Description: entry.description, Content: content}, nil
	}
	return nil, fmt.Errorf("template '%s' not found (available: %s)", name, strings.Join(List(), ", "))
}

// GetDescription returns the description for a template name. Anything not
// embedded is a custom (remote) template.
func GetDescription(name string) string {
	for _, entry := range catalog {
		if entry.name == name {
			return entry.description
		}
	}
	return "Custom template"
}
